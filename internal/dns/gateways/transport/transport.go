// Package transport provides the network listeners for the DNS server.
// It handles socket management and stream framing, handing raw payloads
// to the serving layer and writing back whatever frames it produces.
package transport

import (
	"context"
	"net"
)

// Handler is how the serving layer receives requests. The transport owns
// all protocol concerns: datagram boundaries on UDP, length-prefixed
// framing on TCP.
type Handler interface {
	// HandleDatagram processes one UDP payload. A nil return means no
	// response is sent (hostile or unparseable input).
	HandleDatagram(ctx context.Context, payload []byte, from net.Addr) []byte

	// HandleStream processes one TCP request and returns the response
	// frames in order; zone transfers produce several.
	HandleStream(ctx context.Context, payload []byte, from net.Addr) [][]byte
}

// ServerTransport is implemented by each listener type.
type ServerTransport interface {
	// Start binds the socket and begins serving requests via handler.
	Start(ctx context.Context, handler Handler) error

	// Stop shuts the listener down and releases the socket.
	Stop() error

	// Address returns the configured listen address.
	Address() string
}
