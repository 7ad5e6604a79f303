package transport

import (
	"fmt"

	"github.com/Protryon/adns/internal/dns/common/log"
)

// TransportType identifies a listener protocol.
type TransportType string

const (
	// TransportUDP is standard DNS over UDP (RFC 1035).
	TransportUDP TransportType = "udp"

	// TransportTCP is DNS over TCP (RFC 1035 4.2.2), required for zone
	// transfers and large responses.
	TransportTCP TransportType = "tcp"
)

// NewTransport creates a listener of the given type. The factory keeps the
// serving layer independent of which protocols are compiled in.
func NewTransport(transportType TransportType, addr string, logger log.Logger) (ServerTransport, error) {
	switch transportType {
	case TransportUDP:
		return NewUDPTransport(addr, logger), nil
	case TransportTCP:
		return NewTCPTransport(addr, logger), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", transportType)
	}
}

// SupportedTransports lists the transport types this build can serve.
func SupportedTransports() []TransportType {
	return []TransportType{TransportUDP, TransportTCP}
}
