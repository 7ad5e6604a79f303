package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/Protryon/adns/internal/dns/common/log"
	"github.com/Protryon/adns/internal/dns/domain"
)

// UDPTransport serves standard DNS over UDP (RFC 1035). Each datagram is
// handled on its own goroutine; responses are single datagrams, truncated
// by the serving layer to the client's advertised payload size.
type UDPTransport struct {
	addr   string
	conn   *net.UDPConn
	logger log.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// NewUDPTransport creates a UDP transport bound to addr when started.
func NewUDPTransport(addr string, logger log.Logger) *UDPTransport {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &UDPTransport{
		addr:   addr,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start binds the UDP socket and launches the receive loop.
func (t *UDPTransport) Start(ctx context.Context, handler Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("UDP transport already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", t.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", t.addr, err)
	}

	t.conn = conn
	t.running = true

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   t.addr,
	}, "DNS transport started")

	go t.listenLoop(ctx, handler)
	return nil
}

// Stop closes the socket and ends the receive loop.
func (t *UDPTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	close(t.stopCh)

	var closeErr error
	if t.conn != nil {
		closeErr = t.conn.Close()
	}
	t.running = false

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   t.addr,
	}, "DNS transport stopped")
	return closeErr
}

// Address returns the configured listen address.
func (t *UDPTransport) Address() string {
	return t.addr
}

func (t *UDPTransport) listenLoop(ctx context.Context, handler Handler) {
	// Inbound requests are bounded by the payload size we advertise.
	buffer := make([]byte, domain.AdvertisedUDPSize)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		default:
			n, clientAddr, err := t.conn.ReadFromUDP(buffer)
			if err != nil {
				t.mu.RLock()
				running := t.running
				t.mu.RUnlock()
				if !running {
					return
				}
				t.logger.Warn(map[string]any{
					"error": err.Error(),
				}, "Failed to read UDP packet")
				continue
			}

			packet := make([]byte, n)
			copy(packet, buffer[:n])
			go t.handlePacket(ctx, packet, clientAddr, handler)
		}
	}
}

func (t *UDPTransport) handlePacket(ctx context.Context, data []byte, clientAddr *net.UDPAddr, handler Handler) {
	response := handler.HandleDatagram(ctx, data, clientAddr)
	if response == nil {
		return
	}
	if _, err := t.conn.WriteToUDP(response, clientAddr); err != nil {
		t.logger.Error(map[string]any{
			"client": clientAddr.String(),
			"error":  err.Error(),
		}, "Failed to send DNS response")
		return
	}
	t.logger.Debug(map[string]any{
		"client": clientAddr.String(),
		"size":   len(response),
	}, "Sent DNS response")
}
