package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Protryon/adns/internal/dns/common/log"
)

// tcpIdleTimeout bounds how long a connection may sit between requests.
const tcpIdleTimeout = 10 * time.Second

// maxTCPMessage is the largest request accepted over TCP, the maximum the
// two-byte length prefix can express.
const maxTCPMessage = 1 << 16

// TCPTransport serves DNS over TCP (RFC 1035 4.2.2): each message is
// preceded by a two-byte length, and a connection may carry several
// requests in sequence. Multi-message responses (zone transfers) are
// written as consecutive frames on the same connection.
type TCPTransport struct {
	addr     string
	listener net.Listener
	logger   log.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewTCPTransport creates a TCP transport bound to addr when started.
func NewTCPTransport(addr string, logger log.Logger) *TCPTransport {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &TCPTransport{
		addr:   addr,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start binds the TCP listener and launches the accept loop.
func (t *TCPTransport) Start(ctx context.Context, handler Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("TCP transport already running")
	}

	listener, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to bind TCP listener on %s: %w", t.addr, err)
	}

	t.listener = listener
	t.running = true

	t.logger.Info(map[string]any{
		"transport": "tcp",
		"address":   t.addr,
	}, "DNS transport started")

	go t.acceptLoop(ctx, handler)
	return nil
}

// Stop closes the listener and waits for in-flight connections to drain.
func (t *TCPTransport) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	close(t.stopCh)
	closeErr := t.listener.Close()
	t.running = false
	t.mu.Unlock()

	t.wg.Wait()

	t.logger.Info(map[string]any{
		"transport": "tcp",
		"address":   t.addr,
	}, "DNS transport stopped")
	return closeErr
}

// Address returns the configured listen address.
func (t *TCPTransport) Address() string {
	return t.addr
}

func (t *TCPTransport) acceptLoop(ctx context.Context, handler Handler) {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.stopCh:
				return
			case <-ctx.Done():
				return
			default:
			}
			t.logger.Warn(map[string]any{
				"error": err.Error(),
			}, "Failed to accept TCP connection")
			continue
		}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.serveConn(ctx, conn, handler)
		}()
	}
}

// serveConn handles one client connection until it closes, idles out, or
// sends something unframeable.
func (t *TCPTransport) serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()
	client := conn.RemoteAddr()

	for {
		payload, err := readFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				t.logger.Debug(map[string]any{
					"client": client.String(),
					"error":  err.Error(),
				}, "TCP connection closed")
			}
			return
		}

		frames := handler.HandleStream(ctx, payload, client)
		if len(frames) == 0 {
			return
		}
		for _, frame := range frames {
			if err := writeFrame(conn, frame); err != nil {
				t.logger.Warn(map[string]any{
					"client": client.String(),
					"error":  err.Error(),
				}, "Failed to send TCP response")
				return
			}
		}
	}
}

// readFrame reads one length-prefixed message.
func readFrame(conn net.Conn) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(tcpIdleTimeout)); err != nil {
		return nil, err
	}
	var prefix [2]byte
	if _, err := io.ReadFull(conn, prefix[:]); err != nil {
		return nil, err
	}
	length := int(binary.BigEndian.Uint16(prefix[:]))
	if length == 0 {
		return nil, fmt.Errorf("zero-length message")
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// writeFrame writes one length-prefixed message.
func writeFrame(conn net.Conn, frame []byte) error {
	if len(frame) >= maxTCPMessage {
		return fmt.Errorf("response of %d bytes exceeds TCP framing", len(frame))
	}
	out := make([]byte, 2+len(frame))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(frame)))
	copy(out[2:], frame)
	_, err := conn.Write(out)
	return err
}
