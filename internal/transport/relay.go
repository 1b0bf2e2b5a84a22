package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opencxp/cxp-client-go/internal/config"
	"github.com/opencxp/cxp-client-go/internal/errors"
	"github.com/opencxp/cxp-client-go/internal/relay"
)

// RelayTransport adapts a brokered relay channel to the Transport contract.
// The channel arrives already established; messages cross it pre-parsed, so
// no decode step exists on the read side.
type RelayTransport struct {
	log     *slog.Logger
	conn    relay.Conn
	writeMu sync.Mutex // Serializes channel writes
	mu      sync.Mutex // Protects closing state
	closing bool
}

// Compile-time verification that RelayTransport implements the Transport interface.
var _ config.Transport = (*RelayTransport)(nil)

// NewRelayTransport wraps a dedicated relay channel.
func NewRelayTransport(log *slog.Logger, conn relay.Conn) *RelayTransport {
	return &RelayTransport{
		log:  log.With("component", "relay_transport"),
		conn: conn,
	}
}

// ReadMessages reads messages from the relay channel.
//
// This method starts a goroutine that pulls messages until the channel fails
// or the context is cancelled. Close() closes the channel to unblock a
// pending read; read failures after an intentional Close are suppressed. The
// goroutine closes both channels when it exits.
func (t *RelayTransport) ReadMessages(
	ctx context.Context,
) (<-chan map[string]any, <-chan error) {
	messages := make(chan map[string]any)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)
		defer t.log.Debug("ReadMessages goroutine stopped")

		for {
			msg, err := t.conn.ReadMessage()
			if err != nil {
				t.mu.Lock()
				isClosing := t.closing
				t.mu.Unlock()

				if isClosing || ctx.Err() != nil {
					return
				}

				t.log.Debug("Relay channel read failed", "error", err)

				errs <- fmt.Errorf("read relay message: %w", err)

				return
			}

			select {
			case messages <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return messages, errs
}

// SendMessage writes one JSON message to the relay channel.
//
// This method is safe for concurrent use. It checks context cancellation
// before writing but does not interrupt a write already in flight.
func (t *RelayTransport) SendMessage(ctx context.Context, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.mu.Lock()
	isClosing := t.closing
	t.mu.Unlock()

	if isClosing {
		return errors.ErrTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.WriteMessage(data); err != nil {
		t.log.Error("Failed to write relay message", "error", err)

		return fmt.Errorf("write relay message: %w", err)
	}

	return nil
}

// Close closes the dedicated relay channel.
//
// Safe to call multiple times. The control channel shared with the host is
// not affected; only this extension's channel is released.
func (t *RelayTransport) Close() error {
	t.mu.Lock()

	if t.closing {
		t.mu.Unlock()

		return nil
	}

	t.closing = true
	t.mu.Unlock()

	t.log.Debug("Closing relay channel")

	return t.conn.Close()
}
