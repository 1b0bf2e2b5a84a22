package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/opencxp/cxp-client-go/internal/config"
	"github.com/opencxp/cxp-client-go/internal/errors"
)

// WebSocketTransport adapts an established WebSocket connection to the
// Transport contract. It is handed over already connected; the caller owns
// its lifetime and must Close it to release the socket.
type WebSocketTransport struct {
	log     *slog.Logger
	conn    *websocket.Conn
	writeMu sync.Mutex // Serializes frame writes; gorilla allows one writer
	mu      sync.Mutex // Protects closing state
	closing bool
}

// Compile-time verification that WebSocketTransport implements the Transport interface.
var _ config.Transport = (*WebSocketTransport)(nil)

// NewWebSocketTransport wraps an established WebSocket connection.
func NewWebSocketTransport(log *slog.Logger, conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{
		log:  log.With("component", "websocket_transport"),
		conn: conn,
	}
}

// ReadMessages reads JSON messages from the socket.
//
// This method starts a goroutine that reads frames until the connection
// fails or the context is cancelled. Frames that fail to parse as JSON
// objects are reported on the error channel but do not stop message
// processing. The goroutine closes both channels when it exits.
//
// ReadMessage has no context hook, so Close() closes the socket to unblock a
// pending read; read failures after an intentional Close are suppressed.
func (t *WebSocketTransport) ReadMessages(
	ctx context.Context,
) (<-chan map[string]any, <-chan error) {
	messages := make(chan map[string]any)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)
		defer t.log.Debug("ReadMessages goroutine stopped")

		for {
			_, data, err := t.conn.ReadMessage()
			if err != nil {
				t.mu.Lock()
				isClosing := t.closing
				t.mu.Unlock()

				if isClosing || ctx.Err() != nil {
					return
				}

				t.log.Debug("Socket read failed", "error", err)

				errs <- fmt.Errorf("read frame: %w", err)

				return
			}

			var msg map[string]any

			if err := json.Unmarshal(data, &msg); err != nil {
				t.log.Debug("Failed to unmarshal frame", "error", err, "frame", string(data))

				errs <- &errors.MessageDecodeError{
					RawData: string(data),
					Err:     err,
				}

				continue
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

// SendMessage writes one JSON message to the socket as a text frame.
//
// This method is safe for concurrent use. It checks context cancellation
// before writing but does not interrupt a write already in flight.
func (t *WebSocketTransport) SendMessage(ctx context.Context, data []byte) error {
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

	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.log.Error("Failed to write frame", "error", err)

		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// Close closes the underlying socket.
//
// Safe to call multiple times. The read goroutine treats the resulting read
// failure as an intentional shutdown rather than a transport error.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()

	if t.closing {
		t.mu.Unlock()

		return nil
	}

	t.closing = true
	t.mu.Unlock()

	t.log.Debug("Closing socket")

	return t.conn.Close()
}
