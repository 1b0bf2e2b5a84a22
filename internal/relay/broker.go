package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/opencxp/cxp-client-go/internal/errors"
	"github.com/opencxp/cxp-client-go/internal/manifest"
)

// Broker requests dedicated per-extension channels from the host-side broker
// over the control channel.
//
// The Broker handles:
//   - Sending channel requests with unique correlation tokens
//   - Receiving responses and routing them to waiting requests by token
//   - Opening the dedicated channel a successful response names
//
// Requests may be in flight concurrently; responses are matched by token,
// never by arrival order. Exactly one Broker (one control channel) exists per
// controller lifetime. The Broker must be started with Start() before use and
// manages its own goroutine for reading and routing responses.
type Broker struct {
	log  *slog.Logger
	host Host

	// Request tracking
	pendingMu sync.Mutex
	pending   map[string]chan *ChannelResponse

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewBroker creates a broker over the given host relay boundary.
//
// The host's control channel must already be established.
func NewBroker(log *slog.Logger, host Host) *Broker {
	return &Broker{
		log:     log.With("component", "relay"),
		host:    host,
		pending: make(map[string]chan *ChannelResponse, 4),
		done:    make(chan struct{}),
	}
}

// closeDone safely closes the done channel exactly once.
func (b *Broker) closeDone() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
}

// setFatalError stores a fatal error and broadcasts to all waiters by
// closing done.
func (b *Broker) setFatalError(err error) {
	b.errMu.Lock()

	if b.fatalErr == nil {
		b.fatalErr = err
	}

	b.errMu.Unlock()

	b.closeDone()
}

// FatalError returns the control-channel error that stopped the broker, if
// one occurred.
func (b *Broker) FatalError() error {
	b.errMu.RLock()
	defer b.errMu.RUnlock()

	return b.fatalErr
}

// Done returns a channel that is closed when the broker stops.
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// Start begins reading responses from the control channel.
//
// Start must be called before Connect. The read goroutine stops when the
// broker is closed or the control channel fails.
func (b *Broker) Start() {
	b.log.Debug("Starting relay broker")

	b.wg.Add(1)

	go b.readLoop()
}

// Close shuts down the broker and closes the control channel. Waiting
// Connect calls fail with ErrRelayClosed. It's safe to call Close multiple
// times.
func (b *Broker) Close() error {
	b.log.Debug("Closing relay broker")

	b.closeDone()

	err := b.host.Close()

	b.wg.Wait()

	return err
}

// Connect requests a dedicated channel for the given extension and opens it.
//
// It sends a ChannelRequest over the control channel and blocks until the
// matching response arrives, the broker stops, or ctx is done. No timeout is
// imposed beyond ctx. A response carrying an error fails with RelayError.
func (b *Broker) Connect(ctx context.Context, extensionID string, platform manifest.Platform) (Conn, error) {
	token := b.generateToken()

	b.log.Debug("Requesting relay channel",
		"token", token,
		"extension_id", extensionID,
		"platform", platform.Kind(),
	)

	responseChan := make(chan *ChannelResponse, 1)

	b.pendingMu.Lock()
	b.pending[token] = responseChan
	b.pendingMu.Unlock()

	platformJSON, err := json.Marshal(platform)
	if err != nil {
		b.removePending(token)

		return nil, fmt.Errorf("marshal platform: %w", err)
	}

	req := &ChannelRequest{
		Token:       token,
		ExtensionID: extensionID,
		Platform:    platformJSON,
	}

	data, err := json.Marshal(req)
	if err != nil {
		b.removePending(token)

		return nil, fmt.Errorf("marshal channel request: %w", err)
	}

	if err := b.host.WriteMessage(data); err != nil {
		b.removePending(token)
		b.log.Error("Failed to send channel request", "token", token, "error", err)

		return nil, fmt.Errorf("send channel request: %w", err)
	}

	b.log.Debug("Channel request sent, waiting for response", "token", token)

	select {
	case resp := <-responseChan:
		if resp.Error != "" {
			b.log.Warn("Channel request rejected",
				"token", token,
				"extension_id", extensionID,
				"error", resp.Error,
			)

			return nil, &errors.RelayError{ExtensionID: extensionID, Message: resp.Error}
		}

		if resp.ChannelName == "" {
			return nil, &errors.RelayError{ExtensionID: extensionID, Message: "response named no channel"}
		}

		b.log.Debug("Channel granted", "token", token, "channel", resp.ChannelName)

		return b.host.DialChannel(ctx, resp.ChannelName)

	case <-b.done:
		// Broker stopped (possibly due to a control-channel error) - fail fast
		b.removePending(token)

		if err := b.FatalError(); err != nil {
			b.log.Warn("Control channel failed during request", "token", token, "error", err)

			return nil, fmt.Errorf("relay control channel: %w", err)
		}

		b.log.Debug("Broker closed during request", "token", token)

		return nil, errors.ErrRelayClosed

	case <-ctx.Done():
		b.removePending(token)
		b.log.Debug("Channel request cancelled", "token", token)

		return nil, ctx.Err()
	}
}

// removePending drops the pending entry for token, if still present.
func (b *Broker) removePending(token string) {
	b.pendingMu.Lock()
	delete(b.pending, token)
	b.pendingMu.Unlock()
}

// readLoop reads responses from the control channel and routes them by token.
func (b *Broker) readLoop() {
	defer b.wg.Done()
	defer b.log.Debug("Relay read loop stopped")

	for {
		msg, err := b.host.ReadMessage()
		if err != nil {
			select {
			case <-b.done:
				// Expected: Close() closed the control channel under us.
			default:
				b.log.Debug("Control channel error", "error", err)
				b.setFatalError(err)
			}

			b.closeDone()

			return
		}

		b.handleResponse(msg)
	}
}

// handleResponse routes one control-channel message to the waiting request.
// Messages with unknown or missing tokens are logged and dropped.
func (b *Broker) handleResponse(msg map[string]any) {
	token, ok := msg["token"].(string)
	if !ok {
		b.log.Warn("Relay response missing 'token' field")

		return
	}

	// Find and claim the pending request atomically
	b.pendingMu.Lock()

	pending, exists := b.pending[token]
	if exists {
		delete(b.pending, token)
	}

	b.pendingMu.Unlock()

	if !exists {
		b.log.Warn("No pending request for relay response", "token", token)

		return
	}

	resp := &ChannelResponse{Token: token}

	if name, ok := msg["channelName"].(string); ok {
		resp.ChannelName = name
	}

	if errMsg, ok := msg["error"].(string); ok {
		resp.Error = errMsg
	}

	// Send to waiting goroutine (we own it now, channel is buffered)
	pending <- resp
}

// generateToken creates a unique correlation token using ULID.
func (b *Broker) generateToken() string {
	return ulid.Make().String()
}
