package protocol

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/opencxp/cxp-client-go/internal/config"
	"github.com/opencxp/cxp-client-go/internal/errors"
)

// Client speaks the extension protocol on behalf of a single connection.
//
// The Client handles:
//   - Sending requests with unique request ids and routing responses back
//     to the waiting caller
//   - Fanning inbound notifications out to typed channels, each value
//     tagged with the owning extension id
//   - Surfacing extension-initiated message requests whose answers travel
//     back through MessageRequest.Resolve
//
// The Client must be started with Start() before use and manages its own
// goroutine for reading and routing messages. It never closes the
// transport; the connection owner does that.
type Client struct {
	log         *slog.Logger
	extensionID string
	transport   config.Transport

	// Request tracking
	pendingMu sync.Mutex
	pending   map[string]chan *Response

	// Inbound notification surfaces
	logMessages   chan LogMessage
	messages      chan UserMessage
	messageReqs   chan *MessageRequest
	decorations   chan DecorationsNotification
	configUpdates chan ConfigurationUpdate

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// notificationBuffer sizes each typed channel so a briefly slow consumer
// does not stall the read loop.
const notificationBuffer = 16

// NewClient creates a protocol client for one extension connection.
//
// The transport must be connected before calling Start().
func NewClient(log *slog.Logger, extensionID string, transport config.Transport) *Client {
	return &Client{
		log:           log.With("component", "protocol", "extension_id", extensionID),
		extensionID:   extensionID,
		transport:     transport,
		pending:       make(map[string]chan *Response, 4),
		logMessages:   make(chan LogMessage, notificationBuffer),
		messages:      make(chan UserMessage, notificationBuffer),
		messageReqs:   make(chan *MessageRequest, notificationBuffer),
		decorations:   make(chan DecorationsNotification, notificationBuffer),
		configUpdates: make(chan ConfigurationUpdate, notificationBuffer),
		done:          make(chan struct{}),
	}
}

// closeDone safely closes the done channel exactly once.
func (c *Client) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// setFatalError stores a fatal error and broadcasts to all waiters by
// closing done.
func (c *Client) setFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the transport error that stopped the client, if any.
func (c *Client) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the client stops.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Start begins reading messages from the transport and routing them.
//
// This method spawns a goroutine that routes responses to waiting requests
// and notifications to the typed channels. The goroutine stops when the
// context is cancelled, the transport fails or Close is called.
func (c *Client) Start(ctx context.Context) {
	c.log.Debug("Starting protocol client")

	messages, errs := c.transport.ReadMessages(ctx)

	c.wg.Add(1)

	go c.readLoop(ctx, messages, errs)
}

// Close stops the read loop and closes the notification channels. It does
// not close the transport. Safe to call multiple times.
func (c *Client) Close() error {
	c.log.Debug("Stopping protocol client")

	c.closeDone()
	c.wg.Wait()

	return nil
}

// LogMessages returns the channel of window/logMessage notifications.
// Closed when the client stops.
func (c *Client) LogMessages() <-chan LogMessage {
	return c.logMessages
}

// Messages returns the channel of window/showMessage notifications.
// Closed when the client stops.
func (c *Client) Messages() <-chan UserMessage {
	return c.messages
}

// MessageRequests returns the channel of window/showMessageRequest requests.
// Each must be resolved exactly once. Closed when the client stops.
func (c *Client) MessageRequests() <-chan *MessageRequest {
	return c.messageReqs
}

// Decorations returns the channel of textDocument/publishDecorations
// notifications. Closed when the client stops.
func (c *Client) Decorations() <-chan DecorationsNotification {
	return c.decorations
}

// ConfigurationUpdates returns the channel of configuration/update
// notifications. Closed when the client stops.
func (c *Client) ConfigurationUpdates() <-chan ConfigurationUpdate {
	return c.configUpdates
}

// Initialize performs the connection handshake: an initialize request
// carrying the root URI and the extension's merged settings, acknowledged
// by the extension, followed by an initialized notification.
//
// A failure at either step is returned as a HandshakeError. There is no
// timeout beyond what ctx imposes.
func (c *Client) Initialize(ctx context.Context, root *string, settings any) error {
	params := initializeParams{RootURI: root, Settings: settings}

	if _, err := c.sendRequest(ctx, methodInitialize, params); err != nil {
		return &errors.HandshakeError{ExtensionID: c.extensionID, Err: err}
	}

	if err := c.sendNotification(ctx, methodInitialized, nil); err != nil {
		return &errors.HandshakeError{ExtensionID: c.extensionID, Err: err}
	}

	c.log.Debug("Handshake complete")

	return nil
}

// NotifyExit tells the extension the connection is about to close. Best
// effort: failures are logged and swallowed since teardown proceeds either
// way.
func (c *Client) NotifyExit(ctx context.Context) {
	if err := c.sendNotification(ctx, methodExit, nil); err != nil {
		c.log.Debug("Failed to send exit notification", "error", err)
	}
}

// sendRequest sends a request and blocks until the matching response
// arrives, the client stops, or ctx is done.
func (c *Client) sendRequest(ctx context.Context, method string, params any) (*Response, error) {
	requestID := ulid.Make().String()

	c.log.Debug("Sending request", "request_id", requestID, "method", method)

	responseChan := make(chan *Response, 1)

	c.pendingMu.Lock()
	c.pending[requestID] = responseChan
	c.pendingMu.Unlock()

	req := &Request{ID: requestID, Method: method, Params: params}

	data, err := json.Marshal(req)
	if err != nil {
		c.removePending(requestID)

		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		c.removePending(requestID)

		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case resp := <-responseChan:
		if resp.IsError() {
			c.log.Warn("Request returned error",
				"request_id", requestID,
				"method", method,
				"error", resp.Error.Message,
			)

			return nil, fmt.Errorf("request error: %s", resp.Error.Message)
		}

		return resp, nil

	case <-c.done:
		c.removePending(requestID)

		if err := c.FatalError(); err != nil {
			return nil, fmt.Errorf("transport error: %w", err)
		}

		return nil, errors.ErrTransportClosed

	case <-ctx.Done():
		c.removePending(requestID)

		return nil, ctx.Err()
	}
}

// sendNotification sends a one-way message.
func (c *Client) sendNotification(ctx context.Context, method string, params any) error {
	notif := &Notification{Method: method, Params: params}

	data, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	return nil
}

// removePending discards the response channel for a request that will not
// be answered.
func (c *Client) removePending(requestID string) {
	c.pendingMu.Lock()
	delete(c.pending, requestID)
	c.pendingMu.Unlock()
}

// readLoop reads messages from the transport and routes them.
func (c *Client) readLoop(
	ctx context.Context,
	messages <-chan map[string]any,
	errs <-chan error,
) {
	defer c.wg.Done()
	defer c.closeChannels()
	defer c.log.Debug("Protocol read loop stopped")

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				c.log.Debug("Message channel closed")

				return
			}

			c.handleMessage(ctx, msg)

		case err, ok := <-errs:
			if !ok {
				c.log.Debug("Error channel closed")

				return
			}

			if err == nil {
				continue
			}

			// A frame that failed to decode is dropped; the connection
			// stays up for the valid frames around it.
			if _, ok := stderrors.AsType[*errors.MessageDecodeError](err); ok {
				c.log.Warn("Dropping malformed frame", "error", err)

				continue
			}

			c.log.Debug("Transport error in protocol client", "error", err)
			c.setFatalError(err)

			return

		case <-c.done:
			c.log.Debug("Protocol client stop signal received")

			return

		case <-ctx.Done():
			c.log.Debug("Context cancelled in protocol read loop")

			return
		}
	}
}

// closeChannels closes every notification channel so downstream forwarders
// observe the end of this connection.
func (c *Client) closeChannels() {
	close(c.logMessages)
	close(c.messages)
	close(c.messageReqs)
	close(c.decorations)
	close(c.configUpdates)
}

// handleMessage routes one inbound message by shape: requests carry both a
// method and an id, notifications only a method, responses only an id.
func (c *Client) handleMessage(ctx context.Context, msg map[string]any) {
	method, hasMethod := msg["method"].(string)
	_, hasID := msg["id"]

	switch {
	case hasMethod && hasID:
		c.handleRequest(ctx, msg, method)

	case hasMethod:
		c.handleNotification(ctx, msg, method)

	case hasID:
		c.handleResponse(msg)

	default:
		c.log.Warn("Message carries neither method nor id, dropping")
	}
}

// handleResponse routes a response to the waiting request.
func (c *Client) handleResponse(msg map[string]any) {
	id, ok := msg["id"].(string)
	if !ok {
		c.log.Warn("Response id is not a string, dropping")

		return
	}

	// Find and claim the pending request atomically.
	c.pendingMu.Lock()

	pending, exists := c.pending[id]
	if exists {
		delete(c.pending, id)
	}

	c.pendingMu.Unlock()

	if !exists {
		c.log.Warn("No pending request for response", "request_id", id)

		return
	}

	resp := &Response{ID: id, Result: msg["result"]}

	if errData, ok := msg["error"].(map[string]any); ok {
		respErr := &ResponseError{}

		if message, ok := errData["message"].(string); ok {
			respErr.Message = message
		}

		if code, ok := errData["code"].(float64); ok {
			respErr.Code = int(code)
		}

		resp.Error = respErr
	}

	// We own the channel now; it is buffered, so this never blocks.
	pending <- resp
}

// handleNotification decodes a notification and delivers it to its typed
// channel. Malformed payloads are logged and dropped; they never stop the
// connection.
func (c *Client) handleNotification(ctx context.Context, msg map[string]any, method string) {
	switch method {
	case methodLogMessage:
		var params messageParams
		if err := decodeParams(msg, &params); err != nil {
			c.log.Warn("Malformed logMessage notification", "error", err)

			return
		}

		c.deliverLogMessage(ctx, LogMessage{
			ExtensionID: c.extensionID,
			Type:        params.Type,
			Message:     params.Message,
		})

	case methodShowMessage:
		var params messageParams
		if err := decodeParams(msg, &params); err != nil {
			c.log.Warn("Malformed showMessage notification", "error", err)

			return
		}

		c.deliverMessage(ctx, UserMessage{
			ExtensionID: c.extensionID,
			Type:        params.Type,
			Message:     params.Message,
		})

	case methodPublishDecorations:
		var params publishDecorationsParams
		if err := decodeParams(msg, &params); err != nil {
			c.log.Warn("Malformed publishDecorations notification", "error", err)

			return
		}

		c.deliverDecorations(ctx, DecorationsNotification{
			ExtensionID: c.extensionID,
			URI:         params.TextDocument.URI,
			Decorations: params.Decorations,
		})

	case methodConfigurationUpdate:
		var params configurationUpdateParams
		if err := decodeParams(msg, &params); err != nil {
			c.log.Warn("Malformed configuration update", "error", err)

			return
		}

		c.deliverConfigurationUpdate(ctx, ConfigurationUpdate{
			ExtensionID: c.extensionID,
			Path:        params.Path,
			Value:       params.Value,
		})

	default:
		c.log.Debug("Unhandled notification", "method", method)
	}
}

// handleRequest answers an extension-initiated request. Only
// window/showMessageRequest is supported; anything else is rejected so the
// extension is not left waiting.
func (c *Client) handleRequest(ctx context.Context, msg map[string]any, method string) {
	id := msg["id"]

	if method != methodShowMessageRequest {
		c.log.Warn("No handler for extension request", "method", method)
		c.sendErrorResponse(ctx, id, fmt.Sprintf("unsupported method %q", method))

		return
	}

	var params showMessageRequestParams
	if err := decodeParams(msg, &params); err != nil {
		c.log.Warn("Malformed showMessageRequest", "error", err)
		c.sendErrorResponse(ctx, id, err.Error())

		return
	}

	req := &MessageRequest{
		ExtensionID: c.extensionID,
		Type:        params.Type,
		Message:     params.Message,
		Actions:     params.Actions,
		id:          id,
		respond:     c.sendResultResponse,
	}

	select {
	case c.messageReqs <- req:
	case <-c.done:
	case <-ctx.Done():
	}
}

// sendResultResponse answers an extension request with a result, which may
// be nil for dismissals.
func (c *Client) sendResultResponse(ctx context.Context, id any, result any) error {
	// Built as a map so a nil result still marshals as an explicit null.
	data, err := json.Marshal(map[string]any{"id": id, "result": result})
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		return fmt.Errorf("send response: %w", err)
	}

	return nil
}

// sendErrorResponse answers an extension request with an error.
func (c *Client) sendErrorResponse(ctx context.Context, id any, errMsg string) {
	data, err := json.Marshal(map[string]any{
		"id":    id,
		"error": map[string]any{"message": errMsg},
	})
	if err != nil {
		c.log.Error("Failed to marshal error response", "error", err)

		return
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		// Expected during shutdown; keep it quiet then.
		if ctx.Err() != nil {
			c.log.Debug("Could not send error response during shutdown", "error", err)

			return
		}

		c.log.Error("Failed to send error response", "error", err)
	}
}

// deliverLogMessage forwards a log message unless the client is stopping.
func (c *Client) deliverLogMessage(ctx context.Context, m LogMessage) {
	select {
	case c.logMessages <- m:
	case <-c.done:
	case <-ctx.Done():
	}
}

func (c *Client) deliverMessage(ctx context.Context, m UserMessage) {
	select {
	case c.messages <- m:
	case <-c.done:
	case <-ctx.Done():
	}
}

func (c *Client) deliverDecorations(ctx context.Context, n DecorationsNotification) {
	select {
	case c.decorations <- n:
	case <-c.done:
	case <-ctx.Done():
	}
}

func (c *Client) deliverConfigurationUpdate(ctx context.Context, u ConfigurationUpdate) {
	select {
	case c.configUpdates <- u:
	case <-c.done:
	case <-ctx.Done():
	}
}

// decodeParams unmarshals a notification's params member into v.
func decodeParams(msg map[string]any, v any) error {
	params, ok := msg["params"]
	if !ok {
		return fmt.Errorf("missing 'params' field")
	}

	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal params: %w", err)
	}

	return nil
}
