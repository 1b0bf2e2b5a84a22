package protocol

import (
	"context"
	"sync"

	"github.com/opencxp/cxp-client-go/internal/decoration"
	"github.com/opencxp/cxp-client-go/internal/errors"
)

// Methods spoken on an extension connection. The client sends initialize,
// initialized and exit; everything else arrives from the extension.
const (
	methodInitialize          = "initialize"
	methodInitialized         = "initialized"
	methodExit                = "exit"
	methodLogMessage          = "window/logMessage"
	methodShowMessage         = "window/showMessage"
	methodShowMessageRequest  = "window/showMessageRequest"
	methodPublishDecorations  = "textDocument/publishDecorations"
	methodConfigurationUpdate = "configuration/update"
)

// Request is a call that expects a response, correlated by id.
//
// Wire format:
//
//	{
//	  "id": "01HX3K...",
//	  "method": "initialize",
//	  "params": {...}
//	}
type Request struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Notification is a one-way message; no response is expected.
//
// Wire format:
//
//	{
//	  "method": "window/logMessage",
//	  "params": {...}
//	}
type Notification struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Response answers a request, carrying either a result or an error.
//
// Wire format:
//
//	{"id": "01HX3K...", "result": {...}}
//	{"id": "01HX3K...", "error": {"code": -32600, "message": "..."}}
type Response struct {
	ID     any
	Result any
	Error  *ResponseError
}

// IsError reports whether the response carries an error.
func (r *Response) IsError() bool {
	return r.Error != nil
}

// ResponseError is the error member of a failed response.
type ResponseError struct {
	Code    int
	Message string
}

// MessageType classifies window messages by severity.
type MessageType int

// Message severities, most severe first.
const (
	MessageTypeError   MessageType = 1
	MessageTypeWarning MessageType = 2
	MessageTypeInfo    MessageType = 3
	MessageTypeLog     MessageType = 4
)

// LogMessage is an informational message from an extension, tagged with the
// extension that produced it.
type LogMessage struct {
	ExtensionID string
	Type        MessageType
	Message     string
}

// UserMessage is a fire-and-forget message meant to be shown to the user. No
// acknowledgement is expected.
type UserMessage struct {
	ExtensionID string
	Type        MessageType
	Message     string
}

// MessageAction is one candidate answer to a MessageRequest.
type MessageAction struct {
	Title string `json:"title"`
}

// MessageRequest asks the user to pick one of the offered actions.
//
// Consumers must call Resolve exactly once per request: with the chosen
// action, or with nil when the user dismissed the prompt or no actions were
// offered.
type MessageRequest struct {
	ExtensionID string
	Type        MessageType
	Message     string
	Actions     []MessageAction

	id      any
	respond func(ctx context.Context, id any, result any) error

	mu       sync.Mutex
	resolved bool
}

// Resolve answers the request. Passing nil reports a dismissal. The first
// call wins; later calls return ErrAlreadyResolved without touching the
// connection.
func (r *MessageRequest) Resolve(ctx context.Context, action *MessageAction) error {
	r.mu.Lock()

	if r.resolved {
		r.mu.Unlock()

		return errors.ErrAlreadyResolved
	}

	r.resolved = true
	r.mu.Unlock()

	var result any
	if action != nil {
		result = action
	}

	return r.respond(ctx, r.id, result)
}

// DecorationsNotification publishes the full decoration set for a document.
// It replaces any set previously published by the same extension.
type DecorationsNotification struct {
	ExtensionID string
	URI         string
	Decorations []decoration.Decoration
}

// ConfigurationUpdate is an extension's request to change one settings
// value, addressed by key path.
type ConfigurationUpdate struct {
	ExtensionID string
	Path        []string
	Value       any
}

// initializeParams is the payload of the initialize request.
//
// Wire format:
//
//	{"rootUri": "file:///workspace", "settings": {...}}
type initializeParams struct {
	RootURI  *string `json:"rootUri"`
	Settings any     `json:"settings,omitempty"`
}

// messageParams is the payload of window/logMessage and window/showMessage.
type messageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// showMessageRequestParams is the payload of window/showMessageRequest.
type showMessageRequestParams struct {
	Type    MessageType     `json:"type"`
	Message string          `json:"message"`
	Actions []MessageAction `json:"actions,omitempty"`
}

// publishDecorationsParams is the payload of textDocument/publishDecorations.
type publishDecorationsParams struct {
	TextDocument textDocumentIdentifier  `json:"textDocument"`
	Decorations  []decoration.Decoration `json:"decorations"`
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

// configurationUpdateParams is the payload of configuration/update.
type configurationUpdateParams struct {
	Path  []string `json:"path"`
	Value any      `json:"value"`
}
