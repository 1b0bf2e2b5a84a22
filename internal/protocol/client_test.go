package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencxp/cxp-client-go/internal/decoration"
	cxperrors "github.com/opencxp/cxp-client-go/internal/errors"
)

// mockTransport captures outbound messages and lets tests inject inbound
// ones.
type mockTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	msgChan chan map[string]any
	errChan chan error
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		msgChan: make(chan map[string]any, 10),
		errChan: make(chan error, 1),
	}
}

func (m *mockTransport) ReadMessages(_ context.Context) (<-chan map[string]any, <-chan error) {
	return m.msgChan, m.errChan
}

func (m *mockTransport) SendMessage(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}

	m.sent = append(m.sent, data)

	return nil
}

func (m *mockTransport) Close() error {
	return nil
}

// inject delivers an inbound message to the client under test.
func (m *mockTransport) inject(msg map[string]any) {
	m.msgChan <- msg
}

// sentMessages returns every outbound message decoded back into a map.
func (m *mockTransport) sentMessages() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]map[string]any, 0, len(m.sent))

	for _, data := range m.sent {
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err == nil {
			out = append(out, msg)
		}
	}

	return out
}

// waitForSent blocks until the transport has seen at least n outbound
// messages.
func waitForSent(t *testing.T, transport *mockTransport, n int) []map[string]any {
	t.Helper()

	var sent []map[string]any

	require.Eventually(t, func() bool {
		sent = transport.sentMessages()

		return len(sent) >= n
	}, 5*time.Second, 10*time.Millisecond)

	return sent
}

func startedClient(t *testing.T, extensionID string) (*Client, *mockTransport) {
	t.Helper()

	transport := newMockTransport()
	client := NewClient(slog.Default(), extensionID, transport)
	client.Start(context.Background())

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, transport
}

func TestClient_Initialize(t *testing.T) {
	client, transport := startedClient(t, "ext.one")

	root := "file:///workspace"
	settings := map[string]any{"trace": "verbose"}

	initErr := make(chan error, 1)

	go func() {
		initErr <- client.Initialize(context.Background(), &root, settings)
	}()

	sent := waitForSent(t, transport, 1)
	req := sent[0]

	require.Equal(t, "initialize", req["method"])

	id, ok := req["id"].(string)
	require.True(t, ok, "request id must be a string")
	require.NotEmpty(t, id)

	params, ok := req["params"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "file:///workspace", params["rootUri"])
	require.Equal(t, map[string]any{"trace": "verbose"}, params["settings"])

	transport.inject(map[string]any{"id": id, "result": map[string]any{}})

	select {
	case err := <-initErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handshake")
	}

	// The handshake finishes with an initialized notification.
	sent = waitForSent(t, transport, 2)
	require.Equal(t, "initialized", sent[1]["method"])
	require.NotContains(t, sent[1], "id")
}

func TestClient_Initialize_RejectedByExtension(t *testing.T) {
	client, transport := startedClient(t, "ext.one")

	initErr := make(chan error, 1)

	go func() {
		initErr <- client.Initialize(context.Background(), nil, nil)
	}()

	sent := waitForSent(t, transport, 1)
	id := sent[0]["id"].(string)

	transport.inject(map[string]any{
		"id":    id,
		"error": map[string]any{"code": float64(-32600), "message": "unsupported version"},
	})

	select {
	case err := <-initErr:
		var handshake *cxperrors.HandshakeError
		require.ErrorAs(t, err, &handshake)
		require.Equal(t, "ext.one", handshake.ExtensionID)
		require.Contains(t, err.Error(), "unsupported version")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handshake failure")
	}

	// No initialized notification follows a failed handshake.
	require.Len(t, transport.sentMessages(), 1)
}

func TestClient_Initialize_TransportFailure(t *testing.T) {
	client, transport := startedClient(t, "ext.one")

	initErr := make(chan error, 1)

	go func() {
		initErr <- client.Initialize(context.Background(), nil, nil)
	}()

	waitForSent(t, transport, 1)

	readFailure := errors.New("connection reset")
	transport.errChan <- readFailure

	select {
	case err := <-initErr:
		var handshake *cxperrors.HandshakeError
		require.ErrorAs(t, err, &handshake)
		require.ErrorIs(t, err, readFailure)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handshake failure")
	}

	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop after transport failure")
	}

	require.ErrorIs(t, client.FatalError(), readFailure)
}

func TestClient_MalformedFrameDoesNotStopClient(t *testing.T) {
	client, transport := startedClient(t, "ext.one")

	transport.errChan <- &cxperrors.MessageDecodeError{
		RawData: "][ not json",
		Err:     errors.New("invalid character ']'"),
	}

	transport.inject(map[string]any{
		"method": "window/logMessage",
		"params": map[string]any{"type": float64(4), "message": "still here"},
	})

	select {
	case m := <-client.LogMessages():
		require.Equal(t, "still here", m.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for log message after malformed frame")
	}

	require.NoError(t, client.FatalError())

	select {
	case <-client.Done():
		t.Fatal("client stopped on a malformed frame")
	default:
	}
}

func TestClient_LogMessageNotification(t *testing.T) {
	client, transport := startedClient(t, "ext.one")

	// A malformed notification is dropped without stopping the client.
	transport.inject(map[string]any{
		"method": "window/logMessage",
		"params": "not an object",
	})

	transport.inject(map[string]any{
		"method": "window/logMessage",
		"params": map[string]any{"type": float64(3), "message": "indexing done"},
	})

	select {
	case m := <-client.LogMessages():
		require.Equal(t, LogMessage{
			ExtensionID: "ext.one",
			Type:        MessageTypeInfo,
			Message:     "indexing done",
		}, m)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for log message")
	}
}

func TestClient_ShowMessageNotification(t *testing.T) {
	client, transport := startedClient(t, "ext.one")

	transport.inject(map[string]any{
		"method": "window/showMessage",
		"params": map[string]any{"type": float64(2), "message": "config out of date"},
	})

	select {
	case m := <-client.Messages():
		require.Equal(t, UserMessage{
			ExtensionID: "ext.one",
			Type:        MessageTypeWarning,
			Message:     "config out of date",
		}, m)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for user message")
	}
}

func TestClient_MessageRequest_ResolveExactlyOnce(t *testing.T) {
	client, transport := startedClient(t, "ext.one")

	transport.inject(map[string]any{
		"id":     "42",
		"method": "window/showMessageRequest",
		"params": map[string]any{
			"type":    float64(1),
			"message": "Proceed with upgrade?",
			"actions": []any{
				map[string]any{"title": "Yes"},
				map[string]any{"title": "No"},
			},
		},
	})

	var req *MessageRequest

	select {
	case req = <-client.MessageRequests():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message request")
	}

	require.Equal(t, "ext.one", req.ExtensionID)
	require.Equal(t, "Proceed with upgrade?", req.Message)
	require.Equal(t, []MessageAction{{Title: "Yes"}, {Title: "No"}}, req.Actions)

	require.NoError(t, req.Resolve(context.Background(), &req.Actions[0]))

	sent := waitForSent(t, transport, 1)
	require.Equal(t, "42", sent[0]["id"])
	require.Equal(t, map[string]any{"title": "Yes"}, sent[0]["result"])

	// The second resolution must not reach the wire.
	require.ErrorIs(
		t,
		req.Resolve(context.Background(), &req.Actions[1]),
		cxperrors.ErrAlreadyResolved,
	)
	require.Len(t, transport.sentMessages(), 1)
}

func TestClient_MessageRequest_NilResolutionIsDismissal(t *testing.T) {
	client, transport := startedClient(t, "ext.one")

	transport.inject(map[string]any{
		"id":     float64(7),
		"method": "window/showMessageRequest",
		"params": map[string]any{"type": float64(3), "message": "FYI"},
	})

	var req *MessageRequest

	select {
	case req = <-client.MessageRequests():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message request")
	}

	require.Empty(t, req.Actions)
	require.NoError(t, req.Resolve(context.Background(), nil))

	sent := waitForSent(t, transport, 1)

	// Numeric wire ids are echoed back untouched, and a dismissal carries
	// an explicit null result.
	require.Equal(t, float64(7), sent[0]["id"])

	result, ok := sent[0]["result"]
	require.True(t, ok, "dismissal must carry an explicit result member")
	require.Nil(t, result)
}

func TestClient_DecorationsNotification(t *testing.T) {
	client, transport := startedClient(t, "ext.one")

	transport.inject(map[string]any{
		"method": "textDocument/publishDecorations",
		"params": map[string]any{
			"textDocument": map[string]any{"uri": "file:///main.go"},
			"decorations": []any{
				map[string]any{
					"line":            float64(7),
					"backgroundColor": "#ff0",
					"after":           map[string]any{"contentText": "3 references"},
				},
			},
		},
	})

	select {
	case n := <-client.Decorations():
		require.Equal(t, DecorationsNotification{
			ExtensionID: "ext.one",
			URI:         "file:///main.go",
			Decorations: []decoration.Decoration{
				{
					Line:            7,
					BackgroundColor: "#ff0",
					After:           &decoration.Attachment{Text: "3 references"},
				},
			},
		}, n)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for decorations")
	}
}

func TestClient_ConfigurationUpdateNotification(t *testing.T) {
	client, transport := startedClient(t, "ext.one")

	transport.inject(map[string]any{
		"method": "configuration/update",
		"params": map[string]any{
			"path":  []any{"lang", "trace"},
			"value": "verbose",
		},
	})

	select {
	case u := <-client.ConfigurationUpdates():
		require.Equal(t, ConfigurationUpdate{
			ExtensionID: "ext.one",
			Path:        []string{"lang", "trace"},
			Value:       "verbose",
		}, u)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for configuration update")
	}
}

func TestClient_UnsupportedRequestRejected(t *testing.T) {
	_, transport := startedClient(t, "ext.one")

	transport.inject(map[string]any{
		"id":     "9",
		"method": "workspace/applyEdit",
		"params": map[string]any{},
	})

	sent := waitForSent(t, transport, 1)
	require.Equal(t, "9", sent[0]["id"])

	errData, ok := sent[0]["error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, `unsupported method "workspace/applyEdit"`, errData["message"])
}

func TestClient_UnknownResponseDropped(t *testing.T) {
	client, transport := startedClient(t, "ext.one")

	transport.inject(map[string]any{"id": "never-sent", "result": map[string]any{}})

	// The client keeps routing messages after the stray response.
	transport.inject(map[string]any{
		"method": "window/logMessage",
		"params": map[string]any{"type": float64(4), "message": "still alive"},
	})

	select {
	case m := <-client.LogMessages():
		require.Equal(t, "still alive", m.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for log message")
	}
}

func TestClient_CloseClosesNotificationChannels(t *testing.T) {
	client, _ := startedClient(t, "ext.one")

	require.NoError(t, client.Close())
	require.NoError(t, client.Close()) // safe to call again

	_, ok := <-client.LogMessages()
	require.False(t, ok)

	_, ok = <-client.Messages()
	require.False(t, ok)

	_, ok = <-client.MessageRequests()
	require.False(t, ok)

	_, ok = <-client.Decorations()
	require.False(t, ok)

	_, ok = <-client.ConfigurationUpdates()
	require.False(t, ok)
}

func TestClient_RequestAfterCloseFails(t *testing.T) {
	client, _ := startedClient(t, "ext.one")

	require.NoError(t, client.Close())

	err := client.Initialize(context.Background(), nil, nil)

	var handshake *cxperrors.HandshakeError
	require.ErrorAs(t, err, &handshake)
	require.ErrorIs(t, err, cxperrors.ErrTransportClosed)
}
