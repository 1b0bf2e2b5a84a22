package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	cxperrors "github.com/opencxp/cxp-client-go/internal/errors"
	"github.com/opencxp/cxp-client-go/internal/manifest"
)

// pipeHost is a Host over one end of an in-memory pipe, handing out
// pre-registered conns for dialed channel names.
type pipeHost struct {
	Conn

	mu       sync.Mutex
	channels map[string]Conn
	dialed   []string
}

func newPipeHost(control Conn) *pipeHost {
	return &pipeHost{Conn: control, channels: make(map[string]Conn)}
}

func (h *pipeHost) register(name string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.channels[name] = conn
}

func (h *pipeHost) DialChannel(_ context.Context, name string) (Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dialed = append(h.dialed, name)

	conn, ok := h.channels[name]
	if !ok {
		return nil, fmt.Errorf("no such channel: %s", name)
	}

	return conn, nil
}

func (h *pipeHost) dialedNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]string, len(h.dialed))
	copy(result, h.dialed)

	return result
}

// respond writes a ChannelResponse to the host end of the control channel.
func respond(t *testing.T, hostEnd Conn, resp *ChannelResponse) {
	t.Helper()

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	require.NoError(t, hostEnd.WriteMessage(data))
}

// connectResult carries one Connect outcome across goroutines.
type connectResult struct {
	conn Conn
	err  error
}

func TestBroker_Connect_Success(t *testing.T) {
	control, hostEnd := Pipe()
	host := newPipeHost(control)

	dedicated, _ := Pipe()
	host.register("c1", dedicated)

	broker := NewBroker(slog.Default(), host)
	broker.Start()

	defer broker.Close()

	results := make(chan connectResult, 1)

	go func() {
		conn, err := broker.Connect(context.Background(), "lang/x", &manifest.WebSocketPlatform{URL: "wss://h/x"})
		results <- connectResult{conn, err}
	}()

	msg, err := hostEnd.ReadMessage()
	require.NoError(t, err)

	req, err := ParseChannelRequest(msg)
	require.NoError(t, err)
	require.NotEmpty(t, req.Token)
	require.Equal(t, "lang/x", req.ExtensionID)
	require.JSONEq(t, `{"type":"websocket","url":"wss://h/x"}`, string(req.Platform))

	respond(t, hostEnd, &ChannelResponse{Token: req.Token, ChannelName: "c1"})

	res := <-results
	require.NoError(t, res.err)
	require.Same(t, dedicated, res.conn)
	require.Equal(t, []string{"c1"}, host.dialedNames())
}

func TestBroker_Connect_RelayError(t *testing.T) {
	control, hostEnd := Pipe()
	broker := NewBroker(slog.Default(), newPipeHost(control))
	broker.Start()

	defer broker.Close()

	results := make(chan connectResult, 1)

	go func() {
		conn, err := broker.Connect(context.Background(), "x", &manifest.BundlePlatform{Location: "https://h/x.js"})
		results <- connectResult{conn, err}
	}()

	msg, err := hostEnd.ReadMessage()
	require.NoError(t, err)

	req, err := ParseChannelRequest(msg)
	require.NoError(t, err)

	respond(t, hostEnd, &ChannelResponse{Token: req.Token, Error: "no such bundle"})

	res := <-results
	require.Nil(t, res.conn)

	var relayErr *cxperrors.RelayError
	require.ErrorAs(t, res.err, &relayErr)
	require.Equal(t, "x", relayErr.ExtensionID)
	require.Equal(t, "no such bundle", relayErr.Message)
}

func TestBroker_Connect_CorrelatesByToken(t *testing.T) {
	// Two activations race on the shared control channel; responses arrive
	// in reverse order and must still reach the right callers.
	control, hostEnd := Pipe()
	host := newPipeHost(control)

	chanX, _ := Pipe()
	chanY, _ := Pipe()
	host.register("cx", chanX)
	host.register("cy", chanY)

	broker := NewBroker(slog.Default(), host)
	broker.Start()

	defer broker.Close()

	xResults := make(chan connectResult, 1)
	yResults := make(chan connectResult, 1)

	go func() {
		conn, err := broker.Connect(context.Background(), "x", &manifest.BundlePlatform{Location: "https://h/x.js"})
		xResults <- connectResult{conn, err}
	}()

	go func() {
		conn, err := broker.Connect(context.Background(), "y", &manifest.BundlePlatform{Location: "https://h/y.js"})
		yResults <- connectResult{conn, err}
	}()

	reqs := make(map[string]*ChannelRequest, 2)

	for range 2 {
		msg, err := hostEnd.ReadMessage()
		require.NoError(t, err)

		req, err := ParseChannelRequest(msg)
		require.NoError(t, err)

		reqs[req.ExtensionID] = req
	}

	require.Len(t, reqs, 2)

	respond(t, hostEnd, &ChannelResponse{Token: reqs["y"].Token, ChannelName: "cy"})
	respond(t, hostEnd, &ChannelResponse{Token: reqs["x"].Token, ChannelName: "cx"})

	xr := <-xResults
	require.NoError(t, xr.err)
	require.Same(t, chanX, xr.conn)

	yr := <-yResults
	require.NoError(t, yr.err)
	require.Same(t, chanY, yr.conn)
}

func TestBroker_UnknownTokenDropped(t *testing.T) {
	control, hostEnd := Pipe()
	host := newPipeHost(control)

	dedicated, _ := Pipe()
	host.register("c1", dedicated)

	broker := NewBroker(slog.Default(), host)
	broker.Start()

	defer broker.Close()

	results := make(chan connectResult, 1)

	go func() {
		conn, err := broker.Connect(context.Background(), "x", &manifest.WebSocketPlatform{URL: "wss://h/x"})
		results <- connectResult{conn, err}
	}()

	msg, err := hostEnd.ReadMessage()
	require.NoError(t, err)

	req, err := ParseChannelRequest(msg)
	require.NoError(t, err)

	// A stray response for a token nobody asked about must be dropped.
	respond(t, hostEnd, &ChannelResponse{Token: "01BOGUSBOGUSBOGUSBOGUSBOGU", ChannelName: "nope"})
	respond(t, hostEnd, &ChannelResponse{Token: req.Token, ChannelName: "c1"})

	res := <-results
	require.NoError(t, res.err)
	require.Same(t, dedicated, res.conn)
	require.Equal(t, []string{"c1"}, host.dialedNames())
}

func TestBroker_Connect_MissingChannelName(t *testing.T) {
	control, hostEnd := Pipe()
	broker := NewBroker(slog.Default(), newPipeHost(control))
	broker.Start()

	defer broker.Close()

	results := make(chan connectResult, 1)

	go func() {
		conn, err := broker.Connect(context.Background(), "x", &manifest.WebSocketPlatform{URL: "wss://h/x"})
		results <- connectResult{conn, err}
	}()

	msg, err := hostEnd.ReadMessage()
	require.NoError(t, err)

	req, err := ParseChannelRequest(msg)
	require.NoError(t, err)

	respond(t, hostEnd, &ChannelResponse{Token: req.Token})

	res := <-results

	var relayErr *cxperrors.RelayError
	require.ErrorAs(t, res.err, &relayErr)
	require.Equal(t, "x", relayErr.ExtensionID)
}

func TestBroker_Close_FailsWaiters(t *testing.T) {
	control, hostEnd := Pipe()
	broker := NewBroker(slog.Default(), newPipeHost(control))
	broker.Start()

	results := make(chan connectResult, 1)

	go func() {
		conn, err := broker.Connect(context.Background(), "x", &manifest.WebSocketPlatform{URL: "wss://h/x"})
		results <- connectResult{conn, err}
	}()

	// Wait for the request to reach the host so Connect is parked.
	_, err := hostEnd.ReadMessage()
	require.NoError(t, err)

	require.NoError(t, broker.Close())

	res := <-results
	require.ErrorIs(t, res.err, cxperrors.ErrRelayClosed)
}

func TestBroker_ControlChannelFailure(t *testing.T) {
	control, hostEnd := Pipe()
	broker := NewBroker(slog.Default(), newPipeHost(control))
	broker.Start()

	defer broker.Close()

	results := make(chan connectResult, 1)

	go func() {
		conn, err := broker.Connect(context.Background(), "x", &manifest.WebSocketPlatform{URL: "wss://h/x"})
		results <- connectResult{conn, err}
	}()

	_, err := hostEnd.ReadMessage()
	require.NoError(t, err)

	// Drop the control channel out from under the broker.
	require.NoError(t, hostEnd.Close())

	res := <-results
	require.ErrorIs(t, res.err, io.ErrClosedPipe)
	require.ErrorIs(t, broker.FatalError(), io.ErrClosedPipe)

	select {
	case <-broker.Done():
		// Expected
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestBroker_Connect_ContextCancelled(t *testing.T) {
	control, hostEnd := Pipe()
	broker := NewBroker(slog.Default(), newPipeHost(control))
	broker.Start()

	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())

	results := make(chan connectResult, 1)

	go func() {
		conn, err := broker.Connect(ctx, "x", &manifest.WebSocketPlatform{URL: "wss://h/x"})
		results <- connectResult{conn, err}
	}()

	_, err := hostEnd.ReadMessage()
	require.NoError(t, err)

	cancel()

	res := <-results
	require.ErrorIs(t, res.err, context.Canceled)
}

func TestBroker_Close_MultipleCalls(t *testing.T) {
	control, _ := Pipe()
	broker := NewBroker(slog.Default(), newPipeHost(control))
	broker.Start()

	require.NoError(t, broker.Close())
	require.NoError(t, broker.Close())
}

func TestPipe_RoundTrip(t *testing.T) {
	a, b := Pipe()

	require.NoError(t, a.WriteMessage([]byte(`{"hello":"world"}`)))

	msg, err := b.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, map[string]any{"hello": "world"}, msg)

	require.NoError(t, b.Close())

	_, err = a.ReadMessage()
	require.ErrorIs(t, err, io.ErrClosedPipe)
	require.ErrorIs(t, a.WriteMessage([]byte(`{}`)), io.ErrClosedPipe)
}

func TestParseChannelRequest_MissingFields(t *testing.T) {
	_, err := ParseChannelRequest(map[string]any{"extensionId": "x"})
	require.Error(t, err)

	_, err = ParseChannelRequest(map[string]any{"token": "t"})
	require.Error(t, err)
}
