//go:build integration

// Package integration exercises the controller end to end: manifests in,
// transport selection, relay channel brokering, the protocol handshake, and
// notification fan-in, against an in-process extension host. The suite is
// hermetic; no external services are involved.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cxp "github.com/opencxp/cxp-client-go"
)

// extensionHost is an in-process relay host. Every channel request is
// granted a fresh pipe, and an extensionServer plays the far side.
type extensionHost struct {
	cxp.RelayConn

	mu        sync.Mutex
	nextName  int
	channels  map[string]cxp.RelayConn
	servers   map[string]*extensionServer
	platforms map[string]json.RawMessage
	onReady   map[string][]map[string]any
}

func newExtensionHost() *extensionHost {
	controllerEnd, hostEnd := cxp.RelayPipe()

	h := &extensionHost{
		RelayConn: controllerEnd,
		channels:  make(map[string]cxp.RelayConn),
		servers:   make(map[string]*extensionServer),
		platforms: make(map[string]json.RawMessage),
		onReady:   make(map[string][]map[string]any),
	}

	go h.serve(hostEnd)

	return h
}

// scriptReady queues messages the extension sends right after its handshake
// completes. Must be called before the extension activates.
func (h *extensionHost) scriptReady(extensionID string, msgs ...map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.onReady[extensionID] = msgs
}

// serve answers channel requests until the control channel closes.
func (h *extensionHost) serve(control cxp.RelayConn) {
	for {
		msg, err := control.ReadMessage()
		if err != nil {
			return
		}

		req, err := cxp.ParseChannelRequest(msg)
		if err != nil {
			continue
		}

		extensionEnd, controllerEnd := cxp.RelayPipe()

		h.mu.Lock()

		h.nextName++
		name := fmt.Sprintf("chan-%d", h.nextName)
		h.channels[name] = controllerEnd
		h.platforms[req.ExtensionID] = req.Platform

		srv := &extensionServer{
			id:      req.ExtensionID,
			conn:    extensionEnd,
			onReady: h.onReady[req.ExtensionID],
		}
		h.servers[req.ExtensionID] = srv

		h.mu.Unlock()

		go srv.run()

		reply, err := json.Marshal(cxp.ChannelResponse{Token: req.Token, ChannelName: name})
		if err != nil {
			continue
		}

		if err := control.WriteMessage(reply); err != nil {
			return
		}
	}
}

// DialChannel hands out the controller end of a granted channel.
func (h *extensionHost) DialChannel(_ context.Context, name string) (cxp.RelayConn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.channels[name]
	if !ok {
		return nil, fmt.Errorf("unknown channel %q", name)
	}

	return conn, nil
}

// server returns the extension server spawned for the given extension.
func (h *extensionHost) server(extensionID string) *extensionServer {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.servers[extensionID]
}

// platform returns the platform descriptor that crossed the relay boundary
// for the given extension.
func (h *extensionHost) platform(extensionID string) json.RawMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.platforms[extensionID]
}

// extensionServer drives one extension's side of a relayed connection: it
// acknowledges the handshake, sends its scripted messages once initialized,
// and records everything notable it sees.
type extensionServer struct {
	id      string
	conn    cxp.RelayConn
	onReady []map[string]any

	mu         sync.Mutex
	initParams map[string]any
	responses  []map[string]any
	sawExit    bool
}

func (s *extensionServer) run() {
	for {
		msg, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		method, hasMethod := msg["method"].(string)
		if !hasMethod {
			// A response to a request this server sent.
			s.mu.Lock()
			s.responses = append(s.responses, msg)
			s.mu.Unlock()

			continue
		}

		switch method {
		case "initialize":
			s.mu.Lock()
			s.initParams, _ = msg["params"].(map[string]any)
			s.mu.Unlock()

			if !s.send(map[string]any{"id": msg["id"], "result": map[string]any{}}) {
				return
			}

		case "initialized":
			for _, ready := range s.onReady {
				if !s.send(ready) {
					return
				}
			}

		case "exit":
			s.mu.Lock()
			s.sawExit = true
			s.mu.Unlock()

			_ = s.conn.Close()

			return
		}
	}
}

func (s *extensionServer) send(msg map[string]any) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	return s.conn.WriteMessage(data) == nil
}

func (s *extensionServer) receivedExit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sawExit
}

func (s *extensionServer) initRootURI() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initParams == nil {
		return "", false
	}

	root, ok := s.initParams["rootUri"].(string)

	return root, ok
}

func (s *extensionServer) responseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.responses)
}

func (s *extensionServer) lastResponse() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.responses) == 0 {
		return nil
	}

	return s.responses[len(s.responses)-1]
}

// relayRecord declares an enabled extension reached through the relay.
func relayRecord(id, platformKind string) cxp.ExtensionRecord {
	manifest := fmt.Sprintf(
		`{"activationEvents": ["*"], "platform": {"type": %q, "url": "wss://extensions.test/%s"}}`,
		platformKind, id,
	)

	return cxp.ExtensionRecord{
		ID:       id,
		Enabled:  true,
		Manifest: json.RawMessage(manifest),
	}
}

// environmentOf converts records into a fresh environment snapshot.
func environmentOf(t *testing.T, records ...cxp.ExtensionRecord) cxp.Environment {
	t.Helper()

	return cxp.Environment{}.WithExtensions(cxp.ConvertRecords(cxp.NopLogger(), records))
}

// waitForState polls until the extension reports the wanted state.
func waitForState(t *testing.T, ctrl cxp.Controller, extensionID string, want cxp.ConnectionState) {
	t.Helper()

	require.Eventually(t, func() bool {
		return ctrl.States()[extensionID] == want
	}, 10*time.Second, 10*time.Millisecond)
}
