package registry

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencxp/cxp-client-go/internal/environment"
	"github.com/opencxp/cxp-client-go/internal/errors"
	"github.com/opencxp/cxp-client-go/internal/manifest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConvertRecord_ValidManifest(t *testing.T) {
	t.Parallel()

	rec := Record{
		ID:       "lang/go",
		Enabled:  true,
		Settings: map[string]any{"trace": true},
		Manifest: json.RawMessage(`{
			"id": "lang/go",
			"activationEvents": ["onLanguage:go"],
			"platform": {"type": "websocket", "url": "wss://ext.test/go"}
		}`),
	}

	ext := ConvertRecord(testLogger(), rec)

	require.Equal(t, "lang/go", ext.ID)
	require.True(t, ext.Enabled)
	require.Equal(t, map[string]any{"trace": true}, ext.Settings)
	require.NoError(t, ext.ManifestErr)
	require.NotNil(t, ext.Manifest)
	require.Equal(t, []string{"onLanguage:go"}, ext.Manifest.ActivationEvents)

	ws, ok := ext.Manifest.Platform.(*manifest.WebSocketPlatform)
	require.True(t, ok)
	require.Equal(t, "wss://ext.test/go", ws.URL)
}

func TestConvertRecord_FillsManifestID(t *testing.T) {
	t.Parallel()

	rec := Record{
		ID:       "lang/python",
		Enabled:  true,
		Manifest: json.RawMessage(`{"platform": {"type": "tcp", "address": "10.0.0.1:7777"}}`),
	}

	ext := ConvertRecord(testLogger(), rec)

	require.NoError(t, ext.ManifestErr)
	require.Equal(t, "lang/python", ext.Manifest.ID)
}

func TestConvertRecord_NoManifest(t *testing.T) {
	t.Parallel()

	ext := ConvertRecord(testLogger(), Record{ID: "bare", Enabled: true})

	require.Nil(t, ext.Manifest)
	require.NoError(t, ext.ManifestErr)
}

func TestConvertRecord_InvalidManifest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "malformed json", raw: `{"platform":`},
		{name: "missing platform", raw: `{"activationEvents": ["*"]}`},
		{name: "websocket without url", raw: `{"platform": {"type": "websocket"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ext := ConvertRecord(testLogger(), Record{
				ID:       "broken",
				Enabled:  true,
				Manifest: json.RawMessage(tt.raw),
			})

			require.Nil(t, ext.Manifest)

			var invalid *errors.InvalidManifestError
			require.ErrorAs(t, ext.ManifestErr, &invalid)
			require.Equal(t, "broken", invalid.ExtensionID)
		})
	}
}

func TestConvertRecord_FetchError(t *testing.T) {
	t.Parallel()

	ext := ConvertRecord(testLogger(), Record{
		ID:       "gone",
		Enabled:  true,
		FetchErr: fs.ErrNotExist,
	})

	var invalid *errors.InvalidManifestError
	require.ErrorAs(t, ext.ManifestErr, &invalid)
	require.ErrorIs(t, ext.ManifestErr, fs.ErrNotExist)
}

func TestConvertRecords_PreservesOrder(t *testing.T) {
	t.Parallel()

	exts := ConvertRecords(testLogger(), []Record{
		{ID: "one", Enabled: true},
		{ID: "two"},
		{ID: "three", Enabled: true},
	})

	require.Len(t, exts, 3)
	require.Equal(t, "one", exts[0].ID)
	require.Equal(t, "two", exts[1].ID)
	require.Equal(t, "three", exts[2].ID)
	require.False(t, exts[1].Enabled)
}

func TestStaticSource_YieldsThenClosesOnCancel(t *testing.T) {
	t.Parallel()

	src := StaticSource{{ID: "x", Enabled: true}}

	ctx, cancel := context.WithCancel(context.Background())

	lists, err := src.Subscribe(ctx)
	require.NoError(t, err)

	list := <-lists
	require.Len(t, list, 1)
	require.Equal(t, "x", list[0].ID)

	cancel()

	select {
	case _, ok := <-lists:
		require.False(t, ok, "channel should close after cancel")
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

// recordingController captures SetEnvironment calls.
type recordingController struct {
	mu   sync.Mutex
	env  environment.Environment
	sets int
}

func (c *recordingController) Environment() environment.Environment {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.env
}

func (c *recordingController) SetEnvironment(_ context.Context, env environment.Environment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.env = env
	c.sets++

	return nil
}

func (c *recordingController) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sets
}

// closableSource emits pushed lists and lets the test end the stream.
type closableSource struct {
	ch chan []*environment.ConfiguredExtension
}

func (s *closableSource) Subscribe(context.Context) (<-chan []*environment.ConfiguredExtension, error) {
	return s.ch, nil
}

func TestBind_DrivesController(t *testing.T) {
	t.Parallel()

	root := "file:///workspace"
	ctrl := &recordingController{env: environment.Environment{Root: &root}}
	src := &closableSource{ch: make(chan []*environment.ConfiguredExtension, 2)}

	src.ch <- []*environment.ConfiguredExtension{{ID: "a", Enabled: true}}
	src.ch <- []*environment.ConfiguredExtension{{ID: "a", Enabled: true}, {ID: "b"}}
	close(src.ch)

	require.NoError(t, Bind(context.Background(), ctrl, src))

	require.Equal(t, 2, ctrl.setCount())

	env := ctrl.Environment()
	require.Len(t, env.Extensions, 2)
	require.Equal(t, "b", env.Extensions[1].ID)

	// Root and component pass through untouched.
	require.NotNil(t, env.Root)
	require.Equal(t, "file:///workspace", *env.Root)
}

func TestBind_StopsWhenControllerRejects(t *testing.T) {
	t.Parallel()

	src := &closableSource{ch: make(chan []*environment.ConfiguredExtension, 1)}
	src.ch <- []*environment.ConfiguredExtension{{ID: "a"}}

	err := Bind(context.Background(), rejectingController{}, src)
	require.ErrorIs(t, err, errors.ErrControllerClosed)
}

type rejectingController struct{}

func (rejectingController) Environment() environment.Environment {
	return environment.Environment{}
}

func (rejectingController) SetEnvironment(context.Context, environment.Environment) error {
	return errors.ErrControllerClosed
}
