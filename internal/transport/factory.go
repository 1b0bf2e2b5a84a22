package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/opencxp/cxp-client-go/internal/config"
	"github.com/opencxp/cxp-client-go/internal/errors"
	"github.com/opencxp/cxp-client-go/internal/manifest"
	"github.com/opencxp/cxp-client-go/internal/relay"
)

// ChannelDialer brokers dedicated per-extension relay channels.
// *relay.Broker implements it.
type ChannelDialer interface {
	Connect(ctx context.Context, extensionID string, platform manifest.Platform) (relay.Conn, error)
}

// WebSocketDialFunc opens a WebSocket transport for a URL. It exists so
// tests can substitute the network dial.
type WebSocketDialFunc func(ctx context.Context, rawURL string) (config.Transport, error)

// Factory selects and opens a transport for an extension based on its
// manifest platform.
//
// The choice is a pure function of the platform kind: websocket and bundle
// platforms are brokered through the relay, tcp platforms dial the host's
// bridge endpoint, and anything else is rejected before any resource is
// opened. Each Open is a single attempt with no retries and no timeouts
// beyond what ctx imposes.
type Factory struct {
	log      *slog.Logger
	channels ChannelDialer
	origin   config.OriginSource
	dial     WebSocketDialFunc
}

// Compile-time verification that Factory implements the TransportOpener interface.
var _ config.TransportOpener = (*Factory)(nil)

// NewFactory creates a transport factory.
//
// channels may be nil when no relay host is configured; websocket and bundle
// platforms then fail to open. origin may be nil when no bridge origin is
// configured; tcp platforms then fail to open.
func NewFactory(log *slog.Logger, channels ChannelDialer, origin config.OriginSource) *Factory {
	f := &Factory{
		log:      log.With("component", "transport_factory"),
		channels: channels,
		origin:   origin,
	}
	f.dial = f.dialWebSocket

	return f
}

// Open establishes a transport for the extension.
//
// Returns NoManifestError when the extension has no manifest and
// UnsupportedPlatformError when the manifest names a platform kind this
// client has no strategy for. Neither failure opens any resource.
func (f *Factory) Open(
	ctx context.Context,
	extensionID string,
	m *manifest.Manifest,
	root *string,
) (config.Transport, error) {
	if m == nil {
		return nil, &errors.NoManifestError{ExtensionID: extensionID}
	}

	switch m.Platform.(type) {
	case *manifest.WebSocketPlatform, *manifest.BundlePlatform:
		return f.openRelay(ctx, extensionID, m.Platform)

	case *manifest.TCPPlatform:
		return f.openBridge(ctx, extensionID, root)

	case nil:
		return nil, &errors.UnsupportedPlatformError{ExtensionID: extensionID, Kind: ""}

	default:
		return nil, &errors.UnsupportedPlatformError{
			ExtensionID: extensionID,
			Kind:        m.Platform.Kind(),
		}
	}
}

// openRelay requests a dedicated channel from the host relay and wraps it.
func (f *Factory) openRelay(
	ctx context.Context,
	extensionID string,
	platform manifest.Platform,
) (config.Transport, error) {
	if f.channels == nil {
		return nil, &errors.RelayError{
			ExtensionID: extensionID,
			Message:     "no relay host configured",
		}
	}

	f.log.Debug("Requesting relay channel", "extension_id", extensionID, "platform", platform.Kind())

	conn, err := f.channels.Connect(ctx, extensionID, platform)
	if err != nil {
		return nil, err
	}

	return NewRelayTransport(f.log, conn), nil
}

// openBridge awaits the host origin, builds the bridge URL and dials it.
func (f *Factory) openBridge(
	ctx context.Context,
	extensionID string,
	root *string,
) (config.Transport, error) {
	if f.origin == nil {
		return nil, errors.ErrOriginUnavailable
	}

	origin, err := f.origin.Origin(ctx)
	if err != nil {
		return nil, fmt.Errorf("await bridge origin: %w", err)
	}

	bridgeURL, err := BridgeURL(origin, extensionID, root)
	if err != nil {
		return nil, err
	}

	f.log.Debug("Dialing bridge", "extension_id", extensionID, "url", bridgeURL)

	return f.dial(ctx, bridgeURL)
}

// dialWebSocket is the production dial. The default dialer follows ctx, so
// cancellation aborts the dial without any additional timeout.
func (f *Factory) dialWebSocket(ctx context.Context, rawURL string) (config.Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}

	return NewWebSocketTransport(f.log, conn), nil
}
