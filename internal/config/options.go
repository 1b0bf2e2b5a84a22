package config

import (
	"context"
	"log/slog"

	"github.com/opencxp/cxp-client-go/internal/manifest"
	"github.com/opencxp/cxp-client-go/internal/relay"
)

// OriginSource supplies the base HTTP(S) origin used to bridge tcp-platform
// extensions to a WebSocket endpoint.
//
// The origin is reactively sourced: it may not be known when a connection is
// requested. Origin blocks until it becomes known or ctx is done.
type OriginSource interface {
	Origin(ctx context.Context) (string, error)
}

// StaticOrigin is an OriginSource fixed at construction time.
type StaticOrigin string

// Origin implements the OriginSource interface.
func (o StaticOrigin) Origin(_ context.Context) (string, error) {
	return string(o), nil
}

// TransportOpener produces a connected Transport for one extension from its
// manifest. root is the connection's root context URI, or nil.
//
// Openers perform no retries: a single failed attempt is final.
type TransportOpener interface {
	Open(ctx context.Context, extensionID string, m *manifest.Manifest, root *string) (Transport, error)
}

// Options configures the behavior of the CXP client controller.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Relay is the host relay boundary: the process-wide control channel to
	// the host-side channel broker. All websocket- and bundle-platform
	// activations share it; exactly one control channel exists per
	// controller lifetime.
	// If nil, activating websocket- and bundle-platform extensions fails.
	Relay relay.Host

	// Origin supplies the base origin for bridging tcp-platform extensions.
	// If nil, activating tcp-platform extensions fails.
	Origin OriginSource

	// Verbose enables diagnostic logging of every environment change and
	// every connection state transition, and gates inspection registration.
	Verbose bool

	// Opener allows injecting a custom transport factory.
	// If nil, the default factory is built from Relay and Origin.
	Opener TransportOpener
}
