package cxp

import (
	"log/slog"
)

// Option configures ControllerOptions using the functional options pattern.
type Option func(*ControllerOptions)

// applyOptions applies functional options to a ControllerOptions struct.
func applyOptions(opts []Option) *ControllerOptions {
	options := &ControllerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *ControllerOptions) {
		o.Logger = logger
	}
}

// WithVerbose enables diagnostic logging of every environment change and
// every connection state transition, and registers the controller with the
// in-process inspection server for its lifetime.
// Setting the CXP_VERBOSE environment variable enables the same behavior.
func WithVerbose(verbose bool) Option {
	return func(o *ControllerOptions) {
		o.Verbose = verbose
	}
}

// ===== Transports =====

// WithRelayHost supplies the host relay boundary: the pre-established
// control channel to the host-side channel broker, plus the means of opening
// the dedicated channels it grants. websocket- and bundle-platform
// extensions connect through it.
// Without a relay host, activating those extensions fails.
func WithRelayHost(host RelayHost) Option {
	return func(o *ControllerOptions) {
		o.Relay = host
	}
}

// WithOrigin supplies the base origin used to bridge tcp-platform extensions
// to a WebSocket endpoint. The source may become known after startup;
// activations wait for it.
// Without an origin source, activating tcp-platform extensions fails.
func WithOrigin(origin OriginSource) Option {
	return func(o *ControllerOptions) {
		o.Origin = origin
	}
}

// WithStaticOrigin fixes the bridge origin at configuration time.
// Equivalent to WithOrigin(StaticOrigin(origin)).
func WithStaticOrigin(origin string) Option {
	return func(o *ControllerOptions) {
		o.Origin = StaticOrigin(origin)
	}
}

// WithTransportOpener injects a custom transport factory, replacing the
// default platform-based selection built from the relay host and origin.
// Use it for testing, mocking, or alternative connection mechanisms.
func WithTransportOpener(opener TransportOpener) Option {
	return func(o *ControllerOptions) {
		o.Opener = opener
	}
}
