package cxp

import (
	"context"
)

// Controller manages the lifecycles of every extension connection implied by
// the environment.
//
// Feed it environment snapshots with SetEnvironment; it reconciles its
// running connections against each snapshot, activating extensions that
// should run and tearing down extensions that no longer should. Extension
// notifications arrive on the typed channels, tagged with the extension that
// produced them.
//
// Lifecycle: controllers are single-use. After Close(), create a new
// controller with NewController().
//
// Example usage:
//
//	ctrl := cxp.NewController()
//	defer ctrl.Close()
//
//	err := ctrl.Start(ctx,
//	    cxp.WithLogger(slog.Default()),
//	    cxp.WithRelayHost(host),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := ctrl.SetEnvironment(ctx, env); err != nil {
//	    log.Fatal(err)
//	}
//
//	for msg := range ctrl.LogMessages() {
//	    // Process message...
//	}
type Controller interface {
	// Start brings up the controller with the given options.
	// Must be called before any other methods.
	// Returns ErrAlreadyStarted on a second call and ErrControllerClosed
	// after Close.
	Start(ctx context.Context, opts ...Option) error

	// SetEnvironment replaces the environment snapshot and reconciles
	// connections against it. Reconciliations are serialized in call
	// order; SetEnvironment returns once the snapshot's activations and
	// teardowns have been dispatched.
	SetEnvironment(ctx context.Context, env Environment) error

	// Environment returns the most recently applied environment snapshot.
	Environment() Environment

	// EnvironmentChanges returns a channel that replays the current
	// snapshot and then yields every subsequent one until ctx is done.
	// A slow consumer observes the newest snapshot, not every
	// intermediate one.
	EnvironmentChanges(ctx context.Context) <-chan Environment

	// StateTransitions yields every connection state change, in per
	// connection order. Transitions into StateActivateFailed and
	// StateShuttingDown carry the causing error, if any.
	StateTransitions() <-chan StateTransition

	// States reports the current connection state per extension ID.
	States() map[string]ConnectionState

	// LogMessages yields window/logMessage notifications from all
	// connected extensions.
	LogMessages() <-chan LogMessage

	// Messages yields window/showMessage notifications from all
	// connected extensions.
	Messages() <-chan UserMessage

	// MessageRequests yields window/showMessageRequest requests from all
	// connected extensions. Each request must be resolved exactly once
	// with MessageRequest.Resolve.
	MessageRequests() <-chan *MessageRequest

	// Decorations yields textDocument/publishDecorations notifications
	// from all connected extensions. Each notification replaces the
	// extension's previously published set for the document.
	Decorations() <-chan DecorationsNotification

	// ConfigurationUpdates yields configuration/update requests from all
	// connected extensions. Apply them to a SettingsStore directly or
	// with SyncSettings.
	ConfigurationUpdates() <-chan ConfigurationUpdate

	// Verbose reports whether diagnostic logging was enabled, either
	// with WithVerbose or the CXP_VERBOSE environment variable.
	Verbose() bool

	// Done returns a channel that closes when the controller has shut
	// down and all connections are released.
	Done() <-chan struct{}

	// Close tears down every connection and releases resources.
	// After Close(), the controller cannot be reused. Safe to call
	// multiple times.
	Close() error
}

// NewController creates a new connection controller.
//
// Call Start() with options to bring it up:
//
//	ctrl := cxp.NewController()
//	err := ctrl.Start(ctx,
//	    cxp.WithLogger(slog.Default()),
//	    cxp.WithRelayHost(host),
//	)
func NewController() Controller {
	return newControllerImpl()
}
