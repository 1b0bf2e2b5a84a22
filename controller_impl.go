package cxp

import (
	"context"
	"sync"

	"github.com/opencxp/cxp-client-go/internal/client"
	"github.com/opencxp/cxp-client-go/internal/config"
)

// controllerWrapper wraps the internal controller to adapt it to the public
// interface.
type controllerWrapper struct {
	impl *client.Controller

	mu          sync.Mutex
	inspectName string
}

// Compile-time check that *controllerWrapper implements the Controller
// interface.
var _ Controller = (*controllerWrapper)(nil)

// newControllerImpl creates the internal controller implementation.
func newControllerImpl() Controller {
	return &controllerWrapper{impl: client.New()}
}

// Start brings up the controller with the given options.
func (c *controllerWrapper) Start(ctx context.Context, opts ...Option) error {
	if err := c.impl.Start(ctx, applyOptionsToConfig(opts)); err != nil {
		return err
	}

	// Verbose controllers are visible to the in-process inspection server
	// for their lifetime.
	if c.impl.Verbose() {
		c.mu.Lock()
		c.inspectName = registerInspectionTarget(c.impl)
		c.mu.Unlock()
	}

	return nil
}

// SetEnvironment replaces the environment snapshot and reconciles
// connections against it.
func (c *controllerWrapper) SetEnvironment(ctx context.Context, env Environment) error {
	return c.impl.SetEnvironment(ctx, env)
}

// Environment returns the most recently applied environment snapshot.
func (c *controllerWrapper) Environment() Environment {
	return c.impl.Environment()
}

// EnvironmentChanges returns a channel replaying the current snapshot and
// yielding every subsequent one.
func (c *controllerWrapper) EnvironmentChanges(ctx context.Context) <-chan Environment {
	return c.impl.EnvironmentChanges(ctx)
}

// StateTransitions yields every connection state change.
func (c *controllerWrapper) StateTransitions() <-chan StateTransition {
	return c.impl.StateTransitions()
}

// States reports the current connection state per extension ID.
func (c *controllerWrapper) States() map[string]ConnectionState {
	return c.impl.States()
}

// LogMessages yields window/logMessage notifications.
func (c *controllerWrapper) LogMessages() <-chan LogMessage {
	return c.impl.LogMessages()
}

// Messages yields window/showMessage notifications.
func (c *controllerWrapper) Messages() <-chan UserMessage {
	return c.impl.Messages()
}

// MessageRequests yields window/showMessageRequest requests.
func (c *controllerWrapper) MessageRequests() <-chan *MessageRequest {
	return c.impl.MessageRequests()
}

// Decorations yields textDocument/publishDecorations notifications.
func (c *controllerWrapper) Decorations() <-chan DecorationsNotification {
	return c.impl.Decorations()
}

// ConfigurationUpdates yields configuration/update requests.
func (c *controllerWrapper) ConfigurationUpdates() <-chan ConfigurationUpdate {
	return c.impl.ConfigurationUpdates()
}

// Verbose reports whether diagnostic logging was enabled.
func (c *controllerWrapper) Verbose() bool {
	return c.impl.Verbose()
}

// Done returns a channel that closes when the controller has shut down.
func (c *controllerWrapper) Done() <-chan struct{} {
	return c.impl.Done()
}

// Close tears down every connection and releases resources.
func (c *controllerWrapper) Close() error {
	c.mu.Lock()
	if c.inspectName != "" {
		deregisterInspectionTarget(c.inspectName)
		c.inspectName = ""
	}
	c.mu.Unlock()

	return c.impl.Close()
}

// applyOptionsToConfig converts public options to internal config.Options.
func applyOptionsToConfig(opts []Option) *config.Options {
	// ControllerOptions is a type alias to config.Options, so the applied
	// struct passes through directly.
	return applyOptions(opts)
}
