package client

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opencxp/cxp-client-go/internal/config"
	"github.com/opencxp/cxp-client-go/internal/environment"
	"github.com/opencxp/cxp-client-go/internal/errors"
	"github.com/opencxp/cxp-client-go/internal/protocol"
	"github.com/opencxp/cxp-client-go/internal/relay"
	"github.com/opencxp/cxp-client-go/internal/transport"
)

const (
	// transitionBuffer is the buffer size for the merged transition stream.
	transitionBuffer = 32

	// eventBuffer is the buffer size for each fan-in notification channel.
	eventBuffer = 16

	// exitNotifyTimeout bounds the best-effort exit notification sent
	// during connection teardown.
	exitNotifyTimeout = 2 * time.Second
)

// Controller reconciles the set of live extension connections against the
// latest environment snapshot and fans their protocol notifications in to
// unified channels.
type Controller struct {
	log     *slog.Logger
	opener  config.TransportOpener
	broker  *relay.Broker
	store   *environment.Store
	verbose bool

	// reconcileMu serializes reconciliation passes. Each pass observes
	// exactly the snapshot that triggered it; a newer snapshot waits.
	reconcileMu sync.Mutex

	// connMu guards the live connection set.
	connMu sync.Mutex
	conns  map[string]*connection

	// Fan-in surfaces merged across all connections
	transitions     chan Transition
	logMessages     chan protocol.LogMessage
	messages        chan protocol.UserMessage
	messageRequests chan *protocol.MessageRequest
	decorations     chan protocol.DecorationsNotification
	configUpdates   chan protocol.ConfigurationUpdate

	// Errgroup for connection goroutine management
	eg     *errgroup.Group
	egCtx  context.Context
	cancel context.CancelFunc

	// Lifecycle management
	mu        sync.Mutex
	started   bool
	closed    bool      // Tracks if Close() has been called
	closeOnce sync.Once // Ensures Close() only runs once
	done      chan struct{}
}

// New creates a new connection controller.
//
// The controller holds an empty environment after creation. Call Start()
// with options, then drive it with SetEnvironment().
func New() *Controller {
	return &Controller{
		store:           environment.NewStore(environment.Environment{}),
		conns:           make(map[string]*connection),
		transitions:     make(chan Transition, transitionBuffer),
		logMessages:     make(chan protocol.LogMessage, eventBuffer),
		messages:        make(chan protocol.UserMessage, eventBuffer),
		messageRequests: make(chan *protocol.MessageRequest, eventBuffer),
		decorations:     make(chan protocol.DecorationsNotification, eventBuffer),
		configUpdates:   make(chan protocol.ConfigurationUpdate, eventBuffer),
		done:            make(chan struct{}),
	}
}

// Start prepares the controller for reconciliation.
//
// It wires the transport opener from the options: an injected opener wins,
// otherwise the default factory is assembled from the relay host and origin
// source. No connections are opened until an environment wants them.
func (c *Controller) Start(ctx context.Context, options *config.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrControllerClosed
	}

	if c.started {
		return errors.ErrAlreadyStarted
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Default to empty options if nil
	if options == nil {
		options = &config.Options{}
	}

	// Extract logger from options, defaulting to a no-op logger
	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c.log = log.With("component", "controller")
	c.verbose = options.Verbose || config.VerboseFromEnv()

	if options.Opener != nil {
		c.opener = options.Opener

		c.log.Debug("Using injected transport opener")
	} else {
		var channels transport.ChannelDialer

		if options.Relay != nil {
			c.broker = relay.NewBroker(log, options.Relay)
			c.broker.Start()
			channels = c.broker
		}

		c.opener = transport.NewFactory(log, channels, options.Origin)
	}

	// Connection goroutines must outlive the caller's ctx, which commonly
	// carries an initialization deadline. They run under a private context
	// cancelled only by Close(); the done channel signals consumers.
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.eg, c.egCtx = errgroup.WithContext(runCtx)

	c.started = true
	c.log.Info("Controller started", "verbose", c.verbose)

	return nil
}

// SetEnvironment atomically replaces the environment snapshot and reconciles
// the live connection set against it.
//
// The call returns once bookkeeping is done: newly wanted extensions have an
// entry dispatched for activation and dropped ones have their teardown
// dispatched. The connection I/O itself runs on per-connection goroutines
// and never blocks this call.
func (c *Controller) SetEnvironment(ctx context.Context, env environment.Environment) error {
	c.mu.Lock()
	started, closed := c.started, c.closed
	c.mu.Unlock()

	if closed {
		return errors.ErrControllerClosed
	}

	if !started {
		return errors.ErrControllerNotStarted
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()

	// Close may have won the race for the reconcile lock.
	c.mu.Lock()
	closed = c.closed
	c.mu.Unlock()

	if closed {
		return errors.ErrControllerClosed
	}

	if c.verbose {
		c.log.Debug("Environment replaced",
			"extensions", len(env.Extensions),
			"has_component", env.Component != nil,
			"has_root", env.Root != nil,
		)
	}

	c.store.Set(env)
	c.reconcile(env)

	return nil
}

// activation pairs a fresh connection entry with the extension it is for.
type activation struct {
	conn *connection
	ext  *environment.ConfiguredExtension
}

// reconcile diffs the extensions wanted by the snapshot against the live set
// and dispatches the activations and teardowns that close the gap. Entries
// for unchanged extensions are left untouched.
func (c *Controller) reconcile(env environment.Environment) {
	wanted := environment.ActiveExtensions(c.log, env)

	index := make(map[string]*environment.ConfiguredExtension, len(wanted))
	for _, ext := range wanted {
		index[ext.ID] = ext
	}

	c.connMu.Lock()

	var dropped []*connection

	for id, conn := range c.conns {
		if _, ok := index[id]; !ok {
			delete(c.conns, id)
			dropped = append(dropped, conn)
		}
	}

	var added []activation

	for _, ext := range wanted {
		if _, ok := c.conns[ext.ID]; ok {
			continue
		}

		conn := newConnection(ext.ID, c.reportTransition)
		c.conns[ext.ID] = conn
		added = append(added, activation{conn: conn, ext: ext})
	}

	c.connMu.Unlock()

	if c.verbose && (len(added) > 0 || len(dropped) > 0) {
		c.log.Debug("Reconciled connections",
			"wanted", len(wanted),
			"started", len(added),
			"stopped", len(dropped),
		)
	}

	root := env.Root

	for _, a := range added {
		c.eg.Go(func() error {
			c.activate(c.egCtx, a.conn, a.ext, root)

			return nil
		})
	}

	for _, conn := range dropped {
		c.eg.Go(func() error {
			c.teardown(conn)

			return nil
		})
	}
}

// activate drives one connection from Initial to Active: transport selection
// through the opener, then the protocol handshake. A failure in either step
// lands the entry in ActivateFailed; the controller never retries on its
// own, so the entry stays failed until the environment drops the extension.
func (c *Controller) activate(
	ctx context.Context,
	conn *connection,
	ext *environment.ConfiguredExtension,
	root *string,
) {
	if !conn.transition(StateConnecting, nil) {
		return
	}

	// Transport creation belongs to Initializing so its failures land in
	// ActivateFailed from there, the same as handshake failures.
	if !conn.transition(StateInitializing, nil) {
		return
	}

	tr, err := c.opener.Open(ctx, conn.id, ext.Manifest, root)
	if err != nil {
		c.failActivation(conn, err)

		return
	}

	proto := protocol.NewClient(c.log, conn.id, tr)
	proto.Start(ctx)

	if err := proto.Initialize(ctx, root, ext.Settings); err != nil {
		proto.Close()
		tr.Close()
		c.failActivation(conn, err)

		return
	}

	if conn.completeActivation(tr, proto) {
		// Dropped from the wanted set mid-activation: the handshake was
		// allowed to finish, now the entry is retired.
		c.shutdown(conn, nil)

		return
	}

	c.pump(ctx, proto)

	// The protocol client stopped. If its transport failed while the
	// connection was live, retire the entry; the next snapshot may create
	// a fresh one.
	if err := proto.FatalError(); err != nil {
		c.log.Warn("Connection lost", "extension_id", conn.id, "error", err)
		c.dropConnection(conn)
		c.shutdown(conn, err)
	}
}

// failActivation parks the connection in its failure terminal state.
func (c *Controller) failActivation(conn *connection, err error) {
	c.log.Warn("Extension activation failed", "extension_id", conn.id, "error", err)
	conn.transition(StateActivateFailed, err)
}

// teardown retires a connection that left the wanted set. An activation
// still in flight is never cancelled; the entry is marked and the activation
// goroutine finishes the teardown once the handshake completes.
func (c *Controller) teardown(conn *connection) {
	if conn.discard() {
		c.shutdown(conn, nil)
	}
}

// shutdown runs the teardown sequence exactly once: ShuttingDown, a
// best-effort exit notification, protocol client stop, transport close,
// Stopped.
func (c *Controller) shutdown(conn *connection, cause error) {
	if !conn.beginShutdown(cause) {
		return
	}

	tr, proto := conn.handles()

	if proto != nil {
		// The run context is already canceled when the controller itself is
		// closing, so the exit notification gets its own bounded window.
		exitCtx, cancel := context.WithTimeout(context.Background(), exitNotifyTimeout)
		proto.NotifyExit(exitCtx)
		cancel()

		proto.Close()
	}

	if tr != nil {
		if err := tr.Close(); err != nil {
			c.log.Debug("Transport close failed", "extension_id", conn.id, "error", err)
		}
	}

	conn.transition(StateStopped, nil)
}

// dropConnection removes conn from the live set if it still owns its slot.
func (c *Controller) dropConnection(conn *connection) {
	c.connMu.Lock()

	if c.conns[conn.id] == conn {
		delete(c.conns, conn.id)
	}

	c.connMu.Unlock()
}

// pump forwards one connection's typed notification streams into the
// controller-wide channels until the protocol client stops and closes them.
func (c *Controller) pump(ctx context.Context, proto *protocol.Client) {
	logs := proto.LogMessages()
	msgs := proto.Messages()
	reqs := proto.MessageRequests()
	decs := proto.Decorations()
	updates := proto.ConfigurationUpdates()

	for logs != nil || msgs != nil || reqs != nil || decs != nil || updates != nil {
		select {
		case m, ok := <-logs:
			if !ok {
				logs = nil

				continue
			}

			if !deliver(ctx, c.done, c.logMessages, m) {
				return
			}

		case m, ok := <-msgs:
			if !ok {
				msgs = nil

				continue
			}

			if !deliver(ctx, c.done, c.messages, m) {
				return
			}

		case r, ok := <-reqs:
			if !ok {
				reqs = nil

				continue
			}

			if !deliver(ctx, c.done, c.messageRequests, r) {
				return
			}

		case n, ok := <-decs:
			if !ok {
				decs = nil

				continue
			}

			if !deliver(ctx, c.done, c.decorations, n) {
				return
			}

		case u, ok := <-updates:
			if !ok {
				updates = nil

				continue
			}

			if !deliver(ctx, c.done, c.configUpdates, u) {
				return
			}

		case <-c.done:
			return

		case <-ctx.Done():
			return
		}
	}
}

// deliver forwards one value unless the controller is shutting down.
func deliver[T any](ctx context.Context, done <-chan struct{}, out chan<- T, v T) bool {
	select {
	case out <- v:
		return true
	case <-done:
		return false
	case <-ctx.Done():
		return false
	}
}

// reportTransition publishes a state transition, logging it in verbose mode.
// Buffered sends always land, which keeps the teardown transitions emitted
// during Close() visible to consumers draining the stream afterwards. Only a
// full buffer with a departed consumer drops.
func (c *Controller) reportTransition(t Transition) {
	if c.verbose {
		c.log.Debug("Connection state changed",
			"extension_id", t.ExtensionID,
			"from", t.From,
			"to", t.To,
			"error", t.Err,
		)
	}

	select {
	case c.transitions <- t:
		return
	default:
	}

	select {
	case c.transitions <- t:
	case <-c.done:
	}
}

// Environment returns the latest environment snapshot.
func (c *Controller) Environment() environment.Environment {
	return c.store.Get()
}

// EnvironmentChanges returns a channel of environment snapshots. It yields
// the latest snapshot immediately, then each replacement, coalesced to the
// newest if the consumer is slow. The channel is closed when ctx is done.
func (c *Controller) EnvironmentChanges(ctx context.Context) <-chan environment.Environment {
	return c.store.Subscribe(ctx)
}

// StateTransitions returns the merged stream of lifecycle transitions across
// all connections. The channel closes, after delivering any buffered
// transitions, once Close() completes.
func (c *Controller) StateTransitions() <-chan Transition {
	return c.transitions
}

// LogMessages returns the merged stream of extension log messages.
func (c *Controller) LogMessages() <-chan protocol.LogMessage {
	return c.logMessages
}

// Messages returns the merged stream of fire-and-forget user messages.
func (c *Controller) Messages() <-chan protocol.UserMessage {
	return c.messages
}

// MessageRequests returns the merged stream of user message requests. Each
// request must be resolved exactly once by the consumer.
func (c *Controller) MessageRequests() <-chan *protocol.MessageRequest {
	return c.messageRequests
}

// Decorations returns the merged stream of decoration publications.
func (c *Controller) Decorations() <-chan protocol.DecorationsNotification {
	return c.decorations
}

// ConfigurationUpdates returns the merged stream of settings edits requested
// by extensions.
func (c *Controller) ConfigurationUpdates() <-chan protocol.ConfigurationUpdate {
	return c.configUpdates
}

// States returns a snapshot of the lifecycle state of every tracked
// connection, keyed by extension id.
func (c *Controller) States() map[string]State {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	states := make(map[string]State, len(c.conns))
	for id, conn := range c.conns {
		states[id] = conn.State()
	}

	return states
}

// Verbose reports whether verbose diagnostics are enabled.
func (c *Controller) Verbose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.verbose
}

// Done returns a channel that is closed when the controller shuts down.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Close tears down every connection and releases the relay control channel.
//
// After Close(), the controller cannot be reused - create a new one with
// New(). This method is safe to call multiple times.
func (c *Controller) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		wasStarted := c.started
		c.mu.Unlock()

		// Signal shutdown before anything blocks on a consumer.
		close(c.done)

		if !wasStarted {
			c.closeChannels()

			return
		}

		c.log.Info("Closing controller")

		// Abort in-flight activations.
		c.cancel()

		// Serialize with any reconciliation in progress, then retire every
		// tracked connection.
		c.reconcileMu.Lock()

		c.connMu.Lock()

		conns := make([]*connection, 0, len(c.conns))
		for _, conn := range c.conns {
			conns = append(conns, conn)
		}

		clear(c.conns)
		c.connMu.Unlock()

		for _, conn := range conns {
			c.teardown(conn)
		}

		c.reconcileMu.Unlock()

		if c.broker != nil {
			closeErr = c.broker.Close()
		}

		// Wait for connection goroutines to complete
		if err := c.eg.Wait(); err != nil && closeErr == nil {
			closeErr = err
		}

		// All senders have returned; consumers draining the fan-in
		// channels observe buffered items, then closure.
		c.closeChannels()

		c.log.Info("Controller closed")
	})

	return closeErr
}

// closeChannels closes every fan-in channel. Callers must guarantee no
// sender remains.
func (c *Controller) closeChannels() {
	close(c.transitions)
	close(c.logMessages)
	close(c.messages)
	close(c.messageRequests)
	close(c.decorations)
	close(c.configUpdates)
}
