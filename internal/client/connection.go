package client

import (
	"sync"

	"github.com/opencxp/cxp-client-go/internal/config"
	"github.com/opencxp/cxp-client-go/internal/protocol"
)

// connection is one live entry in the controller's reconciled set: the
// lifecycle state of a single extension plus the transport and protocol
// client behind it once activation completes.
//
// State moves forward only. The controller owns all transitions; the
// connection just guards them so concurrent teardown and activation
// completion cannot double-run or revive a terminal entry.
type connection struct {
	id     string
	report func(Transition)

	mu        sync.Mutex
	state     State
	closing   bool
	discarded bool
	transport config.Transport
	proto     *protocol.Client
}

// newConnection creates an entry in StateInitial. Transitions are delivered
// through report.
func newConnection(id string, report func(Transition)) *connection {
	return &connection{
		id:     id,
		state:  StateInitial,
		report: report,
	}
}

// State returns the connection's current lifecycle state.
func (cn *connection) State() State {
	cn.mu.Lock()
	defer cn.mu.Unlock()

	return cn.state
}

// transition moves the connection to the given state and reports the change.
// It refuses to leave a terminal state and returns false in that case.
func (cn *connection) transition(to State, err error) bool {
	cn.mu.Lock()

	from := cn.state
	if from.Terminal() {
		cn.mu.Unlock()

		return false
	}

	cn.state = to
	cn.mu.Unlock()

	cn.report(Transition{ExtensionID: cn.id, From: from, To: to, Err: err})

	return true
}

// discard handles removal from the wanted set. An activation still in flight
// is never cancelled: discard marks the entry and returns false, and the
// activation tears it down itself once it completes. It returns true when
// the connection has settled and the caller must run the teardown.
func (cn *connection) discard() bool {
	cn.mu.Lock()
	defer cn.mu.Unlock()

	switch cn.state {
	case StateInitial, StateConnecting, StateInitializing:
		cn.discarded = true

		return false
	default:
		return true
	}
}

// completeActivation publishes the transport and protocol client and moves
// the connection to StateActive. The returned flag reports whether the entry
// was discarded while activating, in which case the caller must tear it down
// immediately.
func (cn *connection) completeActivation(tr config.Transport, proto *protocol.Client) (discarded bool) {
	cn.mu.Lock()

	cn.transport = tr
	cn.proto = proto
	from := cn.state
	cn.state = StateActive
	discarded = cn.discarded

	cn.mu.Unlock()

	cn.report(Transition{ExtensionID: cn.id, From: from, To: StateActive})

	return discarded
}

// beginShutdown claims the teardown of a settled connection. Only the first
// caller gets it; everyone else returns false and leaves the teardown to the
// claim holder.
func (cn *connection) beginShutdown(cause error) bool {
	cn.mu.Lock()

	if cn.closing || cn.state.Terminal() {
		cn.mu.Unlock()

		return false
	}

	cn.closing = true
	from := cn.state
	cn.state = StateShuttingDown

	cn.mu.Unlock()

	cn.report(Transition{ExtensionID: cn.id, From: from, To: StateShuttingDown, Err: cause})

	return true
}

// handles returns the transport and protocol client. Either may be nil on a
// connection that never finished activating.
func (cn *connection) handles() (config.Transport, *protocol.Client) {
	cn.mu.Lock()
	defer cn.mu.Unlock()

	return cn.transport, cn.proto
}
