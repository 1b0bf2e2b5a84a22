package client

import "fmt"

// State is the lifecycle state of one extension connection.
//
// Connections move Initial -> Connecting -> Initializing -> Active, then
// Active -> ShuttingDown -> Stopped on teardown. A failure during transport
// creation or handshake lands in ActivateFailed instead. Stopped and
// ActivateFailed are terminal: nothing transitions out of them, and a
// re-included extension gets a brand-new entry rather than a resurrected one.
type State int

const (
	// StateInitial is the state of a freshly created entry whose activation
	// has not been picked up yet.
	StateInitial State = iota

	// StateConnecting means the activation has been dispatched.
	StateConnecting

	// StateInitializing covers transport creation and the protocol
	// handshake. Failures in either step lead to StateActivateFailed.
	StateInitializing

	// StateActive means the handshake completed and notifications flow.
	StateActive

	// StateShuttingDown means teardown has begun: the extension is being
	// told to exit and the transport is about to close.
	StateShuttingDown

	// StateStopped is the terminal state of a normal teardown.
	StateStopped

	// StateActivateFailed is the terminal state of a failed activation.
	StateActivateFailed
)

// stateNames maps states to their diagnostic names.
var stateNames = map[State]string{
	StateInitial:        "initial",
	StateConnecting:     "connecting",
	StateInitializing:   "initializing",
	StateActive:         "active",
	StateShuttingDown:   "shutting_down",
	StateStopped:        "stopped",
	StateActivateFailed: "activate_failed",
}

// String returns the diagnostic name of the state.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name, so state maps serialize readably.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transitions can occur.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateActivateFailed
}

// Transition is one observed lifecycle state change of one connection.
type Transition struct {
	// ExtensionID identifies the connection the transition belongs to.
	ExtensionID string

	// From is the state the connection left.
	From State

	// To is the state the connection entered.
	To State

	// Err explains a failure transition. It is set when To is
	// StateActivateFailed, and on the StateShuttingDown transition of a
	// connection being retired because its transport failed.
	Err error
}
