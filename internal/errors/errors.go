package errors

import (
	"errors"
	"fmt"
)

// CXPError is the base interface for all errors produced by this module.
type CXPError interface {
	error
	IsCXPError() bool
}

// Compile-time verification that all error types implement CXPError.
var (
	_ CXPError = (*NoManifestError)(nil)
	_ CXPError = (*InvalidManifestError)(nil)
	_ CXPError = (*UnsupportedPlatformError)(nil)
	_ CXPError = (*RelayError)(nil)
	_ CXPError = (*HandshakeError)(nil)
	_ CXPError = (*MessageDecodeError)(nil)
	_ CXPError = (*AmbiguousTargetError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrControllerNotStarted indicates the controller has not been started.
	ErrControllerNotStarted = errors.New("controller not started")

	// ErrAlreadyStarted indicates the controller is already running.
	ErrAlreadyStarted = errors.New("controller already started")

	// ErrControllerClosed indicates the controller has been closed and cannot be
	// reused. Controllers are single-use; create a new one with NewController().
	ErrControllerClosed = errors.New("controller closed: controllers are single-use, create a new one with NewController()")

	// ErrRelayClosed indicates the relay control channel has shut down.
	ErrRelayClosed = errors.New("relay control channel closed")

	// ErrTransportClosed indicates the transport is no longer usable.
	ErrTransportClosed = errors.New("transport closed")

	// ErrAlreadyResolved indicates a message request was resolved more than once.
	// Each request must be resolved exactly once.
	ErrAlreadyResolved = errors.New("message request already resolved")

	// ErrOriginUnavailable indicates the bridge origin source shut down before an
	// origin became known.
	ErrOriginUnavailable = errors.New("bridge origin unavailable")
)

// NoManifestError indicates an extension has no manifest and therefore no way
// to select a connection platform.
type NoManifestError struct {
	ExtensionID string
}

func (e *NoManifestError) Error() string {
	return fmt.Sprintf("extension %s: no manifest", e.ExtensionID)
}

// IsCXPError implements CXPError.
func (e *NoManifestError) IsCXPError() bool { return true }

// InvalidManifestError indicates an extension's manifest could not be fetched
// or parsed. The inner error carries the registry's failure message.
type InvalidManifestError struct {
	ExtensionID string
	Err         error
}

func (e *InvalidManifestError) Error() string {
	return fmt.Sprintf("extension %s: invalid manifest: %v", e.ExtensionID, e.Err)
}

func (e *InvalidManifestError) Unwrap() error {
	return e.Err
}

// IsCXPError implements CXPError.
func (e *InvalidManifestError) IsCXPError() bool { return true }

// UnsupportedPlatformError indicates a manifest declares a platform kind this
// client has no transport strategy for.
type UnsupportedPlatformError struct {
	ExtensionID string
	Kind        string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("extension %s: unsupported platform kind %q", e.ExtensionID, e.Kind)
}

// IsCXPError implements CXPError.
func (e *UnsupportedPlatformError) IsCXPError() bool { return true }

// RelayError indicates the host-side broker rejected a channel request.
type RelayError struct {
	ExtensionID string
	Message     string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("extension %s: relay: %s", e.ExtensionID, e.Message)
}

// IsCXPError implements CXPError.
func (e *RelayError) IsCXPError() bool { return true }

// HandshakeError indicates the protocol initialize exchange failed after the
// transport was established.
type HandshakeError struct {
	ExtensionID string
	Err         error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("extension %s: handshake failed: %v", e.ExtensionID, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// IsCXPError implements CXPError.
func (e *HandshakeError) IsCXPError() bool { return true }

// MessageDecodeError indicates JSON parsing failed for an inbound transport
// frame. This error preserves the original raw data that failed to parse.
type MessageDecodeError struct {
	RawData string
	Err     error
}

func (e *MessageDecodeError) Error() string {
	return fmt.Sprintf("failed to decode transport message: %v", e.Err)
}

func (e *MessageDecodeError) Unwrap() error {
	return e.Err
}

// IsCXPError implements CXPError.
func (e *MessageDecodeError) IsCXPError() bool { return true }

// AmbiguousTargetError indicates a decoration's target line did not resolve to
// exactly one cell in the hosted code view. Matches reports how many cells
// claimed the line (zero or more than one).
type AmbiguousTargetError struct {
	Line    int
	Matches int
}

func (e *AmbiguousTargetError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("decoration target line %d: no matching cell", e.Line)
	}

	return fmt.Sprintf("decoration target line %d: %d matching cells", e.Line, e.Matches)
}

// IsCXPError implements CXPError.
func (e *AmbiguousTargetError) IsCXPError() bool { return true }
