package cxp

import "github.com/opencxp/cxp-client-go/internal/errors"

// Re-export error types from internal package

// CXPError is the base interface for all errors produced by this module.
type CXPError = errors.CXPError

// NoManifestError indicates an extension has no manifest and therefore no
// way to select a connection platform.
type NoManifestError = errors.NoManifestError

// InvalidManifestError indicates an extension's manifest could not be
// fetched or parsed.
type InvalidManifestError = errors.InvalidManifestError

// UnsupportedPlatformError indicates a manifest declares a platform kind
// this client has no transport strategy for.
type UnsupportedPlatformError = errors.UnsupportedPlatformError

// RelayError indicates the host-side broker rejected a channel request.
type RelayError = errors.RelayError

// HandshakeError indicates the protocol initialize exchange failed after the
// transport was established.
type HandshakeError = errors.HandshakeError

// MessageDecodeError indicates JSON parsing failed for an inbound transport
// frame.
type MessageDecodeError = errors.MessageDecodeError

// AmbiguousTargetError indicates a decoration's target line did not resolve
// to exactly one cell in the hosted code view.
type AmbiguousTargetError = errors.AmbiguousTargetError

// Re-export sentinel errors from internal package.
var (
	// ErrControllerNotStarted indicates the controller has not been started.
	ErrControllerNotStarted = errors.ErrControllerNotStarted

	// ErrAlreadyStarted indicates the controller is already running.
	ErrAlreadyStarted = errors.ErrAlreadyStarted

	// ErrControllerClosed indicates the controller has been closed and cannot
	// be reused.
	ErrControllerClosed = errors.ErrControllerClosed

	// ErrRelayClosed indicates the relay control channel has shut down.
	ErrRelayClosed = errors.ErrRelayClosed

	// ErrTransportClosed indicates the transport is no longer usable.
	ErrTransportClosed = errors.ErrTransportClosed

	// ErrAlreadyResolved indicates a message request was resolved more than
	// once.
	ErrAlreadyResolved = errors.ErrAlreadyResolved

	// ErrOriginUnavailable indicates the bridge origin source shut down
	// before an origin became known.
	ErrOriginUnavailable = errors.ErrOriginUnavailable
)
