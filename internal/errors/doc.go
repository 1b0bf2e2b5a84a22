// Package errors defines error types for the CXP client.
//
// This package provides structured error types for the failure scenarios of
// extension activation: missing or invalid manifests, unsupported platform
// kinds, relay rejections, protocol handshake failures, and ambiguous
// decoration targets. All error types support error unwrapping and can be
// checked with errors.Is, errors.As, and errors.AsType.
package errors
