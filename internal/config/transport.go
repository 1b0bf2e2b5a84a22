// Package config provides configuration types for the CXP client.
package config

import "context"

// Transport is a duplex message channel to a single extension.
// Implement this to provide custom transports for testing, mocking,
// or alternative connection mechanisms.
//
// Transports are produced already connected by a TransportOpener: a direct
// WebSocket connection, a bridged WebSocket connection, or a relayed channel.
type Transport interface {
	// ReadMessages returns channels for receiving messages and errors.
	// The message channel yields parsed JSON objects from the extension.
	// The error channel yields any errors that occur during reading.
	// Both channels are closed when reading completes or an error occurs.
	ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error)

	// SendMessage sends a JSON message to the extension.
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error
}
