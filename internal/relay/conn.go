// Package relay brokers dedicated per-extension channels through a host
// process over a single pre-established control channel.
package relay

import "context"

// Conn is one duplex message channel through the host relay.
//
// WriteMessage sends a complete JSON document; ReadMessage blocks until the
// next inbound document arrives and returns it parsed. Implementations wrap
// whatever inter-process mechanism the host provides (message ports, local
// sockets, WebSockets).
type Conn interface {
	// ReadMessage blocks until the next message arrives.
	// It returns an error when the channel closes.
	ReadMessage() (map[string]any, error)

	// WriteMessage sends a complete JSON document.
	// It must be safe for concurrent use.
	WriteMessage(data []byte) error

	// Close closes the channel. It's safe to call Close multiple times.
	Close() error
}

// Host is the embedder-supplied relay boundary: the pre-established control
// channel to the host-side broker, plus the means of opening the dedicated
// channels named in broker responses.
type Host interface {
	Conn

	// DialChannel opens the dedicated channel a broker response named.
	DialChannel(ctx context.Context, name string) (Conn, error)
}
