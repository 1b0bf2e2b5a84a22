package transport

import (
	"fmt"
	"net/url"
)

// bridgePath is the host endpoint that bridges WebSocket clients onto an
// extension's TCP listener.
const bridgePath = "/.api/lsp"

// BridgeURL builds the WebSocket URL used to reach a tcp-platform extension
// through the host's bridge endpoint.
//
// The origin's scheme is swapped for its WebSocket equivalent and the
// extension identity travels in the query string:
//
//	wss://host.example/.api/lsp?mode=<extensionID>&rootUri=<root or empty>
//
// The rootUri parameter is always present; it is empty when no root context
// is set.
func BridgeURL(origin, extensionID string, root *string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", origin, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// Already a WebSocket origin.
	default:
		return "", fmt.Errorf("origin %q: unsupported scheme %q", origin, u.Scheme)
	}

	u.Path = bridgePath

	rootURI := ""
	if root != nil {
		rootURI = *root
	}

	q := url.Values{}
	q.Set("mode", extensionID)
	q.Set("rootUri", rootURI)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
