// Package transport opens and adapts the per-extension connections used by
// the CXP client.
//
// Three strategies exist, selected by the extension manifest's platform kind:
// websocket and bundle platforms are brokered through the host relay, while
// tcp platforms dial the host's bridge endpoint as a WebSocket. Unknown kinds
// are rejected up front without opening any resource.
package transport
