package cxp

import "github.com/opencxp/cxp-client-go/internal/config"

// Transport is a duplex message channel to a single extension.
// Implement this to provide custom transports for testing, mocking,
// or alternative connection mechanisms.
//
// The default transports are selected from the extension's manifest
// platform: a direct WebSocket connection, a bridged WebSocket connection,
// or a relayed channel. Custom transports are injected via
// WithTransportOpener.
type Transport = config.Transport
