// Package manifest defines the extension manifest model: the activation
// events and the platform descriptor an extension declares for connecting
// to it.
package manifest

import "encoding/json"

// Platform kind constants (wire values of the "type" tag).
const (
	PlatformKindWebSocket = "websocket"
	PlatformKindTCP       = "tcp"
	PlatformKindBundle    = "bundle"
)

// Activation event forms.
const (
	// ActivationWildcard activates the extension for every component.
	ActivationWildcard = "*"
	// ActivationLanguagePrefix prefixes language-scoped activation events,
	// as in "onLanguage:go".
	ActivationLanguagePrefix = "onLanguage:"
)

// Platform describes how a connection to an extension is established.
// Variants: WebSocketPlatform, TCPPlatform, BundlePlatform, UnknownPlatform.
type Platform interface {
	Kind() string
}

// Compile-time verification that all platform variants implement Platform.
var (
	_ Platform = (*WebSocketPlatform)(nil)
	_ Platform = (*TCPPlatform)(nil)
	_ Platform = (*BundlePlatform)(nil)
	_ Platform = (*UnknownPlatform)(nil)
)

// WebSocketPlatform is a WebSocket endpoint reachable directly from this
// process.
type WebSocketPlatform struct {
	URL string `json:"url"`
}

// Kind implements the Platform interface.
func (p *WebSocketPlatform) Kind() string { return PlatformKindWebSocket }

// MarshalJSON implements json.Marshaler, attaching the "type" tag.
func (p *WebSocketPlatform) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	}{Type: PlatformKindWebSocket, URL: p.URL})
}

// TCPPlatform is a raw TCP endpoint. It is not reachable directly from this
// process; connections to it are bridged through a WebSocket endpoint.
type TCPPlatform struct {
	Address string `json:"address"`
}

// Kind implements the Platform interface.
func (p *TCPPlatform) Kind() string { return PlatformKindTCP }

// MarshalJSON implements json.Marshaler, attaching the "type" tag.
func (p *TCPPlatform) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Address string `json:"address"`
	}{Type: PlatformKindTCP, Address: p.Address})
}

// BundlePlatform is an extension bundle served over a host-mediated channel.
type BundlePlatform struct {
	Location    string `json:"location"`
	ContentType string `json:"contentType,omitempty"`
}

// Kind implements the Platform interface.
func (p *BundlePlatform) Kind() string { return PlatformKindBundle }

// MarshalJSON implements json.Marshaler, attaching the "type" tag.
func (p *BundlePlatform) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string `json:"type"`
		Location    string `json:"location"`
		ContentType string `json:"contentType,omitempty"`
	}{Type: PlatformKindBundle, Location: p.Location, ContentType: p.ContentType})
}

// UnknownPlatform preserves a platform descriptor whose kind this client does
// not implement. The transport factory rejects it as unsupported.
type UnknownPlatform struct {
	Type string `json:"type"`
}

// Kind implements the Platform interface.
func (p *UnknownPlatform) Kind() string { return p.Type }

// UnmarshalPlatform decodes a platform descriptor from its JSON form,
// dispatching on the "type" tag. Unrecognized kinds decode to UnknownPlatform
// rather than failing, so callers can report them as unsupported.
func UnmarshalPlatform(data []byte) (Platform, error) {
	var typeHolder struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(data, &typeHolder); err != nil {
		return nil, err
	}

	switch typeHolder.Type {
	case PlatformKindWebSocket:
		var p WebSocketPlatform
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}

		return &p, nil
	case PlatformKindTCP:
		var p TCPPlatform
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}

		return &p, nil
	case PlatformKindBundle:
		var p BundlePlatform
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}

		return &p, nil
	default:
		return &UnknownPlatform{Type: typeHolder.Type}, nil
	}
}

// Manifest is the declarative metadata an extension publishes: identity,
// activation triggers, and the platform used to connect to it.
type Manifest struct {
	ID               string
	ActivationEvents []string
	Platform         Platform
}

// manifestWire is the JSON shape of Manifest. Platform is kept raw because
// decoding it requires tag dispatch.
type manifestWire struct {
	ID               string          `json:"id,omitempty"`
	ActivationEvents []string        `json:"activationEvents,omitempty"`
	Platform         json.RawMessage `json:"platform,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	wire := manifestWire{ID: m.ID, ActivationEvents: m.ActivationEvents}

	if m.Platform != nil {
		platformJSON, err := json.Marshal(m.Platform)
		if err != nil {
			return nil, err
		}

		wire.Platform = platformJSON
	}

	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var wire manifestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	m.ID = wire.ID
	m.ActivationEvents = wire.ActivationEvents
	m.Platform = nil

	if len(wire.Platform) > 0 && string(wire.Platform) != "null" {
		p, err := UnmarshalPlatform(wire.Platform)
		if err != nil {
			return err
		}

		m.Platform = p
	}

	return nil
}

// ActivatesFor reports whether the manifest's activation events match the
// given language. A nil language matches only the wildcard event.
func (m *Manifest) ActivatesFor(language *string) bool {
	for _, event := range m.ActivationEvents {
		if event == ActivationWildcard {
			return true
		}

		if language != nil && event == ActivationLanguagePrefix+*language {
			return true
		}
	}

	return false
}
