package relay

import (
	"encoding/json"
	"fmt"
)

// ChannelRequest asks the host-side broker for a dedicated channel to one
// extension.
//
// Wire format:
//
//	{
//	  "token": "01JF8Z3V9NXQ4T2M6B7R5KD0WS",
//	  "extensionId": "lang/x",
//	  "platform": {"type": "websocket", "url": "wss://h/x"}
//	}
type ChannelRequest struct {
	// Token uniquely identifies this request for response correlation.
	Token string `json:"token"`

	// ExtensionID is the extension the channel is for.
	ExtensionID string `json:"extensionId"`

	// Platform is the extension's platform descriptor, as declared in its
	// manifest.
	Platform json.RawMessage `json:"platform"`
}

// ChannelResponse answers a ChannelRequest. Exactly one of ChannelName or
// Error is set.
//
// Wire format for success:
//
//	{"token": "01JF8Z3V9NXQ4T2M6B7R5KD0WS", "channelName": "c1"}
//
// Wire format for failure:
//
//	{"token": "01JF8Z3V9NXQ4T2M6B7R5KD0WS", "error": "no such bundle"}
type ChannelResponse struct {
	// Token echoes the request token.
	Token string `json:"token"`

	// ChannelName names the dedicated channel to open. Empty on failure.
	ChannelName string `json:"channelName,omitempty"`

	// Error describes why no channel was granted. Empty on success.
	Error string `json:"error,omitempty"`
}

// ParseChannelRequest extracts a ChannelRequest from a decoded
// control-channel message. Host-side implementations use it to interpret
// what the broker sent.
func ParseChannelRequest(msg map[string]any) (*ChannelRequest, error) {
	token, ok := msg["token"].(string)
	if !ok {
		return nil, fmt.Errorf("channel request missing 'token' field")
	}

	extensionID, ok := msg["extensionId"].(string)
	if !ok {
		return nil, fmt.Errorf("channel request missing 'extensionId' field")
	}

	req := &ChannelRequest{Token: token, ExtensionID: extensionID}

	if platform, ok := msg["platform"]; ok {
		data, err := json.Marshal(platform)
		if err != nil {
			return nil, fmt.Errorf("channel request platform: %w", err)
		}

		req.Platform = data
	}

	return req, nil
}
