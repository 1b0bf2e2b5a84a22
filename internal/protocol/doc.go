// Package protocol implements the message exchange with a single connected
// extension.
//
// The protocol package provides a Client that speaks the extension protocol
// over an established Transport: the initialize handshake, request/response
// correlation, and the typed notification streams the controller fans in.
//
// The Client handles:
//   - Sending the initialize request and the initialized notification
//   - Correlating responses to in-flight requests by ID
//   - Decoding notifications into typed streams, tagged with the extension
//   - Answering extension-initiated window/showMessageRequest requests
//
// Example usage:
//
//	client := protocol.NewClient(log, extensionID, transport)
//	client.Start(ctx)
//
//	if err := client.Initialize(ctx, root, settings); err != nil {
//	    // activation failed; tear the transport down
//	}
//
//	for msg := range client.LogMessages() {
//	    // forward to the controller's fan-in
//	}
package protocol
