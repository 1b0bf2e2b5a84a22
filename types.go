package cxp

import (
	"github.com/opencxp/cxp-client-go/internal/client"
	"github.com/opencxp/cxp-client-go/internal/config"
	"github.com/opencxp/cxp-client-go/internal/decoration"
	"github.com/opencxp/cxp-client-go/internal/environment"
	"github.com/opencxp/cxp-client-go/internal/manifest"
	"github.com/opencxp/cxp-client-go/internal/protocol"
	"github.com/opencxp/cxp-client-go/internal/registry"
	"github.com/opencxp/cxp-client-go/internal/relay"
	"github.com/opencxp/cxp-client-go/internal/settings"
	"github.com/opencxp/cxp-client-go/internal/transport"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// ControllerOptions configures the behavior of the connection controller.
type ControllerOptions = config.Options

// OriginSource supplies the base origin used to bridge tcp-platform
// extensions to a WebSocket endpoint. Origin blocks until the origin becomes
// known or ctx is done.
type OriginSource = config.OriginSource

// StaticOrigin is an OriginSource fixed at construction time.
type StaticOrigin = config.StaticOrigin

// OriginCell is an OriginSource whose value can be set and replaced after
// construction. Origin calls block until the first Set.
type OriginCell = transport.OriginCell

// NewOriginCell creates an empty origin cell.
var NewOriginCell = transport.NewOriginCell

// TransportOpener produces a connected Transport for one extension from its
// manifest. Openers perform no retries: a single failed attempt is final.
type TransportOpener = config.TransportOpener

// ===== Environment =====

// Environment is an immutable snapshot of {root, component, extensions}.
// Derive changed snapshots with its With* methods.
type Environment = environment.Environment

// Component is the document the user is working in.
type Component = environment.Component

// ConfiguredExtension is one extension as configured for the current user.
type ConfiguredExtension = environment.ConfiguredExtension

// ===== Manifests =====

// Manifest describes how an extension activates and connects.
type Manifest = manifest.Manifest

// ParseManifest validates a raw manifest document against the manifest
// schema and decodes it.
var ParseManifest = manifest.Parse

// Platform describes how a connection to an extension is established.
type Platform = manifest.Platform

// WebSocketPlatform is a WebSocket endpoint reachable directly from this
// process.
type WebSocketPlatform = manifest.WebSocketPlatform

// TCPPlatform is a raw TCP endpoint, reached through an HTTP-to-WebSocket
// bridge.
type TCPPlatform = manifest.TCPPlatform

// BundlePlatform is a JavaScript bundle executed host-side, reached through
// the relay.
type BundlePlatform = manifest.BundlePlatform

// UnknownPlatform preserves a platform type this client has no strategy for.
type UnknownPlatform = manifest.UnknownPlatform

// Platform kind strings, as they appear in manifest platform descriptors.
const (
	PlatformKindWebSocket = manifest.PlatformKindWebSocket
	PlatformKindTCP       = manifest.PlatformKindTCP
	PlatformKindBundle    = manifest.PlatformKindBundle
)

// Activation event forms recognized in manifests.
const (
	// ActivationWildcard activates the extension for every environment.
	ActivationWildcard = manifest.ActivationWildcard

	// ActivationLanguagePrefix prefixes a language identifier, activating
	// the extension when the active document has that language.
	ActivationLanguagePrefix = manifest.ActivationLanguagePrefix
)

// ===== Connection States =====

// ConnectionState is the lifecycle state of one extension connection.
type ConnectionState = client.State

const (
	// StateInitial is the state of a freshly created connection entry.
	StateInitial = client.StateInitial
	// StateConnecting means the activation has been dispatched.
	StateConnecting = client.StateConnecting
	// StateInitializing covers transport creation and the handshake.
	StateInitializing = client.StateInitializing
	// StateActive means the handshake completed and notifications flow.
	StateActive = client.StateActive
	// StateShuttingDown means teardown has begun.
	StateShuttingDown = client.StateShuttingDown
	// StateStopped is the terminal state of a normal teardown.
	StateStopped = client.StateStopped
	// StateActivateFailed is the terminal state of a failed activation.
	StateActivateFailed = client.StateActivateFailed
)

// StateTransition is one observed connection state change.
type StateTransition = client.Transition

// ===== Notifications =====

// MessageType classifies window messages by severity.
type MessageType = protocol.MessageType

const (
	// MessageTypeError is the most severe message class.
	MessageTypeError = protocol.MessageTypeError
	// MessageTypeWarning is a warning message.
	MessageTypeWarning = protocol.MessageTypeWarning
	// MessageTypeInfo is an informational message.
	MessageTypeInfo = protocol.MessageTypeInfo
	// MessageTypeLog is the least severe message class.
	MessageTypeLog = protocol.MessageTypeLog
)

// LogMessage is a window/logMessage notification, tagged with the extension
// that produced it.
type LogMessage = protocol.LogMessage

// UserMessage is a window/showMessage notification: a fire-and-forget
// message meant to be shown to the user.
type UserMessage = protocol.UserMessage

// MessageRequest is a window/showMessageRequest request. Consumers must call
// Resolve exactly once per request.
type MessageRequest = protocol.MessageRequest

// MessageAction is one candidate answer to a MessageRequest.
type MessageAction = protocol.MessageAction

// DecorationsNotification publishes the full decoration set for a document,
// replacing any set previously published by the same extension.
type DecorationsNotification = protocol.DecorationsNotification

// ConfigurationUpdate is an extension's request to change one settings
// value, addressed by key path.
type ConfigurationUpdate = protocol.ConfigurationUpdate

// ===== Decorations =====

// Decoration styles one line of a document.
type Decoration = decoration.Decoration

// DecorationAttachment is content appended after a decorated line.
type DecorationAttachment = decoration.Attachment

// DecorationCell is one decorable line cell in the hosted view.
type DecorationCell = decoration.Cell

// DecorationHost is the hosted code view decorations render into.
type DecorationHost = decoration.Host

// AppliedDecoration is a rendered decoration that can be undone with
// Dispose.
type AppliedDecoration = decoration.Applied

// ApplyDecoration renders a decoration into a host view. Zero or multiple
// cells matching the target line fail with AmbiguousTargetError before any
// mutation happens.
var ApplyDecoration = decoration.Apply

// ===== Relay =====

// RelayHost is the embedder-supplied relay boundary: the pre-established
// control channel to the host-side broker, plus the means of opening the
// dedicated channels named in broker responses.
type RelayHost = relay.Host

// RelayConn is one duplex message channel through the host relay.
type RelayConn = relay.Conn

// RelayPipe returns a connected pair of in-memory relay channels, useful for
// tests and in-process hosts.
var RelayPipe = relay.Pipe

// ChannelRequest asks the host-side broker for a dedicated channel to one
// extension.
type ChannelRequest = relay.ChannelRequest

// ChannelResponse answers a ChannelRequest.
type ChannelResponse = relay.ChannelResponse

// ParseChannelRequest extracts a ChannelRequest from a decoded
// control-channel message. Host-side implementations use it to interpret
// what the broker sent.
var ParseChannelRequest = relay.ParseChannelRequest

// ===== Registry =====

// ExtensionRecord is one configured extension as an extension registry
// reports it.
type ExtensionRecord = registry.Record

// ConvertRecords turns registry records into configured extensions, in
// order. Manifest problems never drop a record: they are recorded on the
// extension so the activation filter excludes it.
var ConvertRecords = registry.ConvertRecords

// RegistrySource is the push boundary to an extension registry: a stream of
// ordered configured-extension lists.
type RegistrySource = registry.Source

// StaticRegistrySource is a RegistrySource with one fixed list that never
// updates.
type StaticRegistrySource = registry.StaticSource

// ===== Settings =====

// SettingsStore reads and edits one JSON settings document on disk,
// preserving the document's formatting.
type SettingsStore = settings.Store
