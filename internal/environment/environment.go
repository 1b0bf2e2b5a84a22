// Package environment models the client's view of editor state - the root
// context, the active component, and the configured extensions - as one
// immutable snapshot, and derives the set of extensions that should be
// active for it.
package environment

import (
	"slices"

	"github.com/opencxp/cxp-client-go/internal/manifest"
)

// Component is the document the user is working in.
type Component struct {
	// Document identifies the open document (a URI).
	Document string

	// Language is the document's language identifier, matched against
	// "onLanguage:" activation events.
	Language string
}

// ConfiguredExtension is one extension as configured for the current user.
//
// Manifest and ManifestErr are mutually exclusive; both nil means the
// extension published no manifest. Either way the extension cannot activate.
type ConfiguredExtension struct {
	// ID uniquely identifies the extension within a snapshot. An extension
	// reappearing with the same ID replaces the earlier entry, it is never
	// duplicated.
	ID string

	// Settings is the merged settings value for this extension. The
	// controller treats it as opaque.
	Settings any

	// Enabled reports whether the user has the extension turned on.
	Enabled bool

	// Manifest is the extension's parsed manifest, if it has a valid one.
	Manifest *manifest.Manifest

	// ManifestErr records why the manifest could not be fetched or parsed.
	ManifestErr error
}

// Environment is an immutable snapshot of {root, component, extensions}.
//
// Replacing the whole snapshot is the only mutation primitive: derive
// changed snapshots with the With* helpers so downstream consumers always
// observe atomic transitions.
type Environment struct {
	// Root is the root context URI, or nil.
	Root *string

	// Component is the active document, or nil.
	Component *Component

	// Extensions is the ordered configured-extension list.
	Extensions []*ConfiguredExtension
}

// WithRoot returns a copy of the snapshot with the root replaced.
func (e Environment) WithRoot(root *string) Environment {
	e.Root = root

	return e
}

// WithComponent returns a copy of the snapshot with the active component
// replaced.
func (e Environment) WithComponent(component *Component) Environment {
	e.Component = component

	return e
}

// WithExtensions returns a copy of the snapshot with the extension list
// replaced. The list is cloned so later caller mutations cannot leak into
// the snapshot.
func (e Environment) WithExtensions(extensions []*ConfiguredExtension) Environment {
	e.Extensions = slices.Clone(extensions)

	return e
}
