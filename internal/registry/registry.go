// Package registry adapts configured-extension records pushed by an
// extension registry into the environment model the controller consumes.
//
// The registry itself - fetching, caching, merging of settings cascades -
// lives outside this module. This package owns the boundary: raw records in,
// validated ConfiguredExtension values out, plus a pump that feeds a
// controller from a record stream.
package registry

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/opencxp/cxp-client-go/internal/environment"
	"github.com/opencxp/cxp-client-go/internal/errors"
	"github.com/opencxp/cxp-client-go/internal/manifest"
)

// Record is one configured extension as the registry reports it: identity,
// enablement, the user's merged settings, and the raw manifest document or
// the reason it could not be produced.
type Record struct {
	// ID is the extension identifier, unique within one list.
	ID string `json:"extensionId"`

	// Enabled reports whether the user has the extension turned on.
	Enabled bool `json:"enabled"`

	// Settings is the merged settings value for the extension. Opaque to
	// this client; it is handed to the extension during the handshake.
	Settings any `json:"settings,omitempty"`

	// Manifest is the raw manifest document. Nil when the extension has
	// not published one.
	Manifest json.RawMessage `json:"manifest,omitempty"`

	// FetchErr records a registry-side failure to produce the manifest.
	FetchErr error `json:"-"`
}

// ConvertRecord turns one record into a configured extension.
//
// Manifest problems never fail the conversion: they are recorded on the
// extension as an InvalidManifestError so the activation filter excludes it
// and diagnostics can name the cause.
func ConvertRecord(log *slog.Logger, rec Record) *environment.ConfiguredExtension {
	ext := &environment.ConfiguredExtension{
		ID:       rec.ID,
		Settings: rec.Settings,
		Enabled:  rec.Enabled,
	}

	switch {
	case rec.FetchErr != nil:
		ext.ManifestErr = &errors.InvalidManifestError{ExtensionID: rec.ID, Err: rec.FetchErr}

		log.Warn("Extension manifest unavailable", "extension_id", rec.ID, "error", rec.FetchErr)

	case len(rec.Manifest) == 0:
		// No manifest published. The extension stays listed but can never
		// activate.

	default:
		m, err := manifest.Parse(rec.Manifest)
		if err != nil {
			ext.ManifestErr = &errors.InvalidManifestError{ExtensionID: rec.ID, Err: err}

			log.Warn("Extension manifest rejected", "extension_id", rec.ID, "error", err)

			break
		}

		if m.ID == "" {
			m.ID = rec.ID
		}

		ext.Manifest = m
	}

	return ext
}

// ConvertRecords converts a record list in order.
func ConvertRecords(log *slog.Logger, records []Record) []*environment.ConfiguredExtension {
	log = log.With("component", "registry")

	exts := make([]*environment.ConfiguredExtension, 0, len(records))
	for _, rec := range records {
		exts = append(exts, ConvertRecord(log, rec))
	}

	return exts
}

// Source is the push boundary to an extension registry: a stream of ordered
// configured-extension lists.
type Source interface {
	// Subscribe returns a channel of extension lists. Implementations
	// yield the current list promptly and close the channel when ctx is
	// done or the stream ends.
	Subscribe(ctx context.Context) (<-chan []*environment.ConfiguredExtension, error)
}

// StaticSource is a Source with one fixed list that never updates.
type StaticSource []*environment.ConfiguredExtension

// Subscribe implements the Source interface.
func (s StaticSource) Subscribe(ctx context.Context) (<-chan []*environment.ConfiguredExtension, error) {
	ch := make(chan []*environment.ConfiguredExtension, 1)
	ch <- append([]*environment.ConfiguredExtension(nil), s...)

	go func() {
		<-ctx.Done()
		close(ch)
	}()

	return ch, nil
}

// Controller is the slice of the connection controller Bind drives.
type Controller interface {
	Environment() environment.Environment
	SetEnvironment(ctx context.Context, env environment.Environment) error
}

// Bind feeds the controller from the source: every extension list emitted
// becomes a new environment snapshot derived from the controller's current
// one, leaving root and component untouched.
//
// Bind blocks until the source closes its stream, ctx is done, or the
// controller rejects an update; run it on its own goroutine.
func Bind(ctx context.Context, ctrl Controller, src Source) error {
	lists, err := src.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case list, ok := <-lists:
			if !ok {
				return nil
			}

			env := ctrl.Environment().WithExtensions(list)

			if err := ctrl.SetEnvironment(ctx, env); err != nil {
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
