package environment

import "log/slog"

// ActiveExtensions returns the subset of the snapshot's extensions that
// should be running for its component.
//
// An extension is excluded when it is disabled, has no manifest, or its
// manifest errored. Otherwise it is included when its activation events
// contain the wildcard, or name the component's language. With no component,
// only the wildcard qualifies.
//
// Evaluation is pure: the same snapshot always yields the same result. A
// panic while evaluating one extension excludes that extension only; it is
// recovered and logged, never propagated.
func ActiveExtensions(log *slog.Logger, env Environment) []*ConfiguredExtension {
	log = log.With("component", "activation_filter")

	var language *string
	if env.Component != nil {
		language = &env.Component.Language
	}

	active := make([]*ConfiguredExtension, 0, len(env.Extensions))

	for _, ext := range env.Extensions {
		if shouldActivate(log, ext, language) {
			active = append(active, ext)
		}
	}

	return active
}

// shouldActivate evaluates one extension, converting panics into exclusion.
func shouldActivate(log *slog.Logger, ext *ConfiguredExtension, language *string) (include bool) {
	defer func() {
		if r := recover(); r != nil {
			var id string
			if ext != nil {
				id = ext.ID
			}

			log.Warn("Activation check panicked, excluding extension",
				"extension_id", id,
				"panic", r,
			)

			include = false
		}
	}()

	if !ext.Enabled || ext.Manifest == nil || ext.ManifestErr != nil {
		return false
	}

	return ext.Manifest.ActivatesFor(language)
}
