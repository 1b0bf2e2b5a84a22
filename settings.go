package cxp

import (
	"context"
	"log/slog"

	"github.com/opencxp/cxp-client-go/internal/settings"
)

// NewSettingsStore creates a store for the settings document at path. The
// file does not have to exist yet; the first edit creates it.
// If logger is nil, logging is disabled.
func NewSettingsStore(logger *slog.Logger, path string) *SettingsStore {
	if logger == nil {
		logger = NopLogger()
	}

	return settings.NewStore(logger, path)
}

// SyncSettings applies every configuration update the controller yields to
// the store, preserving the document's formatting.
//
// It blocks until the controller closes its update channel or ctx is done;
// run it on its own goroutine. A failed edit stops the sync and returns the
// error: updates must not be dropped silently.
//
//	store := cxp.NewSettingsStore(logger, "/home/me/.config/app/settings.json")
//	go func() {
//	    if err := cxp.SyncSettings(ctx, ctrl, store); err != nil {
//	        log.Printf("settings sync stopped: %v", err)
//	    }
//	}()
func SyncSettings(ctx context.Context, ctrl Controller, store *SettingsStore) error {
	updates := ctrl.ConfigurationUpdates()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}

			if err := store.Apply(update.Path, update.Value); err != nil {
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
