package cxp

import (
	"context"
	"fmt"
)

// WithController manages controller lifecycle with automatic cleanup.
//
// This helper creates a controller, starts it with the provided options,
// executes the callback function, and ensures proper cleanup via Close()
// when done.
//
// The callback receives a started Controller that is ready for
// SetEnvironment. If the callback returns an error, it is returned to the
// caller. If Close() fails, a warning is logged but does not override the
// callback's error.
//
// Example usage:
//
//	err := cxp.WithController(ctx, func(ctrl cxp.Controller) error {
//	    if err := ctrl.SetEnvironment(ctx, env); err != nil {
//	        return err
//	    }
//	    for msg := range ctrl.LogMessages() {
//	        // process message...
//	    }
//	    return nil
//	},
//	    cxp.WithLogger(log),
//	    cxp.WithRelayHost(host),
//	)
func WithController(ctx context.Context, fn func(Controller) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	ctrl := NewController()
	if err := ctrl.Start(ctx, opts...); err != nil {
		return fmt.Errorf("failed to start controller: %w", err)
	}

	defer func() {
		if closeErr := ctrl.Close(); closeErr != nil {
			log.Warn("failed to close controller", "error", closeErr)
		}
	}()

	return fn(ctrl)
}
