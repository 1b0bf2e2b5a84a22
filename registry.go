package cxp

import (
	"context"

	"github.com/opencxp/cxp-client-go/internal/registry"
)

// BindRegistry feeds the controller from the source: every extension list
// emitted becomes a new environment snapshot derived from the controller's
// current one, leaving root and component untouched.
//
// It blocks until the source closes its stream, ctx is done, or the
// controller rejects an update; run it on its own goroutine.
//
//	go func() {
//	    if err := cxp.BindRegistry(ctx, ctrl, source); err != nil {
//	        log.Printf("registry stream stopped: %v", err)
//	    }
//	}()
func BindRegistry(ctx context.Context, ctrl Controller, src RegistrySource) error {
	return registry.Bind(ctx, ctrl, src)
}

// SourceFromChannel adapts a channel of extension lists into a
// RegistrySource. The stream ends when the channel closes.
// This is useful for embedders that compute extension lists over time.
func SourceFromChannel(ch <-chan []*ConfiguredExtension) RegistrySource {
	return channelSource(ch)
}

// channelSource forwards lists from a caller-owned channel.
type channelSource <-chan []*ConfiguredExtension

// Subscribe implements the RegistrySource interface.
func (s channelSource) Subscribe(ctx context.Context) (<-chan []*ConfiguredExtension, error) {
	out := make(chan []*ConfiguredExtension)

	go func() {
		defer close(out)

		for {
			select {
			case list, ok := <-s:
				if !ok {
					return
				}

				select {
				case out <- list:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
