package transport

import (
	"context"
	"sync"

	"github.com/opencxp/cxp-client-go/internal/config"
)

// OriginCell is a settable origin source for the bridge strategy. Origin
// blocks callers until a value is first published, then serves the latest
// value immediately. Hosts typically learn their public origin after the
// client is constructed, so the cell starts empty.
type OriginCell struct {
	mu     sync.Mutex
	origin string
	set    bool
	ready  chan struct{}
}

// Compile-time verification that OriginCell implements the OriginSource interface.
var _ config.OriginSource = (*OriginCell)(nil)

// NewOriginCell creates an empty origin cell.
func NewOriginCell() *OriginCell {
	return &OriginCell{ready: make(chan struct{})}
}

// Set publishes the origin and releases any blocked Origin callers. Later
// calls replace the value for future callers.
func (c *OriginCell) Set(origin string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.origin = origin

	if !c.set {
		c.set = true
		close(c.ready)
	}
}

// Origin returns the published origin, blocking until one is available or
// ctx is done.
func (c *OriginCell) Origin(ctx context.Context) (string, error) {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.origin, nil
}
