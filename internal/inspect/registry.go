// Package inspect exposes running controllers to in-process debugging
// tools. Controllers register themselves under a name; an MCP tool server
// answers questions about their environment and connection states.
package inspect

import (
	"maps"
	"slices"
	"sync"

	"github.com/opencxp/cxp-client-go/internal/client"
	"github.com/opencxp/cxp-client-go/internal/environment"
)

// Snapshot is the read-only view a registered controller exposes for
// inspection.
type Snapshot interface {
	// Environment returns the most recently applied environment.
	Environment() environment.Environment

	// States returns the connection state per extension ID.
	States() map[string]client.State
}

// Registry tracks the controllers available for inspection by name.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]Snapshot
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		targets: make(map[string]Snapshot, 4),
	}
}

// Register makes snap inspectable under name, replacing any earlier
// registration with the same name.
func (r *Registry) Register(name string, snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.targets[name] = snap
}

// Deregister removes the registration for name, if any.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.targets, name)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.targets))
}

// Lookup returns the snapshot registered under name.
func (r *Registry) Lookup(name string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.targets[name]

	return snap, ok
}
