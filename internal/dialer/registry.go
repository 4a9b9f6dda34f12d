package dialer

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Registry maps vendor names to their adapters. It is populated once at
// startup and read-only afterwards; lookups are cheap and concurrent.
//
// The registry is an explicit object passed to the components that need it.
// There is no package-level registry.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its vendor name (case-insensitive).
// Registering the same name twice overwrites and logs a warning.
func (r *Registry) Register(a Adapter) {
	name := strings.ToLower(a.Name())

	r.mu.Lock()
	if _, exists := r.adapters[name]; exists {
		slog.Warn("[DialerRegistry] Adapter already registered, overwriting", "name", name)
	}
	r.adapters[name] = a
	r.mu.Unlock()

	slog.Info("[DialerRegistry] Registered adapter", "name", name)
}

// Get returns the adapter for a vendor name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	a, ok := r.adapters[strings.ToLower(name)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("dialer %q not registered (available: %s)",
			name, strings.Join(r.Names(), ", "))
	}
	return a, nil
}

// Names returns the registered vendor names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}
