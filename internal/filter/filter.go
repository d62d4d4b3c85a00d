package filter

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Filter is the uniform operation set for derivative producers. Callers can
// apply any registered filter to any source without knowing its concrete
// type.
type Filter interface {
	// Name identifies the filter in configuration, the registry, and the
	// run ledger.
	Name() string

	// DerivedName maps an original filename to the derivative's filename.
	// It is pure and total: it appends exactly one fixed suffix and never
	// truncates or otherwise alters the original name.
	DerivedName(source string) string

	// TargetGroup is the bundle name the derivative is filed under.
	TargetGroup() string

	// FormatLabel is the short format tag of the derivative content.
	FormatLabel() string

	// Description is a human-readable summary for registration and display.
	Description() string

	// Transform produces the derivative. It consumes and closes source
	// exactly once, blocks until the work completes or ctx is done, and
	// returns the full derivative stream on success. On failure no partial
	// output is returned and any staging state has been cleaned up.
	Transform(ctx context.Context, source io.ReadCloser, verbose bool) (io.ReadCloser, error)
}

// Registry holds the closed set of filter variants, selected by name.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Filter
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Filter)}
}

// Register adds a filter. Registering the same name twice is an error.
func (r *Registry) Register(f Filter) error {
	if f == nil {
		return fmt.Errorf("register filter: nil filter")
	}
	name := f.Name()
	if name == "" {
		return fmt.Errorf("register filter: empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("register filter: %q already registered", name)
	}
	r.byName[name] = f
	r.order = append(r.order, name)
	return nil
}

// Get returns the filter registered under name.
func (r *Registry) Get(name string) (Filter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byName[name]
	return f, ok
}

// All returns the registered filters in registration order.
func (r *Registry) All() []Filter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	filters := make([]Filter, 0, len(r.order))
	for _, name := range r.order {
		filters = append(filters, r.byName[name])
	}
	return filters
}

// Names returns the registered filter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}
