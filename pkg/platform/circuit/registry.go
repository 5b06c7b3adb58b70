package circuit

import (
	"fmt"
	"sort"
	"sync"

	"docverify/pkg/platform/sentinel"
)

// Registry holds the process-wide breakers keyed by dependency name.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// Register adds b, replacing any breaker with the same name.
func (r *Registry) Register(b *Breaker) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers[b.Name()] = b
	return b
}

// Get returns the named breaker, or nil.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[name]
}

// Snapshots lists every registered breaker sorted by name.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Snapshot())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset closes the named breaker.
func (r *Registry) Reset(name string) error {
	b := r.Get(name)
	if b == nil {
		return fmt.Errorf("breaker %q: %w", name, sentinel.ErrNotFound)
	}
	b.Reset()
	return nil
}
