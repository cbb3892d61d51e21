// Package strategy defines the signal-generating side of a backtest and a
// Registry that hands out one fresh Strategy per run.
package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bandtest/internal/domain"
)

// Strategy turns banded bars into trading signals.
type Strategy interface {
	// Name returns the registry key.
	Name() string

	// Init is called once per run before the first bar.
	Init(ctx context.Context) error

	// OnBar is called once per bar in date order with the account state
	// before the bar is acted upon. It returns zero or more trading signals.
	OnBar(ctx context.Context, bar domain.BandedBar, account domain.AccountInfo) ([]domain.Signal, error)
}

// Factory builds a Strategy. Runs never share an instance, so strategies
// may keep per-run state without locking.
type Factory func() Strategy

// Registry maps strategy names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds f under name. Registering a name twice is an error.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		return fmt.Errorf("strategy %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register for init-time wiring; it panics on duplicates.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Get returns a new instance of the named strategy.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(), true
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
