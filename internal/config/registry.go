package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/voiceid/internal/resilience"
	"github.com/MrWong99/voiceid/pkg/profilestore"
)

// ErrBackendNotRegistered is returned by [Registry.CreateStore] when no
// factory has been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: storage backend not registered")

// StoreFactory constructs a storage backend from the storage config.
type StoreFactory func(ctx context.Context, cfg StorageConfig) (profilestore.Store, error)

// Registry maps storage backend names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	storage map[Backend]StoreFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{storage: make(map[Backend]StoreFactory)}
}

// RegisterStore registers a storage backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterStore(name Backend, factory StoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[name] = factory
}

// Backends returns the registered backend names in sorted order.
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]Backend, 0, len(r.storage))
	for name := range r.storage {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CreateStore instantiates the backend registered under name.
func (r *Registry) CreateStore(ctx context.Context, name Backend, cfg StorageConfig) (profilestore.Store, error) {
	r.mu.RLock()
	factory, ok := r.storage[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, name)
	}
	return factory(ctx, cfg)
}

// OpenStorage creates the primary backend named by cfg.Backend. When
// cfg.Fallback is set, both are combined in a [profilestore.Failover].
func (r *Registry) OpenStorage(ctx context.Context, cfg StorageConfig) (profilestore.Store, error) {
	primary, err := r.CreateStore(ctx, cfg.Backend, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: open storage %q: %w", cfg.Backend, err)
	}
	if cfg.Fallback == "" {
		return primary, nil
	}

	fallback, err := r.CreateStore(ctx, cfg.Fallback, cfg)
	if err != nil {
		_ = primary.Close()
		return nil, fmt.Errorf("config: open fallback storage %q: %w", cfg.Fallback, err)
	}
	f := profilestore.NewFailover(string(cfg.Backend), primary, resilience.CircuitBreakerConfig{
		MaxFailures:  3,
		ResetTimeout: 30 * time.Second,
		HalfOpenMax:  1,
	})
	f.Add(string(cfg.Fallback), fallback)
	return f, nil
}
