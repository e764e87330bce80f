package profilestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/voiceid/internal/resilience"
)

// ErrAllFailed is returned by [Failover] when every backend failed or had an
// open circuit breaker.
var ErrAllFailed = errors.New("profilestore: all backends failed")

var _ Store = (*Failover)(nil)

type failoverEntry struct {
	name    string
	store   Store
	breaker *resilience.CircuitBreaker
}

// Failover is a [Store] that tries a primary backend and then each fallback
// in registration order. Every backend has its own circuit breaker so that a
// backend that keeps failing is skipped until its reset timeout elapses.
//
// Writes go to the first backend that accepts them; they are not replicated.
// [ErrNotFound] from a backend is a definite answer and does not trip its
// breaker or fall through.
type Failover struct {
	entries []failoverEntry
	cfg     resilience.CircuitBreakerConfig
}

// NewFailover returns a [Failover] with primary as its first backend.
func NewFailover(primaryName string, primary Store, cfg resilience.CircuitBreakerConfig) *Failover {
	f := &Failover{cfg: cfg}
	f.Add(primaryName, primary)
	return f
}

// Add appends a fallback backend.
func (f *Failover) Add(name string, s Store) {
	cbCfg := f.cfg
	cbCfg.Name = "profilestore/" + name
	f.entries = append(f.entries, failoverEntry{
		name:    name,
		store:   s,
		breaker: resilience.NewCircuitBreaker(cbCfg),
	})
}

// do runs fn against each backend until one succeeds.
func (f *Failover) do(op string, fn func(Store) error) error {
	var lastErr error
	for i := range f.entries {
		e := &f.entries[i]
		var notFound bool
		err := e.breaker.Execute(func() error {
			err := fn(e.store)
			if errors.Is(err, ErrNotFound) {
				notFound = true
				return nil
			}
			return err
		})
		if notFound {
			return ErrNotFound
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, resilience.ErrCircuitOpen) {
			slog.Debug("skipping profile backend (circuit open)", "backend", e.name, "op", op)
		} else {
			slog.Warn("profile backend failed, trying next", "backend", e.name, "op", op, "err", err)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrAllFailed, op, lastErr)
}

// Load implements [Store.Load].
func (f *Failover) Load(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := f.do("load", func(s Store) error {
		v, err := s.Load(ctx, key)
		out = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save implements [Store.Save].
func (f *Failover) Save(ctx context.Context, key string, value []byte) error {
	return f.do("save", func(s Store) error { return s.Save(ctx, key, value) })
}

// Delete implements [Store.Delete].
func (f *Failover) Delete(ctx context.Context, key string) error {
	return f.do("delete", func(s Store) error { return s.Delete(ctx, key) })
}

// Ping succeeds when at least one backend is reachable.
func (f *Failover) Ping(ctx context.Context) error {
	return f.do("ping", func(s Store) error { return s.Ping(ctx) })
}

// Close closes every backend and joins their errors.
func (f *Failover) Close() error {
	var errs []error
	for _, e := range f.entries {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		}
	}
	return errors.Join(errs...)
}
