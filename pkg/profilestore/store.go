// Package profilestore defines the persistent key-value slots the app keeps
// its voice data in, and the backends that implement them.
//
// The app stores two opaque blobs: the serialised profile set under
// [KeyProfiles] and the ID of the last identified speaker under
// [KeyLastIdentified]. Backends do not interpret the values.
//
// Available backends:
//   - [Memory]: process-local, for tests and throwaway sessions.
//   - file: one file per key in a directory.
//   - badger: an embedded BadgerDB database.
//   - postgres: a single table in PostgreSQL.
//
// [Failover] chains backends so that a failing primary is bypassed.
package profilestore

import (
	"context"
	"errors"
	"slices"
	"sync"
)

const (
	// KeyProfiles is the slot holding the serialised profile set.
	KeyProfiles = "voiceProfiles"

	// KeyLastIdentified is the slot holding the last identified speaker ID.
	KeyLastIdentified = "lastIdentifiedChild"
)

// ErrNotFound is returned by [Store.Load] when the key has never been saved.
var ErrNotFound = errors.New("profilestore: not found")

// Store is a persistent key-value slot store.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Load returns the value saved under key, or [ErrNotFound].
	Load(ctx context.Context, key string) ([]byte, error)

	// Save stores value under key, replacing any previous value.
	Save(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// Compile-time assertion that Memory satisfies the Store interface.
var _ Store = (*Memory)(nil)

// Memory is an in-process [Store]. The zero value is ready to use.
type Memory struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemory returns an empty [Memory] store.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string][]byte)}
}

// Load implements [Store.Load].
func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.slots[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

// Save implements [Store.Save].
func (m *Memory) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slots == nil {
		m.slots = make(map[string][]byte)
	}
	m.slots[key] = slices.Clone(value)
	return nil
}

// Delete implements [Store.Delete].
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, key)
	return nil
}

// Ping implements [Store.Ping].
func (m *Memory) Ping(context.Context) error { return nil }

// Close implements [Store.Close].
func (m *Memory) Close() error { return nil }
