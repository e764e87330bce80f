// Package mock provides a recording [profilestore.Store] for tests.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/voiceid/pkg/profilestore"
)

var _ profilestore.Store = (*Store)(nil)

// Call is one recorded method invocation.
type Call struct {
	Method string
	Key    string
	Value  []byte
}

// Store is an in-memory [profilestore.Store] that records every call and can
// be told to fail.
//
// Set the *Err fields to make the corresponding method return that error
// instead of touching the data.
type Store struct {
	mu sync.Mutex

	LoadErr   error
	SaveErr   error
	DeleteErr error
	PingErr   error
	CloseErr  error

	data  map[string][]byte
	calls []Call
}

// New returns an empty mock store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Load implements [profilestore.Store.Load].
func (s *Store) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Load", Key: key})
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, profilestore.ErrNotFound
	}
	return slices.Clone(v), nil
}

// Save implements [profilestore.Store.Save].
func (s *Store) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Save", Key: key, Value: slices.Clone(value)})
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[key] = slices.Clone(value)
	return nil
}

// Delete implements [profilestore.Store.Delete].
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Delete", Key: key})
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.data, key)
	return nil
}

// Ping implements [profilestore.Store.Ping].
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Ping"})
	return s.PingErr
}

// Close implements [profilestore.Store.Close].
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Close"})
	return s.CloseErr
}

// SetErr sets the error returned by every method at once. Pass nil to
// clear it.
func (s *Store) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LoadErr, s.SaveErr, s.DeleteErr, s.PingErr = err, err, err, err
}

// Calls returns a copy of the recorded calls.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CallCount returns how many times method was called.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Value returns the stored value for key without recording a call.
func (s *Store) Value(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return slices.Clone(v), ok
}
