// Package file implements [profilestore.Store] as one file per key inside a
// directory.
//
// Writes go to a temporary file in the same directory and are renamed into
// place, so a crash mid-write leaves the previous value intact.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MrWong99/voiceid/pkg/profilestore"
)

var _ profilestore.Store = (*Store)(nil)

// ErrInvalidKey is returned for keys that cannot be used as a file name.
var ErrInvalidKey = errors.New("file store: invalid key")

const suffix = ".json"

// Store keeps each key in <dir>/<key>.json.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// New creates the directory if needed and returns a [Store] rooted at it.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("file store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+suffix), nil
}

// Load implements [profilestore.Store.Load].
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, profilestore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("file store: load %q: %w", key, err)
	}
	return data, nil
}

// Save implements [profilestore.Store.Save].
func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("file store: save %q: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file store: save %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file store: save %q: %w", key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file store: save %q: %w", key, err)
	}
	return nil
}

// Delete implements [profilestore.Store.Delete].
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file store: delete %q: %w", key, err)
	}
	return nil
}

// Ping reports whether the directory still exists.
func (s *Store) Ping(context.Context) error {
	fi, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("file store: ping: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("file store: ping: %s is not a directory", s.dir)
	}
	return nil
}

// Close implements [profilestore.Store.Close]. It holds no resources.
func (s *Store) Close() error { return nil }
