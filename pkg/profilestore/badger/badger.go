// Package badger implements [profilestore.Store] on an embedded BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/MrWong99/voiceid/pkg/profilestore"
)

var _ profilestore.Store = (*Store)(nil)

// keyPrefix namespaces the slots inside a database that may hold other data.
const keyPrefix = "voiceid/"

// Options configures the BadgerDB store.
type Options struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool

	// Logger receives badger's warnings and errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// Store is a BadgerDB-backed [profilestore.Store].
type Store struct {
	db *badgerdb.DB
}

// New opens (or creates) the database described by opts.
func New(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger store: Options.Dir is required for on-disk mode")
	}
	dbOpts := badgerdb.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badgerdb.DefaultOptions("").WithInMemory(true)
	}
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(slogLogger{l: l.With("component", "badger")})

	db, err := badgerdb.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("badger store: open: %w", err)
	}
	return &Store{db: db}, nil
}

func dbKey(key string) []byte { return []byte(keyPrefix + key) }

// Load implements [profilestore.Store.Load].
func (s *Store) Load(_ context.Context, key string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, profilestore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger store: load %q: %w", key, err)
	}
	return val, nil
}

// Save implements [profilestore.Store.Save].
func (s *Store) Save(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(dbKey(key), value)
	})
	if err != nil {
		return fmt.Errorf("badger store: save %q: %w", key, err)
	}
	return nil
}

// Delete implements [profilestore.Store.Delete].
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(dbKey(key))
	})
	if err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
		return fmt.Errorf("badger store: delete %q: %w", key, err)
	}
	return nil
}

// Ping reports an error once the database has been closed.
func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger store: database is closed")
	}
	return nil
}

// Close implements [profilestore.Store.Close].
func (s *Store) Close() error {
	return s.db.Close()
}

// slogLogger adapts slog to badger's logger interface. Info and debug output
// is dropped; badger is chatty at those levels.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Errorf(f string, v ...any)   { s.l.Error(fmt.Sprintf(f, v...)) }
func (s slogLogger) Warningf(f string, v ...any) { s.l.Warn(fmt.Sprintf(f, v...)) }
func (slogLogger) Infof(string, ...any)          {}
func (slogLogger) Debugf(string, ...any)         {}
