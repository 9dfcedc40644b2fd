// ABOUTME: Badger-backed store adapter
// ABOUTME: Maps get/put/prefix-iterate onto badger transactions and iterators

package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Options configure the badger-backed store.
type Options struct {
	// InMemory keeps the whole store off disk. The path is ignored.
	InMemory bool

	// SyncWrites forces an fsync on every commit.
	SyncWrites bool

	// Logger receives badger's internal diagnostics. Pass zerolog.Nop()
	// to silence the engine.
	Logger zerolog.Logger
}

// Badger adapts an embedded badger LSM database to the Store interface.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens or creates the store at path.
func OpenBadger(path string, opts Options) (*Badger, error) {
	bopts := badger.DefaultOptions(path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts = bopts.
		WithSyncWrites(opts.SyncWrites).
		WithLogger(&badgerLogger{log: opts.Logger})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	return &Badger{db: db}, nil
}

// Get returns the value for key, or ok=false if absent.
func (s *Badger) Get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get: %w", err)
	}
	return out, true, nil
}

// Put stores value under key.
func (s *Badger) Put(key, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("store: put: %w", err)
	}
	return nil
}

// IteratePrefix visits every key with the given prefix in ascending byte
// order within a single read transaction.
func (s *Badger) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = prefix

		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("store: iterate: %w", err)
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Size reports the LSM tree and value log sizes in bytes.
func (s *Badger) Size() (lsm, vlog int64) {
	return s.db.Size()
}

// Close flushes and closes the underlying database.
func (s *Badger) Close() error {
	return s.db.Close()
}

// badgerLogger forwards badger's internal logging to zerolog. Badger's
// info-level output is chatty, so it is demoted to debug.
type badgerLogger struct {
	log zerolog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.log.Error().Msgf(format, args...)
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.log.Warn().Msgf(format, args...)
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
	b.log.Debug().Msgf(format, args...)
}

func (b *badgerLogger) Debugf(format string, args ...interface{}) {
	b.log.Debug().Msgf(format, args...)
}
