// Package cometbftdb adapts github.com/cometbft/cometbft-db's dbm.DB to
// pkg/backend.Backend. This is the ordered byte-key backend this module
// ships: MemDB for tests, GoLevelDB for the demo entrypoint's durable store.
package cometbftdb

import (
	"fmt"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/JavierDuqueMelguizo/taple-core/pkg/backend"
)

// DB wraps a dbm.DB and exposes backend.Backend.
type DB struct {
	db dbm.DB
}

// OpenMemory returns an in-memory backend, used throughout this module's
// tests and by callers that don't need durability across process restarts.
func OpenMemory() *DB {
	return &DB{db: dbm.NewMemDB()}
}

// OpenGoLevelDB opens (creating if absent) a durable LevelDB-backed store
// named name under dir.
func OpenGoLevelDB(name, dir string) (*DB, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, fmt.Errorf("cometbftdb: open goleveldb %s/%s: %w", dir, name, err)
	}
	return &DB{db: db}, nil
}

// Wrap adapts an already-open dbm.DB, for callers that construct their own
// (e.g. a BadgerDB or RocksDB build of cometbft-db).
func Wrap(db dbm.DB) *DB { return &DB{db: db} }

func (d *DB) Get(key []byte) ([]byte, error) {
	v, err := d.db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("cometbftdb: get: %w", err)
	}
	if v == nil {
		return nil, backend.ErrKeyNotFound
	}
	return v, nil
}

func (d *DB) Put(key, value []byte, sync bool) error {
	var err error
	if sync {
		err = d.db.SetSync(key, value)
	} else {
		err = d.db.Set(key, value)
	}
	if err != nil {
		return fmt.Errorf("cometbftdb: put: %w", err)
	}
	return nil
}

func (d *DB) Delete(key []byte, sync bool) error {
	var err error
	if sync {
		err = d.db.DeleteSync(key)
	} else {
		err = d.db.Delete(key)
	}
	if err != nil {
		return fmt.Errorf("cometbftdb: delete: %w", err)
	}
	return nil
}

func (d *DB) Iterator(start, end []byte, reverse bool) (backend.Cursor, error) {
	var it dbm.Iterator
	var err error
	if reverse {
		it, err = d.db.ReverseIterator(start, end)
	} else {
		it, err = d.db.Iterator(start, end)
	}
	if err != nil {
		return nil, fmt.Errorf("cometbftdb: iterator: %w", err)
	}
	return &cursor{it: it}, nil
}

func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("cometbftdb: close: %w", err)
	}
	return nil
}

// cursor adapts dbm.Iterator, which is already positioned on the first
// entry at construction, to backend.Cursor, which requires a Next() call
// before the first Key/Value access.
type cursor struct {
	it      dbm.Iterator
	started bool
}

func (c *cursor) Valid() bool {
	return c.it.Valid()
}

func (c *cursor) Next() bool {
	if !c.started {
		c.started = true
	} else if c.it.Valid() {
		c.it.Next()
	}
	return c.it.Valid()
}

func (c *cursor) Key() []byte   { return c.it.Key() }
func (c *cursor) Value() []byte { return c.it.Value() }

func (c *cursor) Close() error {
	if err := c.it.Close(); err != nil {
		return fmt.Errorf("cometbftdb: close iterator: %w", err)
	}
	return nil
}
