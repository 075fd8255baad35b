// Package backend defines the ordered byte-key storage primitive that the
// rest of the ledger is built on. It names no concrete database: callers
// supply an implementation (pkg/backend/cometbftdb is the one this module
// ships) satisfying Backend.
package backend

import "errors"

// ErrKeyNotFound is returned by Get when the key is absent. It is the only
// error Get may return for a missing key; any other error is a storage
// fault and must be treated as fatal by callers.
var ErrKeyNotFound = errors.New("backend: key not found")

// Backend is an ordered byte-key store: Get/Put/Delete on individual keys,
// plus range iteration in either direction. Keys compare by unsigned byte
// order, matching every concrete backend this module wires in.
//
// CONCURRENCY: implementations must be safe for concurrent use by multiple
// goroutines, mirroring the guarantee CometBFT's dbm.DB makes. Callers above
// this layer (pkg/partstore, pkg/ledgerstore) do not add their own locking.
type Backend interface {
	// Get returns ErrKeyNotFound if key is absent.
	Get(key []byte) ([]byte, error)
	// Put writes key/value. sync requests the write be durable before
	// returning, matching dbm.DB's SetSync/Set split.
	Put(key, value []byte, sync bool) error
	// Delete removes key. It does not error if key is already absent.
	Delete(key []byte, sync bool) error
	// Iterator returns a cursor over [start, end). A nil start means "from
	// the first key"; a nil end means "through the last key". If reverse
	// is true the cursor walks from end toward start.
	Iterator(start, end []byte, reverse bool) (Cursor, error)
	// Close releases any resources held by the backend.
	Close() error
}

// Cursor walks a bounded key range in one direction. Call Next before the
// first Key/Value access; Valid reports whether the cursor is positioned on
// an entry.
type Cursor interface {
	Valid() bool
	Next() bool
	Key() []byte
	Value() []byte
	Close() error
}
