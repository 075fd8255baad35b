// Package partstore implements a partitioned keyed store over a single flat
// ordered byte-key backend: nested, nestable tables addressed by a path of
// string segments, joined by the Unicode separator rune U+10FFFF (the
// largest scalar value, guaranteeing every partition's physical keys sort
// strictly after the partition's own bare prefix and form one contiguous
// range that no sibling partition's keys interleave with).
//
// A Store[V] is a cheap handle: Partition does no I/O, it only extends the
// physical key prefix. Reading a parent table's entries (GetAll, GetCount,
// GetRange) naturally recurses into every nested partition, because nested
// partitions' physical keys all share the parent's prefix.
package partstore

import (
	"bytes"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/JavierDuqueMelguizo/taple-core/pkg/backend"
)

// Separator is the rune used to join partition path segments and to
// terminate a table prefix before a leaf key. It must never appear in a
// segment or user key; Put/Get/Del/Partition reject it via ErrInvalidKey.
const Separator = '\U0010FFFF'

var canonicalEncMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// Entry is one (key, value) pair returned by GetAll/GetRange, keyed by the
// logical key relative to the table it was read from (the table prefix is
// stripped).
type Entry[V any] struct {
	Key   string
	Value V
}

// Store is a partitioned table of values of type V over a backend.Backend.
// The zero value is not usable; construct with New.
type Store[V any] struct {
	backend backend.Backend
	table   string
}

// New creates a root-level Store rooted at the single segment "table".
// table must not contain Separator (New returns ErrInvalidKey if it does);
// nested tables are reached by calling Partition.
func New[V any](b backend.Backend, table string) (*Store[V], error) {
	if err := validateSegment(table); err != nil {
		return nil, err
	}
	return &Store[V]{backend: b, table: table}, nil
}

// Partition returns a handle to the nested table "name" under s. It
// performs no I/O.
func (s *Store[V]) Partition(name string) (*Store[V], error) {
	if err := validateSegment(name); err != nil {
		return nil, err
	}
	return &Store[V]{backend: s.backend, table: s.buildKey(name)}, nil
}

func validateSegment(seg string) error {
	if strings.ContainsRune(seg, Separator) {
		return ErrInvalidKey
	}
	return nil
}

func (s *Store[V]) buildKey(key string) string {
	return s.table + string(Separator) + key
}

// tablePrefix is the physical-key prefix shared by every entry in this
// table and all of its nested partitions.
func (s *Store[V]) tablePrefix() string {
	return s.table + string(Separator)
}

func (s *Store[V]) marshal(v V) ([]byte, error) {
	b, err := canonicalEncMode.Marshal(v)
	if err != nil {
		return nil, wrapSerialize(err)
	}
	return b, nil
}

func (s *Store[V]) unmarshal(raw []byte) (V, error) {
	var v V
	if err := cbor.Unmarshal(raw, &v); err != nil {
		return v, wrapDeserialize(err)
	}
	return v, nil
}

// Put stores value at key, overwriting any existing entry.
func (s *Store[V]) Put(key string, value V) error {
	if err := validateSegment(key); err != nil {
		return err
	}
	raw, err := s.marshal(value)
	if err != nil {
		return err
	}
	return s.backend.Put([]byte(s.buildKey(key)), raw, true)
}

// Get returns the value at key, or ErrEntryNotFound if absent.
func (s *Store[V]) Get(key string) (V, error) {
	var zero V
	if err := validateSegment(key); err != nil {
		return zero, err
	}
	raw, err := s.backend.Get([]byte(s.buildKey(key)))
	if err != nil {
		if err == backend.ErrKeyNotFound {
			return zero, ErrEntryNotFound
		}
		return zero, err
	}
	return s.unmarshal(raw)
}

// Update overwrites the value at key and returns the value it replaced. It
// returns ErrEntryNotFound, without writing, if key is absent.
func (s *Store[V]) Update(key string, value V) (V, error) {
	old, err := s.Get(key)
	if err != nil {
		return old, err
	}
	if err := s.Put(key, value); err != nil {
		return old, err
	}
	return old, nil
}

// Del removes key, returning the value it held and true if it was present.
// Deleting an absent key is not an error: it returns the zero value and
// false.
func (s *Store[V]) Del(key string) (V, bool, error) {
	old, err := s.Get(key)
	existed := true
	if err != nil {
		if err == ErrEntryNotFound {
			existed = false
		} else {
			return old, false, err
		}
	}
	if err := s.backend.Delete([]byte(s.buildKey(key)), true); err != nil {
		return old, existed, err
	}
	return old, existed, nil
}

// GetAll returns every entry in this table and all of its nested
// partitions, ordered by physical key.
func (s *Store[V]) GetAll() ([]Entry[V], error) {
	prefix := []byte(s.tablePrefix())
	return s.collect(prefix, prefixEnd(prefix), false, -1)
}

// GetCount returns the number of entries in this table and all of its
// nested partitions.
func (s *Store[V]) GetCount() (int, error) {
	prefix := []byte(s.tablePrefix())
	it, err := s.backend.Iterator(prefix, prefixEnd(prefix), false)
	if err != nil {
		return 0, err
	}
	defer it.Close()
	n := 0
	for it.Next() {
		n++
	}
	return n, nil
}

// GetRange scans entries anchored at cursor. A positive quantity scans
// forward and caps the result at quantity entries; a negative quantity
// scans backward and caps the result at -quantity entries; zero returns no
// entries. See the package doc and the cursor constructors for the exact
// anchor semantics, which mirror the original implementation's CursorIndex
// behavior entry for entry:
//
//   - FromBeginning, quantity > 0: forward scan from the first entry.
//   - FromBeginning, quantity < 0: the first entry alone, regardless of
//     magnitude (there is nothing before it to extend the scan into).
//   - FromEnding, quantity > 0: the last entry alone, regardless of
//     magnitude (there is nothing after it to extend the scan into).
//   - FromEnding, quantity < 0: backward scan from the last entry.
//   - FromKey(k), quantity > 0: forward scan starting at the first entry
//     whose key is >= k.
//   - FromKey(k), quantity < 0: backward scan starting at the first entry
//     whose key is >= k (included), proceeding to smaller keys.
func (s *Store[V]) GetRange(cursor RangeCursor, quantity int) ([]Entry[V], error) {
	if quantity == 0 {
		return []Entry[V]{}, nil
	}
	prefix := []byte(s.tablePrefix())
	upper := prefixEnd(prefix)
	reverse := quantity < 0
	limit := quantity
	if reverse {
		limit = -limit
	}

	if !reverse {
		var start []byte
		switch cursor.Kind {
		case FromBeginning:
			start = prefix
		case FromKey:
			start = []byte(s.buildKey(cursor.Key))
		case FromEnding:
			last, ok, err := s.lastKey(prefix, upper)
			if err != nil {
				return nil, err
			}
			if !ok {
				return []Entry[V]{}, nil
			}
			start = last
		}
		return s.collect(start, upper, false, limit)
	}

	switch cursor.Kind {
	case FromEnding:
		return s.collect(prefix, upper, true, limit)
	case FromBeginning:
		entries, err := s.collect(prefix, upper, false, 1)
		if err != nil {
			return nil, err
		}
		return entries, nil
	case FromKey:
		target := []byte(s.buildKey(cursor.Key))
		if bytes.Compare(target, prefix) < 0 {
			target = prefix
		}
		anchor, ok, err := s.seekForward(target, upper)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []Entry[V]{}, nil
		}
		return s.collect(prefix, immediateSuccessor(anchor), true, limit)
	}
	return nil, ErrInvalidKey
}

// collect decodes up to limit entries from [start, end) in the requested
// direction. limit < 0 means unbounded.
func (s *Store[V]) collect(start, end []byte, reverse bool, limit int) ([]Entry[V], error) {
	it, err := s.backend.Iterator(start, end, reverse)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	prefix := s.tablePrefix()
	out := []Entry[V]{}
	for it.Next() {
		if limit >= 0 && len(out) >= limit {
			break
		}
		v, err := s.unmarshal(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, Entry[V]{
			Key:   strings.TrimPrefix(string(it.Key()), prefix),
			Value: v,
		})
	}
	return out, nil
}

// lastKey returns the physical key of the table's last entry.
func (s *Store[V]) lastKey(prefix, upper []byte) ([]byte, bool, error) {
	it, err := s.backend.Iterator(prefix, upper, true)
	if err != nil {
		return nil, false, err
	}
	defer it.Close()
	if it.Next() {
		return append([]byte(nil), it.Key()...), true, nil
	}
	return nil, false, nil
}

// seekForward returns the smallest physical key within [target, upper).
func (s *Store[V]) seekForward(target, upper []byte) ([]byte, bool, error) {
	it, err := s.backend.Iterator(target, upper, false)
	if err != nil {
		return nil, false, err
	}
	defer it.Close()
	if it.Next() {
		return append([]byte(nil), it.Key()...), true, nil
	}
	return nil, false, nil
}

// prefixEnd returns the smallest key that is not prefixed by prefix, i.e.
// an exclusive upper bound for an iteration over every key sharing prefix.
// Returns nil (no upper bound) if prefix is empty or all 0xff.
func prefixEnd(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// immediateSuccessor returns the smallest key strictly greater than key,
// used as an exclusive end bound that includes key itself in a reverse
// iteration.
func immediateSuccessor(key []byte) []byte {
	succ := make([]byte, len(key)+1)
	copy(succ, key)
	return succ
}
