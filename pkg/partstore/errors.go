package partstore

import (
	"errors"
	"fmt"
)

// ErrEntryNotFound is returned by Get/Update when the key is absent in this
// table (or any of its nested partitions' own tables, which it never is,
// since partitions never share a key with their parent).
var ErrEntryNotFound = errors.New("partstore: entry not found")

// ErrInvalidKey is returned when a segment or user key contains the
// partition separator rune. This is a programmer error, not a recoverable
// storage condition: the separator precondition is never validated by the
// original implementation either, but this module makes the guard explicit
// rather than silently corrupting the key layout.
var ErrInvalidKey = errors.New("partstore: key contains reserved separator rune")

func wrapSerialize(err error) error {
	return fmt.Errorf("partstore: serialize: %w", err)
}

func wrapDeserialize(err error) error {
	return fmt.Errorf("partstore: deserialize: %w", err)
}
