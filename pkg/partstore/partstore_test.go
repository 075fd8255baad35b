package partstore_test

import (
	"reflect"
	"testing"

	"github.com/JavierDuqueMelguizo/taple-core/pkg/backend/cometbftdb"
	"github.com/JavierDuqueMelguizo/taple-core/pkg/partstore"
)

// Fixture data ported from the original implementation's own exhaustive
// wrapper_leveldb test suite (EJEMPLO0/PRUEBA1/TEST2 tables, the 0/00/0a/a/b
// key set), so the oracle for these assertions is the original's, not a
// freshly invented one.

func setUpEntries(t *testing.T, s0, s1, s2 *partstore.Store[uint64]) {
	t.Helper()
	puts := []struct {
		s   *partstore.Store[uint64]
		k   string
		v   uint64
	}{
		{s0, "b", 1}, {s0, "a", 2}, {s0, "0", 3},
		{s1, "b", 10}, {s1, "a", 11}, {s1, "0", 12}, {s1, "00", 13}, {s1, "0a", 14},
		{s2, "b", 20}, {s2, "0", 21}, {s2, "a", 22},
	}
	for _, p := range puts {
		if err := p.s.Put(p.k, p.v); err != nil {
			t.Fatalf("put %s: %v", p.k, err)
		}
	}
}

func entries(pairs ...interface{}) []partstore.Entry[uint64] {
	out := make([]partstore.Entry[uint64], 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, partstore.Entry[uint64]{Key: pairs[i].(string), Value: pairs[i+1].(uint64)})
	}
	return out
}

func requireEqual(t *testing.T, got, want []partstore.Entry[uint64]) {
	t.Helper()
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func newRoots(t *testing.T) (s0, s1, s2 *partstore.Store[uint64]) {
	t.Helper()
	db := cometbftdb.OpenMemory()
	t.Cleanup(func() { db.Close() })

	var err error
	s0, err = partstore.New[uint64](db, "EJEMPLO0")
	if err != nil {
		t.Fatalf("new EJEMPLO0: %v", err)
	}
	s1, err = partstore.New[uint64](db, "PRUEBA1")
	if err != nil {
		t.Fatalf("new PRUEBA1: %v", err)
	}
	s2, err = partstore.New[uint64](db, "TEST2")
	if err != nil {
		t.Fatalf("new TEST2: %v", err)
	}
	return s0, s1, s2
}

func TestGetAll(t *testing.T) {
	s0, s1, s2 := newRoots(t)
	setUpEntries(t, s0, s1, s2)

	got0, err := s0.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got0, entries("0", uint64(3), "a", uint64(2), "b", uint64(1)))
	if n, _ := s0.GetCount(); n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}

	got1, err := s1.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got1, entries(
		"0", uint64(12), "00", uint64(13), "0a", uint64(14), "a", uint64(11), "b", uint64(10),
	))
	if n, _ := s1.GetCount(); n != 5 {
		t.Fatalf("count = %d, want 5", n)
	}

	got2, err := s2.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got2, entries("0", uint64(21), "a", uint64(22), "b", uint64(20)))
	if n, _ := s2.GetCount(); n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
}

func TestGetRangePositive(t *testing.T) {
	s0, s1, s2 := newRoots(t)
	setUpEntries(t, s0, s1, s2)

	got, err := s1.GetRange(partstore.AtKey("0a"), 6)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries("0a", uint64(14), "a", uint64(11), "b", uint64(10)))

	got, err = s1.GetRange(partstore.AtKey("a"), 0)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries())

	got, err = s1.GetRange(partstore.AtKey("a"), 1)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries("a", uint64(11)))
}

func TestGetRangeNegative(t *testing.T) {
	db := cometbftdb.OpenMemory()
	t.Cleanup(func() { db.Close() })
	s0, _ := partstore.New[uint64](db, "EJEMPLO0")
	s1, _ := partstore.New[uint64](db, "PRUEBA1")
	s2, _ := partstore.New[uint64](db, "TEST2")
	setUpEntries(t, s0, s1, s2)

	got, err := s1.GetRange(partstore.AtKey("a"), -6)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries("a", uint64(11), "0a", uint64(14), "00", uint64(13), "0", uint64(12)))

	got, err = s1.GetRange(partstore.AtKey("a"), 0)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries())

	got, err = s1.GetRange(partstore.AtKey("a"), -1)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries("a", uint64(11)))
}

func TestGetRangeFromBeginning(t *testing.T) {
	db := cometbftdb.OpenMemory()
	t.Cleanup(func() { db.Close() })
	s0, _ := partstore.New[uint64](db, "EJEMPLO0")
	s1, _ := partstore.New[uint64](db, "PRUEBA1")
	s2, _ := partstore.New[uint64](db, "TEST2")
	setUpEntries(t, s0, s1, s2)

	got, err := s1.GetRange(partstore.AtBeginning(), 4)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries("0", uint64(12), "00", uint64(13), "0a", uint64(14), "a", uint64(11)))

	got, err = s1.GetRange(partstore.AtBeginning(), 0)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries())

	got, err = s1.GetRange(partstore.AtBeginning(), -1)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries("0", uint64(12)))
}

func TestGetRangeFromEnding(t *testing.T) {
	db := cometbftdb.OpenMemory()
	t.Cleanup(func() { db.Close() })
	s0, _ := partstore.New[uint64](db, "EJEMPLO0")
	s1, _ := partstore.New[uint64](db, "PRUEBA1")
	s2, _ := partstore.New[uint64](db, "TEST2")
	setUpEntries(t, s0, s1, s2)

	got, err := s1.GetRange(partstore.AtEnding(), -5)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries(
		"b", uint64(10), "a", uint64(11), "0a", uint64(14), "00", uint64(13), "0", uint64(12),
	))

	got, err = s1.GetRange(partstore.AtEnding(), 1)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries("b", uint64(10)))

	got, err = s1.GetRange(partstore.AtEnding(), 0)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries())

	got, err = s1.GetRange(partstore.AtEnding(), -2)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries("b", uint64(10), "a", uint64(11)))
}

func TestSimpleNewSubtable(t *testing.T) {
	db := cometbftdb.OpenMemory()
	t.Cleanup(func() { db.Close() })

	root0, _ := partstore.New[uint64](db, "EJEMPLO0")
	s00, err := root0.Partition("SUB1")
	if err != nil {
		t.Fatal(err)
	}
	s001, err := s00.Partition("ASUB1")
	if err != nil {
		t.Fatal(err)
	}
	s01, err := root0.Partition("SUB2")
	if err != nil {
		t.Fatal(err)
	}
	root1, _ := partstore.New[uint64](db, "PRUEBA1")

	setUpEntries(t, s00, s001, s01)
	if err := root1.Put("b", 30); err != nil {
		t.Fatal(err)
	}
	if err := root1.Put("0", 31); err != nil {
		t.Fatal(err)
	}
	if err := root1.Put("a", 32); err != nil {
		t.Fatal(err)
	}

	got, err := root0.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries(
		"SUB1\U0010FFFF0", uint64(3),
		"SUB1\U0010FFFFASUB1\U0010FFFF0", uint64(12),
		"SUB1\U0010FFFFASUB1\U0010FFFF00", uint64(13),
		"SUB1\U0010FFFFASUB1\U0010FFFF0a", uint64(14),
		"SUB1\U0010FFFFASUB1\U0010FFFFa", uint64(11),
		"SUB1\U0010FFFFASUB1\U0010FFFFb", uint64(10),
		"SUB1\U0010FFFFa", uint64(2),
		"SUB1\U0010FFFFb", uint64(1),
		"SUB2\U0010FFFF0", uint64(21),
		"SUB2\U0010FFFFa", uint64(22),
		"SUB2\U0010FFFFb", uint64(20),
	))
	if n, _ := root0.GetCount(); n != 11 {
		t.Fatalf("count = %d, want 11", n)
	}

	mal, err := root0.Partition("SUB")
	if err != nil {
		t.Fatal(err)
	}
	got, err = mal.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries())

	got, err = s00.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries(
		"0", uint64(3),
		"ASUB1\U0010FFFF0", uint64(12),
		"ASUB1\U0010FFFF00", uint64(13),
		"ASUB1\U0010FFFF0a", uint64(14),
		"ASUB1\U0010FFFFa", uint64(11),
		"ASUB1\U0010FFFFb", uint64(10),
		"a", uint64(2),
		"b", uint64(1),
	))
	if n, _ := s00.GetCount(); n != 8 {
		t.Fatalf("count = %d, want 8", n)
	}

	got, err = s001.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries(
		"0", uint64(12), "00", uint64(13), "0a", uint64(14), "a", uint64(11), "b", uint64(10),
	))

	got, err = s01.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries("0", uint64(21), "a", uint64(22), "b", uint64(20)))

	got, err = root1.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries("0", uint64(31), "a", uint64(32), "b", uint64(30)))
}

func TestComplexNewSubtable(t *testing.T) {
	db := cometbftdb.OpenMemory()
	t.Cleanup(func() { db.Close() })

	root0, _ := partstore.New[uint64](db, "EJEMPLO0")
	s00, _ := root0.Partition("SUB1")
	s001, _ := s00.Partition("ASUB1")
	s01, _ := root0.Partition("SUB2")
	root1, _ := partstore.New[uint64](db, "PRUEBA1")

	setUpEntries(t, s00, s001, s01)
	mustPut(t, root1, "b", 30)
	mustPut(t, root1, "0", 31)
	mustPut(t, root1, "a", 32)

	got, err := root0.GetRange(partstore.AtKey("SUB1\U0010FFFFASUB1\U0010FFFF0"), 2)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries(
		"SUB1\U0010FFFFASUB1\U0010FFFF0", uint64(12),
		"SUB1\U0010FFFFASUB1\U0010FFFF00", uint64(13),
	))

	mal, _ := root0.Partition("SUB")
	got, err = mal.GetRange(partstore.AtBeginning(), 3)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries())

	got, err = s00.GetRange(partstore.AtEnding(), -300)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries(
		"b", uint64(1),
		"a", uint64(2),
		"ASUB1\U0010FFFFb", uint64(10),
		"ASUB1\U0010FFFFa", uint64(11),
		"ASUB1\U0010FFFF0a", uint64(14),
		"ASUB1\U0010FFFF00", uint64(13),
		"ASUB1\U0010FFFF0", uint64(12),
		"0", uint64(3),
	))

	got, err = s001.GetRange(partstore.AtKey("a"), -200)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries(
		"a", uint64(11), "0a", uint64(14), "00", uint64(13), "0", uint64(12),
	))

	got, err = s01.GetRange(partstore.AtBeginning(), 3)
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries("0", uint64(21), "a", uint64(22), "b", uint64(20)))

	got, err = root1.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	requireEqual(t, got, entries("0", uint64(31), "a", uint64(32), "b", uint64(30)))
}

func mustPut(t *testing.T, s *partstore.Store[uint64], key string, v uint64) {
	t.Helper()
	if err := s.Put(key, v); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func TestInsertUpdateDelete(t *testing.T) {
	db := cometbftdb.OpenMemory()
	t.Cleanup(func() { db.Close() })
	s, _ := partstore.New[uint64](db, "TESTS")

	if err := s.Put("key", 0); err != nil {
		t.Fatal(err)
	}
	v, err := s.Get("key")
	if err != nil || v != 0 {
		t.Fatalf("get after put: %v, %v", v, err)
	}

	old, err := s.Update("key", 1)
	if err != nil || old != 0 {
		t.Fatalf("update: %v, %v", old, err)
	}
	v, err = s.Get("key")
	if err != nil || v != 1 {
		t.Fatalf("get after update: %v, %v", v, err)
	}

	removed, existed, err := s.Del("key")
	if err != nil || !existed || removed != 1 {
		t.Fatalf("del: %v, %v, %v", removed, existed, err)
	}
	if _, err := s.Get("key"); err != partstore.ErrEntryNotFound {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}

	if _, existed, err := s.Del("key"); err != nil || existed {
		t.Fatalf("double delete: existed=%v err=%v", existed, err)
	}
}

func TestTwoTablesAreIsolated(t *testing.T) {
	db := cometbftdb.OpenMemory()
	t.Cleanup(func() { db.Close() })
	s1, _ := partstore.New[uint64](db, "TESTS")
	s2, _ := partstore.New[uint64](db, "PRUEBA")

	if err := s1.Put("Clave", 5); err != nil {
		t.Fatal(err)
	}
	if err := s2.Put("Clave", 7); err != nil {
		t.Fatal(err)
	}
	v1, err := s1.Get("Clave")
	if err != nil || v1 != 5 {
		t.Fatalf("s1 get: %v, %v", v1, err)
	}
	v2, err := s2.Get("Clave")
	if err != nil || v2 != 7 {
		t.Fatalf("s2 get: %v, %v", v2, err)
	}
}

func TestInvalidKeyRejected(t *testing.T) {
	db := cometbftdb.OpenMemory()
	t.Cleanup(func() { db.Close() })
	s, _ := partstore.New[uint64](db, "TESTS")
	if err := s.Put("has"+string(partstore.Separator)+"sep", 1); err != partstore.ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
