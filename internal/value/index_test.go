// Copyright 2024 The Loom Authors
// This file is part of Loom.

package value

import (
	"testing"

	"github.com/loom-lang/loom/internal/symtab"
)

func TestIndexAddGet(t *testing.T) {
	syms := symtab.New()
	idx := NewIndex(syms)

	a := Obj(NewStringFrom("a"))
	b := Obj(NewStringFrom("b"))

	locA := idx.AddByKey(a)
	locB := idx.AddByKey(b)
	if locA == locB {
		t.Fatal("distinct keys must get distinct locators")
	}
	if got, ok := idx.GetByKey(Obj(NewStringFrom("a"))); !ok || got != locA {
		t.Fatalf("GetByKey(a) = (%d, %v), want (%d, true)", got, ok, locA)
	}
	if again := idx.AddByKey(Obj(NewStringFrom("a"))); again != locA {
		t.Fatalf("re-adding an existing key must return its original locator, got %d want %d", again, locA)
	}
}

func TestIndexGrowth(t *testing.T) {
	syms := symtab.New()
	idx := NewIndex(syms)
	locs := make(map[Value]uint32)
	for i := 0; i < 200; i++ {
		k := Int(int64(i))
		locs[k] = idx.AddByKey(k)
	}
	for k, loc := range locs {
		got, ok := idx.GetByKey(k)
		if !ok || got != loc {
			t.Fatalf("key %v: got (%d, %v), want (%d, true)", k, got, ok, loc)
		}
	}
}

func TestIndexRemByLocRecyclesOnlyWhenUnshared(t *testing.T) {
	syms := symtab.New()
	idx := NewIndex(syms)
	k := Int(1)
	loc := idx.AddByKey(k)
	idx.Retain(loc) // simulate a second record sharing this locator

	idx.RemByLoc(loc)
	if _, ok := idx.GetByKey(k); !ok {
		t.Fatal("key must still be reachable while a ref remains")
	}
	idx.RemByLoc(loc)
	if _, ok := idx.GetByKey(k); ok {
		t.Fatal("key must be gone once all refs are released")
	}
}
