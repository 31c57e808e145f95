// Copyright 2024 The Loom Authors
// This file is part of Loom.

package value

import (
	"testing"

	"github.com/loom-lang/loom/internal/symtab"
)

func key(syms *symtab.Table, s string) Value {
	return Sym(syms.InternString(s))
}

func TestRecordDefGetSet(t *testing.T) {
	syms := symtab.New()
	r := NewRecord(syms)

	x := key(syms, "x")
	if err := r.Def(x, Int(1)); err != nil {
		t.Fatalf("Def(x, 1) = %v, want nil", err)
	}
	if got, err := r.Get(x); err != nil || !got.IsInt() || got.AsInt() != 1 {
		t.Fatalf("Get(x) = %v, %v, want Int(1), nil", got, err)
	}
	if err := r.Set(x, Int(2)); err != nil {
		t.Fatalf("Set on an existing key must succeed, got %v", err)
	}
	if got, err := r.Get(x); err != nil || got.AsInt() != 2 {
		t.Fatalf("after Set, Get(x) = %v, %v, want Int(2), nil", got, err)
	}

	y := key(syms, "y")
	if err := r.Set(y, Int(9)); err == nil {
		t.Fatal("Set on a missing key must fail")
	}
}

func TestRecordDefRejectsUdfKey(t *testing.T) {
	syms := symtab.New()
	r := NewRecord(syms)
	if err := r.Def(Udf, Int(1)); err == nil {
		t.Fatal("Def with an Udf key must fail")
	}
	if err := r.Set(Udf, Int(1)); err == nil {
		t.Fatal("Set with an Udf key must fail")
	}
	if _, err := r.Get(Udf); err == nil {
		t.Fatal("Get with an Udf key must fail")
	}
}

func TestRecordSetRejectsUdfValue(t *testing.T) {
	syms := symtab.New()
	r := NewRecord(syms)
	x := key(syms, "x")
	if err := r.Def(x, Int(1)); err != nil {
		t.Fatalf("Def(x, 1) = %v, want nil", err)
	}
	if err := r.Set(x, Udf); err == nil {
		t.Fatal("Set with an Udf value must fail, unlike Def")
	}
}

func TestRecordDefUdfRemoves(t *testing.T) {
	syms := symtab.New()
	r := NewRecord(syms)
	x := key(syms, "x")
	if err := r.Def(x, Int(1)); err != nil {
		t.Fatalf("Def(x, 1) = %v, want nil", err)
	}
	if err := r.Def(x, Udf); err != nil {
		t.Fatalf("Def(x, Udf) = %v, want nil", err)
	}
	if r.Has(x) {
		t.Fatal("defining Udf must remove the field")
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
}

func TestRecordSeparateOnWrite(t *testing.T) {
	syms := symtab.New()
	shared := NewIndex(syms)
	x := key(syms, "x")
	loc := shared.AddByKey(x)
	shared.Retain(loc) // both records below will hold this locator

	a := NewRecordSharing(shared)
	b := NewRecordSharing(shared)
	a.Sep()
	b.Sep()

	if err := a.Def(x, Int(1)); err != nil {
		t.Fatalf("a.Def(x, 1) = %v, want nil", err)
	}
	if err := b.Def(x, Int(2)); err != nil {
		t.Fatalf("b.Def(x, 2) = %v, want nil", err)
	}

	if a.Index() == b.Index() {
		t.Fatal("writing distinct values through a shared Index must diverge it")
	}
	if got, err := a.Get(x); err != nil || got.AsInt() != 1 {
		t.Fatalf("a.Get(x) = %v, %v, want Int(1), nil", got, err)
	}
	if got, err := b.Get(x); err != nil || got.AsInt() != 2 {
		t.Fatalf("b.Get(x) = %v, %v, want Int(2), nil", got, err)
	}
}

func TestRecordEach(t *testing.T) {
	syms := symtab.New()
	r := NewRecord(syms)
	if err := r.Def(key(syms, "x"), Int(1)); err != nil {
		t.Fatalf("Def(x, 1) = %v, want nil", err)
	}
	if err := r.Def(key(syms, "y"), Int(2)); err != nil {
		t.Fatalf("Def(y, 2) = %v, want nil", err)
	}

	seen := map[int64]bool{}
	r.Each(func(k, v Value) { seen[v.AsInt()] = true })
	if !seen[1] || !seen[2] || len(seen) != 2 {
		t.Fatalf("Each visited %v, want {1,2}", seen)
	}
}
