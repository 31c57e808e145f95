// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package env

import (
	"testing"

	"github.com/loom-lang/loom/internal/gc"
	"github.com/loom-lang/loom/internal/symtab"
	"github.com/loom-lang/loom/internal/value"
)

func TestSlotAllocatesOnceAndReuses(t *testing.T) {
	syms := symtab.New()
	e := New()
	sym := syms.InternString("counter")

	a := e.Slot(sym)
	b := e.Slot(sym)
	if a != b {
		t.Fatalf("Slot not stable across calls: %d != %d", a, b)
	}
	if e.IsDefined(a) {
		t.Fatal("freshly allocated slot should not be defined")
	}
}

func TestDefAndGet(t *testing.T) {
	syms := symtab.New()
	e := New()
	i := e.Slot(syms.InternString("x"))
	e.Def(i, value.Int(42))
	if !e.IsDefined(i) {
		t.Fatal("slot should be defined after Def")
	}
	if got := e.Get(i); !got.IsInt() || got.AsInt() != 42 {
		t.Fatalf("Get = %v, want Int(42)", got)
	}
}

func TestSetOverwritesDefinedSlot(t *testing.T) {
	syms := symtab.New()
	e := New()
	i := e.Slot(syms.InternString("y"))
	e.Def(i, value.Int(1))
	e.Set(i, value.Int(2))
	if got := e.Get(i); got.AsInt() != 2 {
		t.Fatalf("Get = %v, want Int(2)", got)
	}
}

func TestScanMarksEveryGlobal(t *testing.T) {
	syms := symtab.New()
	e := New()
	e.Def(e.Slot(syms.InternString("a")), value.Int(1))
	e.Def(e.Slot(syms.InternString("b")), value.Obj(value.NewRecord(syms)))

	var marked []gc.Object
	e.Scan(func(o gc.Object) { marked = append(marked, o) }, func(interface{}) {})
	if len(marked) != 1 {
		t.Fatalf("Scan marked %d objects, want 1 (only the Record is a heap object)", len(marked))
	}
}
