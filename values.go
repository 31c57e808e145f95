// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package loom

import (
	"github.com/loom-lang/loom/internal/format"
	"github.com/loom-lang/loom/internal/value"
	"github.com/loom-lang/loom/internal/vm"
)

// Value is a re-export of the tagged union every instance operation
// reads and returns (spec §3.1). Host code never constructs one
// directly except through the constructors below, which is also why
// this package exposes no field access on it.
type Value = value.Value

var (
	// Udf is the shared undefined value.
	Udf = value.Udf
	// Nil is the shared nil value.
	Nil = value.Nil
)

// ---- Primitive constructors (spec §6.1: "Construct each primitive and
// each object kind") ---------------------------------------------------

// Bool constructs a Log value.
func Bool(b bool) Value { return value.Bool(b) }

// Int constructs an Int value.
func Int(i int64) Value { return value.Int(i) }

// Dec constructs a Dec value. It does not check for NaN, which is
// reserved per spec §3.1; callers that might produce one (e.g. 0.0/0.0)
// must check before calling Dec.
func Dec(f float64) Value { return value.Dec(f) }

// Sym interns name and returns it as a Sym value.
func (ins *Instance) Sym(name string) Value {
	return value.Sym(ins.Syms.InternString(name))
}

// SymName returns the interned text behind a Sym value.
func (ins *Instance) SymName(v Value) string {
	return ins.Syms.String(v.AsSym())
}

// String allocates a new String object from s.
func (ins *Instance) String(s string) Value {
	str := value.NewStringFrom(s)
	ins.GC.Track(str)
	return value.Obj(str)
}

// Bytes returns the backing bytes of a String value; callers must
// check IsObjKind(KindString) first.
func (ins *Instance) Bytes(v Value) []byte {
	return v.AsObj().(*value.String).Bytes
}

// Record allocates a new, empty Record backed by a fresh Index.
func (ins *Instance) Record() Value {
	rec := value.NewRecord(ins.Syms)
	ins.GC.Track(rec)
	ins.GC.Track(rec.Index())
	return value.Obj(rec)
}

// RecordGet reads key out of a Record value, returning Udf if absent.
// It errors if key is Udf (spec §3.3: Udf is never a valid key).
func (ins *Instance) RecordGet(v, key Value) (Value, error) {
	return v.AsObj().(*value.Record).Get(key)
}

// RecordDef defines or overwrites key in a Record value; storing Udf
// deletes the field (spec §4.5). It errors if key is Udf.
func (ins *Instance) RecordDef(v, key, val Value) error {
	return v.AsObj().(*value.Record).Def(key, val)
}

// RecordSet overwrites an existing key without altering the key set,
// erroring if key is absent, key is Udf, or val is Udf (spec §6.2's
// Record error kind).
func (ins *Instance) RecordSet(v, key, val Value) error {
	return v.AsObj().(*value.Record).Set(key, val)
}

// RecordHas reports whether key is currently defined on a Record value.
func (ins *Instance) RecordHas(v, key Value) bool {
	return v.AsObj().(*value.Record).Has(key)
}

// RecordLen reports the number of currently-defined fields.
func (ins *Instance) RecordLen(v Value) int {
	return v.AsObj().(*value.Record).Len()
}

// RecordEach calls fn for every defined key/value pair of a Record
// value, in the Index's table order.
func (ins *Instance) RecordEach(v Value, fn func(key, val Value)) {
	v.AsObj().(*value.Record).Each(fn)
}

// PushTuple pushes vs onto the default stack (used when no fiber is
// running) and returns the Tup header describing them (spec §6.1:
// "Push/pop a tuple of given size"). Most host call sites instead pass
// a plain []Value straight to CallSync/Continue; PushTuple exists for
// parity with the reference's explicit handle-based protocol when a
// host wants to stage values ahead of a call it builds incrementally.
func (ins *Instance) PushTuple(vs ...Value) Value {
	for _, v := range vs {
		ins.Globals.Push(v)
	}
	return value.Tup(len(vs))
}

// PopTuple pops n values pushed by a prior PushTuple off the default
// stack, in the order they were pushed.
func (ins *Instance) PopTuple(n int) []Value {
	out := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = ins.Globals.Pop()
	}
	return out
}

// ---- Globals (spec §6.1: "Define/set/get a global by symbol") --------

// DefGlobal defines or overwrites the global named sym.
func (ins *Instance) DefGlobal(sym Value, v Value) {
	ins.Globals.Def(ins.Globals.Slot(sym.AsSym()), v)
}

// SetGlobal overwrites an already-defined global, reporting false if it
// was never defined.
func (ins *Instance) SetGlobal(sym Value, v Value) bool {
	slot := ins.Globals.Slot(sym.AsSym())
	if !ins.Globals.IsDefined(slot) {
		return false
	}
	ins.Globals.Set(slot, v)
	return true
}

// GetGlobal reads the global named sym, or Udf if it was never
// defined.
func (ins *Instance) GetGlobal(sym Value) Value {
	slot := ins.Globals.Slot(sym.AsSym())
	if !ins.Globals.IsDefined(slot) {
		return Udf
	}
	return ins.Globals.Get(slot)
}

// ---- Equality, copy, type query (spec §6.1) ---------------------------

// Equal implements the language's structural equality rule (spec
// §3.1).
func (ins *Instance) Equal(a, b Value) bool { return value.Equal(a, b, ins.Syms) }

// Copy returns a shallow copy of v per spec §6.1's "copy" primitive: a
// Record copy is a fresh Record holding the same key/value pairs, free
// to diverge from the source independently; every other object kind is
// copy-by-identity since it carries no independent field state a host
// could usefully fork.
func (ins *Instance) Copy(v Value) Value {
	if !v.IsObjKind(value.KindRecord) {
		return v
	}
	src := v.AsObj().(*value.Record)
	dup := value.NewRecord(ins.Syms)
	ins.GC.Track(dup)
	ins.GC.Track(dup.Index())
	src.Each(func(key, val Value) { dup.Def(key, val) })
	return value.Obj(dup)
}

// TypeOf returns v's language-level type name, satisfying
// internal/format.TypeNamer for the Instance-scoped formatter (spec
// §6.1's "query ... a value's type symbol").
func (ins *Instance) TypeOf(v Value) string {
	if v.Tag() != value.TagObj {
		return v.Tag().String()
	}
	switch o := v.AsObj().(type) {
	case *value.String:
		return "string"
	case *value.Record:
		return "record"
	case *value.Index:
		return "index"
	case *value.Upvalue:
		return "upvalue"
	case *value.Data:
		if n := o.TypeName(); n != "" {
			return n
		}
		return "data"
	case *vm.Function:
		return "function"
	case *vm.Closure:
		return "closure"
	case *vm.Fiber:
		return "fiber"
	default:
		return o.LoomKind().String()
	}
}

// TagName returns t's raw tag name, the other half of TypeNamer.
func (ins *Instance) TagName(t value.Tag) string { return t.String() }

// Formatter returns a fresh append_fmt buffer (spec §4.6) bound to this
// instance's TypeOf/TagName, for a host that wants to render values the
// same way `show`/string-interpolation would inside the script.
func (ins *Instance) Formatter() *format.Buffer { return format.New(ins) }
