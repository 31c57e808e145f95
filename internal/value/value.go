// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package value implements the tagged Value union and the handful of
// heap object kinds that do not need to know anything about bytecode
// (String, Index, Record, Upvalue, Data). Function, Closure, and Fiber
// — the object kinds whose internals are inseparable from the
// interpreter — live in the vm and fiber packages and plug back into
// Value purely through the gc.Object and Kind interfaces, so this
// package stays a leaf: of the internal packages it depends only on
// gc, symtab, ptrtab, and errs (plus go-spew for Dump).
package value

import (
	"math"

	"github.com/loom-lang/loom/internal/gc"
	"github.com/loom-lang/loom/internal/ptrtab"
	"github.com/loom-lang/loom/internal/symtab"
)

// Tag identifies which alternative of the Value union is populated.
type Tag uint8

const (
	TagUdf Tag = iota // the distinguished "undefined" marker
	TagNil            // the script-visible null
	TagLog            // boolean
	TagInt            // machine integer (stored as int64 bits)
	TagDec            // 64-bit float (NaN reserved, never user-visible)
	TagSym            // interned symbol
	TagPtr            // opaque native pointer + descriptor
	TagObj            // heap object reference
	TagTup            // stack-only tuple-group header; illegal as a storable value
)

func (t Tag) String() string {
	switch t {
	case TagUdf:
		return "udf"
	case TagNil:
		return "nil"
	case TagLog:
		return "log"
	case TagInt:
		return "int"
	case TagDec:
		return "dec"
	case TagSym:
		return "sym"
	case TagPtr:
		return "ptr"
	case TagObj:
		return "obj"
	case TagTup:
		return "tup"
	default:
		return "unknown"
	}
}

// ObjKind distinguishes heap object variants without requiring this
// package to import the packages that define Function/Closure/Fiber.
type ObjKind uint8

const (
	KindString ObjKind = iota
	KindIndex
	KindRecord
	KindFunction
	KindClosure
	KindUpvalue
	KindFiber
	KindData
)

func (k ObjKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindIndex:
		return "index"
	case KindRecord:
		return "record"
	case KindFunction:
		return "function"
	case KindClosure:
		return "closure"
	case KindUpvalue:
		return "upvalue"
	case KindFiber:
		return "fiber"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Object is any heap value reachable through a TagObj Value.
type Object interface {
	gc.Object
	LoomKind() ObjKind
}

// Value is the tagged union described by spec §3.1. A concrete NaN-boxed
// packing is explicitly not required (spec §9); this struct form keeps
// the implementation straightforward while preserving every required
// operation (make/is/get per tag, structural equality, stable hashing).
type Value struct {
	tag Tag
	n   uint64 // Int/Dec bit pattern, Log 0/1, Sym payload, Tup arity
	obj Object // non-nil iff tag == TagObj
	ptr ptrtab.ID
}

// Tag returns the value's tag.
func (v Value) Tag() Tag { return v.tag }

// ---- Constructors ----------------------------------------------------------

// Udf is the shared undefined value.
var Udf = Value{tag: TagUdf}

// Nil is the shared nil value.
var Nil = Value{tag: TagNil}

// Bool constructs a Log value.
func Bool(b bool) Value {
	n := uint64(0)
	if b {
		n = 1
	}
	return Value{tag: TagLog, n: n}
}

// Int constructs an Int value from a 64-bit machine integer.
func Int(i int64) Value {
	return Value{tag: TagInt, n: uint64(i)}
}

// Dec constructs a Dec value from a 64-bit float. Dec does not check
// for NaN, which is reserved per spec §3.1; callers that
// might produce NaN (e.g. 0.0/0.0) must check before calling Dec.
func Dec(f float64) Value {
	return Value{tag: TagDec, n: math.Float64bits(f)}
}

// Sym constructs a Sym value from an already-interned symbol.
func Sym(s symtab.Symbol) Value {
	return Value{tag: TagSym, n: uint64(s)}
}

// Ptr constructs a Ptr value from an interned pointer-table id.
func Ptr(id ptrtab.ID) Value {
	return Value{tag: TagPtr, ptr: id}
}

// Obj constructs an Obj value wrapping a heap object.
func Obj(o Object) Value {
	return Value{tag: TagObj, obj: o}
}

// Tup constructs a stack-only tuple header of the given arity. It is a
// compile/interpreter bug (not a user error) for this value to ever
// reach a storable slot — see IsStorable.
func Tup(arity int) Value {
	return Value{tag: TagTup, n: uint64(arity)}
}

// ---- Predicates --------------------------------------------------------

func (v Value) IsUdf() bool  { return v.tag == TagUdf }
func (v Value) IsNil() bool  { return v.tag == TagNil }
func (v Value) IsLog() bool  { return v.tag == TagLog }
func (v Value) IsInt() bool  { return v.tag == TagInt }
func (v Value) IsDec() bool  { return v.tag == TagDec }
func (v Value) IsSym() bool  { return v.tag == TagSym }
func (v Value) IsPtr() bool  { return v.tag == TagPtr }
func (v Value) IsObj() bool  { return v.tag == TagObj }
func (v Value) IsTup() bool  { return v.tag == TagTup }

// IsNumeric reports whether v is Int or Dec.
func (v Value) IsNumeric() bool { return v.tag == TagInt || v.tag == TagDec }

// IsStorable reports whether v may legally occupy a record field, a
// variable slot, or an upvalue cell (spec §3.1/invariant I4: a tuple
// header is never storable).
func (v Value) IsStorable() bool { return v.tag != TagTup }

// IsObjKind reports whether v is an Obj value of the given kind.
func (v Value) IsObjKind(k ObjKind) bool {
	return v.tag == TagObj && v.obj.LoomKind() == k
}

// ---- Getters ----------------------------------------------------------

// AsBool returns the boolean payload; callers must check IsLog first.
func (v Value) AsBool() bool { return v.n != 0 }

// AsInt returns the integer payload; callers must check IsInt first.
func (v Value) AsInt() int64 { return int64(v.n) }

// AsDec returns the float payload; callers must check IsDec first.
func (v Value) AsDec() float64 { return math.Float64frombits(v.n) }

// AsSym returns the symbol payload; callers must check IsSym first.
func (v Value) AsSym() symtab.Symbol { return symtab.Symbol(v.n) }

// AsPtr returns the pointer-table id; callers must check IsPtr first.
func (v Value) AsPtr() ptrtab.ID { return v.ptr }

// AsObj returns the heap object; callers must check IsObj first.
func (v Value) AsObj() Object { return v.obj }

// AsTupArity returns the tuple-header arity; callers must check IsTup
// first.
func (v Value) AsTupArity() int { return int(v.n) }

// Truthy implements the language's truthiness rule: everything but Nil,
// Udf, and the boolean false is truthy.
func (v Value) Truthy() bool {
	switch v.tag {
	case TagNil, TagUdf:
		return false
	case TagLog:
		return v.n != 0
	default:
		return true
	}
}

// Mark registers v with the collector's mark function if it references
// a heap object, or with extra if it is a Sym/Ptr identity that some
// component's full-cycle hook (symtab/ptrtab's FinishFullCycle) needs
// to know survived this cycle; safe to call on any tag.
func (v Value) Mark(mark func(gc.Object), extra func(interface{})) {
	switch v.tag {
	case TagObj:
		if v.obj != nil {
			mark(v.obj)
		}
	case TagSym:
		extra(v.AsSym())
	case TagPtr:
		extra(v.AsPtr())
	}
}
