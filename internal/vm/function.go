// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"github.com/loom-lang/loom/internal/errs"
	"github.com/loom-lang/loom/internal/gc"
	"github.com/loom-lang/loom/internal/value"
)

// SigHandler records one DEF_SIG/DEF_VSIG installation: the label to
// jump to and how many parameters the signal passes (spec §4.10).
type SigHandler struct {
	Name     string
	Label    int32
	ParamN   int32
	Variadic bool
}

// Function is the compiled-code or native-callback half of a Closure
// (spec §3.2, §4.9). A Function never captures anything itself —
// Closure pairs a Function with its captured Upvalues.
type Function struct {
	gc.Header

	Name     string
	Arity    int
	Variadic bool

	// VariadicIdx is the shared Index every call's surplus-argument
	// record is built against, avoiding a fresh hash table per call
	// for what is always the same 0..k-1 integer key shape (spec §4.9
	// step 2).
	VariadicIdx *value.Index

	// RecProtos holds one prototype Index per distinct statically-keyed
	// record-literal shape compiled inside this function, so every
	// execution of `{a: 1, b: 2}` — and every other literal with that
	// same key set — builds a Record sharing one Index instead of
	// hashing a fresh one per evaluation (spec §4.5/§8 scenario 3:
	// "records built from the same literal shape must share their
	// Index"). OP_MAKE_REC indexes into this slice via Instruction.B.
	RecProtos []*value.Index

	// Virtual function fields.
	Code      []Instruction
	Consts    []value.Value
	NumLocals int
	UpvalDesc []UpvalDesc // how to capture each upvalue from the parent
	Sigs      []SigHandler

	// Native function field; nil for virtual functions.
	Native NativeFunc
}

// UpvalDesc says where a captured upvalue comes from in the enclosing
// function: either an enclosing Local slot (promoted to Closed) or an
// enclosing Upval slot (forwarded).
type UpvalDesc struct {
	FromParentLocal bool
	Index           int
}

// NativeFunc is a host-supplied callback. It receives the argument
// tuple and the closure-attached Data (nil if none), whose Buf field is
// the opaque buffer (spec §4.9 step 3), and returns a result tuple or
// an error.
type NativeFunc func(args []value.Value, data *value.Data) ([]value.Value, error)

func (f *Function) LoomKind() value.ObjKind { return value.KindFunction }

func (f *Function) Traverse(mark func(gc.Object), extra func(interface{})) {
	if f.VariadicIdx != nil {
		mark(f.VariadicIdx)
	}
	for _, idx := range f.RecProtos {
		mark(idx)
	}
	for _, c := range f.Consts {
		c.Mark(mark, extra)
	}
}

func (f *Function) Finalize() {}

// IsNative reports whether f wraps a host callback rather than
// bytecode.
func (f *Function) IsNative() bool { return f.Native != nil }

// NewNativeFunction wraps a Go callback as a Function.
func NewNativeFunction(name string, arity int, variadic bool, fn NativeFunc) *Function {
	return &Function{Name: name, Arity: arity, Variadic: variadic, Native: fn}
}

// Closure pairs a Function with its captured Upvalues (virtual) or an
// attached Data object (native, optional). Calling a Closure is the
// only way to invoke a Function (spec §3.2).
type Closure struct {
	gc.Header

	Fn      *Function
	Upvals  []*value.Upvalue
	Data    *value.Data
}

func (c *Closure) LoomKind() value.ObjKind { return value.KindClosure }

func (c *Closure) Traverse(mark func(gc.Object), extra func(interface{})) {
	mark(c.Fn)
	for _, uv := range c.Upvals {
		mark(uv)
	}
	if c.Data != nil {
		mark(c.Data)
	}
}

func (c *Closure) Finalize() {}

// NewClosure wraps fn with no captured upvalues (the common case for
// natives and top-level functions).
func NewClosure(fn *Function) *Closure {
	return &Closure{Fn: fn}
}

// errArity builds a Call-kind error for an argument count mismatch.
func errArity(fn *Function, got int) error {
	return errs.New(errs.Call, "%s: expected %s%d argument(s), got %d",
		fn.Name, variadicPrefix(fn), fn.Arity, got)
}

func variadicPrefix(fn *Function) string {
	if fn.Variadic {
		return "at least "
	}
	return ""
}
