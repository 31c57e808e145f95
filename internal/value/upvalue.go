// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value

import "github.com/loom-lang/loom/internal/gc"

// Upvalue is the single-cell heap promotion of a captured stack local
// (spec §4.6: a closure over a local variable closes over this cell,
// not over the stack slot itself, so the variable survives its
// defining frame returning).
type Upvalue struct {
	gc.Header
	Value Value
}

// NewUpvalue allocates an upvalue holding v.
func NewUpvalue(v Value) *Upvalue {
	return &Upvalue{Value: v}
}

func (u *Upvalue) LoomKind() ObjKind { return KindUpvalue }

func (u *Upvalue) Traverse(mark func(gc.Object), extra func(interface{})) { u.Value.Mark(mark, extra) }

func (u *Upvalue) Finalize() {}

// Get reads the current cell contents.
func (u *Upvalue) Get() Value { return u.Value }

// Set overwrites the cell contents.
func (u *Upvalue) Set(v Value) { u.Value = v }
