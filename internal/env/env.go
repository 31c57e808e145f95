// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package env implements the global variable slot pool that backs
// GET_GLOBAL/DEF_ONE-at-global-scope (spec §4.7's Global variable
// descriptor kind), plus the no-fiber default value stack spec §4.12
// says the environment also provides: "When no fiber is running, the
// environment also provides a value stack used by the host for
// push/pop of transient values." Every global name used anywhere in a
// compiled unit resolves, once, to a dense integer slot; the
// interpreter then never hashes a global lookup on the hot path.
package env

import (
	"github.com/loom-lang/loom/internal/gc"
	"github.com/loom-lang/loom/internal/symtab"
	"github.com/loom-lang/loom/internal/value"
)

// Env is one language instance's global variable pool.
type Env struct {
	slots []value.Value
	defd  []bool
	bySym map[symtab.Symbol]int

	// dstack is the no-fiber default stack (spec §4.12): the host's own
	// push/pop area for transient values when no fiber is running, e.g.
	// while building the argument list for the very first fib_cont.
	dstack []value.Value
}

// New creates an empty global environment.
func New() *Env {
	return &Env{bySym: make(map[symtab.Symbol]int)}
}

// Push appends v to the default stack.
func (e *Env) Push(v value.Value) { e.dstack = append(e.dstack, v) }

// Pop removes and returns the top of the default stack. It panics if
// the stack is empty, matching Record/Fiber's other unchecked-invariant
// helpers — callers own balancing their own pushes and pops.
func (e *Env) Pop() value.Value {
	n := len(e.dstack) - 1
	v := e.dstack[n]
	e.dstack = e.dstack[:n]
	return v
}

// Top returns the default stack's top value without removing it.
func (e *Env) Top() value.Value { return e.dstack[len(e.dstack)-1] }

// StackLen reports the default stack's current depth.
func (e *Env) StackLen() int { return len(e.dstack) }

// Slot returns sym's slot index, allocating one (as Udf, undefined) on
// first use. The compiler calls this while resolving a Global
// variable descriptor; the interpreter calls it only for dynamic
// lookups (e.g. a module's initial binding).
func (e *Env) Slot(sym symtab.Symbol) int {
	if i, ok := e.bySym[sym]; ok {
		return i
	}
	i := len(e.slots)
	e.slots = append(e.slots, value.Udf)
	e.defd = append(e.defd, false)
	e.bySym[sym] = i
	return i
}

// Get reads slot i.
func (e *Env) Get(i int) value.Value { return e.slots[i] }

// IsDefined reports whether slot i has ever been Def'd (as opposed to
// merely allocated by a forward reference).
func (e *Env) IsDefined(i int) bool { return e.defd[i] }

// Def sets slot i and marks it defined.
func (e *Env) Def(i int, v value.Value) {
	e.slots[i] = v
	e.defd[i] = true
}

// Set overwrites an already-defined slot; callers must check
// IsDefined first per the same existing-slot-required rule as Record's
// Set (spec §4.5/§4.7's SET_* opcode family).
func (e *Env) Set(i int, v value.Value) { e.slots[i] = v }

// Scan is a gc.Scanner marking every global and every value parked on
// the default stack as a GC root.
func (e *Env) Scan(mark func(gc.Object), extra func(interface{})) {
	for _, v := range e.slots {
		v.Mark(mark, extra)
	}
	for _, v := range e.dstack {
		v.Mark(mark, extra)
	}
}
