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

// FiberState is a fiber's coroutine state (spec §4.11).
type FiberState uint8

const (
	FiberStopped FiberState = iota
	FiberRunning
	FiberWaiting
	FiberFinished
	FiberFailed
)

func (s FiberState) String() string {
	switch s {
	case FiberStopped:
		return "Stopped"
	case FiberRunning:
		return "Running"
	case FiberWaiting:
		return "Waiting"
	case FiberFinished:
		return "Finished"
	case FiberFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Frame is one virtual activation record (spec §4.9): the closure
// being executed, its instruction pointer, and the base offset into
// the fiber's shared value stack where [args][locals] begins (the
// callee closure's own stack slot is overwritten by the first argument).
// Operand temporaries for this call live above NumLocals within the
// same stack region.
type Frame struct {
	Closure *Closure
	IP      int
	Base    int
	Unit    string // for stack-trace frames (spec §6.2)
}

// NativeFrame records a host-originated call for stack-trace purposes
// (spec §4.11's fib_call: "stack-trace framing records the host-source
// file and line"), distinct from virtual Frames since a native call
// has no bytecode IP.
type NativeFrame struct {
	Unit string
	File string
	Line int
}

// Fiber is a single coroutine: its own operand/locals stack and its
// own activation-record stack, independent of any other fiber's (spec
// §3.2, §4.11).
type Fiber struct {
	gc.Header

	Stack  []value.Value
	Frames []Frame
	Native []NativeFrame

	State FiberState
	Tag   value.Value

	EntryClosure *Closure
	Parent       *Fiber

	// FailedErr holds the localized error when State == FiberFailed
	// (spec §4.11 / I6).
	FailedErr *errs.Error
}

// NewFiber creates a Stopped fiber whose first continuation will call
// entry.
func NewFiber(entry *Closure, tag value.Value) *Fiber {
	return &Fiber{State: FiberStopped, EntryClosure: entry, Tag: tag}
}

func (f *Fiber) LoomKind() value.ObjKind { return value.KindFiber }

func (f *Fiber) Traverse(mark func(gc.Object), extra func(interface{})) {
	for _, v := range f.Stack {
		v.Mark(mark, extra)
	}
	for _, fr := range f.Frames {
		if fr.Closure != nil {
			mark(fr.Closure)
		}
	}
	if f.EntryClosure != nil {
		mark(f.EntryClosure)
	}
	f.Tag.Mark(mark, extra)
}

func (f *Fiber) Finalize() {}

func (f *Fiber) push(v value.Value) { f.Stack = append(f.Stack, v) }

func (f *Fiber) pop() value.Value {
	n := len(f.Stack) - 1
	v := f.Stack[n]
	f.Stack = f.Stack[:n]
	return v
}

func (f *Fiber) top() value.Value { return f.Stack[len(f.Stack)-1] }

func (f *Fiber) curFrame() *Frame { return &f.Frames[len(f.Frames)-1] }
