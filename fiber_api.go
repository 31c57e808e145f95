// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package loom

import (
	"github.com/loom-lang/loom/internal/fiber"
	"github.com/loom-lang/loom/internal/value"
	"github.com/loom-lang/loom/internal/vm"
)

// Continue implements spec §6.1/§4.11's fib_cont: resumes fib with
// args, either starting it for the first time or handing fresh values
// to a fiber parked at a prior yield. Legal only while fib is Stopped;
// see vm.Fiber.State. A non-Fatal error raised inside fib is localized
// to it (I6: the calling context's own state is untouched) — Continue
// returns a zero-size, non-nil result tuple in that case, exactly as
// spec §4.11 describes, with the absorbed error available via
// fib.FailedErr.
func (ins *Instance) Continue(fib *vm.Fiber, args []value.Value) ([]value.Value, error) {
	results, err := ins.Sched.Continue(nil, fib, args)
	return results, ins.recordErr(err)
}

// ContinueFrom is Continue's variant for a fiber resumed from inside
// another, already-running fiber — e.g. a native builtin that drives a
// child fiber on the current fiber's behalf. parent becomes Waiting for
// the duration of the call, exactly mirroring a bare Continue from the
// host's default stack.
func (ins *Instance) ContinueFrom(parent, fib *vm.Fiber, args []value.Value) ([]value.Value, error) {
	results, err := ins.Sched.Continue(parent, fib, args)
	return results, ins.recordErr(err)
}

// CurrentFiber returns the fiber presently Running, or nil if control
// is on the host's default stack (spec §4.12).
func (ins *Instance) CurrentFiber() *vm.Fiber { return ins.Sched.Current() }

// CallSite identifies a host call site for stack-trace framing (spec
// §4.11's fib_call: "records the host-source file and line").
type CallSite = fiber.CallSite

// CallInFiber implements spec §6.1/§4.11's fib_call: a synchronous call
// made from host-native code that is itself running inside fib (e.g. a
// registered native Function wanting to invoke a script-supplied
// callback), distinct from CallSync's completely fiber-less path.
func (ins *Instance) CallInFiber(fib *vm.Fiber, cls *vm.Closure, args []value.Value, site CallSite) ([]value.Value, error) {
	results, err := ins.Sched.Call(fib, cls, args, site)
	return results, ins.recordErr(err)
}
