// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package fiber implements the cooperative scheduler of spec §4.11 on
// top of internal/vm's Fiber object: parent/child continue/yield
// rendezvous, in-fiber synchronous calls with host-source stack-trace
// framing, and per-fiber error localization.
//
// The reference implementation suspends a fiber with a longjmp back
// into fib_cont and resumes it by restoring a saved PC. DESIGN.md
// documents the substitution used here instead: every fiber runs on
// its own goroutine, and "suspend" is simply blocking that goroutine
// on a channel read inside the Yield native call — the Go scheduler
// already preserves the exact point of suspension on that goroutine's
// stack, so there is no PC or register set to save by hand. Exactly
// one fiber's goroutine is ever unblocked at a time (the Scheduler
// hands off control via a strict two-channel rendezvous per fiber),
// which is what keeps this cooperative rather than actually
// concurrent — spec §5's single-mutator guarantee holds because the
// *scheduler*, not the Go runtime, decides when each side may proceed.
package fiber

import (
	"github.com/loom-lang/loom/internal/errs"
	"github.com/loom-lang/loom/internal/gc"
	"github.com/loom-lang/loom/internal/value"
	"github.com/loom-lang/loom/internal/vm"
)

// CallSite identifies a host-originated call for stack-trace framing
// (spec §4.11's fib_call: "stack-trace framing records the host-source
// file and line").
type CallSite struct {
	File string
	Line int
}

// coroMsg is what a fiber's goroutine reports back to the Scheduler.
// finished distinguishes a completed entry call (results holds its
// return tuple) from a mid-call Yield (yielded holds the yielded
// tuple) — both are plain, possibly-empty Value slices, so a nil-ness
// check on either field alone can't tell them apart.
type coroMsg struct {
	finished bool
	yielded  []value.Value
	results  []value.Value
	failed   bool
	fatal    *errs.Error
}

// coroState is the per-fiber rendezvous channel pair plus whether the
// entry call has been started yet.
type coroState struct {
	toFiber   chan []value.Value
	fromFiber chan coroMsg
	started   bool
}

// Scheduler drives every Fiber belonging to one language instance. It
// is not safe for concurrent use from multiple goroutines other than
// the fibers it itself schedules — matching spec §5's single-mutator
// model.
type Scheduler struct {
	m       *vm.Machine
	current *vm.Fiber
	states  map[*vm.Fiber]*coroState
}

// New creates a Scheduler driving fibers through m.
func New(m *vm.Machine) *Scheduler {
	return &Scheduler{m: m, states: make(map[*vm.Fiber]*coroState)}
}

// Current returns the fiber presently in state Running, or nil if none
// is (i.e. the host's default stack has control).
func (s *Scheduler) Current() *vm.Fiber { return s.current }

// Scan is a gc.Scanner marking the currently running fiber as a root
// (spec §4.2 step 3: "Mark the current fiber (if any)"). Any other
// fiber — including one parked mid-yield — stays reachable only
// through whatever Value graph (a global, a record field, a parent
// fiber's stack) still references it, exactly like any other heap
// object; this scanner exists solely for the one fiber that might
// otherwise have no such reference while it is the active mutator.
func (s *Scheduler) Scan(mark func(gc.Object), extra func(interface{})) {
	if s.current != nil {
		mark(s.current)
	}
}

func (s *Scheduler) stateFor(fib *vm.Fiber) *coroState {
	cs, ok := s.states[fib]
	if !ok {
		cs = &coroState{
			toFiber:   make(chan []value.Value),
			fromFiber: make(chan coroMsg),
		}
		s.states[fib] = cs
	}
	return cs
}

// Continue implements spec §4.11's fib_cont: legal only when fib is
// Stopped (either never started, or parked at a prior yield). parent
// may be nil when the host itself is resuming fib directly (no
// enclosing fiber).
func (s *Scheduler) Continue(parent, fib *vm.Fiber, args []value.Value) ([]value.Value, error) {
	if fib.State != vm.FiberStopped {
		return nil, errs.New(errs.Fiber, "cannot continue a fiber in state %s", fib.State)
	}

	cs := s.stateFor(fib)
	prevCurrent := s.current
	if parent != nil {
		parent.State = vm.FiberWaiting
	}
	fib.Parent = parent
	fib.State = vm.FiberRunning
	s.current = fib

	if !cs.started {
		cs.started = true
		go s.runEntry(fib, cs, args)
	} else {
		cs.toFiber <- args
	}
	msg := <-cs.fromFiber

	s.current = prevCurrent
	if parent != nil {
		parent.State = vm.FiberRunning
	}

	switch {
	case msg.fatal != nil:
		// Fatal errors bypass fiber-boundary localization entirely
		// (spec §7 step 4) and propagate straight to whatever called
		// Continue, exactly like any other Go error return.
		return nil, msg.fatal
	case msg.failed:
		// Spec §4.11: "fib_cont returns a zero-size tuple" and the
		// parent is otherwise unaffected (I6) — its state/stack were
		// already restored above, before this switch runs.
		return []value.Value{}, nil
	case msg.finished:
		return msg.results, nil
	default:
		return msg.yielded, nil
	}
}

// runEntry is the body of a fiber's dedicated goroutine: it performs
// the entry call once, to completion, reporting results/yields/errors
// back over cs.fromFiber. It is only ever running while fib is the
// Scheduler's current fiber, by construction of Continue/Yield.
func (s *Scheduler) runEntry(fib *vm.Fiber, cs *coroState, args []value.Value) {
	var results []value.Value
	var callErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				callErr = errs.AsError(r)
			}
		}()
		results, callErr = s.m.Call(fib, fib.EntryClosure, args)
	}()

	if callErr != nil {
		e, ok := callErr.(*errs.Error)
		if !ok {
			e = errs.AsError(callErr)
		}
		if errs.IsFatal(e.Kind) {
			cs.fromFiber <- coroMsg{fatal: e}
			return
		}
		fib.State = vm.FiberFailed
		fib.FailedErr = e
		cs.fromFiber <- coroMsg{failed: true}
		return
	}

	// On virtual-function completion inside the entry frame, the fiber
	// becomes Finished, mirroring a yield (spec §4.11's last bullet).
	fib.State = vm.FiberFinished
	cs.fromFiber <- coroMsg{finished: true, results: results}
}

// Yield implements spec §4.11's fib_yield: legal only when a fiber is
// Running, i.e. only when called from inside that fiber's own
// goroutine (the native "yield" builtin registered by the owning
// language instance is the only caller in practice). It blocks until
// the next Continue hands it fresh arguments.
func (s *Scheduler) Yield(vals []value.Value) ([]value.Value, error) {
	fib := s.current
	if fib == nil || fib.State != vm.FiberRunning {
		return nil, errs.New(errs.Fiber, "yield called with no fiber running")
	}
	cs := s.stateFor(fib)
	fib.State = vm.FiberStopped
	cs.fromFiber <- coroMsg{yielded: vals}
	next := <-cs.toFiber
	fib.State = vm.FiberRunning
	return next, nil
}

// YieldBuiltin returns the native "yield" Function that a language
// instance installs as a global so script code can suspend its own
// fiber by ordinary call syntax (spec §8 scenario 2's `yield 10`).
func (s *Scheduler) YieldBuiltin() *vm.Function {
	fn := vm.NewNativeFunction("yield", 0, true, func(args []value.Value, _ *value.Data) ([]value.Value, error) {
		return s.Yield(args)
	})
	fn.VariadicIdx = value.NewIndex(s.m.Syms)
	return fn
}

// Call implements spec §4.11's fib_call: an in-fiber synchronous call
// whose stack-trace framing records the host-source file and line the
// call originated from, distinct from a bytecode CALL's virtual Frame.
func (s *Scheduler) Call(fib *vm.Fiber, cls *vm.Closure, args []value.Value, site CallSite) ([]value.Value, error) {
	fib.Native = append(fib.Native, vm.NativeFrame{Unit: cls.Fn.Name, File: site.File, Line: site.Line})
	defer func() { fib.Native = fib.Native[:len(fib.Native)-1] }()
	return s.m.Call(fib, cls, args)
}
