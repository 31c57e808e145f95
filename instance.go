// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package loom is the host embedding API described by spec §6.1: the
// thin layer a Go program uses to create a language instance, compile
// source into a callable closure or a fresh fiber, run it, and
// exchange values with it. Per spec §1's scope note, the prelude of
// built-in callables, text-I/O sources beyond internal/lexer.Source,
// and module-loader implementations are deliberately left to the
// embedder; this package wires the core subsystems
// (internal/arena, internal/gc, internal/symtab, internal/ptrtab,
// internal/value, internal/vm, internal/fiber, internal/compiler,
// internal/env, internal/errs) together into one cohesive instance and
// exposes exactly the operations spec §6.1 enumerates.
package loom

import (
	"github.com/google/uuid"

	"github.com/loom-lang/loom/internal/arena"
	"github.com/loom-lang/loom/internal/env"
	"github.com/loom-lang/loom/internal/errs"
	"github.com/loom-lang/loom/internal/fiber"
	"github.com/loom-lang/loom/internal/gc"
	"github.com/loom-lang/loom/internal/ptrtab"
	"github.com/loom-lang/loom/internal/symtab"
	"github.com/loom-lang/loom/internal/value"
	"github.com/loom-lang/loom/internal/vm"
)

// Instance is one independent language instance (spec §5: "Multiple
// language instances are independent"; nothing here is safe for
// concurrent use from more than one goroutine at a time — callers must
// serialize access to a single Instance, exactly as spec §5 requires).
type Instance struct {
	id uuid.UUID

	Syms    *symtab.Table
	Ptrs    *ptrtab.Table
	Globals *env.Env
	Arena   *arena.Arena
	GC      *gc.Collector
	Machine *vm.Machine
	Sched   *fiber.Scheduler

	lastErr *errs.Error

	loaders map[string]ModuleLoader
	pathFn  func(path string) string
}

// Option configures a new Instance.
type Option func(*Instance)

// WithMemLimit sets the arena's initial collection threshold and
// growth factor (spec §4.1). The zero Option leaves the arena
// unbounded — a collection only ever runs when something explicitly
// calls Instance.Collect.
func WithMemLimit(initialLimit uint64, growth float64) Option {
	return func(ins *Instance) { ins.Arena = arena.New(initialLimit, growth) }
}

// WithSHA3Symbols switches the symbol table's content hash from the
// default FNV-1a to SHA3-256 (see internal/symtab.Table.UseSHA3),
// trading speed for collision resistance against attacker-influenced
// symbol content.
func WithSHA3Symbols() Option {
	return func(ins *Instance) { ins.Syms.UseSHA3 = true }
}

// New creates a fresh, independent language instance: its own arena,
// symbol table, pointer table, global pool, collector, and fiber
// scheduler, with the collector's root scanners and full-cycle sweep
// hooks wired per spec §4.2.
func New(opts ...Option) *Instance {
	ins := &Instance{
		id:      uuid.New(),
		Syms:    symtab.New(),
		Ptrs:    ptrtab.New(),
		Globals: env.New(),
		Arena:   arena.New(0, 0.5),
		GC:      gc.New(),
		loaders: make(map[string]ModuleLoader),
	}
	ins.Machine = vm.NewMachine(ins.Globals, ins.Syms, ins.GC)
	ins.Sched = fiber.New(ins.Machine)

	// spec §4.2 step 2: component-specific roots.
	ins.GC.RegisterScanner(ins.Globals.Scan)
	ins.GC.RegisterScanner(ins.Sched.Scan)
	ins.GC.RegisterScanner(ins.scanErr)

	// spec §4.2: "every Nth cycle also sweeps interned symbols and
	// pointer descriptors" — ExtraMark routes the opaque identities
	// Value.Mark reports (a symtab.Symbol or a ptrtab.ID) to the table
	// that actually knows what they are; the collector itself never
	// learns either type (see gc.Collector.ExtraMark's doc comment).
	ins.GC.ExtraMark = func(id interface{}) {
		switch v := id.(type) {
		case symtab.Symbol:
			ins.Syms.Mark(v)
		case ptrtab.ID:
			ins.Ptrs.Mark(v)
		}
	}
	ins.GC.RegisterFullCycleHook(ins.Syms.FinishFullCycle)
	ins.GC.RegisterFullCycleHook(ins.Ptrs.FinishFullCycle)

	// Apply caller options before the arena wiring below, since
	// WithMemLimit replaces ins.Arena.
	for _, opt := range opts {
		opt(ins)
	}

	// spec §4.1: "exceeding a dynamic memLimit triggers a collection
	// before the allocation proceeds" — wired to the same collector a
	// direct Instance.Collect call would drive. Done after opts run
	// since WithMemLimit replaces ins.Arena outright.
	ins.Arena.Collect = ins.GC.Collect
	ins.GC.Arena = ins.Arena

	ins.installBuiltinGlobals()
	return ins
}

// ID returns the instance's unique session identifier, surfaced in
// panics and debug dumps so an embedder juggling several instances can
// tell them apart in a shared log stream.
func (ins *Instance) ID() string { return ins.id.String() }

// Collect runs one mark-sweep cycle immediately (spec §4.2). Most
// callers never need this directly — Instance.Arena triggers it
// automatically once its accounted usage would exceed its limit — but
// it is useful for tests asserting I5 (GC safety) around a specific
// point in a script's execution.
func (ins *Instance) Collect() { ins.GC.Collect() }

// installBuiltinGlobals wires the one native global the core itself
// requires script code to be able to call without a prelude: "yield"
// (spec §4.11's fib_yield, reachable from inside a running fiber by
// ordinary call syntax, per spec §8 scenario 2's `yield 10`). Every
// other builtin (show, cat, iterators, ...) is explicitly out of
// core's scope (spec §1) and left to the embedder.
func (ins *Instance) installBuiltinGlobals() {
	sym := ins.Syms.InternString("yield")
	slot := ins.Globals.Slot(sym)
	fn := ins.Sched.YieldBuiltin()
	ins.Globals.Def(slot, value.Obj(vm.NewClosure(fn)))
}

// scanErr is a gc.Scanner marking the per-instance error state as a
// root (spec §4.2 step 3: "the per-language error value"). Most errors
// carry a host-level Go interface{} payload, but a script-raised error
// built via the `User` kind may carry a language-level value.Value —
// this is the only place that matters to the collector.
func (ins *Instance) scanErr(mark func(gc.Object), extra func(interface{})) {
	if ins.lastErr == nil {
		return
	}
	if v, ok := ins.lastErr.Value.(value.Value); ok {
		v.Mark(mark, extra)
	}
}

// LastError returns the most recently recorded instance-level error
// state (spec §5: "errNum, errVal, errStr, trace ... is per-instance; a
// fiber on failure captures a copy of this state and clears the
// instance slots"). It is nil once a fiber has absorbed the error via
// Continue/Call, or if none has ever occurred.
func (ins *Instance) LastError() *errs.Error { return ins.lastErr }

func (ins *Instance) recordErr(err error) error {
	if err == nil {
		ins.lastErr = nil
		return nil
	}
	if e, ok := err.(*errs.Error); ok {
		ins.lastErr = e
	}
	return err
}
