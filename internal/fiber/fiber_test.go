// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package fiber

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loom-lang/loom/internal/env"
	"github.com/loom-lang/loom/internal/symtab"
	"github.com/loom-lang/loom/internal/value"
	"github.com/loom-lang/loom/internal/vm"
)

// newYieldInstance wires a Machine + Scheduler with a "yield" global,
// mirroring how the top-level loom package installs it for real
// scripts (spec §8 scenario 2).
func newYieldInstance(t *testing.T) (*vm.Machine, *Scheduler, *env.Env, int) {
	t.Helper()
	syms := symtab.New()
	globals := env.New()
	m := vm.NewMachine(globals, syms, nil)
	sched := New(m)
	slot := globals.Slot(syms.InternString("yield"))
	globals.Def(slot, value.Obj(vm.NewClosure(sched.YieldBuiltin())))
	return m, sched, globals, slot
}

// twoYieldClosure builds: yield 10; yield 20; return 99 — the
// bytecode shape of spec §8 scenario 2's `yield 10, yield 20 for udf`.
func twoYieldClosure(yieldSlot int) *vm.Closure {
	fn := &vm.Function{
		Name: "f",
		Code: []vm.Instruction{
			{Op: vm.OP_GET_GLOBAL, A: int32(yieldSlot)},
			{Op: vm.OP_LOAD_INT, A: 10},
			{Op: vm.OP_CALL, A: 1},
			{Op: vm.OP_POP},
			{Op: vm.OP_GET_GLOBAL, A: int32(yieldSlot)},
			{Op: vm.OP_LOAD_INT, A: 20},
			{Op: vm.OP_CALL, A: 1},
			{Op: vm.OP_POP},
			{Op: vm.OP_LOAD_INT, A: 99},
			{Op: vm.OP_RETURN, A: 1},
		},
	}
	return vm.NewClosure(fn)
}

func TestFiberYieldRendezvous(t *testing.T) {
	_, sched, _, yieldSlot := newYieldInstance(t)
	fib := vm.NewFiber(twoYieldClosure(yieldSlot), value.Nil)

	res, err := sched.Continue(nil, fib, nil)
	require.NoError(t, err)
	require.Equal(t, vm.FiberStopped, fib.State)
	require.Len(t, res, 1)
	require.Equal(t, int64(10), res[0].AsInt())

	res, err = sched.Continue(nil, fib, nil)
	require.NoError(t, err)
	require.Equal(t, vm.FiberStopped, fib.State)
	require.Len(t, res, 1)
	require.Equal(t, int64(20), res[0].AsInt())

	res, err = sched.Continue(nil, fib, nil)
	require.NoError(t, err)
	require.Equal(t, vm.FiberFinished, fib.State)
	require.Len(t, res, 1)
	require.Equal(t, int64(99), res[0].AsInt())
}

func TestFiberContinueRejectsNonStopped(t *testing.T) {
	_, sched, _, yieldSlot := newYieldInstance(t)
	fib := vm.NewFiber(twoYieldClosure(yieldSlot), value.Nil)
	fib.State = vm.FiberRunning

	_, err := sched.Continue(nil, fib, nil)
	require.Error(t, err)
}

// failClosure builds a function that always raises an Arith error
// (1 + "nonsense", modeled directly as a non-numeric ADD operand)
// to exercise spec §8 scenario 4's fiber error localization.
func failClosure() *vm.Closure {
	fn := &vm.Function{
		Name: "bad",
		Code: []vm.Instruction{
			{Op: vm.OP_LOAD_INT, A: 1},
			{Op: vm.OP_LOAD_NIL},
			{Op: vm.OP_ADD},
			{Op: vm.OP_RETURN, A: 1},
		},
	}
	return vm.NewClosure(fn)
}

func TestFiberErrorLocalization(t *testing.T) {
	_, sched, _, _ := newYieldInstance(t)
	parent := vm.NewFiber(nil, value.Nil)
	parent.State = vm.FiberRunning
	fib := vm.NewFiber(failClosure(), value.Sym(1))

	res, err := sched.Continue(parent, fib, nil)
	require.NoError(t, err)
	require.Empty(t, res)
	require.Equal(t, vm.FiberFailed, fib.State)
	require.NotNil(t, fib.FailedErr)
	require.Equal(t, vm.FiberRunning, parent.State)
}

func TestSchedulerCurrentTracksRunningFiber(t *testing.T) {
	_, sched, _, yieldSlot := newYieldInstance(t)
	fib := vm.NewFiber(twoYieldClosure(yieldSlot), value.Nil)
	require.Nil(t, sched.Current())
	_, err := sched.Continue(nil, fib, nil)
	require.NoError(t, err)
	// Continue returns only after the child suspends/finishes, at
	// which point control (and "current") is back with the caller.
	require.Nil(t, sched.Current())
}
