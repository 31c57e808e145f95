// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package loom

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loom-lang/loom/internal/errs"
	"github.com/loom-lang/loom/internal/value"
	"github.com/loom-lang/loom/internal/vm"
)

// TestRunArithmetic exercises spec §8 scenario 1: compile and run a
// plain arithmetic script to completion with no fiber involved.
func TestRunArithmetic(t *testing.T) {
	ins := New()
	src := NewSource("arith", "3 + 4 * 2")

	results, err := ins.Run(src, "arith", ScopeGlobal, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].IsInt())
	require.Equal(t, int64(11), results[0].AsInt())
}

// TestFiberYieldRendezvous exercises spec §8 scenario 2: a fiber that
// yields twice before finishing, driven entirely through the top-level
// Continue API rather than internal/fiber directly.
func TestFiberYieldRendezvous(t *testing.T) {
	ins := New()
	src := NewSource("gen", "yield 10; yield 20; 99")

	fib, err := ins.CompileFiber(src, "gen", ScopeGlobal, Udf)
	require.NoError(t, err)
	require.Equal(t, vm.FiberStopped, fib.State)

	res, err := ins.Continue(fib, nil)
	require.NoError(t, err)
	require.Equal(t, vm.FiberStopped, fib.State)
	require.Len(t, res, 1)
	require.Equal(t, int64(10), res[0].AsInt())

	res, err = ins.Continue(fib, nil)
	require.NoError(t, err)
	require.Equal(t, vm.FiberStopped, fib.State)
	require.Len(t, res, 1)
	require.Equal(t, int64(20), res[0].AsInt())

	res, err = ins.Continue(fib, nil)
	require.NoError(t, err)
	require.Equal(t, vm.FiberFinished, fib.State)
	require.Len(t, res, 1)
	require.Equal(t, int64(99), res[0].AsInt())
}

// TestRecordLiteralsShareProtoIndex exercises spec §4.5/§8 scenario 3:
// two record literals of the identical static key shape, compiled in
// the same function, build Records sharing one Index.
func TestRecordLiteralsShareProtoIndex(t *testing.T) {
	ins := New()
	src := NewSource("shapes", "def i: {x: 1, y: 2}; def j: {x: 1, y: 2}; {i: i, j: j}")

	results, err := ins.Run(src, "shapes", ScopeGlobal, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	pair := results[0].AsObj().(*value.Record)
	iVal, err := pair.Get(ins.Sym("i"))
	require.NoError(t, err)
	jVal, err := pair.Get(ins.Sym("j"))
	require.NoError(t, err)
	iRec := iVal.AsObj().(*value.Record)
	jRec := jVal.AsObj().(*value.Record)
	require.Same(t, iRec.Index(), jRec.Index())
}

// TestRecordSeparatesOnKeySetMutation exercises the other half of
// scenario 3 (property I2): once one sibling record defines a key
// outside the shared literal shape, it clones away to its own Index
// without disturbing the sibling still on the shared one.
func TestRecordSeparatesOnKeySetMutation(t *testing.T) {
	ins := New()
	src := NewSource("shapes", "def i: {x: 1, y: 2}; def j: {x: 1, y: 2}; def i.c: 3; {i: i, j: j}")

	results, err := ins.Run(src, "shapes", ScopeGlobal, nil)
	require.NoError(t, err)

	pair := results[0].AsObj().(*value.Record)
	iVal, err := pair.Get(ins.Sym("i"))
	require.NoError(t, err)
	jVal, err := pair.Get(ins.Sym("j"))
	require.NoError(t, err)
	iRec := iVal.AsObj().(*value.Record)
	jRec := jVal.AsObj().(*value.Record)

	require.NotSame(t, iRec.Index(), jRec.Index())
	require.True(t, iRec.Has(ins.Sym("c")))
	require.False(t, jRec.Has(ins.Sym("c")))
	require.True(t, iRec.Has(ins.Sym("x")))
	require.True(t, jRec.Has(ins.Sym("x")))
}

// TestFiberErrorLocalization exercises spec §8 scenario 4 (property
// I6): a fiber that raises a non-Fatal error fails in isolation, with
// the error captured on the fiber itself rather than propagated to the
// caller of Continue.
func TestFiberErrorLocalization(t *testing.T) {
	ins := New()
	src := NewSource("bad", "1 + nil")

	fib, err := ins.CompileFiber(src, "bad", ScopeGlobal, Udf)
	require.NoError(t, err)

	res, err := ins.Continue(fib, nil)
	require.NoError(t, err)
	require.Empty(t, res)
	require.Equal(t, vm.FiberFailed, fib.State)
	require.NotNil(t, fib.FailedErr)
	require.Equal(t, errs.Arith, fib.FailedErr.Kind)
}

// TestVariadicParamPacksSurplusArgs exercises spec §8 scenario 6: a
// closure's trailing variadic parameter packs every argument beyond
// its fixed arity into a Record keyed by contiguous Ints.
func TestVariadicParamPacksSurplusArgs(t *testing.T) {
	ins := New()
	src := NewSource("variadic", "def f: [a, b..]: {a: a, b0: b @ 0, b1: b @ 1, b2: b @ 2}; f 1 2 3 4")

	results, err := ins.Run(src, "variadic", ScopeGlobal, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	rec := results[0].AsObj().(*value.Record)
	a, err := rec.Get(ins.Sym("a"))
	require.NoError(t, err)
	b0, err := rec.Get(ins.Sym("b0"))
	require.NoError(t, err)
	b1, err := rec.Get(ins.Sym("b1"))
	require.NoError(t, err)
	b2, err := rec.Get(ins.Sym("b2"))
	require.NoError(t, err)
	require.Equal(t, int64(1), a.AsInt())
	require.Equal(t, int64(2), b0.AsInt())
	require.Equal(t, int64(3), b1.AsInt())
	require.Equal(t, int64(4), b2.AsInt())
}
