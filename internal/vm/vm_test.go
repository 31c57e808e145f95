// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"testing"

	"github.com/loom-lang/loom/internal/env"
	"github.com/loom-lang/loom/internal/symtab"
	"github.com/loom-lang/loom/internal/value"
)

func newTestMachine() (*Machine, *Fiber) {
	syms := symtab.New()
	m := NewMachine(env.New(), syms, nil)
	return m, NewFiber(nil, value.Nil)
}

// add(a, b): return a + b, invoked as a plain CALL.
func addClosure() *Closure {
	fn := &Function{
		Name:      "add",
		Arity:     2,
		NumLocals: 2,
		Code: []Instruction{
			{Op: OP_GET_LOCAL, A: 0},
			{Op: OP_GET_LOCAL, A: 1},
			{Op: OP_ADD},
			{Op: OP_RETURN, A: 1},
		},
	}
	return NewClosure(fn)
}

func TestCallSimpleArithmetic(t *testing.T) {
	m, fiber := newTestMachine()
	results, err := m.Call(fiber, addClosure(), []value.Value{value.Int(3), value.Int(4)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(results) != 1 || !results[0].IsInt() || results[0].AsInt() != 7 {
		t.Fatalf("results = %v, want [Int(7)]", results)
	}
}

func TestArityMismatchErrors(t *testing.T) {
	m, fiber := newTestMachine()
	_, err := m.Call(fiber, addClosure(), []value.Value{value.Int(1)})
	if err == nil {
		t.Fatal("expected an arity error")
	}
}

// countdown(n): tail-calls itself until n reaches 0, then returns n.
// Exercises the iterative interpreter loop: a deep countdown must not
// grow the Go call stack, since RETURN immediately follows CALL.
func countdownClosure() *Closure {
	fn := &Function{
		Name:      "countdown",
		Arity:     1,
		NumLocals: 1,
	}
	cls := NewClosure(fn)
	fn.Code = []Instruction{
		{Op: OP_GET_LOCAL, A: 0}, // 0: n
		{Op: OP_LOAD_INT, A: 0},  // 1: 0
		{Op: OP_IET},             // 2: n == 0
		{Op: OP_ALT_JUMP, A: 6},  // 3: if not equal, go to recursive step at 6
		{Op: OP_GET_LOCAL, A: 0}, // 4: base case: return n (== 0)
		{Op: OP_RETURN, A: 1},    // 5
		{Op: OP_GET_CONST, A: 0}, // 6: recursive step: push countdown
		{Op: OP_GET_LOCAL, A: 0}, // 7: push n
		{Op: OP_LOAD_INT, A: 1},  // 8: push 1
		{Op: OP_SUB},             // 9: n - 1
		{Op: OP_CALL, A: 1},      // 10: tail call countdown(n-1)
		{Op: OP_RETURN, A: 1},    // 11
	}
	fn.Consts = []value.Value{value.Obj(cls)}
	return cls
}

func TestTailCallDoesNotGrowGoStack(t *testing.T) {
	m, fiber := newTestMachine()
	results, err := m.Call(fiber, countdownClosure(), []value.Value{value.Int(50000)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(results) != 1 || results[0].AsInt() != 0 {
		t.Fatalf("results = %v, want [Int(0)]", results)
	}
}

// makeAdder(): returns a closure over a captured local `base`, so
// calling the returned closure with x yields base + x.
func TestClosureUpvalueCapture(t *testing.T) {
	m, fiber := newTestMachine()

	adderFn := &Function{
		Name:      "adder",
		Arity:     1,
		NumLocals: 1,
		UpvalDesc: []UpvalDesc{{FromParentLocal: true, Index: 0}},
		Code: []Instruction{
			{Op: OP_GET_LOCAL, A: 0},
			{Op: OP_GET_UPVAL, A: 0},
			{Op: OP_ADD},
			{Op: OP_RETURN, A: 1},
		},
	}
	makeAdderFn := &Function{
		Name:      "makeAdder",
		Arity:     1,
		NumLocals: 1,
		Code: []Instruction{
			{Op: OP_GET_CONST, A: 0},  // push adder Function
			{Op: OP_REF_LOCAL, A: 0},  // capture path for base
			{Op: OP_MAKE_CLS, A: 1},
			{Op: OP_RETURN, A: 1},
		},
		Consts: []value.Value{value.Obj(adderFn)},
	}
	makeAdder := NewClosure(makeAdderFn)

	results, err := m.Call(fiber, makeAdder, []value.Value{value.Int(10)})
	if err != nil {
		t.Fatalf("makeAdder call: %v", err)
	}
	adderCls := results[0].AsObj().(*Closure)

	results, err = m.Call(fiber, adderCls, []value.Value{value.Int(5)})
	if err != nil {
		t.Fatalf("adder call: %v", err)
	}
	if results[0].AsInt() != 15 {
		t.Fatalf("adder(5) = %v, want Int(15)", results[0])
	}
}

func TestVariadicCallPacksSurplusIntoRecord(t *testing.T) {
	m, fiber := newTestMachine()
	fn := &Function{
		Name:        "collect",
		Arity:       1,
		Variadic:    true,
		NumLocals:   2,
		VariadicIdx: value.NewIndex(m.Syms),
		Code: []Instruction{
			{Op: OP_GET_LOCAL, A: 1}, // the packed rest-record
			{Op: OP_RETURN, A: 1},
		},
	}
	cls := NewClosure(fn)
	results, err := m.Call(fiber, cls, []value.Value{value.Int(1), value.Int(2), value.Int(3)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	rest := results[0].AsObj().(*value.Record)
	if rest.Len() != 2 {
		t.Fatalf("rest.Len() = %d, want 2", rest.Len())
	}
	if got, err := rest.Get(value.Int(0)); err != nil || got.AsInt() != 2 {
		t.Fatalf("rest[0] = %v, %v, want Int(2), nil", got, err)
	}
	if got, err := rest.Get(value.Int(1)); err != nil || got.AsInt() != 3 {
		t.Fatalf("rest[1] = %v, %v, want Int(3), nil", got, err)
	}
}

func TestNativeFunctionCall(t *testing.T) {
	m, fiber := newTestMachine()
	native := NewNativeFunction("double", 1, false, func(args []value.Value, _ *value.Data) ([]value.Value, error) {
		return []value.Value{value.Int(args[0].AsInt() * 2)}, nil
	})
	results, err := m.Call(fiber, NewClosure(native), []value.Value{value.Int(21)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if results[0].AsInt() != 42 {
		t.Fatalf("results = %v, want [Int(42)]", results)
	}
}

func TestRecordFieldAssignment(t *testing.T) {
	m, fiber := newTestMachine()
	syms := m.Syms
	keySym := value.Sym(syms.InternString("x"))

	fn := &Function{
		Name:      "setX",
		Arity:     1,
		NumLocals: 1,
		Code: []Instruction{
			{Op: OP_GET_LOCAL, A: 0},  // recv
			{Op: OP_GET_CONST, A: 0},  // key
			{Op: OP_REF_FIELD},        // ref to recv.x
			{Op: OP_LOAD_INT, A: 99},
			{Op: OP_DEF_ONE},
			{Op: OP_GET_LOCAL, A: 0},
			{Op: OP_RETURN, A: 1},
		},
		Consts: []value.Value{keySym},
	}
	rec := value.NewRecord(syms)
	results, err := m.Call(fiber, NewClosure(fn), []value.Value{value.Obj(rec)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	got, err := results[0].AsObj().(*value.Record).Get(keySym)
	if err != nil || !got.IsInt() || got.AsInt() != 99 {
		t.Fatalf("rec.x = %v, %v, want Int(99), nil", got, err)
	}
}

func TestDestructureTup(t *testing.T) {
	m, fiber := newTestMachine()
	fn := &Function{
		Name:      "swap",
		Arity:     0,
		NumLocals: 2,
		Code: []Instruction{
			{Op: OP_REF_LOCAL, A: 0},
			{Op: OP_REF_LOCAL, A: 1},
			{Op: OP_LOAD_INT, A: 1},
			{Op: OP_LOAD_INT, A: 2},
			{Op: OP_MAKE_TUP, A: 2},
			{Op: OP_DEF_TUP, A: 2},
			{Op: OP_GET_LOCAL, A: 0},
			{Op: OP_GET_LOCAL, A: 1},
			{Op: OP_MAKE_TUP, A: 2},
			{Op: OP_RETURN, A: 1},
		},
	}
	results, err := m.Call(fiber, NewClosure(fn), nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(results) != 2 || results[0].AsInt() != 1 || results[1].AsInt() != 2 {
		t.Fatalf("results = %v, want [Int(1) Int(2)]", results)
	}
}

// splitRec(arg): arg is a record argument in local 0; destructures it
// as `{x, ...rest}`, binding the matched field into local 1 and
// everything else into local 2, then returns x.
func TestDestructureVariadicRec(t *testing.T) {
	m, fiber := newTestMachine()
	syms := m.Syms
	xSym := value.Sym(syms.InternString("x"))

	fn := &Function{
		Name:      "splitRec",
		Arity:     1,
		NumLocals: 3,
		Code: []Instruction{
			{Op: OP_REF_LOCAL, A: 1}, // dest for matched field x -> local 1
			{Op: OP_GET_CONST, A: 0}, // key "x"
			{Op: OP_REF_LOCAL, A: 2}, // dest for the rest -> local 2
			{Op: OP_GET_LOCAL, A: 0}, // source record
			{Op: OP_DEF_VREC, A: 2},
			{Op: OP_GET_LOCAL, A: 1},
			{Op: OP_RETURN, A: 1},
		},
		Consts: []value.Value{xSym},
	}
	rec := value.NewRecord(syms)
	rec.Def(xSym, value.Int(7))
	rec.Def(value.Sym(syms.InternString("y")), value.Int(8))

	results, err := m.Call(fiber, NewClosure(fn), []value.Value{value.Obj(rec)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !results[0].IsInt() || results[0].AsInt() != 7 {
		t.Fatalf("results = %v, want [Int(7)] (x matched)", results)
	}
}
