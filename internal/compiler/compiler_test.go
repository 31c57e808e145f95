// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler

import (
	"testing"

	"github.com/loom-lang/loom/internal/env"
	"github.com/loom-lang/loom/internal/lexer"
	"github.com/loom-lang/loom/internal/symtab"
	"github.com/loom-lang/loom/internal/value"
	"github.com/loom-lang/loom/internal/vm"
)

// runUnit compiles and runs src under a fresh global environment,
// returning its single result value.
func runUnit(t *testing.T, src string) value.Value {
	t.Helper()
	syms := symtab.New()
	globals := env.New()
	fn, err := Compile(lexer.NewStringSource("test", src), "test", ScopeGlobal, syms, globals)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	m := vm.NewMachine(globals, syms, nil)
	fib := vm.NewFiber(nil, value.Nil)
	results, err := m.Call(fib, vm.NewClosure(fn), nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %v, want exactly one value", results)
	}
	return results[0]
}

func TestCompileArithmeticPrecedence(t *testing.T) {
	v := runUnit(t, "1 + 2 * 3")
	if !v.IsInt() || v.AsInt() != 7 {
		t.Fatalf("got %v, want Int(7)", v)
	}
}

func TestCompileGlobalDefAndUse(t *testing.T) {
	v := runUnit(t, "def x: 5; x * 2")
	if !v.IsInt() || v.AsInt() != 10 {
		t.Fatalf("got %v, want Int(10)", v)
	}
}

func TestCompileIfElseChain(t *testing.T) {
	v := runUnit(t, "if false: 1 else true: 2 else 3")
	if !v.IsInt() || v.AsInt() != 2 {
		t.Fatalf("got %v, want Int(2)", v)
	}
}

func TestCompileIfWithNoDefaultBranchYieldsNil(t *testing.T) {
	v := runUnit(t, "if false: 1")
	if !v.IsNil() {
		t.Fatalf("got %v, want Nil", v)
	}
}

func TestCompileClosureCallReadingGlobal(t *testing.T) {
	v := runUnit(t, "def base: 10; def add: [n]: base + n; add 5")
	if !v.IsInt() || v.AsInt() != 15 {
		t.Fatalf("got %v, want Int(15)", v)
	}
}

func TestCompileRecordLiteralAndFieldAccess(t *testing.T) {
	v := runUnit(t, "def r: {x: 1, y: 2}; r.x + r.y")
	if !v.IsInt() || v.AsInt() != 3 {
		t.Fatalf("got %v, want Int(3)", v)
	}
}

func TestCompileDoExprSequencing(t *testing.T) {
	v := runUnit(t, "def x: 1; do set x: x + 1; set x: x + 1 for x")
	if !v.IsInt() || v.AsInt() != 3 {
		t.Fatalf("got %v, want Int(3)", v)
	}
}

func TestCompileSyntaxErrorReportsPosition(t *testing.T) {
	syms := symtab.New()
	_, err := Compile(lexer.NewStringSource("bad", "1 +"), "bad", ScopeGlobal, syms, env.New())
	if err == nil {
		t.Fatal("expected a syntax error")
	}
}
