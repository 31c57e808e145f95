// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package loom

import (
	"github.com/loom-lang/loom/internal/compiler"
	"github.com/loom-lang/loom/internal/errs"
	"github.com/loom-lang/loom/internal/lexer"
	"github.com/loom-lang/loom/internal/value"
	"github.com/loom-lang/loom/internal/vm"
)

// Scope selects where a compiled unit's top-level `def`s resolve (spec
// §6.1: "in a Local or Global scoping mode"). It is a thin re-export of
// internal/compiler.Scope so callers never need to import internal/
// packages themselves.
type Scope = compiler.Scope

const (
	ScopeLocal  = compiler.ScopeLocal
	ScopeGlobal = compiler.ScopeGlobal
)

// NewSource wraps an in-memory script as a Source the compiler can
// consume (spec §6.4).
func NewSource(name, src string) lexer.Source { return lexer.NewStringSource(name, src) }

// SourceFile reads path and wraps its contents as a Source.
func SourceFile(path string) (lexer.Source, error) { return lexer.NewFileSource(path) }

// CompileClosure compiles src into a standalone closure (spec §6.1:
// "Compile a Source into ... a standalone closure ... in a Local or
// Global scoping mode"). The returned closure has no captured upvalues
// and arity 0, and it is not variadic: calling it with any arguments
// raises a Call-kind arity error.
func (ins *Instance) CompileClosure(src lexer.Source, unit string, scope Scope) (*vm.Closure, error) {
	fn, err := compiler.Compile(src, unit, scope, ins.Syms, ins.Globals)
	if err != nil {
		return nil, ins.recordErr(err)
	}
	ins.trackFunctionTree(fn)
	cls := vm.NewClosure(fn)
	ins.GC.Track(cls)
	return cls, nil
}

// trackFunctionTree registers fn, fn's shared variadic Index (if any),
// and every nested *vm.Function reachable through fn.Consts (one per
// closure literal compiled inside fn) with the collector. The compiler
// itself never touches internal/gc — it stays a leaf over
// internal/vm's types — so this is the one place a freshly compiled
// unit's whole constant tree becomes collector-visible, walked once up
// front rather than lazily the first time each nested closure executes.
func (ins *Instance) trackFunctionTree(fn *vm.Function) {
	ins.GC.Track(fn)
	if fn.VariadicIdx != nil {
		ins.GC.Track(fn.VariadicIdx)
	}
	for _, idx := range fn.RecProtos {
		ins.GC.Track(idx)
	}
	for _, c := range fn.Consts {
		if c.IsObjKind(value.KindFunction) {
			ins.trackFunctionTree(c.AsObj().(*vm.Function))
		}
	}
}

// CompileFiber compiles src the same way as CompileClosure, then wraps
// the result as a fresh, Stopped Fiber ready for Continue (spec §6.1:
// "... or a fresh fiber wrapping it"). tag is the fiber's optional
// identifying symbol (value.Udf if unused).
func (ins *Instance) CompileFiber(src lexer.Source, unit string, scope Scope, tag value.Value) (*vm.Fiber, error) {
	cls, err := ins.CompileClosure(src, unit, scope)
	if err != nil {
		return nil, err
	}
	return vm.NewFiber(cls, tag), nil
}

// CallSync runs cls to completion synchronously, outside of any fiber
// rendezvous (spec §6.1: "call a closure synchronously"). It is the
// host's entry point for invoking a compiled unit directly rather than
// through a fiber's continue/yield protocol; internally it allocates a
// throwaway Fiber purely to host the call's value/frame stacks; unlike
// a real fiber it is never reachable from script code and is not
// itself tracked by the garbage collector.
func (ins *Instance) CallSync(cls *vm.Closure, args []value.Value) (results []value.Value, err error) {
	fib := vm.NewFiber(nil, value.Nil)
	defer func() {
		if r := recover(); r != nil {
			err = ins.recordErr(errs.AsError(r))
		}
	}()
	results, err = ins.Machine.Call(fib, cls, args)
	err = ins.recordErr(err)
	return results, err
}

// Run is a convenience combining CompileClosure and CallSync for the
// common case of running a whole script to completion with no fiber
// semantics involved (spec §8 scenario 1: "compile the script `3 + 4 *
// 2` ... execute").
func (ins *Instance) Run(src lexer.Source, unit string, scope Scope, args []value.Value) ([]value.Value, error) {
	cls, err := ins.CompileClosure(src, unit, scope)
	if err != nil {
		return nil, err
	}
	return ins.CallSync(cls, args)
}
