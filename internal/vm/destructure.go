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
	"github.com/loom-lang/loom/internal/value"
)

// destructureTup implements DEF_TUP/SET_TUP/DEF_VTUP/SET_VTUP (spec
// §4.8's tuple-pattern assignment). The compiler pushes n destination
// references followed by a Tup value (header on top, per the
// OP_MAKE_TUP convention); the trailing reference of a variadic
// pattern receives every element past the fixed prefix, packed into a
// fresh Record keyed 0..k-1 (the same shape as a call's surplus-args
// record).
func (m *Machine) destructureTup(fiber *Fiber, n int, variadic, isDef bool) error {
	if !fiber.top().IsTup() {
		return errs.New(errs.Tuple, "expected a tuple value to destructure, got %s", fiber.top().Tag())
	}
	arity := fiber.pop().AsTupArity()
	fixedN := n
	if variadic {
		fixedN = n - 1
	}
	if variadic && arity < fixedN {
		return errs.New(errs.Tuple, "expected at least %d element(s), got %d", fixedN, arity)
	}
	if !variadic && arity != fixedN {
		return errs.New(errs.Tuple, "expected %d element(s), got %d", fixedN, arity)
	}

	vals := make([]value.Value, arity)
	for i := arity - 1; i >= 0; i-- {
		vals[i] = fiber.pop()
	}
	refs := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		refs[i] = fiber.pop()
	}

	for i := 0; i < fixedN; i++ {
		if err := m.assignRef(fiber, refs[i], vals[i], isDef); err != nil {
			return err
		}
	}
	if variadic {
		rest := value.NewRecord(m.Syms)
		m.track(rest)
		m.track(rest.Index())
		for i := fixedN; i < arity; i++ {
			rest.Def(value.Int(int64(i-fixedN)), vals[i])
		}
		if err := m.assignRef(fiber, refs[n-1], value.Obj(rest), isDef); err != nil {
			return err
		}
	}
	return nil
}

// destructureRec implements DEF_REC/SET_REC/DEF_VREC/SET_VREC (spec
// §4.8's record-pattern assignment). The compiler pushes, for each
// named field, a destination reference then its source key, followed
// (for the variadic forms) by one more reference to receive every
// field the named ones didn't match, and finally the source Record.
func (m *Machine) destructureRec(fiber *Fiber, n int, variadic, isDef bool) error {
	srcVal := fiber.pop()
	if !srcVal.IsObjKind(value.KindRecord) {
		return errs.New(errs.Record, "expected a record value to destructure, got %s", srcVal.Tag())
	}
	src := srcVal.AsObj().(*value.Record)

	var restRef value.Value
	named := n
	if variadic {
		named = n - 1
		restRef = fiber.pop()
	}

	refs := make([]value.Value, named)
	keys := make([]value.Value, named)
	for i := named - 1; i >= 0; i-- {
		keys[i] = fiber.pop()
		refs[i] = fiber.pop()
	}

	for i := 0; i < named; i++ {
		if !src.Has(keys[i]) {
			return errs.New(errs.Record, "field %v is not defined", keys[i])
		}
		v, err := src.Get(keys[i])
		if err != nil {
			return err
		}
		if err := m.assignRef(fiber, refs[i], v, isDef); err != nil {
			return err
		}
	}
	if variadic {
		rest := value.NewRecord(m.Syms)
		m.track(rest)
		m.track(rest.Index())
		src.Each(func(key, val value.Value) {
			for _, k := range keys {
				if value.Equal(k, key, m.Syms) {
					return
				}
			}
			rest.Def(key, val)
		})
		if err := m.assignRef(fiber, restRef, value.Obj(rest), isDef); err != nil {
			return err
		}
	}
	return nil
}

// makeVTup implements MAKE_VTUP: n explicit elements followed by a
// splice Tup on top, flattened into one combined Tup.
func (m *Machine) makeVTup(fiber *Fiber, n int) error {
	top := fiber.pop()
	if !top.IsTup() {
		return errs.New(errs.Tuple, "expected a tuple to splice, got %s", top.Tag())
	}
	spliceArity := top.AsTupArity()
	splice := make([]value.Value, spliceArity)
	for i := spliceArity - 1; i >= 0; i-- {
		splice[i] = fiber.pop()
	}
	fixed := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		fixed[i] = fiber.pop()
	}
	for _, v := range fixed {
		fiber.push(v)
	}
	for _, v := range splice {
		fiber.push(v)
	}
	fiber.push(value.Tup(n + spliceArity))
	return nil
}

// makeVRec implements MAKE_VREC: n explicit key/value pairs followed
// by a splice Record on top; the explicit pairs win on key collision.
func (m *Machine) makeVRec(fiber *Fiber, n int) error {
	top := fiber.pop()
	if !top.IsObjKind(value.KindRecord) {
		return errs.New(errs.Record, "expected a record to splice, got %s", top.Tag())
	}
	splice := top.AsObj().(*value.Record)

	pairs := make([]value.Value, 2*n)
	copy(pairs, fiber.Stack[len(fiber.Stack)-2*n:])
	fiber.Stack = fiber.Stack[:len(fiber.Stack)-2*n]

	rec := value.NewRecord(m.Syms)
	m.track(rec)
	m.track(rec.Index())
	splice.Each(func(key, val value.Value) { rec.Def(key, val) })
	for i := 0; i < n; i++ {
		if err := rec.Def(pairs[2*i], pairs[2*i+1]); err != nil {
			return err
		}
	}
	fiber.push(value.Obj(rec))
	return nil
}
