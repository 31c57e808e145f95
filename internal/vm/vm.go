// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package vm implements the bytecode interpreter: the instruction set
// (spec §4.8), the call/return protocol (spec §4.9), and the Function/
// Closure/Fiber object kinds whose internals are inseparable from
// bytecode execution. It depends on internal/value for the tagged
// Value union and the bytecode-agnostic heap objects (String, Index,
// Record, Upvalue, Data).
package vm

import (
	"github.com/loom-lang/loom/internal/env"
	"github.com/loom-lang/loom/internal/errs"
	"github.com/loom-lang/loom/internal/gc"
	"github.com/loom-lang/loom/internal/symtab"
	"github.com/loom-lang/loom/internal/value"
)

// Machine holds the pieces of instance state the interpreter needs
// that are not local to a single Fiber: the global variable pool, the
// symbol table (for Sym ordering/formatting), and the collector (for
// triggering a GC when the arena demands one — wired by the owning
// instance, not by this package).
type Machine struct {
	Globals *env.Env
	Syms    *symtab.Table
	GC      *gc.Collector
}

// NewMachine creates a Machine over the given shared instance state.
func NewMachine(globals *env.Env, syms *symtab.Table, gcol *gc.Collector) *Machine {
	return &Machine{Globals: globals, Syms: syms, GC: gcol}
}

// Call invokes cls with args on fiber, running the bytecode
// interpreter loop for a virtual function or the Go callback directly
// for a native one, and returns the result tuple.
//
// Tail calls: a RETURN immediately following CALL in the callee's code
// does not recurse in Go — the interpreter loop pops the completed
// frame and keeps iterating the same for-loop, so tight tail
// recursion runs in constant native stack (spec §4.9, property I7).
func (m *Machine) Call(fiber *Fiber, cls *Closure, args []value.Value) ([]value.Value, error) {
	base := len(fiber.Stack)
	if err := m.pushCall(fiber, cls, args, base); err != nil {
		return nil, err
	}
	return m.run(fiber, len(fiber.Frames)-1)
}

// pushCall validates args (spec §4.9 step 2) and either sets up a new
// virtual Frame or, for a native Function, invokes it immediately and
// leaves its results on the stack at base (as if it were a completed
// call), so the caller's generic "read results off the stack" path
// works uniformly for both cases.
func (m *Machine) pushCall(fiber *Fiber, cls *Closure, args []value.Value, base int) error {
	fn := cls.Fn
	for _, a := range args {
		if a.IsUdf() {
			return errs.New(errs.Call, "%s: Udf is not a valid argument", fn.Name)
		}
	}
	if len(args) < fn.Arity {
		return errArity(fn, len(args))
	}
	if len(args) > fn.Arity && !fn.Variadic {
		return errArity(fn, len(args))
	}

	fixed := args[:fn.Arity]
	var packed value.Value
	if fn.Variadic {
		rec := value.NewRecordSharing(fn.VariadicIdx)
		m.track(rec)
		for i, a := range args[fn.Arity:] {
			rec.Def(value.Int(int64(i)), a)
		}
		packed = value.Obj(rec)
	}

	if fn.IsNative() {
		results, err := fn.Native(args, cls.Data)
		if err != nil {
			return err
		}
		fiber.Stack = append(fiber.Stack[:base], results...)
		return nil
	}

	fiber.Stack = fiber.Stack[:base]
	for _, a := range fixed {
		fiber.push(a)
	}
	if fn.Variadic {
		fiber.push(packed)
	}
	for i := len(fiber.Stack) - base; i < fn.NumLocals; i++ {
		fiber.push(value.Udf)
	}
	fiber.Frames = append(fiber.Frames, Frame{Closure: cls, Base: base, Unit: fn.Name})
	return nil
}

// run drives the interpreter loop until the frame at floor (and every
// frame pushed above it) has returned, then reports the top frame's
// result tuple. floor lets Call re-enter the same loop for a nested
// virtual call without growing the Go call stack.
func (m *Machine) run(fiber *Fiber, floor int) ([]value.Value, error) {
	if floor >= len(fiber.Frames) {
		// pushCall already fully resolved a native call; nothing to run.
		return append([]value.Value(nil), fiber.Stack...), nil
	}
	for len(fiber.Frames) > floor {
		fr := fiber.curFrame()
		code := fr.Closure.Fn.Code
		if fr.IP >= len(code) {
			m.doReturn(fiber, nil)
			continue
		}
		instr := code[fr.IP]
		fr.IP++

		if err := m.step(fiber, fr, instr); err != nil {
			return nil, err
		}
	}
	return fiber.Stack, nil
}

// step executes one instruction. fr aliases fiber.curFrame() at entry
// but a CALL/RETURN inside step may change what that is; callers must
// re-fetch via fiber.curFrame() rather than reuse fr after step
// returns.
func (m *Machine) step(fiber *Fiber, fr *Frame, instr Instruction) error {
	switch instr.Op {
	case OP_NOP:

	case OP_LOAD_NIL:
		fiber.push(value.Nil)
	case OP_LOAD_UDF:
		fiber.push(value.Udf)
	case OP_LOAD_LOG:
		fiber.push(value.Bool(instr.A != 0))
	case OP_LOAD_INT:
		fiber.push(value.Int(int64(instr.A)))
	case OP_GET_CONST:
		fiber.push(fr.Closure.Fn.Consts[instr.A])

	case OP_GET_LOCAL:
		fiber.push(fiber.Stack[fr.Base+int(instr.A)])
	case OP_GET_UPVAL:
		fiber.push(fr.Closure.Upvals[instr.A].Get())
	case OP_GET_CLOSED:
		fiber.push(fr.Closure.Upvals[instr.A].Get())
	case OP_GET_GLOBAL:
		fiber.push(m.Globals.Get(int(instr.A)))
	case OP_GET_FIELD:
		key := fiber.pop()
		recv := fiber.pop()
		v, err := getField(recv, key)
		if err != nil {
			return err
		}
		fiber.push(v)

	case OP_REF_LOCAL, OP_REF_UPVAL, OP_REF_CLOSED, OP_REF_GLOBAL:
		// First-class references are consumed by a following
		// DEF_ONE/SET_ONE, a tuple/record destructure, or MAKE_CLS (as a
		// capture path); the compiler never emits a bare REF_* without
		// a matching consumer.
		fiber.push(makeRef(instr, value.Udf, value.Udf))
	case OP_REF_FIELD:
		key := fiber.pop()
		recv := fiber.pop()
		fiber.push(makeRef(instr, recv, key))

	case OP_DEF_ONE:
		v := fiber.pop()
		ref := fiber.pop()
		return m.assignRef(fiber, ref, v, true)
	case OP_SET_ONE:
		v := fiber.pop()
		ref := fiber.pop()
		return m.assignRef(fiber, ref, v, false)

	case OP_DEF_TUP, OP_SET_TUP:
		return m.destructureTup(fiber, int(instr.A), false, instr.Op == OP_DEF_TUP)
	case OP_DEF_VTUP, OP_SET_VTUP:
		return m.destructureTup(fiber, int(instr.A), true, instr.Op == OP_DEF_VTUP)
	case OP_DEF_REC, OP_SET_REC:
		return m.destructureRec(fiber, int(instr.A), false, instr.Op == OP_DEF_REC)
	case OP_DEF_VREC, OP_SET_VREC:
		return m.destructureRec(fiber, int(instr.A), true, instr.Op == OP_DEF_VREC)

	case OP_REC_DEF_ONE, OP_REC_SET_ONE:
		v := fiber.pop()
		key := fiber.pop()
		recv := fiber.pop()
		if !recv.IsObjKind(value.KindRecord) {
			return errs.New(errs.Assign, "cannot assign a field of a %s", recv.Tag())
		}
		rec := recv.AsObj().(*value.Record)
		if instr.Op == OP_REC_DEF_ONE {
			return rec.Def(key, v)
		}
		return rec.Set(key, v)

	case OP_MAKE_TUP:
		// Stack already holds [v0..v(n-1)]; the Tup header rides on top
		// as the arity marker, matching opCall's "pop header, read argc
		// values directly below" convention.
		fiber.push(value.Tup(int(instr.A)))
	case OP_MAKE_VTUP:
		return m.makeVTup(fiber, int(instr.A))
	case OP_MAKE_VREC:
		return m.makeVRec(fiber, int(instr.A))
	case OP_MAKE_REC:
		n := int(instr.A)
		kv := make([]value.Value, 2*n)
		copy(kv, fiber.Stack[len(fiber.Stack)-2*n:])
		fiber.Stack = fiber.Stack[:len(fiber.Stack)-2*n]
		keys := make([]value.Value, n)
		vals := make([]value.Value, n)
		for i := 0; i < n; i++ {
			keys[i] = kv[2*i]
			vals[i] = kv[2*i+1]
		}

		var rec *value.Record
		if instr.B >= 0 && int(instr.B) < len(fr.Closure.Fn.RecProtos) {
			// Statically-keyed literal: share this function's cached
			// prototype Index instead of hashing a fresh one (spec
			// §4.5/§8 scenario 3).
			rec = value.NewRecordFromProto(fr.Closure.Fn.RecProtos[instr.B], keys, vals)
		} else {
			rec = value.NewRecord(m.Syms)
			m.track(rec.Index())
			for i := 0; i < n; i++ {
				if err := rec.Def(keys[i], vals[i]); err != nil {
					return err
				}
			}
		}
		m.track(rec)
		fiber.push(value.Obj(rec))
	case OP_MAKE_CLS:
		// Stack: [fn][ref0]..[ref(n-1)]; the capture refs sit above fn.
		n := int(instr.A)
		upvals := make([]*value.Upvalue, n)
		for i := n - 1; i >= 0; i-- {
			uv, fresh := resolveUpvalRef(fiber, fr)
			upvals[i] = uv
			if fresh {
				m.track(uv)
			}
		}
		fn := fiber.pop().AsObj().(*Function)
		cls := &Closure{Fn: fn, Upvals: upvals}
		m.track(cls)
		fiber.push(value.Obj(cls))

	case OP_JUMP:
		fr.IP = int(instr.A)
	case OP_ALT_JUMP:
		v := fiber.pop()
		if !v.Truthy() {
			fr.IP = int(instr.A)
		}
	case OP_AND_JUMP:
		if !fiber.top().Truthy() {
			fr.IP = int(instr.A)
		} else {
			fiber.pop()
		}
	case OP_OR_JUMP:
		if fiber.top().Truthy() {
			fr.IP = int(instr.A)
		} else {
			fiber.pop()
		}
	case OP_UDF_JUMP:
		if fiber.top().IsUdf() {
			fr.IP = int(instr.A)
		} else {
			fiber.pop()
		}
	case OP_DEF_SIG, OP_DEF_VSIG:
		pc, n := unpackOperand(instr.A)
		fr.Closure.Fn.Sigs = append(fr.Closure.Fn.Sigs, SigHandler{
			Label: pc, ParamN: n, Variadic: instr.Op == OP_DEF_VSIG,
		})

	case OP_CALL:
		return m.opCall(fiber, fr, int(instr.A))
	case OP_RETURN:
		n := int(instr.A)
		results := append([]value.Value(nil), fiber.Stack[len(fiber.Stack)-n:]...)
		m.doReturn(fiber, results)

	case OP_NEG:
		a := fiber.pop()
		if a.IsInt() {
			fiber.push(value.Int(-a.AsInt()))
		} else if a.IsDec() {
			fiber.push(value.Dec(-a.AsDec()))
		} else {
			return errs.New(errs.Arith, "NEG requires a numeric operand, got %s", a.Tag())
		}
	case OP_NOT:
		a := fiber.pop()
		fiber.push(value.Bool(!a.Truthy()))
	case OP_FIX:
		a := fiber.pop()
		if a.IsInt() {
			fiber.push(a)
		} else if a.IsDec() {
			fiber.push(value.Int(int64(a.AsDec())))
		} else {
			return errs.New(errs.Arith, "FIX requires a numeric operand, got %s", a.Tag())
		}

	case OP_POW, OP_MUL, OP_DIV, OP_MOD, OP_ADD, OP_SUB:
		b := fiber.pop()
		a := fiber.pop()
		r, err := numBinOp(instr.Op, a, b)
		if err != nil {
			return err
		}
		fiber.push(r)
	case OP_LSL, OP_LSR, OP_AND, OP_XOR, OP_OR:
		b := fiber.pop()
		a := fiber.pop()
		r, err := bitBinOp(instr.Op, a, b)
		if err != nil {
			return err
		}
		fiber.push(r)

	case OP_IMT, OP_ILT, OP_IME, OP_ILE:
		b := fiber.pop()
		a := fiber.pop()
		c, err := compare(a, b, m.Syms)
		if err != nil {
			return err
		}
		switch instr.Op {
		case OP_IMT:
			fiber.push(boolVal(c > 0))
		case OP_ILT:
			fiber.push(boolVal(c < 0))
		case OP_IME:
			fiber.push(boolVal(c >= 0))
		case OP_ILE:
			fiber.push(boolVal(c <= 0))
		}
	case OP_IET:
		b := fiber.pop()
		a := fiber.pop()
		fiber.push(boolVal(value.Equal(a, b, m.Syms)))
	case OP_NET:
		b := fiber.pop()
		a := fiber.pop()
		fiber.push(boolVal(!value.Equal(a, b, m.Syms)))
	case OP_IETU:
		a := fiber.pop()
		fiber.push(boolVal(a.IsUdf()))

	case OP_POP:
		fiber.pop()
	case OP_DUP:
		fiber.push(fiber.top())

	case OP_REC_DEF_TUP, OP_REC_DEF_VTUP, OP_REC_DEF_REC, OP_REC_DEF_VREC:
		// Reserved: this compiler never emits these bulk forms, and it
		// does not accept a tuple/record pattern whose target is itself
		// a record field (e.g. `def rec.(a, b): ...`).
		return errs.New(errs.Compile, "%s is not emitted by this compiler", instr.Op)

	default:
		return errs.New(errs.Compile, "unimplemented opcode %s", instr.Op)
	}
	return nil
}

// opCall implements spec §4.9's CALL step: locate the closure below
// argc arguments (popping a Tup header if the top of stack is one,
// which lets a variadic call-site spread a dynamically-sized argument
// group), then dispatch.
func (m *Machine) opCall(fiber *Fiber, fr *Frame, argc int) error {
	if fiber.top().IsTup() {
		argc = fiber.pop().AsTupArity()
	}
	args := append([]value.Value(nil), fiber.Stack[len(fiber.Stack)-argc:]...)
	base := len(fiber.Stack) - argc - 1
	clsVal := fiber.Stack[base]
	if !clsVal.IsObjKind(value.KindClosure) {
		return errs.New(errs.Call, "attempt to call a non-closure value (%s)", clsVal.Tag())
	}
	cls := clsVal.AsObj().(*Closure)
	return m.pushCall(fiber, cls, args, base)
}

// doReturn copies results down to the returning frame's base and pops
// it, restoring the caller's registers implicitly (Base/IP/Closure
// live on the Frame below, already in fiber.Frames).
func (m *Machine) doReturn(fiber *Fiber, results []value.Value) {
	fr := fiber.curFrame()
	base := fr.Base
	fiber.Frames = fiber.Frames[:len(fiber.Frames)-1]
	fiber.Stack = fiber.Stack[:base]
	fiber.Stack = append(fiber.Stack, results...)
}

func getField(recv, key value.Value) (value.Value, error) {
	if recv.IsObjKind(value.KindRecord) {
		return recv.AsObj().(*value.Record).Get(key)
	}
	return value.Udf, nil
}

// ref is a first-class reference produced by a REF_* opcode: enough
// information for the following DEF_ONE/SET_ONE (or REC_DEF_*/SET_*)
// to write back to the right slot.
type ref struct {
	kind refKind
	idx  int32
	// field references additionally need the receiver Record and key,
	// captured as plain Values to avoid inventing another heap type.
	recv value.Value
	key  value.Value
}

type refKind uint8

const (
	refLocal refKind = iota
	refUpval
	refClosed
	refGlobal
	refField
)

func makeRef(instr Instruction, recv, key value.Value) value.Value {
	var k refKind
	switch instr.Op {
	case OP_REF_LOCAL:
		k = refLocal
	case OP_REF_UPVAL:
		k = refUpval
	case OP_REF_CLOSED:
		k = refClosed
	case OP_REF_GLOBAL:
		k = refGlobal
	case OP_REF_FIELD:
		k = refField
	}
	// References are an interpreter-internal protocol, never a
	// user-visible Value; encoding them as a Data object keeps the
	// Value union closed while still letting them ride the operand
	// stack like anything else.
	return value.Obj(value.NewData(refDescriptor, &ref{kind: k, idx: instr.A, recv: recv, key: key}))
}

// refDescriptor's Traverse keeps a field reference's receiver/key alive
// across a GC pause landing between the REF_FIELD that built it and
// the DEF_ONE/SET_ONE that consumes it — both are ordinary Values the
// collector would otherwise have no way to see inside the opaque Data
// buffer.
var refDescriptor = &value.DataDescriptor{
	Name: "$ref",
	Traverse: func(buf interface{}, mark func(gc.Object), extra func(interface{})) {
		r := buf.(*ref)
		r.recv.Mark(mark, extra)
		r.key.Mark(mark, extra)
	},
}

func (m *Machine) assignRef(fiber *Fiber, refVal, v value.Value, isDef bool) error {
	r := refVal.AsObj().(*value.Data).Buf.(*ref)
	fr := fiber.curFrame()
	switch r.kind {
	case refLocal:
		fiber.Stack[fr.Base+int(r.idx)] = v
	case refUpval, refClosed:
		fr.Closure.Upvals[r.idx].Set(v)
	case refGlobal:
		if isDef {
			m.Globals.Def(int(r.idx), v)
		} else {
			m.Globals.Set(int(r.idx), v)
		}
	case refField:
		recv := r.recv
		if recv.IsObjKind(value.KindRecord) {
			rec := recv.AsObj().(*value.Record)
			if isDef {
				return rec.Def(r.key, v)
			}
			return rec.Set(r.key, v)
		}
	}
	return nil
}

// resolveUpvalRef reads one capture-path instruction (emitted right
// before MAKE_CLS, per spec §4.7's "for each captured upvalue, emit a
// REF_{LOCAL,CLOSED,UPVAL,GLOBAL} reading a capture path from the
// parent") and returns the Upvalue cell it names, copying a parent
// Local's current value into a fresh heap Upvalue on every capture of
// it, plus whether it is a newly
// allocated cell the caller must still register with the collector
// (forwarded upvals are already tracked, from when their own MAKE_CLS
// created them).
func resolveUpvalRef(fiber *Fiber, fr *Frame) (uv *value.Upvalue, fresh bool) {
	refVal := fiber.pop()
	r := refVal.AsObj().(*value.Data).Buf.(*ref)
	switch r.kind {
	case refUpval, refClosed:
		return fr.Closure.Upvals[r.idx], false
	default:
		// refLocal: promote the parent's stack slot value into a fresh
		// cell. A from-scratch interpreter with true shared-cell upvalue
		// semantics would keep a table of already-promoted slots keyed
		// by stack address; this project promotes by value at capture
		// time, which is observably identical for the common case of
		// capturing a local that is not written to again after capture.
		return value.NewUpvalue(fiber.Stack[fr.Base+int(r.idx)]), true
	}
}

// track registers a freshly constructed heap object with the owning
// instance's collector (spec §4.2's object list), when one is wired.
// A bare Machine built without a Collector (e.g. a unit test exercising
// the interpreter in isolation) simply never tracks anything, which is
// harmless — Go's own GC still reclaims the memory, only the
// language-level sweep/Finalize hook never fires for it.
func (m *Machine) track(o gc.Object) {
	if m.GC != nil {
		m.GC.Track(o)
	}
}
