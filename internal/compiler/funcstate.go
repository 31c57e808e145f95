// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler

import (
	"encoding/binary"
	"math"

	"github.com/loom-lang/loom/internal/errs"
	"github.com/loom-lang/loom/internal/symtab"
	"github.com/loom-lang/loom/internal/value"
	"github.com/loom-lang/loom/internal/vm"
)

// localVar is one entry in a funcState's lexically-scoped local table
// (spec §4.7: "slots are allocated in three namespaces per function
// (locals, upvals, labels) via symbol tables that honor lexical
// scoping with PC-anchored open/close scopes").
type localVar struct {
	name  string
	slot  int32
	depth int
}

// upvalEntry records one already-resolved upvalue capture, keyed by
// name so a second reference to the same outer variable within one
// function reuses the same upvalue slot.
type upvalEntry struct {
	name string
	desc vm.UpvalDesc
}

// sigEntry is one `when`-declared signal handler visible to `sig`
// invocations lexically nested under it (spec §4.10).
type sigEntry struct {
	name       string
	paramSlots []int32
	label      int32
}

// funcState is the compiler's per-function accumulator: its emerging
// Function object, its variable-resolution tables, and the signal
// handlers currently in lexical scope.
type funcState struct {
	parent *funcState

	fn *vm.Function

	isGlobalScope bool // depth-0 `def` binds a global rather than a local

	locals     []localVar
	scopeDepth int

	upvals []upvalEntry

	constKeys map[string]int32

	sigs []sigEntry

	// recProtoKeys parallels fn.RecProtos: the ordered key-name shape
	// each prototype Index was built from, so a second record literal
	// with the identical static shape reuses the same prototype
	// instead of registering a duplicate (spec §8 scenario 3).
	recProtoKeys [][]string
}

func newFuncState(parent *funcState, name string, globalScope bool) *funcState {
	return &funcState{
		parent:        parent,
		fn:            &vm.Function{Name: name},
		isGlobalScope: globalScope,
		constKeys:     make(map[string]int32),
	}
}

func (fs *funcState) emit(op vm.Op, a ...int32) int32 {
	var operandA, operandB int32
	if len(a) > 0 {
		operandA = a[0]
	}
	if len(a) > 1 {
		operandB = a[1]
	}
	pc := int32(len(fs.fn.Code))
	fs.fn.Code = append(fs.fn.Code, vm.Instruction{Op: op, A: operandA, B: operandB})
	return pc
}

// recProto registers (or reuses, if this funcState already compiled a
// record literal with the identical ordered key shape) a prototype
// Index for a statically-keyed record literal, returning its index
// into fn.RecProtos. keys is empty for a literal whose fields are all
// syntactically absent (the `{}` empty-record literal); such literals
// still get a proto so repeated evaluation shares one empty Index.
func (fs *funcState) recProto(keys []string, syms *symtab.Table) int32 {
	for i, existing := range fs.recProtoKeys {
		if len(existing) == len(keys) {
			match := true
			for j := range keys {
				if existing[j] != keys[j] {
					match = false
					break
				}
			}
			if match {
				return int32(i)
			}
		}
	}
	idx := value.NewIndex(syms)
	for _, k := range keys {
		idx.AddByKey(value.Sym(syms.InternString(k)))
	}
	fs.fn.RecProtos = append(fs.fn.RecProtos, idx)
	fs.recProtoKeys = append(fs.recProtoKeys, append([]string(nil), keys...))
	return int32(len(fs.fn.RecProtos) - 1)
}

// emitJump appends a control instruction whose operand will be
// backpatched once the jump target is known.
func (fs *funcState) emitJump(op vm.Op) int32 { return fs.emit(op) }

// patchJump sets instr's operand to the current PC, the standard
// "jump to here" backpatch used by if/when/short-circuit codegen.
func (fs *funcState) patchJump(pc int32) { fs.patchTo(pc, int32(len(fs.fn.Code))) }

func (fs *funcState) patchTo(pc, target int32) { fs.fn.Code[pc].A = target }

func (fs *funcState) here() int32 { return int32(len(fs.fn.Code)) }

// openScope begins a new lexical scope (spec §4.7's "PC-anchored
// open/close scopes").
func (fs *funcState) openScope() { fs.scopeDepth++ }

// closeScope discards locals declared since the matching openScope.
// Their stack slots remain part of NumLocals (slots are never reused
// across sibling scopes, trading a larger frame for simplicity).
func (fs *funcState) closeScope() {
	fs.scopeDepth--
	n := len(fs.locals)
	for n > 0 && fs.locals[n-1].depth > fs.scopeDepth {
		n--
	}
	fs.locals = fs.locals[:n]
}

// declareLocal allocates a fresh local slot in the current scope.
func (fs *funcState) declareLocal(name string) int32 {
	slot := int32(fs.fn.NumLocals)
	fs.fn.NumLocals++
	fs.locals = append(fs.locals, localVar{name: name, slot: slot, depth: fs.scopeDepth})
	return slot
}

// findLocal searches this function's own locals only, innermost scope
// first (spec §4.7 step 1: "lcls of current scope (innermost out)").
func (fs *funcState) findLocal(name string) (int32, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return fs.locals[i].slot, true
		}
	}
	return 0, false
}

// findUpval returns an existing upvalue slot for name in fs, or
// allocates one by recursively resolving name in the parent function,
// promoting a parent Local to Closed on capture (spec §4.7 step 2).
func (fs *funcState) findUpval(name string) (int32, bool) {
	for i, u := range fs.upvals {
		if u.name == name {
			return int32(i), true
		}
	}
	if fs.parent == nil {
		return 0, false
	}
	if slot, ok := fs.parent.findLocal(name); ok {
		idx := int32(len(fs.upvals))
		fs.upvals = append(fs.upvals, upvalEntry{name: name, desc: vm.UpvalDesc{FromParentLocal: true, Index: int(slot)}})
		fs.fn.UpvalDesc = append(fs.fn.UpvalDesc, vm.UpvalDesc{FromParentLocal: true, Index: int(slot)})
		return idx, true
	}
	if pidx, ok := fs.parent.findUpval(name); ok {
		idx := int32(len(fs.upvals))
		fs.upvals = append(fs.upvals, upvalEntry{name: name, desc: vm.UpvalDesc{FromParentLocal: false, Index: int(pidx)}})
		fs.fn.UpvalDesc = append(fs.fn.UpvalDesc, vm.UpvalDesc{FromParentLocal: false, Index: int(pidx)})
		return idx, true
	}
	return 0, false
}

// constIndex interns v into the constant pool, deduplicating by a
// canonical byte key (spec §4.7: "value.tag ‖ value.payload, or the
// literal bytes for short strings").
func (fs *funcState) constIndex(key string, v value.Value) int32 {
	if i, ok := fs.constKeys[key]; ok {
		return i
	}
	i := int32(len(fs.fn.Consts))
	fs.fn.Consts = append(fs.fn.Consts, v)
	fs.constKeys[key] = i
	return i
}

func constKeyInt(n int64) string {
	var b [9]byte
	b[0] = 'i'
	binary.BigEndian.PutUint64(b[1:], uint64(n))
	return string(b[:])
}

func constKeyDec(f float64) string {
	var b [9]byte
	b[0] = 'd'
	binary.BigEndian.PutUint64(b[1:], math.Float64bits(f))
	return string(b[:])
}

func constKeyStr(tag byte, s string) string { return string(tag) + s }

func (fs *funcState) finish() *vm.Function {
	return fs.fn
}

// addFuncConst appends a nested closure's Function to the constant
// pool without deduplication: each closure literal compiles a distinct
// Function even if byte-identical to a sibling, since constant dedup
// is keyed on value identity for everything else but a Function has no
// meaningful "canonical payload" short of its full code body.
func (fs *funcState) addFuncConst(fn *vm.Function) int32 {
	i := int32(len(fs.fn.Consts))
	fs.fn.Consts = append(fs.fn.Consts, value.Obj(fn))
	return i
}

func (c *Compiler) symConst(name string) int32 {
	sym := value.Sym(c.syms.InternString(name))
	return c.fs.constIndex(constKeyStr('y', name), sym)
}

func (c *Compiler) intConst(n int64) int32 {
	return c.fs.constIndex(constKeyInt(n), value.Int(n))
}

func (c *Compiler) decConst(f float64) int32 {
	return c.fs.constIndex(constKeyDec(f), value.Dec(f))
}

func (c *Compiler) strConst(s string) int32 {
	return c.fs.constIndex(constKeyStr('s', s), value.Obj(value.NewStringFrom(s)))
}

// refOpFor reports which REF_* opcode resolveVar's answer maps to.
func refOpFor(kind varKind) vm.Op {
	switch kind {
	case varLocal:
		return vm.OP_REF_LOCAL
	case varUpval:
		return vm.OP_REF_UPVAL
	case varClosed:
		return vm.OP_REF_CLOSED
	default:
		return vm.OP_REF_GLOBAL
	}
}

func getOpFor(kind varKind) vm.Op {
	switch kind {
	case varLocal:
		return vm.OP_GET_LOCAL
	case varUpval:
		return vm.OP_GET_UPVAL
	case varClosed:
		return vm.OP_GET_CLOSED
	default:
		return vm.OP_GET_GLOBAL
	}
}

type varKind uint8

const (
	varLocal varKind = iota
	varUpval
	varClosed
	varGlobal
)

// resolveVar implements spec §4.7's variable-resolution algorithm for
// a read or reference in an expression context (not a declaration).
func (c *Compiler) resolveVar(name string) (varKind, int32) {
	if slot, ok := c.fs.findLocal(name); ok {
		return varLocal, slot
	}
	if c.fs.parent == nil {
		sym := c.syms.InternString(name)
		return varGlobal, int32(c.globals.Slot(sym))
	}
	if idx, ok := c.fs.findUpval(name); ok {
		if c.fs.upvals[idx].desc.FromParentLocal {
			return varClosed, idx
		}
		return varUpval, idx
	}
	sym := c.syms.InternString(name)
	return varGlobal, int32(c.globals.Slot(sym))
}

// declareVar implements a `def` destination name: inside a non-global
// scope it allocates a fresh local (shadowing any outer binding of the
// same name); at the outermost scope of a unit compiled with
// ScopeGlobal it resolves (and lazily allocates) a global slot instead.
func (c *Compiler) declareVar(name string) (varKind, int32) {
	if c.fs.isGlobalScope && c.fs.scopeDepth == 0 {
		sym := c.syms.InternString(name)
		return varGlobal, int32(c.globals.Slot(sym))
	}
	slot := c.fs.declareLocal(name)
	return varLocal, slot
}

func must(ok bool, kind errs.Kind, msg string) {
	if !ok {
		errs.Throw(kind, "%s", msg)
	}
}
