// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler

import (
	"github.com/loom-lang/loom/internal/token"
	"github.com/loom-lang/loom/internal/vm"
)

// parseAssign implements `assign := ('def' | 'set') dstpattern ':'
// expr` (spec §4.7). `def` introduces a binding (a fresh local/global
// slot, or a fresh record field); `set` requires one that already
// exists, enforced at runtime by SET_ONE/SET_TUP/.../REC_SET_ONE.
func (c *Compiler) parseAssign() {
	isDef := c.cur.Type == token.KW_DEF
	c.advance()

	switch c.cur.Type {
	case token.LPAREN:
		c.parseTuplePattern(isDef)
	case token.LBRACE:
		c.parseRecordPattern(isDef)
	case token.IDENT:
		c.parsePathOrNamePattern(isDef)
	default:
		c.errf("expected an assignment destination, got %s", c.cur.Type)
	}
}

// parsePathOrNamePattern handles the common case: a bare name (`def
// x: ...`) or a field path (`def r.x: ...`, `def r@k: ...`). A field
// path ending in a tuple or record pattern (`def r.(a, b): ...`) is not
// accepted: every '.' must be followed by an identifier, so the loop's
// LPAREN/LBRACE cases are never reached.
func (c *Compiler) parsePathOrNamePattern(isDef bool) {
	name := c.expect(token.IDENT).Literal

	// A bare name with no following '.'/'@' is a plain variable target.
	if c.cur.Type != token.DOT && c.cur.Type != token.AT {
		var kind varKind
		var slot int32
		if isDef {
			kind, slot = c.declareVar(name)
		} else {
			kind, slot = c.resolveVar(name)
		}
		c.fs.emit(refOpFor(kind), slot)
		c.expect(token.COLON)
		c.parseExpr(false)
		c.emitDefOrSet(isDef)
		return
	}

	// A field path: compile the receiver chain, stopping one step
	// short of the terminal field/pattern so the mutation opcodes can
	// see the receiver.
	kind, slot := c.resolveVar(name)
	c.fs.emit(getOpFor(kind), slot)
	for {
		switch c.cur.Type {
		case token.DOT:
			c.advance()
			field := c.expect(token.IDENT).Literal
			if c.cur.Type == token.DOT || c.cur.Type == token.AT {
				c.fs.emit(vm.OP_GET_CONST, c.symConst(field))
				c.fs.emit(vm.OP_GET_FIELD)
				continue
			}
			c.fs.emit(vm.OP_GET_CONST, c.symConst(field))
			c.expect(token.COLON)
			c.parseExpr(false)
			c.emitRecDefOrSet(isDef)
			return
		case token.AT:
			c.advance()
			c.parsePrimary()
			if c.cur.Type == token.DOT || c.cur.Type == token.AT {
				c.fs.emit(vm.OP_GET_FIELD)
				continue
			}
			c.expect(token.COLON)
			c.parseExpr(false)
			c.emitRecDefOrSet(isDef)
			return
		case token.LPAREN:
			c.parseFieldTuplePattern(isDef)
			return
		case token.LBRACE:
			c.parseFieldRecordPattern(isDef)
			return
		default:
			c.errf("expected a field-path terminal, got %s", c.cur.Type)
		}
	}
}

func (c *Compiler) emitDefOrSet(isDef bool) {
	if isDef {
		c.fs.emit(vm.OP_DEF_ONE)
	} else {
		c.fs.emit(vm.OP_SET_ONE)
	}
}

func (c *Compiler) emitRecDefOrSet(isDef bool) {
	if isDef {
		c.fs.emit(vm.OP_REC_DEF_ONE)
	} else {
		c.fs.emit(vm.OP_REC_SET_ONE)
	}
}

// patternRef parses one destructuring-pattern binder (for tuple or
// record patterns): a bare identifier, producing its REF_* opcode.
func (c *Compiler) patternRef(isDef bool) {
	name := c.expect(token.IDENT).Literal
	var kind varKind
	var slot int32
	if isDef {
		kind, slot = c.declareVar(name)
	} else {
		kind, slot = c.resolveVar(name)
	}
	c.fs.emit(refOpFor(kind), slot)
}

// parseTuplePattern implements the variable-tuple destination form
// `(x, y, ...rest): expr`.
func (c *Compiler) parseTuplePattern(isDef bool) {
	c.expect(token.LPAREN)
	n := int32(0)
	variadic := false
	for c.cur.Type != token.RPAREN {
		if c.cur.Type == token.DOTDOT {
			c.advance()
			c.patternRef(isDef)
			n++
			variadic = true
			break
		}
		c.patternRef(isDef)
		n++
		if c.cur.Type == token.COMMA {
			c.advance()
		} else {
			break
		}
	}
	c.expect(token.RPAREN)
	c.expect(token.COLON)
	c.parseExpr(false)
	c.emitDestructureTup(isDef, variadic, n)
}

func (c *Compiler) emitDestructureTup(isDef, variadic bool, n int32) {
	switch {
	case isDef && variadic:
		c.fs.emit(vm.OP_DEF_VTUP, n)
	case isDef:
		c.fs.emit(vm.OP_DEF_TUP, n)
	case variadic:
		c.fs.emit(vm.OP_SET_VTUP, n)
	default:
		c.fs.emit(vm.OP_SET_TUP, n)
	}
}

// parseRecordPattern implements the variable-record destination form
// `{x: key1, y: key2, ...rest}: expr`.
func (c *Compiler) parseRecordPattern(isDef bool) {
	c.expect(token.LBRACE)
	n := int32(0)
	variadic := false
	for c.cur.Type != token.RBRACE {
		if c.cur.Type == token.DOTDOT {
			c.advance()
			c.patternRef(isDef)
			variadic = true
			break
		}
		c.patternRef(isDef)
		c.expect(token.COLON)
		c.parseFieldKey()
		n++
		if c.cur.Type == token.COMMA {
			c.advance()
		} else {
			break
		}
	}
	c.expect(token.RBRACE)
	c.expect(token.COLON)
	c.parseExpr(false)
	c.emitDestructureRec(isDef, variadic, n)
}

func (c *Compiler) emitDestructureRec(isDef, variadic bool, n int32) {
	switch {
	case isDef && variadic:
		c.fs.emit(vm.OP_DEF_VREC, n)
	case isDef:
		c.fs.emit(vm.OP_DEF_REC, n)
	case variadic:
		c.fs.emit(vm.OP_SET_VREC, n)
	default:
		c.fs.emit(vm.OP_SET_REC, n)
	}
}

// parseFieldTuplePattern and parseFieldRecordPattern lower a
// record-field destructuring target (e.g. `def rec.(a, b): (1, 2)`)
// into a temporary-local destructure followed by per-field
// REC_DEF_ONE/REC_SET_ONE writes, since the bulk REC_DEF_TUP/REC_REC
// opcode family is reserved but never emitted (see internal/vm's
// step(), which rejects them outright). The receiver is already on the
// stack when these are called. parsePathOrNamePattern never reaches
// either function, so no script compiles through this lowering.
func (c *Compiler) parseFieldTuplePattern(isDef bool) {
	recvLocal := c.fs.declareLocal("$recv")
	c.fs.emit(vm.OP_REF_LOCAL, recvLocal)
	c.fs.emit(vm.OP_DEF_ONE)

	c.expect(token.LPAREN)
	var names []string
	variadic := false
	for c.cur.Type != token.RPAREN {
		if c.cur.Type == token.DOTDOT {
			c.advance()
			names = append(names, c.expect(token.IDENT).Literal)
			variadic = true
			break
		}
		names = append(names, c.expect(token.IDENT).Literal)
		if c.cur.Type == token.COMMA {
			c.advance()
		} else {
			break
		}
	}
	c.expect(token.RPAREN)
	c.expect(token.COLON)

	tmpSlots := make([]int32, len(names))
	for i := range names {
		tmpSlots[i] = c.fs.declareLocal("$" + names[i])
		c.fs.emit(vm.OP_REF_LOCAL, tmpSlots[i])
	}
	c.parseExpr(false)
	c.emitDestructureTup(true, variadic, int32(len(names)))

	for i, name := range names {
		c.fs.emit(vm.OP_GET_LOCAL, recvLocal)
		c.fs.emit(vm.OP_GET_CONST, c.symConst(name))
		c.fs.emit(vm.OP_GET_LOCAL, tmpSlots[i])
		c.emitRecDefOrSet(isDef)
	}
}

// parseFieldRecordPattern lowers `rec.{a, b, ...rest}: srcExpr` — a
// record-field destructuring target naming each field to both read
// from srcExpr and write back to the receiver under the same key, the
// shorthand case of the record pattern (no `name: key` remapping,
// unlike the plain variable-record pattern in parseRecordPattern).
func (c *Compiler) parseFieldRecordPattern(isDef bool) {
	recvLocal := c.fs.declareLocal("$recv")
	c.fs.emit(vm.OP_REF_LOCAL, recvLocal)
	c.fs.emit(vm.OP_DEF_ONE)

	c.expect(token.LBRACE)
	var names []string
	variadic := false
	for c.cur.Type != token.RBRACE {
		if c.cur.Type == token.DOTDOT {
			c.advance()
			names = append(names, c.expect(token.IDENT).Literal)
			variadic = true
			break
		}
		names = append(names, c.expect(token.IDENT).Literal)
		if c.cur.Type == token.COMMA {
			c.advance()
		} else {
			break
		}
	}
	c.expect(token.RBRACE)
	c.expect(token.COLON)

	named := len(names)
	if variadic {
		named--
	}
	tmpSlots := make([]int32, len(names))
	for i, name := range names {
		tmpSlots[i] = c.fs.declareLocal("$" + name)
		c.fs.emit(vm.OP_REF_LOCAL, tmpSlots[i])
		if i < named {
			c.fs.emit(vm.OP_GET_CONST, c.symConst(name))
		}
	}
	c.parseExpr(false)
	c.emitDestructureRec(true, variadic, int32(named))

	for i, name := range names {
		c.fs.emit(vm.OP_GET_LOCAL, recvLocal)
		c.fs.emit(vm.OP_GET_CONST, c.symConst(name))
		c.fs.emit(vm.OP_GET_LOCAL, tmpSlots[i])
		c.emitRecDefOrSet(isDef)
	}
}
