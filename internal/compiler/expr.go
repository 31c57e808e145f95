// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler

import (
	"strconv"
	"strings"

	"github.com/loom-lang/loom/internal/token"
	"github.com/loom-lang/loom/internal/value"
	"github.com/loom-lang/loom/internal/vm"
)

// parseExpr is the expression entry point: `def`/`set` assignment
// forms are checked first since they aren't reachable from inside the
// precedence climb, then the short-circuit level is the loosest
// ordinary operator tier (spec §4.7).
//
// tail marks whether this expression occupies tail position (the
// final expression of a closure or do/if/when branch); no dedicated
// TAILCALL opcode exists — tail position only matters to a caller
// emitting a RETURN immediately after a CALL, which opCall/doReturn
// already runs in O(1) native stack regardless of how the call was
// reached, so tail is accepted for interface symmetry with
// do/if/when's own tail threading but does not change how a CALL here
// is emitted.
func (c *Compiler) parseExpr(tail bool) {
	switch c.cur.Type {
	case token.KW_DEF, token.KW_SET:
		c.parseAssign()
		return
	case token.KW_SIG:
		c.parseSigInvoke()
		return
	}
	c.parseShortCircuit()
}

func (c *Compiler) parseShortCircuit() {
	c.parseCompare()
	for {
		var op vm.Op
		switch c.cur.Type {
		case token.ANDIF:
			op = vm.OP_AND_JUMP
		case token.ORIF:
			op = vm.OP_OR_JUMP
		case token.NOTIF:
			op = vm.OP_UDF_JUMP
		default:
			return
		}
		c.advance()
		end := c.fs.emitJump(op)
		c.parseCompare()
		c.fs.patchJump(end)
	}
}

func (c *Compiler) parseCompare() {
	c.parseBitwise()
	for {
		var op vm.Op
		switch c.cur.Type {
		case token.LT:
			op = vm.OP_ILT
		case token.GT:
			op = vm.OP_IMT
		case token.LE:
			op = vm.OP_ILE
		case token.GE:
			op = vm.OP_IME
		case token.EQEQ:
			op = vm.OP_IET
		case token.NEQ:
			op = vm.OP_NET
		default:
			return
		}
		c.advance()
		c.parseBitwise()
		c.fs.emit(op)
	}
}

func (c *Compiler) parseBitwise() {
	c.parseShift()
	for {
		var op vm.Op
		switch c.cur.Type {
		case token.AMP:
			op = vm.OP_AND
		case token.BACKSLASH:
			op = vm.OP_XOR
		case token.PIPE:
			op = vm.OP_OR
		default:
			return
		}
		c.advance()
		c.parseShift()
		c.fs.emit(op)
	}
}

func (c *Compiler) parseShift() {
	c.parseAdd()
	for {
		var op vm.Op
		switch c.cur.Type {
		case token.SHL:
			op = vm.OP_LSL
		case token.SHR:
			op = vm.OP_LSR
		default:
			return
		}
		c.advance()
		c.parseAdd()
		c.fs.emit(op)
	}
}

func (c *Compiler) parseAdd() {
	c.parseMul()
	for {
		var op vm.Op
		switch c.cur.Type {
		case token.PLUS:
			op = vm.OP_ADD
		case token.MINUS:
			op = vm.OP_SUB
		default:
			return
		}
		c.advance()
		c.parseMul()
		c.fs.emit(op)
	}
}

func (c *Compiler) parseMul() {
	c.parseUnary()
	for {
		var op vm.Op
		switch c.cur.Type {
		case token.STAR:
			op = vm.OP_MUL
		case token.SLASH:
			op = vm.OP_DIV
		case token.PERCENT:
			op = vm.OP_MOD
		default:
			return
		}
		c.advance()
		c.parseUnary()
		c.fs.emit(op)
	}
}

// parseUnary handles the prefix operators `~ ! -` (FIX/NOT/NEG), which
// bind looser than `^` but tighter than the multiplicative tier (spec
// §4.7's precedence-climb order).
func (c *Compiler) parseUnary() {
	var op vm.Op
	switch c.cur.Type {
	case token.TILDE:
		op = vm.OP_FIX
	case token.BANG:
		op = vm.OP_NOT
	case token.MINUS:
		op = vm.OP_NEG
	default:
		c.parsePow()
		return
	}
	c.advance()
	c.parseUnary()
	c.fs.emit(op)
}

// parsePow handles right-associative `^`, the tightest binary tier.
func (c *Compiler) parsePow() {
	c.parseCallExpr()
	if c.cur.Type == token.CARET {
		c.advance()
		c.parseUnary()
		c.fs.emit(vm.OP_POW)
	}
}

// parseCallExpr implements `call := path path*`: juxtaposition of a
// callee path against zero or more trailing argument paths, each of
// which is itself parsed only as far as parsePath (not a full
// expression) so that `f a + b` means `(f a) + b`, not `f (a + b)`.
func (c *Compiler) parseCallExpr() {
	c.parsePath()
	argc := int32(0)
	for startsPrimary(c.cur.Type) {
		c.parsePath()
		argc++
	}
	if argc > 0 {
		c.fs.emit(vm.OP_CALL, argc)
	}
}

// parsePath implements `path := primary ('.' ident | '@' primary)*`.
func (c *Compiler) parsePath() {
	c.parsePrimary()
	for {
		switch c.cur.Type {
		case token.DOT:
			c.advance()
			name := c.expect(token.IDENT).Literal
			c.fs.emit(vm.OP_GET_CONST, c.symConst(name))
			c.fs.emit(vm.OP_GET_FIELD)
		case token.AT:
			c.advance()
			c.parsePrimary()
			c.fs.emit(vm.OP_GET_FIELD)
		default:
			return
		}
	}
}

// parsePrimary implements `primary := const | ident | tuple | record |
// closure | do-expr | if-expr | when-expr`.
func (c *Compiler) parsePrimary() {
	switch c.cur.Type {
	case token.INT:
		c.parseIntLit()
	case token.DEC:
		c.parseDecLit()
	case token.SYM:
		c.fs.emit(vm.OP_GET_CONST, c.symConst(c.cur.Literal))
		c.advance()
	case token.STR:
		c.fs.emit(vm.OP_GET_CONST, c.strConst(c.cur.Literal))
		c.advance()
	case token.KW_TRUE:
		c.fs.emit(vm.OP_LOAD_LOG, 1)
		c.advance()
	case token.KW_FALSE:
		c.fs.emit(vm.OP_LOAD_LOG, 0)
		c.advance()
	case token.KW_NIL:
		c.fs.emit(vm.OP_LOAD_NIL)
		c.advance()
	case token.KW_UDF:
		c.fs.emit(vm.OP_LOAD_UDF)
		c.advance()
	case token.IDENT:
		name := c.cur.Literal
		c.advance()
		kind, slot := c.resolveVar(name)
		c.fs.emit(getOpFor(kind), slot)
	case token.LPAREN:
		c.parseTupleOrGroup()
	case token.LBRACE:
		c.parseRecordLit()
	case token.LBRACKET:
		c.parseClosureLit()
	case token.KW_DO:
		c.parseDoExpr()
	case token.KW_IF:
		c.parseIfExpr()
	case token.KW_WHEN:
		c.parseWhenExpr()
	default:
		c.errf("unexpected token %s", c.cur.Type)
	}
}

func (c *Compiler) parseIntLit() {
	lit := c.cur.Literal
	c.advance()
	n, err := strconv.ParseInt(lit, 0, 64)
	if err != nil {
		c.errf("invalid integer literal %q", lit)
	}
	if n >= -(1<<31) && n <= (1<<31)-1 {
		c.fs.emit(vm.OP_LOAD_INT, int32(n))
		return
	}
	c.fs.emit(vm.OP_GET_CONST, c.intConst(n))
}

func (c *Compiler) parseDecLit() {
	lit := c.cur.Literal
	c.advance()
	if strings.HasSuffix(lit, ".") {
		lit += "0"
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		c.errf("invalid decimal literal %q", lit)
	}
	c.fs.emit(vm.OP_GET_CONST, c.decConst(f))
}

// parseTupleOrGroup parses a parenthesized expression list. A single
// element with no comma is plain grouping; otherwise a Tup value is
// built (spec §4.7's tuple primary), with an optional trailing
// `...expr` splicing another tuple's elements in (MAKE_VTUP).
func (c *Compiler) parseTupleOrGroup() {
	c.expect(token.LPAREN)
	if c.cur.Type == token.RPAREN {
		c.advance()
		c.fs.emit(vm.OP_MAKE_TUP, 0)
		return
	}
	n := int32(0)
	sawComma := false
	variadic := false
	for {
		if c.cur.Type == token.DOTDOT {
			c.advance()
			c.parseExpr(false)
			variadic = true
			break
		}
		c.parseExpr(false)
		n++
		if c.cur.Type != token.COMMA {
			break
		}
		sawComma = true
		c.advance()
		if c.cur.Type == token.RPAREN {
			break
		}
	}
	c.expect(token.RPAREN)
	if !sawComma && !variadic {
		return // plain grouping: the single expr's value is already on the stack
	}
	if variadic {
		c.fs.emit(vm.OP_MAKE_VTUP, n)
	} else {
		c.fs.emit(vm.OP_MAKE_TUP, n)
	}
}

// parseRecordLit parses `{k1: v1, k2: v2, ...splice}` (spec §4.7). When
// every key is statically known (a bare identifier or symbol, never a
// bracketed computed key), the literal's key shape is registered as a
// prototype Index (funcState.recProto) so every evaluation of this
// literal — and every other literal in the function with the identical
// ordered key set — builds a Record sharing one Index rather than
// hashing a fresh one (spec §4.5, §8 scenario 3).
func (c *Compiler) parseRecordLit() {
	c.expect(token.LBRACE)
	n := int32(0)
	variadic := false
	var staticKeys []string
	allStatic := true
	for c.cur.Type != token.RBRACE {
		if c.cur.Type == token.DOTDOT {
			c.advance()
			c.parseExpr(false)
			variadic = true
			break
		}
		keyName, static := c.parseFieldKey()
		c.expect(token.COLON)
		c.parseExpr(false)
		n++
		if static && allStatic {
			staticKeys = append(staticKeys, keyName)
		} else {
			allStatic = false
		}
		if c.cur.Type == token.COMMA {
			c.advance()
		} else {
			break
		}
	}
	c.expect(token.RBRACE)
	if variadic {
		c.fs.emit(vm.OP_MAKE_VREC, n)
		return
	}
	protoIdx := int32(-1)
	if allStatic {
		protoIdx = c.fs.recProto(staticKeys, c.syms)
	}
	c.fs.emit(vm.OP_MAKE_REC, n, protoIdx)
}

// parseFieldKey compiles a record-literal or destructuring key: a bare
// identifier or symbol names a Sym constant; anything else is a
// bracketed computed-key expression. It reports the key's literal name
// and whether it was statically known, so record-literal callers can
// decide whether the literal's shape is eligible for prototype sharing.
func (c *Compiler) parseFieldKey() (name string, static bool) {
	switch c.cur.Type {
	case token.IDENT:
		name = c.cur.Literal
		c.fs.emit(vm.OP_GET_CONST, c.symConst(c.cur.Literal))
		c.advance()
		return name, true
	case token.SYM:
		name = c.cur.Literal
		c.fs.emit(vm.OP_GET_CONST, c.symConst(c.cur.Literal))
		c.advance()
		return name, true
	case token.LBRACKET:
		c.advance()
		c.parseExpr(false)
		c.expect(token.RBRACKET)
		return "", false
	default:
		c.errf("expected a field key, got %s", c.cur.Type)
		return "", false
	}
}

// parseClosureLit parses `[p1, p2, ...]: body`, where the last
// parameter may carry a trailing `..` marking it variadic (spec §4.7,
// grounded in the original `parClosure`/`parParam` pair's bracketed
// parameter list and `..`-suffix variadic marker).
func (c *Compiler) parseClosureLit() {
	c.expect(token.LBRACKET)
	parent := c.fs
	c.fs = newFuncState(parent, parent.fn.Name+"$closure", false)

	for c.cur.Type != token.RBRACKET {
		name := c.expect(token.IDENT).Literal
		c.fs.declareLocal(name)
		c.fs.fn.Arity++
		if c.cur.Type == token.DOTDOT {
			c.advance()
			c.fs.fn.Variadic = true
			c.fs.fn.Arity--
		}
		if c.cur.Type == token.COMMA {
			c.advance()
		} else {
			break
		}
	}
	c.expect(token.RBRACKET)
	if c.cur.Type == token.COLON {
		c.advance()
	}

	c.parseExpr(true)
	c.fs.emit(vm.OP_RETURN, 1)

	childFn := c.fs.finish()
	if childFn.Variadic {
		childFn.VariadicIdx = value.NewIndex(c.syms)
	}
	upvals := c.fs.upvals
	c.fs = parent

	fnConst := c.fs.addFuncConst(childFn)
	c.fs.emit(vm.OP_GET_CONST, fnConst)
	for _, u := range upvals {
		if u.desc.FromParentLocal {
			c.fs.emit(vm.OP_REF_LOCAL, int32(u.desc.Index))
		} else {
			c.fs.emit(vm.OP_REF_UPVAL, int32(u.desc.Index))
		}
	}
	c.fs.emit(vm.OP_MAKE_CLS, int32(len(upvals)))
}
