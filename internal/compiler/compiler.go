// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package compiler implements the single-pass, recursive-descent
// lexer-consuming compiler of spec §4.7: it fuses parsing and code
// generation into one pass over the token stream, never materializing
// an AST, and hands back a ready-to-call *vm.Function.
package compiler

import (
	"fmt"

	"github.com/loom-lang/loom/internal/env"
	"github.com/loom-lang/loom/internal/errs"
	"github.com/loom-lang/loom/internal/lexer"
	"github.com/loom-lang/loom/internal/symtab"
	"github.com/loom-lang/loom/internal/token"
	"github.com/loom-lang/loom/internal/vm"
)

// Scope selects where a compiled unit's top-level variables resolve
// (spec §6.1's Local/Global compile modes).
type Scope int

const (
	// ScopeLocal treats the compiled unit's top level as a fresh
	// function body: bare `def`s at depth 0 create locals.
	ScopeLocal Scope = iota
	// ScopeGlobal treats depth-0 `def`s as globals, shared across every
	// unit compiled into the same instance.
	ScopeGlobal
)

// Compiler drives one compilation: a Lexer feeding a one-token
// lookahead parser that emits directly into the current funcState's
// instruction stream.
type Compiler struct {
	unit string
	lx   *lexer.Lexer
	cur  token.Token

	syms    *symtab.Table
	globals *env.Env

	fs *funcState
}

// Compile compiles src as a single top-level function (arity 0 and not
// variadic, so it accepts no arguments) under the given Scope,
// returning the Function a Closure can wrap and call.
func Compile(src lexer.Source, unit string, scope Scope, syms *symtab.Table, globals *env.Env) (fn *vm.Function, err error) {
	c := &Compiler{unit: unit, lx: lexer.New(src), syms: syms, globals: globals}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*errs.Error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	c.advance()
	c.fs = newFuncState(nil, unit, scope == ScopeGlobal)

	result := c.parseTopLevelBody()
	c.fs.emit(vm.OP_RETURN, int32(len(result)))
	if c.cur.Type != token.EOF {
		c.errf("unexpected trailing token %s", c.cur.Type)
	}
	return c.fs.finish(), nil
}

// parseTopLevelBody parses a `;`-separated sequence of expressions,
// popping every result but the last, mirroring how a do-expr's body is
// compiled (spec §4.7's do-expr shares the same "statement list plus
// final result" shape as a whole compiled unit).
func (c *Compiler) parseTopLevelBody() []int32 {
	if c.cur.Type == token.EOF {
		c.fs.emit(vm.OP_LOAD_NIL)
		return []int32{1}
	}
	for {
		c.parseExpr(false)
		if c.cur.Type != token.SEMI {
			break
		}
		c.fs.emit(vm.OP_POP)
		c.advance()
		if c.cur.Type == token.EOF {
			c.fs.emit(vm.OP_LOAD_NIL)
			break
		}
	}
	return []int32{1}
}

func (c *Compiler) advance() { c.cur = c.lx.NextToken() }

func (c *Compiler) expect(t token.Type) token.Token {
	if c.cur.Type != t {
		c.errf("expected %s, got %s", t, c.cur.Type)
	}
	tk := c.cur
	c.advance()
	return tk
}

func (c *Compiler) errf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	errs.Throw(errs.Syntax, "%s:%d:%d: %s", c.unit, c.cur.Pos.Line, c.cur.Pos.Column, msg)
}

// startsPrimary reports whether t can begin a primary expression —
// used both by the generic parser and by call-argument juxtaposition
// (spec §4.7: "call := path path*") to decide whether the next token
// continues the current call's argument list.
func startsPrimary(t token.Type) bool {
	switch t {
	case token.IDENT, token.INT, token.DEC, token.SYM, token.STR,
		token.LPAREN, token.LBRACE, token.LBRACKET,
		token.KW_DO, token.KW_IF, token.KW_WHEN,
		token.KW_TRUE, token.KW_FALSE, token.KW_NIL, token.KW_UDF:
		return true
	default:
		return false
	}
}
