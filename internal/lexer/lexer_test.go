// Copyright 2024 The Loom Authors
// This file is part of Loom.

package lexer

import (
	"testing"

	"github.com/loom-lang/loom/internal/token"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	l := New(NewStringSource("test", src))
	var out []token.Token
	for {
		tk := l.NextToken()
		out = append(out, tk)
		if tk.Type == token.EOF {
			return out
		}
	}
}

func assertTypes(t *testing.T, toks []token.Token, want ...token.Type) {
	t.Helper()
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Fatalf("token %d: got %v, want %v (%v)", i, toks[i].Type, w, toks[i])
		}
	}
}

func TestIdentAndKeyword(t *testing.T) {
	toks := scanAll(t, "foo def nil")
	assertTypes(t, toks, token.IDENT, token.KW_DEF, token.KW_NIL, token.EOF)
}

func TestNumericUnderscoreAndDecimal(t *testing.T) {
	toks := scanAll(t, "1_000 3.14 1.")
	assertTypes(t, toks, token.INT, token.DEC, token.DEC, token.EOF)
	if toks[0].Literal != "1000" {
		t.Fatalf("underscore separators must be stripped, got %q", toks[0].Literal)
	}
}

func TestEllipsisVsDecimal(t *testing.T) {
	toks := scanAll(t, "1..2")
	assertTypes(t, toks, token.INT, token.DOTDOT, token.INT, token.EOF)
}

func TestBlockComment(t *testing.T) {
	toks := scanAll(t, "a `this is a comment` b")
	assertTypes(t, toks, token.IDENT, token.IDENT, token.EOF)
}

func TestBlockSymbolAndString(t *testing.T) {
	toks := scanAll(t, `'|a sym with spaces| "|a str with spaces|"`)
	assertTypes(t, toks, token.SYM, token.STR, token.EOF)
	if toks[0].Literal != "a sym with spaces" {
		t.Fatalf("got %q", toks[0].Literal)
	}
	if toks[1].Literal != "a str with spaces" {
		t.Fatalf("got %q", toks[1].Literal)
	}
}

func TestShortCircuitOperators(t *testing.T) {
	toks := scanAll(t, "&? |? !?")
	assertTypes(t, toks, token.ANDIF, token.ORIF, token.NOTIF, token.EOF)
}

func TestStringEscapes(t *testing.T) {
	toks := scanAll(t, `"a\nb"`)
	assertTypes(t, toks, token.STR, token.EOF)
	if toks[0].Literal != "a\nb" {
		t.Fatalf("got %q", toks[0].Literal)
	}
}
