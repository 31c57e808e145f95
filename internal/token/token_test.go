// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package token

import "testing"

func TestLookupIdentClassifiesKeywords(t *testing.T) {
	if got := LookupIdent("def"); got != KW_DEF {
		t.Fatalf("LookupIdent(def) = %s, want %s", got, KW_DEF)
	}
	if got := LookupIdent("notakeyword"); got != IDENT {
		t.Fatalf("LookupIdent(notakeyword) = %s, want IDENT", got)
	}
}

func TestIsKeyword(t *testing.T) {
	if !KW_SIG.IsKeyword() {
		t.Fatal("KW_SIG should report as a keyword")
	}
	if IDENT.IsKeyword() {
		t.Fatal("IDENT must not report as a keyword")
	}
	if LPAREN.IsKeyword() {
		t.Fatal("LPAREN must not report as a keyword")
	}
}

func TestPositionString(t *testing.T) {
	p := Position{Name: "main.lm", Line: 3, Column: 5}
	if got, want := p.String(), "main.lm:3:5"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	anon := Position{Line: 1, Column: 1}
	if got, want := anon.String(), "1:1"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
