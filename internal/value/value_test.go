// Copyright 2024 The Loom Authors
// This file is part of Loom.

package value

import (
	"testing"

	"github.com/loom-lang/loom/internal/symtab"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Nil, false},
		{Udf, false},
		{Bool(false), false},
		{Bool(true), true},
		{Int(0), true},
		{Dec(0.0), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v.Tag(), got, c.want)
		}
	}
}

func TestIntDecNeverEqual(t *testing.T) {
	syms := symtab.New()
	if Equal(Int(1), Dec(1.0), syms) {
		t.Fatal("Int(1) must never equal Dec(1.0)")
	}
}

func TestDecBitwiseEquality(t *testing.T) {
	syms := symtab.New()
	if !Equal(Dec(1.5), Dec(1.5), syms) {
		t.Fatal("equal floats must compare equal")
	}
	// Distinct bit patterns (here: +0.0 vs -0.0) are not structurally
	// equal even though IEEE == would say they are.
	pos := Dec(0.0)
	neg := Dec(-0.0)
	if Equal(pos, neg, syms) {
		t.Fatal("+0.0 and -0.0 have distinct bit patterns and must not compare equal")
	}
}

func TestSymEquality(t *testing.T) {
	syms := symtab.New()
	a := Sym(syms.InternString("hello"))
	b := Sym(syms.InternString("hello"))
	if !Equal(a, b, syms) {
		t.Fatal("equal symbol content must compare equal")
	}
}

func TestStringStructuralEquality(t *testing.T) {
	syms := symtab.New()
	a := Obj(NewStringFrom("abc"))
	b := Obj(NewStringFrom("abc"))
	if a.AsObj() == b.AsObj() {
		t.Fatal("test setup: expected distinct String objects")
	}
	if !Equal(a, b, syms) {
		t.Fatal("strings with equal content must compare equal")
	}
}

func TestIsStorableRejectsTup(t *testing.T) {
	if Tup(2).IsStorable() {
		t.Fatal("a tuple header must never be storable")
	}
	if !Int(1).IsStorable() {
		t.Fatal("an Int value must be storable")
	}
}
