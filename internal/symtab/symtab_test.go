// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package symtab

import "testing"

func TestShortSymbolsPackWithoutTableEntry(t *testing.T) {
	tab := New()
	s := tab.InternString("abc")
	if tab.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 (short symbols never touch the table)", tab.Len())
	}
	if string(tab.Bytes(s)) != "abc" {
		t.Fatalf("Bytes() = %q, want abc", tab.Bytes(s))
	}
}

func TestLongSymbolsInternAndDedup(t *testing.T) {
	tab := New()
	a := tab.InternString("a-rather-long-symbol-name")
	b := tab.InternString("a-rather-long-symbol-name")
	if a != b {
		t.Fatal("identical long symbols must intern to the same Symbol")
	}
	if tab.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tab.Len())
	}
}

func TestFinishFullCycleFreesUnmarked(t *testing.T) {
	tab := New()
	keep := tab.InternString("keep-this-long-symbol")
	drop := tab.InternString("drop-this-long-symbol")

	tab.Mark(keep)
	tab.FinishFullCycle()

	if tab.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after sweeping the unmarked symbol", tab.Len())
	}
	if string(tab.Bytes(drop)) != "" {
		t.Fatal("swept symbol's bytes should no longer resolve")
	}
	if string(tab.Bytes(keep)) != "keep-this-long-symbol" {
		t.Fatal("marked symbol must survive FinishFullCycle")
	}
}

func TestHashStableAndContentAddressed(t *testing.T) {
	tab := New()
	short := tab.InternString("hi")
	long := tab.InternString("a-rather-long-symbol-name")
	if tab.Hash(short) != tab.Hash(short) {
		t.Fatal("Hash must be stable across calls")
	}
	if tab.Hash(long) == 0 {
		t.Fatal("Hash of a real symbol should not be zero")
	}
}

func TestHashSHA3StableAndDiffersFromFNV(t *testing.T) {
	tab := New()
	tab.UseSHA3 = true
	s := tab.InternString("hash-me-with-sha3")
	if tab.Hash(s) != tab.Hash(s) {
		t.Fatal("SHA3-backed Hash must be stable across calls")
	}

	fnvTab := New()
	fnvSym := fnvTab.InternString("hash-me-with-sha3")
	if tab.Hash(s) == fnvTab.Hash(fnvSym) {
		t.Fatal("SHA3 and FNV hashes of the same content should not coincide")
	}
}
