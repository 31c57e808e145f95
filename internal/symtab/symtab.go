// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package symtab interns short byte strings into compact Symbol values.
//
// Two encodings coexist in a single 64-bit word, mirroring the
// reference's short-symbol trick (original_source/core/ten_sym.c):
// sequences of up to 5 bytes pack directly into the value with no table
// entry at all, while anything longer is interned in a hash table and
// referenced by a dense id. Equality for both forms reduces to plain
// uint64 equality, satisfying spec §3.1's "two symbols compare equal
// iff their payloads are bitwise equal".
package symtab

import (
	"hash/fnv"

	"golang.org/x/crypto/sha3"
)

// Symbol is a compact interned-string identifier.
type Symbol uint64

const (
	shortFlag  = uint64(1) << 63
	lenShift   = 56
	lenMask    = uint64(0x7) << lenShift
	maxShort   = 5
)

// packShort encodes b (len(b) <= maxShort) directly into a Symbol.
func packShort(b []byte) Symbol {
	v := shortFlag | (uint64(len(b)) << lenShift)
	for i, c := range b {
		v |= uint64(c) << (uint(i) * 8)
	}
	return Symbol(v)
}

func isShort(s Symbol) bool { return uint64(s)&shortFlag != 0 }

func shortBytes(s Symbol) []byte {
	n := (uint64(s) & lenMask) >> lenShift
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(uint64(s) >> (uint(i) * 8))
	}
	return out
}

// entry is one interned long-symbol record.
type entry struct {
	bytes []byte
	marked bool
	live  bool
}

// Table interns byte sequences longer than the short-symbol inline
// limit. The zero value is not usable; use New.
type Table struct {
	byBytes map[string]uint32
	entries []entry
	free    []uint32

	// UseSHA3 switches Hash from the default FNV-1a to SHA3-256 folded
	// into 64 bits. FNV is cheaper and is the table's default; SHA3 is
	// offered for embedders that intern attacker-influenced symbol
	// content and want a hash with better collision resistance than FNV
	// gives.
	UseSHA3 bool
}

// New creates an empty symbol table.
func New() *Table {
	return &Table{byBytes: make(map[string]uint32)}
}

// Intern returns the Symbol for b, packing it inline when short enough
// and otherwise deduplicating it through the hash table.
func (t *Table) Intern(b []byte) Symbol {
	if len(b) <= maxShort {
		return packShort(b)
	}
	key := string(b)
	if id, ok := t.byBytes[key]; ok {
		return Symbol(id)
	}
	var id uint32
	if n := len(t.free); n > 0 {
		id = t.free[n-1]
		t.free = t.free[:n-1]
		t.entries[id] = entry{bytes: append([]byte(nil), b...), live: true}
	} else {
		id = uint32(len(t.entries))
		t.entries = append(t.entries, entry{bytes: append([]byte(nil), b...), live: true})
	}
	t.byBytes[key] = id
	return Symbol(id)
}

// InternString is a convenience wrapper around Intern.
func (t *Table) InternString(s string) Symbol {
	return t.Intern([]byte(s))
}

// Bytes returns the byte content referenced by sym.
func (t *Table) Bytes(sym Symbol) []byte {
	if isShort(sym) {
		return shortBytes(sym)
	}
	id := uint32(sym)
	if int(id) >= len(t.entries) || !t.entries[id].live {
		return nil
	}
	return t.entries[id].bytes
}

// String is a convenience wrapper around Bytes.
func (t *Table) String(sym Symbol) string {
	return string(t.Bytes(sym))
}

// Hash returns a stable hash of sym's *content*, never of its encoded
// form, so that a short-packed symbol and a (hypothetically) table-
// interned symbol with identical bytes would hash identically. Uses
// FNV-1a by default, or SHA3-256 (folded to 64 bits by xor-ing its four
// 8-byte lanes) when UseSHA3 is set.
func (t *Table) Hash(sym Symbol) uint64 {
	b := t.Bytes(sym)
	if t.UseSHA3 {
		return hashSHA3(b)
	}
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}

func hashSHA3(b []byte) uint64 {
	sum := sha3.Sum256(b)
	var out uint64
	for i := 0; i < len(sum); i += 8 {
		var lane uint64
		for j := 0; j < 8; j++ {
			lane = lane<<8 | uint64(sum[i+j])
		}
		out ^= lane
	}
	return out
}

// Mark marks sym as reachable ahead of a full GC cycle's sweep. It is a
// no-op for short symbols, which are never table-allocated.
func (t *Table) Mark(sym Symbol) {
	if isShort(sym) {
		return
	}
	id := uint32(sym)
	if int(id) < len(t.entries) {
		t.entries[id].marked = true
	}
}

// FinishFullCycle frees every interned entry that was not Mark'd since
// the previous call, per spec §4.3/§4.2 step 5 (full-cycle symbol
// sweep), and clears marks on survivors.
func (t *Table) FinishFullCycle() {
	for id := range t.entries {
		e := &t.entries[id]
		if !e.live {
			continue
		}
		if !e.marked {
			delete(t.byBytes, string(e.bytes))
			e.bytes = nil
			e.live = false
			t.free = append(t.free, uint32(id))
			continue
		}
		e.marked = false
	}
}

// Len reports the number of long symbols currently interned (excludes
// short, inline-packed symbols, which are never counted).
func (t *Table) Len() int {
	n := 0
	for _, e := range t.entries {
		if e.live {
			n++
		}
	}
	return n
}
