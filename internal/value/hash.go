// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value

import (
	"hash/fnv"
	"math"
	"reflect"

	"github.com/loom-lang/loom/internal/symtab"
)

// Hash returns a stable hash for v, used by Index's open-addressed
// table. Dec hashes its bit pattern after folding -0.0 into 0.0, so the
// two zeros share a hash even though Equal (bitwise) tells them apart.
func Hash(v Value, syms *symtab.Table) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	putU64(buf[:], uint64(v.tag))
	h.Write(buf[:])

	switch v.tag {
	case TagUdf, TagNil:
		// tag alone identifies the value
	case TagLog, TagInt:
		putU64(buf[:], v.n)
		h.Write(buf[:])
	case TagDec:
		f := v.AsDec()
		if f == 0 {
			f = 0 // fold -0.0 into 0.0
		}
		putU64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	case TagSym:
		if syms != nil {
			putU64(buf[:], syms.Hash(v.AsSym()))
		} else {
			putU64(buf[:], uint64(v.AsSym()))
		}
		h.Write(buf[:])
	case TagPtr:
		putU64(buf[:], uint64(v.AsPtr()))
		h.Write(buf[:])
	case TagObj:
		switch o := v.obj.(type) {
		case *String:
			h.Write(o.Bytes)
		default:
			putU64(buf[:], uint64(reflect.ValueOf(o).Pointer()))
			h.Write(buf[:])
		}
	case TagTup:
		putU64(buf[:], v.n)
		h.Write(buf[:])
	}
	return h.Sum64()
}

func putU64(b []byte, x uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(x >> (uint(i) * 8))
	}
}

// Equal implements the language's structural equality rule (spec §3.1):
// tags must match exactly (Int and Dec are never equal to one another),
// Dec compares bitwise, Sym compares by payload, String compares by
// content, and every other object kind compares by identity.
func Equal(a, b Value, syms *symtab.Table) bool {
	if a.tag != b.tag {
		return false
	}
	switch a.tag {
	case TagUdf, TagNil:
		return true
	case TagLog, TagInt:
		return a.n == b.n
	case TagDec:
		return a.n == b.n
	case TagSym:
		if a.n == b.n {
			return true
		}
		if syms == nil {
			return false
		}
		return string(syms.Bytes(a.AsSym())) == string(syms.Bytes(b.AsSym()))
	case TagPtr:
		return a.ptr == b.ptr
	case TagObj:
		if a.obj == b.obj {
			return true
		}
		as, aok := a.obj.(*String)
		bs, bok := b.obj.(*String)
		if aok && bok {
			return as.Equal(bs)
		}
		return false
	case TagTup:
		return a.n == b.n
	}
	return false
}
