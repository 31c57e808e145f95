// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value

import "github.com/loom-lang/loom/internal/gc"

// String is an immutable byte-string heap object (spec §3.2). Unlike
// Sym, a String is never interned — two equal strings built separately
// are distinct objects compared structurally, not by identity.
type String struct {
	gc.Header
	Bytes []byte
}

// NewString allocates a String wrapping a copy of b.
func NewString(b []byte) *String {
	return &String{Bytes: append([]byte(nil), b...)}
}

// NewStringFrom allocates a String from a Go string.
func NewStringFrom(s string) *String {
	return NewString([]byte(s))
}

func (s *String) LoomKind() ObjKind { return KindString }

// ArenaSize reports s's accounted footprint: a fixed per-object
// overhead plus its byte payload (spec §4.1).
func (s *String) ArenaSize() uint64 { return uint64(16 + len(s.Bytes)) }

func (s *String) Traverse(mark func(gc.Object), extra func(interface{})) {}

func (s *String) Finalize() {}

// Len reports the byte length.
func (s *String) Len() int { return len(s.Bytes) }

// String renders the Go string form of s, for diagnostics.
func (s *String) String() string { return string(s.Bytes) }

// Equal compares two strings by content.
func (s *String) Equal(o *String) bool {
	if s == o {
		return true
	}
	if len(s.Bytes) != len(o.Bytes) {
		return false
	}
	for i := range s.Bytes {
		if s.Bytes[i] != o.Bytes[i] {
			return false
		}
	}
	return true
}
