// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value

import (
	"github.com/loom-lang/loom/internal/gc"
	"github.com/loom-lang/loom/internal/symtab"
)

// Index is the open-addressed hashmap that backs a Record's key set
// (spec §3.2/§4.5). It maps arbitrary Value keys to small dense
// "locators" — Records then index a parallel value array by locator
// rather than re-hashing on every field access.
//
// Multiple Records may share one Index (the "separate-on-write"
// optimization: two Records built from the same literal shape keep
// sharing a key table until one of them, once flagged separate, is
// written with Def). Locators are therefore refcounted: a locator is
// only recycled once every sharing Record has released it.
type Index struct {
	gc.Header

	syms *symtab.Table

	table      []slot
	stepTarget uint32
	stepLimit  uint32

	nextLoc  uint32
	locRef   []uint32 // refcount per locator; 0 == free
	freeLocs []uint32
	locSlot  []int // locator -> index into table, -1 if none

	count int
}

type slot struct {
	used bool
	dead bool // tombstone: probed-past but logically empty
	key  Value
	loc  uint32
}

const initialIndexCap = 8

// NewIndex allocates an empty Index. syms is used to hash and compare
// Sym-tagged keys against the owning instance's interned content.
func NewIndex(syms *symtab.Table) *Index {
	idx := &Index{
		syms:       syms,
		table:      make([]slot, initialIndexCap),
		stepTarget: 4,
		stepLimit:  4,
	}
	return idx
}

func (idx *Index) LoomKind() ObjKind { return KindIndex }

// ArenaSize reports idx's accounted footprint: its probe table plus its
// per-locator bookkeeping slices (spec §4.1).
func (idx *Index) ArenaSize() uint64 {
	return uint64(24 + len(idx.table)*24 + len(idx.locRef)*8)
}

func (idx *Index) Traverse(mark func(gc.Object), extra func(interface{})) {
	for _, s := range idx.table {
		if s.used && !s.dead {
			s.key.Mark(mark, extra)
		}
	}
}

func (idx *Index) Finalize() {}

// Count reports the number of live keys.
func (idx *Index) Count() int { return idx.count }

// NextLoc reports the smallest locator value never yet assigned; a
// Record's backing value array must be at least this long.
func (idx *Index) NextLoc() uint32 { return idx.nextLoc }

func (idx *Index) cap() uint32 { return uint32(len(idx.table)) }

func (idx *Index) probe(key Value, limit uint32, forInsert bool) (slotIdx int, found bool) {
	h := Hash(key, idx.syms)
	c := idx.cap()
	start := uint32(h) % c
	firstDead := -1
	for i := uint32(0); i < limit; i++ {
		p := int((start + i) % c)
		s := &idx.table[p]
		if s.dead {
			if forInsert && firstDead < 0 {
				firstDead = p
			}
			continue
		}
		if !s.used {
			if forInsert && firstDead >= 0 {
				return firstDead, false
			}
			return p, false
		}
		if Equal(s.key, key, idx.syms) {
			return p, true
		}
	}
	if forInsert && firstDead >= 0 {
		return firstDead, false
	}
	return -1, false
}

// GetByKey returns the locator for key, if present.
func (idx *Index) GetByKey(key Value) (loc uint32, ok bool) {
	p, found := idx.probe(key, idx.stepLimit, false)
	if !found {
		return 0, false
	}
	return idx.table[p].loc, true
}

// AddByKey returns key's existing locator, or assigns and returns a new
// one. Growth follows spec §4.5: first widen the probe window up to
// half the table capacity, then rehash into a larger table.
func (idx *Index) AddByKey(key Value) uint32 {
	for {
		p, found := idx.probe(key, idx.stepLimit, true)
		if found {
			return idx.table[p].loc
		}
		if p >= 0 && !idx.table[p].used {
			loc := idx.allocLoc()
			idx.table[p] = slot{used: true, key: key, loc: loc}
			idx.locSlot[loc] = p
			idx.locRef[loc] = 1
			idx.count++
			return loc
		}
		// probe window exhausted without an empty/tombstone slot
		if idx.stepLimit < idx.cap()/2 {
			idx.stepLimit *= 2
			if idx.stepLimit > idx.cap() {
				idx.stepLimit = idx.cap()
			}
			continue
		}
		idx.rehash(idx.cap() * 2)
	}
}

func (idx *Index) allocLoc() uint32 {
	if n := len(idx.freeLocs); n > 0 {
		loc := idx.freeLocs[n-1]
		idx.freeLocs = idx.freeLocs[:n-1]
		return loc
	}
	loc := idx.nextLoc
	idx.nextLoc++
	idx.locRef = append(idx.locRef, 0)
	idx.locSlot = append(idx.locSlot, -1)
	return loc
}

// Retain bumps a locator's refcount when a second Record starts sharing
// this Index (see separate-on-write in Record).
func (idx *Index) Retain(loc uint32) {
	if int(loc) < len(idx.locRef) {
		idx.locRef[loc]++
	}
}

// RemByLoc decrements loc's refcount and, once it drops to zero,
// tombstones its slot and recycles the locator.
func (idx *Index) RemByLoc(loc uint32) {
	if int(loc) >= len(idx.locRef) || idx.locRef[loc] == 0 {
		return
	}
	idx.locRef[loc]--
	if idx.locRef[loc] > 0 {
		return
	}
	p := idx.locSlot[loc]
	if p >= 0 {
		idx.table[p].used = false
		idx.table[p].dead = true
		idx.locSlot[loc] = -1
		idx.count--
	}
	idx.freeLocs = append(idx.freeLocs, loc)
}

func (idx *Index) rehash(newCap uint32) {
	old := idx.table
	idx.table = make([]slot, newCap)
	idx.stepLimit = idx.stepTarget
	for i := range idx.locSlot {
		idx.locSlot[i] = -1
	}
	for _, s := range old {
		if !s.used || s.dead {
			continue
		}
		for {
			p, _ := idx.probe(s.key, idx.stepLimit, true)
			if p >= 0 {
				idx.table[p] = slot{used: true, key: s.key, loc: s.loc}
				idx.locSlot[s.loc] = p
				break
			}
			idx.stepLimit *= 2
		}
	}
}

// Keys calls fn for every live key in table order (not insertion order).
func (idx *Index) Keys(fn func(key Value, loc uint32)) {
	for _, s := range idx.table {
		if s.used && !s.dead {
			fn(s.key, s.loc)
		}
	}
}

// Clone returns a new Index containing only the given set of still-live
// locators, used by Record's separate-on-write path (spec §4.5: "the
// next def after sep() copies the Index, preserving only the record's
// currently-populated locators"). Because the new Index assigns its own
// locators from scratch, Clone also returns the old->new locator
// mapping so the caller can rebuild its value array accordingly.
func (idx *Index) Clone(keepLocs map[uint32]bool) (*Index, map[uint32]uint32) {
	out := NewIndex(idx.syms)
	remap := make(map[uint32]uint32)
	idx.Keys(func(key Value, loc uint32) {
		if keepLocs != nil && !keepLocs[loc] {
			return
		}
		remap[loc] = out.AddByKey(key)
	})
	return out, remap
}
