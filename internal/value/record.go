// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value

import (
	"github.com/loom-lang/loom/internal/errs"
	"github.com/loom-lang/loom/internal/gc"
	"github.com/loom-lang/loom/internal/symtab"
)

// Record pairs an Index (the key -> locator map) with a dense value
// array indexed by locator (spec §3.2/§4.5). Many Records may share one
// Index until one of them needs to add or remove a key the others
// don't have; Sep marks that moment, and the *next* Def lazily clones
// the Index rather than copying eagerly on every write.
type Record struct {
	gc.Header

	idx      *Index
	separate bool
	values   []Value
}

// NewRecord allocates an empty record backed by a fresh, unshared
// Index.
func NewRecord(syms *symtab.Table) *Record {
	return &Record{idx: NewIndex(syms)}
}

// NewRecordSharing allocates a Record that shares idx with another
// Record (spec §4.5's "records built from the same literal shape start
// out sharing one Index").
func NewRecordSharing(idx *Index) *Record {
	return &Record{idx: idx}
}

// NewRecordFromProto builds a Record sharing a compile-time record-
// literal prototype Index: every key in keys is normally already a
// locator in proto (the compiler built it that way from the literal's
// own static key shape), so population here only writes the value
// array and retains each locator; a key proto lacks is added with
// AddByKey. It never calls Def, so building the record never triggers
// a clone (spec §4.5, §8 scenario 3). The record comes back flagged
// separate: its next Def of any key, including an overwrite of a key
// already in this literal's shape, clones away from the shared Index
// rather than mutating it. Set writes in place without cloning.
func NewRecordFromProto(proto *Index, keys, vals []Value) *Record {
	r := &Record{idx: proto}
	for i, k := range keys {
		loc, ok := proto.GetByKey(k)
		if !ok {
			loc = proto.AddByKey(k)
		}
		proto.Retain(loc)
		r.ensureSize(loc)
		r.values[loc] = vals[i]
	}
	r.separate = true
	return r
}

func (r *Record) LoomKind() ObjKind { return KindRecord }

// ArenaSize reports r's accounted footprint: a fixed per-object
// overhead plus its value array (spec §4.1).
func (r *Record) ArenaSize() uint64 {
	return uint64(24 + len(r.values)*16)
}

func (r *Record) Traverse(mark func(gc.Object), extra func(interface{})) {
	mark(r.idx)
	for _, v := range r.values {
		v.Mark(mark, extra)
	}
}

func (r *Record) Finalize() {}

// Index returns the backing Index, e.g. so a second Record can be built
// sharing it.
func (r *Record) Index() *Index { return r.idx }

// Sep marks r as about to diverge from any Index it currently shares;
// the actual clone happens lazily on the next Def, whether or not that
// Def changes the key set (spec §4.5).
func (r *Record) Sep() { r.separate = true }

func (r *Record) ensureSize(loc uint32) {
	if int(loc) >= len(r.values) {
		grown := make([]Value, loc+1)
		copy(grown, r.values)
		for i := len(r.values); i < len(grown); i++ {
			grown[i] = Udf
		}
		r.values = grown
	}
}

func (r *Record) ownIndex() {
	if !r.separate {
		return
	}
	keep := make(map[uint32]bool, len(r.values))
	for loc, v := range r.values {
		if !v.IsUdf() {
			keep[uint32(loc)] = true
		}
	}
	clone, remap := r.idx.Clone(keep)
	newValues := make([]Value, clone.NextLoc())
	for i := range newValues {
		newValues[i] = Udf
	}
	for oldLoc, newLoc := range remap {
		if int(oldLoc) < len(r.values) {
			newValues[newLoc] = r.values[oldLoc]
		}
	}
	// This record is leaving the shared Index entirely: release its
	// hold on every locator it was retaining there so a sibling record
	// (or the compiled literal's own prototype) can still recycle them
	// once nothing else references them (spec I1/I2).
	old := r.idx
	for loc := range keep {
		old.RemByLoc(loc)
	}
	r.idx = clone
	r.values = newValues
	r.separate = false
}

// Def defines or overwrites key. Storing Udf removes the key (spec
// §4.5: "the value Udf deletes the field rather than storing it").
// Udf is never a valid key (spec §3.3); using one is a Record-kind
// user error, matching the original's recDef.
func (r *Record) Def(key, val Value) error {
	if key.IsUdf() {
		return errs.New(errs.Record, "use of udf as record key")
	}
	if val.IsUdf() {
		if _, ok := r.idx.GetByKey(key); !ok {
			return nil
		}
		r.ownIndex()
		if loc, ok := r.idx.GetByKey(key); ok {
			r.idx.RemByLoc(loc)
			if int(loc) < len(r.values) {
				r.values[loc] = Udf
			}
		}
		return nil
	}
	r.ownIndex()
	loc := r.idx.AddByKey(key)
	r.ensureSize(loc)
	r.values[loc] = val
	return nil
}

// Set overwrites an existing key's value without altering the key set.
// It raises a Record-kind error if key is Udf, if val is Udf (Set has
// no delete-on-Udf shorthand — only Def does), or if key is absent,
// matching the original's recSet.
func (r *Record) Set(key, val Value) error {
	if key.IsUdf() {
		return errs.New(errs.Record, "use of udf as record key")
	}
	if val.IsUdf() {
		return errs.New(errs.Record, "field set to udf")
	}
	loc, ok := r.idx.GetByKey(key)
	if !ok {
		return errs.New(errs.Record, "field %v is not defined", key)
	}
	r.ensureSize(loc)
	r.values[loc] = val
	return nil
}

// Get returns key's value, or Udf if absent. Udf is never a valid key
// (spec §3.3); using one is a Record-kind user error, matching the
// original's recGet.
func (r *Record) Get(key Value) (Value, error) {
	if key.IsUdf() {
		return Udf, errs.New(errs.Record, "use of udf as record key")
	}
	loc, ok := r.idx.GetByKey(key)
	if !ok || int(loc) >= len(r.values) {
		return Udf, nil
	}
	return r.values[loc], nil
}

// Has reports whether key is currently defined.
func (r *Record) Has(key Value) bool {
	loc, ok := r.idx.GetByKey(key)
	if !ok {
		return false
	}
	return int(loc) < len(r.values) && !r.values[loc].IsUdf()
}

// Len reports the number of currently-defined fields.
func (r *Record) Len() int {
	n := 0
	for _, v := range r.values {
		if !v.IsUdf() {
			n++
		}
	}
	return n
}

// Each calls fn for every defined key/value pair.
func (r *Record) Each(fn func(key, val Value)) {
	r.idx.Keys(func(key Value, loc uint32) {
		if int(loc) < len(r.values) && !r.values[loc].IsUdf() {
			fn(key, r.values[loc])
		}
	})
}
