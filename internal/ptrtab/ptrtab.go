// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ptrtab interns (address, descriptor) pairs so that many
// language-level Ptr values referencing the same native resource share
// a single identity, and so the resource's destructor runs exactly once
// when the last such value becomes unreachable (spec §4.4).
package ptrtab

// Descriptor types a family of native pointers. A nil Descriptor is the
// untyped default (spec §4.4: "a pointer with a NULL descriptor is the
// untyped default").
type Descriptor struct {
	Name    string
	Destroy func(addr uintptr)
}

// ID references one interned (address, descriptor) entry.
type ID uint32

type entry struct {
	addr    uintptr
	desc    *Descriptor
	marked  bool
	live    bool
}

type key struct {
	addr uintptr
	desc *Descriptor
}

// Table interns pointer identities. The zero value is not usable; use
// New.
type Table struct {
	byKey   map[key]ID
	entries []entry
	free    []ID
}

// New creates an empty pointer table.
func New() *Table {
	return &Table{byKey: make(map[key]ID)}
}

// Intern returns the ID for (addr, desc), creating a new entry only if
// this exact pair has not been seen before.
func (t *Table) Intern(addr uintptr, desc *Descriptor) ID {
	k := key{addr, desc}
	if id, ok := t.byKey[k]; ok {
		return id
	}
	var id ID
	if n := len(t.free); n > 0 {
		id = t.free[n-1]
		t.free = t.free[:n-1]
		t.entries[id] = entry{addr: addr, desc: desc, live: true}
	} else {
		id = ID(len(t.entries))
		t.entries = append(t.entries, entry{addr: addr, desc: desc, live: true})
	}
	t.byKey[k] = id
	return id
}

// Addr returns the raw address for id.
func (t *Table) Addr(id ID) uintptr {
	if int(id) >= len(t.entries) || !t.entries[id].live {
		return 0
	}
	return t.entries[id].addr
}

// Descriptor returns the descriptor for id, or nil for the untyped
// default.
func (t *Table) Descriptor(id ID) *Descriptor {
	if int(id) >= len(t.entries) || !t.entries[id].live {
		return nil
	}
	return t.entries[id].desc
}

// TypeName returns the descriptor's printable tag, or "" when untyped.
func (t *Table) TypeName(id ID) string {
	if d := t.Descriptor(id); d != nil {
		return d.Name
	}
	return ""
}

// Mark marks id as reachable ahead of a full GC cycle's sweep.
func (t *Table) Mark(id ID) {
	if int(id) < len(t.entries) {
		t.entries[id].marked = true
	}
}

// FinishFullCycle runs the destructor of, and frees, every entry not
// Mark'd since the previous call (spec §4.2 step 5, §4.4).
func (t *Table) FinishFullCycle() {
	for id := range t.entries {
		e := &t.entries[id]
		if !e.live {
			continue
		}
		if !e.marked {
			if e.desc != nil && e.desc.Destroy != nil {
				e.desc.Destroy(e.addr)
			}
			delete(t.byKey, key{e.addr, e.desc})
			e.live = false
			t.free = append(t.free, ID(id))
			continue
		}
		e.marked = false
	}
}
