// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package gc implements the stop-the-world tracing mark-sweep collector
// described in spec §4.2. It owns the per-instance object list and
// drives marking through a small set of registered root scanners,
// keeping no knowledge of what a "String" or "Record" actually is —
// every heap object need only satisfy the Object interface.
package gc

import "github.com/loom-lang/loom/internal/arena"

// Header is embedded in every heap object. It carries the mark bit and
// the intrusive next-pointer used to thread the collector's object
// list, mirroring the reference's per-object mark byte plus sweep
// linked list (spec §3.2: "every heap object carries a type tag and a
// mark bit accessible from its reference").
type Header struct {
	marked bool
	next   Object
}

// GCHeader returns h itself; embedding types promote this method so
// they satisfy Object without boilerplate.
func (h *Header) GCHeader() *Header { return h }

// Sizer is implemented by heap objects that know their own accounted
// byte footprint (a Record's value array, a String's byte payload, ...).
// Track charges this to the wired Arena, when one is wired (spec
// §4.1); an object that doesn't bother implementing it is charged
// defaultObjectSize instead.
type Sizer interface {
	ArenaSize() uint64
}

const defaultObjectSize = 32

// Object is anything the collector can track, mark through, and sweep.
type Object interface {
	GCHeader() *Header
	// Traverse calls mark on every Object this object directly
	// references, and extra on every non-Object reachable identity it
	// holds that some other component's full-cycle hook cares about
	// (spec §4.3/§4.4: interned symbols and pointer-table entries,
	// neither of which this package knows the type of — see extra).
	// Traverse must not recurse itself — the collector's mark function
	// handles recursion and cycle safety.
	Traverse(mark func(Object), extra func(interface{}))
	// Finalize runs once, when the object is swept as unreachable.
	Finalize()
}

// Scanner marks additional roots — a callback registered by a
// component (compiler, host API, fiber scheduler) that owns references
// the collector cannot otherwise discover (spec §4.2 step 2).
type Scanner func(mark func(Object), extra func(interface{}))

// Collector is a single language instance's garbage collector.
type Collector struct {
	head  Object
	count int

	cycle int
	// FullCyclePeriod is the "k" in spec §4.2 step 1; every k-th cycle
	// also sweeps interned symbols and pointer descriptors. Defaults to
	// 5 per spec.
	FullCyclePeriod int

	scanners       []Scanner
	fullCycleHooks []func()

	// ExtraMark, if set, receives every non-Object identity (a
	// symtab.Symbol, a ptrtab.ID, ...) reached while marking —
	// forwarded opaquely, since this package deliberately has no
	// knowledge of what those types are (spec §4.2's collector stays
	// ignorant of String/Record/etc; the same now holds for the
	// interned-table identities other components traverse through).
	// The owning instance type-switches on it to call symtab.Mark /
	// ptrtab.Mark ahead of those tables' FinishFullCycle hooks.
	ExtraMark func(interface{})

	// Arena, if set, is charged for every object Track links in (spec
	// §4.1). Nil is legal: a Collector built standalone (e.g. a unit
	// test exercising marking/sweeping in isolation) simply never
	// accounts memory, same as a Machine built without one.
	Arena *arena.Arena
}

// New creates a Collector with an empty object list.
func New() *Collector {
	return &Collector{FullCyclePeriod: 5}
}

// RegisterScanner adds a root scanner invoked on every collection.
func (c *Collector) RegisterScanner(s Scanner) {
	c.scanners = append(c.scanners, s)
}

// RegisterFullCycleHook adds a callback invoked only on full cycles,
// after the main sweep — this is where SymbolTable.FinishFullCycle and
// PointerTable.FinishFullCycle are wired in (spec §4.2 step 5).
func (c *Collector) RegisterFullCycleHook(hook func()) {
	c.fullCycleHooks = append(c.fullCycleHooks, hook)
}

// Track links a freshly committed object into the object list, charging
// its accounted size to c.Arena first so a script that allocates
// unboundedly actually triggers a collection under memory pressure
// (spec §4.1: "exceeding a dynamic memLimit triggers a collection
// before the allocation proceeds"). Callers must Track an object
// exactly once, after it is fully built.
func (c *Collector) Track(o Object) {
	if c.Arena != nil {
		size := uint64(defaultObjectSize)
		if s, ok := o.(Sizer); ok {
			size = s.ArenaSize()
		}
		c.Arena.Commit(c.Arena.AllocObject(size))
	}
	o.GCHeader().next = c.head
	c.head = o
	c.count++
}

// Count reports the number of live tracked objects.
func (c *Collector) Count() int { return c.count }

// Cycles reports how many collections have run.
func (c *Collector) Cycles() int { return c.cycle }

// Collect runs one mark-sweep cycle (spec §4.2); every
// FullCyclePeriod-th call is a full cycle that also runs the full-cycle
// hooks.
func (c *Collector) Collect() {
	c.cycle++
	full := c.FullCyclePeriod > 0 && c.cycle%c.FullCyclePeriod == 0

	extra := c.ExtraMark
	if extra == nil {
		extra = func(interface{}) {}
	}

	var mark func(Object)
	mark = func(o Object) {
		if o == nil {
			return
		}
		h := o.GCHeader()
		if h.marked {
			return
		}
		h.marked = true
		o.Traverse(mark, extra)
	}

	for _, s := range c.scanners {
		s(mark, extra)
	}

	var survivors Object
	var tail Object
	c.count = 0
	for o := c.head; o != nil; {
		h := o.GCHeader()
		next := h.next
		if h.marked {
			h.marked = false
			h.next = nil
			if survivors == nil {
				survivors = o
			} else {
				tail.GCHeader().next = o
			}
			tail = o
			c.count++
		} else {
			o.Finalize()
		}
		o = next
	}
	c.head = survivors

	if full {
		for _, hook := range c.fullCycleHooks {
			hook()
		}
	}
}

// Walk visits every currently-tracked object, live or not yet swept.
// Intended for diagnostics/tests only.
func (c *Collector) Walk(fn func(Object)) {
	for o := c.head; o != nil; o = o.GCHeader().next {
		fn(o)
	}
}
