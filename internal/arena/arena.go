// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Loom is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.

// Package arena implements the memory-accounting and deferred-cleanup
// discipline that every Loom subsystem allocates through.
//
// The actual bytes backing a Loom value live on the Go heap and are
// collected by the Go runtime; Arena exists to model the *logical*
// allocation lifecycle the reference implementation gets from a custom
// allocator: a running byte counter that triggers the language-level
// mark-sweep collector, and a pending-parts list so that a panic
// (this project's substitute for the reference's longjmp) occurring
// mid-construction releases partially built state deterministically.
package arena

import "fmt"

// Part is a handle to a single pending allocation or deferred action.
// It is returned by Alloc and must be Commit'd or Cancel'd exactly once.
type Part struct {
	id       uint64
	kind     partKind
	size     uint64
	cb       func()
	canceled bool
	committed bool
}

type partKind uint8

const (
	partObject partKind = iota
	partRaw
	partDefer
)

// Arena tracks accounted memory and the pending-parts stack for one
// language instance.
type Arena struct {
	memUsed  uint64
	memLimit uint64
	growth   float64 // e.g. 0.5 means limit := used * 1.5 after a collection

	pending []*Part
	nextID  uint64

	// Collect is invoked when an allocation would exceed memLimit. It is
	// wired by the owning instance to the GC's Collect method; nil is
	// legal (no collection ever runs and charge just raises memLimit).
	// A memLimit of 0 disables the check altogether.
	Collect func()
}

// ErrOutOfMemory reports that the host allocator (modeled here as an
// unbounded accounting failure) could not satisfy a request. Per spec
// §4.1 this always raises the Fatal error kind at the call site.
type ErrOutOfMemory struct {
	Requested uint64
}

func (e *ErrOutOfMemory) Error() string {
	return fmt.Sprintf("arena: out of memory requesting %d bytes", e.Requested)
}

// New creates an Arena with the given initial limit and growth factor.
// A limit of 0 means "unbounded" (memLimit is never checked).
func New(initialLimit uint64, growth float64) *Arena {
	return &Arena{
		memLimit: initialLimit,
		growth:   growth,
	}
}

// Used reports the current accounted byte count.
func (a *Arena) Used() uint64 { return a.memUsed }

// Limit reports the current collection threshold.
func (a *Arena) Limit() uint64 { return a.memLimit }

// charge bumps memUsed by delta, running a collection first if the new
// total would exceed memLimit, then adjusting memLimit to
// used*(1+growth) as spec §4.1 requires.
func (a *Arena) charge(delta uint64) {
	if a.memLimit != 0 && a.memUsed+delta > a.memLimit {
		if a.Collect != nil {
			a.Collect()
		}
		if a.memUsed+delta > a.memLimit {
			a.memLimit = uint64(float64(a.memUsed+delta) * (1 + a.growth))
		}
	}
	a.memUsed += delta
}

// AllocObject reserves size bytes for a heap object and links a new Part
// onto the pending list. The caller must Commit the part once the object
// is fully initialized, or Cancel it (directly, or implicitly via a
// recovered panic — see Guard) to release the charge.
func (a *Arena) AllocObject(size uint64) *Part {
	a.charge(size)
	p := &Part{id: a.nextID, kind: partObject, size: size}
	a.nextID++
	a.pending = append(a.pending, p)
	return p
}

// AllocRaw reserves size bytes for a raw (non-object) buffer, e.g. a
// Record's value array or a String's byte payload.
func (a *Arena) AllocRaw(size uint64) *Part {
	a.charge(size)
	p := &Part{id: a.nextID, kind: partRaw, size: size}
	a.nextID++
	a.pending = append(a.pending, p)
	return p
}

// ResizeRaw adjusts the charged size of a pending raw part, e.g. when a
// Record's backing array grows to cover a new locator.
func (a *Arena) ResizeRaw(p *Part, newSize uint64) {
	if newSize > p.size {
		a.charge(newSize - p.size)
	} else {
		a.memUsed -= p.size - newSize
	}
	p.size = newSize
}

// InstallDefer registers cb to run exactly once: either immediately by
// RunDefer, or automatically if the part is still pending when Cancel
// (or a panic unwinding through Guard) reaches it. This is the arena's
// model of a scoped external-resource acquisition (spec §4.1): install
// the defer before the risky work, Commit on success.
func (a *Arena) InstallDefer(cb func()) *Part {
	p := &Part{id: a.nextID, kind: partDefer, cb: cb}
	a.nextID++
	a.pending = append(a.pending, p)
	return p
}

// Commit moves a part off the pending list without running its cleanup
// (for partDefer parts) or releasing its charge (for object/raw parts):
// the object is now considered live and owned by the GC's object list,
// or the external resource is considered successfully acquired.
func (a *Arena) Commit(p *Part) {
	p.committed = true
	a.remove(p)
}

// Cancel releases a still-pending part: an object/raw part's charge is
// refunded, a defer part's callback runs once.
func (a *Arena) Cancel(p *Part) {
	if p.committed || p.canceled {
		return
	}
	p.canceled = true
	switch p.kind {
	case partObject, partRaw:
		a.memUsed -= p.size
	case partDefer:
		if p.cb != nil {
			p.cb()
		}
	}
	a.remove(p)
}

// CancelDefer removes a defer part without running its callback — used
// when the guarded operation commits successfully and the defer is no
// longer needed (e.g. ownership of a resource transferred elsewhere).
func (a *Arena) CancelDefer(p *Part) {
	p.committed = true
	a.remove(p)
}

func (a *Arena) remove(p *Part) {
	for i, q := range a.pending {
		if q == p {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			return
		}
	}
}

// Guard runs fn, and on panic releases every still-pending part that was
// registered after Guard began (in reverse registration order, per spec
// §7.2) before re-panicking. Parts registered before the call are left
// pending.
// This is the panic-boundary substitute for the reference's
// longjmp-driven deferred cleanup.
func (a *Arena) Guard(fn func()) {
	mark := len(a.pending)
	defer func() {
		if r := recover(); r != nil {
			for i := len(a.pending) - 1; i >= mark; i-- {
				a.Cancel(a.pending[i])
			}
			panic(r)
		}
	}()
	fn()
}

// PendingCount reports the number of not-yet-committed parts; used by
// tests asserting that a failed construction left no leaks.
func (a *Arena) PendingCount() int { return len(a.pending) }
