// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package ptrtab

import "testing"

func TestInternDedupsSameAddrAndDescriptor(t *testing.T) {
	tab := New()
	desc := &Descriptor{Name: "file"}
	a := tab.Intern(0x1000, desc)
	b := tab.Intern(0x1000, desc)
	if a != b {
		t.Fatal("interning the same (addr, desc) pair twice must return the same ID")
	}
}

func TestInternDistinguishesDescriptors(t *testing.T) {
	tab := New()
	d1 := &Descriptor{Name: "file"}
	d2 := &Descriptor{Name: "socket"}
	a := tab.Intern(0x1000, d1)
	b := tab.Intern(0x1000, d2)
	if a == b {
		t.Fatal("same address under different descriptors must intern separately")
	}
	if tab.TypeName(a) != "file" || tab.TypeName(b) != "socket" {
		t.Fatal("TypeName must reflect the entry's own descriptor")
	}
}

func TestFinishFullCycleRunsDestroyOnce(t *testing.T) {
	tab := New()
	var destroyed int
	desc := &Descriptor{Name: "handle", Destroy: func(addr uintptr) { destroyed++ }}
	keep := tab.Intern(0x1, desc)
	tab.Intern(0x2, desc)

	tab.Mark(keep)
	tab.FinishFullCycle()

	if destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1 (only the unmarked entry)", destroyed)
	}
	if tab.Addr(keep) != 0x1 {
		t.Fatal("marked entry must survive with its address intact")
	}

	tab.FinishFullCycle()
	if destroyed != 2 {
		t.Fatalf("destroyed = %d, want 2 (keep was not re-marked before the second sweep)", destroyed)
	}
}

func TestUntypedDefaultDescriptor(t *testing.T) {
	tab := New()
	id := tab.Intern(0xdead, nil)
	if tab.TypeName(id) != "" {
		t.Fatal("a nil descriptor should report an empty type name")
	}
}
