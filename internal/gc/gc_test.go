// Copyright 2024 The Loom Authors
// This file is part of Loom.

package gc

import "testing"

// node is a minimal Object used to exercise Collect in isolation, with
// no dependency on the value package.
type node struct {
	Header
	refs     []*node
	extras   []interface{}
	finalized *bool
}

func (n *node) Traverse(mark func(Object), extra func(interface{})) {
	for _, r := range n.refs {
		mark(r)
	}
	for _, e := range n.extras {
		extra(e)
	}
}

func (n *node) Finalize() {
	if n.finalized != nil {
		*n.finalized = true
	}
}

func TestCollectSweepsUnreachable(t *testing.T) {
	c := New()
	var freed bool
	root := &node{}
	garbage := &node{finalized: &freed}
	c.Track(root)
	c.Track(garbage)

	c.RegisterScanner(func(mark func(Object), extra func(interface{})) {
		mark(root)
	})

	c.Collect()

	if !freed {
		t.Fatal("unreachable node was not finalized")
	}
	if c.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 (only root survives)", c.Count())
	}
}

func TestCollectKeepsReachableCycle(t *testing.T) {
	c := New()
	a := &node{}
	b := &node{}
	a.refs = []*node{b}
	b.refs = []*node{a} // cycle
	c.Track(a)
	c.Track(b)

	c.RegisterScanner(func(mark func(Object), extra func(interface{})) {
		mark(a)
	})

	c.Collect()

	if c.Count() != 2 {
		t.Fatalf("Count() = %d, want 2 (cycle rooted via a must survive)", c.Count())
	}
}

func TestExtraMarkForwardsOpaqueIdentities(t *testing.T) {
	c := New()
	root := &node{extras: []interface{}{"sym:abc", 42}}
	c.Track(root)

	var seen []interface{}
	c.ExtraMark = func(x interface{}) { seen = append(seen, x) }
	c.RegisterScanner(func(mark func(Object), extra func(interface{})) {
		mark(root)
	})

	c.Collect()

	if len(seen) != 2 {
		t.Fatalf("ExtraMark saw %d identities, want 2: %v", len(seen), seen)
	}
}

func TestFullCycleHooksOnlyRunEveryKthCollection(t *testing.T) {
	c := New()
	c.FullCyclePeriod = 3
	var fullRuns int
	c.RegisterFullCycleHook(func() { fullRuns++ })

	for i := 0; i < 7; i++ {
		c.Collect()
	}
	if fullRuns != 2 {
		t.Fatalf("fullRuns = %d, want 2 (cycles 3 and 6 of 7)", fullRuns)
	}
}
