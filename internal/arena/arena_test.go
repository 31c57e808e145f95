// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package arena

import "testing"

func TestAllocObjectCommitAccountsBytes(t *testing.T) {
	a := New(0, 0.5)
	p := a.AllocObject(64)
	if a.Used() != 64 {
		t.Fatalf("Used() = %d, want 64 before Commit", a.Used())
	}
	a.Commit(p)
	if a.Used() != 64 {
		t.Fatalf("Used() = %d, want 64 after Commit (charge persists)", a.Used())
	}
	if a.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d, want 0 after Commit", a.PendingCount())
	}
}

func TestCancelRefundsCharge(t *testing.T) {
	a := New(0, 0.5)
	p := a.AllocRaw(100)
	a.Cancel(p)
	if a.Used() != 0 {
		t.Fatalf("Used() = %d, want 0 after Cancel", a.Used())
	}
}

func TestCollectRunsWhenLimitExceeded(t *testing.T) {
	a := New(100, 0.5)
	var ran bool
	a.Collect = func() { ran = true }
	a.AllocObject(50)
	a.AllocObject(80)
	if !ran {
		t.Fatal("Collect hook should run once the charge would exceed the limit")
	}
}

func TestGuardUnwindsPendingPartsOnPanic(t *testing.T) {
	a := New(0, 0.5)
	a.Commit(a.AllocObject(10)) // committed before the guarded section

	func() {
		defer func() { recover() }()
		a.Guard(func() {
			a.AllocRaw(20)
			panic("boom")
		})
	}()

	if a.Used() != 10 {
		t.Fatalf("Used() = %d, want 10 (the panicking alloc must be refunded)", a.Used())
	}
	if a.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d, want 0 after Guard unwinds", a.PendingCount())
	}
}

func TestInstallDeferRunsOnCancelNotCommit(t *testing.T) {
	a := New(0, 0.5)
	var ran bool
	p := a.InstallDefer(func() { ran = true })
	a.Commit(p)
	if ran {
		t.Fatal("a committed defer must not run its callback")
	}

	var ran2 bool
	p2 := a.InstallDefer(func() { ran2 = true })
	a.Cancel(p2)
	if !ran2 {
		t.Fatal("a canceled defer must run its callback exactly once")
	}
}
