// Copyright 2024 The Loom Authors
// This file is part of Loom.

package format

import (
	"testing"

	"github.com/loom-lang/loom/internal/value"
)

func TestAppendFmtBasic(t *testing.T) {
	b := New(nil)
	err := b.AppendFmt(false, "x=%v y=%v", []value.Value{value.Int(1), value.Bool(true)})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := b.String(), "x=1 y=true"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAppendFmtQuoted(t *testing.T) {
	b := New(nil)
	s := value.Obj(value.NewStringFrom("hi"))
	if err := b.AppendFmt(false, "%q", []value.Value{s}); err != nil {
		t.Fatal(err)
	}
	if got, want := b.String(), `"hi"`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAppendFmtAppendFlag(t *testing.T) {
	b := New(nil)
	b.AppendFmt(false, "a", nil)
	b.AppendFmt(true, "b", nil)
	if got, want := b.String(), "ab"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	b.AppendFmt(false, "c", nil)
	if got, want := b.String(), "c"; got != want {
		t.Fatalf("got %q, want %q (append_flag=false must reset)", got, want)
	}
}

func TestAppendFmtTooFewArgs(t *testing.T) {
	b := New(nil)
	if err := b.AppendFmt(false, "%v %v", []value.Value{value.Int(1)}); err == nil {
		t.Fatal("expected ErrTooFewArgs")
	}
}

type stubNamer struct{}

func (stubNamer) TypeOf(v value.Value) string   { return "custom:" + v.Tag().String() }
func (stubNamer) TagName(t value.Tag) string    { return "rawtag:" + t.String() }

func TestAppendFmtTypeVerbsUseNamer(t *testing.T) {
	b := New(stubNamer{})
	if err := b.AppendFmt(false, "%t %T", []value.Value{value.Int(1)}); err != nil {
		t.Fatal(err)
	}
	if got, want := b.String(), "custom:int rawtag:int"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
