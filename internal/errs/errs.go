// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package errs implements the error taxonomy and non-local transfer
// protocol of spec §6.2/§7. The reference's setjmp/longjmp pair is
// replaced by Go panic/recover, per spec §9's own design note
// endorsing "a catching panic boundary" as a direct substitute: err()
// panics with an *Error, and a fiber boundary (internal/fiber) or the
// host API recovers it.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the surface error kinds (spec §6.2).
type Kind uint8

const (
	None Kind = iota
	Fatal
	System
	Record
	String
	Fiber
	Call
	Syntax
	Limit
	Compile
	User
	Type
	Arith
	Assign
	Tuple
	Panic
	Assert
)

var kindNames = [...]string{
	None: "None", Fatal: "Fatal", System: "System", Record: "Record",
	String: "String", Fiber: "Fiber", Call: "Call", Syntax: "Syntax",
	Limit: "Limit", Compile: "Compile", User: "User", Type: "Type",
	Arith: "Arith", Assign: "Assign", Tuple: "Tuple", Panic: "Panic",
	Assert: "Assert",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Frame is one (unit, file, line) entry in an error's growing trace
// (spec §6.2). Unit is a function/native name, not a source file.
type Frame struct {
	Unit string
	File string
	Line int
}

// Error is the value carried across a non-local transfer. Value is an
// arbitrary payload (often a language-level Record or String); Static
// holds a fixed message for allocation-failure paths where
// constructing a Value is itself impossible (spec §6.2).
type Error struct {
	Kind   Kind
	Value  interface{}
	Static string
	Trace  []Frame
}

func (e *Error) Error() string {
	msg := e.Static
	if msg == "" {
		msg = fmt.Sprint(e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// PushFrame appends a trace frame, innermost first.
func (e *Error) PushFrame(f Frame) {
	e.Trace = append(e.Trace, f)
}

// New builds an *Error with a formatted static message and returns it
// as a plain Go error, for faulting sites that already sit on an
// ordinary Go error-return path (an opcode handler, a NativeFunc) and
// so only need to construct the value, not transfer control — the
// caller's own `return err` is what actually propagates it up the call
// stack. Throw is the non-local-transfer counterpart for call sites
// that must raise without an error return in scope (spec §7 step 1:
// "the faulting site calls err(kind, fmt, ...)").
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Static: fmt.Sprintf(format, args...)}
}

// Raise panics with e, the mechanism by which New's caller actually
// transfers control; New returns a plain error so call sites that want
// to propagate through an ordinary Go return path (e.g. a NativeFunc)
// can do so without unwinding, while VM-internal call sites panic
// directly via Throw.
func Raise(e error) { panic(e) }

// Throw is a convenience wrapping New+Raise for VM-internal faulting
// sites that must transfer immediately rather than return an error.
func Throw(kind Kind, format string, args ...interface{}) {
	panic(New(kind, format, args...))
}

// AsError unwraps a recovered panic value into *Error, wrapping
// unrelated Go panics (host bugs, nil derefs) as a Fatal error via
// pkg/errors so the original Go stack trace survives for embedders
// debugging the host binding itself (spec §9's pkg/errors boundary).
func AsError(r interface{}) *Error {
	if e, ok := r.(*Error); ok {
		return e
	}
	if err, ok := r.(error); ok {
		return &Error{Kind: Fatal, Static: errors.Wrap(err, "non-error panic").Error()}
	}
	return &Error{Kind: Fatal, Static: errors.Errorf("panic: %v", r).Error()}
}

// IsFatal reports whether kind bypasses fiber-boundary localization
// (spec §7 step 4).
func IsFatal(kind Kind) bool { return kind == Fatal }
