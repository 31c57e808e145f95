// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package format implements the printf-style append_fmt buffer (spec
// §4.6): a growable byte buffer plus a handful of language-specific
// verbs layered over Go's own formatting of numbers and booleans.
package format

import (
	"strconv"

	"github.com/loom-lang/loom/internal/value"
)

// TypeNamer resolves a value's language-level type name and a raw
// tag's type name; the vm package supplies the real implementation
// (user-defined type tags live on Function/closure metadata this
// package has no visibility into).
type TypeNamer interface {
	TypeOf(v value.Value) string
	TagName(t value.Tag) string
}

// Buffer is the shared string-under-construction described by spec
// §4.6. It grows by appending; Reset (and AppendFmt with appendFlag
// false) truncates it in place, keeping the backing array.
type Buffer struct {
	buf   []byte
	names TypeNamer
}

// New creates an empty Buffer. names may be nil if %t/%T are never
// used by the caller.
func New(names TypeNamer) *Buffer {
	return &Buffer{names: names}
}

// Len reports the current buffer length.
func (b *Buffer) Len() int { return len(b.buf) }

// Bytes returns the buffer's current contents. The slice is owned by
// Buffer; callers must copy before further appends if they need a
// stable view.
func (b *Buffer) Bytes() []byte { return b.buf }

// String returns the buffer's current contents as a Go string.
func (b *Buffer) String() string { return string(b.buf) }

// Reset empties the buffer without releasing its backing array.
func (b *Buffer) Reset() { b.buf = b.buf[:0] }

// AppendFmt scans pattern for verbs and appends the formatted result.
// When append is false the buffer is reset first, matching the
// append_flag parameter from spec §4.6 ("append_fmt(append_flag,
// pattern, args)").
func (b *Buffer) AppendFmt(appendFlag bool, pattern string, args []value.Value) error {
	if !appendFlag {
		b.Reset()
	}
	argi := 0
	next := func() (value.Value, error) {
		if argi >= len(args) {
			return value.Udf, &ErrTooFewArgs{Pattern: pattern}
		}
		v := args[argi]
		argi++
		return v, nil
	}

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		if c != '%' {
			b.buf = append(b.buf, c)
			i++
			continue
		}
		if i+1 >= len(pattern) {
			return &ErrBadVerb{Pattern: pattern, Pos: i}
		}
		verb := pattern[i+1]
		i += 2
		switch verb {
		case '%':
			b.buf = append(b.buf, '%')
		case 'v':
			v, err := next()
			if err != nil {
				return err
			}
			b.appendValue(v, false)
		case 'q':
			v, err := next()
			if err != nil {
				return err
			}
			b.appendValue(v, true)
		case 't':
			v, err := next()
			if err != nil {
				return err
			}
			b.buf = append(b.buf, b.typeOf(v)...)
		case 'T':
			v, err := next()
			if err != nil {
				return err
			}
			b.buf = append(b.buf, b.tagName(v.Tag())...)
		default:
			return &ErrBadVerb{Pattern: pattern, Pos: i - 2}
		}
	}
	return nil
}

func (b *Buffer) typeOf(v value.Value) string {
	if b.names != nil {
		return b.names.TypeOf(v)
	}
	return v.Tag().String()
}

func (b *Buffer) tagName(t value.Tag) string {
	if b.names != nil {
		return b.names.TagName(t)
	}
	return t.String()
}

func (b *Buffer) appendValue(v value.Value, quoted bool) {
	switch v.Tag() {
	case value.TagUdf:
		b.buf = append(b.buf, "udf"...)
	case value.TagNil:
		b.buf = append(b.buf, "nil"...)
	case value.TagLog:
		b.buf = strconv.AppendBool(b.buf, v.AsBool())
	case value.TagInt:
		b.buf = strconv.AppendInt(b.buf, v.AsInt(), 10)
	case value.TagDec:
		b.buf = strconv.AppendFloat(b.buf, v.AsDec(), 'g', -1, 64)
	case value.TagSym:
		if quoted {
			b.buf = append(b.buf, '\'')
		}
		b.buf = appendSymBytes(b.buf, v)
		if quoted {
			b.buf = append(b.buf, '\'')
		}
	case value.TagPtr:
		b.buf = append(b.buf, "<ptr>"...)
	case value.TagObj:
		b.appendObj(v, quoted)
	case value.TagTup:
		b.buf = append(b.buf, "<tup>"...)
	}
}

func (b *Buffer) appendObj(v value.Value, quoted bool) {
	obj := v.AsObj()
	switch o := obj.(type) {
	case *value.String:
		if quoted {
			b.buf = strconv.AppendQuote(b.buf, o.String())
		} else {
			b.buf = append(b.buf, o.Bytes...)
		}
	case *value.Record:
		b.buf = append(b.buf, '{')
		first := true
		o.Each(func(k, fv value.Value) {
			if !first {
				b.buf = append(b.buf, ", "...)
			}
			first = false
			b.appendValue(k, true)
			b.buf = append(b.buf, ": "...)
			b.appendValue(fv, true)
		})
		b.buf = append(b.buf, '}')
	default:
		b.buf = append(b.buf, '<')
		b.buf = append(b.buf, b.typeOf(v)...)
		b.buf = append(b.buf, '>')
	}
}

// appendSymBytes avoids importing symtab here: Sym formatting for an
// interned long symbol needs the owning table, which callers that care
// about exact text must resolve themselves via a custom %v argument
// (a String built from symtab.Bytes) rather than through this helper.
func appendSymBytes(buf []byte, v value.Value) []byte {
	return strconv.AppendUint(buf, uint64(v.AsSym()), 10)
}

// ErrBadVerb reports a malformed or unknown format verb.
type ErrBadVerb struct {
	Pattern string
	Pos     int
}

func (e *ErrBadVerb) Error() string {
	return "format: bad verb in pattern " + strconv.Quote(e.Pattern) + " at " + strconv.Itoa(e.Pos)
}

// ErrTooFewArgs reports a pattern with more verbs than supplied args.
type ErrTooFewArgs struct {
	Pattern string
}

func (e *ErrTooFewArgs) Error() string {
	return "format: too few arguments for pattern " + strconv.Quote(e.Pattern)
}
