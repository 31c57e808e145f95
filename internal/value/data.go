// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value

import "github.com/loom-lang/loom/internal/gc"

// DataDescriptor types a family of Data objects: a printable name plus
// the hooks the host registered for this kind of opaque buffer (spec
// §4.6, §7.3 — the Data/Pointer registration surface).
type DataDescriptor struct {
	Name     string
	Traverse func(buf interface{}, mark func(gc.Object), extra func(interface{}))
	Finalize func(buf interface{})
}

// Data is a host-owned opaque buffer: storage the VM carries around and
// garbage-collects on the script's behalf without interpreting its
// contents, except through the registered descriptor's hooks.
type Data struct {
	gc.Header
	Descriptor *DataDescriptor
	Buf        interface{}
}

// NewData allocates a Data object wrapping buf, typed by desc.
func NewData(desc *DataDescriptor, buf interface{}) *Data {
	return &Data{Descriptor: desc, Buf: buf}
}

func (d *Data) LoomKind() ObjKind { return KindData }

func (d *Data) Traverse(mark func(gc.Object), extra func(interface{})) {
	if d.Descriptor != nil && d.Descriptor.Traverse != nil {
		d.Descriptor.Traverse(d.Buf, mark, extra)
	}
}

func (d *Data) Finalize() {
	if d.Descriptor != nil && d.Descriptor.Finalize != nil {
		d.Descriptor.Finalize(d.Buf)
	}
}

// TypeName returns the descriptor's name, or "" when untyped.
func (d *Data) TypeName() string {
	if d.Descriptor == nil {
		return ""
	}
	return d.Descriptor.Name
}
