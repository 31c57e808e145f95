// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package loom

import (
	"github.com/loom-lang/loom/internal/gc"
	"github.com/loom-lang/loom/internal/ptrtab"
	"github.com/loom-lang/loom/internal/value"
)

// DataDescriptor types a family of Data objects (spec §3.2/§6.1: "size,
// member count, destructor"). A Data instance created against one
// carries a fixed-size member array the host reads/writes by index plus
// an opaque raw payload the host alone interprets.
type DataDescriptor struct {
	inner       *value.DataDescriptor
	memberCount int
}

// dataPayload is the Go value stored behind value.Data.Buf: the host's
// opaque raw resource plus the member array the GC must trace through
// (Data itself only knows how to call back into DataDescriptor's hooks,
// never what a "member" is — see value.Data.Traverse).
type dataPayload struct {
	raw     interface{}
	members []Value
}

// RegisterDataDescriptor creates a new Data type named name, with
// memberCount language-visible member slots (each initialized to Udf on
// construction) and an optional destroy hook run once, when an instance
// is swept as unreachable (spec §4.2/§3.4).
func (ins *Instance) RegisterDataDescriptor(name string, memberCount int, destroy func(raw interface{})) *DataDescriptor {
	desc := &DataDescriptor{memberCount: memberCount}
	desc.inner = &value.DataDescriptor{
		Name: name,
		Traverse: func(buf interface{}, mark func(gc.Object), extra func(interface{})) {
			p, ok := buf.(*dataPayload)
			if !ok {
				return
			}
			for _, m := range p.members {
				m.Mark(mark, extra)
			}
		},
		Finalize: func(buf interface{}) {
			if destroy == nil {
				return
			}
			if p, ok := buf.(*dataPayload); ok {
				destroy(p.raw)
			}
		},
	}
	return desc
}

// NewData allocates a Data instance of desc's type wrapping raw, with
// every member slot starting out Udf (spec §6.1: "create instances").
func (ins *Instance) NewData(desc *DataDescriptor, raw interface{}) Value {
	members := make([]Value, desc.memberCount)
	for i := range members {
		members[i] = Udf
	}
	d := value.NewData(desc.inner, &dataPayload{raw: raw, members: members})
	ins.GC.Track(d)
	return value.Obj(d)
}

// DataRaw returns the opaque raw payload a Data instance was built
// with; callers must check IsObjKind(KindData) first.
func (ins *Instance) DataRaw(v Value) interface{} {
	return v.AsObj().(*value.Data).Buf.(*dataPayload).raw
}

// DataTypeName returns a Data instance's registered type name, or ""
// for one built against no descriptor.
func (ins *Instance) DataTypeName(v Value) string {
	return v.AsObj().(*value.Data).TypeName()
}

// DataMemberCount reports how many member slots a Data instance has.
func (ins *Instance) DataMemberCount(v Value) int {
	return len(v.AsObj().(*value.Data).Buf.(*dataPayload).members)
}

// DataMember reads member slot i of a Data instance (spec §6.1:
// "access their members").
func (ins *Instance) DataMember(v Value, i int) Value {
	return v.AsObj().(*value.Data).Buf.(*dataPayload).members[i]
}

// SetDataMember overwrites member slot i of a Data instance.
func (ins *Instance) SetDataMember(v Value, i int, val Value) {
	v.AsObj().(*value.Data).Buf.(*dataPayload).members[i] = val
}

// PointerDescriptor types a family of native Ptr values (spec §4.4).
type PointerDescriptor struct {
	inner *ptrtab.Descriptor
}

// RegisterPointerDescriptor creates a new Pointer type named name, with
// an optional destroy hook run once every value.Ptr referencing a given
// (address, descriptor) pair becomes unreachable across a full GC cycle
// (spec §4.2 step 5, §4.4).
func (ins *Instance) RegisterPointerDescriptor(name string, destroy func(addr uintptr)) *PointerDescriptor {
	return &PointerDescriptor{inner: &ptrtab.Descriptor{Name: name, Destroy: destroy}}
}

// NewPointer interns (addr, desc) and returns it as a Ptr value. desc
// may be nil for the untyped default pointer kind (spec §4.4: "a
// pointer with a NULL descriptor is the untyped default").
func (ins *Instance) NewPointer(desc *PointerDescriptor, addr uintptr) Value {
	var d *ptrtab.Descriptor
	if desc != nil {
		d = desc.inner
	}
	return value.Ptr(ins.Ptrs.Intern(addr, d))
}

// PointerAddr returns a Ptr value's raw address.
func (ins *Instance) PointerAddr(v Value) uintptr { return ins.Ptrs.Addr(v.AsPtr()) }

// PointerTypeName returns a Ptr value's registered type name, or "" for
// the untyped default.
func (ins *Instance) PointerTypeName(v Value) string { return ins.Ptrs.TypeName(v.AsPtr()) }
