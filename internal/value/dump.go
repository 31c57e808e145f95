// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value

import "github.com/davecgh/go-spew/spew"

var dumpConfig = &spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump renders v's full internal structure for test-failure output and
// ad hoc debugging — not a language-level formatting verb (that's
// internal/format's AppendFmt), but a developer-facing view into the Go
// struct backing a Value, including unexported fields of any attached
// heap object.
func Dump(v Value) string {
	return dumpConfig.Sdump(v)
}

// DumpObject renders o the same way, for callers holding a heap object
// directly rather than a Value wrapping one.
func DumpObject(o Object) string {
	return dumpConfig.Sdump(o)
}
