// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	loom "github.com/loom-lang/loom"
	"github.com/loom-lang/loom/internal/value"
	"github.com/loom-lang/loom/internal/vm"
)

// disassembler renders a compiled Function tree in the textual form
// spec §6.3 describes (one 32-bit opcode+operand word per line), with
// GET_CONST operands resolved against the function's constant pool for
// readability, and recurses into MAKE_CLS's nested Function constants.
type disassembler struct {
	ins      *loom.Instance
	out      io.Writer
	colorize bool

	header *color.Color
	op     *color.Color
	operand *color.Color
	seen   map[*vm.Function]bool
}

func newDisassembler(ins *loom.Instance, out io.Writer, colorize bool) *disassembler {
	return &disassembler{
		ins:      ins,
		out:      out,
		colorize: colorize,
		header:   color.New(color.FgCyan, color.Bold),
		op:       color.New(color.FgYellow),
		operand:  color.New(color.FgGreen),
		seen:     make(map[*vm.Function]bool),
	}
}

func (d *disassembler) disassembleClosure(cls *vm.Closure) {
	d.disassembleFunction(cls.Fn)
}

func (d *disassembler) disassembleFunction(fn *vm.Function) {
	if d.seen[fn] {
		return
	}
	d.seen[fn] = true

	name := fn.Name
	if name == "" {
		name = "<anonymous>"
	}
	d.printf(d.header, "; function %s (arity=%d variadic=%t locals=%d)\n", name, fn.Arity, fn.Variadic, fn.NumLocals)

	for i, ins := range fn.Code {
		d.printf(nil, "%4d  ", i)
		d.printf(d.op, "%-12s", ins.Op.String())
		d.printf(d.operand, " %d", ins.A)
		if ins.Op == vm.OP_GET_CONST && int(ins.A) < len(fn.Consts) {
			fmt.Fprintf(d.out, "   ; %s", d.constText(fn.Consts[ins.A]))
		}
		if ins.Op == vm.OP_MAKE_REC && ins.B >= 0 {
			fmt.Fprintf(d.out, "   ; proto #%d", ins.B)
		}
		fmt.Fprintln(d.out)
	}
	fmt.Fprintln(d.out)

	for _, c := range fn.Consts {
		if c.IsObjKind(value.KindFunction) {
			d.disassembleFunction(c.AsObj().(*vm.Function))
		}
	}
}

func (d *disassembler) constText(v value.Value) string {
	buf := d.ins.Formatter()
	buf.AppendFmt(false, "%q", []value.Value{v})
	return buf.String()
}

func (d *disassembler) printf(c *color.Color, format string, args ...interface{}) {
	if d.colorize && c != nil {
		fmt.Fprint(d.out, c.Sprintf(format, args...))
		return
	}
	fmt.Fprintf(d.out, format, args...)
}
