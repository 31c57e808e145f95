// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"bytes"
	"math"

	"github.com/loom-lang/loom/internal/errs"
	"github.com/loom-lang/loom/internal/symtab"
	"github.com/loom-lang/loom/internal/value"
)

// numBinOp dispatches a numeric binary opcode per spec §4.8's "(Int,
// Int) -> Int vs any-Dec -> Dec" promotion rule, raising Arith on
// non-numeric operands.
func numBinOp(op Op, a, b value.Value) (value.Value, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return value.Udf, errs.New(errs.Arith, "%s requires numeric operands, got %s and %s", op, a.Tag(), b.Tag())
	}
	if a.IsInt() && b.IsInt() {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case OP_ADD:
			return value.Int(x + y), nil
		case OP_SUB:
			return value.Int(x - y), nil
		case OP_MUL:
			return value.Int(x * y), nil
		case OP_DIV:
			if y == 0 {
				return value.Udf, errs.New(errs.Arith, "integer division by zero")
			}
			return value.Int(x / y), nil
		case OP_MOD:
			if y == 0 {
				return value.Udf, errs.New(errs.Arith, "integer modulo by zero")
			}
			return value.Int(x % y), nil
		case OP_POW:
			return value.Int(int64(math.Pow(float64(x), float64(y)))), nil
		}
	}
	x, y := asFloat(a), asFloat(b)
	var r float64
	switch op {
	case OP_ADD:
		r = x + y
	case OP_SUB:
		r = x - y
	case OP_MUL:
		r = x * y
	case OP_DIV:
		r = x / y
	case OP_MOD:
		r = math.Mod(x, y)
	case OP_POW:
		r = math.Pow(x, y)
	}
	if math.IsNaN(r) {
		return value.Udf, errs.New(errs.Arith, "%s produced NaN", op)
	}
	return value.Dec(r), nil
}

func asFloat(v value.Value) float64 {
	if v.IsInt() {
		return float64(v.AsInt())
	}
	return v.AsDec()
}

// bitBinOp dispatches a bitwise opcode, which spec §4.8 restricts to
// Int operands only.
func bitBinOp(op Op, a, b value.Value) (value.Value, error) {
	if !a.IsInt() || !b.IsInt() {
		return value.Udf, errs.New(errs.Arith, "%s requires Int operands, got %s and %s", op, a.Tag(), b.Tag())
	}
	x, y := a.AsInt(), b.AsInt()
	switch op {
	case OP_AND:
		return value.Int(x & y), nil
	case OP_XOR:
		return value.Int(x ^ y), nil
	case OP_OR:
		return value.Int(x | y), nil
	case OP_LSL:
		return value.Int(x << uint(y)), nil
	case OP_LSR:
		return value.Int(int64(uint64(x) >> uint(y))), nil
	}
	return value.Udf, errs.New(errs.Arith, "unhandled bitwise op %s", op)
}

// compare returns -1/0/1 per spec §4.8's ordering rule: numeric for
// Int/Dec, lexicographic byte-order for Sym/Str, Arith (undefined)
// otherwise.
func compare(a, b value.Value, syms *symtab.Table) (int, error) {
	switch {
	case a.IsNumeric() && b.IsNumeric():
		x, y := asFloat(a), asFloat(b)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		default:
			return 0, nil
		}
	case a.IsSym() && b.IsSym():
		return bytes.Compare(syms.Bytes(a.AsSym()), syms.Bytes(b.AsSym())), nil
	case a.IsObjKind(value.KindString) && b.IsObjKind(value.KindString):
		sa := a.AsObj().(*value.String).Bytes
		sb := b.AsObj().(*value.String).Bytes
		return bytes.Compare(sa, sb), nil
	default:
		return 0, errs.New(errs.Arith, "ordering undefined between %s and %s", a.Tag(), b.Tag())
	}
}

func boolVal(b bool) value.Value { return value.Bool(b) }
