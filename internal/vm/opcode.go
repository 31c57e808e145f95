// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// Op is a single bytecode opcode (spec §4.8). Each Instruction pairs an
// Op with operand A (only MAKE_REC also uses B); instructions such as
// DEF_SIG that need two immediates (label + param count) pack both into
// A via packOperand/unpackOperand.
type Op uint8

const (
	OP_NOP Op = iota

	// Load/push.
	OP_LOAD_NIL
	OP_LOAD_UDF
	OP_LOAD_LOG  // A: 0 or 1
	OP_LOAD_INT  // A: signed immediate
	OP_GET_CONST // A: constant pool index

	// Access.
	OP_GET_LOCAL
	OP_GET_UPVAL
	OP_GET_CLOSED
	OP_GET_GLOBAL
	OP_GET_FIELD
	OP_REF_LOCAL
	OP_REF_UPVAL
	OP_REF_CLOSED
	OP_REF_GLOBAL
	OP_REF_FIELD

	// Assign.
	OP_DEF_ONE
	OP_SET_ONE
	OP_DEF_TUP  // A: arity
	OP_DEF_VTUP // A: arity (last collects the tail)
	OP_DEF_REC  // A: field count
	OP_DEF_VREC // A: field count (last collects the tail)
	OP_SET_TUP
	OP_SET_VTUP
	OP_SET_REC
	OP_SET_VREC
	OP_REC_DEF_ONE
	OP_REC_SET_ONE
	OP_REC_DEF_TUP
	OP_REC_DEF_VTUP
	OP_REC_DEF_REC
	OP_REC_DEF_VREC

	// Build.
	OP_MAKE_TUP  // A: arity
	OP_MAKE_VTUP // A: arity (top is the splice tail)
	OP_MAKE_REC  // A: field count, B: RecProtos index, or -1 for a fresh Index
	OP_MAKE_VREC // A: field count (top is the splice tail)
	OP_MAKE_CLS  // A: upvalue count

	// Control.
	OP_JUMP     // A: label pc
	OP_ALT_JUMP // A: label pc
	OP_AND_JUMP // A: label pc
	OP_OR_JUMP  // A: label pc
	OP_UDF_JUMP // A: label pc
	OP_CALL
	OP_RETURN
	OP_DEF_SIG  // A: packed(label pc, param count)
	OP_DEF_VSIG // A: packed(label pc, param count)

	// Arithmetic/logical.
	OP_NEG
	OP_NOT
	OP_FIX
	OP_POW
	OP_MUL
	OP_DIV
	OP_MOD
	OP_ADD
	OP_SUB
	OP_LSL
	OP_LSR
	OP_AND
	OP_XOR
	OP_OR
	OP_IMT
	OP_ILT
	OP_IME
	OP_ILE
	OP_IET
	OP_NET
	OP_IETU

	// Misc.
	OP_POP
	OP_DUP
)

var opNames = [...]string{
	OP_NOP: "NOP",

	OP_LOAD_NIL:  "LOAD_NIL",
	OP_LOAD_UDF:  "LOAD_UDF",
	OP_LOAD_LOG:  "LOAD_LOG",
	OP_LOAD_INT:  "LOAD_INT",
	OP_GET_CONST: "GET_CONST",

	OP_GET_LOCAL:  "GET_LOCAL",
	OP_GET_UPVAL:  "GET_UPVAL",
	OP_GET_CLOSED: "GET_CLOSED",
	OP_GET_GLOBAL: "GET_GLOBAL",
	OP_GET_FIELD:  "GET_FIELD",
	OP_REF_LOCAL:  "REF_LOCAL",
	OP_REF_UPVAL:  "REF_UPVAL",
	OP_REF_CLOSED: "REF_CLOSED",
	OP_REF_GLOBAL: "REF_GLOBAL",
	OP_REF_FIELD:  "REF_FIELD",

	OP_DEF_ONE:      "DEF_ONE",
	OP_SET_ONE:      "SET_ONE",
	OP_DEF_TUP:      "DEF_TUP",
	OP_DEF_VTUP:     "DEF_VTUP",
	OP_DEF_REC:      "DEF_REC",
	OP_DEF_VREC:     "DEF_VREC",
	OP_SET_TUP:      "SET_TUP",
	OP_SET_VTUP:     "SET_VTUP",
	OP_SET_REC:      "SET_REC",
	OP_SET_VREC:     "SET_VREC",
	OP_REC_DEF_ONE:  "REC_DEF_ONE",
	OP_REC_SET_ONE:  "REC_SET_ONE",
	OP_REC_DEF_TUP:  "REC_DEF_TUP",
	OP_REC_DEF_VTUP: "REC_DEF_VTUP",
	OP_REC_DEF_REC:  "REC_DEF_REC",
	OP_REC_DEF_VREC: "REC_DEF_VREC",

	OP_MAKE_TUP:  "MAKE_TUP",
	OP_MAKE_VTUP: "MAKE_VTUP",
	OP_MAKE_REC:  "MAKE_REC",
	OP_MAKE_VREC: "MAKE_VREC",
	OP_MAKE_CLS:  "MAKE_CLS",

	OP_JUMP:     "JUMP",
	OP_ALT_JUMP: "ALT_JUMP",
	OP_AND_JUMP: "AND_JUMP",
	OP_OR_JUMP:  "OR_JUMP",
	OP_UDF_JUMP: "UDF_JUMP",
	OP_CALL:     "CALL",
	OP_RETURN:   "RETURN",
	OP_DEF_SIG:  "DEF_SIG",
	OP_DEF_VSIG: "DEF_VSIG",

	OP_NEG: "NEG",
	OP_NOT: "NOT",
	OP_FIX: "FIX",
	OP_POW: "POW",
	OP_MUL: "MUL",
	OP_DIV: "DIV",
	OP_MOD: "MOD",
	OP_ADD: "ADD",
	OP_SUB: "SUB",
	OP_LSL: "LSL",
	OP_LSR: "LSR",
	OP_AND: "AND",
	OP_XOR: "XOR",
	OP_OR:  "OR",
	OP_IMT: "IMT",
	OP_ILT: "ILT",
	OP_IME: "IME",
	OP_ILE: "ILE",
	OP_IET: "IET",
	OP_NET: "NET",
	OP_IETU: "IETU",

	OP_POP: "POP",
	OP_DUP: "DUP",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "OP(?)"
}

// Instruction is one compact (opcode, operand) pair (spec §4.7:
// "assembles instructions, each a compact (opcode, operand) pair"). B
// is a second operand used only by the handful of opcodes that need
// one (MAKE_REC's record-shape cache slot); every other opcode leaves
// it zero.
type Instruction struct {
	Op Op
	A  int32
	B  int32
}

// packOperand combines a label pc and a small count into one int32, for
// opcodes like DEF_SIG that need two immediates (spec §4.10).
func packOperand(pc int32, n int32) int32 { return (pc << 8) | (n & 0xff) }

func unpackOperand(packed int32) (pc int32, n int32) {
	return packed >> 8, packed & 0xff
}
