package cil

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Instruction is one decoded opcode plus its raw operand bytes and the
// offset it was decoded from. Length lets a caller advance its own program
// counter; this type carries no notion of "next" itself, since branches
// may redirect the PC (spec §4.2 — the sequence must be restartable at the
// PC, not a frozen list).
type Instruction struct {
	Op      Opcode
	Offset  int
	operand []byte
}

// Length is the total byte length of this instruction (opcode + operand).
func (i Instruction) Length() int {
	return 1 + len(i.operand)
}

// Decode reads one instruction starting at offset in code. Opcodes with an
// 0xFE prefix would select the extended space; none of the opcodes this
// interpreter implements live there, so a leading 0xFE is unimplemented by
// construction, not specially decoded.
func Decode(code []byte, offset int) (Instruction, error) {
	if offset < 0 || offset >= len(code) {
		return Instruction{}, fmt.Errorf("cil: decode at %d: %w", offset, ErrTruncated)
	}
	op := Opcode(code[offset])
	info, ok := opcodeTable[op]
	if !ok {
		return Instruction{Op: op, Offset: offset}, nil // caller (dispatch) reports UnimplementedOpcode
	}
	width := int(info.OperandWidth)
	if offset+1+width > len(code) {
		return Instruction{}, fmt.Errorf("cil: decode %s at %d: %w", info.Name, offset, ErrTruncated)
	}
	return Instruction{Op: op, Offset: offset, operand: code[offset+1 : offset+1+width]}, nil
}

// ImplicitLocal returns the fixed local-slot index a short-form opcode
// (Ldloc_0, Stloc_2, Ldarg_1, ...) implies, or -1 if this opcode takes its
// index from an operand or has none.
func (i Instruction) ImplicitLocal() int {
	info, ok := opcodeTable[i.Op]
	if !ok {
		return -1
	}
	return info.ImplicitLocal
}

// Int8Operand reads a signed 8-bit operand (Ldc_i4_s, Br_s).
func (i Instruction) Int8Operand() int8 {
	return int8(i.operand[0])
}

// Uint8Operand reads an unsigned 8-bit operand (Ldarg_s, Ldloc_s, Ldloca_s, Stloc_s).
func (i Instruction) Uint8Operand() uint8 {
	return i.operand[0]
}

// Int32Operand reads a signed 32-bit little-endian operand (Ldc_i4, Br).
func (i Instruction) Int32Operand() int32 {
	return int32(binary.LittleEndian.Uint32(i.operand))
}

// Int64Operand reads a signed 64-bit little-endian operand (Ldc_i8).
func (i Instruction) Int64Operand() int64 {
	return int64(binary.LittleEndian.Uint64(i.operand))
}

// Float32Operand reads an IEEE-754 single (Ldc_r4).
func (i Instruction) Float32Operand() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(i.operand))
}

// Float64Operand reads an IEEE-754 double (Ldc_r8).
func (i Instruction) Float64Operand() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(i.operand))
}

// TokenOperand reads a 32-bit metadata token operand (Call, Newobj, Ldstr,
// Ldsfld, Ldsflda, Stsfld). Returned as a raw uint32 so this package does
// not need to depend on the metadata package's Token type.
func (i Instruction) TokenOperand() uint32 {
	return binary.LittleEndian.Uint32(i.operand)
}

// Disassemble renders every instruction in code, one per line, in the
// style of the teacher's bytecode.go Disassemble helper — used only for
// diagnostics, never for control flow.
func Disassemble(code []byte) string {
	out := ""
	offset := 0
	for offset < len(code) {
		instr, err := Decode(code, offset)
		if err != nil {
			out += fmt.Sprintf("%04x: <decode error: %v>\n", offset, err)
			break
		}
		info, ok := opcodeTable[instr.Op]
		name := "unknown"
		if ok {
			name = info.Name
		}
		out += fmt.Sprintf("%04x: %s\n", offset, name)
		offset += instr.Length()
	}
	return out
}
