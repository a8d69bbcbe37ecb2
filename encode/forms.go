package encode

import (
	"github.com/rv32ac/asmld/asmerr"
	"github.com/rv32ac/asmld/ast"
)

func rType(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func iType(imm int32, rs1, funct3, rd, opcode uint32) uint32 {
	return uint32(imm&0xFFF)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func iTypeShift(funct7, shamt, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | (shamt&0x1F)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func sType(imm int32, rs2, rs1, funct3, opcode uint32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7F)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1F)<<7 | opcode
}

func bType(imm int32, rs2, rs1, funct3, opcode uint32) uint32 {
	u := uint32(imm)
	bit12 := (u >> 12) & 1
	bit11 := (u >> 11) & 1
	bits10_5 := (u >> 5) & 0x3F
	bits4_1 := (u >> 1) & 0xF
	return bit12<<31 | bits10_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | bits4_1<<8 | bit11<<7 | opcode
}

func uType(imm20 uint32, rd, opcode uint32) uint32 {
	return (imm20 & 0xFFFFF) << 12 | rd<<7 | opcode
}

func jType(imm int32, rd, opcode uint32) uint32 {
	u := uint32(imm)
	bit20 := (u >> 20) & 1
	bits10_1 := (u >> 1) & 0x3FF
	bit11 := (u >> 11) & 1
	bits19_12 := (u >> 12) & 0xFF
	return bit20<<31 | bits10_1<<21 | bit11<<20 | bits19_12<<12 | rd<<7 | opcode
}

func amoType(funct5 uint32, aq, rl bool, rs2, rs1, rd, opcode uint32) uint32 {
	f7 := funct5 << 2
	if aq {
		f7 |= 0b10
	}
	if rl {
		f7 |= 0b01
	}
	return rType(f7, rs2, rs1, f3Amo, rd, opcode)
}

func reg(r ast.Register) uint32 { return uint32(r) }

func checkRange(v, lo, hi int64, pos asmerr.Position, field string) error {
	if v < lo || v > hi {
		return asmerr.New(asmerr.ImmediateOutOfRange, pos,
			"%s immediate %d out of range [%d,%d]", field, v, lo, hi)
	}
	return nil
}

func checkEven(v int64, pos asmerr.Position, field string) error {
	if v%2 != 0 {
		return asmerr.New(asmerr.ImmediateOutOfRange, pos, "%s target %d must be even", field, v)
	}
	return nil
}

func putU32LE(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func putU16LE(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}
