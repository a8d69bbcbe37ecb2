package encode

import (
	"github.com/rv32ac/asmld/asmerr"
	"github.com/rv32ac/asmld/ast"
)

// isCompressible reports whether a restricted register (used by the CL/CS/
// CA/CB/CIW formats) fits in the x8-x15 window the C extension reserves for
// them.
func isCompressible(r uint32) bool { return r >= 8 && r <= 15 }

func fitsSigned(v int64, bits uint) bool {
	lo := -(int64(1) << (bits - 1))
	hi := int64(1)<<(bits-1) - 1
	return v >= lo && v <= hi
}

// tryCompress attempts to replace a just-encoded 32-bit word with its 16-bit
// compressed form (spec.md §4.4 "Compressed relaxation"). It never grows a
// line: on any mismatch it returns the original 4-byte encoding unchanged.
// word/fallback belong to the *uncompressed* encoding of mnemonic; decoding
// the operands back out of it (rather than re-deriving them) keeps this
// function a pure post-pass over the base encoder, matching how the teacher
// layers literal-pool handling on top of its base ARM encoder.
func tryCompress(c *context, ptr ast.LinePointer, mnemonic string, word uint32, fallback []byte) ([]byte, error) {
	if !c.flags.Compressed {
		return fallback, nil
	}

	opcode := word & 0x7F
	funct3 := (word >> 12) & 0x7
	rd := (word >> 7) & 0x1F
	rs1 := (word >> 15) & 0x1F
	rs2 := (word >> 20) & 0x1F
	imm12 := signExtend(word>>20, 12)

	var half uint16
	ok := false

	switch {
	case opcode == opOpImm && funct3 == f3Add && imm12 == 0 && rd != 0 && rs1 != 0 && rd != rs1:
		half, ok = crForm(0b1000, rd, rs1) // c.mv

	case opcode == opOpImm && funct3 == f3Add && rd == rs1 && rd != 0 && fitsSigned(imm12, 6):
		half, ok = ciImm(0b000, rd, imm12) // c.addi

	case opcode == opOpImm && funct3 == f3Add && rd != 0 && rs1 == 0 && fitsSigned(imm12, 6):
		half, ok = ciImm(0b010, rd, imm12) // c.li

	case opcode == opOp && funct3 == f3Add && word>>25 == f7Base && rd == rs1 && rd != 0 && rs2 != 0:
		half, ok = crForm(0b1001, rd, rs2) // c.add

	case opcode == opJalr && funct3 == 0 && rd == 0 && imm12 == 0 && rs1 != 0:
		if mnemonic == "ret" || rs1 == 1 {
			half, ok = crForm(0b1000, 1, 0) // c.jr ra == ret
		} else {
			half, ok = crForm(0b1000, rs1, 0) // c.jr
		}

	case opcode == opJalr && funct3 == 0 && rd == 1 && imm12 == 0 && rs1 != 0:
		half, ok = crForm(0b1001, rs1, 0) // c.jalr

	case opcode == opLoad && funct3 == f3Lw && isCompressible(rd) && isCompressible(rs1) && imm12 >= 0 && imm12 <= 124 && imm12%4 == 0:
		half, ok = clcsForm(0b010, rs1-8, rd-8, uint32(imm12))

	case opcode == opStore && funct3 == f3Sw:
		simm := signExtend((word>>25)<<5|((word>>7)&0x1F), 12)
		if isCompressible(rs1) && isCompressible(rs2) && simm >= 0 && simm <= 124 && simm%4 == 0 {
			half, ok = clcsForm(0b110, rs1-8, rs2-8, uint32(simm))
		}

	case opcode == opBranch && (funct3 == f3Beq || funct3 == f3Bne) && rs2 == 0 && isCompressible(rs1):
		off := branchImm(word)
		if fitsSigned(off, 9) {
			half, ok = cbForm(funct3 == f3Bne, rs1-8, off)
		}

	case opcode == opJal && rd == 0:
		off := jalImm(word)
		if fitsSigned(off, 12) {
			half, ok = cjForm(off)
		}
	}

	if !ok {
		return fallback, nil
	}
	c.result.UsedCompressed = true
	return putHalf(half), nil
}

func signExtend(v uint32, bits uint) int64 {
	shift := 32 - bits
	return int64(int32(v<<shift)) >> shift
}

func branchImm(word uint32) int64 {
	bit12 := (word >> 31) & 1
	bits10_5 := (word >> 25) & 0x3F
	bits4_1 := (word >> 8) & 0xF
	bit11 := (word >> 7) & 1
	u := bit12<<12 | bit11<<11 | bits10_5<<5 | bits4_1<<1
	return signExtend(u, 13)
}

func jalImm(word uint32) int64 {
	bit20 := (word >> 31) & 1
	bits19_12 := (word >> 12) & 0xFF
	bit11 := (word >> 20) & 1
	bits10_1 := (word >> 21) & 0x3FF
	u := bit20<<20 | bits19_12<<12 | bit11<<11 | bits10_1<<1
	return signExtend(u, 21)
}

// ciImm builds a CI-format instruction: funct3[15:13] | imm[5]@12 | rd[11:7]
// | imm[4:0][6:2] | op=01.
func ciImm(funct3 uint32, rd uint32, imm int64) (uint16, bool) {
	u := uint32(imm) & 0x3F
	word := funct3<<13 | (u>>5&1)<<12 | rd<<7 | (u&0x1F)<<2 | 0b01
	return uint16(word), true
}

// crForm builds a CR-format instruction: funct4[15:12] | rd/rs1[11:7] |
// rs2[6:2] | op=10.
func crForm(funct4, rdrs1, rs2 uint32) (uint16, bool) {
	word := funct4<<12 | rdrs1<<7 | rs2<<2 | 0b10
	return uint16(word), true
}

// clcsForm builds CL (funct3=010 for lw) / CS (funct3=110 for sw): funct3 |
// imm[5:3]@12:10 | rs1'[9:7] | imm[2|6]@6:5 | rd'/rs2'[4:2] | op=00.
func clcsForm(funct3, rs1p, rdp uint32, off uint32) (uint16, bool) {
	imm53 := (off >> 3) & 0x7
	imm2 := (off >> 2) & 1
	imm6 := (off >> 6) & 1
	word := funct3<<13 | imm53<<10 | rs1p<<7 | imm2<<6 | imm6<<5 | rdp<<2 | 0b00
	return uint16(word), true
}

// cbForm builds a C.BEQZ/C.BNEZ instruction: funct3[15:13] | off[8]@12 |
// off[4:3]@11:10 | rs1'[9:7] | off[7:6]@6:5 | off[2:1]@4:3 | off[5]@2 | op=01.
func cbForm(isBnez bool, rs1p uint32, off int64) (uint16, bool) {
	funct3 := uint32(0b110)
	if isBnez {
		funct3 = 0b111
	}
	u := uint32(off)
	bit8 := (u >> 8) & 1
	bits43 := (u >> 3) & 0x3
	bits76 := (u >> 6) & 0x3
	bits21 := (u >> 1) & 0x3
	bit5 := (u >> 5) & 1
	word := funct3<<13 | bit8<<12 | bits43<<10 | rs1p<<7 | bits76<<5 | bits21<<3 | bit5<<2 | 0b01
	return uint16(word), true
}

// caForm builds a CA-format instruction (c.sub/c.xor/c.or/c.and):
// funct6=100011 | rd'[9:7] | funct2[6:5] | rs2'[4:2] | op=01.
func caForm(funct2, rdp, rs2p uint32) (uint16, bool) {
	word := uint32(0b100011)<<10 | rdp<<7 | funct2<<5 | rs2p<<2 | 0b01
	return uint16(word), true
}

// cbImm builds the CB immediate sub-format used by c.andi/c.srli/c.srai:
// funct3=100 | imm[5]@12 | funct2[11:10] | rd'[9:7] | imm[4:0][6:2] | op=01.
func cbImm(funct2, rdp uint32, imm int64) (uint16, bool) {
	u := uint32(imm) & 0x3F
	word := uint32(0b100)<<13 | (u>>5&1)<<12 | funct2<<10 | rdp<<7 | (u&0x1F)<<2 | 0b01
	return uint16(word), true
}

// ciSlli builds c.slli: funct3=000 | shamt[5]@12 | rd[11:7] | shamt[4:0][6:2]
// | op=10.
func ciSlli(rd uint32, shamt int64) (uint16, bool) {
	u := uint32(shamt) & 0x3F
	word := (u>>5&1)<<12 | rd<<7 | (u&0x1F)<<2 | 0b10
	return uint16(word), true
}

// encodeExplicitCompressed encodes a user-written c.* mnemonic. Unlike
// tryCompress it has no 32-bit fallback to return to: operands outside the
// compressed field ranges are an UnencodableInstruction error (spec.md §7).
// Recognized mnemonics never change size across iterations — they are
// always exactly two bytes or a fatal error.
func (c *context) encodeExplicitCompressed(ptr ast.LinePointer, in *ast.Instruction) ([]byte, bool, error) {
	m := in.Mnemonic

	bad := func(format string, args ...any) ([]byte, bool, error) {
		return nil, true, asmerr.New(asmerr.UnencodableInstruction, asmerr.Position{}, format, args...)
	}
	emit := func(h uint16) ([]byte, bool, error) {
		c.result.UsedCompressed = true
		return putHalf(h), true, nil
	}

	switch m {
	case "c.nop":
		return emit(0x0001)

	case "c.addi", "c.li":
		rd := reg(opReg(in.Operands[0]))
		v, err := c.opValue(ptr, in.Operands[1])
		if err != nil {
			return nil, true, err
		}
		if rd == 0 || !fitsSigned(v.Int, 6) {
			return bad("%s: operand out of compressed range", m)
		}
		f3 := uint32(0b000)
		if m == "c.li" {
			f3 = 0b010
		}
		h, _ := ciImm(f3, rd, v.Int)
		return emit(h)

	case "c.mv", "c.add":
		rd, rs := reg(opReg(in.Operands[0])), reg(opReg(in.Operands[1]))
		if rd == 0 || rs == 0 {
			return bad("%s: x0 not encodable", m)
		}
		f4 := uint32(0b1000)
		if m == "c.add" {
			f4 = 0b1001
		}
		h, _ := crForm(f4, rd, rs)
		return emit(h)

	case "c.jr", "c.jalr":
		rs := reg(opReg(in.Operands[0]))
		if rs == 0 {
			return bad("%s: x0 not encodable", m)
		}
		f4 := uint32(0b1000)
		if m == "c.jalr" {
			f4 = 0b1001
		}
		h, _ := crForm(f4, rs, 0)
		return emit(h)

	case "c.lw", "c.sw":
		rd := reg(opReg(in.Operands[0]))
		mem := in.Operands[1]
		base := reg(mem.Reg)
		var off int64
		if mem.Expr != nil {
			v, err := c.opValue(ptr, mem)
			if err != nil {
				return nil, true, err
			}
			off = v.Int
		}
		if !isCompressible(rd) || !isCompressible(base) || off < 0 || off > 124 || off%4 != 0 {
			return bad("%s: operands out of compressed range", m)
		}
		f3 := uint32(0b010)
		if m == "c.sw" {
			f3 = 0b110
		}
		h, _ := clcsForm(f3, base-8, rd-8, uint32(off))
		return emit(h)

	case "c.beqz", "c.bnez":
		rs := reg(opReg(in.Operands[0]))
		v, err := c.opValue(ptr, in.Operands[1])
		if err != nil {
			return nil, true, err
		}
		rel := v.Int - c.lay.Address(ptr)
		if !isCompressible(rs) || !fitsSigned(rel, 9) || rel%2 != 0 {
			return bad("%s: target out of compressed branch range", m)
		}
		h, _ := cbForm(m == "c.bnez", rs-8, rel)
		return emit(h)

	case "c.j":
		v, err := c.opValue(ptr, in.Operands[0])
		if err != nil {
			return nil, true, err
		}
		rel := v.Int - c.lay.Address(ptr)
		if !fitsSigned(rel, 12) || rel%2 != 0 {
			return bad("c.j: target out of compressed jump range")
		}
		h, _ := cjForm(rel)
		return emit(h)

	case "c.sub", "c.xor", "c.or", "c.and":
		rd, rs2 := reg(opReg(in.Operands[0])), reg(opReg(in.Operands[1]))
		if !isCompressible(rd) || !isCompressible(rs2) {
			return bad("%s: registers must be x8-x15", m)
		}
		var f2 uint32
		switch m {
		case "c.sub":
			f2 = 0b00
		case "c.xor":
			f2 = 0b01
		case "c.or":
			f2 = 0b10
		case "c.and":
			f2 = 0b11
		}
		h, _ := caForm(f2, rd-8, rs2-8)
		return emit(h)

	case "c.andi":
		rd := reg(opReg(in.Operands[0]))
		v, err := c.opValue(ptr, in.Operands[1])
		if err != nil {
			return nil, true, err
		}
		if !isCompressible(rd) || !fitsSigned(v.Int, 6) {
			return bad("c.andi: operands out of compressed range")
		}
		h, _ := cbImm(0b10, rd-8, v.Int)
		return emit(h)

	case "c.srli", "c.srai":
		rd := reg(opReg(in.Operands[0]))
		v, err := c.opValue(ptr, in.Operands[1])
		if err != nil {
			return nil, true, err
		}
		if !isCompressible(rd) || v.Int < 1 || v.Int > 31 {
			return bad("%s: operands out of compressed range", m)
		}
		f2 := uint32(0b00)
		if m == "c.srai" {
			f2 = 0b01
		}
		h, _ := cbImm(f2, rd-8, v.Int)
		return emit(h)

	case "c.slli":
		rd := reg(opReg(in.Operands[0]))
		v, err := c.opValue(ptr, in.Operands[1])
		if err != nil {
			return nil, true, err
		}
		if rd == 0 || v.Int < 1 || v.Int > 31 {
			return bad("c.slli: operands out of compressed range")
		}
		h, _ := ciSlli(rd, v.Int)
		return emit(h)
	}
	return nil, false, nil
}

// cjForm builds a C.J instruction: funct3=101 | scrambled 11-bit offset |
// op=01.
func cjForm(off int64) (uint16, bool) {
	u := uint32(off)
	bit11 := (u >> 11) & 1
	bit4 := (u >> 4) & 1
	bits98 := (u >> 8) & 0x3
	bit10 := (u >> 10) & 1
	bit6 := (u >> 6) & 1
	bit7 := (u >> 7) & 1
	bits31 := (u >> 1) & 0x7
	bit5 := (u >> 5) & 1
	imm := bit11<<10 | bit4<<9 | bits98<<7 | bit10<<6 | bit6<<5 | bit7<<4 | bits31<<1 | bit5
	word := uint32(0b101)<<13 | imm<<2 | 0b01
	return uint16(word), true
}
