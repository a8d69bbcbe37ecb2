package encode

import (
	"github.com/rv32ac/asmld/asmerr"
	"github.com/rv32ac/asmld/ast"
)

// expandPseudo handles every pseudo-instruction mnemonic (spec.md §4.4). It
// returns ok=false for anything it doesn't recognize, so the caller falls
// through to the base/M/A dispatch table.
func (c *context) expandPseudo(ptr ast.LinePointer, in *ast.Instruction) ([]byte, bool, error) {
	switch in.Mnemonic {
	case "nop":
		return c.finishSimple(ptr, "nop", iType(0, 0, f3Add, 0, opOpImm))

	case "mv":
		rd, rs := opReg(in.Operands[0]), opReg(in.Operands[1])
		return c.finishSimple(ptr, in.Mnemonic, iType(0, reg(rs), f3Add, reg(rd), opOpImm))

	case "not":
		rd, rs := opReg(in.Operands[0]), opReg(in.Operands[1])
		return c.finishSimple(ptr, in.Mnemonic, iType(-1, reg(rs), f3Xor, reg(rd), opOpImm))

	case "neg":
		rd, rs := opReg(in.Operands[0]), opReg(in.Operands[1])
		return putWord(rType(f7Alt, reg(rs), 0, f3Add, reg(rd), opOp)), true, nil

	case "ret":
		return c.finishSimple(ptr, "ret", iType(0, 1, 0, 0, opJalr))

	case "j":
		v, err := c.opValue(ptr, in.Operands[0])
		if err != nil {
			return nil, true, err
		}
		rel := v.Int - c.lay.Address(ptr)
		if err := checkRange(rel, immJ21Min, immJ21Max, asmerr.Position{}, "jal"); err != nil {
			return nil, true, err
		}
		if err := checkEven(rel, asmerr.Position{}, "jal"); err != nil {
			return nil, true, err
		}
		return c.finishSimple(ptr, in.Mnemonic, jType(int32(rel), 0, opJal))

	case "beqz", "bnez", "bltz", "bgez", "blez", "bgtz":
		return c.expandBranchZero(ptr, in)

	case "li":
		return c.expandLi(ptr, in)

	case "la":
		return c.expandLa(ptr, in)

	case "call":
		return c.expandCallTail(ptr, in, 1) // link register ra

	case "tail":
		return c.expandCallTail(ptr, in, 0) // link register x0
	}
	return nil, false, nil
}

func (c *context) finishSimple(ptr ast.LinePointer, mnemonic string, word uint32) ([]byte, bool, error) {
	b, err := tryCompress(c, ptr, mnemonic, word, putWord(word))
	return b, true, err
}

func (c *context) expandBranchZero(ptr ast.LinePointer, in *ast.Instruction) ([]byte, bool, error) {
	var f3 uint32
	swap := false
	switch in.Mnemonic {
	case "beqz":
		f3 = f3Beq
	case "bnez":
		f3 = f3Bne
	case "bltz":
		f3 = f3Blt
	case "bgez":
		f3 = f3Bge
	case "blez":
		f3 = f3Bge
		swap = true
	case "bgtz":
		f3 = f3Blt
		swap = true
	}
	rs := opReg(in.Operands[0])
	v, err := c.opValue(ptr, in.Operands[1])
	if err != nil {
		return nil, true, err
	}
	rel := v.Int - c.lay.Address(ptr)
	if err := checkRange(rel, immB13Min, immB13Max, asmerr.Position{}, "branch"); err != nil {
		return nil, true, err
	}
	if err := checkEven(rel, asmerr.Position{}, "branch"); err != nil {
		return nil, true, err
	}
	var word uint32
	if swap {
		// rs lands in rs2, so the compressed beqz/bnez patterns never apply.
		word = bType(int32(rel), 0, reg(rs), f3, opBranch)
	} else {
		word = bType(int32(rel), reg(rs), 0, f3, opBranch)
	}
	return c.finishSimple(ptr, in.Mnemonic, word)
}

// expandLi implements `li rd, imm`: a single ADDI when imm fits in 12 signed
// bits, else a LUI+ADDI pair using the 0x800-rounding convention (spec.md
// §4.4).
func (c *context) expandLi(ptr ast.LinePointer, in *ast.Instruction) ([]byte, bool, error) {
	rd := opReg(in.Operands[0])
	v, err := c.opValue(ptr, in.Operands[1])
	if err != nil {
		return nil, true, err
	}
	imm := v.Int

	if imm >= immI12Min && imm <= immI12Max {
		return c.finishSimple(ptr, in.Mnemonic, iType(int32(imm), 0, f3Add, reg(rd), opOpImm))
	}

	upper20 := (imm + 0x800) >> 12
	lower12 := imm - (upper20 << 12)
	out := putWord(uType(uint32(upper20)&0xFFFFF, reg(rd), opLui))
	out = append(out, putWord(iType(int32(lower12), reg(rd), f3Add, reg(rd), opOpImm))...)
	return out, true, nil
}

// expandLa implements `la rd, symbol`: a GP-relative ADDI when Relax.GP
// applies and the offset fits in 12 bits, else an AUIPC+ADDI pair.
func (c *context) expandLa(ptr ast.LinePointer, in *ast.Instruction) ([]byte, bool, error) {
	rd := opReg(in.Operands[0])
	v, err := c.opValue(ptr, in.Operands[1])
	if err != nil {
		return nil, true, err
	}

	if c.flags.GP {
		gpOffset := v.Int - c.lay.GlobalPointer()
		if gpOffset >= immI12Min && gpOffset <= immI12Max {
			word := iType(int32(gpOffset), reg(ast.RegGP), f3Add, reg(rd), opOpImm)
			return c.finishSimple(ptr, in.Mnemonic, word)
		}
	}

	pc := c.lay.Address(ptr)
	delta := v.Int - pc
	upper20 := (delta + 0x800) >> 12
	lower12 := delta - (upper20 << 12)
	out := putWord(uType(uint32(upper20)&0xFFFFF, reg(rd), opAuipc))
	out = append(out, putWord(iType(int32(lower12), reg(rd), f3Add, reg(rd), opOpImm))...)
	return out, true, nil
}

// expandCallTail implements `call target` / `tail target`: a single JAL when
// Relax.Pseudo applies and the target is in range, else an AUIPC+JALR pair.
// link is 1 (ra) for call, 0 (x0) for tail.
func (c *context) expandCallTail(ptr ast.LinePointer, in *ast.Instruction, link uint32) ([]byte, bool, error) {
	v, err := c.opValue(ptr, in.Operands[0])
	if err != nil {
		return nil, true, err
	}
	pc := c.lay.Address(ptr)
	rel := v.Int - pc

	if c.flags.Pseudo && rel >= immJ21Min && rel <= immJ21Max && rel%2 == 0 {
		return c.finishSimple(ptr, in.Mnemonic, jType(int32(rel), link, opJal))
	}

	upper20 := (rel + 0x800) >> 12
	lower12 := rel - (upper20 << 12)
	hiReg := link
	if link == 0 {
		hiReg = reg(ast.Register(6)) // t1, per spec.md "tail" note
	}
	out := putWord(uType(uint32(upper20)&0xFFFFF, hiReg, opAuipc))
	out = append(out, putWord(iType(int32(lower12), hiReg, f3Add, link, opJalr))...)
	return out, true, nil
}
