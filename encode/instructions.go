package encode

import (
	"strings"

	"github.com/rv32ac/asmld/asmerr"
	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/eval"
)

var rTypeOps = map[string][2]uint32{ // mnemonic -> {funct3, funct7}
	"add": {f3Add, f7Base}, "sub": {f3Add, f7Alt},
	"sll": {f3Sll, f7Base}, "slt": {f3Slt, f7Base}, "sltu": {f3Sltu, f7Base},
	"xor": {f3Xor, f7Base}, "srl": {f3Srl, f7Base}, "sra": {f3Srl, f7Alt},
	"or": {f3Or, f7Base}, "and": {f3And, f7Base},
	"mul": {f3Mul, f7M}, "mulh": {f3Mulh, f7M}, "mulhsu": {f3Mulhsu, f7M}, "mulhu": {f3Mulhu, f7M},
	"div": {f3Div, f7M}, "divu": {f3Divu, f7M}, "rem": {f3Rem, f7M}, "remu": {f3Remu, f7M},
}

var iArithOps = map[string]uint32{ // funct3
	"addi": f3Add, "slti": f3Slt, "sltiu": f3Sltu, "xori": f3Xor, "ori": f3Or, "andi": f3And,
}

var iShiftOps = map[string][2]uint32{ // funct3, funct7
	"slli": {f3Sll, f7Base}, "srli": {f3Srl, f7Base}, "srai": {f3Srl, f7Alt},
}

var loadOps = map[string]uint32{"lb": f3Lb, "lh": f3Lh, "lw": f3Lw, "lbu": f3Lbu, "lhu": f3Lhu}
var storeOps = map[string]uint32{"sb": f3Sb, "sh": f3Sh, "sw": f3Sw}
var branchOps = map[string]uint32{"beq": f3Beq, "bne": f3Bne, "blt": f3Blt, "bge": f3Bge, "bltu": f3Bltu, "bgeu": f3Bgeu}

var amoOps = map[string]uint32{
	"amoswap.w": amoSwap, "amoadd.w": amoAdd, "amoxor.w": amoXor, "amoand.w": amoAnd,
	"amoor.w": amoOr, "amomin.w": amoMin, "amomax.w": amoMax, "amominu.w": amoMinu, "amomaxu.w": amoMaxu,
}

func (c *context) encodeInstruction(ptr ast.LinePointer, in *ast.Instruction) ([]byte, error) {
	m := in.Mnemonic

	if expanded, ok, err := c.expandPseudo(ptr, in); ok || err != nil {
		return expanded, err
	}

	if strings.HasPrefix(m, "c.") {
		b, ok, err := c.encodeExplicitCompressed(ptr, in)
		if ok || err != nil {
			return b, err
		}
		return nil, asmerr.New(asmerr.UnencodableInstruction, asmerr.Position{},
			"unknown compressed mnemonic %q", m)
	}

	if fields, ok := rTypeOps[m]; ok {
		rd, rs1, rs2 := opReg(in.Operands[0]), opReg(in.Operands[1]), opReg(in.Operands[2])
		word := rType(fields[1], reg(rs2), reg(rs1), fields[0], reg(rd), opOp)
		return tryCompress(c, ptr, m, word, putWord(word))
	}

	if f3, ok := iArithOps[m]; ok {
		rd, rs1 := opReg(in.Operands[0]), opReg(in.Operands[1])
		v, err := c.opValue(ptr, in.Operands[2])
		if err != nil {
			return nil, err
		}
		if err := checkRange(v.Int, immI12Min, immI12Max, asmerr.Position{}, "I-type"); err != nil {
			return nil, err
		}
		word := iType(int32(v.Int), reg(rs1), f3, reg(rd), opOpImm)
		return tryCompress(c, ptr, m, word, putWord(word))
	}

	if fields, ok := iShiftOps[m]; ok {
		rd, rs1 := opReg(in.Operands[0]), opReg(in.Operands[1])
		v, err := c.opValue(ptr, in.Operands[2])
		if err != nil {
			return nil, err
		}
		if err := checkRange(v.Int, 0, 31, asmerr.Position{}, "shamt"); err != nil {
			return nil, err
		}
		word := iTypeShift(fields[1], uint32(v.Int), reg(rs1), fields[0], reg(rd), opOpImm)
		return tryCompress(c, ptr, m, word, putWord(word))
	}

	if f3, ok := loadOps[m]; ok {
		rd, base, off, err := c.memOperand(ptr, in)
		if err != nil {
			return nil, err
		}
		if err := checkRange(off, immI12Min, immI12Max, asmerr.Position{}, "load offset"); err != nil {
			return nil, err
		}
		word := iType(int32(off), reg(base), f3, reg(rd), opLoad)
		return tryCompress(c, ptr, m, word, putWord(word))
	}

	if f3, ok := storeOps[m]; ok {
		rs2, base, off, err := c.memOperand(ptr, in)
		if err != nil {
			return nil, err
		}
		if err := checkRange(off, immI12Min, immI12Max, asmerr.Position{}, "store offset"); err != nil {
			return nil, err
		}
		word := sType(int32(off), reg(rs2), reg(base), f3, opStore)
		return tryCompress(c, ptr, m, word, putWord(word))
	}

	if f3, ok := branchOps[m]; ok {
		rs1, rs2 := opReg(in.Operands[0]), opReg(in.Operands[1])
		v, err := c.opValue(ptr, in.Operands[2])
		if err != nil {
			return nil, err
		}
		rel := v.Int - c.lay.Address(ptr)
		if err := checkRange(rel, immB13Min, immB13Max, asmerr.Position{}, "branch"); err != nil {
			return nil, err
		}
		if err := checkEven(rel, asmerr.Position{}, "branch"); err != nil {
			return nil, err
		}
		word := bType(int32(rel), reg(rs2), reg(rs1), f3, opBranch)
		return tryCompress(c, ptr, m, word, putWord(word))
	}

	if m == "lui" || m == "auipc" {
		rd := opReg(in.Operands[0])
		v, err := c.opValue(ptr, in.Operands[1])
		if err != nil {
			return nil, err
		}
		if err := checkRange(v.Int, 0, immU20Max, asmerr.Position{}, "U-type"); err != nil {
			return nil, err
		}
		op := uint32(opLui)
		if m == "auipc" {
			op = opAuipc
		}
		return putWord(uType(uint32(v.Int), reg(rd), op)), nil
	}

	if m == "jalr" {
		rd, base, off, err := c.jalrOperands(ptr, in)
		if err != nil {
			return nil, err
		}
		if err := checkRange(off, immI12Min, immI12Max, asmerr.Position{}, "jalr offset"); err != nil {
			return nil, err
		}
		word := iType(int32(off), reg(base), 0, reg(rd), opJalr)
		return tryCompress(c, ptr, m, word, putWord(word))
	}

	if m == "jal" {
		rd := opReg(in.Operands[0])
		v, err := c.opValue(ptr, in.Operands[1])
		if err != nil {
			return nil, err
		}
		rel := v.Int - c.lay.Address(ptr)
		if err := checkRange(rel, immJ21Min, immJ21Max, asmerr.Position{}, "jal"); err != nil {
			return nil, err
		}
		if err := checkEven(rel, asmerr.Position{}, "jal"); err != nil {
			return nil, err
		}
		word := jType(int32(rel), reg(rd), opJal)
		return tryCompress(c, ptr, m, word, putWord(word))
	}

	if m == "ecall" {
		return putWord(iType(0, 0, 0, 0, opSystem)), nil
	}
	if m == "ebreak" {
		return putWord(iType(1, 0, 0, 0, opSystem)), nil
	}

	if funct5, ok := amoOps[m]; ok {
		rd, rs1, rs2, aq, rl := c.amoOperands(in)
		word := amoType(funct5, aq, rl, reg(rs2), reg(rs1), reg(rd), opAmo)
		return putWord(word), nil
	}
	if m == "lr.w" {
		rd, rs1, aq, rl := c.lrOperands(in)
		word := amoType(amoLR, aq, rl, 0, reg(rs1), reg(rd), opAmo)
		return putWord(word), nil
	}
	if m == "sc.w" {
		rd, rs1, rs2, aq, rl := c.amoOperands(in)
		word := amoType(amoSC, aq, rl, reg(rs2), reg(rs1), reg(rd), opAmo)
		return putWord(word), nil
	}

	return nil, asmerr.New(asmerr.UnencodableInstruction, asmerr.Position{}, "unknown mnemonic %q", m)
}

func putWord(w uint32) []byte {
	return putU32LE(nil, w)
}

func putHalf(h uint16) []byte {
	return putU16LE(nil, h)
}

// memOperand extracts (target-or-value-reg, base-reg, offset-int) from a
// two-operand "reg, offset(base)" instruction encoding, where operand 1 is a
// Memory operand (ast.OperandMemory) carrying the base register in Reg and
// the offset expression in Expr; a bare register second operand implies
// offset 0.
func (c *context) memOperand(ptr ast.LinePointer, in *ast.Instruction) (rd, base ast.Register, off int64, err error) {
	rd = opReg(in.Operands[0])
	mem := in.Operands[1]
	base = mem.Reg
	if mem.Expr == nil {
		return rd, base, 0, nil
	}
	v, err := eval.Eval(mem.Expr, c.lineCtx(ptr))
	if err != nil {
		return 0, 0, 0, err
	}
	return rd, base, v.Int, nil
}

// jalrOperands accepts both jalr spellings: "rd, offset(rs1)" (and the
// two-operand "rd, rs1" with an implied zero offset) via memOperand, plus
// the three-operand "rd, rs1, imm" form.
func (c *context) jalrOperands(ptr ast.LinePointer, in *ast.Instruction) (rd, base ast.Register, off int64, err error) {
	if len(in.Operands) == 3 && in.Operands[1].Kind == ast.OperandRegister {
		rd = opReg(in.Operands[0])
		base = opReg(in.Operands[1])
		v, err := c.opValue(ptr, in.Operands[2])
		if err != nil {
			return 0, 0, 0, err
		}
		return rd, base, v.Int, nil
	}
	return c.memOperand(ptr, in)
}

func (c *context) amoOperands(in *ast.Instruction) (rd, rs1, rs2 ast.Register, aq, rl bool) {
	rd = opReg(in.Operands[0])
	rs2 = opReg(in.Operands[1])
	rs1 = in.Operands[2].Reg
	return rd, rs1, rs2, in.Aq, in.Rl
}

func (c *context) lrOperands(in *ast.Instruction) (rd, rs1 ast.Register, aq, rl bool) {
	rd = opReg(in.Operands[0])
	rs1 = in.Operands[1].Reg
	return rd, rs1, in.Aq, in.Rl
}
