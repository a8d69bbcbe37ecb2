package asmparser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/asmparser"
)

func parseOne(t *testing.T, src string) *ast.SourceFile {
	t.Helper()
	out, err := asmparser.Parse([]asmparser.Input{{Name: "t.s", Content: src}})
	require.NoError(t, err)
	require.Len(t, out.Files, 1)
	return out.Files[0]
}

func TestParse_LabelAndInstruction(t *testing.T) {
	f := parseOne(t, "loop:\n  addi x1, x1, 1\n")
	require.Len(t, f.Lines, 2)
	require.Equal(t, ast.KindLabel, f.Lines[0].Kind)
	require.Equal(t, "loop", f.Lines[0].Label.Name)
	require.Equal(t, ast.KindInstruction, f.Lines[1].Kind)
	require.Equal(t, "addi", f.Lines[1].Instruction.Mnemonic)
	require.Len(t, f.Lines[1].Instruction.Operands, 3)
	require.Equal(t, ast.OperandRegister, f.Lines[1].Instruction.Operands[0].Kind)
	require.Equal(t, ast.RegRA, f.Lines[1].Instruction.Operands[0].Reg)
	require.Equal(t, ast.OperandExpression, f.Lines[1].Instruction.Operands[2].Kind)
}

func TestParse_LabelAndInstructionSameLineSeparately(t *testing.T) {
	f := parseOne(t, "1: j 1b\n")
	require.Len(t, f.Lines, 2)
	require.True(t, f.Lines[0].Label.Numeric)
	require.Equal(t, "1", f.Lines[0].Label.Name)
	require.Equal(t, "j", f.Lines[1].Instruction.Mnemonic)
	expr := f.Lines[1].Instruction.Operands[0].Expr
	require.Equal(t, ast.ExprNumericLabel, expr.Kind)
	require.False(t, expr.Forward)
}

func TestParse_Directives(t *testing.T) {
	f := parseOne(t, ".text\n.global _start\n.equ N, 4\n.byte 1, 2, 3\n.string \"hi\\n\"\n.space 8\n.balign 4\n")
	require.Len(t, f.Lines, 7)
	require.Equal(t, ".text", f.Lines[0].Directive.Name)
	require.Equal(t, ".global", f.Lines[1].Directive.Name)
	require.Equal(t, "_start", f.Lines[1].Directive.GlobalName)
	require.Equal(t, "N", f.Lines[2].Directive.EquName)
	require.Equal(t, int64(4), f.Lines[2].Directive.EquExpr.IntValue)
	require.Len(t, f.Lines[3].Directive.Exprs, 3)
	require.Equal(t, "hi\n", f.Lines[4].Directive.StringValue)
	require.Equal(t, int64(8), f.Lines[5].Directive.Arg.IntValue)
	require.Equal(t, ".balign", f.Lines[6].Directive.Name)
}

func TestParse_ExpressionPrecedence(t *testing.T) {
	f := parseOne(t, ".equ X, 1 + 2 * 3\n")
	expr := f.Lines[0].Directive.EquExpr
	require.Equal(t, ast.ExprBinary, expr.Kind)
	require.Equal(t, ast.OpAdd, expr.BinOp)
	require.Equal(t, int64(1), expr.L.IntValue)
	require.Equal(t, ast.OpMul, expr.R.BinOp)
}

func TestParse_MemoryOperand(t *testing.T) {
	f := parseOne(t, "lw a0, 4(sp)\n")
	op := f.Lines[0].Instruction.Operands[1]
	require.Equal(t, ast.OperandMemory, op.Kind)
	require.Equal(t, ast.RegSP, op.Reg)
	require.Equal(t, int64(4), op.Expr.IntValue)
}

func TestParse_AtomicBareAddressOperand(t *testing.T) {
	f := parseOne(t, "lr.w.aq a0, (a1)\n")
	in := f.Lines[0].Instruction
	require.Equal(t, "lr.w", in.Mnemonic)
	require.True(t, in.Aq)
	require.False(t, in.Rl)
	op := in.Operands[1]
	require.Equal(t, ast.OperandMemory, op.Kind)
	require.Nil(t, op.Expr)
}

func TestParse_AmoAqRlSuffix(t *testing.T) {
	f := parseOne(t, "amoadd.w.aqrl a0, a1, (a2)\n")
	in := f.Lines[0].Instruction
	require.Equal(t, "amoadd.w", in.Mnemonic)
	require.True(t, in.Aq)
	require.True(t, in.Rl)
}

func TestParse_CommentsAndBlankLinesIgnored(t *testing.T) {
	f := parseOne(t, "# comment\n\nnop # trailing\n\n")
	require.Len(t, f.Lines, 1)
	require.Equal(t, "nop", f.Lines[0].Instruction.Mnemonic)
}

func TestParse_SyntaxErrorAggregates(t *testing.T) {
	_, err := asmparser.Parse([]asmparser.Input{{Name: "bad.s", Content: "addi x1, x0, )\n"}})
	require.Error(t, err)
}

func TestParse_MultipleFiles(t *testing.T) {
	out, err := asmparser.Parse([]asmparser.Input{
		{Name: "a.s", Content: "nop\n"},
		{Name: "b.s", Content: "ret\n"},
	})
	require.NoError(t, err)
	require.Len(t, out.Files, 2)
	require.Equal(t, "a.s", out.Files[0].Name)
	require.Equal(t, "b.s", out.Files[1].Name)
}
