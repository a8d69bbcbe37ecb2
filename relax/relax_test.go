package relax_test

import (
	"testing"

	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/encode"
	"github.com/rv32ac/asmld/relax"
	"github.com/stretchr/testify/require"
)

func dirLine(name string) *ast.Line {
	return &ast.Line{Kind: ast.KindDirective, Directive: &ast.Directive{Name: name}}
}

func instrLine(mnemonic string, ops ...ast.Operand) *ast.Line {
	return &ast.Line{Kind: ast.KindInstruction, Instruction: &ast.Instruction{Mnemonic: mnemonic, Operands: ops}}
}

func regOp(r ast.Register) ast.Operand { return ast.Operand{Kind: ast.OperandRegister, Reg: r} }

func intOp(v int64) ast.Operand {
	return ast.Operand{Kind: ast.OperandExpression, Expr: &ast.Expression{Kind: ast.ExprInteger, IntValue: v}}
}

func identOp(name string) ast.Operand {
	return ast.Operand{Kind: ast.OperandExpression, Expr: &ast.Expression{Kind: ast.ExprIdent, Name: name}}
}

func TestRun_ConvergesOnShrinkingPseudo(t *testing.T) {
	src := &ast.Source{Files: []*ast.SourceFile{{Name: "t.s", Lines: []*ast.Line{
		dirLine(".text"),
		instrLine("li", regOp(ast.Register(10)), intOp(1)),
		instrLine("nop"),
	}}}}

	out, err := relax.Run(src, 0x10000, 116, encode.Flags{Pseudo: true, Compressed: true})
	require.NoError(t, err)
	require.NotEmpty(t, out.Result.Text)
	require.False(t, out.Layout.SizesChanged)
}

func TestRun_ForwardBranchResolves(t *testing.T) {
	src := &ast.Source{Files: []*ast.SourceFile{{Name: "t.s", Lines: []*ast.Line{
		dirLine(".text"),
		instrLine("beq", regOp(ast.Register(1)), regOp(ast.Register(2)), identOp("done")),
		instrLine("nop"),
		{Kind: ast.KindLabel, Label: &ast.Label{Name: "done"}},
		instrLine("nop"),
	}}}}

	out, err := relax.Run(src, 0x10000, 116, encode.Flags{})
	require.NoError(t, err)
	require.Len(t, out.Result.Text, 12)
}

func TestRun_UnresolvedSymbolFails(t *testing.T) {
	src := &ast.Source{Files: []*ast.SourceFile{{Name: "t.s", Lines: []*ast.Line{
		dirLine(".text"),
		instrLine("j", identOp("nowhere")),
	}}}}

	_, err := relax.Run(src, 0x10000, 116, encode.Flags{})
	require.Error(t, err)
}
