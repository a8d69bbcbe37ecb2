package symtab_test

import (
	"testing"

	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/symtab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identExpr(name string) *ast.Expression {
	return &ast.Expression{Kind: ast.ExprIdent, Name: name}
}

func instrLine(ptr ast.LinePointer, mnemonic string, exprs ...*ast.Expression) *ast.Line {
	ops := make([]ast.Operand, len(exprs))
	for i, e := range exprs {
		ops[i] = ast.Operand{Kind: ast.OperandExpression, Expr: e}
	}
	return &ast.Line{Ptr: ptr, Kind: ast.KindInstruction, Instruction: &ast.Instruction{Mnemonic: mnemonic, Operands: ops}}
}

func labelLine(ptr ast.LinePointer, name string, numeric bool) *ast.Line {
	return &ast.Line{Ptr: ptr, Kind: ast.KindLabel, Label: &ast.Label{Name: name, Numeric: numeric}}
}

func TestLink_ForwardReferenceWithinFile(t *testing.T) {
	// _start: call far ; far: ret
	p0 := ast.LinePointer{File: 0, Line: 0}
	p1 := ast.LinePointer{File: 0, Line: 1}
	p2 := ast.LinePointer{File: 0, Line: 2}

	file := &ast.SourceFile{Name: "a.s", Lines: []*ast.Line{
		labelLine(p0, "_start", false),
		instrLine(p1, "call", identExpr("far")),
		labelLine(p2, "far", false),
	}}
	src := &ast.Source{Files: []*ast.SourceFile{file}}

	links, err := symtab.Link(src)
	require.NoError(t, err)

	refs := links.RefsFor(p1)
	require.Len(t, refs, 1)
	assert.Equal(t, "far", refs[0].Name)
	assert.Equal(t, p2, refs[0].Def)
}

func TestLink_UnresolvedSymbolFails(t *testing.T) {
	p0 := ast.LinePointer{File: 0, Line: 0}
	file := &ast.SourceFile{Name: "a.s", Lines: []*ast.Line{
		instrLine(p0, "call", identExpr("nowhere")),
	}}
	src := &ast.Source{Files: []*ast.SourceFile{file}}

	_, err := symtab.Link(src)
	require.Error(t, err)
}

func TestLink_GlobalPointerReserved(t *testing.T) {
	p0 := ast.LinePointer{File: 0, Line: 0}
	file := &ast.SourceFile{Name: "a.s", Lines: []*ast.Line{
		labelLine(p0, symtab.GlobalPointerSymbol, false),
	}}
	src := &ast.Source{Files: []*ast.SourceFile{file}}

	_, err := symtab.Link(src)
	require.Error(t, err)
}

func TestLink_DuplicateLabelFails(t *testing.T) {
	p0 := ast.LinePointer{File: 0, Line: 0}
	p1 := ast.LinePointer{File: 0, Line: 1}
	file := &ast.SourceFile{Name: "a.s", Lines: []*ast.Line{
		labelLine(p0, "loop", false),
		labelLine(p1, "loop", false),
	}}
	src := &ast.Source{Files: []*ast.SourceFile{file}}

	_, err := symtab.Link(src)
	require.Error(t, err)
}

func TestLink_EquCannotShadowLabel(t *testing.T) {
	p0 := ast.LinePointer{File: 0, Line: 0}
	p1 := ast.LinePointer{File: 0, Line: 1}
	file := &ast.SourceFile{Name: "a.s", Lines: []*ast.Line{
		labelLine(p0, "loop", false),
		{Ptr: p1, Kind: ast.KindDirective, Directive: &ast.Directive{
			Name: ".equ", EquName: "loop",
			EquExpr: &ast.Expression{Kind: ast.ExprInteger, IntValue: 1},
		}},
	}}
	src := &ast.Source{Files: []*ast.SourceFile{file}}

	_, err := symtab.Link(src)
	require.Error(t, err)
}

func TestLink_NumericLabelScoping(t *testing.T) {
	// 1: ; j 1b ; 1: ; j 1b
	p0 := ast.LinePointer{File: 0, Line: 0}
	p1 := ast.LinePointer{File: 0, Line: 1}
	p2 := ast.LinePointer{File: 0, Line: 2}
	p3 := ast.LinePointer{File: 0, Line: 3}

	numRef := func(digit string, forward bool) *ast.Expression {
		return &ast.Expression{Kind: ast.ExprNumericLabel, Name: digit, Forward: forward}
	}

	file := &ast.SourceFile{Name: "a.s", Lines: []*ast.Line{
		labelLine(p0, "1", true),
		instrLine(p1, "j", numRef("1", false)), // 1b -> p0
		labelLine(p2, "1", true),
		instrLine(p3, "j", numRef("1", false)), // 1b -> p2 (most recent)
	}}
	src := &ast.Source{Files: []*ast.SourceFile{file}}

	links, err := symtab.Link(src)
	require.NoError(t, err)

	assert.Equal(t, p0, links.RefsFor(p1)[0].Def)
	assert.Equal(t, p2, links.RefsFor(p3)[0].Def)
}

func TestLink_EquRedefinitionShadowsLaterReferences(t *testing.T) {
	// .equ a, 1 ; use a (-> first) ; .equ a, 2 ; use a (-> second)
	p0 := ast.LinePointer{File: 0, Line: 0}
	p1 := ast.LinePointer{File: 0, Line: 1}
	p2 := ast.LinePointer{File: 0, Line: 2}
	p3 := ast.LinePointer{File: 0, Line: 3}

	equLine := func(ptr ast.LinePointer, name string, v int64) *ast.Line {
		return &ast.Line{Ptr: ptr, Kind: ast.KindDirective, Directive: &ast.Directive{
			Name: ".equ", EquName: name, EquExpr: &ast.Expression{Kind: ast.ExprInteger, IntValue: v},
		}}
	}

	file := &ast.SourceFile{Name: "a.s", Lines: []*ast.Line{
		equLine(p0, "a", 1),
		instrLine(p1, "nop", identExpr("a")),
		equLine(p2, "a", 2),
		instrLine(p3, "nop", identExpr("a")),
	}}
	src := &ast.Source{Files: []*ast.SourceFile{file}}

	links, err := symtab.Link(src)
	require.NoError(t, err)

	assert.Equal(t, p0, links.RefsFor(p1)[0].Def)
	assert.Equal(t, p2, links.RefsFor(p3)[0].Def)
}
