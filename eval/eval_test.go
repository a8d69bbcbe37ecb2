package eval_test

import (
	"testing"

	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/eval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intLit(v int64) *ast.Expression { return &ast.Expression{Kind: ast.ExprInteger, IntValue: v} }

func bin(op ast.BinOp, l, r *ast.Expression) *ast.Expression {
	return &ast.Expression{Kind: ast.ExprBinary, BinOp: op, L: l, R: r}
}

func un(op ast.UnOp, x *ast.Expression) *ast.Expression {
	return &ast.Expression{Kind: ast.ExprUnary, UnOp: op, X: x}
}

type fakeSymbols map[string]eval.Value

func (f fakeSymbols) Lookup(name string, _ ast.LinePointer) (eval.Value, bool) {
	v, ok := f[name]
	return v, ok
}

func lineAt(addr int64, refs ...eval.Ref) *eval.Line {
	return &eval.Line{Addr: addr, Refs: refs, Symbols: fakeSymbols{}}
}

func TestEval_IntegerArithmetic(t *testing.T) {
	tests := []struct {
		name string
		expr *ast.Expression
		want int64
	}{
		{"add", bin(ast.OpAdd, intLit(2), intLit(3)), 5},
		{"sub", bin(ast.OpSub, intLit(5), intLit(3)), 2},
		{"mul", bin(ast.OpMul, intLit(6), intLit(7)), 42},
		{"div", bin(ast.OpDiv, intLit(7), intLit(2)), 3},
		{"mod", bin(ast.OpMod, intLit(7), intLit(2)), 1},
		{"shl", bin(ast.OpShl, intLit(1), intLit(4)), 16},
		{"and", bin(ast.OpAnd, intLit(0xFF), intLit(0x0F)), 0x0F},
		{"or", bin(ast.OpOr, intLit(0xF0), intLit(0x0F)), 0xFF},
		{"xor", bin(ast.OpXor, intLit(0xFF), intLit(0x0F)), 0xF0},
		{"neg", un(ast.OpNeg, intLit(5)), -5},
		{"not", un(ast.OpNot, intLit(0)), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := eval.Eval(tt.expr, lineAt(0))
			require.NoError(t, err)
			assert.Equal(t, eval.Integer, v.Kind)
			assert.Equal(t, tt.want, v.Int)
		})
	}
}

func TestEval_AddressArithmetic(t *testing.T) {
	// S4: end - start is Integer
	addrExpr := &ast.Expression{Kind: ast.ExprCurrentAddr}
	v, err := eval.Eval(addrExpr, lineAt(0x1000))
	require.NoError(t, err)
	assert.Equal(t, eval.Address, v.Kind)
	assert.Equal(t, int64(0x1000), v.Int)

	// Address + Integer -> Address
	v2, err := eval.Eval(bin(ast.OpAdd, addrExpr, intLit(4)), lineAt(0x1000))
	require.NoError(t, err)
	assert.Equal(t, eval.Address, v2.Kind)
	assert.Equal(t, int64(0x1004), v2.Int)

	// Address - Address -> Integer
	line := lineAt(0x1004)
	aMinusB := bin(ast.OpSub, addrExpr, addrExpr)
	v3, err := eval.Eval(aMinusB, line)
	require.NoError(t, err)
	assert.Equal(t, eval.Integer, v3.Kind)
	assert.Equal(t, int64(0), v3.Int)
}

func TestEval_ForbiddenCombinations(t *testing.T) {
	addrExpr := &ast.Expression{Kind: ast.ExprCurrentAddr}

	// Address + Address
	_, err := eval.Eval(bin(ast.OpAdd, addrExpr, addrExpr), lineAt(0))
	require.Error(t, err)

	// Integer - Address
	_, err = eval.Eval(bin(ast.OpSub, intLit(1), addrExpr), lineAt(0))
	require.Error(t, err)

	// Address * Integer
	_, err = eval.Eval(bin(ast.OpMul, addrExpr, intLit(2)), lineAt(0))
	require.Error(t, err)
}

func TestEval_DivisionByZero(t *testing.T) {
	_, err := eval.Eval(bin(ast.OpDiv, intLit(1), intLit(0)), lineAt(0))
	require.Error(t, err)

	_, err = eval.Eval(bin(ast.OpMod, intLit(1), intLit(0)), lineAt(0))
	require.Error(t, err)
}

func TestEval_ShiftPrecisionLoss(t *testing.T) {
	// S6: (3 >> 1) loses the low set bit.
	_, err := eval.Eval(bin(ast.OpShr, intLit(3), intLit(1)), lineAt(0))
	require.Error(t, err)

	// Shifting out only zero bits is fine.
	v, err := eval.Eval(bin(ast.OpShr, intLit(4), intLit(2)), lineAt(0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int)
}

func TestEval_ShiftLeftPrecisionLoss(t *testing.T) {
	// Shifting left such that a significant bit is lost from the top.
	big := intLit(1 << 62)
	_, err := eval.Eval(bin(ast.OpShl, big, intLit(2)), lineAt(0))
	require.Error(t, err)
}

func TestEval_IdentifierLookup(t *testing.T) {
	line := &eval.Line{
		Addr:    0,
		Refs:    []eval.Ref{{Name: "foo", Def: ast.LinePointer{File: 0, Line: 3}}},
		Symbols: fakeSymbols{"foo": eval.Addr(0x2000)},
	}
	ident := &ast.Expression{Kind: ast.ExprIdent, Name: "foo"}
	v, err := eval.Eval(ident, line)
	require.NoError(t, err)
	assert.Equal(t, eval.Address, v.Kind)
	assert.Equal(t, int64(0x2000), v.Int)
}
