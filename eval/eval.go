// Package eval implements the pure, two-sort (Integer / Address) expression
// evaluator described in spec.md §4.1. It has no mutable state of its own;
// memoization of symbol values lives one layer up, in symvals.
package eval

import (
	"math"

	"github.com/rv32ac/asmld/asmerr"
	"github.com/rv32ac/asmld/ast"
)

// Kind tags an EvaluatedValue as a plain integer or an address.
type Kind int

const (
	Integer Kind = iota
	Address
)

func (k Kind) String() string {
	if k == Address {
		return "Address"
	}
	return "Integer"
}

// Value is the result of evaluating an Expression: a 64-bit carrier plus the
// sort it belongs to. Addresses use 32-bit semantics; the wider carrier lets
// intermediate arithmetic detect overflow before truncation.
type Value struct {
	Int  int64
	Kind Kind
}

func Int(v int64) Value     { return Value{Int: v, Kind: Integer} }
func Addr(v int64) Value    { return Value{Int: v, Kind: Address} }
func (v Value) IsAddr() bool { return v.Kind == Address }

// RefValues resolves a SymbolReference (symbol name + defining line) to its
// already-evaluated Value. It is implemented by symvals.Table.
type RefValues interface {
	Lookup(name string, def ast.LinePointer) (Value, bool)
}

// Line is the subset of per-line context the evaluator needs: its address,
// and the set of resolved references available to identifiers appearing in
// its expressions.
type Line struct {
	Pos     ast.Position
	Addr    int64 // current_address for "."
	Refs    []Ref
	Symbols RefValues
}

// Ref binds one identifier/numeric-label spelling on a line to the
// LinePointer of its definition (produced by symtab).
type Ref struct {
	Name string
	Def  ast.LinePointer
}

func (l *Line) lookup(name string) (Value, bool) {
	for _, r := range l.Refs {
		if r.Name == name {
			return l.Symbols.Lookup(r.Name, r.Def)
		}
	}
	return Value{}, false
}

// Eval evaluates an expression tree against the given line context.
func Eval(e *ast.Expression, line *Line) (Value, error) {
	switch e.Kind {
	case ast.ExprInteger:
		return Int(e.IntValue), nil

	case ast.ExprCurrentAddr:
		return Addr(line.Addr), nil

	case ast.ExprIdent, ast.ExprNumericLabel:
		name := e.Name
		if e.Kind == ast.ExprNumericLabel {
			if e.Forward {
				name += "f"
			} else {
				name += "b"
			}
		}
		v, ok := line.lookup(name)
		if !ok {
			return Value{}, asmerr.New(asmerr.UnresolvedSymbol, asmerr.FromAST(e.Pos),
				"internal error: reference %q has no evaluated value", name)
		}
		return v, nil

	case ast.ExprUnary:
		x, err := Eval(e.X, line)
		if err != nil {
			return Value{}, err
		}
		return evalUnary(e, x)

	case ast.ExprBinary:
		l, err := Eval(e.L, line)
		if err != nil {
			return Value{}, err
		}
		r, err := Eval(e.R, line)
		if err != nil {
			return Value{}, err
		}
		return evalBinary(e, l, r)
	}
	return Value{}, asmerr.New(asmerr.Syntax, asmerr.FromAST(e.Pos), "unknown expression kind")
}

func evalUnary(e *ast.Expression, x Value) (Value, error) {
	if x.IsAddr() {
		return Value{}, asmerr.New(asmerr.TypeError, asmerr.FromAST(e.Pos),
			"unary %s requires Integer operand, got Address", e.UnOp)
	}
	switch e.UnOp {
	case ast.OpNeg:
		if x.Int == math.MinInt64 {
			return Value{}, asmerr.New(asmerr.Overflow, asmerr.FromAST(e.Pos), "negation overflow")
		}
		return Int(-x.Int), nil
	case ast.OpNot:
		return Int(^x.Int), nil
	}
	return Value{}, asmerr.New(asmerr.Syntax, asmerr.FromAST(e.Pos), "unknown unary operator")
}

func evalBinary(e *ast.Expression, l, r Value) (Value, error) {
	pos := asmerr.FromAST(e.Pos)
	switch e.BinOp {
	case ast.OpAdd:
		switch {
		case !l.IsAddr() && !r.IsAddr():
			v, err := addChecked(l.Int, r.Int, pos)
			return Int(v), err
		case l.IsAddr() && !r.IsAddr():
			v, err := addChecked(l.Int, r.Int, pos)
			return Addr(v), err
		case !l.IsAddr() && r.IsAddr():
			v, err := addChecked(l.Int, r.Int, pos)
			return Addr(v), err
		default:
			return Value{}, typeErr(pos, "+", l.Kind, r.Kind)
		}

	case ast.OpSub:
		switch {
		case !l.IsAddr() && !r.IsAddr():
			v, err := subChecked(l.Int, r.Int, pos)
			return Int(v), err
		case l.IsAddr() && !r.IsAddr():
			v, err := subChecked(l.Int, r.Int, pos)
			return Addr(v), err
		case l.IsAddr() && r.IsAddr():
			v, err := subChecked(l.Int, r.Int, pos)
			return Int(v), err
		default: // I - A
			return Value{}, typeErr(pos, "-", l.Kind, r.Kind)
		}

	case ast.OpMul:
		if l.IsAddr() || r.IsAddr() {
			return Value{}, typeErr(pos, "*", l.Kind, r.Kind)
		}
		v, err := mulChecked(l.Int, r.Int, pos)
		return Int(v), err

	case ast.OpDiv:
		if l.IsAddr() || r.IsAddr() {
			return Value{}, typeErr(pos, "/", l.Kind, r.Kind)
		}
		if r.Int == 0 {
			return Value{}, asmerr.New(asmerr.DivisionByZero, pos, "division by zero")
		}
		if l.Int == math.MinInt64 && r.Int == -1 {
			return Value{}, asmerr.New(asmerr.Overflow, pos, "division overflow: INT_MIN / -1")
		}
		return Int(l.Int / r.Int), nil

	case ast.OpMod:
		if l.IsAddr() || r.IsAddr() {
			return Value{}, typeErr(pos, "%", l.Kind, r.Kind)
		}
		if r.Int == 0 {
			return Value{}, asmerr.New(asmerr.DivisionByZero, pos, "modulo by zero")
		}
		if l.Int == math.MinInt64 && r.Int == -1 {
			return Value{}, asmerr.New(asmerr.Overflow, pos, "modulo overflow: INT_MIN %% -1")
		}
		return Int(l.Int % r.Int), nil

	case ast.OpShl:
		if l.IsAddr() || r.IsAddr() {
			return Value{}, typeErr(pos, "<<", l.Kind, r.Kind)
		}
		s := r.Int
		if s < 0 || s > 63 {
			return Value{}, asmerr.New(asmerr.PrecisionLoss, pos, "shift amount %d out of range [0,63]", s)
		}
		result := l.Int << uint(s)
		// top s+1 bits of the operand must all be equal, else bits were lost.
		if s == 63 {
			if l.Int != 0 && l.Int != -1 {
				return Value{}, asmerr.New(asmerr.PrecisionLoss, pos,
					"shift left by %d loses significant bits", s)
			}
		} else {
			check := uint(s + 1)
			top := l.Int >> (64 - check)
			if top != 0 && !isAllOnes(l.Int, check) {
				return Value{}, asmerr.New(asmerr.PrecisionLoss, pos,
					"shift left by %d loses significant bits", s)
			}
		}
		return Int(result), nil

	case ast.OpShr:
		if l.IsAddr() || r.IsAddr() {
			return Value{}, typeErr(pos, ">>", l.Kind, r.Kind)
		}
		s := r.Int
		if s < 0 || s > 63 {
			return Value{}, asmerr.New(asmerr.PrecisionLoss, pos, "shift amount %d out of range [0,63]", s)
		}
		if s > 0 {
			mask := int64(1)<<uint(s) - 1
			if l.Int&mask != 0 {
				return Value{}, asmerr.New(asmerr.PrecisionLoss, pos,
					"shift right by %d loses nonzero low bits", s)
			}
		}
		return Int(l.Int >> uint(s)), nil

	case ast.OpAnd:
		if l.IsAddr() || r.IsAddr() {
			return Value{}, typeErr(pos, "&", l.Kind, r.Kind)
		}
		return Int(l.Int & r.Int), nil

	case ast.OpOr:
		if l.IsAddr() || r.IsAddr() {
			return Value{}, typeErr(pos, "|", l.Kind, r.Kind)
		}
		return Int(l.Int | r.Int), nil

	case ast.OpXor:
		if l.IsAddr() || r.IsAddr() {
			return Value{}, typeErr(pos, "^", l.Kind, r.Kind)
		}
		return Int(l.Int ^ r.Int), nil
	}
	return Value{}, asmerr.New(asmerr.Syntax, pos, "unknown binary operator")
}

func isAllOnes(v int64, bits uint) bool {
	top := v >> (64 - bits)
	return top == -1
}

func typeErr(pos asmerr.Position, op string, lk, rk Kind) error {
	return asmerr.New(asmerr.TypeError, pos, "operator %s: forbidden operand kinds %s, %s", op, lk, rk)
}

func addChecked(a, b int64, pos asmerr.Position) (int64, error) {
	sum := a + b
	if ((a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum > 0)) {
		return 0, asmerr.New(asmerr.Overflow, pos, "addition overflow: %d + %d", a, b)
	}
	return sum, nil
}

func subChecked(a, b int64, pos asmerr.Position) (int64, error) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, asmerr.New(asmerr.Overflow, pos, "subtraction overflow: %d - %d", a, b)
	}
	return diff, nil
}

func mulChecked(a, b int64, pos asmerr.Position) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	result := a * b
	if result/b != a {
		return 0, asmerr.New(asmerr.Overflow, pos, "multiplication overflow: %d * %d", a, b)
	}
	return result, nil
}
