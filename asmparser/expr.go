package asmparser

import (
	"strconv"
	"strings"

	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/lexer"
)

// parseExpr implements the precedence chain from spec.md §6.3:
// | ^ & << >> + - * / % unary-minus unary-not, lowest to highest.
func (p *parser) parseExpr() *ast.Expression {
	return p.parseOr()
}

func (p *parser) parseOr() *ast.Expression {
	left := p.parseXor()
	for p.cur.Type == lexer.TokenPipe {
		pos := p.pos_()
		p.advance()
		right := p.parseXor()
		left = &ast.Expression{Kind: ast.ExprBinary, BinOp: ast.OpOr, L: left, R: right, Pos: pos}
	}
	return left
}

func (p *parser) parseXor() *ast.Expression {
	left := p.parseAnd()
	for p.cur.Type == lexer.TokenCaret {
		pos := p.pos_()
		p.advance()
		right := p.parseAnd()
		left = &ast.Expression{Kind: ast.ExprBinary, BinOp: ast.OpXor, L: left, R: right, Pos: pos}
	}
	return left
}

func (p *parser) parseAnd() *ast.Expression {
	left := p.parseShift()
	for p.cur.Type == lexer.TokenAmpersand {
		pos := p.pos_()
		p.advance()
		right := p.parseShift()
		left = &ast.Expression{Kind: ast.ExprBinary, BinOp: ast.OpAnd, L: left, R: right, Pos: pos}
	}
	return left
}

func (p *parser) parseShift() *ast.Expression {
	left := p.parseAdd()
	for p.cur.Type == lexer.TokenLShift || p.cur.Type == lexer.TokenRShift {
		op := ast.OpShl
		if p.cur.Type == lexer.TokenRShift {
			op = ast.OpShr
		}
		pos := p.pos_()
		p.advance()
		right := p.parseAdd()
		left = &ast.Expression{Kind: ast.ExprBinary, BinOp: op, L: left, R: right, Pos: pos}
	}
	return left
}

func (p *parser) parseAdd() *ast.Expression {
	left := p.parseMul()
	for p.cur.Type == lexer.TokenPlus || p.cur.Type == lexer.TokenMinus {
		op := ast.OpAdd
		if p.cur.Type == lexer.TokenMinus {
			op = ast.OpSub
		}
		pos := p.pos_()
		p.advance()
		right := p.parseMul()
		left = &ast.Expression{Kind: ast.ExprBinary, BinOp: op, L: left, R: right, Pos: pos}
	}
	return left
}

func (p *parser) parseMul() *ast.Expression {
	left := p.parseUnary()
	for p.cur.Type == lexer.TokenStar || p.cur.Type == lexer.TokenSlash || p.cur.Type == lexer.TokenPercent {
		var op ast.BinOp
		switch p.cur.Type {
		case lexer.TokenStar:
			op = ast.OpMul
		case lexer.TokenSlash:
			op = ast.OpDiv
		default:
			op = ast.OpMod
		}
		pos := p.pos_()
		p.advance()
		right := p.parseUnary()
		left = &ast.Expression{Kind: ast.ExprBinary, BinOp: op, L: left, R: right, Pos: pos}
	}
	return left
}

func (p *parser) parseUnary() *ast.Expression {
	switch p.cur.Type {
	case lexer.TokenMinus:
		pos := p.pos_()
		p.advance()
		return &ast.Expression{Kind: ast.ExprUnary, UnOp: ast.OpNeg, X: p.parseUnary(), Pos: pos}
	case lexer.TokenTilde:
		pos := p.pos_()
		p.advance()
		return &ast.Expression{Kind: ast.ExprUnary, UnOp: ast.OpNot, X: p.parseUnary(), Pos: pos}
	default:
		return p.parsePrimary()
	}
}

func (p *parser) parsePrimary() *ast.Expression {
	pos := p.pos_()

	switch p.cur.Type {
	case lexer.TokenNumber:
		v, err := parseIntLiteral(p.cur.Literal)
		if err != nil {
			p.errs.add(p.cur.Pos, "integer literal %q exceeds 64-bit range", p.cur.Literal)
		}
		p.advance()
		return &ast.Expression{Kind: ast.ExprInteger, IntValue: v, Pos: pos}

	case lexer.TokenCharLiteral:
		decoded := decodeEscapes(p.cur.Literal)
		var v int64
		if len(decoded) > 0 {
			v = int64(decoded[0])
		}
		p.advance()
		return &ast.Expression{Kind: ast.ExprInteger, IntValue: v, Pos: pos}

	case lexer.TokenNumericLabel:
		lit := p.cur.Literal
		digit := lit[:len(lit)-1]
		forward := lit[len(lit)-1] == 'f'
		p.advance()
		return &ast.Expression{Kind: ast.ExprNumericLabel, Name: digit, Forward: forward, Pos: pos}

	case lexer.TokenDot:
		p.advance()
		return &ast.Expression{Kind: ast.ExprCurrentAddr, Pos: pos}

	case lexer.TokenIdentifier:
		name := p.cur.Literal
		p.advance()
		return &ast.Expression{Kind: ast.ExprIdent, Name: name, Pos: pos}

	case lexer.TokenLParen:
		p.advance()
		inner := p.parseExpr()
		p.expect(lexer.TokenRParen)
		return inner

	default:
		p.errs.add(p.cur.Pos, "expected expression, got %v %q", p.cur.Type, p.cur.Literal)
		p.advance()
		return &ast.Expression{Kind: ast.ExprInteger, IntValue: 0, Pos: pos}
	}
}

// parseIntLiteral decodes a decimal/hex/binary/octal literal into the 64-bit
// carrier; literals that exceed it return an error, which the caller records
// as a parse error.
func parseIntLiteral(lit string) (int64, error) {
	lower := strings.ToLower(lit)
	var v uint64
	var err error
	switch {
	case strings.HasPrefix(lower, "0x"):
		v, err = strconv.ParseUint(lower[2:], 16, 64)
	case strings.HasPrefix(lower, "0b"):
		v, err = strconv.ParseUint(lower[2:], 2, 64)
	case strings.HasPrefix(lower, "0o"):
		v, err = strconv.ParseUint(lower[2:], 8, 64)
	default:
		v, err = strconv.ParseUint(lower, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}
