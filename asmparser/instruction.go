package asmparser

import (
	"strings"

	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/lexer"
)

// atomicSuffixes splits the ".aq"/".rl"/".aqrl" ordering suffix off an AMO,
// LR, or SC mnemonic (e.g. "amoadd.w.aqrl" -> "amoadd.w", aq=true, rl=true).
// Plain mnemonics (no ordering suffix) are returned unchanged.
func atomicSuffixes(mnemonic string) (base string, aq, rl bool) {
	switch {
	case strings.HasSuffix(mnemonic, ".aqrl"):
		return strings.TrimSuffix(mnemonic, ".aqrl"), true, true
	case strings.HasSuffix(mnemonic, ".aq"):
		return strings.TrimSuffix(mnemonic, ".aq"), true, false
	case strings.HasSuffix(mnemonic, ".rl"):
		return strings.TrimSuffix(mnemonic, ".rl"), false, true
	default:
		return mnemonic, false, false
	}
}

func (p *parser) parseInstruction() *ast.Instruction {
	raw := p.cur.Literal
	p.advance()

	base, aq, rl := atomicSuffixes(raw)
	in := &ast.Instruction{Mnemonic: base, Aq: aq, Rl: rl}

	if p.cur.Type == lexer.TokenNewline || p.cur.Type == lexer.TokenEOF || p.cur.Type == lexer.TokenComment {
		return in
	}

	in.Operands = append(in.Operands, p.parseOperand())
	for p.cur.Type == lexer.TokenComma {
		p.advance()
		in.Operands = append(in.Operands, p.parseOperand())
	}
	return in
}

// parseOperand reads one register, expression, or memory ("offset(reg)" /
// "(reg)") operand.
func (p *parser) parseOperand() ast.Operand {
	if p.cur.Type == lexer.TokenLParen {
		return p.parseMemoryTail(nil)
	}

	if p.cur.Type == lexer.TokenRegister {
		reg, _ := ast.ParseRegister(p.cur.Literal)
		p.advance()
		return ast.Operand{Kind: ast.OperandRegister, Reg: reg}
	}

	expr := p.parseExpr()
	if p.cur.Type == lexer.TokenLParen {
		return p.parseMemoryTail(expr)
	}
	return ast.Operand{Kind: ast.OperandExpression, Expr: expr}
}

// parseMemoryTail consumes "(reg)", pairing it with an already-parsed offset
// expression (nil for the bare-address AMO/LR/SC form).
func (p *parser) parseMemoryTail(offset *ast.Expression) ast.Operand {
	p.expect(lexer.TokenLParen)
	var reg ast.Register
	if p.cur.Type == lexer.TokenRegister {
		reg, _ = ast.ParseRegister(p.cur.Literal)
		p.advance()
	} else {
		p.errs.add(p.cur.Pos, "expected register inside parentheses, got %v %q", p.cur.Type, p.cur.Literal)
	}
	p.expect(lexer.TokenRParen)
	return ast.Operand{Kind: ast.OperandMemory, Reg: reg, Expr: offset}
}
