// Package asmparser is the recursive-descent parser that turns tokenized
// RV32IMAC assembly source into an ast.Source (spec.md §6.3's grammar
// summary). Grounded on the teacher's current/peek-token Parser shape
// (parser/parser.go) and its ErrorList aggregation style, adapted from a
// two-pass address-resolving ARM parser to a single structural pass: address
// resolution belongs to symtab/layout/relax here, not the parser.
package asmparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/lexer"
)

// Input is one named source file's raw text.
type Input struct {
	Name    string
	Content string
}

// ErrorList aggregates every syntax diagnostic found across a parse.
type ErrorList struct {
	Errors []error
}

func (e *ErrorList) Error() string {
	parts := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "\n")
}

func (e *ErrorList) add(pos lexer.Position, format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Errorf("%s: %s", pos, fmt.Sprintf(format, args...)))
}

// Parse tokenizes and parses every input file, returning a combined
// ast.Source, or the aggregate *ErrorList if any file failed to parse.
func Parse(inputs []Input) (*ast.Source, error) {
	src := &ast.Source{}
	errs := &ErrorList{}

	for fileIdx, in := range inputs {
		p := newParser(in.Content, in.Name)
		file := p.parseFile()
		for _, l := range file.Lines {
			l.Ptr.File = fileIdx
		}
		errs.Errors = append(errs.Errors, p.errs.Errors...)
		src.Files = append(src.Files, file)
	}

	if len(errs.Errors) > 0 {
		return nil, errs
	}
	return src, nil
}

type parser struct {
	filename string
	toks     []lexer.Token
	pos      int
	cur      lexer.Token
	peek     lexer.Token
	errs     *ErrorList
}

func newParser(input, filename string) *parser {
	lx := lexer.NewLexer(input, filename)
	toks := lx.TokenizeAll()
	p := &parser{filename: filename, toks: toks, errs: &ErrorList{}}
	for _, err := range lx.Errors() {
		p.errs.Errors = append(p.errs.Errors, err)
	}
	p.advance()
	p.advance()
	return p
}

func (p *parser) advance() {
	p.cur = p.peek
	if p.pos < len(p.toks) {
		p.peek = p.toks[p.pos]
		p.pos++
	} else {
		p.peek = lexer.Token{Type: lexer.TokenEOF, Pos: p.cur.Pos}
	}
}

func (p *parser) skipTrivia() {
	for p.cur.Type == lexer.TokenComment {
		p.advance()
	}
}

func (p *parser) pos_() ast.Position {
	return ast.Position{File: p.filename, Line: p.cur.Pos.Line, Column: p.cur.Pos.Column}
}

func (p *parser) parseFile() *ast.SourceFile {
	file := &ast.SourceFile{Name: p.filename}
	for {
		p.skipTrivia()
		for p.cur.Type == lexer.TokenNewline {
			p.advance()
			p.skipTrivia()
		}
		if p.cur.Type == lexer.TokenEOF {
			break
		}
		lines := p.parseLine()
		for _, l := range lines {
			l.Ptr = ast.LinePointer{Line: len(file.Lines)}
			file.Lines = append(file.Lines, l)
		}
	}
	for i, l := range file.Lines {
		l.Ptr.Line = i
	}
	return file
}

// parseLine parses everything up to the next newline, which may yield a
// leading label line plus a trailing instruction/directive line — callers
// append both in order.
func (p *parser) parseLine() []*ast.Line {
	var out []*ast.Line
	raw := p.cur

	if label, ok := p.tryParseLabel(); ok {
		out = append(out, &ast.Line{Kind: ast.KindLabel, Label: label, Raw: raw.Literal})
		p.skipTrivia()
		if p.cur.Type == lexer.TokenNewline || p.cur.Type == lexer.TokenEOF {
			p.consumeLineEnd()
			return out
		}
	}

	switch p.cur.Type {
	case lexer.TokenDirective:
		d := p.parseDirective()
		out = append(out, &ast.Line{Kind: ast.KindDirective, Directive: d, Raw: raw.Literal})
	case lexer.TokenIdentifier:
		in := p.parseInstruction()
		out = append(out, &ast.Line{Kind: ast.KindInstruction, Instruction: in, Raw: raw.Literal})
	case lexer.TokenNewline, lexer.TokenEOF:
		// label-only line already handled above
	default:
		p.errs.add(p.cur.Pos, "unexpected token %v %q", p.cur.Type, p.cur.Literal)
		p.advance()
	}

	p.consumeLineEnd()
	return out
}

func (p *parser) consumeLineEnd() {
	p.skipTrivia()
	if p.cur.Type == lexer.TokenNewline {
		p.advance()
	}
}

// tryParseLabel recognizes "name:" or "N:" at the start of a line.
func (p *parser) tryParseLabel() (*ast.Label, bool) {
	if p.cur.Type == lexer.TokenIdentifier && p.peek.Type == lexer.TokenColon {
		name := p.cur.Literal
		p.advance()
		p.advance()
		return &ast.Label{Name: name}, true
	}
	if p.cur.Type == lexer.TokenNumber && len(p.cur.Literal) == 1 && isDigit(p.cur.Literal[0]) && p.peek.Type == lexer.TokenColon {
		name := p.cur.Literal
		p.advance()
		p.advance()
		return &ast.Label{Name: name, Numeric: true}, true
	}
	return nil, false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (p *parser) parseDirective() *ast.Directive {
	name := p.cur.Literal
	p.advance()

	d := &ast.Directive{Name: name}
	switch name {
	case ".text", ".data", ".bss":
		return d

	case ".global", ".globl":
		d.Name = ".global"
		d.GlobalName = p.expectIdentifier()
		return d

	case ".equ":
		d.EquName = p.expectIdentifier()
		p.expect(lexer.TokenComma)
		d.EquExpr = p.parseExpr()
		return d

	case ".byte", ".2byte", ".4byte", ".8byte":
		d.Exprs = p.parseExprList()
		return d

	case ".string", ".asciz":
		d.StringValue = p.expectStringLiteral()
		return d

	case ".space", ".balign":
		d.Arg = p.parseExpr()
		return d

	default:
		p.errs.add(p.cur.Pos, "unknown directive %q", name)
		return d
	}
}

func (p *parser) expectIdentifier() string {
	if p.cur.Type != lexer.TokenIdentifier {
		p.errs.add(p.cur.Pos, "expected identifier, got %v", p.cur.Type)
		return ""
	}
	name := p.cur.Literal
	p.advance()
	return name
}

func (p *parser) expectStringLiteral() string {
	if p.cur.Type != lexer.TokenString {
		p.errs.add(p.cur.Pos, "expected string literal, got %v", p.cur.Type)
		return ""
	}
	s := decodeEscapes(p.cur.Literal)
	p.advance()
	return s
}

func (p *parser) expect(t lexer.TokenType) {
	if p.cur.Type != t {
		p.errs.add(p.cur.Pos, "expected %v, got %v %q", t, p.cur.Type, p.cur.Literal)
		return
	}
	p.advance()
}

func decodeEscapes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		case '0':
			b.WriteByte(0)
		case 'x':
			if i+2 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
					b.WriteByte(byte(v))
					i += 2
					continue
				}
			}
			b.WriteByte('x')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func (p *parser) parseExprList() []*ast.Expression {
	var out []*ast.Expression
	out = append(out, p.parseExpr())
	for p.cur.Type == lexer.TokenComma {
		p.advance()
		out = append(out, p.parseExpr())
	}
	return out
}
