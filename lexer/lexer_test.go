package lexer_test

import (
	"testing"

	"github.com/rv32ac/asmld/lexer"
)

func TestLexer_BasicInstruction(t *testing.T) {
	input := "addi x1, x0, 42"
	l := lexer.NewLexer(input, "test.s")

	expected := []lexer.TokenType{
		lexer.TokenIdentifier, // addi
		lexer.TokenRegister,   // x1
		lexer.TokenComma,
		lexer.TokenRegister, // x0
		lexer.TokenComma,
		lexer.TokenNumber, // 42
		lexer.TokenEOF,
	}

	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want {
			t.Errorf("token %d: expected %v, got %v (%q)", i, want, tok.Type, tok.Literal)
		}
	}
}

func TestLexer_Label(t *testing.T) {
	l := lexer.NewLexer("loop: addi x1, x1, 1", "test.s")

	tok := l.NextToken()
	if tok.Type != lexer.TokenIdentifier || tok.Literal != "loop" {
		t.Errorf("expected label 'loop', got %v %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != lexer.TokenColon {
		t.Errorf("expected colon, got %v", tok.Type)
	}
}

func TestLexer_NumericLabelAndReference(t *testing.T) {
	tests := []struct {
		input string
		lit   string
	}{
		{"1:", "1"},
		{"1f", "1f"},
		{"1b", "1b"},
	}
	for _, tt := range tests {
		l := lexer.NewLexer(tt.input, "test.s")
		tok := l.NextToken()
		if tt.input == "1:" {
			if tok.Type != lexer.TokenNumber || tok.Literal != "1" {
				t.Errorf("input %q: expected numeric label digit, got %v %q", tt.input, tok.Type, tok.Literal)
			}
			continue
		}
		if tok.Type != lexer.TokenNumericLabel || tok.Literal != tt.lit {
			t.Errorf("input %q: expected NumericLabel %q, got %v %q", tt.input, tt.lit, tok.Type, tok.Literal)
		}
	}
}

func TestLexer_Comment(t *testing.T) {
	l := lexer.NewLexer("# a comment", "test.s")
	tok := l.NextToken()
	if tok.Type != lexer.TokenComment {
		t.Errorf("expected comment, got %v", tok.Type)
	}
}

func TestLexer_Numbers(t *testing.T) {
	tests := []string{"42", "0x2A", "0b101010", "0o52"}
	for _, in := range tests {
		l := lexer.NewLexer(in, "test.s")
		tok := l.NextToken()
		if tok.Type != lexer.TokenNumber || tok.Literal != in {
			t.Errorf("input %q: expected number token with same literal, got %v %q", in, tok.Type, tok.Literal)
		}
	}
}

func TestLexer_Directive(t *testing.T) {
	l := lexer.NewLexer(".balign 4", "test.s")
	tok := l.NextToken()
	if tok.Type != lexer.TokenDirective || tok.Literal != ".balign" {
		t.Errorf("expected directive .balign, got %v %q", tok.Type, tok.Literal)
	}
}

func TestLexer_NumericWidthDirectives(t *testing.T) {
	for _, name := range []string{".2byte", ".4byte", ".8byte"} {
		l := lexer.NewLexer(name+" 7", "test.s")
		tok := l.NextToken()
		if tok.Type != lexer.TokenDirective || tok.Literal != name {
			t.Errorf("expected directive %s, got %v %q", name, tok.Type, tok.Literal)
		}
	}
}

func TestLexer_MemoryOperandParens(t *testing.T) {
	l := lexer.NewLexer("4(sp)", "test.s")
	expected := []lexer.TokenType{lexer.TokenNumber, lexer.TokenLParen, lexer.TokenRegister, lexer.TokenRParen, lexer.TokenEOF}
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want {
			t.Errorf("token %d: expected %v, got %v", i, want, tok.Type)
		}
	}
}

func TestLexer_StringEscapes(t *testing.T) {
	l := lexer.NewLexer(`"hi\n"`, "test.s")
	tok := l.NextToken()
	if tok.Type != lexer.TokenString || tok.Literal != `hi\n` {
		t.Errorf("expected raw escaped string literal, got %v %q", tok.Type, tok.Literal)
	}
}

func TestLexer_CurrentAddressDot(t *testing.T) {
	l := lexer.NewLexer(". + 4", "test.s")
	tok := l.NextToken()
	if tok.Type != lexer.TokenDot {
		t.Errorf("expected TokenDot, got %v", tok.Type)
	}
}

func TestLexer_UnexpectedCharacterRecordsError(t *testing.T) {
	l := lexer.NewLexer("addi x1, x0, 1 ? ", "test.s")
	_ = l.TokenizeAll()
	if len(l.Errors()) == 0 {
		t.Error("expected a lexical error for '?'")
	}
}
