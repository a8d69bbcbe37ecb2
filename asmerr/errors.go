// Package asmerr defines the fatal error kinds the assembler-linker core can
// raise, each tagged with a source location so the surrounding CLI can print
// the offending line with context.
package asmerr

import (
	"fmt"
	"strings"

	"github.com/rv32ac/asmld/ast"
)

// Position identifies a location in a source file.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	if p.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// FromAST converts an ast.Position into a diagnostic Position.
func FromAST(p ast.Position) Position {
	return Position{Filename: p.File, Line: p.Line, Column: p.Column}
}

// Kind categorizes a fatal assembler error (spec.md §7).
type Kind int

const (
	Syntax Kind = iota
	UnresolvedSymbol
	DuplicateSymbolRestricted
	CircularReference
	TypeError
	Overflow
	Underflow
	PrecisionLoss
	DivisionByZero
	ImmediateOutOfRange
	SegmentViolation
	ConvergenceFailure
	UnencodableInstruction
)

var kindNames = map[Kind]string{
	Syntax:                    "Syntax",
	UnresolvedSymbol:          "UnresolvedSymbol",
	DuplicateSymbolRestricted: "DuplicateSymbolRestricted",
	CircularReference:         "CircularReference",
	TypeError:                 "TypeError",
	Overflow:                  "Overflow",
	Underflow:                 "Underflow",
	PrecisionLoss:             "PrecisionLoss",
	DivisionByZero:            "DivisionByZero",
	ImmediateOutOfRange:       "ImmediateOutOfRange",
	SegmentViolation:          "SegmentViolation",
	ConvergenceFailure:        "ConvergenceFailure",
	UnencodableInstruction:    "UnencodableInstruction",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Error is a fatal assembler error carrying its kind and source location.
type Error struct {
	Kind    Kind
	Pos     Position
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Pos, e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// New creates a fatal error of the given kind at pos.
func New(kind Kind, pos Position, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a kind and location. If err is already
// an *Error, it is returned unchanged (no double-wrapping), matching the
// EncodingError-wrapping convention the teacher uses in encoder/errors.go.
func Wrap(kind Kind, pos Position, err error) *Error {
	if err == nil {
		return nil
	}
	if existing, ok := err.(*Error); ok {
		return existing
	}
	return &Error{Kind: kind, Pos: pos, Message: err.Error(), Wrapped: err}
}

// CircularChain formats the cycle-detection error message for §4.5/§8.1.6:
// "a -> b -> c -> a".
func CircularChain(names []string) string {
	return strings.Join(names, " -> ")
}
