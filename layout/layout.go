// Package layout implements the layout engine of spec.md §4.3: it assigns
// each line a segment, an offset within that segment, and a size estimate,
// and computes the segment base addresses the rest of the pipeline needs.
package layout

import (
	"github.com/rv32ac/asmld/ast"
)

// LineLayout is the per-line mutable artifact the relaxation loop refines.
type LineLayout struct {
	Segment ast.Segment
	Offset  int64 // offset within its segment
	Size    int64 // byte size estimate/final
}

// Layout is the whole-program mutable layout table, plus aggregate sizes and
// the addresses derived from them. It is the single mutable artifact of the
// relaxation loop (spec.md §3.3).
type Layout struct {
	Lines map[ast.LinePointer]*LineLayout

	TextSize int64
	DataSize int64
	BssSize  int64

	TextStart  int64 // user-chosen, default 0x10000
	HeaderSize int64 // fed in by the ELF builder before the first iteration

	// SizesChanged is set by the encoder (package encode) during emission;
	// the relaxation driver reads it to decide whether to keep iterating.
	SizesChanged bool
}

// New creates an empty Layout seeded with conservative size guesses for
// every line in src (spec.md §4.3's "Initial size guesses" table).
func New(src *ast.Source, textStart, headerSize int64) *Layout {
	l := &Layout{
		Lines:      make(map[ast.LinePointer]*LineLayout),
		TextStart:  textStart,
		HeaderSize: headerSize,
	}
	for fi, file := range src.Files {
		for li, line := range file.Lines {
			ptr := ast.LinePointer{File: fi, Line: li}
			l.Lines[ptr] = &LineLayout{Size: InitialGuess(line)}
		}
	}
	return l
}

// InitialGuess returns the conservative upper-bound byte size for a line
// before any expression/address information is available.
func InitialGuess(line *ast.Line) int64 {
	switch line.Kind {
	case ast.KindLabel:
		return 0
	case ast.KindDirective:
		return directiveGuess(line.Directive)
	case ast.KindInstruction:
		return instructionGuess(line.Instruction)
	}
	return 0
}

func instructionGuess(in *ast.Instruction) int64 {
	switch in.Mnemonic {
	case "li", "la", "call", "tail":
		return 8
	default:
		if len(in.Mnemonic) >= 2 && in.Mnemonic[:2] == "c." {
			return 2
		}
		return 4
	}
}

func directiveGuess(d *ast.Directive) int64 {
	switch d.Name {
	case ".byte":
		return int64(len(d.Exprs))
	case ".2byte":
		return int64(len(d.Exprs)) * 2
	case ".4byte":
		return int64(len(d.Exprs)) * 4
	case ".8byte":
		return int64(len(d.Exprs)) * 8
	case ".string":
		return int64(len(d.StringValue))
	case ".asciz":
		return int64(len(d.StringValue)) + 1
	case ".space":
		return spaceGuess(d.Arg)
	case ".balign":
		return balignGuess(d.Arg)
	default:
		return 0
	}
}

// spaceGuess evaluates a constant .space argument eagerly; forward
// references that can't yet be evaluated fall back to a conservative cap
// refined during relaxation once the value is known.
func spaceGuess(e *ast.Expression) int64 {
	if e != nil && e.Kind == ast.ExprInteger && e.IntValue >= 0 {
		return e.IntValue
	}
	return 1 << 20 // replaced by the encoder's .space emission once the expression is evaluable
}

func balignGuess(e *ast.Expression) int64 {
	if e != nil && e.Kind == ast.ExprInteger && e.IntValue > 0 {
		return e.IntValue - 1
	}
	return 4095
}

// Recompute walks all files in source order and reassigns each line's
// Segment and Offset from its current Size, updating the aggregate segment
// sizes. It is called at the start of every relaxation iteration (spec.md
// §4.6) before symbol values and encoding are recomputed.
func (l *Layout) Recompute(src *ast.Source) {
	var textOff, dataOff, bssOff int64
	seg := ast.Text

	for fi, file := range src.Files {
		for li, line := range file.Lines {
			ptr := ast.LinePointer{File: fi, Line: li}
			ll := l.Lines[ptr]

			if line.Kind == ast.KindDirective {
				switch line.Directive.Name {
				case ".text":
					seg = ast.Text
				case ".data":
					seg = ast.Data
				case ".bss":
					seg = ast.Bss
				}
			}

			ll.Segment = seg
			switch seg {
			case ast.Text:
				ll.Offset = textOff
				textOff += ll.Size
			case ast.Data:
				ll.Offset = dataOff
				dataOff += ll.Size
			case ast.Bss:
				ll.Offset = bssOff
				bssOff += ll.Size
			}
		}
	}

	l.TextSize = textOff
	l.DataSize = dataOff
	l.BssSize = bssOff
}

const pageSize = 4096

func alignUp(v, align int64) int64 {
	return (v + align - 1) / align * align
}

// TextFirstInstructionAddr is the virtual address of the first byte after
// the ELF header/program-header block.
func (l *Layout) TextFirstInstructionAddr() int64 {
	return l.TextStart + l.HeaderSize
}

// DataStart is the smallest 4 KiB-aligned address >= the end of .text
// (spec.md §3.2.4).
func (l *Layout) DataStart() int64 {
	return alignUp(l.TextFirstInstructionAddr()+l.TextSize, pageSize)
}

// BssStart follows immediately after .data (spec.md §3.2.5).
func (l *Layout) BssStart() int64 {
	return l.DataStart() + l.DataSize
}

// SegmentBase returns the virtual base address of a segment.
func (l *Layout) SegmentBase(seg ast.Segment) int64 {
	switch seg {
	case ast.Text:
		return l.TextFirstInstructionAddr()
	case ast.Data:
		return l.DataStart()
	case ast.Bss:
		return l.BssStart()
	}
	return 0
}

// Address returns the absolute address of a line given its current layout.
func (l *Layout) Address(ptr ast.LinePointer) int64 {
	ll := l.Lines[ptr]
	return l.SegmentBase(ll.Segment) + ll.Offset
}

// GlobalPointer is the synthetic __global_pointer$ value (spec.md §3.2.8).
func (l *Layout) GlobalPointer() int64 {
	return l.DataStart() + 2048
}

// SetSize updates a line's size, setting SizesChanged if it actually
// differs from the previous estimate (spec.md §4.4 "Size-change tracking").
// Per the monotonicity invariant (spec.md §3.2.3), newSize must never exceed
// the line's current size; callers that would grow a line have a bug.
func (l *Layout) SetSize(ptr ast.LinePointer, newSize int64) {
	ll := l.Lines[ptr]
	if ll.Size != newSize {
		ll.Size = newSize
		l.SizesChanged = true
	}
}
