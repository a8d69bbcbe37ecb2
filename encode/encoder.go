// Package encode implements the instruction encoder of spec.md §4.4: bit-
// exact RV32IMAC emission, pseudo-instruction expansion, and GP-relative /
// compressed relaxation, driven once per relaxation iteration by package
// relax.
package encode

import (
	"github.com/rv32ac/asmld/asmerr"
	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/eval"
	"github.com/rv32ac/asmld/layout"
	"github.com/rv32ac/asmld/symtab"
	"github.com/rv32ac/asmld/symvals"
)

// Flags selects which relaxations are active this run (spec.md §4.4, §6.1).
type Flags struct {
	GP         bool
	Pseudo     bool
	Compressed bool
}

// Result is the concatenated byte image produced by one full emission pass.
type Result struct {
	Text           []byte
	Data           []byte
	BssSize        int64
	UsedCompressed bool
}

type context struct {
	src    *ast.Source
	links  *symtab.Links
	table  *symvals.Table
	lay    *layout.Layout
	flags  Flags
	result Result
}

// Emit walks every line of src in order, encoding instructions and data
// directives into Result.Text/Result.Data, and updates lay's per-line sizes
// in place (setting lay.SizesChanged when a size estimate was wrong).
func Emit(src *ast.Source, links *symtab.Links, table *symvals.Table, lay *layout.Layout, flags Flags) (Result, error) {
	c := &context{src: src, links: links, table: table, lay: lay, flags: flags}

	for fi, file := range src.Files {
		for li, line := range file.Lines {
			ptr := ast.LinePointer{File: fi, Line: li}
			if err := c.emitLine(ptr, line); err != nil {
				return Result{}, err
			}
		}
	}
	c.result.BssSize = lay.BssSize
	return c.result, nil
}

func (c *context) emitLine(ptr ast.LinePointer, line *ast.Line) error {
	ll := c.lay.Lines[ptr]

	switch line.Kind {
	case ast.KindLabel:
		return nil

	case ast.KindDirective:
		return c.emitDirective(ptr, line, ll)

	case ast.KindInstruction:
		if ll.Segment == ast.Bss {
			return asmerr.New(asmerr.SegmentViolation, asmerr.Position{},
				"instruction not permitted in .bss")
		}
		bytes, err := c.encodeInstruction(ptr, line.Instruction)
		if err != nil {
			return err
		}
		c.lay.SetSize(ptr, int64(len(bytes)))
		c.appendCode(ll.Segment, bytes)
		return nil
	}
	return nil
}

func (c *context) appendCode(seg ast.Segment, b []byte) {
	switch seg {
	case ast.Text:
		c.result.Text = append(c.result.Text, b...)
	case ast.Data:
		c.result.Data = append(c.result.Data, b...)
	}
}

func (c *context) lineCtx(ptr ast.LinePointer) *eval.Line {
	return c.table.LineContext(c.links, c.lay, ptr)
}

// operand helpers

func opReg(op ast.Operand) ast.Register { return op.Reg }

func (c *context) opValue(ptr ast.LinePointer, op ast.Operand) (eval.Value, error) {
	return eval.Eval(op.Expr, c.lineCtx(ptr))
}
