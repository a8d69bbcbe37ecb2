// Package assembler is the top-level orchestration of spec.md §2's data
// flow: parse -> symtab.Link -> relax.Run -> elfbuild.Build. It is the one
// entry point the CLI (and the tui dump browser) calls; every lower package
// stays usable standalone for its own unit tests.
package assembler

import (
	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/asmparser"
	"github.com/rv32ac/asmld/elfbuild"
	"github.com/rv32ac/asmld/encode"
	"github.com/rv32ac/asmld/layout"
	"github.com/rv32ac/asmld/relax"
	"github.com/rv32ac/asmld/symtab"
	"github.com/rv32ac/asmld/symvals"
)

// Options configures one assembly run (spec.md §6.1's CLI flags, minus I/O).
type Options struct {
	TextStart int64
	Flags     encode.Flags
}

// DefaultOptions mirrors config.DefaultConfig's assembler-relevant fields.
func DefaultOptions() Options {
	return Options{
		TextStart: 0x10000,
		Flags:     encode.Flags{GP: true, Pseudo: true, Compressed: true},
	}
}

// Outcome bundles every intermediate artifact of a run, so debug dumps
// (--dump-ast, --dump-symbols, --dump-values, --dump-code, --dump-elf) and
// the tui browser can inspect any pass without re-running it.
type Outcome struct {
	Source  *ast.Source
	Links   *symtab.Links
	Table   *symvals.Table
	Layout  *layout.Layout
	Result  encode.Result
	Symbols []elfbuild.Symbol
	ELF     []byte
}

// Assemble runs the full pipeline over inputs and returns the final ELF
// image plus every intermediate artifact. It never mutates inputs.
func Assemble(inputs []asmparser.Input, opts Options) (Outcome, error) {
	src, err := asmparser.Parse(inputs)
	if err != nil {
		return Outcome{}, err
	}

	hasDataOrBss := elfbuild.HasDataOrBss(src)
	headerSize := elfbuild.HeaderSize(hasDataOrBss)

	o, err := relax.Run(src, opts.TextStart, headerSize, opts.Flags)
	if err != nil {
		return Outcome{}, err
	}

	elfImage, err := elfbuild.Build(src, o.Links, o.Table, o.Layout, o.Result)
	if err != nil {
		return Outcome{}, err
	}

	symbols := elfbuild.BuildSymbolTable(src, o.Links, o.Table, o.Layout)

	return Outcome{
		Source:  src,
		Links:   o.Links,
		Table:   o.Table,
		Layout:  o.Layout,
		Result:  o.Result,
		Symbols: symbols,
		ELF:     elfImage,
	}, nil
}
