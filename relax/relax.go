// Package relax implements the fixed-point relaxation driver of spec.md
// §4.6: it repeatedly recomputes layout, re-evaluates symbol values, and
// re-encodes every line until a full pass leaves every size unchanged, or
// gives up after MaxIterations.
package relax

import (
	"github.com/rv32ac/asmld/asmerr"
	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/encode"
	"github.com/rv32ac/asmld/layout"
	"github.com/rv32ac/asmld/symtab"
	"github.com/rv32ac/asmld/symvals"
)

// MaxIterations bounds the relaxation loop (spec.md §4.6). The monotonicity
// invariant (sizes only ever shrink) means convergence is guaranteed in at
// most the number of distinct size classes a line can pass through; this cap
// exists only to turn a broken invariant into a diagnosable error instead of
// an infinite loop.
const MaxIterations = 64

// Outcome is the final, converged state of one relaxation run: the encoded
// byte image plus the layout and symbol table it was produced against (the
// ELF builder needs both to place symbols and compute section addresses).
type Outcome struct {
	Result encode.Result
	Layout *layout.Layout
	Table  *symvals.Table
	Links  *symtab.Links
}

// Run links src once, then relaxes layout/values/encoding to a fixed point.
func Run(src *ast.Source, textStart int64, headerSize int64, flags encode.Flags) (Outcome, error) {
	links, err := symtab.Link(src)
	if err != nil {
		return Outcome{}, err
	}

	lay := layout.New(src, textStart, headerSize)

	var table *symvals.Table
	var result encode.Result

	for iter := 0; iter < MaxIterations; iter++ {
		lay.Recompute(src)

		table, err = symvals.EvalAll(src, links, lay)
		if err != nil {
			return Outcome{}, err
		}

		lay.SizesChanged = false
		result, err = encode.Emit(src, links, table, lay, flags)
		if err != nil {
			return Outcome{}, err
		}

		if !lay.SizesChanged {
			return Outcome{Result: result, Layout: lay, Table: table, Links: links}, nil
		}
	}

	return Outcome{}, asmerr.New(asmerr.ConvergenceFailure, asmerr.Position{},
		"relaxation did not converge within %d iterations", MaxIterations)
}
