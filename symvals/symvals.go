// Package symvals implements the symbol-value evaluator of spec.md §4.5: a
// lazy, cycle-detecting pass that computes the value of every defined
// symbol (label or .equ) exactly once per relaxation iteration.
package symvals

import (
	"github.com/rv32ac/asmld/asmerr"
	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/eval"
	"github.com/rv32ac/asmld/layout"
	"github.com/rv32ac/asmld/symtab"
)

// key identifies one SymbolReference: a name plus the LinePointer of its
// definition (two different symbols can share a name across redefinition,
// so the defining line disambiguates them, matching spec.md §3.1).
type key struct {
	name string
	def  ast.LinePointer
}

// Table is the read-only result of one relaxation iteration's symbol-value
// evaluation; it implements eval.RefValues so the expression evaluator can
// resolve identifiers directly against it.
type Table struct {
	values map[key]eval.Value
}

func (t *Table) Lookup(name string, def ast.LinePointer) (eval.Value, bool) {
	v, ok := t.values[key{name: name, def: def}]
	return v, ok
}

// Entry is one resolved symbol value, exposed for diagnostic dumps
// (--dump-values) rather than expression evaluation.
type Entry struct {
	Name  string
	Def   ast.LinePointer
	Value eval.Value
}

// All returns every resolved symbol value in this table. Order is
// unspecified; callers that need a stable order (dump output) should sort.
func (t *Table) All() []Entry {
	out := make([]Entry, 0, len(t.values))
	for k, v := range t.values {
		out = append(out, Entry{Name: k.name, Def: k.def, Value: v})
	}
	return out
}

type evaluator struct {
	src     *ast.Source
	links   *symtab.Links
	lay     *layout.Layout
	table   *Table
	onStack map[key]bool
	chain   []string
}

// EvalAll computes the value of every symbol defined anywhere in src,
// against the given layout and links, returning a fresh Table (spec.md
// §4.5, §4.6).
func EvalAll(src *ast.Source, links *symtab.Links, lay *layout.Layout) (*Table, error) {
	e := &evaluator{
		src:     src,
		links:   links,
		lay:     lay,
		table:   &Table{values: make(map[key]eval.Value)},
		onStack: make(map[key]bool),
	}
	// The synthetic GP base has no defining line; seed it from the layout so
	// references resolve like any other symbol.
	e.table.values[key{name: symtab.GlobalPointerSymbol, def: symtab.GlobalPointerDef}] =
		eval.Addr(lay.GlobalPointer())
	for fi, file := range src.Files {
		for li, line := range file.Lines {
			ptr := ast.LinePointer{File: fi, Line: li}
			if line.Kind == ast.KindLabel && !line.Label.Numeric {
				if _, err := e.evalSymbol(line.Label.Name, ptr); err != nil {
					return nil, err
				}
			}
			if line.Kind == ast.KindDirective && line.Directive.Name == ".equ" {
				if _, err := e.evalSymbol(line.Directive.EquName, ptr); err != nil {
					return nil, err
				}
			}
			if line.Kind == ast.KindLabel && line.Label.Numeric {
				// Memoize under both directional spellings so references
				// ("Nf"/"Nb" plus this defining line) resolve either way.
				if _, err := e.evalNumericLabel(line.Label.Name+"f", ptr); err != nil {
					return nil, err
				}
				if _, err := e.evalNumericLabel(line.Label.Name+"b", ptr); err != nil {
					return nil, err
				}
			}
		}
	}
	return e.table, nil
}

func (e *evaluator) evalSymbol(name string, def ast.LinePointer) (eval.Value, error) {
	k := key{name: name, def: def}
	if v, ok := e.table.values[k]; ok {
		return v, nil
	}
	if e.onStack[k] {
		chain := append(append([]string{}, e.chain...), name)
		return eval.Value{}, asmerr.New(asmerr.CircularReference, asmerr.Position{},
			"circular reference: %s", asmerr.CircularChain(chain))
	}
	e.onStack[k] = true
	e.chain = append(e.chain, name)
	defer func() {
		delete(e.onStack, k)
		e.chain = e.chain[:len(e.chain)-1]
	}()

	line := e.src.Line(def)
	var v eval.Value
	var err error

	switch line.Kind {
	case ast.KindLabel:
		ll := e.lay.Lines[def]
		v = eval.Addr(e.lay.SegmentBase(ll.Segment) + ll.Offset)
	case ast.KindDirective: // .equ
		for _, ref := range e.links.RefsFor(def) {
			if _, err = e.evalRef(ref); err != nil {
				return eval.Value{}, err
			}
		}
		v, err = eval.Eval(line.Directive.EquExpr, e.evalLine(def))
		if err != nil {
			return eval.Value{}, err
		}
	default:
		return eval.Value{}, asmerr.New(asmerr.Syntax, asmerr.Position{}, "symbol defined by non-definition line")
	}

	e.table.values[k] = v
	return v, nil
}

// evalRef recursively evaluates the symbol a Reference points at before the
// referencing expression itself is evaluated, as required by spec.md §4.5.
func (e *evaluator) evalRef(ref symtab.Reference) (eval.Value, error) {
	if ref.Def == symtab.GlobalPointerDef {
		v, _ := e.table.Lookup(ref.Name, ref.Def)
		return v, nil
	}
	defLine := e.src.Line(ref.Def)
	name := ref.Name
	if defLine.Kind == ast.KindLabel && defLine.Label.Numeric {
		return e.evalNumericLabel(name, ref.Def)
	}
	symName := name
	if defLine.Kind == ast.KindLabel {
		symName = defLine.Label.Name
	} else if defLine.Kind == ast.KindDirective {
		symName = defLine.Directive.EquName
	}
	return e.evalSymbol(symName, ref.Def)
}

// evalNumericLabel evaluates (and memoizes under the Nf/Nb composite key
// used by eval's identifier lookup) the address of a numeric label
// definition line.
func (e *evaluator) evalNumericLabel(compositeName string, def ast.LinePointer) (eval.Value, error) {
	k := key{name: compositeName, def: def}
	if v, ok := e.table.values[k]; ok {
		return v, nil
	}
	ll := e.lay.Lines[def]
	v := eval.Addr(e.lay.SegmentBase(ll.Segment) + ll.Offset)
	e.table.values[k] = v
	return v, nil
}

// evalLine builds the eval.Line context for evaluating the expression that
// lives at def (used only for .equ lines, whose own expression is what gets
// evaluated against def's address and references).
func (e *evaluator) evalLine(def ast.LinePointer) *eval.Line {
	return &eval.Line{
		Pos:     ast.Position{},
		Addr:    e.lay.Address(def),
		Refs:    refsFor(e.links, def),
		Symbols: e.table,
	}
}

func refsFor(links *symtab.Links, def ast.LinePointer) []eval.Ref {
	srefs := links.RefsFor(def)
	out := make([]eval.Ref, len(srefs))
	for i, r := range srefs {
		out[i] = eval.Ref{Name: r.Name, Def: r.Def}
	}
	return out
}

// LineContext builds the eval.Line context any other pass (the instruction
// encoder) needs to evaluate an expression appearing on a given line.
func (t *Table) LineContext(links *symtab.Links, lay *layout.Layout, ptr ast.LinePointer) *eval.Line {
	return &eval.Line{
		Addr:    lay.Address(ptr),
		Refs:    refsFor(links, ptr),
		Symbols: t,
	}
}
