// Package symtab implements the symbol linker of spec.md §4.2: it connects
// every symbol use in a Source to its defining line, back-patching forward
// references and scoping numeric labels, and produces a read-only
// SymbolLinks table consumed by every later pass.
package symtab

import (
	"fmt"

	"github.com/rv32ac/asmld/asmerr"
	"github.com/rv32ac/asmld/ast"
)

// GlobalPointerSymbol is the reserved synthetic GP-relative base symbol; it
// is never a valid user-defined label or .equ target, but references to it
// are legal and evaluate to data_start + 2048 (spec.md §3.2.8).
const GlobalPointerSymbol = "__global_pointer$"

// GlobalPointerDef is the sentinel defining-line pointer attached to
// __global_pointer$ references; no source line defines it, the layout does.
var GlobalPointerDef = ast.LinePointer{File: -1, Line: -1}

// Reference binds one identifier/numeric-label spelling appearing in a line
// to the LinePointer of its resolved definition.
type Reference struct {
	Name string
	Def  ast.LinePointer
}

// Links is the read-only result of symbol linking: for each line, the list
// of references its expressions make, each resolved to a defining line.
type Links struct {
	byLine  map[ast.LinePointer][]Reference
	Globals map[string]ast.LinePointer // exported (.global) names -> definition
}

// RefsFor returns the resolved references attached to a line (nil if none).
func (l *Links) RefsFor(p ast.LinePointer) []Reference { return l.byLine[p] }

type pendingRef struct {
	name string
	from ast.LinePointer
}

// linker holds the mutable state of one file-scoped linking pass.
type linker struct {
	links      *Links
	defs       map[string]ast.LinePointer
	unresolved []pendingRef
}

// Link performs the two-pass symbol linking algorithm of spec.md §4.2 and
// returns the completed Links table, or the first fatal error encountered.
func Link(src *ast.Source) (*Links, error) {
	links := &Links{
		byLine:  make(map[ast.LinePointer][]Reference),
		Globals: make(map[string]ast.LinePointer),
	}

	type crossRef struct {
		name string
		from ast.LinePointer
	}
	var crossFileUnresolved []crossRef

	for fi, file := range src.Files {
		l := &linker{links: links, defs: make(map[string]ast.LinePointer)}

		for li, line := range file.Lines {
			ptr := ast.LinePointer{File: fi, Line: li}

			switch line.Kind {
			case ast.KindLabel:
				if line.Label.Numeric {
					continue // numeric labels are linked in a dedicated pass below
				}
				if line.Label.Name == GlobalPointerSymbol {
					return nil, asmerr.New(asmerr.DuplicateSymbolRestricted, posOf(line),
						"%s is reserved and cannot be user-defined", GlobalPointerSymbol)
				}
				if prev, ok := l.defs[line.Label.Name]; ok && src.Line(prev).Kind == ast.KindLabel {
					return nil, asmerr.New(asmerr.DuplicateSymbolRestricted, posOf(line),
						"symbol %q already defined as a label", line.Label.Name)
				}
				l.define(line.Label.Name, ptr)

			case ast.KindInstruction:
				for _, op := range line.Instruction.Operands {
					l.walkExpr(op.Expr, ptr)
				}

			case ast.KindDirective:
				d := line.Directive
				switch d.Name {
				case ".text", ".data", ".bss", ".global":
					// no symbol references of their own
				case ".equ":
					if d.EquName == GlobalPointerSymbol {
						return nil, asmerr.New(asmerr.DuplicateSymbolRestricted, posOf(line),
							"%s is reserved and cannot be user-defined", GlobalPointerSymbol)
					}
					// .equ may shadow an earlier .equ, but never a label.
					if prev, ok := l.defs[d.EquName]; ok && src.Line(prev).Kind == ast.KindLabel {
						return nil, asmerr.New(asmerr.DuplicateSymbolRestricted, posOf(line),
							"symbol %q already defined as a label", d.EquName)
					}
					l.walkExpr(d.EquExpr, ptr)
					l.define(d.EquName, ptr) // shadows: later refs see the new definition
				default:
					for _, e := range d.Exprs {
						l.walkExpr(e, ptr)
					}
					l.walkExpr(d.Arg, ptr)
				}
			}
		}

		if err := resolveNumericLabels(file, fi, links); err != nil {
			return nil, err
		}

		for _, p := range l.unresolved {
			crossFileUnresolved = append(crossFileUnresolved, crossRef{name: p.name, from: p.from})
		}

		for _, line := range file.Lines {
			if line.Kind == ast.KindDirective && line.Directive.Name == ".global" {
				name := line.Directive.GlobalName
				if def, ok := l.defs[name]; ok {
					links.Globals[name] = def
				}
			}
		}
	}

	for _, cr := range crossFileUnresolved {
		def, ok := links.Globals[cr.name]
		if !ok {
			return nil, asmerr.New(asmerr.UnresolvedSymbol, posFromPtr(src, cr.from),
				"unresolved symbol %q", cr.name)
		}
		addRef(links, cr.from, cr.name, def)
	}

	return links, nil
}

// define records name as defined at ptr (overwriting any earlier .equ
// definition) and drains the unresolved queue of any reference naming it.
func (l *linker) define(name string, ptr ast.LinePointer) {
	l.defs[name] = ptr
	kept := l.unresolved[:0]
	for _, p := range l.unresolved {
		if p.name == name {
			addRef(l.links, p.from, name, ptr)
		} else {
			kept = append(kept, p)
		}
	}
	l.unresolved = kept
}

// walkExpr records a Reference for every identifier in expr, resolving
// immediately against already-known definitions and queuing forward
// references for resolution when (if) their definition is later seen.
func (l *linker) walkExpr(e *ast.Expression, from ast.LinePointer) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ast.ExprIdent:
		if e.Name == GlobalPointerSymbol {
			addRef(l.links, from, e.Name, GlobalPointerDef)
			return
		}
		if def, ok := l.defs[e.Name]; ok {
			addRef(l.links, from, e.Name, def)
		} else {
			l.unresolved = append(l.unresolved, pendingRef{name: e.Name, from: from})
		}
	case ast.ExprNumericLabel:
		// handled by resolveNumericLabels
	case ast.ExprUnary:
		l.walkExpr(e.X, from)
	case ast.ExprBinary:
		l.walkExpr(e.L, from)
		l.walkExpr(e.R, from)
	}
}

func addRef(links *Links, from ast.LinePointer, name string, def ast.LinePointer) {
	links.byLine[from] = append(links.byLine[from], Reference{Name: name, Def: def})
}

// resolveNumericLabels implements the Nf/Nb scoping rule: Nf refers to the
// next occurrence of N: after the reference; Nb to the most recent at or
// before it. Numeric label scopes never cross a non-numeric label or
// segment-directive boundary, which is encoded by segmenting the file into
// "numeric epochs" split at those boundaries.
func resolveNumericLabels(file *ast.SourceFile, fileIdx int, links *Links) error {
	var epochs [][]int
	var cur []int
	for li, line := range file.Lines {
		boundary := false
		if line.Kind == ast.KindLabel && !line.Label.Numeric {
			boundary = true
		}
		if line.Kind == ast.KindDirective {
			switch line.Directive.Name {
			case ".text", ".data", ".bss":
				boundary = true
			}
		}
		if boundary && len(cur) > 0 {
			epochs = append(epochs, cur)
			cur = nil
		}
		cur = append(cur, li)
	}
	if len(cur) > 0 {
		epochs = append(epochs, cur)
	}

	for _, epoch := range epochs {
		defs := map[string][]int{}
		for _, li := range epoch {
			line := file.Lines[li]
			if line.Kind == ast.KindLabel && line.Label.Numeric {
				defs[line.Label.Name] = append(defs[line.Label.Name], li)
			}
		}
		for _, li := range epoch {
			line := file.Lines[li]
			for _, ref := range collectNumericRefs(line) {
				occ := defs[ref.digit]
				var target int
				found := false
				if ref.forward {
					for _, o := range occ {
						if o > li {
							target = o
							found = true
							break
						}
					}
				} else {
					for i := len(occ) - 1; i >= 0; i-- {
						if occ[i] <= li {
							target = occ[i]
							found = true
							break
						}
					}
				}
				if !found {
					return asmerr.New(asmerr.UnresolvedSymbol, posOf(line),
						"unresolved numeric label %s%s", ref.digit, dirSuffix(ref.forward))
				}
				from := ast.LinePointer{File: fileIdx, Line: li}
				def := ast.LinePointer{File: fileIdx, Line: target}
				name := fmt.Sprintf("%s%s", ref.digit, dirSuffix(ref.forward))
				links.byLine[from] = append(links.byLine[from], Reference{Name: name, Def: def})
			}
		}
	}
	return nil
}

func dirSuffix(forward bool) string {
	if forward {
		return "f"
	}
	return "b"
}

type numericRef struct {
	digit   string
	forward bool
}

func collectNumericRefs(line *ast.Line) []numericRef {
	var out []numericRef
	var walk func(e *ast.Expression)
	walk = func(e *ast.Expression) {
		if e == nil {
			return
		}
		switch e.Kind {
		case ast.ExprNumericLabel:
			out = append(out, numericRef{digit: e.Name, forward: e.Forward})
		case ast.ExprUnary:
			walk(e.X)
		case ast.ExprBinary:
			walk(e.L)
			walk(e.R)
		}
	}
	switch line.Kind {
	case ast.KindInstruction:
		for _, op := range line.Instruction.Operands {
			walk(op.Expr)
		}
	case ast.KindDirective:
		d := line.Directive
		walk(d.EquExpr)
		walk(d.Arg)
		for _, e := range d.Exprs {
			walk(e)
		}
	}
	return out
}

func posOf(line *ast.Line) asmerr.Position {
	return asmerr.FromAST(linePos(line))
}

func linePos(line *ast.Line) ast.Position {
	switch line.Kind {
	case ast.KindInstruction:
		if len(line.Instruction.Operands) > 0 && line.Instruction.Operands[0].Expr != nil {
			return line.Instruction.Operands[0].Expr.Pos
		}
	case ast.KindDirective:
		if line.Directive.EquExpr != nil {
			return line.Directive.EquExpr.Pos
		}
	}
	return ast.Position{}
}

func posFromPtr(src *ast.Source, p ast.LinePointer) asmerr.Position {
	return posOf(src.Line(p))
}
