package elfbuild

import (
	"sort"

	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/layout"
	"github.com/rv32ac/asmld/symtab"
	"github.com/rv32ac/asmld/symvals"
)

// Binding and Type mirror the ELF STB_*/STT_* enumerations; the ordered
// Symbol list below feeds both the --dump-symbols debug output (spec.md
// §6.1) and the on-disk .symtab/.strtab Build serializes into the binary
// (spec.md §4.7).
type Binding int

const (
	Local Binding = iota
	Global
)

func (b Binding) String() string {
	if b == Global {
		return "GLOBAL"
	}
	return "LOCAL"
}

type SymType int

const (
	NoType SymType = iota
	Object
	Func
	Section
	File
)

func (t SymType) String() string {
	switch t {
	case Object:
		return "OBJECT"
	case Func:
		return "FUNC"
	case Section:
		return "SECTION"
	case File:
		return "FILE"
	default:
		return "NOTYPE"
	}
}

// Symbol is one entry of the debug-oriented symbol table spec.md §4.7
// describes: section symbols, per-file STT_FILE + local labels, synthetic
// linker globals, then user .global exports, in that order.
type Symbol struct {
	Name    string
	Value   int64
	Binding Binding
	Type    SymType
	Section ast.Segment
	HasAddr bool // section/file symbols carry no address
}

// BuildSymbolTable produces the ordered symbol list for a converged
// assembly (spec.md §4.7's "Symbol table" paragraph).
func BuildSymbolTable(src *ast.Source, links *symtab.Links, table *symvals.Table, lay *layout.Layout) []Symbol {
	var syms []Symbol

	if lay.TextSize > 0 {
		syms = append(syms, Symbol{Name: ".text", Binding: Local, Type: Section, Section: ast.Text})
	}
	if lay.DataSize > 0 {
		syms = append(syms, Symbol{Name: ".data", Binding: Local, Type: Section, Section: ast.Data})
	}
	if lay.BssSize > 0 {
		syms = append(syms, Symbol{Name: ".bss", Binding: Local, Type: Section, Section: ast.Bss})
	}

	globalSet := make(map[string]bool, len(links.Globals))
	for name := range links.Globals {
		globalSet[name] = true
	}

	for fi, file := range src.Files {
		syms = append(syms, Symbol{Name: file.Name, Binding: Local, Type: File})
		var locals []Symbol
		for li, line := range file.Lines {
			if line.Kind != ast.KindLabel || line.Label.Numeric || globalSet[line.Label.Name] {
				continue
			}
			ptr := ast.LinePointer{File: fi, Line: li}
			locals = append(locals, Symbol{
				Name:    line.Label.Name,
				Value:   lay.Address(ptr),
				Binding: Local,
				Type:    labelType(lay, ptr),
				Section: lay.Lines[ptr].Segment,
				HasAddr: true,
			})
		}
		sort.Slice(locals, func(i, j int) bool { return locals[i].Name < locals[j].Name })
		syms = append(syms, locals...)
	}

	syms = append(syms,
		Symbol{Name: symtab.GlobalPointerSymbol, Value: lay.GlobalPointer(), Binding: Global, Type: Object, Section: ast.Data, HasAddr: true},
		Symbol{Name: "__SDATA_BEGIN__", Value: lay.DataStart(), Binding: Global, Type: Object, Section: ast.Data, HasAddr: true},
		Symbol{Name: "__BSS_END__", Value: lay.BssStart() + lay.BssSize, Binding: Global, Type: Object, Section: ast.Bss, HasAddr: true},
	)

	var globalNames []string
	for name := range links.Globals {
		globalNames = append(globalNames, name)
	}
	sort.Strings(globalNames)
	for _, name := range globalNames {
		def := links.Globals[name]
		syms = append(syms, Symbol{
			Name:    name,
			Value:   symbolValue(src, table, lay, name, def),
			Binding: Global,
			Type:    labelType(lay, def),
			Section: lay.Lines[def].Segment,
			HasAddr: true,
		})
	}

	return syms
}

func labelType(lay *layout.Layout, def ast.LinePointer) SymType {
	if lay.Lines[def].Segment == ast.Text {
		return Func
	}
	return Object
}

// symbolValue prefers the evaluated symvals entry so .equ-exported globals
// report their computed value rather than a line address; it falls back to
// the line's own address, which is correct for ordinary labels.
func symbolValue(src *ast.Source, table *symvals.Table, lay *layout.Layout, name string, def ast.LinePointer) int64 {
	line := src.Line(def)
	if line.Kind == ast.KindDirective && line.Directive.Name == ".equ" {
		if v, ok := table.Lookup(name, def); ok {
			return v.Int
		}
	}
	return lay.Address(def)
}

// Elf32_Sym serialization.
const (
	symEntSize = 16
	shnAbs     = 0xFFF1 // SHN_ABS, used for STT_FILE entries
)

func (b Binding) elf() uint8 {
	if b == Global {
		return 1 // STB_GLOBAL
	}
	return 0 // STB_LOCAL
}

func (t SymType) elf() uint8 {
	switch t {
	case Object:
		return 1
	case Func:
		return 2
	case Section:
		return 3
	case File:
		return 4
	default:
		return 0
	}
}

// serializeSymtab renders the ordered symbol list as .symtab and .strtab
// byte images. sectionIndex maps a symbol's segment onto its section-header
// slot; STT_FILE entries use SHN_ABS as usual. localCount (the null entry
// plus every STB_LOCAL symbol) becomes the .symtab header's sh_info, which
// relies on BuildSymbolTable keeping all locals ahead of all globals.
func serializeSymtab(syms []Symbol, lay *layout.Layout, sectionIndex func(ast.Segment) uint16) (symBytes, strtab []byte, localCount uint32) {
	strtab = []byte{0}
	symBytes = make([]byte, symEntSize) // entry 0: the null symbol
	localCount = 1

	for _, s := range syms {
		nameOff := uint32(len(strtab))
		strtab = append(strtab, s.Name...)
		strtab = append(strtab, 0)

		var value uint32
		switch {
		case s.HasAddr:
			value = uint32(s.Value)
		case s.Type == Section:
			value = uint32(lay.SegmentBase(s.Section))
		}

		shndx := sectionIndex(s.Section)
		if s.Type == File {
			shndx = shnAbs
		}
		if s.Binding == Local {
			localCount++
		}

		symBytes = put32(symBytes, nameOff)
		symBytes = put32(symBytes, value)
		symBytes = put32(symBytes, 0) // st_size: not determinable here
		symBytes = append(symBytes, s.Binding.elf()<<4|s.Type.elf(), 0)
		symBytes = put16(symBytes, shndx)
	}
	return symBytes, strtab, localCount
}
