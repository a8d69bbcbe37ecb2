// Package tui is the interactive browser for assembler dump output
// (--dump-ast, --dump-symbols, --dump-values, --dump-code, --dump-elf).
// Grounded on the teacher's debugger/tui.go: same tview.Flex panel layout
// and tcell key-capture idiom, adapted from a live-CPU debugger (registers,
// memory, disassembly around a running PC) to a static browser over one
// completed assembly's pass results — there is no running program to step,
// so there are no execution keys; F1-F5 switch between the five panels.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/elfbuild"
	"github.com/rv32ac/asmld/encode"
	"github.com/rv32ac/asmld/layout"
	"github.com/rv32ac/asmld/symtab"
	"github.com/rv32ac/asmld/symvals"
)

// Data bundles every pass result the browser can render a panel from. Any
// field may be nil/empty; the corresponding panel then shows a placeholder
// instead of failing, the same way the teacher's SourceView degrades when
// no source map is loaded.
type Data struct {
	Source  *ast.Source
	Links   *symtab.Links
	Table   *symvals.Table
	Layout  *layout.Layout
	Result  encode.Result
	Symbols []elfbuild.Symbol
	ELF     []byte
}

// Browser is the dump-browsing text UI.
type Browser struct {
	App   *tview.Application
	Pages *tview.Pages

	MainLayout *tview.Flex
	StatusBar  *tview.TextView

	ASTView     *tview.TextView
	SymbolsView *tview.TextView
	ValuesView  *tview.TextView
	CodeView    *tview.TextView
	ELFView     *tview.TextView

	data *Data
}

// NewBrowser builds a Browser over data, ready for Run.
func NewBrowser(data *Data) *Browser {
	b := &Browser{
		App:  tview.NewApplication(),
		data: data,
	}
	b.initializeViews()
	b.buildLayout()
	b.setupKeyBindings()
	b.RefreshAll()
	return b
}

func (b *Browser) initializeViews() {
	b.ASTView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	b.ASTView.SetBorder(true).SetTitle(" AST (F1) ")

	b.SymbolsView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	b.SymbolsView.SetBorder(true).SetTitle(" Symbols (F2) ")

	b.ValuesView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	b.ValuesView.SetBorder(true).SetTitle(" Values (F3) ")

	b.CodeView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	b.CodeView.SetBorder(true).SetTitle(" Code (F4) ")

	b.ELFView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	b.ELFView.SetBorder(true).SetTitle(" ELF (F5) ")

	b.StatusBar = tview.NewTextView().SetDynamicColors(true)
	b.StatusBar.SetText("[yellow]F1[white] AST  [yellow]F2[white] Symbols  [yellow]F3[white] Values  " +
		"[yellow]F4[white] Code  [yellow]F5[white] ELF  [yellow]Ctrl+C[white] Quit")
}

func (b *Browser) buildLayout() {
	b.Pages = tview.NewPages().
		AddPage("ast", b.ASTView, true, true).
		AddPage("symbols", b.SymbolsView, true, false).
		AddPage("values", b.ValuesView, true, false).
		AddPage("code", b.CodeView, true, false).
		AddPage("elf", b.ELFView, true, false)

	b.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(b.Pages, 0, 1, true).
		AddItem(b.StatusBar, 1, 0, false)
}

func (b *Browser) setupKeyBindings() {
	b.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF1:
			b.Pages.SwitchToPage("ast")
			return nil
		case tcell.KeyF2:
			b.Pages.SwitchToPage("symbols")
			return nil
		case tcell.KeyF3:
			b.Pages.SwitchToPage("values")
			return nil
		case tcell.KeyF4:
			b.Pages.SwitchToPage("code")
			return nil
		case tcell.KeyF5:
			b.Pages.SwitchToPage("elf")
			return nil
		case tcell.KeyCtrlC:
			b.App.Stop()
			return nil
		}
		return event
	})
}

// RefreshAll re-renders every panel from the current Data.
func (b *Browser) RefreshAll() {
	b.renderAST()
	b.renderSymbols()
	b.renderValues()
	b.renderCode()
	b.renderELF()
}

func (b *Browser) renderAST() {
	if b.data.Source == nil {
		b.ASTView.SetText("[yellow]No AST available[white]")
		return
	}
	var sb strings.Builder
	for fi, file := range b.data.Source.Files {
		fmt.Fprintf(&sb, "[yellow]%s[white]\n", file.Name)
		for li, line := range file.Lines {
			ptr := ast.LinePointer{File: fi, Line: li}
			fmt.Fprintf(&sb, "  %04d:%04d  %s\n", ptr.File, ptr.Line, describeLine(line))
		}
	}
	b.ASTView.SetText(sb.String())
}

func describeLine(line *ast.Line) string {
	switch line.Kind {
	case ast.KindLabel:
		return fmt.Sprintf("[green]label[white] %s:", line.Label.Name)
	case ast.KindDirective:
		return fmt.Sprintf("[blue]directive[white] %s", line.Directive.Name)
	case ast.KindInstruction:
		return fmt.Sprintf("[white]instr[white] %s (%d operands)", line.Instruction.Mnemonic, len(line.Instruction.Operands))
	default:
		return "?"
	}
}

func (b *Browser) renderSymbols() {
	if len(b.data.Symbols) == 0 {
		b.SymbolsView.SetText("[yellow]No symbols available[white]")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-24s %-10s %-8s %-8s %s\n", "NAME", "VALUE", "BIND", "TYPE", "SECTION")
	for _, s := range b.data.Symbols {
		value := "-"
		if s.HasAddr {
			value = fmt.Sprintf("0x%08x", s.Value)
		}
		fmt.Fprintf(&sb, "%-24s %-10s %-8s %-8s %s\n", s.Name, value, s.Binding, s.Type, s.Section)
	}
	b.SymbolsView.SetText(sb.String())
}

func (b *Browser) renderValues() {
	if b.data.Table == nil {
		b.ValuesView.SetText("[yellow]No symbol values available[white]")
		return
	}
	entries := b.data.Table.All()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-24s %-12s %s\n", "NAME", "VALUE", "KIND")
	for _, e := range entries {
		if isNumericEntry(e.Name) {
			continue
		}
		kind := "integer"
		if e.Value.IsAddr() {
			kind = "address"
		}
		fmt.Fprintf(&sb, "%-24s 0x%-10x %s\n", e.Name, e.Value.Int, kind)
	}
	b.ValuesView.SetText(sb.String())
}

// isNumericEntry reports whether a symbol-value entry is a numeric-label
// definition ("1f"/"1b" style); these are recorded twice (once per
// direction), so the values panel hides them.
func isNumericEntry(name string) bool {
	return len(name) == 2 && name[0] >= '0' && name[0] <= '9' && (name[1] == 'f' || name[1] == 'b')
}

func (b *Browser) renderCode() {
	if b.data.Source == nil || b.data.Layout == nil {
		b.CodeView.SetText("[yellow]No encoded output available[white]")
		return
	}
	var sb strings.Builder
	for fi, file := range b.data.Source.Files {
		for li, line := range file.Lines {
			if line.Kind != ast.KindInstruction {
				continue
			}
			ptr := ast.LinePointer{File: fi, Line: li}
			addr := b.data.Layout.Address(ptr)
			fmt.Fprintf(&sb, "[yellow]0x%08x[white]  %s\n", addr, line.Raw)
		}
	}
	b.CodeView.SetText(sb.String())
}

func (b *Browser) renderELF() {
	if len(b.data.ELF) == 0 {
		b.ELFView.SetText("[yellow]No ELF image available[white]")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[yellow]%d bytes[white]\n\n", len(b.data.ELF))
	for off := 0; off < len(b.data.ELF); off += 16 {
		end := off + 16
		if end > len(b.data.ELF) {
			end = len(b.data.ELF)
		}
		row := b.data.ELF[off:end]
		fmt.Fprintf(&sb, "0x%08x: %s\n", off, hexRow(row))
	}
	b.ELFView.SetText(sb.String())
}

func hexRow(row []byte) string {
	parts := make([]string, len(row))
	for i, bt := range row {
		parts[i] = fmt.Sprintf("%02x", bt)
	}
	return strings.Join(parts, " ")
}

// Run starts the browser's event loop until the user quits.
func (b *Browser) Run() error {
	return b.App.SetRoot(b.MainLayout, true).SetFocus(b.Pages).Run()
}

// Stop tears down the running application.
func (b *Browser) Stop() {
	b.App.Stop()
}
