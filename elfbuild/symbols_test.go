package elfbuild_test

import (
	"testing"

	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/elfbuild"
	"github.com/rv32ac/asmld/encode"
	"github.com/rv32ac/asmld/relax"
	"github.com/stretchr/testify/require"
)

func TestBuildSymbolTable_GlobalsAndLocalsOrdered(t *testing.T) {
	src := &ast.Source{Files: []*ast.SourceFile{{Name: "s.s", Lines: []*ast.Line{
		dirLine(".text"),
		globalLine("_start"),
		labelLine("_start"),
		instrLine("nop"),
		labelLine("helper"),
		instrLine("ret"),
	}}}}

	headerSize := elfbuild.HeaderSize(false)
	out, err := relax.Run(src, 0x10000, headerSize, encode.Flags{})
	require.NoError(t, err)

	syms := elfbuild.BuildSymbolTable(src, out.Links, out.Table, out.Layout)

	var sawTextSection, sawFile, sawHelperLocal, sawStartGlobal bool
	for _, s := range syms {
		switch {
		case s.Name == ".text" && s.Type == elfbuild.Section:
			sawTextSection = true
		case s.Name == "s.s" && s.Type == elfbuild.File:
			sawFile = true
		case s.Name == "helper" && s.Binding == elfbuild.Local:
			sawHelperLocal = true
		case s.Name == "_start" && s.Binding == elfbuild.Global:
			sawStartGlobal = true
			require.Equal(t, out.Layout.TextFirstInstructionAddr(), s.Value)
		}
	}
	require.True(t, sawTextSection)
	require.True(t, sawFile)
	require.True(t, sawHelperLocal)
	require.True(t, sawStartGlobal)
}
