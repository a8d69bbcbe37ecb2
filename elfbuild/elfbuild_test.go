package elfbuild_test

import (
	"encoding/binary"
	"testing"

	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/elfbuild"
	"github.com/rv32ac/asmld/encode"
	"github.com/rv32ac/asmld/relax"
	"github.com/stretchr/testify/require"
)

func dirLine(name string) *ast.Line {
	return &ast.Line{Kind: ast.KindDirective, Directive: &ast.Directive{Name: name}}
}

func globalLine(name string) *ast.Line {
	return &ast.Line{Kind: ast.KindDirective, Directive: &ast.Directive{Name: ".global", GlobalName: name}}
}

func labelLine(name string) *ast.Line {
	return &ast.Line{Kind: ast.KindLabel, Label: &ast.Label{Name: name}}
}

func instrLine(mnemonic string, ops ...ast.Operand) *ast.Line {
	return &ast.Line{Kind: ast.KindInstruction, Instruction: &ast.Instruction{Mnemonic: mnemonic, Operands: ops}}
}

func regOp(r ast.Register) ast.Operand { return ast.Operand{Kind: ast.OperandRegister, Reg: r} }
func intOp(v int64) ast.Operand {
	return ast.Operand{Kind: ast.OperandExpression, Expr: &ast.Expression{Kind: ast.ExprInteger, IntValue: v}}
}

func buildS1(t *testing.T) []byte {
	t.Helper()
	src := &ast.Source{Files: []*ast.SourceFile{{Name: "s1.s", Lines: []*ast.Line{
		dirLine(".text"),
		globalLine("_start"),
		labelLine("_start"),
		instrLine("addi", regOp(ast.Register(1)), regOp(ast.Register(0)), intOp(100)),
		instrLine("addi", regOp(ast.Register(2)), regOp(ast.Register(0)), intOp(42)),
		instrLine("add", regOp(ast.Register(3)), regOp(ast.Register(1)), regOp(ast.Register(2))),
		instrLine("ecall"),
	}}}}

	hasDataOrBss := elfbuild.HasDataOrBss(src)
	headerSize := elfbuild.HeaderSize(hasDataOrBss)

	out, err := relax.Run(src, 0x10000, headerSize, encode.Flags{})
	require.NoError(t, err)
	require.Len(t, out.Result.Text, 16)

	img, err := elfbuild.Build(src, out.Links, out.Table, out.Layout, out.Result)
	require.NoError(t, err)
	return img
}

func TestBuild_S1HeaderFields(t *testing.T) {
	img := buildS1(t)
	require.Equal(t, []byte{0x7F, 'E', 'L', 'F', 1, 1, 1, 0}, img[:8])

	require.Equal(t, uint16(2), binary.LittleEndian.Uint16(img[16:18]))   // e_type = ET_EXEC
	require.Equal(t, uint16(0xF3), binary.LittleEndian.Uint16(img[18:20])) // e_machine = EM_RISCV

	entry := binary.LittleEndian.Uint32(img[24:28])
	require.Equal(t, uint32(0x10000+elfbuild.HeaderSize(false)), entry)

	phoff := binary.LittleEndian.Uint32(img[28:32])
	require.Equal(t, uint32(52), phoff)

	numPH := binary.LittleEndian.Uint16(img[44:46])
	require.Equal(t, uint16(2), numPH) // no .data/.bss in S1
}

func TestBuild_S1TextBytesFollowHeader(t *testing.T) {
	img := buildS1(t)
	headerSize := elfbuild.HeaderSize(false)
	text := img[headerSize : headerSize+16]

	// addi x1, x0, 100
	want := uint32(100)<<20 | 0<<15 | 0<<12 | 1<<7 | 0b0010011
	got := binary.LittleEndian.Uint32(text[0:4])
	require.Equal(t, want, got)
}

func buildDataProgram(t *testing.T) []byte {
	t.Helper()
	src := &ast.Source{Files: []*ast.SourceFile{{Name: "d.s", Lines: []*ast.Line{
		dirLine(".text"),
		instrLine("nop"),
		dirLine(".data"),
		{Kind: ast.KindDirective, Directive: &ast.Directive{
			Name:  ".4byte",
			Exprs: []*ast.Expression{{Kind: ast.ExprInteger, IntValue: 7}},
		}},
	}}}}

	hasDataOrBss := elfbuild.HasDataOrBss(src)
	require.True(t, hasDataOrBss)
	headerSize := elfbuild.HeaderSize(hasDataOrBss)

	out, err := relax.Run(src, 0x10000, headerSize, encode.Flags{})
	require.NoError(t, err)

	img, err := elfbuild.Build(src, out.Links, out.Table, out.Layout, out.Result)
	require.NoError(t, err)
	return img
}

func TestBuild_DataSegmentAddsThirdProgramHeader(t *testing.T) {
	img := buildDataProgram(t)
	numPH := binary.LittleEndian.Uint16(img[44:46])
	require.Equal(t, uint16(3), numPH)
}

func TestBuild_DataSegmentOffsetCongruentWithVaddr(t *testing.T) {
	img := buildDataProgram(t)

	// Elf32_Phdr fields: type, offset, vaddr, paddr, filesz, memsz, flags,
	// align. The data PT_LOAD is the third header.
	ph := img[52+2*32 : 52+3*32]
	pOff := binary.LittleEndian.Uint32(ph[4:8])
	pVaddr := binary.LittleEndian.Uint32(ph[8:12])
	pAlign := binary.LittleEndian.Uint32(ph[28:32])

	require.Equal(t, uint32(0x1000), pAlign)
	require.Equal(t, pVaddr%pAlign, pOff%pAlign)

	// The data bytes really live at that padded file offset.
	require.Equal(t, uint32(7), binary.LittleEndian.Uint32(img[pOff:pOff+4]))
}

func TestBuild_SectionHeadersAndSymtab(t *testing.T) {
	img := buildS1(t)

	shoff := binary.LittleEndian.Uint32(img[32:36])
	shnum := binary.LittleEndian.Uint16(img[48:50])
	shstrndx := binary.LittleEndian.Uint16(img[50:52])
	require.NotZero(t, shoff)
	require.Equal(t, uint16(5), shnum) // null, .text, .symtab, .strtab, .shstrtab
	require.Equal(t, uint16(4), shstrndx)

	shdr := func(i int) []byte {
		base := int(shoff) + i*40
		return img[base : base+40]
	}
	sectionOffset := func(i int) uint32 {
		return binary.LittleEndian.Uint32(shdr(i)[16:20])
	}

	// Locate .symtab by sh_type, follow sh_link to its string table.
	var symOff, symSize, strOff uint32
	for i := 0; i < int(shnum); i++ {
		h := shdr(i)
		if binary.LittleEndian.Uint32(h[4:8]) == 2 { // SHT_SYMTAB
			symOff = sectionOffset(i)
			symSize = binary.LittleEndian.Uint32(h[20:24])
			link := binary.LittleEndian.Uint32(h[24:28])
			strOff = sectionOffset(int(link))
			require.Equal(t, uint32(16), binary.LittleEndian.Uint32(h[36:40])) // sh_entsize
		}
	}
	require.NotZero(t, symOff)
	require.Zero(t, symSize%16)

	// _start must be in the on-disk table with the entry-point address
	// (property: symbol value == segment_base + offset).
	entry := binary.LittleEndian.Uint32(img[24:28])
	cstr := func(off uint32) string {
		end := off
		for img[end] != 0 {
			end++
		}
		return string(img[off:end])
	}
	found := false
	for off := symOff; off < symOff+symSize; off += 16 {
		nameOff := binary.LittleEndian.Uint32(img[off : off+4])
		if cstr(strOff+nameOff) == "_start" {
			found = true
			require.Equal(t, entry, binary.LittleEndian.Uint32(img[off+4:off+8]))
			require.Equal(t, uint8(0x12), img[off+12]) // STB_GLOBAL, STT_FUNC
		}
	}
	require.True(t, found)
}
