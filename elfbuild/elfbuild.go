// Package elfbuild emits the 32-bit little-endian RISC-V ELF executable
// described in spec.md §4.7, grounded on the byte-level ELF writers in the
// example pack's xyproto/vibe67 static-ELF generators (program-header
// layout, page-aligned segment placement) adapted from x86-64/ARM64 to
// RV32 EM_RISCV.
package elfbuild

import (
	"encoding/binary"

	"github.com/rv32ac/asmld/ast"
	"github.com/rv32ac/asmld/encode"
	"github.com/rv32ac/asmld/layout"
	"github.com/rv32ac/asmld/symtab"
	"github.com/rv32ac/asmld/symvals"
)

const (
	elfHeaderSize  = 52
	progHeaderSize = 32
	pageAlign      = 0x1000

	etExec   = 2
	emRISCV  = 0xF3
	evCurrent = 1

	ptRiscvAttributes = 0x70000003
	ptLoad            = 1

	pfX = 0x1
	pfW = 0x2
	pfR = 0x4

	efRVCCompressed = 0x0001 // E_FLAG bit for "any compressed instr present"

	sectionHeaderSize = 40

	shtProgbits = 1
	shtSymtab   = 2
	shtStrtab   = 3
	shtNobits   = 8

	shfWrite = 0x1
	shfAlloc = 0x2
	shfExec  = 0x4
)

func alignUp(v, align int64) int64 {
	return (v + align - 1) / align * align
}

// NumProgramHeaders returns how many program headers this image will carry
// (spec.md §4.7): PT_RISCV_ATTRIBUTES plus one PT_LOAD for .text, plus a
// second for .data/.bss if either is non-empty. The layout engine needs this
// count (via HeaderSize) before the first relaxation iteration, so callers
// must know in advance whether .data/.bss are used — determined directly
// from source (any non-label line placed in .data or .bss; a bare segment
// directive does not count), not from the not-yet-computed layout.
func NumProgramHeaders(hasDataOrBss bool) int {
	if hasDataOrBss {
		return 3
	}
	return 2
}

// HeaderSize computes header_size = 52 + 32*num_program_headers.
func HeaderSize(hasDataOrBss bool) int64 {
	return elfHeaderSize + progHeaderSize*int64(NumProgramHeaders(hasDataOrBss))
}

// HasDataOrBss scans src for any .data/.bss segment content, used to decide
// NumProgramHeaders before layout exists.
func HasDataOrBss(src *ast.Source) bool {
	seg := ast.Text
	for _, file := range src.Files {
		for _, line := range file.Lines {
			if line.Kind == ast.KindDirective {
				switch line.Directive.Name {
				case ".text":
					seg = ast.Text
					continue
				case ".data":
					seg = ast.Data
					continue
				case ".bss":
					seg = ast.Bss
					continue
				}
			}
			if seg != ast.Text && line.Kind != ast.KindLabel {
				return true
			}
		}
	}
	return false
}

// Build assembles the final ELF byte image from a converged relaxation
// result: ELF header, program headers, the loadable text/data image, then
// the .symtab/.strtab/.shstrtab sections and the section-header table.
func Build(src *ast.Source, links *symtab.Links, table *symvals.Table, lay *layout.Layout, result encode.Result) ([]byte, error) {
	// The program-header count must match the HeaderSize the layout was
	// computed against, so derive it from there rather than re-deciding from
	// final segment sizes (a .data directive whose content relaxed to zero
	// bytes would otherwise shift every address after the fact).
	numPH := int((lay.HeaderSize - elfHeaderSize) / progHeaderSize)
	hasDataOrBss := numPH >= 3

	entry := entryPoint(src, links, table, lay)

	// The data segment's file offset must stay page-congruent with its
	// page-aligned vaddr (DataStart) or the loader's mmap rejects it, so the
	// file image pads up to a page boundary before the data bytes.
	dataOff := alignUp(lay.HeaderSize+lay.TextSize, pageAlign)

	buf := make([]byte, 0, int(dataOff)+len(result.Data))
	buf = appendELFHeader(buf, entry, numPH, result.UsedCompressed)
	buf = appendProgramHeaders(buf, lay, hasDataOrBss, dataOff)

	// pad to HeaderSize in case the caller's HeaderSize disagrees with our
	// own header+PH byte count (it must not, but padding keeps file offsets
	// addressable even if a future program-header kind changes the count).
	for int64(len(buf)) < lay.HeaderSize {
		buf = append(buf, 0)
	}

	buf = append(buf, result.Text...)
	if hasDataOrBss {
		for int64(len(buf)) < dataOff {
			buf = append(buf, 0)
		}
		buf = append(buf, result.Data...)
	}

	// Section numbering: null, .text, then .data/.bss when present, then
	// .symtab/.strtab/.shstrtab.
	textIdx := uint16(1)
	dataIdx, bssIdx := uint16(0), uint16(0)
	next := uint16(2)
	if hasDataOrBss {
		dataIdx, bssIdx = 2, 3
		next = 4
	}
	strtabIdx := next + 1
	shstrtabIdx := next + 2
	numSections := int(shstrtabIdx) + 1

	sectionIndex := func(seg ast.Segment) uint16 {
		switch seg {
		case ast.Text:
			return textIdx
		case ast.Data:
			if dataIdx != 0 {
				return dataIdx
			}
		case ast.Bss:
			if bssIdx != 0 {
				return bssIdx
			}
		}
		// synthetic data/bss markers in a text-only binary
		return shnAbs
	}

	syms := BuildSymbolTable(src, links, table, lay)
	symBytes, strtab, localCount := serializeSymtab(syms, lay, sectionIndex)

	shstrtab := []byte{0}
	shName := make(map[string]uint32)
	for _, name := range []string{".text", ".data", ".bss", ".symtab", ".strtab", ".shstrtab"} {
		shName[name] = uint32(len(shstrtab))
		shstrtab = append(shstrtab, name...)
		shstrtab = append(shstrtab, 0)
	}

	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	symtabOff := int64(len(buf))
	buf = append(buf, symBytes...)
	strtabOff := int64(len(buf))
	buf = append(buf, strtab...)
	shstrtabOff := int64(len(buf))
	buf = append(buf, shstrtab...)

	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	shoff := int64(len(buf))

	buf = appendSH(buf, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0) // index 0: SHT_NULL
	buf = appendSH(buf, shName[".text"], shtProgbits, shfAlloc|shfExec,
		uint32(lay.TextFirstInstructionAddr()), uint32(lay.HeaderSize), uint32(lay.TextSize), 0, 0, 4, 0)
	if hasDataOrBss {
		buf = appendSH(buf, shName[".data"], shtProgbits, shfAlloc|shfWrite,
			uint32(lay.DataStart()), uint32(dataOff), uint32(lay.DataSize), 0, 0, 4, 0)
		buf = appendSH(buf, shName[".bss"], shtNobits, shfAlloc|shfWrite,
			uint32(lay.BssStart()), uint32(dataOff+lay.DataSize), uint32(lay.BssSize), 0, 0, 4, 0)
	}
	buf = appendSH(buf, shName[".symtab"], shtSymtab, 0,
		0, uint32(symtabOff), uint32(len(symBytes)), uint32(strtabIdx), localCount, 4, symEntSize)
	buf = appendSH(buf, shName[".strtab"], shtStrtab, 0,
		0, uint32(strtabOff), uint32(len(strtab)), 0, 0, 1, 0)
	buf = appendSH(buf, shName[".shstrtab"], shtStrtab, 0,
		0, uint32(shstrtabOff), uint32(len(shstrtab)), 0, 0, 1, 0)

	// e_shoff/e_shnum/e_shstrndx were unknown when the header was written;
	// patch them now that the body is laid out.
	binary.LittleEndian.PutUint32(buf[32:36], uint32(shoff))
	binary.LittleEndian.PutUint16(buf[48:50], uint16(numSections))
	binary.LittleEndian.PutUint16(buf[50:52], shstrtabIdx)

	return buf, nil
}

// appendSH writes one Elf32_Shdr: name, type, flags, addr, offset, size,
// link, info, addralign, entsize.
func appendSH(buf []byte, name, typ, flags, addr, offset, size, link, info, addralign, entsize uint32) []byte {
	for _, v := range []uint32{name, typ, flags, addr, offset, size, link, info, addralign, entsize} {
		buf = put32(buf, v)
	}
	return buf
}

// entryPoint is _start's address if exported, else the first .text
// instruction's address (spec.md §4.7). A label's value is always its
// address, so lay.Address(def) suffices without consulting table — table is
// accepted for symmetry with other builder entry points and future symbol-
// table emission that does need evaluated .equ values alongside addresses.
func entryPoint(src *ast.Source, links *symtab.Links, _ *symvals.Table, lay *layout.Layout) int64 {
	if def, ok := links.Globals["_start"]; ok {
		return lay.Address(def)
	}
	for fi, file := range src.Files {
		for li, line := range file.Lines {
			ptr := ast.LinePointer{File: fi, Line: li}
			if line.Kind == ast.KindInstruction && lay.Lines[ptr].Segment == ast.Text {
				return lay.Address(ptr)
			}
		}
	}
	return lay.TextFirstInstructionAddr()
}

func appendELFHeader(buf []byte, entry int64, numPH int, compressed bool) []byte {
	buf = append(buf, 0x7F, 'E', 'L', 'F', 1, 1, 1, 0)
	buf = append(buf, make([]byte, 8)...) // EI_PAD

	buf = put16(buf, etExec)
	buf = put16(buf, emRISCV)
	buf = put32(buf, evCurrent)
	buf = put32(buf, uint32(entry))
	buf = put32(buf, elfHeaderSize)      // e_phoff
	buf = put32(buf, 0)                  // e_shoff, patched by Build
	flags := uint32(0)
	if compressed {
		flags |= efRVCCompressed
	}
	buf = put32(buf, flags)
	buf = put16(buf, elfHeaderSize)
	buf = put16(buf, progHeaderSize)
	buf = put16(buf, uint16(numPH))
	buf = put16(buf, sectionHeaderSize)
	buf = put16(buf, 0) // e_shnum, patched by Build
	buf = put16(buf, 0) // e_shstrndx, patched by Build
	return buf
}

func appendProgramHeaders(buf []byte, lay *layout.Layout, hasDataOrBss bool, dataOff int64) []byte {
	buf = appendPH(buf, ptRiscvAttributes, 0, 0, 0, 0, 0, 1)

	textFileSize := uint64(lay.TextSize) + uint64(lay.HeaderSize)
	buf = appendPH(buf, ptLoad, pfR|pfX, 0, uint64(lay.TextStart), textFileSize, textFileSize, pageAlign)

	if hasDataOrBss {
		// dataOff is page-aligned, keeping p_offset congruent with the
		// page-aligned DataStart vaddr.
		buf = appendPH(buf, ptLoad, pfR|pfW, uint64(dataOff), uint64(lay.DataStart()), uint64(lay.DataSize), uint64(lay.DataSize+lay.BssSize), pageAlign)
	}
	return buf
}

// appendPH writes one Elf32_Phdr: type, flags, offset, vaddr(=paddr), filesz,
// memsz, align.
func appendPH(buf []byte, typ, flags uint32, offset, vaddr, filesz, memsz, align uint64) []byte {
	buf = put32(buf, typ)
	buf = put32(buf, uint32(offset))
	buf = put32(buf, uint32(vaddr))
	buf = put32(buf, uint32(vaddr)) // p_paddr
	buf = put32(buf, uint32(filesz))
	buf = put32(buf, uint32(memsz))
	buf = put32(buf, flags)
	buf = put32(buf, uint32(align))
	return buf
}

func put16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func put32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}
