package elf

import (
	"sort"

	"github.com/magicbird9803/Unsimplifier-master/pkg/helpers"
)

// EncodeSymbols serializes the symbol table. StName offsets must already
// point into the string table that will be written alongside it.
func (elf *ELF64) EncodeSymbols() []byte {
	out := make([]byte, 0, len(elf.Symbols)*SymSize)
	for _, sym := range elf.Symbols {
		out = append(out, sym.ELF64Sym.Bytes()...)
	}
	return out
}

// Assemble writes the container back out. Sections keep their original
// file order, are realigned to sh_addralign and resized to their content.
// The section header table follows at an 8 byte boundary and the header's
// table offset, count and name-table index are patched.
func (elf *ELF64) Assemble() []byte {
	w := helpers.NewWriter()
	w.Write(make([]byte, EhdrSize))

	order := make([]*Section, len(elf.Sections))
	copy(order, elf.Sections)
	sort.SliceStable(order, func(i, j int) bool { return order[i].ShOff < order[j].ShOff })

	for _, section := range order {
		if section.ShType != SHT_NOBITS {
			section.ShSize = uint64(len(section.Content))
		}

		if section.ShAddrAlign > 0 {
			w.AlignTo(section.ShAddrAlign)
		}

		// empty sections sit where their content would start
		if section.ShType != SHT_NULL {
			section.ShOff = uint64(w.Len())
		}

		if section.ShType != SHT_NOBITS {
			w.Write(section.Content)
		}
	}

	w.AlignTo(8)
	elf.Header.ShOff = uint64(w.Len())
	elf.Header.ShNum = uint16(len(elf.Sections))
	if idx := elf.SectionIndex(".shstrtab"); idx >= 0 {
		elf.Header.ShStrNdx = uint16(idx)
	}

	for _, section := range elf.Sections {
		w.Write(section.ELF64Shdr.Bytes())
	}

	out := w.Bytes()
	copy(out, elf.Header.Bytes())
	return out
}
