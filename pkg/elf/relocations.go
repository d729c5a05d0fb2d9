package elf

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// R_AARCH64_ABS64, the only relocation type this dialect uses.
const RelocationType uint32 = 0x101

// Relocation is a decoded ELF64Rela entry. Target is the addend, which
// for this dialect is always an offset into the symbol's section.
type Relocation struct {
	Location    Pointer
	Type        uint32
	SymbolIndex uint32
	Target      Pointer
}

type ELF64Rela struct {
	Offset uint64
	Info   uint64
	Addend uint64
}

func (r Relocation) Rela() ELF64Rela {
	return ELF64Rela{
		Offset: uint64(r.Location),
		Info:   uint64(r.SymbolIndex)<<32 | uint64(r.Type),
		Addend: uint64(r.Target),
	}
}

// ParseRelocations decodes a .rela section. Location offsets must be
// strictly increasing, which lets the decoder match them in one pass.
func ParseRelocations(section string, content []byte) ([]Relocation, error) {
	if len(content)%RelaSize != 0 {
		return nil, &FormatError{Section: section, Offset: uint64(len(content)), Reason: "relocation table size is not a multiple of the entry size"}
	}

	relocations := make([]Relocation, 0, len(content)/RelaSize)
	for offset := 0; offset < len(content); offset += RelaSize {
		entry := content[offset : offset+RelaSize]
		info := binary.LittleEndian.Uint64(entry[0x08:0x10])

		relocation := Relocation{
			Location:    Pointer(binary.LittleEndian.Uint64(entry[0x00:0x08])),
			Type:        uint32(info),
			SymbolIndex: uint32(info >> 32),
			Target:      Pointer(binary.LittleEndian.Uint64(entry[0x10:0x18])),
		}

		if n := len(relocations); n > 0 && relocations[n-1].Location >= relocation.Location {
			return nil, &FormatError{
				Section: section,
				Offset:  uint64(offset),
				Reason: fmt.Sprintf("relocation table not in sequential order (0x%x after 0x%x)",
					uint64(relocation.Location), uint64(relocations[n-1].Location)),
			}
		}

		relocations = append(relocations, relocation)
	}

	return relocations, nil
}

func EncodeRelocations(relocations []Relocation) []byte {
	out := make([]byte, 0, len(relocations)*RelaSize)
	for _, relocation := range relocations {
		rela := relocation.Rela()
		out = binary.LittleEndian.AppendUint64(out, rela.Offset)
		out = binary.LittleEndian.AppendUint64(out, rela.Info)
		out = binary.LittleEndian.AppendUint64(out, rela.Addend)
	}
	return out
}

func SortRelocations(relocations []Relocation) {
	sort.SliceStable(relocations, func(i, j int) bool {
		return relocations[i].Location < relocations[j].Location
	})
}
