// Package elftest builds small containers in memory for tests.
package elftest

import (
	"fmt"

	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/helpers"
)

const StringSection = ".rodata.str1.1"

type symbolSpec struct {
	name     string
	section  string
	location uint64
	size     uint64
	typ      byte
	global   bool
}

type relocKind int

const (
	relocString relocKind = iota
	relocSymbol
	relocAddr
	relocRaw
)

type relocSpec struct {
	section  string
	location uint64
	kind     relocKind
	value    string
	target   uint64
}

// Builder assembles a container with the standard section layout:
// null, .data, .rela.data, .rodata, .rela.rodata, .rodata.str1.1,
// .symtab, .strtab, .shstrtab. Optional sections are only emitted when
// used.
type Builder struct {
	OmitData bool

	data     []byte
	rodata   []byte
	hasRo    bool
	strings  []byte
	strIndex map[string]uint64
	symbols  []symbolSpec
	relocs   []relocSpec
}

func New() *Builder {
	return &Builder{strIndex: make(map[string]uint64)}
}

func (b *Builder) Data(content []byte) *Builder {
	b.data = content
	return b
}

func (b *Builder) Rodata(content []byte) *Builder {
	b.rodata = content
	b.hasRo = true
	return b
}

// String adds s to the string pool and returns its offset.
func (b *Builder) String(s string) uint64 {
	if off, ok := b.strIndex[s]; ok {
		return off
	}
	off := uint64(len(b.strings))
	b.strings = append(b.strings, s...)
	b.strings = append(b.strings, 0)
	b.strIndex[s] = off
	return off
}

// Object declares a data object symbol.
func (b *Builder) Object(name, section string, location, size uint64, global bool) *Builder {
	b.symbols = append(b.symbols, symbolSpec{name: name, section: section, location: location, size: size, typ: elf.STT_OBJECT, global: global})
	return b
}

// NoType declares a symbol without a type, e.g. a label.
func (b *Builder) NoType(name, section string, location uint64) *Builder {
	b.symbols = append(b.symbols, symbolSpec{name: name, section: section, location: location, typ: elf.STT_NOTYPE})
	return b
}

func (b *Builder) StringReloc(section string, location uint64, s string) *Builder {
	b.String(s)
	b.relocs = append(b.relocs, relocSpec{section: section, location: location, kind: relocString, value: s})
	return b
}

func (b *Builder) SymbolReloc(section string, location uint64, symbol string) *Builder {
	b.relocs = append(b.relocs, relocSpec{section: section, location: location, kind: relocSymbol, value: symbol})
	return b
}

func (b *Builder) AddrReloc(section string, location uint64, symbol string) *Builder {
	b.relocs = append(b.relocs, relocSpec{section: section, location: location, kind: relocAddr, value: symbol})
	return b
}

// RawReloc points location at an offset in target relative to the section symbol.
func (b *Builder) RawReloc(section string, location uint64, target string, offset uint64) *Builder {
	b.relocs = append(b.relocs, relocSpec{section: section, location: location, kind: relocRaw, value: target, target: offset})
	return b
}

// File builds the container model without serializing it.
func (b *Builder) File() (*elf.ELF64, error) {
	file := &elf.ELF64{Relocations: make(map[string][]elf.Relocation)}
	file.Header.Ident = [16]byte{0x7f, 'E', 'L', 'F', elf.ELFCLASS64, elf.ELFDATA2LSB, 1}
	file.Header.Type = elf.ET_REL
	file.Header.Machine = elf.EM_AARCH64
	file.Header.Version = 1
	file.Header.EhSize = elf.EhdrSize
	file.Header.ShEntSize = elf.ShdrSize

	hasReloc := func(section string) bool {
		for _, r := range b.relocs {
			if r.section == section {
				return true
			}
		}
		return false
	}

	add := func(name string, typ uint32, flags, align, entsize uint64, content []byte) {
		file.Sections = append(file.Sections, &elf.Section{
			Name: name,
			ELF64Shdr: elf.ELF64Shdr{
				ShType:      typ,
				ShFlags:     flags,
				ShOff:       uint64(len(file.Sections)),
				ShAddrAlign: align,
				ShEntSize:   entsize,
			},
			Content: content,
		})
	}

	add("", elf.SHT_NULL, 0, 0, 0, nil)
	if !b.OmitData {
		add(".data", elf.SHT_PROGBITS, elf.SHF_WRITE|elf.SHF_ALLOC, 8, 0, b.data)
		if hasReloc(".data") {
			add(".rela.data", elf.SHT_RELA, elf.SHF_INFO_LINK, 8, elf.RelaSize, nil)
		}
	}
	if b.hasRo {
		add(".rodata", elf.SHT_PROGBITS, elf.SHF_ALLOC, 8, 0, b.rodata)
		if hasReloc(".rodata") {
			add(".rela.rodata", elf.SHT_RELA, elf.SHF_INFO_LINK, 8, elf.RelaSize, nil)
		}
	}
	add(StringSection, elf.SHT_PROGBITS, elf.SHF_ALLOC|elf.SHF_MERGE|elf.SHF_STRINGS, 1, 1, b.strings)
	add(".symtab", elf.SHT_SYMTAB, 0, 8, elf.SymSize, nil)
	add(".strtab", elf.SHT_STRTAB, 0, 1, 0, nil)
	add(".shstrtab", elf.SHT_STRTAB, 0, 1, 0, nil)

	symtabIdx := file.SectionIndex(".symtab")
	file.Sections[symtabIdx].ShLink = uint32(file.SectionIndex(".strtab"))
	for _, s := range file.Sections {
		if s.ShType == elf.SHT_RELA {
			s.ShLink = uint32(symtabIdx)
			s.ShInfo = uint32(file.SectionIndex(s.Name[len(".rela"):]))
		}
	}

	// symbols: null, section symbols, locals, globals
	file.Symbols = append(file.Symbols, &elf.Symbol{})
	for i, s := range file.Sections {
		if s.ShType == elf.SHT_PROGBITS {
			file.Symbols = append(file.Symbols, &elf.Symbol{ELF64Sym: elf.ELF64Sym{
				StInfo:  elf.SymInfo(elf.STB_LOCAL, elf.STT_SECTION),
				StShNdx: uint16(i),
			}})
		}
	}
	for _, global := range []bool{false, true} {
		if global {
			file.Sections[symtabIdx].ShInfo = uint32(len(file.Symbols))
		}
		for _, spec := range b.symbols {
			if spec.global != global {
				continue
			}
			shndx := file.SectionIndex(spec.section)
			if shndx < 0 {
				return nil, fmt.Errorf("symbol %s: %w: %s", spec.name, elf.ErrNoSection, spec.section)
			}
			binding := byte(elf.STB_LOCAL)
			if global {
				binding = elf.STB_GLOBAL
			}
			file.Symbols = append(file.Symbols, &elf.Symbol{Name: spec.name, ELF64Sym: elf.ELF64Sym{
				StInfo:  elf.SymInfo(binding, spec.typ),
				StShNdx: uint16(shndx),
				StValue: spec.location,
				StSize:  spec.size,
			}})
		}
	}

	for _, r := range b.relocs {
		relocation := elf.Relocation{Location: elf.Pointer(r.location), Type: elf.RelocationType}

		switch r.kind {
		case relocString:
			relocation.SymbolIndex = uint32(file.SectionSymbol(file.SectionIndex(StringSection)))
			relocation.Target = elf.Pointer(b.strIndex[r.value])
		case relocSymbol:
			idx, _ := file.FindSymbol(r.value)
			if idx < 0 {
				return nil, fmt.Errorf("relocation at %s+0x%x: unknown symbol %s", r.section, r.location, r.value)
			}
			relocation.SymbolIndex = uint32(idx)
		case relocAddr:
			_, sym := file.FindSymbol(r.value)
			if sym == nil {
				return nil, fmt.Errorf("relocation at %s+0x%x: unknown symbol %s", r.section, r.location, r.value)
			}
			relocation.SymbolIndex = uint32(file.SectionSymbol(int(sym.StShNdx)))
			relocation.Target = sym.Location()
		case relocRaw:
			relocation.SymbolIndex = uint32(file.SectionSymbol(file.SectionIndex(r.value)))
			relocation.Target = elf.Pointer(r.target)
		}

		file.Relocations[r.section] = append(file.Relocations[r.section], relocation)
	}

	for name, relocations := range file.Relocations {
		elf.SortRelocations(relocations)
		file.Section(".rela" + name).Content = elf.EncodeRelocations(relocations)
	}

	strtab := elf.NewStringTable([]byte{0})
	for _, sym := range file.Symbols {
		if sym.Name != "" {
			sym.StName = strtab.Offset(sym.Name)
		}
	}
	file.Sections[symtabIdx].Content = file.EncodeSymbols()
	file.Section(".strtab").Content = strtab.Bytes()

	shstrtab := elf.NewStringTable([]byte{0})
	for _, s := range file.Sections {
		if s.Name != "" {
			s.ShName = shstrtab.Offset(s.Name)
		}
	}
	file.Section(".shstrtab").Content = shstrtab.Bytes()

	return file, nil
}

// Bytes builds and serializes the container.
func (b *Builder) Bytes() ([]byte, error) {
	file, err := b.File()
	if err != nil {
		return nil, err
	}
	file.Assemble()

	// Empty sections keep their offset on assembly. Place them where they
	// sit in the layout so reassembling the output is stable.
	end := uint64(elf.EhdrSize)
	for _, s := range file.Sections {
		if s.ShType == elf.SHT_NULL {
			continue
		}
		if s.ShSize == 0 {
			s.ShOff = helpers.AlignUp(end, s.ShAddrAlign)
			continue
		}
		end = s.ShOff + uint64(len(s.Content))
	}

	return file.Assemble(), nil
}

// MustBytes is Bytes for tests that cannot proceed without a fixture.
func (b *Builder) MustBytes() []byte {
	out, err := b.Bytes()
	if err != nil {
		panic(err)
	}
	return out
}
