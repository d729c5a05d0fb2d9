package elf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/magicbird9803/Unsimplifier-master/pkg/helpers"
)

/*
   The following structures and interface are documented by https://www.uclibc.org/docs/elf-64-gen.pdf
   Only the subset used by relocatable data objects is kept: no program headers,
   a single relocation type and little-endian ELF64.
*/

const (
	EhdrSize = 0x40
	ShdrSize = 0x40
	SymSize  = 0x18
	RelaSize = 0x18
)

type ELF64Sym struct {
	// string table offset
	StName uint32

	// Type and Binding
	StInfo byte

	// Visibility
	StOther byte

	// section header index
	StShNdx uint16

	// section offset
	StValue uint64

	// object size
	StSize uint64
}

const (
	STT_NOTYPE  = 0
	STT_OBJECT  = 1
	STT_FUNC    = 2
	STT_SECTION = 3
	STT_FILE    = 4
)

const (
	STB_LOCAL  = 0
	STB_GLOBAL = 1
	STB_WEAK   = 2
)

func (sym ELF64Sym) GetType() byte {
	return sym.StInfo & 0x0f
}

func (sym ELF64Sym) GetBinding() byte {
	return sym.StInfo >> 4
}

func SymInfo(binding, typ byte) byte {
	return binding<<4 | typ&0x0f
}

func (sym ELF64Sym) Bytes() []byte {
	out := make([]byte, SymSize)
	binary.LittleEndian.PutUint32(out[0x00:], sym.StName)
	out[0x04] = sym.StInfo
	out[0x05] = sym.StOther
	binary.LittleEndian.PutUint16(out[0x06:], sym.StShNdx)
	binary.LittleEndian.PutUint64(out[0x08:], sym.StValue)
	binary.LittleEndian.PutUint64(out[0x10:], sym.StSize)
	return out
}

func parseSym(b []byte) ELF64Sym {
	return ELF64Sym{
		StName:  binary.LittleEndian.Uint32(b[0x00:0x04]),
		StInfo:  b[0x04],
		StOther: b[0x05],
		StShNdx: binary.LittleEndian.Uint16(b[0x06:0x08]),
		StValue: binary.LittleEndian.Uint64(b[0x08:0x10]),
		StSize:  binary.LittleEndian.Uint64(b[0x10:0x18]),
	}
}

type ELF64Ehdr struct {
	Ident     [16]byte // ELF identification
	Type      uint16   // Object file type
	Machine   uint16   // Machine type
	Version   uint32   // Object file version
	Entry     uint64   // Entry point address
	PhOff     uint64   // Program Header offset
	ShOff     uint64   // Section Header offset
	Flags     uint32   // Processor specific flags
	EhSize    uint16   // ELF Header size
	PhEntSize uint16   // Size of Program Header
	PhNum     uint16   // Number of program header entries
	ShEntSize uint16   // Size of the Section Header entry
	ShNum     uint16   // Number of Section Header entries
	ShStrNdx  uint16   // Section name String Table index
}

const (
	EI_MAG0       = 0
	EI_MAG1       = 1
	EI_MAG2       = 2
	EI_MAG3       = 3
	EI_CLASS      = 4
	EI_DATA       = 5
	EI_VERSION    = 6
	EI_OSABI      = 7
	EI_ABIVERSION = 8
	EI_PAD        = 9
	EI_NIDENT     = 16
)

const (
	ELFCLASS64  = 2
	ELFDATA2LSB = 1
	ET_REL      = 1
	EM_AARCH64  = 0xB7
)

var (
	InvalidMagicErr = errors.New("Invalid magic in ELF file.")
	ErrNoSection    = errors.New("section not found")
)

func (elf64Ehdr *ELF64Ehdr) VerifyMagic() error {
	if !bytes.Equal(elf64Ehdr.Ident[EI_MAG0:EI_CLASS], []byte{'\x7f', 'E', 'L', 'F'}) {
		return InvalidMagicErr
	}

	return nil
}

func ParseHeader(elfDump []byte) (ELF64Ehdr, error) {
	if len(elfDump) < EhdrSize {
		return ELF64Ehdr{}, &FormatError{Offset: 0, Reason: "file is smaller than the ELF header"}
	}

	elf64Ehdr := ELF64Ehdr{
		Type:      binary.LittleEndian.Uint16(elfDump[0x10:0x12]),
		Machine:   binary.LittleEndian.Uint16(elfDump[0x12:0x14]),
		Version:   binary.LittleEndian.Uint32(elfDump[0x14:0x18]),
		Entry:     binary.LittleEndian.Uint64(elfDump[0x18:0x20]),
		PhOff:     binary.LittleEndian.Uint64(elfDump[0x20:0x28]),
		ShOff:     binary.LittleEndian.Uint64(elfDump[0x28:0x30]),
		Flags:     binary.LittleEndian.Uint32(elfDump[0x30:0x34]),
		EhSize:    binary.LittleEndian.Uint16(elfDump[0x34:0x36]),
		PhEntSize: binary.LittleEndian.Uint16(elfDump[0x36:0x38]),
		PhNum:     binary.LittleEndian.Uint16(elfDump[0x38:0x3a]),
		ShEntSize: binary.LittleEndian.Uint16(elfDump[0x3a:0x3c]),
		ShNum:     binary.LittleEndian.Uint16(elfDump[0x3c:0x3e]),
		ShStrNdx:  binary.LittleEndian.Uint16(elfDump[0x3e:0x40]),
	}

	copy(elf64Ehdr.Ident[:], elfDump[0:16])

	if err := elf64Ehdr.VerifyMagic(); err != nil {
		return ELF64Ehdr{}, err
	}
	if elf64Ehdr.Ident[EI_CLASS] != ELFCLASS64 {
		return ELF64Ehdr{}, &FormatError{Offset: EI_CLASS, Reason: "only ELF64 is supported"}
	}
	if elf64Ehdr.Ident[EI_DATA] != ELFDATA2LSB {
		return ELF64Ehdr{}, &FormatError{Offset: EI_DATA, Reason: "only little endian is supported"}
	}

	return elf64Ehdr, nil
}

func (elf64Ehdr ELF64Ehdr) Bytes() []byte {
	out := make([]byte, EhdrSize)
	copy(out, elf64Ehdr.Ident[:])
	binary.LittleEndian.PutUint16(out[0x10:], elf64Ehdr.Type)
	binary.LittleEndian.PutUint16(out[0x12:], elf64Ehdr.Machine)
	binary.LittleEndian.PutUint32(out[0x14:], elf64Ehdr.Version)
	binary.LittleEndian.PutUint64(out[0x18:], elf64Ehdr.Entry)
	binary.LittleEndian.PutUint64(out[0x20:], elf64Ehdr.PhOff)
	binary.LittleEndian.PutUint64(out[0x28:], elf64Ehdr.ShOff)
	binary.LittleEndian.PutUint32(out[0x30:], elf64Ehdr.Flags)
	binary.LittleEndian.PutUint16(out[0x34:], elf64Ehdr.EhSize)
	binary.LittleEndian.PutUint16(out[0x36:], elf64Ehdr.PhEntSize)
	binary.LittleEndian.PutUint16(out[0x38:], elf64Ehdr.PhNum)
	binary.LittleEndian.PutUint16(out[0x3a:], elf64Ehdr.ShEntSize)
	binary.LittleEndian.PutUint16(out[0x3c:], elf64Ehdr.ShNum)
	binary.LittleEndian.PutUint16(out[0x3e:], elf64Ehdr.ShStrNdx)
	return out
}

// Section header entries
type ELF64Shdr struct {
	ShName      uint32 // offset to the section name relative to section name table
	ShType      uint32 // section type
	ShFlags     uint64
	ShAddr      uint64
	ShOff       uint64
	ShSize      uint64
	ShLink      uint32
	ShInfo      uint32
	ShAddrAlign uint64
	ShEntSize   uint64
}

const (
	SHT_NULL     = 0
	SHT_PROGBITS = 1
	SHT_SYMTAB   = 2
	SHT_STRTAB   = 3
	SHT_RELA     = 4
	SHT_NOBITS   = 8
)

const (
	SHF_WRITE     = 0x1
	SHF_ALLOC     = 0x2
	SHF_MERGE     = 0x10
	SHF_STRINGS   = 0x20
	SHF_INFO_LINK = 0x40
)

func parseShdr(b []byte) ELF64Shdr {
	return ELF64Shdr{
		ShName:      binary.LittleEndian.Uint32(b[0x00:0x04]),
		ShType:      binary.LittleEndian.Uint32(b[0x04:0x08]),
		ShFlags:     binary.LittleEndian.Uint64(b[0x08:0x10]),
		ShAddr:      binary.LittleEndian.Uint64(b[0x10:0x18]),
		ShOff:       binary.LittleEndian.Uint64(b[0x18:0x20]),
		ShSize:      binary.LittleEndian.Uint64(b[0x20:0x28]),
		ShLink:      binary.LittleEndian.Uint32(b[0x28:0x2c]),
		ShInfo:      binary.LittleEndian.Uint32(b[0x2c:0x30]),
		ShAddrAlign: binary.LittleEndian.Uint64(b[0x30:0x38]),
		ShEntSize:   binary.LittleEndian.Uint64(b[0x38:0x40]),
	}
}

func (shdr ELF64Shdr) Bytes() []byte {
	out := make([]byte, ShdrSize)
	binary.LittleEndian.PutUint32(out[0x00:], shdr.ShName)
	binary.LittleEndian.PutUint32(out[0x04:], shdr.ShType)
	binary.LittleEndian.PutUint64(out[0x08:], shdr.ShFlags)
	binary.LittleEndian.PutUint64(out[0x10:], shdr.ShAddr)
	binary.LittleEndian.PutUint64(out[0x18:], shdr.ShOff)
	binary.LittleEndian.PutUint64(out[0x20:], shdr.ShSize)
	binary.LittleEndian.PutUint32(out[0x28:], shdr.ShLink)
	binary.LittleEndian.PutUint32(out[0x2c:], shdr.ShInfo)
	binary.LittleEndian.PutUint64(out[0x30:], shdr.ShAddrAlign)
	binary.LittleEndian.PutUint64(out[0x38:], shdr.ShEntSize)
	return out
}

// Pointer is an offset inside a section. Pointers are compared by value.
type Pointer uint64

const NULL Pointer = 0

// Address is a position inside a named section that no symbol has been
// attached to yet.
type Address struct {
	Section string  `json:"section"`
	Offset  Pointer `json:"offset"`
}

func (a Address) String() string {
	return fmt.Sprintf("%s+0x%x", a.Section, uint64(a.Offset))
}

type Section struct {
	Name string
	ELF64Shdr
	Content []byte
}

type Symbol struct {
	Name string
	ELF64Sym
}

func (s *Symbol) Location() Pointer { return Pointer(s.StValue) }

type ELF64 struct {
	Header ELF64Ehdr

	Sections []*Section
	Symbols  []*Symbol

	// Relocation tables keyed by the section they patch (".data" for ".rela.data").
	Relocations map[string][]Relocation
}

// Parse reads the container structure: section headers and contents, the
// symbol table and every .rela table. Section contents are copied so the
// result does not alias data.
func Parse(data []byte) (*ELF64, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	elf := &ELF64{
		Header:      header,
		Relocations: make(map[string][]Relocation),
	}

	if err := elf.parseSections(data); err != nil {
		return nil, err
	}
	if err := elf.parseSymbols(); err != nil {
		return nil, err
	}
	if err := elf.parseRelocations(); err != nil {
		return nil, err
	}

	return elf, nil
}

func (elf *ELF64) parseSections(data []byte) error {
	entryOffset := elf.Header.ShOff
	if entryOffset+uint64(elf.Header.ShNum)*ShdrSize > uint64(len(data)) {
		return &FormatError{Offset: entryOffset, Reason: "section header table exceeds file"}
	}

	for entryNdx := uint16(0); entryNdx < elf.Header.ShNum; entryNdx++ {
		section := &Section{ELF64Shdr: parseShdr(data[entryOffset : entryOffset+ShdrSize])}

		if section.ShType != SHT_NOBITS && section.ShType != SHT_NULL {
			end := section.ShOff + section.ShSize
			if end < section.ShOff || end > uint64(len(data)) {
				return &FormatError{Offset: entryOffset, Reason: fmt.Sprintf("section %d exceeds file", entryNdx)}
			}
			section.Content = bytes.Clone(data[section.ShOff:end])
		}

		elf.Sections = append(elf.Sections, section)
		entryOffset += ShdrSize
	}

	if int(elf.Header.ShStrNdx) >= len(elf.Sections) {
		return &FormatError{Offset: 0x3e, Reason: "section name table index out of range"}
	}

	shstrtab := elf.Sections[elf.Header.ShStrNdx].Content
	for _, section := range elf.Sections {
		if int(section.ShName) > len(shstrtab) {
			return &FormatError{Offset: uint64(section.ShName), Section: ".shstrtab", Reason: "section name out of range"}
		}
		section.Name = helpers.GetString(shstrtab[section.ShName:])
	}

	return nil
}

func (elf *ELF64) parseSymbols() error {
	symtab := elf.Section(".symtab")
	if symtab == nil {
		return nil
	}

	var names []byte
	if int(symtab.ShLink) > 0 && int(symtab.ShLink) < len(elf.Sections) {
		names = elf.Sections[symtab.ShLink].Content
	} else if strtab := elf.Section(".strtab"); strtab != nil {
		names = strtab.Content
	}

	if len(symtab.Content)%SymSize != 0 {
		return &FormatError{Section: ".symtab", Offset: uint64(len(symtab.Content)), Reason: "symbol table size is not a multiple of the entry size"}
	}

	for offset := 0; offset < len(symtab.Content); offset += SymSize {
		sym := parseSym(symtab.Content[offset : offset+SymSize])
		if int(sym.StName) > len(names) {
			return &FormatError{Section: ".symtab", Offset: uint64(offset), Reason: "symbol name out of range"}
		}

		elf.Symbols = append(elf.Symbols, &Symbol{
			Name:     helpers.GetString(names[sym.StName:]),
			ELF64Sym: sym,
		})
	}

	if len(elf.Symbols) > 0 && elf.Symbols[0].ELF64Sym != (ELF64Sym{}) {
		return &FormatError{Section: ".symtab", Offset: 0, Reason: "first symbol is not the reserved null entry"}
	}

	return nil
}

func (elf *ELF64) parseRelocations() error {
	for _, section := range elf.Sections {
		if section.ShType != SHT_RELA || !strings.HasPrefix(section.Name, ".rela") {
			continue
		}

		relocations, err := ParseRelocations(section.Name, section.Content)
		if err != nil {
			return err
		}

		elf.Relocations[strings.TrimPrefix(section.Name, ".rela")] = relocations
	}

	return nil
}

func (elf *ELF64) Section(name string) *Section {
	if idx := elf.SectionIndex(name); idx >= 0 {
		return elf.Sections[idx]
	}
	return nil
}

func (elf *ELF64) SectionIndex(name string) int {
	return helpers.FindIf(elf.Sections, func(s *Section) bool { return s.Name == name })
}

// FindSymbol returns the first symbol called name, or -1.
func (elf *ELF64) FindSymbol(name string) (int, *Symbol) {
	idx := helpers.FindIf(elf.Symbols, func(s *Symbol) bool { return s.Name == name })
	if idx < 0 {
		return -1, nil
	}
	return idx, elf.Symbols[idx]
}

// FindSymbolAt returns the data object symbol placed at location in the
// given section. Section and file symbols share locations with real
// objects and are never returned.
func (elf *ELF64) FindSymbolAt(sectionIndex int, location Pointer) (int, *Symbol) {
	idx := helpers.FindIf(elf.Symbols, func(s *Symbol) bool {
		return int(s.StShNdx) == sectionIndex && s.Location() == location && s.GetType() == STT_OBJECT
	})
	if idx < 0 {
		return -1, nil
	}
	return idx, elf.Symbols[idx]
}

// SectionSymbol returns the index of the STT_SECTION symbol for a section, or -1.
func (elf *ELF64) SectionSymbol(sectionIndex int) int {
	return helpers.FindIf(elf.Symbols, func(s *Symbol) bool {
		return s.GetType() == STT_SECTION && int(s.StShNdx) == sectionIndex
	})
}

// InsertLocal inserts a local symbol before the first global one, keeping
// the .symtab sh_info invariant. Relocation symbol indices are shifted.
func (elf *ELF64) InsertLocal(sym *Symbol) int {
	symtab := elf.Section(".symtab")

	pos := len(elf.Symbols)
	if symtab != nil && symtab.ShInfo > 0 && int(symtab.ShInfo) <= len(elf.Symbols) {
		pos = int(symtab.ShInfo)
		symtab.ShInfo++
	}

	elf.Symbols = helpers.Insert(elf.Symbols, pos, sym)

	for name, relocations := range elf.Relocations {
		for i := range relocations {
			if int(relocations[i].SymbolIndex) >= pos {
				relocations[i].SymbolIndex++
			}
		}
		elf.Relocations[name] = relocations
	}

	return pos
}

// Clone returns a deep copy. Serialization works on clones so parsed
// containers stay reusable.
func (elf *ELF64) Clone() *ELF64 {
	out := &ELF64{
		Header:      elf.Header,
		Relocations: make(map[string][]Relocation, len(elf.Relocations)),
	}

	for _, section := range elf.Sections {
		s := *section
		s.Content = bytes.Clone(section.Content)
		out.Sections = append(out.Sections, &s)
	}
	for _, sym := range elf.Symbols {
		s := *sym
		out.Symbols = append(out.Symbols, &s)
	}
	for name, relocations := range elf.Relocations {
		out.Relocations[name] = append([]Relocation(nil), relocations...)
	}

	return out
}
