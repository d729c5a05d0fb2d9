// Package linker reconciles a container's symbol, string and relocation
// tables with freshly written section contents.
package linker

import (
	"fmt"
	"sort"

	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/log"
)

// Linker collects symbol overrides and rewritten sections for one
// container, then applies them in Link.
type Linker struct {
	File    *elf.ELF64
	Strings *StringPool

	// Overrides keyed by the symbol's name before linking.
	Locations map[string]elf.Pointer
	Names     map[string]string
	Sizes     map[string]uint64

	units []*Unit
}

func New(file *elf.ELF64) *Linker {
	return &Linker{
		File:      file,
		Strings:   NewStringPool(),
		Locations: make(map[string]elf.Pointer),
		Names:     make(map[string]string),
		Sizes:     make(map[string]uint64),
	}
}

func (linker *Linker) Place(symbol string, location elf.Pointer) {
	linker.Locations[symbol] = location
}

func (linker *Linker) Rename(symbol, name string) {
	linker.Names[symbol] = name
}

func (linker *Linker) Resize(symbol string, size uint64) {
	linker.Sizes[symbol] = size
}

// Bind makes sure a symbol backs an array currently known as symbol and
// that it ends up called name. An existing symbol is renamed; a missing
// one is created as a local data object in section. The returned key
// addresses the symbol in Place and Resize.
func (linker *Linker) Bind(symbol, name, section string) (string, error) {
	if name == "" {
		name = symbol
	}
	if name == "" {
		return "", fmt.Errorf("cannot bind an unnamed symbol in %s", section)
	}

	if symbol != "" {
		if _, sym := linker.File.FindSymbol(symbol); sym != nil {
			if name != symbol {
				linker.Rename(symbol, name)
			}
			return symbol, nil
		}
	}

	if _, sym := linker.File.FindSymbol(name); sym != nil {
		return name, nil
	}

	idx := linker.File.SectionIndex(section)
	if idx < 0 {
		return "", fmt.Errorf("symbol %s: %w: %s", name, elf.ErrNoSection, section)
	}

	linker.File.InsertLocal(&elf.Symbol{
		Name: name,
		ELF64Sym: elf.ELF64Sym{
			StInfo:  elf.SymInfo(elf.STB_LOCAL, elf.STT_OBJECT),
			StShNdx: uint16(idx),
		},
	})
	log.Debugf("Created symbol %s in %s", name, section)

	return name, nil
}

// Link writes every unit into its section and rebuilds the string pool,
// the symbol table and the relocation tables of the rewritten sections.
func (linker *Linker) Link() error {
	if err := linker.writeStrings(); err != nil {
		return err
	}

	linker.UpdateSymbols()

	if err := linker.UpdateSymbolTable(); err != nil {
		return err
	}

	for _, unit := range linker.units {
		section := linker.File.Section(unit.Section)
		if section == nil {
			return fmt.Errorf("%w: %s", elf.ErrNoSection, unit.Section)
		}
		section.Content = unit.Bytes()

		if err := linker.updateRelocations(unit); err != nil {
			return err
		}
	}

	return nil
}

func (linker *Linker) writeStrings() error {
	section := linker.File.Section(StringSection)
	if section == nil {
		if linker.Strings.Len() > 0 {
			return fmt.Errorf("%w: %s", elf.ErrNoSection, StringSection)
		}
		return nil
	}

	section.Content = linker.Strings.Bytes()
	return nil
}

// UpdateSymbols applies the location, name and size overrides to every
// symbol. Overrides that match no symbol are reported and dropped.
func (linker *Linker) UpdateSymbols() {
	usedLocations := map[string]bool{}
	usedNames := map[string]bool{}
	usedSizes := map[string]bool{}

	for _, sym := range linker.File.Symbols {
		if sym.Name == "" {
			continue
		}
		id := sym.Name

		if location, ok := linker.Locations[id]; ok {
			sym.StValue = uint64(location)
			usedLocations[id] = true
		}

		if name, ok := linker.Names[id]; ok {
			if name != id {
				log.Warnf("Updating name of symbol %q to %q", id, name)
			}
			sym.Name = name
			usedNames[id] = true
		}

		if size, ok := linker.Sizes[id]; ok {
			sym.StSize = size
			usedSizes[id] = true
		}
	}

	reportUnused("location", linker.Locations, usedLocations)
	reportUnused("name", linker.Names, usedNames)
	reportUnused("size", linker.Sizes, usedSizes)
}

func reportUnused[V any](kind string, overrides map[string]V, used map[string]bool) {
	var unused []string
	for id := range overrides {
		if !used[id] {
			unused = append(unused, id)
		}
	}
	if len(unused) == 0 {
		return
	}
	sort.Strings(unused)
	log.Errorf("Unused %s entries: %v", kind, unused)
}

// UpdateSymbolTable re-encodes .symtab. Names that are already in .strtab
// keep their offsets; renamed and new symbols are appended.
func (linker *Linker) UpdateSymbolTable() error {
	symtab := linker.File.Section(".symtab")
	if symtab == nil {
		return fmt.Errorf("%w: .symtab", elf.ErrNoSection)
	}

	var strtab *elf.Section
	if int(symtab.ShLink) > 0 && int(symtab.ShLink) < len(linker.File.Sections) {
		strtab = linker.File.Sections[symtab.ShLink]
	} else if strtab = linker.File.Section(".strtab"); strtab == nil {
		return fmt.Errorf("%w: .strtab", elf.ErrNoSection)
	}

	names := elf.NewStringTable(strtab.Content)
	if len(strtab.Content) == 0 {
		names = elf.NewStringTable([]byte{0})
	}

	for _, sym := range linker.File.Symbols {
		if sym.Name == "" || names.At(sym.StName) == sym.Name {
			continue
		}
		sym.StName = names.Offset(sym.Name)
	}

	strtab.Content = names.Bytes()
	symtab.Content = linker.File.EncodeSymbols()
	return nil
}
