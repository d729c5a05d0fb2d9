package linker

import (
	"fmt"

	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/helpers"
)

const StringSection = ".rodata.str1.1"

// Unit is a section being rewritten together with the pointers written
// into it. Pointer slots are zero in the content; their targets wait here
// keyed by location until Link turns them into relocations.
type Unit struct {
	Section string
	*helpers.Writer

	Strings     map[elf.Pointer]string
	Symbols     map[elf.Pointer]string
	SymbolAddrs map[elf.Pointer]string
	Addresses   map[elf.Pointer]elf.Address
}

// Unit returns the unit for section, creating it on first use.
func (linker *Linker) Unit(section string) *Unit {
	for _, unit := range linker.units {
		if unit.Section == section {
			return unit
		}
	}

	unit := &Unit{
		Section:     section,
		Writer:      helpers.NewWriter(),
		Strings:     make(map[elf.Pointer]string),
		Symbols:     make(map[elf.Pointer]string),
		SymbolAddrs: make(map[elf.Pointer]string),
		Addresses:   make(map[elf.Pointer]elf.Address),
	}
	linker.units = append(linker.units, unit)
	return unit
}

// Location is the offset the next write lands at.
func (unit *Unit) Location() elf.Pointer {
	return elf.Pointer(unit.Len())
}

func (unit *Unit) Pending() int {
	return len(unit.Strings) + len(unit.Symbols) + len(unit.SymbolAddrs) + len(unit.Addresses)
}

// Relocations resolves the unit's pointers against the linked symbol
// table. The result is sorted by location.
func (linker *Linker) Relocations(unit *Unit) ([]elf.Relocation, error) {
	file := linker.File
	relocations := make([]elf.Relocation, 0, unit.Pending())

	fail := func(location elf.Pointer, reason string) error {
		return &elf.FormatError{Section: unit.Section, Offset: uint64(location), Reason: reason}
	}

	sectionSymbol := func(location elf.Pointer, section int) (uint32, error) {
		idx := file.SectionSymbol(section)
		if idx < 0 {
			return 0, fail(location, fmt.Sprintf("no section symbol for section %d", section))
		}
		return uint32(idx), nil
	}

	if len(unit.Strings) > 0 {
		stringSection := file.SectionIndex(StringSection)
		if stringSection < 0 {
			return nil, fmt.Errorf("%w: %s", elf.ErrNoSection, StringSection)
		}

		for location, str := range unit.Strings {
			target, ok := linker.Strings.Offset(str)
			if !ok {
				return nil, fail(location, fmt.Sprintf("string %q was never pooled", str))
			}
			idx, err := sectionSymbol(location, stringSection)
			if err != nil {
				return nil, err
			}
			relocations = append(relocations, elf.Relocation{Location: location, Type: elf.RelocationType, SymbolIndex: idx, Target: target})
		}
	}

	for location, name := range unit.Symbols {
		idx, _ := file.FindSymbol(name)
		if idx < 0 {
			return nil, fail(location, fmt.Sprintf("unknown symbol %q", name))
		}
		relocations = append(relocations, elf.Relocation{Location: location, Type: elf.RelocationType, SymbolIndex: uint32(idx)})
	}

	for location, name := range unit.SymbolAddrs {
		_, sym := file.FindSymbol(name)
		if sym == nil {
			return nil, fail(location, fmt.Sprintf("unknown symbol %q", name))
		}
		idx, err := sectionSymbol(location, int(sym.StShNdx))
		if err != nil {
			return nil, err
		}
		relocations = append(relocations, elf.Relocation{Location: location, Type: elf.RelocationType, SymbolIndex: idx, Target: sym.Location()})
	}

	for location, addr := range unit.Addresses {
		section := file.SectionIndex(addr.Section)
		if section < 0 {
			return nil, fmt.Errorf("address %s: %w", addr, elf.ErrNoSection)
		}
		idx, err := sectionSymbol(location, section)
		if err != nil {
			return nil, err
		}
		relocations = append(relocations, elf.Relocation{Location: location, Type: elf.RelocationType, SymbolIndex: idx, Target: addr.Offset})
	}

	elf.SortRelocations(relocations)
	return relocations, nil
}

func (linker *Linker) updateRelocations(unit *Unit) error {
	relocations, err := linker.Relocations(unit)
	if err != nil {
		return err
	}

	rela := linker.File.Section(".rela" + unit.Section)
	if rela == nil {
		if len(relocations) > 0 {
			return fmt.Errorf("%d relocations for %s: %w: .rela%s", len(relocations), unit.Section, elf.ErrNoSection, unit.Section)
		}
		return nil
	}

	rela.Content = elf.EncodeRelocations(relocations)
	linker.File.Relocations[unit.Section] = relocations
	return nil
}
