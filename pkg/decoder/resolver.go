package decoder

import (
	"errors"
	"fmt"

	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/helpers"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
)

const StringSection = ".rodata.str1.1"

// Resolver patches pointer fields of decoded records.
type Resolver struct {
	File *elf.ELF64

	// RawAddresses leaves symbolAddr fields as elf.Address values instead
	// of naming the symbol found at the target.
	RawAddresses bool
}

// Resolve consumes the relocations covering records laid out back to
// back from base.
func (res *Resolver) Resolve(cur *Cursor, base uint64, records []*record.Record) error {
	for i, r := range records {
		s := r.Schema
		start := elf.Pointer(base + uint64(i*s.Size))
		end := start + elf.Pointer(s.Size)

		if err := cur.Seek(start); err != nil {
			var formatErr *elf.FormatError
			if errors.As(err, &formatErr) {
				formatErr.DataType = s.Type.String()
			}
			return err
		}

		for relocation, ok := cur.Take(end); ok; relocation, ok = cur.Take(end) {
			if err := res.apply(cur.Section, r, start, relocation); err != nil {
				return err
			}
		}
	}

	return nil
}

func (res *Resolver) apply(section string, r *record.Record, start elf.Pointer, relocation elf.Relocation) error {
	s := r.Schema
	fail := func(field, reason string) error {
		return &elf.FormatError{
			DataType: s.Type.String(),
			Section:  section,
			Offset:   uint64(relocation.Location),
			Field:    field,
			Reason:   reason,
		}
	}

	f, idx, ok := s.FieldAt(int(relocation.Location - start))
	if !ok {
		return fail("", fmt.Sprintf("relocation to not existing field at offset 0x%x", uint64(relocation.Location-start)))
	}

	switch f.Type {
	case schema.String:
		str, err := res.stringAt(relocation.Target)
		if err != nil {
			return fail(f.Name, err.Error())
		}
		r.SetValue(idx, str)

	case schema.Symbol:
		sym, err := res.symbol(relocation.SymbolIndex)
		if err != nil {
			return fail(f.Name, err.Error())
		}
		r.SetValue(idx, sym.Name)

	case schema.SymbolAddr, schema.Pointer:
		sym, err := res.symbol(relocation.SymbolIndex)
		if err != nil {
			return fail(f.Name, err.Error())
		}
		if int(sym.StShNdx) >= len(res.File.Sections) {
			return fail(f.Name, fmt.Sprintf("symbol %d has no section", relocation.SymbolIndex))
		}

		if f.Type == schema.Pointer || res.RawAddresses {
			r.SetValue(idx, elf.Address{Section: res.File.Sections[sym.StShNdx].Name, Offset: relocation.Target})
			return nil
		}

		_, target := res.File.FindSymbolAt(int(sym.StShNdx), relocation.Target)
		if target == nil {
			return fail(f.Name, fmt.Sprintf("no symbol at 0x%x in %s", uint64(relocation.Target), res.File.Sections[sym.StShNdx].Name))
		}
		r.SetValue(idx, target.Name)

	default:
		return fail(f.Name, fmt.Sprintf("relocation on %s field", f.Type))
	}

	return nil
}

func (res *Resolver) stringAt(target elf.Pointer) (string, error) {
	section := res.File.Section(StringSection)
	if section == nil {
		return "", fmt.Errorf("%w: %s", elf.ErrNoSection, StringSection)
	}
	if uint64(target) >= uint64(len(section.Content)) {
		return "", fmt.Errorf("string offset 0x%x out of range", uint64(target))
	}
	return helpers.GetString(section.Content[target:]), nil
}

func (res *Resolver) symbol(index uint32) (*elf.Symbol, error) {
	if int(index) >= len(res.File.Symbols) {
		return nil, fmt.Errorf("symbol index %d out of range", index)
	}
	return res.File.Symbols[index], nil
}
