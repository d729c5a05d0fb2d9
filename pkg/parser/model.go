package parser

import (
	"fmt"

	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/layout"
	"github.com/magicbird9803/Unsimplifier-master/pkg/log"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
)

// modelTree decodes the models in .data and walks their asset groups,
// states, face groups, faces and animations through .rodata.
func (s *session) modelTree() error {
	sch, err := s.reg.Get(s.dt)
	if err != nil {
		return err
	}

	var count int
	if _, sym := s.file.FindSymbol(sch.CountSymbol); sym != nil {
		if count, err = s.readCount(sym, 8); err != nil {
			return err
		}
	} else {
		data := s.file.Section(".data")
		count = max(len(data.Content)/sch.Size-sch.DefaultPadding, 0)
	}

	models, err := s.array(".data", 0, s.dt, count, false, true)
	if err != nil {
		return err
	}

	for _, model := range models {
		if err := s.model(model); err != nil {
			return err
		}
	}

	s.tables[layout.MainDivision] = models
	return nil
}

func (s *session) model(model *record.Record) error {
	id, _ := model.String("id")

	if _, err := s.nested(model, "assetGroups", layout.ModelFiles(id)); err != nil {
		return err
	}

	states, err := s.nested(model, "states", layout.States(id))
	if err != nil || states == nil {
		return err
	}

	animations := 0
	for i, state := range states.Records {
		groups, err := s.nested(state, "substates", layout.FaceGroups(id, i))
		if err != nil {
			return err
		}
		if groups == nil {
			continue
		}

		for j, group := range groups.Records {
			faces, err := s.nested(group, "faces", layout.Faces(id, i, j))
			if err != nil {
				return err
			}
			if faces == nil {
				continue
			}

			for _, face := range faces.Records {
				anims, err := s.nested(face, "animations", layout.Animations(id, animations))
				if err != nil {
					return err
				}
				if anims != nil {
					animations++
				}
			}
		}
	}

	return nil
}

// nested decodes the array a raw address field points at and replaces the
// address with the array. The object symbol at the array start names it;
// a missing one is synthesized as name.
func (s *session) nested(parent *record.Record, field, name string) (*record.Children, error) {
	addr, ok := parent.Get(field).(elf.Address)
	if !ok {
		return nil, nil
	}

	child, ok := parent.Schema.Child(field)
	if !ok {
		return nil, fmt.Errorf("%s.%s has no child relation", parent.Type(), field)
	}
	sch, err := s.reg.Get(child.Type)
	if err != nil {
		return nil, err
	}

	sectionIdx := s.file.SectionIndex(addr.Section)
	if sectionIdx < 0 {
		return nil, fmt.Errorf("%s.%s: %w: %s", parent.Type(), field, elf.ErrNoSection, addr.Section)
	}

	_, sym := s.file.FindSymbolAt(sectionIdx, addr.Offset)

	count, err := s.childCount(parent, child, sym, sch.Size)
	if err != nil {
		return nil, err
	}

	if sym != nil {
		name = sym.Name
	} else {
		name = s.synthesize(name, sectionIdx, addr.Offset)
	}

	records, err := s.array(addr.Section, uint64(addr.Offset), child.Type, count, true, true)
	if err != nil {
		return nil, err
	}

	children := &record.Children{Symbol: name, Records: records}
	parent.SetValue(parent.Schema.FieldIndex(field), children)
	return children, nil
}

// synthesize adds a local object symbol for an array no symbol names.
// The symbol's size is left for the serializer to fill in.
func (s *session) synthesize(name string, sectionIdx int, location elf.Pointer) string {
	unique := name
	for n := 1; ; n++ {
		if _, taken := s.file.FindSymbol(unique); taken == nil {
			break
		}
		unique = fmt.Sprintf("%s.%d", name, n)
	}

	s.file.InsertLocal(&elf.Symbol{
		Name: unique,
		ELF64Sym: elf.ELF64Sym{
			StInfo:  elf.SymInfo(elf.STB_LOCAL, elf.STT_OBJECT),
			StShNdx: uint16(sectionIdx),
			StValue: uint64(location),
		},
	})

	log.Warnf("Found missing symbol at %s+0x%x, created symbol %s", s.file.Sections[sectionIdx].Name, uint64(location), unique)
	return unique
}
