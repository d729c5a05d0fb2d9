package serializer

import (
	"fmt"

	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/linker"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
)

// writeRecords writes records and padding default records of sch.
func (j *job) writeRecords(unit *linker.Unit, sch *schema.Schema, records []*record.Record, padding int) error {
	for _, r := range records {
		if r.Schema.Size != sch.Size {
			return fmt.Errorf("%s record in a %s array", r.Type(), sch.Type)
		}
		if err := j.writeRecord(unit, r); err != nil {
			return err
		}
	}
	for i := 0; i < padding; i++ {
		if err := j.writeRecord(unit, record.New(sch)); err != nil {
			return err
		}
	}
	return nil
}

func (j *job) writeRecord(unit *linker.Unit, r *record.Record) error {
	for idx, f := range r.Schema.Fields {
		v := r.Value(idx)
		location := unit.Location()

		bad := func() error {
			return &elf.FormatError{
				DataType: r.Type().String(),
				Section:  unit.Section,
				Offset:   uint64(location),
				Field:    f.Name,
				Reason:   fmt.Sprintf("cannot write %T as %s", v, f.Type),
			}
		}

		switch f.Type {
		case schema.String:
			switch v := v.(type) {
			case nil:
			case string:
				j.link.Strings.Add(v)
				unit.Strings[location] = v
			default:
				return bad()
			}
			unit.U64(0)

		case schema.Symbol, schema.SymbolAddr, schema.Pointer:
			switch v := v.(type) {
			case nil:
			case *record.Children:
				j.reference(unit, f.Type, location, v.Symbol)
			case string:
				j.reference(unit, f.Type, location, v)
			case elf.Address:
				unit.Addresses[location] = v
			default:
				return bad()
			}
			unit.U64(0)

		case schema.Vector3:
			vec, ok := v.(record.Vector3)
			if !ok {
				return bad()
			}
			unit.F32(vec.X)
			unit.F32(vec.Y)
			unit.F32(vec.Z)

		case schema.Float:
			x, ok := v.(float32)
			if !ok {
				return bad()
			}
			unit.F32(x)

		case schema.Double:
			x, ok := v.(float64)
			if !ok {
				return bad()
			}
			unit.F64(x)

		case schema.Bool8, schema.Bool32:
			b, ok := v.(bool)
			if !ok {
				return bad()
			}
			var n uint8
			if b {
				n = 1
			}
			if f.Type == schema.Bool8 {
				unit.U8(n)
			} else {
				unit.U32(uint32(n))
			}

		case schema.Byte, schema.Short, schema.Int, schema.Long:
			n, ok := r.Int(f.Name)
			if !ok {
				return bad()
			}
			if child, paired := r.Schema.CountFor(f.Name); paired {
				if c := r.Children(child.Field); c != nil {
					n = int64(len(c.Records))
				}
			}
			switch f.Type {
			case schema.Byte:
				unit.U8(uint8(n))
			case schema.Short:
				unit.U16(uint16(n))
			case schema.Int:
				unit.U32(uint32(n))
			default:
				unit.U64(uint64(n))
			}

		default:
			return bad()
		}
	}
	return nil
}

func (j *job) reference(unit *linker.Unit, typ schema.Primitive, location elf.Pointer, name string) {
	if name == "" {
		return
	}
	if typ == schema.Symbol {
		unit.Symbols[location] = name
	} else {
		unit.SymbolAddrs[location] = name
	}
}
