// Package decoder turns section bytes into records and patches their
// pointer fields from the relocation table.
package decoder

import (
	"bytes"
	"fmt"

	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/helpers"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
)

var zeroSlot = make([]byte, 8)

// Decode reads up to count records of s starting at offset. Pointer-typed
// fields are left nil. Decoding stops early, without error, when the next
// record would run past the end of the section.
func Decode(section *elf.Section, offset uint64, s *schema.Schema, count int) ([]*record.Record, error) {
	if s.Size == 0 {
		return nil, &elf.FormatError{DataType: s.Type.String(), Section: section.Name, Offset: offset, Reason: "record type has no fields"}
	}

	reader := helpers.NewReader(section.Content)
	if offset > uint64(reader.Len()) {
		return nil, &elf.FormatError{DataType: s.Type.String(), Section: section.Name, Offset: offset, Reason: "array starts past the end of the section"}
	}
	reader.Pos = int(offset)

	records := make([]*record.Record, 0, max(count, 0))
	for i := 0; i < count && reader.Remaining() >= s.Size; i++ {
		r := record.New(s)
		for idx, f := range s.Fields {
			v, err := readField(reader, f.Type)
			if err != nil {
				return nil, &elf.FormatError{
					DataType: s.Type.String(),
					Section:  section.Name,
					Offset:   uint64(reader.Pos),
					Field:    f.Name,
					Reason:   err.Error(),
				}
			}
			r.SetValue(idx, v)
		}
		records = append(records, r)
	}

	return records, nil
}

func readField(reader *helpers.Reader, typ schema.Primitive) (any, error) {
	switch typ {
	case schema.String, schema.Symbol, schema.SymbolAddr, schema.Pointer:
		slot, err := reader.Bytes(8)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(slot, zeroSlot) {
			reader.Pos -= 8
			return nil, fmt.Errorf("%s field contains non-pointer data", typ)
		}
		return nil, nil
	case schema.Vector3:
		x, _ := reader.F32()
		y, _ := reader.F32()
		z, err := reader.F32()
		return record.Vector3{X: x, Y: y, Z: z}, err
	case schema.Float:
		return reader.F32()
	case schema.Double:
		return reader.F64()
	case schema.Byte:
		return reader.U8()
	case schema.Bool8:
		v, err := reader.U8()
		return v != 0, err
	case schema.Bool32:
		v, err := reader.U32()
		return v != 0, err
	case schema.Short:
		v, err := reader.U16()
		return int16(v), err
	case schema.Int:
		v, err := reader.U32()
		return int32(v), err
	case schema.Long:
		v, err := reader.U64()
		return int64(v), err
	}
	return nil, fmt.Errorf("unknown primitive type %q", typ)
}
