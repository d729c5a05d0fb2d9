package export

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/layout"
	"github.com/magicbird9803/Unsimplifier-master/pkg/parser"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
)

type rawDocument struct {
	Type   datatype.DataType              `json:"type"`
	Tables map[string][]json.RawMessage `json:"tables"`
}

// Import rebuilds a container from a document. The result carries a copy
// of base's container model, so it can be serialized in base's place.
func Import(reg *schema.Registry, base *parser.Container, data []byte) (*parser.Container, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	if doc.Type != base.Type {
		return nil, fmt.Errorf("import: document holds %s, base container is %s", doc.Type, base.Type)
	}

	out := &parser.Container{Type: doc.Type, Tables: make(map[string][]*record.Record, len(doc.Tables))}
	if base.File != nil {
		out.File = base.File.Clone()
	}

	l := layout.For(doc.Type)
	for division, raws := range doc.Tables {
		typ, ok := divisionType(l, division)
		if !ok {
			return nil, fmt.Errorf("import %s: unknown division %q", doc.Type, division)
		}
		sch, err := reg.Get(typ)
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", doc.Type, err)
		}

		records, err := decodeRecords(reg, sch, raws)
		if err != nil {
			return nil, fmt.Errorf("import %s: %s: %w", doc.Type, division, err)
		}
		out.Tables[division] = records
	}

	out.LinkChildren()
	return out, nil
}

// divisionType is the record type stored in a division. The child
// division of a header-linked layout is derived, never imported.
func divisionType(l layout.Layout, division string) (datatype.DataType, bool) {
	switch l.Strategy {
	case layout.Flat, layout.ModelTree:
		return l.Type, division == layout.MainDivision
	case layout.SymbolTables, layout.HeaderLinked:
		for _, t := range l.Tables {
			if t.Division == division {
				return t.Type, true
			}
		}
	}
	return datatype.None, false
}

func decodeRecords(reg *schema.Registry, sch *schema.Schema, raws []json.RawMessage) ([]*record.Record, error) {
	out := make([]*record.Record, len(raws))
	for i, raw := range raws {
		r, err := decodeRecord(reg, sch, raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

// decodeRecord builds a record from its object. Missing fields keep their
// default value.
func decodeRecord(reg *schema.Registry, sch *schema.Schema, raw json.RawMessage) (*record.Record, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}

	r := record.New(sch)
	for key, value := range obj {
		if key == IDKey {
			var id string
			if err := json.Unmarshal(value, &id); err != nil {
				return nil, fmt.Errorf("%s: %w", IDKey, err)
			}
			parsed, err := uuid.Parse(id)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", IDKey, err)
			}
			r.ID = parsed
			continue
		}

		f, ok := sch.Field(key)
		if !ok {
			return nil, fmt.Errorf("%s has no field %q", sch.Type, key)
		}

		v, err := decodeValue(reg, sch, f, value)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", sch.Type, f.Name, err)
		}
		if err := r.Set(f.Name, v); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func decodeValue(reg *schema.Registry, sch *schema.Schema, f schema.Field, raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch f.Type {
	case schema.String:
		return decodeAs[string](raw)
	case schema.Symbol, schema.SymbolAddr, schema.Pointer:
		return decodeReference(reg, sch, f, trimmed)
	case schema.Vector3:
		return decodeVector(trimmed)
	case schema.Float:
		return decodeFloat32(trimmed)
	case schema.Double:
		return decodeFloat64(trimmed)
	case schema.Byte:
		return decodeAs[uint8](raw)
	case schema.Bool8, schema.Bool32:
		return decodeAs[bool](raw)
	case schema.Short:
		return decodeAs[int16](raw)
	case schema.Int:
		return decodeAs[int32](raw)
	case schema.Long:
		return decodeAs[int64](raw)
	}
	return nil, fmt.Errorf("unsupported field type %s", f.Type)
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeReference reads a symbol name, a child array or a raw address.
func decodeReference(reg *schema.Registry, sch *schema.Schema, f schema.Field, raw []byte) (any, error) {
	if len(raw) > 0 && raw[0] == '"' {
		return decodeAs[string](raw)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}

	if _, ok := obj["records"]; !ok {
		var addr elf.Address
		if err := json.Unmarshal(raw, &addr); err != nil {
			return nil, err
		}
		if addr.Section == "" {
			return nil, fmt.Errorf("address without section")
		}
		return addr, nil
	}

	child, ok := sch.Child(f.Name)
	if !ok {
		return nil, fmt.Errorf("field holds no child array")
	}
	childSchema, err := reg.Get(child.Type)
	if err != nil {
		return nil, err
	}

	var nested struct {
		Symbol  string            `json:"symbol"`
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, err
	}

	records, err := decodeRecords(reg, childSchema, nested.Records)
	if err != nil {
		return nil, err
	}
	return &record.Children{Symbol: nested.Symbol, Records: records}, nil
}
