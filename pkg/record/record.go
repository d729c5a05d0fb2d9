// Package record holds decoded records: typed values in schema order plus
// a stable identity.
package record

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
)

type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Children is an owned child array together with the name of the linker
// symbol backing it.
type Children struct {
	Symbol  string
	Records []*Record
}

type Record struct {
	ID     uuid.UUID
	Schema *schema.Schema

	values []any
}

// New builds a record with every field at its default value.
func New(s *schema.Schema) *Record {
	r := &Record{
		ID:     uuid.New(),
		Schema: s,
		values: make([]any, len(s.Fields)),
	}
	for i, f := range s.Fields {
		r.values[i] = Zero(f.Type)
	}
	return r
}

// Zero is the default value of a primitive. Pointer-typed fields default
// to nil.
func Zero(p schema.Primitive) any {
	switch p {
	case schema.Vector3:
		return Vector3{}
	case schema.Float:
		return float32(0)
	case schema.Double:
		return float64(0)
	case schema.Byte:
		return uint8(0)
	case schema.Bool8, schema.Bool32:
		return false
	case schema.Short:
		return int16(0)
	case schema.Int:
		return int32(0)
	case schema.Long:
		return int64(0)
	}
	return nil
}

// Check reports whether v may be stored in a field of type p.
func Check(p schema.Primitive, v any) error {
	ok := false
	switch v := v.(type) {
	case nil:
		ok = p.IsPointer()
	case string:
		ok = p == schema.String || p == schema.Symbol || p == schema.SymbolAddr
	case *Children:
		ok = v != nil && (p == schema.Symbol || p == schema.SymbolAddr)
	case elf.Address:
		ok = p == schema.SymbolAddr || p == schema.Pointer
	case Vector3:
		ok = p == schema.Vector3
	case float32:
		ok = p == schema.Float
	case float64:
		ok = p == schema.Double
	case uint8:
		ok = p == schema.Byte
	case bool:
		ok = p == schema.Bool8 || p == schema.Bool32
	case int16:
		ok = p == schema.Short
	case int32:
		ok = p == schema.Int
	case int64:
		ok = p == schema.Long
	}
	if !ok {
		return fmt.Errorf("value of type %T cannot be stored in a %s field", v, p)
	}
	return nil
}

func (r *Record) Type() datatype.DataType {
	return r.Schema.Type
}

// Value returns the i-th field value in schema order.
func (r *Record) Value(i int) any {
	return r.values[i]
}

// SetValue stores v at index i without type checking.
func (r *Record) SetValue(i int, v any) {
	r.values[i] = v
}

func (r *Record) Get(name string) any {
	idx := r.Schema.FieldIndex(name)
	if idx < 0 {
		return nil
	}
	return r.values[idx]
}

func (r *Record) Set(name string, v any) error {
	idx := r.Schema.FieldIndex(name)
	if idx < 0 {
		return fmt.Errorf("%s has no field %q", r.Schema.Type, name)
	}
	if err := Check(r.Schema.Fields[idx].Type, v); err != nil {
		return fmt.Errorf("%s.%s: %w", r.Schema.Type, name, err)
	}
	r.values[idx] = v
	return nil
}

// String returns a string or symbol name field.
func (r *Record) String(name string) (string, bool) {
	s, ok := r.Get(name).(string)
	return s, ok
}

// Int returns any integer field widened to int64.
func (r *Record) Int(name string) (int64, bool) {
	switch v := r.Get(name).(type) {
	case uint8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// SetInt stores n in an integer field, narrowing to the field's width.
func (r *Record) SetInt(name string, n int64) error {
	f, ok := r.Schema.Field(name)
	if !ok {
		return fmt.Errorf("%s has no field %q", r.Schema.Type, name)
	}
	switch f.Type {
	case schema.Byte:
		return r.Set(name, uint8(n))
	case schema.Short:
		return r.Set(name, int16(n))
	case schema.Int:
		return r.Set(name, int32(n))
	case schema.Long:
		return r.Set(name, n)
	}
	return fmt.Errorf("%s.%s is not an integer field", r.Schema.Type, name)
}

func (r *Record) Children(name string) *Children {
	c, _ := r.Get(name).(*Children)
	return c
}

// Label is the identifying field's value, used in logs and documents.
func (r *Record) Label() string {
	if r.Schema.IdentifyingField == "" {
		return ""
	}
	return fmt.Sprint(r.Get(r.Schema.IdentifyingField))
}

// Clone copies the record and its child arrays, keeping identities.
func (r *Record) Clone() *Record {
	out := &Record{ID: r.ID, Schema: r.Schema, values: make([]any, len(r.values))}
	for i, v := range r.values {
		if c, ok := v.(*Children); ok {
			v = c.Clone()
		}
		out.values[i] = v
	}
	return out
}

func (c *Children) Clone() *Children {
	out := &Children{Symbol: c.Symbol, Records: make([]*Record, len(c.Records))}
	for i, r := range c.Records {
		out.Records[i] = r.Clone()
	}
	return out
}
