// Package schema describes the binary layout of every record type.
package schema

import (
	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
)

type Primitive string

const (
	String     Primitive = "string"
	Symbol     Primitive = "symbol"
	SymbolAddr Primitive = "symbolAddr"
	Pointer    Primitive = "pointer"
	Vector3    Primitive = "Vector3"
	Float      Primitive = "float"
	Double     Primitive = "double"
	Byte       Primitive = "byte"
	Bool8      Primitive = "bool8"
	Bool32     Primitive = "bool32"
	Short      Primitive = "short"
	Int        Primitive = "int"
	Long       Primitive = "long"
)

var widths = map[Primitive]int{
	String:     8,
	Symbol:     8,
	SymbolAddr: 8,
	Pointer:    8,
	Vector3:    12,
	Float:      4,
	Double:     8,
	Byte:       1,
	Bool8:      1,
	Bool32:     4,
	Short:      2,
	Int:        4,
	Long:       8,
}

// Width returns the encoded size of p, or false for unknown names.
func (p Primitive) Width() (int, bool) {
	w, ok := widths[p]
	return w, ok
}

// IsPointer reports whether p is stored as zero bytes plus a relocation.
func (p Primitive) IsPointer() bool {
	switch p {
	case String, Symbol, SymbolAddr, Pointer:
		return true
	}
	return false
}

func (p Primitive) IsInteger() bool {
	switch p {
	case Byte, Short, Int, Long:
		return true
	}
	return false
}

type Field struct {
	Name        string
	Type        Primitive
	Offset      int
	Description string
	Hidden      bool
	TabName     string
}

// Child declares that a symbol or symbolAddr field owns an array of
// records. CountField, when set, holds the element count.
type Child struct {
	Field      string
	Type       datatype.DataType
	CountField string
}

type Schema struct {
	Type             datatype.DataType
	Parent           datatype.DataType
	DisplayName      string
	IdentifyingField string
	CountSymbol      string
	DefaultPadding   int
	TextVars         map[string]string

	Fields   []Field
	Size     int
	Children []Child

	byName   map[string]int
	byOffset map[int]int
}

func (s *Schema) FieldIndex(name string) int {
	if idx, ok := s.byName[name]; ok {
		return idx
	}
	return -1
}

func (s *Schema) Field(name string) (Field, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[idx], true
}

// FieldAt returns the field starting at a byte offset inside the record.
func (s *Schema) FieldAt(offset int) (Field, int, bool) {
	idx, ok := s.byOffset[offset]
	if !ok {
		return Field{}, -1, false
	}
	return s.Fields[idx], idx, true
}

func (s *Schema) Child(field string) (Child, bool) {
	for _, child := range s.Children {
		if child.Field == field {
			return child, true
		}
	}
	return Child{}, false
}

// CountFor returns the child relation whose count is stored in field.
func (s *Schema) CountFor(field string) (Child, bool) {
	for _, child := range s.Children {
		if child.CountField != "" && child.CountField == field {
			return child, true
		}
	}
	return Child{}, false
}

func (s *Schema) index() {
	s.byName = make(map[string]int, len(s.Fields))
	s.byOffset = make(map[int]int, len(s.Fields))
	for i, f := range s.Fields {
		s.byName[f.Name] = i
		s.byOffset[f.Offset] = i
	}
}
