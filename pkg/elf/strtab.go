package elf

import (
	"bytes"

	"github.com/magicbird9803/Unsimplifier-master/pkg/helpers"
)

// StringTable is a null-terminated name table (.strtab, .shstrtab).
// Existing bytes are never rewritten; new names are appended.
type StringTable struct {
	data []byte
}

func NewStringTable(data []byte) *StringTable {
	return &StringTable{data: bytes.Clone(data)}
}

func (t *StringTable) At(offset uint32) string {
	if int(offset) >= len(t.data) {
		return ""
	}
	return helpers.GetString(t.data[offset:])
}

// Offset returns the position of name, reusing any existing occurrence
// (including tail-merged suffixes) before appending.
func (t *StringTable) Offset(name string) uint32 {
	needle := helpers.String2Bytes(name)
	if idx := bytes.Index(t.data, needle); idx >= 0 {
		return uint32(idx)
	}

	offset := uint32(len(t.data))
	t.data = append(t.data, needle...)
	return offset
}

func (t *StringTable) Bytes() []byte {
	return t.data
}
