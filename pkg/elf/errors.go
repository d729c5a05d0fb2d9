package elf

import "fmt"

// EmptyFileError reports a container without a .data section. Such files
// are cleared on purpose and are not corrupt.
type EmptyFileError struct {
	DataType string
}

func (e *EmptyFileError) Error() string {
	if e.DataType == "" {
		return "file has no .data section"
	}
	return fmt.Sprintf("%s: file has no .data section", e.DataType)
}

// FormatError is any violation of the container's structural invariants.
type FormatError struct {
	DataType string
	Section  string
	Offset   uint64
	Field    string
	Reason   string
}

func (e *FormatError) Error() string {
	msg := "format error"
	if e.DataType != "" {
		msg += " in " + e.DataType
	}
	if e.Section != "" {
		msg += fmt.Sprintf(" at %s+0x%x", e.Section, e.Offset)
	} else {
		msg += fmt.Sprintf(" at 0x%x", e.Offset)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %s)", e.Field)
	}
	return msg + ": " + e.Reason
}
