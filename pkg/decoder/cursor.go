package decoder

import (
	"fmt"
	"sort"

	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
)

type Mode int

const (
	// Strict cursors fail when a relocation is left behind.
	Strict Mode = iota
	// SkipTolerant cursors fast-forward past relocations that precede the
	// record being resolved.
	SkipTolerant
)

// Cursor walks one relocation table forward only.
type Cursor struct {
	Section string
	Mode    Mode

	relocations []elf.Relocation
	pos         int
}

func NewCursor(section string, relocations []elf.Relocation, mode Mode) *Cursor {
	return &Cursor{Section: section, Mode: mode, relocations: relocations}
}

func (c *Cursor) Peek() (elf.Relocation, bool) {
	if c.pos >= len(c.relocations) {
		return elf.Relocation{}, false
	}
	return c.relocations[c.pos], true
}

// Seek positions the cursor at the first relocation at or after offset.
func (c *Cursor) Seek(offset elf.Pointer) error {
	next, ok := c.Peek()
	if !ok || next.Location >= offset {
		return nil
	}

	if c.Mode == Strict {
		return &elf.FormatError{
			Section: c.Section,
			Offset:  uint64(next.Location),
			Reason:  fmt.Sprintf("relocation skipped before record at 0x%x", uint64(offset)),
		}
	}

	rest := c.relocations[c.pos:]
	c.pos += sort.Search(len(rest), func(i int) bool { return rest[i].Location >= offset })
	return nil
}

// Take consumes the next relocation if it lies before end.
func (c *Cursor) Take(end elf.Pointer) (elf.Relocation, bool) {
	next, ok := c.Peek()
	if !ok || next.Location >= end {
		return elf.Relocation{}, false
	}
	c.pos++
	return next, true
}

// Remaining is the number of relocations not yet consumed.
func (c *Cursor) Remaining() int {
	return len(c.relocations) - c.pos
}
