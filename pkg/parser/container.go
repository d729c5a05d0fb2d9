package parser

import (
	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/layout"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
)

// Container is a parsed file: the container model it came from plus its
// record tables keyed by division.
type Container struct {
	Type   datatype.DataType
	File   *elf.ELF64
	Tables map[string][]*record.Record
}

// Main returns the "main" division.
func (c *Container) Main() []*record.Record {
	return c.Tables[layout.MainDivision]
}

// Clone deep copies the records and the container model. Child divisions
// of header-linked files keep aliasing the cloned header's children.
func (c *Container) Clone() *Container {
	out := &Container{Type: c.Type, Tables: make(map[string][]*record.Record, len(c.Tables))}
	if c.File != nil {
		out.File = c.File.Clone()
	}

	l := layout.For(c.Type)
	for division, records := range c.Tables {
		if l.Strategy == layout.HeaderLinked && division == l.ChildDivision {
			continue
		}
		cloned := make([]*record.Record, len(records))
		for i, r := range records {
			cloned[i] = r.Clone()
		}
		out.Tables[division] = cloned
	}

	out.LinkChildren()
	return out
}

// LinkChildren points the child division of a header-linked container at
// the records owned by its header.
func (c *Container) LinkChildren() {
	if l := layout.For(c.Type); l.Strategy == layout.HeaderLinked {
		c.Tables[l.ChildDivision] = headerChildren(c.Main())
	}
}

// headerChildren returns the records of the first child array owned by
// the first header.
func headerChildren(headers []*record.Record) []*record.Record {
	if len(headers) == 0 {
		return nil
	}
	header := headers[0]
	for _, child := range header.Schema.Children {
		if c := header.Children(child.Field); c != nil {
			return c.Records
		}
	}
	return nil
}
