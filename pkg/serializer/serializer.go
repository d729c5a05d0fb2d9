// Package serializer writes a record graph back into its container.
package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/layout"
	"github.com/magicbird9803/Unsimplifier-master/pkg/linker"
	"github.com/magicbird9803/Unsimplifier-master/pkg/log"
	"github.com/magicbird9803/Unsimplifier-master/pkg/parser"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
)

type Serializer struct {
	reg *schema.Registry
}

func New(reg *schema.Registry) *Serializer {
	return &Serializer{reg: reg}
}

// Serialize writes c as a file of type dt. The container and its records
// are left untouched; the work happens on a copy.
func (s *Serializer) Serialize(dt datatype.DataType, c *parser.Container) ([]byte, error) {
	if c == nil || c.File == nil {
		return nil, fmt.Errorf("serialize %s: container has no file model", dt)
	}

	c = c.Clone()
	if c.File.Section(".data") == nil {
		return nil, &elf.EmptyFileError{DataType: dt.String()}
	}

	j := &job{
		Serializer: s,
		dt:         dt,
		file:       c.File,
		tables:     c.Tables,
		link:       linker.New(c.File),
	}

	l := layout.For(dt)
	log.Debugf("Serializing %s as %s", dt, l.Strategy)

	var err error
	switch l.Strategy {
	case layout.Empty:
		j.link.Unit(".data")
	case layout.Flat:
		err = j.flat()
	case layout.SymbolTables:
		err = j.symbolTables(l)
	case layout.HeaderLinked:
		err = j.headerLinked(l)
	case layout.ModelTree:
		err = j.modelTree()
	}
	if err != nil {
		return nil, err
	}

	if l.Strategy != layout.ModelTree {
		j.rewriteCount(l)
	}

	if err := j.link.Link(); err != nil {
		return nil, err
	}

	return j.file.Assemble(), nil
}

type job struct {
	*Serializer

	dt     datatype.DataType
	file   *elf.ELF64
	tables map[string][]*record.Record
	link   *linker.Linker
}

// rewriteCount stores the main table length as the only word of .rodata.
// Containers without .rodata are left alone.
func (j *job) rewriteCount(l layout.Layout) {
	rodata := j.file.Section(".rodata")
	if rodata == nil {
		return
	}
	if _, ok := j.tables[layout.MainDivision]; !ok && l.Strategy != layout.Empty {
		return
	}

	rodata.Content = binary.LittleEndian.AppendUint32(nil, uint32(len(j.tables[layout.MainDivision])))
}

func (j *job) flat() error {
	sch, err := j.reg.Get(j.dt)
	if err != nil {
		return err
	}

	unit := j.link.Unit(".data")
	if err := j.writeRecords(unit, sch, j.tables[layout.MainDivision], sch.DefaultPadding); err != nil {
		return err
	}

	if sch.CountSymbol != "" {
		if _, sym := j.file.FindSymbol(sch.CountSymbol); sym != nil {
			j.link.Place(sch.CountSymbol, unit.Location())
			unit.U32(uint32(len(j.tables[layout.MainDivision])))
		}
	}

	return nil
}

// symbolTables writes, table by table, every child array followed by the
// table that points at them.
func (j *job) symbolTables(l layout.Layout) error {
	for _, table := range l.Tables {
		records, ok := j.tables[table.Division]
		if !ok {
			continue
		}

		sch, err := j.reg.Get(table.Type)
		if err != nil {
			return err
		}

		key, err := j.link.Bind(table.Symbol, "", ".data")
		if err != nil {
			return err
		}

		unit := j.link.Unit(".data")
		for i, r := range records {
			j.pool(r)
			if err := j.childArrays(unit, r, fmt.Sprintf("%s::%d", table.Symbol, i), nil); err != nil {
				return err
			}
		}

		j.link.Place(key, unit.Location())
		j.link.Resize(key, uint64((len(records)+table.Padding)*sch.Size))
		if err := j.writeRecords(unit, sch, records, table.Padding); err != nil {
			return err
		}
	}
	return nil
}

// headerLinked writes the header's child array, then the header.
func (j *job) headerLinked(l layout.Layout) error {
	table := l.Tables[0]
	headers := j.tables[layout.MainDivision]

	sch, err := j.reg.Get(table.Type)
	if err != nil {
		return err
	}

	key, err := j.link.Bind(table.Symbol, "", ".data")
	if err != nil {
		return err
	}

	unit := j.link.Unit(".data")
	for i, header := range headers {
		name := ""
		if l.ChildName != nil {
			name = l.ChildName(header)
		}
		if err := j.childArrays(unit, header, fmt.Sprintf("%s::%d", table.Symbol, i), func(string) string { return name }); err != nil {
			return err
		}
	}

	j.link.Place(key, unit.Location())
	j.link.Resize(key, uint64(len(headers)*sch.Size))
	return j.writeRecords(unit, sch, headers, 0)
}

// childArrays places every child array owned by r. fallback prefixes the
// names of arrays that have no symbol yet; rename, when set, gives the
// name each array's symbol ends up with.
func (j *job) childArrays(unit *linker.Unit, r *record.Record, fallback string, rename func(field string) string) error {
	for _, child := range r.Schema.Children {
		c := r.Children(child.Field)
		if c == nil {
			continue
		}

		name := ""
		if rename != nil {
			name = rename(child.Field)
		}
		if name == "" && c.Symbol == "" {
			name = fallback + "::" + child.Field
		}

		key, err := j.link.Bind(c.Symbol, name, unit.Section)
		if err != nil {
			return err
		}
		if name != "" {
			c.Symbol = name
		}

		if err := j.place(unit, key, c, child.Type); err != nil {
			return err
		}
	}
	return nil
}

// place writes an array followed by one padding record and points its
// symbol at it.
func (j *job) place(unit *linker.Unit, key string, c *record.Children, typ datatype.DataType) error {
	sch, err := j.reg.Get(typ)
	if err != nil {
		return err
	}

	j.link.Place(key, unit.Location())
	j.link.Resize(key, uint64((len(c.Records)+1)*sch.Size))
	return j.writeRecords(unit, sch, c.Records, 1)
}

// pool adds the record's strings to the string pool in field order.
func (j *job) pool(r *record.Record) {
	for idx, f := range r.Schema.Fields {
		if f.Type != schema.String {
			continue
		}
		if str, ok := r.Value(idx).(string); ok {
			j.link.Strings.Add(str)
		}
	}
}
