// Package parser turns a container into a record graph following the
// layout of its data type.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/decoder"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/helpers"
	"github.com/magicbird9803/Unsimplifier-master/pkg/layout"
	"github.com/magicbird9803/Unsimplifier-master/pkg/log"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
)

type Parser struct {
	reg *schema.Registry
}

func New(reg *schema.Registry) *Parser {
	return &Parser{reg: reg}
}

// Parse decodes data as a file of type dt.
func (p *Parser) Parse(dt datatype.DataType, data []byte) (*Container, error) {
	if !dt.IsFileType() {
		return nil, fmt.Errorf("%w: %s is not a file type", datatype.ErrUnknownType, dt)
	}

	file, err := elf.Parse(data)
	if err != nil {
		return nil, tag(err, dt)
	}

	return p.ParseFile(dt, file)
}

// ParseFile builds the record graph over an already parsed container
// model. Symbols synthesized for unnamed model arrays are added to file.
func (p *Parser) ParseFile(dt datatype.DataType, file *elf.ELF64) (*Container, error) {
	if file.Section(".data") == nil {
		return nil, &elf.EmptyFileError{DataType: dt.String()}
	}

	s := &session{
		Parser:  p,
		dt:      dt,
		file:    file,
		cursors: make(map[string]*decoder.Cursor),
		tables:  make(map[string][]*record.Record),
	}

	l := layout.For(dt)
	log.Debugf("Parsing %s as %s", dt, l.Strategy)

	var err error
	switch l.Strategy {
	case layout.Empty:
	case layout.Flat:
		err = s.flat()
	case layout.SymbolTables:
		err = s.symbolTables(l)
	case layout.HeaderLinked:
		err = s.headerLinked(l)
	case layout.ModelTree:
		err = s.modelTree()
	}
	if err != nil {
		return nil, tag(err, dt)
	}

	return &Container{Type: dt, File: file, Tables: s.tables}, nil
}

func tag(err error, dt datatype.DataType) error {
	var formatErr *elf.FormatError
	if errors.As(err, &formatErr) && formatErr.DataType == "" {
		formatErr.DataType = dt.String()
	}
	return err
}

type session struct {
	*Parser

	dt      datatype.DataType
	file    *elf.ELF64
	cursors map[string]*decoder.Cursor
	tables  map[string][]*record.Record
}

func (s *session) fail(section string, offset uint64, reason string) error {
	return &elf.FormatError{DataType: s.dt.String(), Section: section, Offset: offset, Reason: reason}
}

// cursor returns a fresh skip-tolerant cursor, or the strict cursor all
// strict arrays of a section share.
func (s *session) cursor(section string, skip bool) *decoder.Cursor {
	if skip {
		return decoder.NewCursor(section, s.file.Relocations[section], decoder.SkipTolerant)
	}
	if c, ok := s.cursors[section]; ok {
		return c
	}
	c := decoder.NewCursor(section, s.file.Relocations[section], decoder.Strict)
	s.cursors[section] = c
	return c
}

// array decodes and resolves count records of typ at section+offset.
func (s *session) array(section string, offset uint64, typ datatype.DataType, count int, skip, raw bool) ([]*record.Record, error) {
	sch, err := s.reg.Get(typ)
	if err != nil {
		return nil, err
	}

	sec := s.file.Section(section)
	if sec == nil {
		return nil, fmt.Errorf("%w: %s", elf.ErrNoSection, section)
	}

	records, err := decoder.Decode(sec, offset, sch, count)
	if err != nil {
		return nil, err
	}

	resolver := &decoder.Resolver{File: s.file, RawAddresses: raw}
	if err := resolver.Resolve(s.cursor(section, skip), offset, records); err != nil {
		return nil, err
	}

	return records, nil
}

func (s *session) symbol(name string) (*elf.Symbol, string, error) {
	_, sym := s.file.FindSymbol(name)
	if sym == nil {
		return nil, "", s.fail(".symtab", 0, fmt.Sprintf("symbol %q not found", name))
	}
	if int(sym.StShNdx) >= len(s.file.Sections) {
		return nil, "", s.fail(".symtab", 0, fmt.Sprintf("symbol %q has no section", name))
	}
	return sym, s.file.Sections[sym.StShNdx].Name, nil
}

// childCount is the number of records a child array holds: the count
// field when the relation has one, otherwise the symbol's capacity. A
// count above the capacity of a sized symbol is a format error.
func (s *session) childCount(parent *record.Record, child schema.Child, sym *elf.Symbol, size int) (int, error) {
	capacity := -1
	if sym != nil && sym.StSize > 0 {
		capacity = max(int(sym.StSize)/size-1, 0)
	}

	if child.CountField == "" {
		return max(capacity, 0), nil
	}

	n, _ := parent.Int(child.CountField)
	if n < 0 {
		return 0, s.fail(".data", 0, fmt.Sprintf("%s.%s is negative (%d)", parent.Type(), child.CountField, n))
	}
	if capacity >= 0 && int(n) > capacity {
		return 0, &elf.FormatError{
			DataType: s.dt.String(),
			Section:  s.file.Sections[sym.StShNdx].Name,
			Offset:   sym.StValue,
			Field:    child.CountField,
			Reason:   fmt.Sprintf("%s declares %d records but symbol %s holds %d", parent.Type(), n, sym.Name, capacity),
		}
	}
	return int(n), nil
}

// children decodes the child arrays named by symbol fields of records.
func (s *session) children(records []*record.Record, skip bool) error {
	for _, r := range records {
		for _, child := range r.Schema.Children {
			name, ok := r.String(child.Field)
			if !ok {
				continue
			}

			sym, section, err := s.symbol(name)
			if err != nil {
				return err
			}

			sch, err := s.reg.Get(child.Type)
			if err != nil {
				return err
			}

			count, err := s.childCount(r, child, sym, sch.Size)
			if err != nil {
				return err
			}

			items, err := s.array(section, sym.StValue, child.Type, count, skip, false)
			if err != nil {
				return err
			}
			if err := s.children(items, skip); err != nil {
				return err
			}

			r.SetValue(r.Schema.FieldIndex(child.Field), &record.Children{Symbol: name, Records: items})
		}
	}
	return nil
}

func (s *session) flat() error {
	sch, err := s.reg.Get(s.dt)
	if err != nil {
		return err
	}

	count, err := s.flatCount(sch)
	if err != nil {
		return err
	}

	records, err := s.array(".data", 0, s.dt, count, false, false)
	if err != nil {
		return err
	}
	if err := s.children(records, false); err != nil {
		return err
	}

	s.tables[layout.MainDivision] = records
	return nil
}

// flatCount reads the record count from the catalog's count symbol, the
// first word of .rodata, or the size of .data, in that order.
func (s *session) flatCount(sch *schema.Schema) (int, error) {
	if sch.CountSymbol != "" {
		if _, sym := s.file.FindSymbol(sch.CountSymbol); sym != nil {
			return s.readCount(sym, 4)
		}
	}

	if rodata := s.file.Section(".rodata"); rodata != nil && len(rodata.Content) >= 4 {
		n, _ := helpers.NewReader(rodata.Content).U32()
		if int32(n) < 0 {
			return 0, s.fail(".rodata", 0, fmt.Sprintf("negative record count %d", int32(n)))
		}
		return int(int32(n)), nil
	}

	data := s.file.Section(".data")
	return max(len(data.Content)/sch.Size-sch.DefaultPadding, 0), nil
}

// readCount reads a 4 or 8 byte count at a symbol's location.
func (s *session) readCount(sym *elf.Symbol, width int) (int, error) {
	if int(sym.StShNdx) >= len(s.file.Sections) {
		return 0, s.fail(".symtab", 0, fmt.Sprintf("count symbol %q has no section", sym.Name))
	}
	section := s.file.Sections[sym.StShNdx]

	reader := helpers.NewReader(section.Content)
	reader.Pos = int(sym.StValue)

	var n int64
	if width == 8 {
		v, err := reader.U64()
		if err != nil {
			return 0, s.fail(section.Name, sym.StValue, fmt.Sprintf("count symbol %q out of range", sym.Name))
		}
		n = int64(v)
	} else {
		v, err := reader.U32()
		if err != nil {
			return 0, s.fail(section.Name, sym.StValue, fmt.Sprintf("count symbol %q out of range", sym.Name))
		}
		n = int64(int32(v))
	}

	if n < 0 {
		return 0, s.fail(section.Name, sym.StValue, fmt.Sprintf("negative record count %d", n))
	}
	return int(n), nil
}

// symbolTables reads every table whose symbol exists. A file holding none
// of its tables is not of this type.
func (s *session) symbolTables(l layout.Layout) error {
	var missing []string
	for _, table := range l.Tables {
		_, sym := s.file.FindSymbol(table.Symbol)
		if sym == nil {
			log.Warnf("%s: no table at %s", s.dt, table.Symbol)
			missing = append(missing, table.Symbol)
			continue
		}

		sch, err := s.reg.Get(table.Type)
		if err != nil {
			return err
		}

		count := max(int(sym.StSize)/sch.Size-table.Padding, 0)
		records, err := s.array(s.file.Sections[sym.StShNdx].Name, sym.StValue, table.Type, count, table.Skip, false)
		if err != nil {
			return err
		}
		if err := s.children(records, table.ChildSkip); err != nil {
			return err
		}

		s.tables[table.Division] = records
	}

	if len(missing) == len(l.Tables) {
		return s.fail(".symtab", 0, fmt.Sprintf("none of the tables %s exist", strings.Join(missing, ", ")))
	}
	return nil
}

func (s *session) headerLinked(l layout.Layout) error {
	table := l.Tables[0]

	sym, section, err := s.symbol(table.Symbol)
	if err != nil {
		return err
	}

	header, err := s.array(section, sym.StValue, table.Type, 1, table.Skip, false)
	if err != nil {
		return err
	}
	if len(header) == 0 {
		return s.fail(section, sym.StValue, fmt.Sprintf("header %s lies outside its section", table.Symbol))
	}
	if err := s.children(header, table.ChildSkip); err != nil {
		return err
	}

	s.tables[layout.MainDivision] = header
	s.tables[l.ChildDivision] = headerChildren(header)
	return nil
}
