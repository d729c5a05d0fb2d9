// Package export converts parsed containers to JSON documents and back.
//
// A document lists every division of a container. Records are objects
// with their fields in schema order behind a "$id" key; child arrays nest
// as {"symbol", "records"} and raw addresses as {"section", "offset"}.
// Non-finite floats are written as {"bits": "0x..."}.
package export

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/layout"
	"github.com/magicbird9803/Unsimplifier-master/pkg/parser"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
)

const IDKey = "$id"

type document struct {
	Type   datatype.DataType       `json:"type"`
	Tables map[string][]recordJSON `json:"tables"`
}

type recordJSON struct {
	*record.Record
}

type childrenJSON struct {
	Symbol  string       `json:"symbol"`
	Records []recordJSON `json:"records"`
}

// Export renders c as an indented JSON document. The child division of a
// header-linked container is left out; it is part of the header.
func Export(c *parser.Container) ([]byte, error) {
	doc := document{Type: c.Type, Tables: make(map[string][]recordJSON, len(c.Tables))}

	l := layout.For(c.Type)
	for division, records := range c.Tables {
		if l.Strategy == layout.HeaderLinked && division == l.ChildDivision {
			continue
		}
		doc.Tables[division] = wrap(records)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", c.Type, err)
	}
	return out, nil
}

func wrap(records []*record.Record) []recordJSON {
	out := make([]recordJSON, len(records))
	for i, r := range records {
		out[i] = recordJSON{r}
	}
	return out
}

func (r recordJSON) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	id, err := json.Marshal(r.ID.String())
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"` + IDKey + `":`)
	buf.Write(id)

	for idx, f := range r.Schema.Fields {
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := marshalValue(r.Value(idx))
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", r.Type(), f.Name, err)
		}

		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v any) ([]byte, error) {
	switch v := v.(type) {
	case *record.Children:
		return json.Marshal(childrenJSON{Symbol: v.Symbol, Records: wrap(v.Records)})
	case float32:
		return marshalFloat32(v)
	case float64:
		return marshalFloat64(v)
	case record.Vector3:
		return marshalVector(v)
	}
	return json.Marshal(v)
}
