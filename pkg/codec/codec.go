// Package codec bundles parsing, serialization and JSON documents behind
// the operations the CLI and the HTTP server expose.
package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/export"
	"github.com/magicbird9803/Unsimplifier-master/pkg/log"
	"github.com/magicbird9803/Unsimplifier-master/pkg/parser"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
	"github.com/magicbird9803/Unsimplifier-master/pkg/serializer"
)

// ErrUnstable is returned by Build when verification is on and writing
// the output again does not reproduce it.
var ErrUnstable = errors.New("serialized container is not stable")

type Codec struct {
	Registry *schema.Registry

	// VerifyRoundTrip makes Build re-parse and re-serialize its output.
	VerifyRoundTrip bool

	parser     *parser.Parser
	serializer *serializer.Serializer
}

func New(reg *schema.Registry) *Codec {
	return &Codec{
		Registry:   reg,
		parser:     parser.New(reg),
		serializer: serializer.New(reg),
	}
}

func (c *Codec) Parse(dt datatype.DataType, data []byte) (*parser.Container, error) {
	container, err := c.parser.Parse(dt, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", dt, err)
	}
	return container, nil
}

// Dump parses data and renders it as a JSON document.
func (c *Codec) Dump(dt datatype.DataType, data []byte) ([]byte, error) {
	container, err := c.Parse(dt, data)
	if err != nil {
		return nil, err
	}
	return export.Export(container)
}

// Build writes the records of doc into the container base.
func (c *Codec) Build(dt datatype.DataType, base, doc []byte) ([]byte, error) {
	container, err := c.Parse(dt, base)
	if err != nil {
		return nil, err
	}

	imported, err := export.Import(c.Registry, container, doc)
	if err != nil {
		return nil, err
	}

	out, err := c.serializer.Serialize(dt, imported)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", dt, err)
	}

	if c.VerifyRoundTrip {
		report, err := c.Verify(dt, out)
		if err != nil {
			return nil, err
		}
		if !report.Identical {
			return nil, fmt.Errorf("build %s: %w", dt, ErrUnstable)
		}
	}

	return out, nil
}

// Report describes the result of writing a container back unmodified.
type Report struct {
	Identical bool `json:"identical"`
	Size      int  `json:"size"`
	Records   int  `json:"records"`
}

// Verify parses data and serializes it again without changes.
func (c *Codec) Verify(dt datatype.DataType, data []byte) (Report, error) {
	container, err := c.Parse(dt, data)
	if err != nil {
		return Report{}, err
	}

	out, err := c.serializer.Serialize(dt, container)
	if err != nil {
		return Report{}, fmt.Errorf("serialize %s: %w", dt, err)
	}

	report := Report{Identical: bytes.Equal(data, out), Size: len(out)}
	for _, records := range container.Tables {
		report.Records += len(records)
	}
	log.Debugf("Verified %s: %d records, %d bytes, identical=%v", dt, report.Records, report.Size, report.Identical)

	return report, nil
}
