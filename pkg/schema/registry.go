package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
)

//go:embed catalog/*.yaml
var catalogFS embed.FS

type catalogFile struct {
	Descriptions map[string]string `yaml:"descriptions"`
	Types        []typeDef         `yaml:"types"`
}

type typeDef struct {
	Name             string            `yaml:"name"`
	DisplayName      string            `yaml:"displayName"`
	IdentifyingField string            `yaml:"identifyingField"`
	Parent           string            `yaml:"parent"`
	CountSymbol      string            `yaml:"countSymbol"`
	DefaultPadding   *int              `yaml:"defaultPadding"`
	TextVars         map[string]string `yaml:"textVars"`
	Children         []childDef        `yaml:"children"`
	Fields           []fieldDef        `yaml:"fields"`
}

type childDef struct {
	Field string `yaml:"field"`
	Type  string `yaml:"type"`
	Count string `yaml:"count"`
}

type fieldDef struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Hidden      bool   `yaml:"hidden"`
	Tab         string `yaml:"tab"`
}

// Registry holds one schema per data type. It is immutable once built and
// safe for concurrent readers.
type Registry struct {
	schemas map[datatype.DataType]*Schema
}

// Load builds the registry from the embedded catalogs.
func Load() (*Registry, error) {
	sub, err := fs.Sub(catalogFS, "catalog")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// LoadFS builds a registry from every *.yaml file at the root of fsys.
func LoadFS(fsys fs.FS) (*Registry, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	descriptions := map[string]string{}
	defs := map[datatype.DataType]typeDef{}
	order := []datatype.DataType{}

	for _, name := range files {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}

		var catalog catalogFile
		if err := yaml.Unmarshal(raw, &catalog); err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("%s: %v", path.Base(name), err)}
		}

		for field, text := range catalog.Descriptions {
			descriptions[field] = text
		}

		for _, def := range catalog.Types {
			dt, err := datatype.Parse(def.Name)
			if err != nil {
				return nil, &ConfigurationError{Type: def.Name, Reason: "unknown data type"}
			}
			if _, dup := defs[dt]; dup {
				return nil, &ConfigurationError{Type: def.Name, Reason: "declared twice"}
			}
			defs[dt] = def
			order = append(order, dt)
		}
	}

	reg := &Registry{schemas: make(map[datatype.DataType]*Schema, len(defs))}

	for _, dt := range order {
		s, err := build(dt, defs, descriptions)
		if err != nil {
			return nil, err
		}
		reg.schemas[dt] = s
	}

	if err := reg.validate(); err != nil {
		return nil, err
	}

	return reg, nil
}

// build composes a type with its parent. Parent fields come first; a
// redeclared field replaces the parent's in place and new fields are
// appended. Unset metadata is inherited.
func build(dt datatype.DataType, defs map[datatype.DataType]typeDef, descriptions map[string]string) (*Schema, error) {
	def := defs[dt]
	fields := def.Fields
	children := def.Children

	s := &Schema{Type: dt}

	if def.Parent != "" {
		parentType, err := datatype.Parse(def.Parent)
		if err != nil {
			return nil, &ConfigurationError{Type: def.Name, Reason: fmt.Sprintf("unknown parent %q", def.Parent)}
		}
		parent, ok := defs[parentType]
		if !ok {
			return nil, &ConfigurationError{Type: def.Name, Reason: fmt.Sprintf("parent %q has no catalog entry", def.Parent)}
		}
		if parent.Parent != "" {
			return nil, &ConfigurationError{Type: def.Name, Reason: fmt.Sprintf("parent %q has a parent itself", def.Parent)}
		}

		s.Parent = parentType
		fields = overlay(parent.Fields, def.Fields, func(f fieldDef) string { return f.Name })
		children = overlay(parent.Children, def.Children, func(c childDef) string { return c.Field })
		def = inherit(parent, def)
	}

	s.DisplayName = def.DisplayName
	s.IdentifyingField = def.IdentifyingField
	s.CountSymbol = def.CountSymbol
	s.TextVars = def.TextVars
	if def.DefaultPadding != nil {
		s.DefaultPadding = *def.DefaultPadding
	}

	vars := map[string]string{
		"type":           s.DisplayName,
		"type_lowercase": strings.ToLower(s.DisplayName),
	}
	for k, v := range s.TextVars {
		vars[k] = v
	}

	seen := map[string]bool{}
	offset := 0
	for _, f := range fields {
		if seen[f.Name] {
			return nil, &ConfigurationError{Type: def.Name, Field: f.Name, Reason: "declared twice"}
		}
		seen[f.Name] = true

		typ := Primitive(f.Type)
		width, ok := typ.Width()
		if !ok {
			return nil, &ConfigurationError{Type: def.Name, Field: f.Name, Reason: fmt.Sprintf("unknown primitive type %q", f.Type)}
		}

		description := f.Description
		if description == "" {
			description = descriptions[f.Name]
		}
		for k, v := range vars {
			description = strings.ReplaceAll(description, "{"+k+"}", v)
		}

		s.Fields = append(s.Fields, Field{
			Name:        f.Name,
			Type:        typ,
			Offset:      offset,
			Description: strings.TrimSpace(description),
			Hidden:      f.Hidden,
			TabName:     f.Tab,
		})
		offset += width
	}

	s.Size = offset
	s.index()

	if s.IdentifyingField == "" {
		if _, ok := s.Field("id"); ok {
			s.IdentifyingField = "id"
		}
	} else if _, ok := s.Field(s.IdentifyingField); !ok {
		return nil, &ConfigurationError{Type: def.Name, Field: s.IdentifyingField, Reason: "identifying field does not exist"}
	}

	for _, c := range children {
		childType, err := datatype.Parse(c.Type)
		if err != nil {
			return nil, &ConfigurationError{Type: def.Name, Field: c.Field, Reason: fmt.Sprintf("unknown child type %q", c.Type)}
		}
		s.Children = append(s.Children, Child{Field: c.Field, Type: childType, CountField: c.Count})
	}

	return s, nil
}

func overlay[T any](base, top []T, key func(T) string) []T {
	out := append([]T(nil), base...)
	pos := map[string]int{}
	for i, v := range out {
		pos[key(v)] = i
	}
	for _, v := range top {
		if i, ok := pos[key(v)]; ok {
			out[i] = v
			continue
		}
		pos[key(v)] = len(out)
		out = append(out, v)
	}
	return out
}

func inherit(parent, def typeDef) typeDef {
	if def.DisplayName == "" {
		def.DisplayName = parent.DisplayName
	}
	if def.IdentifyingField == "" {
		def.IdentifyingField = parent.IdentifyingField
	}
	if def.CountSymbol == "" {
		def.CountSymbol = parent.CountSymbol
	}
	if def.DefaultPadding == nil {
		def.DefaultPadding = parent.DefaultPadding
	}
	if def.TextVars == nil {
		def.TextVars = parent.TextVars
	}
	return def
}

func (r *Registry) validate() error {
	for _, s := range r.schemas {
		for _, c := range s.Children {
			f, ok := s.Field(c.Field)
			if !ok {
				return &ConfigurationError{Type: s.Type.String(), Field: c.Field, Reason: "child field does not exist"}
			}
			if f.Type != Symbol && f.Type != SymbolAddr {
				return &ConfigurationError{Type: s.Type.String(), Field: c.Field, Reason: "child field must be symbol or symbolAddr"}
			}
			if _, ok := r.schemas[c.Type]; !ok {
				return &ConfigurationError{Type: s.Type.String(), Field: c.Field, Reason: fmt.Sprintf("child type %s has no schema", c.Type)}
			}
			if c.CountField != "" {
				count, ok := s.Field(c.CountField)
				if !ok || !count.Type.IsInteger() {
					return &ConfigurationError{Type: s.Type.String(), Field: c.CountField, Reason: "count field must be an existing integer field"}
				}
			}
		}
	}
	return nil
}

// Lookup returns the schema for dt.
func (r *Registry) Lookup(dt datatype.DataType) (*Schema, bool) {
	s, ok := r.schemas[dt]
	return s, ok
}

// Get is Lookup with an error naming the missing type.
func (r *Registry) Get(dt datatype.DataType) (*Schema, error) {
	s, ok := r.schemas[dt]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoSchema, dt)
	}
	return s, nil
}

// Types lists the registered types in enumeration order.
func (r *Registry) Types() []datatype.DataType {
	out := make([]datatype.DataType, 0, len(r.schemas))
	for dt := range r.schemas {
		out = append(out, dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
