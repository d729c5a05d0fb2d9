package schema

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
)

func load(t *testing.T) *Registry {
	t.Helper()
	reg, err := Load()
	require.NoError(t, err)
	return reg
}

func TestEveryTypeRegistered(t *testing.T) {
	reg := load(t)

	for _, dt := range datatype.All() {
		if dt == datatype.None || dt == datatype.DataUi {
			continue
		}
		_, ok := reg.Lookup(dt)
		assert.Truef(t, ok, "no schema for %s", dt)
	}

	_, err := reg.Get(datatype.DataUi)
	assert.ErrorIs(t, err, ErrNoSchema)
}

func TestSchemaSizeInvariant(t *testing.T) {
	reg := load(t)

	for _, dt := range reg.Types() {
		s, _ := reg.Lookup(dt)

		sum := 0
		for i, f := range s.Fields {
			width, ok := f.Type.Width()
			require.Truef(t, ok, "%s.%s", dt, f.Name)
			assert.Equalf(t, sum, f.Offset, "%s.%s offset", dt, f.Name)

			at, idx, ok := s.FieldAt(f.Offset)
			require.True(t, ok)
			assert.Equal(t, i, idx)
			assert.Equal(t, f.Name, at.Name)

			sum += width
		}
		assert.Equalf(t, sum, s.Size, "%s size", dt)
	}
}

func TestKnownSizes(t *testing.T) {
	reg := load(t)

	sizes := map[datatype.DataType]int{
		datatype.ItemList:        16,
		datatype.ListItem:        16,
		datatype.HeartItem:       16,
		datatype.MaplinkHeader:   48,
		datatype.ModelBase:       56,
		datatype.ModelAssetGroup: 40,
		datatype.ModelState:      24,
		datatype.ModelFaceGroup:  24,
		datatype.ModelFace:       24,
		datatype.ModelAnimation:  16,
		datatype.UiModel:         40,
		datatype.UiShop:          24,
		datatype.UiSellItem:      0x70,
	}
	for dt, size := range sizes {
		assert.Equalf(t, size, mustSchema(t, reg, dt).Size, "%s", dt)
	}

	npc := mustSchema(t, reg, datatype.Npc)
	field, ok := npc.Field("field_0x28")
	require.True(t, ok)
	assert.Equal(t, 0x28, field.Offset)
}

func mustSchema(t *testing.T, reg *Registry, dt datatype.DataType) *Schema {
	t.Helper()
	s, err := reg.Get(dt)
	require.NoError(t, err)
	return s
}

func TestParentMerge(t *testing.T) {
	reg := load(t)

	base := mustSchema(t, reg, datatype.ModelBase)
	npcModel := mustSchema(t, reg, datatype.DataNpcModel)

	assert.Equal(t, datatype.ModelBase, npcModel.Parent)
	assert.Equal(t, base.Size, npcModel.Size)
	assert.Equal(t, base.Children, npcModel.Children)
	assert.Equal(t, "NPC Model", npcModel.DisplayName)
	assert.Equal(t, "wld::fld::data::modelNpc_num", npcModel.CountSymbol)
	assert.Contains(t, npcModel.Fields[1].Description, "asset groups of this Model")

	mobj := mustSchema(t, reg, datatype.Mobj)
	aobj := mustSchema(t, reg, datatype.Aobj)
	assert.Equal(t, mobj.Size, aobj.Size)
	assert.Equal(t, "Aobj", aobj.DisplayName)
}

func TestDescriptionTemplates(t *testing.T) {
	reg := load(t)

	id, _ := mustSchema(t, reg, datatype.Npc).Field("id")
	assert.Equal(t, "The unique ID of the NPC, which can be used to identify it.", id.Description)

	typ, _ := mustSchema(t, reg, datatype.Npc).Field("type")
	assert.Contains(t, typ.Description, "data_npc.elf")

	model, _ := mustSchema(t, reg, datatype.CharacterNpc).Field("model")
	assert.Equal(t, "Referencing models in 'data/model/data_model_npc.elf.zst'", model.Description)
}

func TestChildRelations(t *testing.T) {
	reg := load(t)

	header := mustSchema(t, reg, datatype.MaplinkHeader)
	child, ok := header.Child("maplinks")
	require.True(t, ok)
	assert.Equal(t, datatype.Maplink, child.Type)
	assert.Equal(t, "linkAmount", child.CountField)

	byCount, ok := header.CountFor("linkAmount")
	require.True(t, ok)
	assert.Equal(t, child, byCount)

	assert.Equal(t, "stage", header.IdentifyingField)
	assert.Equal(t, 1, mustSchema(t, reg, datatype.MapId).DefaultPadding)
}

func TestConfigurationErrors(t *testing.T) {
	cases := map[string]string{
		"unknown primitive": `
types:
  - name: ListItem
    fields:
      - {name: a, type: quad}
`,
		"unknown type": `
types:
  - name: NotAType
    fields:
      - {name: a, type: int}
`,
		"parent chain": `
types:
  - name: Mobj
    fields:
      - {name: a, type: int}
  - name: Aobj
    parent: Mobj
  - name: CharacterAobj
    parent: Aobj
`,
		"bad child field": `
types:
  - name: ListItem
    fields:
      - {name: a, type: int}
  - name: ItemList
    children:
      - {field: a, type: ListItem}
    fields:
      - {name: a, type: int}
`,
		"bad count field": `
types:
  - name: ListItem
    fields:
      - {name: a, type: int}
  - name: ItemList
    children:
      - {field: items, type: ListItem, count: name}
    fields:
      - {name: name, type: string}
      - {name: items, type: symbol}
`,
		"duplicate field": `
types:
  - name: ListItem
    fields:
      - {name: a, type: int}
      - {name: a, type: int}
`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFS(fstest.MapFS{"types.yaml": {Data: []byte(doc)}})

			var cfgErr *ConfigurationError
			assert.Truef(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestChildOverridesParent(t *testing.T) {
	doc := `
types:
  - name: Mobj
    displayName: Mobj
    defaultPadding: 2
    fields:
      - {name: a, type: int}
      - {name: b, type: int}
  - name: Aobj
    parent: Mobj
    fields:
      - {name: a, type: long}
      - {name: c, type: byte}
`
	reg, err := LoadFS(fstest.MapFS{"types.yaml": {Data: []byte(doc)}})
	require.NoError(t, err)

	aobj := mustSchema(t, reg, datatype.Aobj)
	names := []string{}
	for _, f := range aobj.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
	assert.Equal(t, Long, aobj.Fields[0].Type)
	assert.Equal(t, 8+4+1, aobj.Size)
	assert.Equal(t, 2, aobj.DefaultPadding)
	assert.Equal(t, "Mobj", aobj.DisplayName)
}
