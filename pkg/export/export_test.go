package export

import (
	"bytes"
	"math"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf/elftest"
	"github.com/magicbird9803/Unsimplifier-master/pkg/layout"
	"github.com/magicbird9803/Unsimplifier-master/pkg/parser"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
	"github.com/magicbird9803/Unsimplifier-master/pkg/serializer"
)

func load(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Load()
	require.NoError(t, err)
	return reg
}

func parse(t *testing.T, reg *schema.Registry, dt datatype.DataType, data []byte) *parser.Container {
	t.Helper()
	c, err := parser.New(reg).Parse(dt, data)
	require.NoError(t, err)
	return c
}

func TestDocumentRoundTrip(t *testing.T) {
	fixtures := map[datatype.DataType]*elftest.Builder{
		datatype.MapId:        elftest.MapIds(),
		datatype.ItemList:     elftest.ItemTables(),
		datatype.Maplink:      elftest.Maplinks(2),
		datatype.DataNpcModel: elftest.NpcModels(),
	}

	for dt, b := range fixtures {
		t.Run(dt.String(), func(t *testing.T) {
			reg := load(t)
			base := parse(t, reg, dt, b.MustBytes())

			want, err := serializer.New(reg).Serialize(dt, base)
			require.NoError(t, err)

			doc, err := Export(base)
			require.NoError(t, err)

			imported, err := Import(reg, base, doc)
			require.NoError(t, err)

			got, err := serializer.New(reg).Serialize(dt, imported)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			again, err := Export(imported)
			require.NoError(t, err)
			assert.JSONEq(t, string(doc), string(again))
		})
	}
}

func TestFieldOrder(t *testing.T) {
	reg := load(t)
	doc, err := Export(parse(t, reg, datatype.MapId, elftest.MapIds().MustBytes()))
	require.NoError(t, err)

	id := bytes.Index(doc, []byte(`"$id"`))
	first := bytes.Index(doc, []byte(`"id"`))
	last := bytes.Index(doc, []byte(`"field_0x90"`))
	require.True(t, id >= 0 && first >= 0 && last >= 0)
	assert.Less(t, id, first)
	assert.Less(t, first, last)
}

func TestDocumentShape(t *testing.T) {
	reg := load(t)
	base := parse(t, reg, datatype.Maplink, elftest.Maplinks(2).MustBytes())

	doc, err := Export(base)
	require.NoError(t, err)

	var raw struct {
		Type   string `json:"type"`
		Tables map[string][]struct {
			ID       string `json:"$id"`
			Stage    string `json:"stage"`
			Maplinks struct {
				Symbol  string           `json:"symbol"`
				Records []map[string]any `json:"records"`
			} `json:"maplinks"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(doc, &raw))

	assert.Equal(t, "Maplink", raw.Type)
	assert.NotContains(t, raw.Tables, "links")
	require.Len(t, raw.Tables[layout.MainDivision], 1)

	header := raw.Tables[layout.MainDivision][0]
	assert.Equal(t, base.Main()[0].ID.String(), header.ID)
	assert.Equal(t, "mac_01", header.Stage)
	assert.Equal(t, layout.MaplinkNodes("mac_01"), header.Maplinks.Symbol)
	require.Len(t, header.Maplinks.Records, 2)
	assert.Equal(t, "link_b", header.Maplinks.Records[1]["id"])
}

func TestImportRelinksChildren(t *testing.T) {
	reg := load(t)
	base := parse(t, reg, datatype.Maplink, elftest.Maplinks(2).MustBytes())

	doc, err := Export(base)
	require.NoError(t, err)
	imported, err := Import(reg, base, doc)
	require.NoError(t, err)

	links := imported.Tables["links"]
	require.Len(t, links, 2)
	assert.Same(t, imported.Main()[0].Children("maplinks").Records[0], links[0])
	assert.Equal(t, base.Tables["links"][0].ID, links[0].ID)
}

func TestImportAddresses(t *testing.T) {
	reg := load(t)
	sch, err := reg.Get(datatype.ModelAnimation)
	require.NoError(t, err)

	r, err := decodeRecord(reg, sch, json.RawMessage(`{"description": "wait", "id": null}`))
	require.NoError(t, err)
	assert.Equal(t, "wait", r.Get("description"))
	assert.Nil(t, r.Get("id"))

	model, err := reg.Get(datatype.DataNpcModel)
	require.NoError(t, err)
	r, err = decodeRecord(reg, model, json.RawMessage(`{"states": {"section": ".rodata", "offset": 80}}`))
	require.NoError(t, err)
	assert.Equal(t, elf.Address{Section: ".rodata", Offset: 80}, r.Get("states"))
}

func TestImportErrors(t *testing.T) {
	reg := load(t)
	base := parse(t, reg, datatype.MapId, elftest.MapIds().MustBytes())

	cases := map[string]string{
		"syntax":         `{"type": "MapId", "tables": `,
		"type mismatch":  `{"type": "Npc", "tables": {}}`,
		"unknown type":   `{"type": "Nope", "tables": {}}`,
		"division":       `{"type": "MapId", "tables": {"links": []}}`,
		"field":          `{"type": "MapId", "tables": {"main": [{"colour": 1}]}}`,
		"value":          `{"type": "MapId", "tables": {"main": [{"linkNumber": "one"}]}}`,
		"null int":       `{"type": "MapId", "tables": {"main": [{"linkNumber": null}]}}`,
		"id":             `{"type": "MapId", "tables": {"main": [{"$id": "not-a-uuid"}]}}`,
		"string pointer": `{"type": "MapId", "tables": {"main": [{"id": {"section": ".data", "offset": 0}}]}}`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Import(reg, base, []byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestImportDefaults(t *testing.T) {
	reg := load(t)
	base := parse(t, reg, datatype.MapId, elftest.MapIds().MustBytes())

	imported, err := Import(reg, base, []byte(`{"type": "MapId", "tables": {"main": [{"id": "jon_00"}]}}`))
	require.NoError(t, err)

	require.Len(t, imported.Main(), 1)
	r := imported.Main()[0]
	assert.Equal(t, "jon_00", r.Get("id"))
	assert.Equal(t, record.Zero(schema.Int), r.Get("linkNumber"))
	assert.NotEqual(t, base.Main()[0].ID, r.ID)
	assert.NotSame(t, base.File, imported.File)
}

func TestNonFiniteFloats(t *testing.T) {
	reg := load(t)
	base := parse(t, reg, datatype.SndBattle, elftest.BattleSounds().MustBytes())

	nan := math.Float32frombits(0x7fc00001)
	track := base.Tables["tracks"][0]
	require.NoError(t, track.Set("volume", nan))
	require.NoError(t, track.Set("fadeOut", float32(math.Inf(-1))))

	want, err := serializer.New(reg).Serialize(datatype.SndBattle, base)
	require.NoError(t, err)

	doc, err := Export(base)
	require.NoError(t, err)
	assert.Contains(t, string(doc), `"0x7fc00001"`)
	assert.Contains(t, string(doc), `"0xff800000"`)

	imported, err := Import(reg, base, doc)
	require.NoError(t, err)

	volume, ok := imported.Tables["tracks"][0].Get("volume").(float32)
	require.True(t, ok)
	assert.Equal(t, uint32(0x7fc00001), math.Float32bits(volume))

	got, err := serializer.New(reg).Serialize(datatype.SndBattle, imported)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeFloatForms(t *testing.T) {
	v, err := decodeValue(nil, nil, schema.Field{Name: "pos", Type: schema.Vector3}, json.RawMessage(`{"x":1.5,"y":{"bits":"0x7f800000"},"z":-2}`))
	require.NoError(t, err)
	vec := v.(record.Vector3)
	assert.Equal(t, float32(1.5), vec.X)
	assert.True(t, math.IsInf(float64(vec.Y), 1))
	assert.Equal(t, float32(-2), vec.Z)

	v, err = decodeValue(nil, nil, schema.Field{Name: "d", Type: schema.Double}, json.RawMessage(`{"bits":"0x7ff8000000000001"}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x7ff8000000000001), math.Float64bits(v.(float64)))

	out, err := marshalValue(record.Vector3{X: float32(math.NaN())})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":{"bits":"0x7fc00000"},"y":0,"z":0}`, string(out))

	_, err = decodeValue(nil, nil, schema.Field{Name: "f", Type: schema.Float}, json.RawMessage(`{"bits":"0x1ffffffff"}`))
	assert.Error(t, err)
	_, err = decodeValue(nil, nil, schema.Field{Name: "f", Type: schema.Float}, json.RawMessage(`{"value":1}`))
	assert.Error(t, err)
}
