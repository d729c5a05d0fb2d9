package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf/elftest"
	"github.com/magicbird9803/Unsimplifier-master/pkg/layout"
	"github.com/magicbird9803/Unsimplifier-master/pkg/parser"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
)

type codec struct {
	reg *schema.Registry
	p   *parser.Parser
	s   *Serializer
}

func newCodec(t *testing.T) *codec {
	t.Helper()
	reg, err := schema.Load()
	require.NoError(t, err)
	return &codec{reg: reg, p: parser.New(reg), s: New(reg)}
}

func (c *codec) parse(t *testing.T, dt datatype.DataType, data []byte) *parser.Container {
	t.Helper()
	container, err := c.p.Parse(dt, data)
	require.NoError(t, err)
	return container
}

func (c *codec) serialize(t *testing.T, dt datatype.DataType, container *parser.Container) []byte {
	t.Helper()
	out, err := c.s.Serialize(dt, container)
	require.NoError(t, err)
	return out
}

// roundTrip parses data, writes it back and returns the output.
func (c *codec) roundTrip(t *testing.T, dt datatype.DataType, data []byte) []byte {
	t.Helper()
	return c.serialize(t, dt, c.parse(t, dt, data))
}

func TestExactRoundTrip(t *testing.T) {
	fixtures := map[datatype.DataType]*elftest.Builder{
		datatype.MapId:        elftest.MapIds(),
		datatype.ItemList:     elftest.ItemTables(),
		datatype.Maplink:      elftest.Maplinks(2),
		datatype.SndBattle:    elftest.BattleSounds(),
		datatype.DataNpcModel: elftest.NamedNpcModels(),
	}

	for dt, b := range fixtures {
		t.Run(dt.String(), func(t *testing.T) {
			c := newCodec(t)
			data := b.MustBytes()

			assert.Equal(t, data, c.roundTrip(t, dt, data))
		})
	}
}

func TestCountSymbolIsRewritten(t *testing.T) {
	c := newCodec(t)
	data := elftest.MapIds().
		Data(append(elftest.MapIdData(), 2, 0, 0, 0)).
		Object("wld::fld::data::kNum", ".data", 3*elftest.MapIdSize, 4, true).
		MustBytes()

	container := c.parse(t, datatype.MapId, data)
	container.Tables[layout.MainDivision] = container.Main()[:1]

	out := c.serialize(t, datatype.MapId, container)

	file, err := elf.Parse(out)
	require.NoError(t, err)

	_, sym := file.FindSymbol("wld::fld::data::kNum")
	require.NotNil(t, sym)
	assert.Equal(t, uint64(2*elftest.MapIdSize), sym.StValue)

	content := file.Section(".data").Content
	require.Len(t, content, 2*elftest.MapIdSize+4)
	assert.Equal(t, []byte{1, 0, 0, 0}, content[2*elftest.MapIdSize:])
	assert.Equal(t, []byte{1, 0, 0, 0}, file.Section(".rodata").Content)

	reparsed := c.parse(t, datatype.MapId, out)
	require.Len(t, reparsed.Main(), 1)
	assert.Equal(t, "gor_01", reparsed.Main()[0].Get("id"))
}

func TestSerializeIsPure(t *testing.T) {
	c := newCodec(t)
	container := c.parse(t, datatype.Maplink, elftest.Maplinks(2).MustBytes())

	header := container.Main()[0]
	require.NoError(t, header.Set("stage", "mac_02"))
	symbols := len(container.File.Symbols)
	data := append([]byte(nil), container.File.Section(".data").Content...)

	c.serialize(t, datatype.Maplink, container)

	assert.Equal(t, "wld::fld::data::maplink::mac_01_nodes", header.Children("maplinks").Symbol)
	assert.Len(t, container.File.Symbols, symbols)
	assert.Equal(t, data, container.File.Section(".data").Content)
	assert.Same(t, header.Children("maplinks").Records[0], container.Tables["links"][0])
}

func TestMaplinkEdits(t *testing.T) {
	c := newCodec(t)
	container := c.parse(t, datatype.Maplink, elftest.Maplinks(2).MustBytes())

	header := container.Main()[0]
	require.NoError(t, header.Set("stage", "mac_02"))

	nodes := header.Children("maplinks")
	added := nodes.Records[1].Clone()
	require.NoError(t, added.Set("id", "link_c"))
	nodes.Records = append(nodes.Records, added)

	out := c.serialize(t, datatype.Maplink, container)
	reparsed := c.parse(t, datatype.Maplink, out)

	header = reparsed.Main()[0]
	assert.Equal(t, "mac_02", header.Get("stage"))
	assert.Equal(t, int32(3), header.Get("linkAmount"))

	nodes = header.Children("maplinks")
	require.NotNil(t, nodes)
	assert.Equal(t, layout.MaplinkNodes("mac_02"), nodes.Symbol)

	links := reparsed.Tables["links"]
	require.Len(t, links, 3)
	assert.Equal(t, "link_c", links[2].Get("id"))

	_, old := reparsed.File.FindSymbol("wld::fld::data::maplink::mac_01_nodes")
	assert.Nil(t, old)
}

func TestBattleTracksKeepTheirSymbol(t *testing.T) {
	c := newCodec(t)
	container := c.parse(t, datatype.SndBattle, elftest.BattleSounds().MustBytes())

	header := container.Main()[0]
	tracks := header.Children("battletracks")
	require.NotNil(t, tracks)
	tracks.Records = tracks.Records[:1]

	out := c.serialize(t, datatype.SndBattle, container)
	reparsed := c.parse(t, datatype.SndBattle, out)

	header = reparsed.Main()[0]
	assert.Equal(t, int32(1), header.Get("trackAmount"))
	assert.Equal(t, int32(7), header.Get("field_0xc"))
	assert.Equal(t, "snd::data::btl_tracks", header.Children("battletracks").Symbol)

	_, sym := reparsed.File.FindSymbol("snd::data::btl_tracks")
	require.NotNil(t, sym)
	assert.Equal(t, uint64(2*elftest.SndBattleSize), sym.StSize)

	require.Len(t, reparsed.Tables["tracks"], 1)
	assert.Equal(t, "BGM_BTL1", reparsed.Tables["tracks"][0].Get("bgmName"))
}

func TestItemTableEdits(t *testing.T) {
	c := newCodec(t)
	container := c.parse(t, datatype.ItemList, elftest.ItemTables().MustBytes())
	sch, err := c.reg.Get(datatype.ItemList)
	require.NoError(t, err)
	itemSchema, err := c.reg.Get(datatype.ListItem)
	require.NoError(t, err)

	item := record.New(itemSchema)
	require.NoError(t, item.Set("type", "Coin"))
	require.NoError(t, item.Set("holdWeight", int32(9)))

	table := record.New(sch)
	require.NoError(t, table.Set("id", "c"))
	require.NoError(t, table.Set("items", &record.Children{Records: []*record.Record{item}}))
	container.Tables[layout.MainDivision] = append(container.Main(), table)

	out := c.serialize(t, datatype.ItemList, container)
	reparsed := c.parse(t, datatype.ItemList, out)

	tables := reparsed.Main()
	require.Len(t, tables, 3)
	items := tables[2].Children("items")
	require.NotNil(t, items)
	assert.Equal(t, layout.BattleDataSymbol+"::2::items", items.Symbol)
	require.Len(t, items.Records, 1)
	assert.Equal(t, "Coin", items.Records[0].Get("type"))
	assert.Equal(t, int32(9), items.Records[0].Get("holdWeight"))

	assert.Equal(t, out, c.roundTrip(t, datatype.ItemList, out))
}

func TestModelTree(t *testing.T) {
	c := newCodec(t)
	data := elftest.NpcModels().MustBytes()

	first := c.roundTrip(t, datatype.DataNpcModel, data)
	second := c.roundTrip(t, datatype.DataNpcModel, first)
	assert.Equal(t, first, second)

	in, err := elf.Parse(data)
	require.NoError(t, err)
	out, err := elf.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, in.Section(".rodata").Content, out.Section(".rodata").Content)
	assert.Equal(t, in.Section(".data").Content, out.Section(".data").Content)

	sizes := map[string]uint64{
		layout.ModelFiles("P_KNP"):     80,
		layout.States("P_KNP"):         48,
		layout.FaceGroups("P_KNP", 0):  48,
		layout.Faces("P_KNP", 0, 0):    48,
		layout.Animations("P_KNP", 0):  32,
		"wld::fld::data::modelNpc_num": 8,
	}
	for name, size := range sizes {
		_, sym := out.FindSymbol(name)
		require.NotNilf(t, sym, "%s", name)
		assert.Equalf(t, size, sym.StSize, "%s", name)
	}
}

func TestModelTreeWithoutCountSymbol(t *testing.T) {
	c := newCodec(t)
	container := c.parse(t, datatype.DataItemModel, elftest.NpcModels().MustBytes())

	out := c.serialize(t, datatype.DataItemModel, container)

	file, err := elf.Parse(out)
	require.NoError(t, err)
	_, sym := file.FindSymbol("wld::fld::data::modelItem_num")
	require.NotNil(t, sym)
	assert.Equal(t, uint64(8), sym.StSize)
	assert.Equal(t, byte(elf.STB_LOCAL), sym.GetBinding())

	reparsed := c.parse(t, datatype.DataItemModel, out)
	require.Len(t, reparsed.Main(), 1)
	assert.Equal(t, "P_KNP", reparsed.Main()[0].Get("id"))
}

func TestSerializeEmptyFile(t *testing.T) {
	c := newCodec(t)
	container := c.parse(t, datatype.MapId, elftest.MapIds().MustBytes())
	container.File.Sections = container.File.Sections[:1]

	_, err := c.s.Serialize(datatype.MapId, container)

	var empty *elf.EmptyFileError
	require.ErrorAs(t, err, &empty)
}

func TestWriteRejectsMistypedValues(t *testing.T) {
	c := newCodec(t)
	container := c.parse(t, datatype.MapId, elftest.MapIds().MustBytes())
	container.Main()[0].SetValue(container.Main()[0].Schema.FieldIndex("linkNumber"), "one")

	_, err := c.s.Serialize(datatype.MapId, container)

	var formatErr *elf.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "linkNumber", formatErr.Field)
	assert.Equal(t, uint64(0x60), formatErr.Offset)
}
