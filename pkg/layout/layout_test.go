package layout

import (
	"testing"

	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategies(t *testing.T) {
	cases := map[datatype.DataType]Strategy{
		datatype.None:          Empty,
		datatype.Npc:           Flat,
		datatype.MapId:         Flat,
		datatype.ItemList:      SymbolTables,
		datatype.DataUi:        SymbolTables,
		datatype.Maplink:       HeaderLinked,
		datatype.SndBattle:     HeaderLinked,
		datatype.DataNpcModel:  ModelTree,
		datatype.DataMobjModel: ModelTree,
	}
	for dt, want := range cases {
		assert.Equalf(t, want, For(dt).Strategy, "%s", dt)
	}
}

func TestEveryTableTypeHasSchema(t *testing.T) {
	reg, err := schema.Load()
	require.NoError(t, err)

	for _, dt := range datatype.FileTypes() {
		for _, table := range For(dt).Tables {
			_, ok := reg.Lookup(table.Type)
			assert.Truef(t, ok, "%s table %s", dt, table.Division)
		}
	}
}

func TestDivisions(t *testing.T) {
	assert.Empty(t, For(datatype.None).Divisions())
	assert.Equal(t, []string{"main"}, For(datatype.Npc).Divisions())
	assert.Equal(t, []string{"main", "links"}, For(datatype.Maplink).Divisions())
	assert.Equal(t, []string{"model", "msg", "shop", "menu"}, For(datatype.DataUi).Divisions())
}

func TestModelNames(t *testing.T) {
	assert.Equal(t, "wld::fld::data::^P_KNP_model_files", ModelFiles("P_KNP"))
	assert.Equal(t, "wld::fld::data::^P_KNP_state", States("P_KNP"))
	assert.Equal(t, "wld::fld::data::^P_KNP_state2", FaceGroups("P_KNP", 2))
	assert.Equal(t, "wld::fld::data::^P_KNP_state2_face0", Faces("P_KNP", 2, 0))
	assert.Equal(t, "wld::fld::data::^P_KNP_anime7", Animations("P_KNP", 7))
}

func TestMaplinkChildName(t *testing.T) {
	reg, err := schema.Load()
	require.NoError(t, err)
	s, err := reg.Get(datatype.MaplinkHeader)
	require.NoError(t, err)

	header := record.New(s)
	name := For(datatype.Maplink).ChildName
	assert.Equal(t, "", name(header))

	require.NoError(t, header.Set("stage", "mac_01"))
	assert.Equal(t, "wld::fld::data::maplink::mac_01_nodes", name(header))
}
