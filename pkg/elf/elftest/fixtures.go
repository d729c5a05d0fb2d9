package elftest

import (
	"github.com/magicbird9803/Unsimplifier-master/pkg/helpers"
)

// Record sizes of the fixture types.
const (
	MapIdSize         = 0x98
	ListItemSize      = 0x10
	ItemListSize      = 0x10
	MaplinkSize       = 0xc4
	MaplinkHeaderSize = 0x30
	ModelSize         = 0x38

	SndBattleSize       = 0x28
	SndBattleHeaderSize = 0x20
)

// MapIdData is the .data section of MapIds without relocations.
func MapIdData() []byte {
	w := helpers.NewWriter()
	for i := 1; i <= 2; i++ {
		w.Zero(0x40)
		w.U32(uint32(i * 10)) // field_0x40
		w.U32(0)
		w.Zero(0x18)
		w.U32(uint32(i)) // linkNumber
		w.Zero(MapIdSize - 0x64)
	}
	w.Zero(MapIdSize)
	return w.Bytes()
}

// MapIds is a map registry with two maps, a padding record and the map
// count in .rodata.
func MapIds() *Builder {
	return New().
		Data(MapIdData()).
		Rodata([]byte{2, 0, 0, 0}).
		StringReloc(".data", 0, "gor_01").
		StringReloc(".data", 0x30, "gor_01").
		StringReloc(".data", MapIdSize, "gor_02").
		StringReloc(".data", MapIdSize+0x18, "gor")
}

// ItemTables holds two item tables, "a" with one item and "b" with two,
// laid out children first.
func ItemTables() *Builder {
	w := helpers.NewWriter()
	item := func(hold, drop int32) {
		w.Zero(8)
		w.U32(uint32(hold))
		w.U32(uint32(drop))
	}

	item(3, 4)
	w.Zero(ListItemSize)
	item(5, 6)
	item(7, 8)
	w.Zero(ListItemSize)
	w.Zero(3 * ItemListSize)

	return New().
		Data(w.Bytes()).
		Object("items_a", ".data", 0, 2*ListItemSize, false).
		Object("items_b", ".data", 32, 3*ListItemSize, false).
		Object("wld::btl::data::s_Data", ".data", 80, 3*ItemListSize, true).
		StringReloc(".data", 80, "a").
		StringReloc(".data", 0, "Mushroom").
		StringReloc(".data", 96, "b").
		StringReloc(".data", 32, "Fire Flower").
		StringReloc(".data", 48, "Star").
		AddrReloc(".data", 88, "items_a").
		AddrReloc(".data", 104, "items_b")
}

// Maplinks holds a header for stage "mac_01" over two link records whose
// symbol has room for exactly two. linkAmount is written as given.
func Maplinks(linkAmount int32) *Builder {
	w := helpers.NewWriter()
	w.Zero(3 * MaplinkSize)

	header := w.Len()
	w.Zero(8)
	w.U32(uint32(linkAmount))
	w.U32(0)
	w.Zero(8)
	w.Zero(MaplinkHeaderSize - 0x18)

	return New().
		Data(w.Bytes()).
		Rodata([]byte{1, 0, 0, 0}).
		Object("wld::fld::data::maplink::mac_01_nodes", ".data", 0, 3*MaplinkSize, false).
		Object("wld::fld::data::maplink::s_mapLink", ".data", uint64(header), MaplinkHeaderSize, true).
		StringReloc(".data", 0, "mac_01").
		StringReloc(".data", 8, "link_a").
		StringReloc(".data", MaplinkSize, "mac_01").
		StringReloc(".data", MaplinkSize+8, "link_b").
		StringReloc(".data", uint64(header), "mac_01").
		SymbolReloc(".data", uint64(header)+0x10, "wld::fld::data::maplink::mac_01_nodes")
}

// BattleSounds holds one header "btl" over the two tracks in
// snd::data::btl_tracks.
func BattleSounds() *Builder {
	w := helpers.NewWriter()
	for i := 1; i <= 2; i++ {
		w.Zero(0x10)
		w.U32(uint32(i))
		w.U32(0)
		w.F32(0.5)
		w.F32(1)
		w.F32(float32(i) / 4)
		w.U32(0)
	}
	w.Zero(SndBattleSize)

	header := uint64(w.Len())
	w.Zero(8)
	w.U32(2) // trackAmount
	w.U32(7)
	w.Zero(8)
	w.Zero(SndBattleHeaderSize - 0x18)

	return New().
		Data(w.Bytes()).
		Rodata([]byte{1, 0, 0, 0}).
		Object("snd::data::btl_tracks", ".data", 0, 3*SndBattleSize, false).
		Object("snd::data::s_battleDataList", ".data", header, SndBattleHeaderSize, true).
		StringReloc(".data", 0, "btl_01").
		StringReloc(".data", 8, "BGM_BTL1").
		StringReloc(".data", SndBattleSize, "btl_02").
		StringReloc(".data", SndBattleSize+8, "BGM_BTL2").
		StringReloc(".data", header, "btl").
		SymbolReloc(".data", header+0x10, "snd::data::btl_tracks")
}

// NpcModels holds one model "P_KNP" with one asset group, one state, one
// face group, one face and one animation. The nested arrays carry no
// symbols of their own.
func NpcModels() *Builder {
	data := helpers.NewWriter()
	data.Zero(0x10)
	data.U32(1) // assetGroupCount
	data.U32(0)
	data.Zero(8)
	data.U32(1) // stateCount
	data.U32(0)
	data.F32(1)
	data.F32(2)
	data.F32(3)
	data.U32(0)
	data.Zero(ModelSize)

	rodata := helpers.NewWriter()
	rodata.Zero(80) // asset groups at 0
	rodata.Zero(16) // states at 80
	rodata.U32(1)   // substateCount
	rodata.U32(0)
	rodata.Zero(24)
	rodata.U64(1) // model count at 128
	rodata.Zero(16)
	rodata.U32(1) // faceCount, face groups at 136
	rodata.U32(0)
	rodata.Zero(24)
	rodata.Zero(16)
	rodata.U32(1) // animationCount, faces at 184
	rodata.U32(0)
	rodata.Zero(24)
	rodata.Zero(32) // animations at 232

	return New().
		Data(data.Bytes()).
		Rodata(rodata.Bytes()).
		Object("wld::fld::data::modelNpc_num", ".rodata", 128, 8, false).
		StringReloc(".data", 0, "P_KNP").
		RawReloc(".data", 0x08, ".rodata", 0).
		RawReloc(".data", 0x18, ".rodata", 80).
		StringReloc(".rodata", 0, "npc").
		StringReloc(".rodata", 8, "P_KNP").
		StringReloc(".rodata", 80, "normal").
		RawReloc(".rodata", 88, ".rodata", 136).
		RawReloc(".rodata", 144, ".rodata", 184).
		RawReloc(".rodata", 192, ".rodata", 232).
		StringReloc(".rodata", 232, "wait").
		StringReloc(".rodata", 240, "W_1")
}

// NamedNpcModels is NpcModels with every nested array already backed by
// its templated .rodata symbol.
func NamedNpcModels() *Builder {
	return NpcModels().
		Object("wld::fld::data::^P_KNP_model_files", ".rodata", 0, 80, false).
		Object("wld::fld::data::^P_KNP_state", ".rodata", 80, 48, false).
		Object("wld::fld::data::^P_KNP_state0", ".rodata", 136, 48, false).
		Object("wld::fld::data::^P_KNP_state0_face0", ".rodata", 184, 48, false).
		Object("wld::fld::data::^P_KNP_anime0", ".rodata", 232, 32, false)
}
