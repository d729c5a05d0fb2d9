// Package layout records where each data type keeps its record arrays
// inside a container.
package layout

import (
	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
)

type Strategy int

const (
	// Empty files carry no tables.
	Empty Strategy = iota
	// Flat files hold one array at the start of .data.
	Flat
	// SymbolTables files hold one or more arrays, each addressed by a
	// named symbol, behind the child arrays they own.
	SymbolTables
	// HeaderLinked files hold a single header record that names its
	// child array through a symbol field.
	HeaderLinked
	// ModelTree files hold models in .data and their nested asset and
	// state arrays in .rodata.
	ModelTree
)

var strategyNames = [...]string{"empty", "flat", "symbol tables", "header linked", "model tree"}

func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return "unknown"
}

const (
	MainDivision = "main"

	BattleDataSymbol  = "wld::btl::data::s_Data"
	MaplinkSymbol     = "wld::fld::data::maplink::s_mapLink"
	BattleSoundSymbol = "snd::data::s_battleDataList"

	UiModelSymbol = "ui::data::s_model"
	UiMsgSymbol   = "ui::data::s_msg"
	UiShopSymbol  = "ui::data::s_shop"
	UiMenuSymbol  = "ui::data::s_menu"
)

// Table is one record array addressed by a named symbol.
type Table struct {
	Division string
	Symbol   string
	Type     datatype.DataType

	// Padding is the number of zero records following the array.
	Padding int

	// Skip and ChildSkip opt the table and its child arrays into
	// skip-tolerant relocation cursors. Arrays decoded without it share
	// one strict cursor per section.
	Skip      bool
	ChildSkip bool
}

type Layout struct {
	Type     datatype.DataType
	Strategy Strategy
	Tables   []Table

	// ChildDivision names the container table that aliases the header's
	// child records (HeaderLinked only).
	ChildDivision string

	// ChildName returns the name the header's child array symbol is given
	// on serialization. Empty keeps the current name.
	ChildName func(header *record.Record) string
}

var layouts = map[datatype.DataType]Layout{
	datatype.None: {Type: datatype.None, Strategy: Empty},

	datatype.ItemList: {
		Type:     datatype.ItemList,
		Strategy: SymbolTables,
		Tables: []Table{
			{Division: MainDivision, Symbol: BattleDataSymbol, Type: datatype.ItemList, Padding: 1, Skip: true},
		},
	},
	datatype.HeartParam: {
		Type:     datatype.HeartParam,
		Strategy: SymbolTables,
		Tables: []Table{
			{Division: MainDivision, Symbol: BattleDataSymbol, Type: datatype.HeartParam, Padding: 1, Skip: true},
		},
	},
	datatype.DataUi: {
		Type:     datatype.DataUi,
		Strategy: SymbolTables,
		Tables: []Table{
			{Division: "model", Symbol: UiModelSymbol, Type: datatype.UiModel, Padding: 1, Skip: true, ChildSkip: true},
			{Division: "msg", Symbol: UiMsgSymbol, Type: datatype.UiMsg, Padding: 1, Skip: true, ChildSkip: true},
			{Division: "shop", Symbol: UiShopSymbol, Type: datatype.UiShop, Padding: 1, Skip: true, ChildSkip: true},
			{Division: "menu", Symbol: UiMenuSymbol, Type: datatype.UiMenu, Padding: 1, Skip: true, ChildSkip: true},
		},
	},

	datatype.Maplink: {
		Type:     datatype.Maplink,
		Strategy: HeaderLinked,
		Tables: []Table{
			{Division: MainDivision, Symbol: MaplinkSymbol, Type: datatype.MaplinkHeader, Skip: true},
		},
		ChildDivision: "links",
		ChildName: func(header *record.Record) string {
			stage, ok := header.String("stage")
			if !ok {
				return ""
			}
			return MaplinkNodes(stage)
		},
	},
	datatype.SndBattle: {
		Type:     datatype.SndBattle,
		Strategy: HeaderLinked,
		Tables: []Table{
			{Division: MainDivision, Symbol: BattleSoundSymbol, Type: datatype.SndBattleHeader, Skip: true},
		},
		ChildDivision: "tracks",
	},

	datatype.DataNpcModel:    {Type: datatype.DataNpcModel, Strategy: ModelTree},
	datatype.DataItemModel:   {Type: datatype.DataItemModel, Strategy: ModelTree},
	datatype.DataGobjModel:   {Type: datatype.DataGobjModel, Strategy: ModelTree},
	datatype.DataMobjModel:   {Type: datatype.DataMobjModel, Strategy: ModelTree},
	datatype.DataPlayerModel: {Type: datatype.DataPlayerModel, Strategy: ModelTree},
}

// For returns the layout of a file type. Types without a dedicated entry
// are flat.
func For(dt datatype.DataType) Layout {
	if l, ok := layouts[dt]; ok {
		return l
	}
	return Layout{Type: dt, Strategy: Flat}
}

// Divisions lists the container tables a layout produces, in order.
func (l Layout) Divisions() []string {
	switch l.Strategy {
	case Empty:
		return nil
	case SymbolTables:
		out := make([]string, 0, len(l.Tables))
		for _, t := range l.Tables {
			out = append(out, t.Division)
		}
		return out
	case HeaderLinked:
		return []string{MainDivision, l.ChildDivision}
	}
	return []string{MainDivision}
}
