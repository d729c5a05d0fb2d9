// Package datatype enumerates every record layout the codec knows.
package datatype

import (
	"errors"
	"fmt"
	"strings"
)

type DataType uint8

const (
	None DataType = iota

	// map placement files (data_dispos_*)
	Npc
	Item
	Mobj
	Aobj
	Bshape
	Effect
	Gobj

	DataEffect
	ResourceGobj
	CharacterNpc
	CharacterMobj
	CharacterParty
	CharacterItem
	CharacterAobj

	MapId
	ItemList
	HeartParam
	Maplink
	SndBattle
	DataMaplinkZoom

	DataNpcModel
	DataItemModel
	DataGobjModel
	DataMobjModel
	DataPlayerModel

	DataUi

	// TypeAmount separates file types from the sub types below, which
	// only appear nested inside another file.
	TypeAmount

	ListItem
	HeartItem
	MaplinkHeader
	SndBattleHeader
	ModelBase
	ModelAssetGroup
	ModelState
	ModelFaceGroup
	ModelFace
	ModelAnimation
	UiModel
	UiModelProperty
	UiMsg
	UiShop
	UiSellItem
	UiMenu

	typeEnd
)

var ErrUnknownType = errors.New("unknown data type")

var names = [...]string{
	None:            "None",
	Npc:             "Npc",
	Item:            "Item",
	Mobj:            "Mobj",
	Aobj:            "Aobj",
	Bshape:          "Bshape",
	Effect:          "Effect",
	Gobj:            "Gobj",
	DataEffect:      "DataEffect",
	ResourceGobj:    "ResourceGobj",
	CharacterNpc:    "CharacterNpc",
	CharacterMobj:   "CharacterMobj",
	CharacterParty:  "CharacterParty",
	CharacterItem:   "CharacterItem",
	CharacterAobj:   "CharacterAobj",
	MapId:           "MapId",
	ItemList:        "ItemList",
	HeartParam:      "HeartParam",
	Maplink:         "Maplink",
	SndBattle:       "SndBattle",
	DataMaplinkZoom: "DataMaplinkZoom",
	DataNpcModel:    "DataNpcModel",
	DataItemModel:   "DataItemModel",
	DataGobjModel:   "DataGobjModel",
	DataMobjModel:   "DataMobjModel",
	DataPlayerModel: "DataPlayerModel",
	DataUi:          "DataUi",
	TypeAmount:      "TypeAmount",
	ListItem:        "ListItem",
	HeartItem:       "HeartItem",
	MaplinkHeader:   "MaplinkHeader",
	SndBattleHeader: "SndBattleHeader",
	ModelBase:       "ModelBase",
	ModelAssetGroup: "ModelAssetGroup",
	ModelState:      "ModelState",
	ModelFaceGroup:  "ModelFaceGroup",
	ModelFace:       "ModelFace",
	ModelAnimation:  "ModelAnimation",
	UiModel:         "UiModel",
	UiModelProperty: "UiModelProperty",
	UiMsg:           "UiMsg",
	UiShop:          "UiShop",
	UiSellItem:      "UiSellItem",
	UiMenu:          "UiMenu",
}

func (dt DataType) String() string {
	if dt < typeEnd {
		return names[dt]
	}
	return fmt.Sprintf("DataType(%d)", uint8(dt))
}

func (dt DataType) Valid() bool {
	return dt < typeEnd && dt != TypeAmount
}

// IsFileType reports whether dt describes a whole file rather than a
// nested record.
func (dt DataType) IsFileType() bool {
	return dt < TypeAmount
}

// IsModel reports whether dt is one of the data_*_model files.
func (dt DataType) IsModel() bool {
	return dt >= DataNpcModel && dt <= DataPlayerModel
}

// Parse resolves a type name case-insensitively.
func Parse(name string) (DataType, error) {
	for dt := None; dt < typeEnd; dt++ {
		if dt != TypeAmount && strings.EqualFold(names[dt], name) {
			return dt, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

func (dt DataType) MarshalText() ([]byte, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(dt))
	}
	return []byte(dt.String()), nil
}

func (dt *DataType) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// FileTypes lists every type that can be opened as a file.
func FileTypes() []DataType {
	out := make([]DataType, 0, int(TypeAmount))
	for dt := None; dt < TypeAmount; dt++ {
		out = append(out, dt)
	}
	return out
}

// All lists every valid type.
func All() []DataType {
	out := make([]DataType, 0, int(typeEnd)-1)
	for dt := None; dt < typeEnd; dt++ {
		if dt.Valid() {
			out = append(out, dt)
		}
	}
	return out
}
