package serializer

import (
	"github.com/magicbird9803/Unsimplifier-master/pkg/layout"
	"github.com/magicbird9803/Unsimplifier-master/pkg/linker"
	"github.com/magicbird9803/Unsimplifier-master/pkg/record"
)

// modelTree writes models to .data and their trees to .rodata:
//
//	per model: AssetGroup[], State[]
//	model count (int64)
//	per model, per state: FaceGroup[]
//	per model, per state: Face[] per face group, then Animation[] per face
//
// Every array is followed by one padding record.
func (j *job) modelTree() error {
	sch, err := j.reg.Get(j.dt)
	if err != nil {
		return err
	}
	models := j.tables[layout.MainDivision]

	// Names are settled first so .data can point at the final symbols.
	keys := map[*record.Children]string{}
	for _, model := range models {
		if err := j.nameModel(model, keys); err != nil {
			return err
		}
	}

	if err := j.writeRecords(j.link.Unit(".data"), sch, models, sch.DefaultPadding); err != nil {
		return err
	}

	rodata := j.link.Unit(".rodata")
	for _, model := range models {
		if err := j.placeField(rodata, keys, model, "assetGroups"); err != nil {
			return err
		}
		if err := j.placeField(rodata, keys, model, "states"); err != nil {
			return err
		}

		// animation strings come before face group and face strings
		eachFace(model, func(_, _ int, face *record.Record) {
			if anims := face.Children("animations"); anims != nil {
				for _, anim := range anims.Records {
					j.pool(anim)
				}
			}
		})
	}

	_, existing := j.file.FindSymbol(sch.CountSymbol)
	key, err := j.link.Bind(sch.CountSymbol, "", ".rodata")
	if err != nil {
		return err
	}
	j.link.Place(key, rodata.Location())
	if existing == nil {
		j.link.Resize(key, 8)
	}
	rodata.U64(uint64(len(models)))

	for _, model := range models {
		states := model.Children("states")
		if states == nil {
			continue
		}

		for _, state := range states.Records {
			if err := j.placeField(rodata, keys, state, "substates"); err != nil {
				return err
			}
		}

		for _, state := range states.Records {
			groups := state.Children("substates")
			if groups == nil {
				continue
			}
			for _, group := range groups.Records {
				if err := j.placeField(rodata, keys, group, "faces"); err != nil {
					return err
				}
			}
			for _, group := range groups.Records {
				faces := group.Children("faces")
				if faces == nil {
					continue
				}
				for _, face := range faces.Records {
					if err := j.placeField(rodata, keys, face, "animations"); err != nil {
						return err
					}
				}
			}
		}
	}

	return nil
}

// nameModel binds every array of a model tree to its templated name.
func (j *job) nameModel(model *record.Record, keys map[*record.Children]string) error {
	id, _ := model.String("id")

	bind := func(c *record.Children, name string) error {
		if c == nil {
			return nil
		}
		key, err := j.link.Bind(c.Symbol, name, ".rodata")
		if err != nil {
			return err
		}
		keys[c] = key
		c.Symbol = name
		return nil
	}

	if err := bind(model.Children("assetGroups"), layout.ModelFiles(id)); err != nil {
		return err
	}
	if err := bind(model.Children("states"), layout.States(id)); err != nil {
		return err
	}

	states := model.Children("states")
	if states == nil {
		return nil
	}

	for i, state := range states.Records {
		if err := bind(state.Children("substates"), layout.FaceGroups(id, i)); err != nil {
			return err
		}
	}

	var err error
	animations := 0
	eachGroup(model, func(i, k int, group *record.Record) {
		if err != nil {
			return
		}
		err = bind(group.Children("faces"), layout.Faces(id, i, k))
	})
	if err != nil {
		return err
	}

	eachFace(model, func(_, _ int, face *record.Record) {
		anims := face.Children("animations")
		if err != nil || anims == nil {
			return
		}
		err = bind(anims, layout.Animations(id, animations))
		animations++
	})
	return err
}

// placeField places the array held in field of r.
func (j *job) placeField(unit *linker.Unit, keys map[*record.Children]string, r *record.Record, field string) error {
	c := r.Children(field)
	if c == nil {
		return nil
	}
	child, _ := r.Schema.Child(field)

	key, ok := keys[c]
	if !ok {
		key = c.Symbol
	}
	return j.place(unit, key, c, child.Type)
}

// eachGroup visits every face group of a model with its state index and
// its index inside the state.
func eachGroup(model *record.Record, fn func(state, group int, r *record.Record)) {
	states := model.Children("states")
	if states == nil {
		return
	}
	for i, state := range states.Records {
		groups := state.Children("substates")
		if groups == nil {
			continue
		}
		for k, group := range groups.Records {
			fn(i, k, group)
		}
	}
}

// eachFace visits every face of a model in state, face group order.
func eachFace(model *record.Record, fn func(state, group int, r *record.Record)) {
	eachGroup(model, func(i, k int, group *record.Record) {
		faces := group.Children("faces")
		if faces == nil {
			return
		}
		for _, face := range faces.Records {
			fn(i, k, face)
		}
	})
}
