package material

import "fmt"

// Instance pairs a compiled material with the resource shapes the
// application binds to it, validated against the layout once at
// construction. Frame recording trusts the instance: bind groups built for
// it are never re-validated per draw.
type Instance struct {
	material Material
	sets     [][]ProvidedBinding
}

// Material returns the compiled material the instance binds.
func (i *Instance) Material() Material { return i.material }

// Layout returns the material's interned layout description.
func (i *Instance) Layout() *LayoutDescription { return i.material.Layout() }

// Set returns the validated binding shapes of one set, or nil for a set
// the instance binds nothing to.
func (i *Instance) Set(set int) []ProvidedBinding {
	if set < 0 || set >= len(i.sets) {
		return nil
	}
	return i.sets[set]
}

func (r *registry) Instantiate(m Material, sets [][]ProvidedBinding) (*Instance, error) {
	layout := m.Layout()

	setCount := layout.SetCount()
	if len(sets) > setCount {
		setCount = len(sets)
	}
	for set := 0; set < setCount; set++ {
		var provided []ProvidedBinding
		if set < len(sets) {
			provided = sets[set]
		}
		if err := layout.ValidateSet(set, provided); err != nil {
			return nil, fmt.Errorf("material %q: %w", m.Label(), err)
		}
	}
	return &Instance{material: m, sets: sets}, nil
}
