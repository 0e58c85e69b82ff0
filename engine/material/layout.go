// Package material turns shader reflection metadata into deduplicated
// pipeline layout descriptions and compiles materials against them. Layout
// descriptions are immutable and interned: two shaders with identical
// binding interfaces share the same *LayoutDescription, so layout
// compatibility anywhere downstream is a pointer comparison.
package material

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/Kalix-Works/helix-go/engine/shader"
)

var (
	// ErrIncompatibleStages is returned when the vertex and fragment stages
	// of one material declare the same (set, binding) slot with different
	// kinds or counts.
	ErrIncompatibleStages = errors.New("shader stages declare incompatible bindings")

	// ErrBindingMismatch is returned when a resource bound to a material
	// does not match the kind or array count its layout declares for the
	// slot. This is detected when the material instance is constructed,
	// never during frame recording.
	ErrBindingMismatch = errors.New("bound resource does not match layout")
)

// BindingMismatchError details one slot whose bound resource contradicts
// the layout. It unwraps to ErrBindingMismatch.
type BindingMismatchError struct {
	// Set and Binding locate the slot.
	Set, Binding uint32
	// Want is the kind the layout declares.
	Want shader.BindingKind
	// Got is the kind of the bound resource.
	Got shader.BindingKind
	// WantCount and GotCount are the declared and bound array counts when
	// the kinds agree but the counts do not.
	WantCount, GotCount uint32
	// Missing is true when no resource was bound at all.
	Missing bool
	// Undeclared is true when a resource was bound to a slot the layout
	// never declares.
	Undeclared bool
}

func (e *BindingMismatchError) Error() string {
	switch {
	case e.Missing:
		return fmt.Sprintf("binding mismatch at (set %d, binding %d): layout declares %s, nothing bound", e.Set, e.Binding, e.Want)
	case e.Undeclared:
		return fmt.Sprintf("binding mismatch at (set %d, binding %d): slot not declared in layout, bound %s", e.Set, e.Binding, e.Got)
	case e.WantCount != e.GotCount:
		return fmt.Sprintf("binding mismatch at (set %d, binding %d): layout declares %s[%d], bound %s[%d]", e.Set, e.Binding, e.Want, e.WantCount, e.Got, e.GotCount)
	default:
		return fmt.Sprintf("binding mismatch at (set %d, binding %d): layout declares %s, bound %s", e.Set, e.Binding, e.Want, e.Got)
	}
}

func (e *BindingMismatchError) Unwrap() error { return ErrBindingMismatch }

// LayoutDescription is the canonical, immutable description of a pipeline's
// binding interface: every declared slot grouped by set and sorted by
// binding index, with the union of the stages that see it. Descriptions are
// created only by a Registry, which interns them; identical metadata always
// yields the identical pointer.
type LayoutDescription struct {
	hash uint64
	sets [][]shader.Binding
}

// Hash returns the structural hash the description was interned under.
func (d *LayoutDescription) Hash() uint64 { return d.hash }

// SetCount returns the number of descriptor sets, including empty ones
// below the highest declared set index.
func (d *LayoutDescription) SetCount() int { return len(d.sets) }

// Set returns the bindings of one set, sorted by binding index. The
// returned slice must not be modified.
//
// Parameters:
//   - set: the set index
//
// Returns:
//   - []shader.Binding: the declared slots, nil for an empty set
func (d *LayoutDescription) Set(set int) []shader.Binding {
	if set < 0 || set >= len(d.sets) {
		return nil
	}
	return d.sets[set]
}

// ProvidedBinding names the kind and array count of a resource actually
// bound to a slot, for validation against the layout.
type ProvidedBinding struct {
	// Binding is the slot index within the set.
	Binding uint32
	// Kind is the kind of the bound resource.
	Kind shader.BindingKind
	// Count is the number of array elements bound; zero means one.
	Count uint32
}

// ValidateSet checks provided resources against one set of the layout.
// Every declared slot must be bound with the declared kind and array count;
// extra provided bindings are rejected.
//
// Parameters:
//   - set: the set index
//   - provided: the resources being bound
//
// Returns:
//   - error: a *BindingMismatchError for the first offending slot
func (d *LayoutDescription) ValidateSet(set int, provided []ProvidedBinding) error {
	declared := d.Set(set)
	byBinding := make(map[uint32]ProvidedBinding, len(provided))
	for _, p := range provided {
		byBinding[p.Binding] = p
	}

	for _, b := range declared {
		got, ok := byBinding[b.Binding]
		if !ok {
			return &BindingMismatchError{Set: uint32(set), Binding: b.Binding, Want: b.Kind, Missing: true}
		}
		if got.Kind != b.Kind {
			return &BindingMismatchError{Set: uint32(set), Binding: b.Binding, Want: b.Kind, Got: got.Kind}
		}
		if normalizeCount(got.Count) != normalizeCount(b.Count) {
			return &BindingMismatchError{
				Set: uint32(set), Binding: b.Binding,
				Want: b.Kind, Got: got.Kind,
				WantCount: normalizeCount(b.Count), GotCount: normalizeCount(got.Count),
			}
		}
		delete(byBinding, b.Binding)
	}
	for binding, got := range byBinding {
		return &BindingMismatchError{Set: uint32(set), Binding: binding, Got: got.Kind, Undeclared: true}
	}
	return nil
}

// normalizeCount treats an unset array count as a single element.
func normalizeCount(c uint32) uint32 {
	if c == 0 {
		return 1
	}
	return c
}

// mergeBindings folds the reflection metadata of all stages into canonical
// per-set binding lists. The same slot declared by multiple stages must
// agree on kind and count; its stage masks are unioned.
func mergeBindings(modules []shader.Module) ([][]shader.Binding, error) {
	type slotKey struct {
		set, binding uint32
	}
	merged := map[slotKey]shader.Binding{}

	maxSet := -1
	for _, m := range modules {
		for _, b := range m.Bindings {
			key := slotKey{set: b.Set, binding: b.Binding}
			prev, seen := merged[key]
			if !seen {
				merged[key] = b
				if int(b.Set) > maxSet {
					maxSet = int(b.Set)
				}
				continue
			}
			if prev.Kind != b.Kind || prev.Count != b.Count || prev.Depth != b.Depth {
				return nil, fmt.Errorf("%w: (set %d, binding %d) declared as %s by one stage and %s by another",
					ErrIncompatibleStages, b.Set, b.Binding, prev.Kind, b.Kind)
			}
			prev.Stages |= b.Stages
			merged[key] = prev
		}
	}

	sets := make([][]shader.Binding, maxSet+1)
	for _, b := range merged {
		sets[b.Set] = append(sets[b.Set], b)
	}
	for _, set := range sets {
		sort.Slice(set, func(i, j int) bool { return set[i].Binding < set[j].Binding })
	}
	return sets, nil
}

// layoutHash computes the FNV-1a structural hash of canonical per-set
// bindings. Everything that distinguishes two layouts feeds the hash.
func layoutHash(sets [][]shader.Binding) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	writeU32 := func(v uint32) {
		buf[0] = byte(v)
		buf[1] = byte(v >> 8)
		buf[2] = byte(v >> 16)
		buf[3] = byte(v >> 24)
		h.Write(buf[:])
	}

	for setIndex, set := range sets {
		writeU32(uint32(setIndex))
		writeU32(uint32(len(set)))
		for _, b := range set {
			writeU32(b.Binding)
			writeU32(uint32(b.Kind))
			writeU32(uint32(b.Stages))
			writeU32(b.Count)
			if b.Depth {
				writeU32(1)
			} else {
				writeU32(0)
			}
		}
	}
	return h.Sum64()
}

// equalSets reports structural equality, used to resolve hash collisions
// during interning.
func equalSets(a, b [][]shader.Binding) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
