package material

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/shader"
)

// Description is everything needed to compile a material.
type Description struct {
	// Label is a debug label.
	Label string
	// Vertex and Fragment are the stage modules with reflection metadata.
	Vertex, Fragment shader.Module
	// ColorFormats are the color attachment formats, in attachment order.
	ColorFormats []device.TextureFormat
	// HasDepth enables the depth attachment.
	HasDepth bool
	// DepthWrite enables depth writes.
	DepthWrite bool
	// Blend selects the color blend mode.
	Blend device.BlendMode
	// VertexInput selects the vertex buffer layout.
	VertexInput device.VertexLayout
}

// Material is a compiled pipeline bound to an interned layout description.
type Material interface {
	// Label returns the material's debug label.
	Label() string

	// Pipeline returns the compiled render pipeline.
	Pipeline() device.Pipeline

	// Layout returns the interned layout description. Two materials are
	// layout-compatible exactly when their Layout pointers are equal.
	Layout() *LayoutDescription

	// Release frees the pipeline. The layout and its device-side set
	// layouts stay interned in the registry.
	Release()
}

// Registry interns layout descriptions and compiles materials.
//
// The registry is safe for concurrent use.
type Registry interface {
	// Layout merges the reflection metadata of the given modules into an
	// interned layout description.
	//
	// Parameters:
	//   - modules: the stage modules sharing one pipeline
	//
	// Returns:
	//   - *LayoutDescription: the interned description; identical metadata
	//     returns the identical pointer
	//   - error: ErrIncompatibleStages if stages disagree on a slot
	Layout(modules ...shader.Module) (*LayoutDescription, error)

	// GroupLayout returns the device-side layout of one set, created on
	// first use and cached for the lifetime of the registry.
	//
	// Parameters:
	//   - layout: an interned description obtained from Layout
	//   - set: the set index
	//
	// Returns:
	//   - device.BindGroupLayout: the device layout
	//   - error: a device error
	GroupLayout(layout *LayoutDescription, set int) (device.BindGroupLayout, error)

	// Construct compiles a material: merges its stage metadata, interns the
	// layout, and creates the render pipeline.
	//
	// Parameters:
	//   - desc: the material description
	//
	// Returns:
	//   - Material: the compiled material
	//   - error: ErrIncompatibleStages or a device error
	Construct(desc *Description) (Material, error)

	// Instantiate validates the resource shapes an application will bind to
	// a material, set by set, against the material's layout. Validation
	// happens here once; frame recording builds bind groups for the
	// instance without re-validating.
	//
	// Parameters:
	//   - m: the compiled material
	//   - sets: the binding shapes, indexed by set
	//
	// Returns:
	//   - *Instance: the validated instance
	//   - error: a *BindingMismatchError for the first offending slot
	Instantiate(m Material, sets [][]ProvidedBinding) (*Instance, error)

	// Release frees every cached device layout. Materials must be released
	// separately by their owners.
	Release()
}

type groupKey struct {
	layout *LayoutDescription
	set    int
}

type registry struct {
	mu  sync.Mutex
	dev device.Device
	log *zap.Logger

	layouts      map[uint64][]*LayoutDescription
	groupLayouts map[groupKey]device.BindGroupLayout
}

var _ Registry = &registry{}

func (r *registry) Layout(modules ...shader.Module) (*LayoutDescription, error) {
	sets, err := mergeBindings(modules)
	if err != nil {
		return nil, err
	}
	hash := layoutHash(sets)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.layouts[hash] {
		if equalSets(existing.sets, sets) {
			return existing, nil
		}
	}

	d := &LayoutDescription{hash: hash, sets: sets}
	r.layouts[hash] = append(r.layouts[hash], d)
	r.log.Debug("interned pipeline layout",
		zap.Uint64("hash", hash),
		zap.Int("sets", len(sets)),
	)
	return d, nil
}

func (r *registry) GroupLayout(layout *LayoutDescription, set int) (device.BindGroupLayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.groupLayoutLocked(layout, set)
}

func (r *registry) groupLayoutLocked(layout *LayoutDescription, set int) (device.BindGroupLayout, error) {
	key := groupKey{layout: layout, set: set}
	if gl, ok := r.groupLayouts[key]; ok {
		return gl, nil
	}

	gl, err := r.dev.CreateBindGroupLayout(
		fmt.Sprintf("layout %x set %d", layout.hash, set),
		layout.Set(set),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create group layout for set %d: %w", set, err)
	}
	r.groupLayouts[key] = gl
	return gl, nil
}

func (r *registry) Construct(desc *Description) (Material, error) {
	layout, err := r.Layout(desc.Vertex, desc.Fragment)
	if err != nil {
		return nil, fmt.Errorf("material %q: %w", desc.Label, err)
	}

	r.mu.Lock()
	groupLayouts := make([]device.BindGroupLayout, layout.SetCount())
	for set := range groupLayouts {
		gl, err := r.groupLayoutLocked(layout, set)
		if err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("material %q: %w", desc.Label, err)
		}
		groupLayouts[set] = gl
	}
	r.mu.Unlock()

	pipeline, err := r.dev.CreateRenderPipeline(&device.RenderPipelineDescriptor{
		Label:        desc.Label,
		Vertex:       desc.Vertex,
		Fragment:     desc.Fragment,
		Layouts:      groupLayouts,
		ColorFormats: desc.ColorFormats,
		HasDepth:     desc.HasDepth,
		DepthWrite:   desc.DepthWrite,
		Blend:        desc.Blend,
		VertexInput:  desc.VertexInput,
	})
	if err != nil {
		return nil, fmt.Errorf("material %q: %w", desc.Label, err)
	}

	r.log.Debug("constructed material",
		zap.String("label", desc.Label),
		zap.Uint64("layout", layout.hash),
	)
	return &compiledMaterial{
		label:    desc.Label,
		pipeline: pipeline,
		layout:   layout,
	}, nil
}

func (r *registry) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, gl := range r.groupLayouts {
		gl.Release()
	}
	r.groupLayouts = map[groupKey]device.BindGroupLayout{}
	r.layouts = map[uint64][]*LayoutDescription{}
}

type compiledMaterial struct {
	label    string
	pipeline device.Pipeline
	layout   *LayoutDescription
}

var _ Material = &compiledMaterial{}

func (m *compiledMaterial) Label() string { return m.label }

func (m *compiledMaterial) Pipeline() device.Pipeline { return m.pipeline }

func (m *compiledMaterial) Layout() *LayoutDescription { return m.layout }

func (m *compiledMaterial) Release() { m.pipeline.Release() }
