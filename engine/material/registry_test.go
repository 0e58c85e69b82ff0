package material

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/device/devicetest"
	"github.com/Kalix-Works/helix-go/engine/shader"
)

func geometryModules() (shader.Module, shader.Module) {
	vs := shader.Module{
		Label:      "geometry vs",
		Source:     shader.GeometryWGSL,
		EntryPoint: "vs_main",
		Stage:      shader.StageVertex,
		Bindings:   shader.GeometryVertexBindings(),
	}
	fs := shader.Module{
		Label:      "geometry fs",
		Source:     shader.GeometryWGSL,
		EntryPoint: "fs_main",
		Stage:      shader.StageFragment,
		Bindings:   shader.GeometryFragmentBindings(),
	}
	return vs, fs
}

func newTestRegistry() Registry {
	return NewRegistry(devicetest.New(common.Extent{Width: 800, Height: 600}))
}

func TestLayoutInterning(t *testing.T) {
	r := newTestRegistry()
	vs, fs := geometryModules()

	l1, err := r.Layout(vs, fs)
	require.NoError(t, err)
	l2, err := r.Layout(vs, fs)
	require.NoError(t, err)

	assert.Same(t, l1, l2, "identical metadata must intern to the identical description")
}

func TestLayoutInterningDistinguishesMetadata(t *testing.T) {
	r := newTestRegistry()
	vs, fs := geometryModules()

	l1, err := r.Layout(vs, fs)
	require.NoError(t, err)

	// Same slots, different kind at (1, 0).
	fs2 := fs
	fs2.Bindings = []shader.Binding{
		{Set: 1, Binding: 0, Kind: shader.KindStorageBuffer, Stages: shader.StageFragment, Count: 1},
	}
	vs2 := vs
	vs2.Bindings = []shader.Binding{
		{Set: 0, Binding: 0, Kind: shader.KindUniformBuffer, Stages: shader.StageVertex, Count: 1},
		{Set: 1, Binding: 0, Kind: shader.KindStorageBuffer, Stages: shader.StageVertex, Count: 1},
	}
	l2, err := r.Layout(vs2, fs2)
	require.NoError(t, err)

	assert.NotSame(t, l1, l2)
	assert.NotEqual(t, l1.Hash(), l2.Hash())
}

func TestLayoutMergesStageVisibility(t *testing.T) {
	r := newTestRegistry()
	vs, fs := geometryModules()

	l, err := r.Layout(vs, fs)
	require.NoError(t, err)
	require.Equal(t, 2, l.SetCount())

	// (set 1, binding 0) is declared by both stages; the merged slot sees both.
	set1 := l.Set(1)
	require.Len(t, set1, 1)
	assert.True(t, set1[0].Stages.Has(shader.StageVertex))
	assert.True(t, set1[0].Stages.Has(shader.StageFragment))
}

func TestLayoutRejectsIncompatibleStages(t *testing.T) {
	r := newTestRegistry()

	vs := shader.Module{
		Label: "vs", Stage: shader.StageVertex, EntryPoint: "vs_main",
		Bindings: []shader.Binding{
			{Set: 0, Binding: 0, Kind: shader.KindUniformBuffer, Stages: shader.StageVertex, Count: 1},
		},
	}
	fs := shader.Module{
		Label: "fs", Stage: shader.StageFragment, EntryPoint: "fs_main",
		Bindings: []shader.Binding{
			{Set: 0, Binding: 0, Kind: shader.KindSampledImage, Stages: shader.StageFragment, Count: 1},
		},
	}

	_, err := r.Layout(vs, fs)
	assert.ErrorIs(t, err, ErrIncompatibleStages)
}

func TestValidateSet(t *testing.T) {
	r := newTestRegistry()
	vs, fs := geometryModules()
	l, err := r.Layout(vs, fs)
	require.NoError(t, err)

	// Correct kind passes.
	err = l.ValidateSet(0, []ProvidedBinding{
		{Binding: 0, Kind: shader.KindUniformBuffer},
	})
	assert.NoError(t, err)

	// Wrong kind is a mismatch with full slot detail.
	err = l.ValidateSet(0, []ProvidedBinding{
		{Binding: 0, Kind: shader.KindStorageBuffer},
	})
	require.ErrorIs(t, err, ErrBindingMismatch)
	var mismatch *BindingMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.EqualValues(t, 0, mismatch.Set)
	assert.EqualValues(t, 0, mismatch.Binding)
	assert.Equal(t, shader.KindUniformBuffer, mismatch.Want)
	assert.Equal(t, shader.KindStorageBuffer, mismatch.Got)

	// A declared slot left unbound is a mismatch.
	err = l.ValidateSet(0, nil)
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, mismatch.Missing)

	// Binding something the layout never declared is a mismatch.
	err = l.ValidateSet(0, []ProvidedBinding{
		{Binding: 0, Kind: shader.KindUniformBuffer},
		{Binding: 7, Kind: shader.KindSampledImage},
	})
	require.ErrorIs(t, err, ErrBindingMismatch)
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, mismatch.Undeclared)
	assert.EqualValues(t, 7, mismatch.Binding)
	assert.Contains(t, mismatch.Error(), "not declared")
}

func TestValidateSetChecksArrayCount(t *testing.T) {
	r := newTestRegistry()

	vs := shader.Module{Label: "vs", Stage: shader.StageVertex, EntryPoint: "vs_main"}
	fs := shader.Module{
		Label: "fs", Stage: shader.StageFragment, EntryPoint: "fs_main",
		Bindings: []shader.Binding{
			{Set: 0, Binding: 0, Kind: shader.KindSampledImage, Stages: shader.StageFragment, Count: 4},
		},
	}
	l, err := r.Layout(vs, fs)
	require.NoError(t, err)

	// The declared count passes.
	assert.NoError(t, l.ValidateSet(0, []ProvidedBinding{
		{Binding: 0, Kind: shader.KindSampledImage, Count: 4},
	}))

	// A single image against the array slot is a mismatch with both counts.
	err = l.ValidateSet(0, []ProvidedBinding{
		{Binding: 0, Kind: shader.KindSampledImage, Count: 1},
	})
	require.ErrorIs(t, err, ErrBindingMismatch)
	var mismatch *BindingMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.EqualValues(t, 4, mismatch.WantCount)
	assert.EqualValues(t, 1, mismatch.GotCount)
}

func TestInstantiateValidatesAtConstruction(t *testing.T) {
	r := newTestRegistry()
	vs, fs := geometryModules()
	m, err := r.Construct(&Description{
		Label: "geometry", Vertex: vs, Fragment: fs,
		ColorFormats: []device.TextureFormat{device.FormatRGBA16Float, device.FormatRGBA16Float},
		HasDepth:     true, DepthWrite: true,
		VertexInput: device.VertexLayoutMesh,
	})
	require.NoError(t, err)

	inst, err := r.Instantiate(m, [][]ProvidedBinding{
		{{Binding: 0, Kind: shader.KindUniformBuffer, Count: 1}},
		{{Binding: 0, Kind: shader.KindUniformBuffer, Count: 1}},
	})
	require.NoError(t, err)
	assert.Same(t, m.Layout(), inst.Layout())
	assert.Same(t, m, inst.Material())

	// The wrong kind is refused here, before any frame is recorded.
	_, err = r.Instantiate(m, [][]ProvidedBinding{
		{{Binding: 0, Kind: shader.KindSampledImage, Count: 1}},
		{{Binding: 0, Kind: shader.KindUniformBuffer, Count: 1}},
	})
	assert.ErrorIs(t, err, ErrBindingMismatch)

	// So is leaving a declared set unbound.
	_, err = r.Instantiate(m, [][]ProvidedBinding{
		{{Binding: 0, Kind: shader.KindUniformBuffer, Count: 1}},
	})
	assert.ErrorIs(t, err, ErrBindingMismatch)
}

func TestGroupLayoutCached(t *testing.T) {
	r := newTestRegistry()
	vs, fs := geometryModules()
	l, err := r.Layout(vs, fs)
	require.NoError(t, err)

	gl1, err := r.GroupLayout(l, 0)
	require.NoError(t, err)
	gl2, err := r.GroupLayout(l, 0)
	require.NoError(t, err)
	assert.Same(t, gl1, gl2)

	other, err := r.GroupLayout(l, 1)
	require.NoError(t, err)
	assert.NotSame(t, gl1, other)
}

func TestConstructSharesLayoutAcrossMaterials(t *testing.T) {
	r := newTestRegistry()
	vs, fs := geometryModules()

	m1, err := r.Construct(&Description{
		Label: "opaque", Vertex: vs, Fragment: fs,
		ColorFormats: []device.TextureFormat{device.FormatRGBA16Float, device.FormatRGBA16Float},
		HasDepth:     true, DepthWrite: true,
		VertexInput: device.VertexLayoutMesh,
	})
	require.NoError(t, err)

	m2, err := r.Construct(&Description{
		Label: "opaque variant", Vertex: vs, Fragment: fs,
		ColorFormats: []device.TextureFormat{device.FormatRGBA16Float, device.FormatRGBA16Float},
		HasDepth:     true, DepthWrite: true,
		VertexInput: device.VertexLayoutMesh,
	})
	require.NoError(t, err)

	assert.Same(t, m1.Layout(), m2.Layout())
	assert.NotSame(t, m1.Pipeline(), m2.Pipeline())
}

func TestConstructPassesDescriptorThrough(t *testing.T) {
	r := newTestRegistry()
	vs, fs := geometryModules()

	m, err := r.Construct(&Description{
		Label: "geometry", Vertex: vs, Fragment: fs,
		ColorFormats: []device.TextureFormat{device.FormatRGBA16Float, device.FormatRGBA16Float},
		HasDepth:     true, DepthWrite: true,
		Blend:       device.BlendReplace,
		VertexInput: device.VertexLayoutMesh,
	})
	require.NoError(t, err)

	fake := m.Pipeline().(*devicetest.Pipeline)
	assert.Equal(t, "geometry", fake.Desc.Label)
	assert.Len(t, fake.Desc.ColorFormats, 2)
	assert.True(t, fake.Desc.HasDepth)
	assert.Len(t, fake.Desc.Layouts, 2)
}
