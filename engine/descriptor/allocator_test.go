package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/device/devicetest"
	"github.com/Kalix-Works/helix-go/engine/material"
	"github.com/Kalix-Works/helix-go/engine/shader"
)

type allocatorFixture struct {
	dev  *devicetest.Device
	reg  material.Registry
	inst *material.Instance
	buf  device.Buffer
}

func newFixture(t *testing.T) *allocatorFixture {
	t.Helper()
	dev := devicetest.New(common.Extent{Width: 800, Height: 600})
	reg := material.NewRegistry(dev)

	vs := shader.Module{
		Label: "vs", Stage: shader.StageVertex, EntryPoint: "vs_main",
		Bindings: []shader.Binding{
			{Set: 0, Binding: 0, Kind: shader.KindUniformBuffer, Stages: shader.StageVertex, Count: 1},
		},
	}
	fs := shader.Module{Label: "fs", Stage: shader.StageFragment, EntryPoint: "fs_main"}
	mat, err := reg.Construct(&material.Description{
		Label: "test", Vertex: vs, Fragment: fs,
		ColorFormats: []device.TextureFormat{device.FormatRGBA16Float},
	})
	require.NoError(t, err)
	inst, err := reg.Instantiate(mat, [][]material.ProvidedBinding{
		{{Binding: 0, Kind: shader.KindUniformBuffer, Count: 1}},
	})
	require.NoError(t, err)

	buf, err := dev.CreateBuffer("uniforms", 256, device.BufferUsageUniform, device.MemoryDeviceLocal)
	require.NoError(t, err)

	return &allocatorFixture{dev: dev, reg: reg, inst: inst, buf: buf}
}

func (f *allocatorFixture) uniform() []Resource {
	return []Resource{{
		Binding: 0,
		Buffer:  f.buf,
		Size:    64,
	}}
}

func TestAllocateAndReset(t *testing.T) {
	f := newFixture(t)
	a := NewAllocator(f.dev, f.reg, 2, WithCapacity(2, 4))

	g, err := a.Allocate(0, "per-draw", f.inst, 0, f.uniform())
	require.NoError(t, err)
	require.NotNil(t, g)

	a.Reset(0)

	// The pool is empty again and can serve a full frame.
	for i := 0; i < 4; i++ {
		_, err := a.Allocate(0, "per-draw", f.inst, 0, f.uniform())
		require.NoError(t, err)
	}
}

func TestExhaustionIsPerSlot(t *testing.T) {
	f := newFixture(t)
	a := NewAllocator(f.dev, f.reg, 2, WithCapacity(2, 2))

	for i := 0; i < 2; i++ {
		_, err := a.Allocate(0, "per-draw", f.inst, 0, f.uniform())
		require.NoError(t, err)
	}
	_, err := a.Allocate(0, "per-draw", f.inst, 0, f.uniform())
	assert.ErrorIs(t, err, ErrPoolExhausted)

	// Slot 1 is unaffected.
	_, err = a.Allocate(1, "per-draw", f.inst, 0, f.uniform())
	assert.NoError(t, err)
}

func TestGrowthAppliedAtReset(t *testing.T) {
	f := newFixture(t)
	a := NewAllocator(f.dev, f.reg, 1, WithCapacity(1, 2))

	for i := 0; i < 2; i++ {
		_, err := a.Allocate(0, "per-draw", f.inst, 0, f.uniform())
		require.NoError(t, err)
	}
	_, err := a.Allocate(0, "per-draw", f.inst, 0, f.uniform())
	require.ErrorIs(t, err, ErrPoolExhausted)

	// Capacity is unchanged until the slot resets.
	assert.Equal(t, 2, a.Capacity(0))
	a.Reset(0)
	assert.Equal(t, 4, a.Capacity(0))

	for i := 0; i < 4; i++ {
		_, err := a.Allocate(0, "per-draw", f.inst, 0, f.uniform())
		require.NoError(t, err)
	}
}

func TestNoGrowthWithoutExhaustion(t *testing.T) {
	f := newFixture(t)
	a := NewAllocator(f.dev, f.reg, 1, WithCapacity(1, 2))

	_, err := a.Allocate(0, "per-draw", f.inst, 0, f.uniform())
	require.NoError(t, err)
	a.Reset(0)
	assert.Equal(t, 2, a.Capacity(0))
}

func TestSlotOutOfRange(t *testing.T) {
	f := newFixture(t)
	a := NewAllocator(f.dev, f.reg, 2)

	_, err := a.Allocate(5, "bad slot", f.inst, 0, f.uniform())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPoolExhausted)
}
