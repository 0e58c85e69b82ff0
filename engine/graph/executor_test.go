package graph

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/descriptor"
	"github.com/Kalix-Works/helix-go/engine/device/devicetest"
	"github.com/Kalix-Works/helix-go/engine/frame"
	"github.com/Kalix-Works/helix-go/engine/light"
	"github.com/Kalix-Works/helix-go/engine/material"
	"github.com/Kalix-Works/helix-go/engine/mesh"
	"github.com/Kalix-Works/helix-go/engine/resource"
)

var testExtent = common.Extent{Width: 800, Height: 600}

type stack struct {
	dev   *devicetest.Device
	mgr   resource.Manager
	alloc descriptor.Allocator
	sched frame.Scheduler
	exec  Executor
}

func newStack(t *testing.T, opts ...descriptor.AllocatorOption) *stack {
	t.Helper()

	dev := devicetest.New(testExtent)
	mgr := resource.NewManager(dev)
	reg := material.NewRegistry(dev)
	alloc := descriptor.NewAllocator(dev, reg, frame.DefaultSlots, opts...)

	sched, err := frame.NewScheduler(dev)
	require.NoError(t, err)

	exec, err := NewExecutor(dev, mgr, reg, alloc, frame.DefaultSlots, testExtent, WithWorkers(2))
	require.NoError(t, err)

	return &stack{dev: dev, mgr: mgr, alloc: alloc, sched: sched, exec: exec}
}

func (s *stack) cube(t *testing.T) *mesh.Mesh {
	t.Helper()
	vertices, indices := mesh.Cube()
	m, err := mesh.Upload(s.mgr, "cube", vertices, indices)
	require.NoError(t, err)
	return m
}

func identityView() View {
	var v View
	common.Identity(v.ViewProj[:])
	common.Identity(v.InvViewProj[:])
	v.CameraPos = [3]float32{0, 0, 5}
	return v
}

func drawOf(m *mesh.Mesh) Draw {
	d := Draw{Mesh: m, Albedo: [4]float32{0.8, 0.2, 0.2, 1}, Metallic: 0.1, Roughness: 0.5}
	common.Identity(d.Model[:])
	return d
}

// runFrame records and submits one frame, returning its stats.
func (s *stack) runFrame(t *testing.T, draws []Draw, lights []light.Light) common.FrameStats {
	t.Helper()
	f, err := s.sched.Begin()
	require.NoError(t, err)
	cb, stats, err := s.exec.Execute(f, identityView(), draws, lights)
	require.NoError(t, err)
	require.NoError(t, s.sched.Submit(f, cb))
	require.NoError(t, s.sched.Present(f))
	return stats
}

func TestExecuteRecordsThreePassSequence(t *testing.T) {
	s := newStack(t)
	m := s.cube(t)

	draws := []Draw{drawOf(m), drawOf(m)}
	lights := []light.Light{
		light.Directional([3]float32{0, -1, 0}, [3]float32{1, 1, 1}),
		light.Point([3]float32{2, 2, 2}, [3]float32{50, 50, 50}),
	}
	stats := s.runFrame(t, draws, lights)

	assert.Equal(t, 2, stats.DrawCount)
	assert.Equal(t, 2, stats.LightCount)

	subs := s.dev.Submissions()
	require.Len(t, subs, 1)
	passes := subs[0].Passes
	require.Len(t, passes, 3)

	geom := passes[0]
	assert.Equal(t, "geometry", geom.Label)
	assert.Equal(t, []string{labelAlbedoRough, labelNormalMetal}, geom.ColorTargets)
	assert.Equal(t, labelDepth, geom.DepthTarget)
	assert.Equal(t, 2, geom.Draws)

	lit := passes[1]
	assert.Equal(t, "lighting", lit.Label)
	assert.Equal(t, []string{labelHDR}, lit.ColorTargets)
	assert.Equal(t, "", lit.DepthTarget)
	assert.Equal(t, 2, lit.Draws, "one fullscreen draw per light")

	post := passes[2]
	assert.Equal(t, "post-process", post.Label)
	assert.Equal(t, []string{"surface"}, post.ColorTargets)
	assert.Equal(t, 1, post.Draws)
}

func TestExecuteEmptyListsStillPresents(t *testing.T) {
	s := newStack(t)

	stats := s.runFrame(t, nil, nil)
	assert.Equal(t, 0, stats.DrawCount)
	assert.Equal(t, 0, stats.LightCount)

	passes := s.dev.Submissions()[0].Passes
	require.Len(t, passes, 3, "attachments are cleared even with nothing to draw")
	assert.Equal(t, 0, passes[0].Draws)
	assert.Equal(t, 0, passes[1].Draws)
	assert.Equal(t, 1, passes[2].Draws)
}

func TestResizeDefersOldAttachmentDestruction(t *testing.T) {
	s := newStack(t)

	require.Equal(t, 4, s.dev.AliveTextures())
	require.NoError(t, s.exec.Resize(common.Extent{Width: 1024, Height: 768}))
	assert.Equal(t, common.Extent{Width: 1024, Height: 768}, s.exec.Extent())

	// Old attachments survive until the deferred frees are collected.
	assert.Equal(t, 8, s.dev.AliveTextures())
	s.mgr.Collect(s.sched.RetiredFrame())
	assert.Equal(t, 4, s.dev.AliveTextures())
}

func TestResizeToSameExtentIsNoop(t *testing.T) {
	s := newStack(t)

	require.NoError(t, s.exec.Resize(testExtent))
	assert.Equal(t, 4, s.dev.AliveTextures())
}

func TestPoolExhaustionFailsFrame(t *testing.T) {
	// Capacity 4: the frame set and three draw sets fit; the fourth draw's
	// allocation fails the whole frame.
	s := newStack(t, descriptor.WithCapacity(frame.DefaultSlots, 4))
	m := s.cube(t)

	draws := make([]Draw, 5)
	for i := range draws {
		draws[i] = drawOf(m)
	}
	lights := []light.Light{light.Directional([3]float32{0, -1, 0}, [3]float32{1, 1, 1})}

	f, err := s.sched.Begin()
	require.NoError(t, err)
	_, stats, err := s.exec.Execute(f, identityView(), draws, lights)
	require.Error(t, err)
	assert.ErrorIs(t, err, descriptor.ErrPoolExhausted)
	assert.Equal(t, 3, stats.DrawCount, "recording stopped at the exhausted allocation")

	s.sched.Abort(f)
	assert.Empty(t, s.dev.Submissions(), "an exhausted frame is never submitted")
}

func TestDrawListBeyondInitialCapacityGrows(t *testing.T) {
	s := newStack(t, descriptor.WithCapacity(frame.DefaultSlots, 1024))
	m := s.cube(t)

	draws := make([]Draw, defaultDrawCapacity+44)
	for i := range draws {
		draws[i] = drawOf(m)
	}

	stats := s.runFrame(t, draws, nil)
	assert.Equal(t, defaultDrawCapacity+44, stats.DrawCount)
	assert.Equal(t, defaultDrawCapacity+44, s.dev.Submissions()[0].Passes[0].Draws)
}

func TestUniformBlockLayouts(t *testing.T) {
	// The blocks must match the WGSL struct layouts byte for byte.
	assert.EqualValues(t, 64, unsafe.Sizeof(frameBlock{}))
	assert.EqualValues(t, 96, unsafe.Sizeof(drawBlock{}))
	assert.EqualValues(t, 112, unsafe.Sizeof(lightBlock{}))
}

func TestPackDrawBlockFieldOffsets(t *testing.T) {
	d := Draw{Albedo: [4]float32{1, 2, 3, 4}, Metallic: 0.25, Roughness: 0.75}
	common.Identity(d.Model[:])

	buf := make([]byte, blockStride)
	packDrawBlock(buf, &d)

	floats := unsafe.Slice((*float32)(unsafe.Pointer(&buf[0])), 24)
	assert.Equal(t, float32(1), floats[0], "model matrix leads the block")
	assert.Equal(t, [4]float32{1, 2, 3, 4}, [4]float32(floats[16:20]), "albedo at byte 64")
	assert.Equal(t, float32(0.25), floats[20], "metallic in material.x")
	assert.Equal(t, float32(0.75), floats[21], "roughness in material.y")
}
