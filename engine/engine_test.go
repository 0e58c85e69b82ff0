package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/descriptor"
	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/device/devicetest"
	"github.com/Kalix-Works/helix-go/engine/graph"
	"github.com/Kalix-Works/helix-go/engine/light"
	"github.com/Kalix-Works/helix-go/engine/mesh"
)

var testExtent = common.Extent{Width: 800, Height: 600}

func newTestEngine(t *testing.T, opts ...EngineBuilderOption) (*devicetest.Device, Engine) {
	t.Helper()
	dev := devicetest.New(testExtent)
	e, err := NewEngine(dev, testExtent, opts...)
	require.NoError(t, err)
	return dev, e
}

func testScene(t *testing.T, e Engine) (graph.View, []graph.Draw, []light.Light) {
	t.Helper()
	vertices, indices := mesh.Cube()
	m, err := e.UploadMesh("cube", vertices, indices)
	require.NoError(t, err)

	var v graph.View
	common.Identity(v.ViewProj[:])
	common.Identity(v.InvViewProj[:])
	v.CameraPos = [3]float32{0, 2, 5}

	d := graph.Draw{Mesh: m, Albedo: [4]float32{0.7, 0.7, 0.7, 1}, Roughness: 0.4}
	common.Identity(d.Model[:])

	lights := []light.Light{
		light.Directional([3]float32{-1, -1, 0}, [3]float32{2, 2, 2}),
	}
	return v, []graph.Draw{d}, lights
}

func TestRenderFrameLifecycle(t *testing.T) {
	dev, e := newTestEngine(t)
	view, draws, lights := testScene(t, e)

	stats, err := e.RenderFrame(view, draws, lights)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.FrameIndex)
	assert.Equal(t, 1, stats.DrawCount)
	assert.Equal(t, 1, stats.LightCount)

	subs := dev.Submissions()
	require.Len(t, subs, 1)
	assert.Len(t, subs[0].Passes, 3)

	// Frames keep flowing.
	for i := 0; i < 3; i++ {
		_, err := e.RenderFrame(view, draws, lights)
		require.NoError(t, err)
	}
	assert.Len(t, dev.Submissions(), 4)
}

func TestOutdatedSurfaceIsRecreatedTransparently(t *testing.T) {
	dev, e := newTestEngine(t)
	view, draws, lights := testScene(t, e)

	dev.ScriptAcquireOutdated(1)
	stats, err := e.RenderFrame(view, draws, lights)
	require.NoError(t, err, "an outdated surface skips the frame, not fails it")
	assert.Equal(t, 0, stats.DrawCount)

	stats, err = e.RenderFrame(view, draws, lights)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DrawCount)
}

func TestRepeatedFailuresEscalateToDeviceLost(t *testing.T) {
	dev, e := newTestEngine(t)
	view, draws, lights := testScene(t, e)

	// Each Begin burns its full retry budget before failing.
	dev.ScriptAcquireTimeout(64)

	var last error
	for i := 0; i < maxConsecutiveFailures; i++ {
		_, last = e.RenderFrame(view, draws, lights)
		require.Error(t, last)
	}
	assert.ErrorIs(t, last, device.ErrDeviceLost)
}

func TestPoolExhaustionAbortsFrameAndEscalates(t *testing.T) {
	// One bind group per slot: the frame set fits, the first draw's set
	// does not, so every frame fails with an exhausted pool.
	dev, e := newTestEngine(t, WithDescriptorCapacity(1))
	view, draws, lights := testScene(t, e)

	_, err := e.RenderFrame(view, draws, lights)
	require.ErrorIs(t, err, descriptor.ErrPoolExhausted)
	assert.Empty(t, dev.Submissions(), "the exhausted frame was aborted, not presented")

	last := err
	for i := 1; i < maxConsecutiveFailures; i++ {
		_, last = e.RenderFrame(view, draws, lights)
		require.Error(t, last)
	}
	assert.ErrorIs(t, last, device.ErrDeviceLost)
}

func TestResizeAppliesBeforeNextFrame(t *testing.T) {
	dev, e := newTestEngine(t)
	view, draws, lights := testScene(t, e)

	_, err := e.RenderFrame(view, draws, lights)
	require.NoError(t, err)
	require.Equal(t, 4, dev.AliveTextures())

	e.Resize(common.Extent{Width: 1280, Height: 720})
	_, err = e.RenderFrame(view, draws, lights)
	require.NoError(t, err)

	// The resize drained every in-flight frame, so the old G-buffer was
	// collectable within the same frame: only the replacement remains.
	assert.Equal(t, 4, dev.AliveTextures())
}

func TestZeroExtentResizeIgnored(t *testing.T) {
	_, e := newTestEngine(t)
	view, draws, lights := testScene(t, e)

	e.Resize(common.Extent{})
	_, err := e.RenderFrame(view, draws, lights)
	assert.NoError(t, err)
}

func TestFreeMeshInvalidatesHandles(t *testing.T) {
	_, e := newTestEngine(t)
	vertices, indices := mesh.Cube()
	m, err := e.UploadMesh("cube", vertices, indices)
	require.NoError(t, err)

	require.NoError(t, e.FreeMesh(m))
	assert.Error(t, e.FreeMesh(m))
}
