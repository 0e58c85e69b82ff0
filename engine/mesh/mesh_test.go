package mesh

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/device/devicetest"
	"github.com/Kalix-Works/helix-go/engine/resource"
)

func TestVertexStride(t *testing.T) {
	assert.EqualValues(t, Stride, unsafe.Sizeof(Vertex{}))
}

func TestUploadCube(t *testing.T) {
	dev := devicetest.New(common.Extent{Width: 800, Height: 600})
	mgr := resource.NewManager(dev)

	vertices, indices := Cube()
	require.Len(t, vertices, 24)
	require.Len(t, indices, 36)

	m, err := Upload(mgr, "cube", vertices, indices)
	require.NoError(t, err)
	assert.EqualValues(t, 36, m.IndexCount())

	_, _, size, err := mgr.Binding(m.Vertices())
	require.NoError(t, err)
	assert.EqualValues(t, 24*Stride, size)

	_, _, size, err = mgr.Binding(m.Indices())
	require.NoError(t, err)
	assert.EqualValues(t, 36*4, size)
}

func TestUploadRejectsEmptyGeometry(t *testing.T) {
	dev := devicetest.New(common.Extent{Width: 800, Height: 600})
	mgr := resource.NewManager(dev)

	_, err := Upload(mgr, "empty", nil, nil)
	assert.Error(t, err)
}

func TestUploadRollsBackOnIndexFailure(t *testing.T) {
	dev := devicetest.New(common.Extent{Width: 800, Height: 600})
	mgr := resource.NewManager(dev)
	vertices, indices := Cube()

	// Warm the vertex arena so the vertex allocation needs no new device
	// buffer, then make the index arena's first block fail.
	warm, err := mgr.Allocate("warm", 64, device.BufferUsageVertex, device.MemoryDeviceLocal)
	require.NoError(t, err)
	dev.FailNextBuffers = 1

	_, err = Upload(mgr, "doomed", vertices, indices)
	require.ErrorIs(t, err, resource.ErrAllocationFailed)

	// The vertex allocation was rolled back: only the warm handle survives.
	require.NoError(t, mgr.Free(warm))
	assert.Equal(t, 2, mgr.Pending(), "warm free plus rolled-back vertex free")
}

func TestFreeInvalidatesHandles(t *testing.T) {
	dev := devicetest.New(common.Extent{Width: 800, Height: 600})
	mgr := resource.NewManager(dev)
	vertices, indices := Cube()

	m, err := Upload(mgr, "cube", vertices, indices)
	require.NoError(t, err)
	require.NoError(t, m.Free(mgr))

	_, _, _, err = mgr.Binding(m.Vertices())
	assert.ErrorIs(t, err, resource.ErrInvalidHandle)
}
