// Package mesh defines the vertex format consumed by the geometry pass and
// uploads mesh data into the resource arenas.
package mesh

import (
	"fmt"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/resource"
)

// Vertex is the interleaved vertex layout of the geometry pass: position,
// normal and texture coordinates, 32 bytes per vertex.
type Vertex struct {
	// Position is the object-space position.
	Position [3]float32
	// Normal is the object-space normal.
	Normal [3]float32
	// UV is the texture coordinate.
	UV [2]float32
}

// Stride is the byte size of one Vertex.
const Stride = 32

// Mesh is uploaded geometry: a vertex range and a u32 index range in the
// resource arenas.
type Mesh struct {
	vertices   resource.Handle
	indices    resource.Handle
	indexCount uint32
}

// Upload copies vertex and index data into device-local arena memory.
//
// Parameters:
//   - mgr: the resource manager to allocate from
//   - label: debug label for both allocations
//   - vertices: the vertex data; must be non-empty
//   - indices: the u32 index data; must be non-empty
//
// Returns:
//   - *Mesh: the uploaded mesh
//   - error: resource.ErrAllocationFailed, or a validation error
func Upload(mgr resource.Manager, label string, vertices []Vertex, indices []uint32) (*Mesh, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("mesh %q has no geometry (%d vertices, %d indices)", label, len(vertices), len(indices))
	}

	vh, err := mgr.Allocate(label+" vertices", uint64(len(vertices)*Stride), device.BufferUsageVertex, device.MemoryDeviceLocal)
	if err != nil {
		return nil, err
	}
	if err := mgr.Write(vh, 0, common.SliceToBytes(vertices)); err != nil {
		return nil, err
	}

	ih, err := mgr.Allocate(label+" indices", uint64(len(indices)*4), device.BufferUsageIndex, device.MemoryDeviceLocal)
	if err != nil {
		// Roll back the vertex allocation so a failed upload leaks nothing.
		_ = mgr.Free(vh)
		return nil, err
	}
	if err := mgr.Write(ih, 0, common.SliceToBytes(indices)); err != nil {
		return nil, err
	}

	return &Mesh{vertices: vh, indices: ih, indexCount: uint32(len(indices))}, nil
}

// Vertices returns the handle of the vertex allocation.
func (m *Mesh) Vertices() resource.Handle { return m.vertices }

// Indices returns the handle of the index allocation.
func (m *Mesh) Indices() resource.Handle { return m.indices }

// IndexCount returns the number of indices to draw.
func (m *Mesh) IndexCount() uint32 { return m.indexCount }

// Free releases both allocations through the manager's deferred path.
//
// Parameters:
//   - mgr: the manager the mesh was uploaded through
//
// Returns:
//   - error: resource.ErrInvalidHandle if already freed
func (m *Mesh) Free(mgr resource.Manager) error {
	if err := mgr.Free(m.vertices); err != nil {
		return err
	}
	return mgr.Free(m.indices)
}

// Cube returns the vertices and indices of a unit cube centered at the
// origin, with per-face normals.
func Cube() ([]Vertex, []uint32) {
	faces := []struct {
		normal [3]float32
		corner [4][3]float32
	}{
		{[3]float32{0, 0, 1}, [4][3]float32{{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{0.5, -0.5, -0.5}, {-0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}, {0.5, 0.5, -0.5}}},
		{[3]float32{1, 0, 0}, [4][3]float32{{0.5, -0.5, 0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {0.5, 0.5, 0.5}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{-0.5, -0.5, -0.5}, {-0.5, -0.5, 0.5}, {-0.5, 0.5, 0.5}, {-0.5, 0.5, -0.5}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{-0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, -0.5, 0.5}, {-0.5, -0.5, 0.5}}},
	}
	uvs := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	var vertices []Vertex
	var indices []uint32
	for _, f := range faces {
		base := uint32(len(vertices))
		for i, c := range f.corner {
			vertices = append(vertices, Vertex{Position: c, Normal: f.normal, UV: uvs[i]})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}
