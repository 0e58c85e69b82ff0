package light

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestDirectionalIrradianceIsConstant(t *testing.T) {
	l := Directional([3]float32{0, -1, 0}, [3]float32{1.5, 1.5, 1.5})

	near := l.IrradianceAt([3]float32{0, 0, 0})
	far := l.IrradianceAt([3]float32{100, 0, 100})
	assert.Equal(t, near, far)
	assert.Equal(t, [3]float32{1.5, 1.5, 1.5}, near)
}

func TestDirectionalNormalizesDirection(t *testing.T) {
	l := Directional([3]float32{0, -2, 0}, [3]float32{1, 1, 1})
	assert.InDelta(t, -1.0, float64(l.Direction[1]), 1e-6)
}

func TestPointInverseSquareFalloff(t *testing.T) {
	// 10 W of flux at distance 2: E = 10 / (4π · 4) ≈ 0.19894 W/m².
	l := Point([3]float32{0, 0, 0}, [3]float32{10, 10, 10})

	e := l.IrradianceAt([3]float32{2, 0, 0})
	want := float64(10.0 / (4.0 * math32.Pi * 4.0))
	assert.InDelta(t, want, float64(e[0]), 1e-5)

	// Doubling the distance quarters the irradiance.
	e4 := l.IrradianceAt([3]float32{4, 0, 0})
	assert.InDelta(t, float64(e[0])/4.0, float64(e4[0]), 1e-5)
}

func TestPointIrradianceBoundedAtSource(t *testing.T) {
	l := Point([3]float32{0, 0, 0}, [3]float32{10, 10, 10})

	e := l.IrradianceAt([3]float32{0, 0, 0})
	assert.False(t, math32.IsInf(e[0], 1), "irradiance must stay finite at the source")
}

func TestGPUVectorsEncodeKind(t *testing.T) {
	d := Directional([3]float32{0, -1, 0}, [3]float32{1, 2, 3})
	_, vecB := d.GPUVectors()
	assert.Equal(t, float32(0), vecB[3])
	assert.Equal(t, float32(2), vecB[1])

	p := Point([3]float32{5, 6, 7}, [3]float32{10, 10, 10})
	vecA, vecB := p.GPUVectors()
	assert.Equal(t, float32(1), vecB[3])
	assert.Equal(t, [4]float32{5, 6, 7, 0}, vecA)
}
