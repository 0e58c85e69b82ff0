package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Kalix-Works/helix-go/engine/light"
)

func TestDistributionPeaksAtNormalIncidence(t *testing.T) {
	peak := DistributionGGX(1.0, 0.5)
	off := DistributionGGX(0.7, 0.5)
	assert.Greater(t, peak, off)

	// A perfectly smooth surface concentrates all density at n = h.
	assert.InDelta(t, 0.0, float64(DistributionGGX(0.5, 0.0)), 1e-6)
}

func TestGeometryTermBounded(t *testing.T) {
	for _, r := range []float32{0.1, 0.5, 1.0} {
		for _, c := range []float32{0.1, 0.5, 1.0} {
			g := GeometrySmith(c, c, r)
			assert.Greater(t, g, float32(0))
			assert.LessOrEqual(t, g, float32(1.0))
		}
	}
}

func TestFresnelGrazingAngleReflectsFully(t *testing.T) {
	f0 := [3]float32{0.04, 0.04, 0.04}

	head := FresnelSchlick(1.0, f0)
	assert.InDelta(t, 0.04, float64(head[0]), 1e-6)

	grazing := FresnelSchlick(0.0, f0)
	assert.InDelta(t, 1.0, float64(grazing[0]), 1e-6)
}

func TestShadeBacklitSurfaceIsBlack(t *testing.T) {
	s := Surface{
		Normal:    [3]float32{0, 1, 0},
		Albedo:    [3]float32{0.8, 0.8, 0.8},
		Roughness: 0.5,
	}
	// Light traveling upward hits the surface from below.
	l := light.Directional([3]float32{0, 1, 0}, [3]float32{1, 1, 1})

	out := Shade(s, l, [3]float32{0, 5, 0})
	assert.Equal(t, [3]float32{0, 0, 0}, out)
}

func TestShadePointLightFallsOffWithDistance(t *testing.T) {
	s := Surface{
		Normal:    [3]float32{0, 1, 0},
		Albedo:    [3]float32{0.8, 0.2, 0.2},
		Roughness: 0.6,
	}
	near := light.Point([3]float32{0, 1, 0}, [3]float32{100, 100, 100})
	far := light.Point([3]float32{0, 4, 0}, [3]float32{100, 100, 100})

	cam := [3]float32{0, 3, 3}
	outNear := Shade(s, near, cam)
	outFar := Shade(s, far, cam)
	assert.Greater(t, outNear[0], outFar[0])
}

func TestShadeEnergyScalesWithIrradiance(t *testing.T) {
	s := Surface{
		Normal:    [3]float32{0, 1, 0},
		Albedo:    [3]float32{0.5, 0.5, 0.5},
		Roughness: 0.4,
	}
	dim := light.Directional([3]float32{0, -1, 0}, [3]float32{1, 1, 1})
	bright := light.Directional([3]float32{0, -1, 0}, [3]float32{2, 2, 2})

	cam := [3]float32{0, 3, 3}
	a := Shade(s, dim, cam)
	b := Shade(s, bright, cam)
	assert.InDelta(t, float64(a[0]*2), float64(b[0]), 1e-5)
}

func TestReinhardMapsIntoUnitRange(t *testing.T) {
	assert.Equal(t, float32(0), Reinhard(0))
	assert.InDelta(t, 0.5, float64(Reinhard(1)), 1e-6)

	for _, c := range []float32{0.1, 1, 10, 1000, 1e6} {
		m := Reinhard(c)
		assert.GreaterOrEqual(t, m, float32(0))
		assert.Less(t, m, float32(1))
	}

	rgb := ReinhardRGB([3]float32{4, 1, 0.25})
	assert.InDelta(t, 0.8, float64(rgb[0]), 1e-6)
	assert.InDelta(t, 0.2, float64(rgb[2]), 1e-6)
}
