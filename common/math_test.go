package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMul4Identity(t *testing.T) {
	var id, m, out [16]float32
	Identity(id[:])
	Perspective(m[:], math.Pi/3, 16.0/9.0, 0.1, 100)

	Mul4(out[:], id[:], m[:])
	assert.Equal(t, m, out)
}

func TestInvert4RoundTrip(t *testing.T) {
	var proj, view, vp, inv, out [16]float32
	Perspective(proj[:], math.Pi/3, 16.0/9.0, 0.1, 100)
	LookAt(view[:], 5, 3, 8, 0, 0, 0, 0, 1, 0)
	Mul4(vp[:], proj[:], view[:])

	Invert4(inv[:], vp[:])
	Mul4(out[:], vp[:], inv[:])

	var id [16]float32
	Identity(id[:])
	for i := range id {
		assert.InDelta(t, id[i], out[i], 1e-4, "element %d", i)
	}
}

func TestInvert4SingularYieldsIdentity(t *testing.T) {
	var zero, out [16]float32
	Invert4(out[:], zero[:])

	var id [16]float32
	Identity(id[:])
	assert.Equal(t, id, out)
}

func TestPerspectiveDepthRange(t *testing.T) {
	// WebGPU clip space: near maps to depth 0, far to 1.
	var m [16]float32
	Perspective(m[:], math.Pi/2, 1, 1, 10)

	nearZ, nearW := project(m, 0, 0, -1)
	assert.InDelta(t, 0, nearZ/nearW, 1e-5)

	farZ, farW := project(m, 0, 0, -10)
	assert.InDelta(t, 1, farZ/farW, 1e-5)
}

func project(m [16]float32, x, y, z float32) (float32, float32) {
	pz := m[2]*x + m[6]*y + m[10]*z + m[14]
	pw := m[3]*x + m[7]*y + m[11]*z + m[15]
	return pz, pw
}
