// Package light defines the light sources evaluated by the lighting
// resolve pass. The set of kinds is closed: lighting code switches
// exhaustively over Kind rather than dispatching through an interface, so
// adding a kind is a compile-visible change at every evaluation site.
package light

import (
	"github.com/chewxy/math32"
)

// Kind identifies a light kind. The set is closed; see package doc.
type Kind int

const (
	// KindDirectional is a light with no position, only direction, like
	// the sun. It delivers constant irradiance with no attenuation.
	KindDirectional Kind = iota

	// KindPoint is a light emitting uniformly in all directions from a
	// position. Its radiant flux spreads over the sphere at the receiving
	// distance, giving inverse-square falloff.
	KindPoint
)

// Light is one light source. Which fields are meaningful depends on Kind:
// directional lights use Direction and Irradiance, point lights use
// Position and Flux. Construct with Directional or Point.
type Light struct {
	// Kind selects the evaluation model.
	Kind Kind
	// Direction is the normalized direction the light travels, for
	// directional lights.
	Direction [3]float32
	// Position is the world-space position, for point lights.
	Position [3]float32
	// Irradiance is the RGB irradiance at any receiver, in W/m², for
	// directional lights.
	Irradiance [3]float32
	// Flux is the RGB radiant flux, in W, for point lights.
	Flux [3]float32
}

// Directional creates a directional light.
//
// Parameters:
//   - direction: the direction the light travels; normalized internally
//   - irradiance: RGB irradiance delivered to every receiver, in W/m²
//
// Returns:
//   - Light: the light
func Directional(direction, irradiance [3]float32) Light {
	return Light{
		Kind:       KindDirectional,
		Direction:  normalize(direction),
		Irradiance: irradiance,
	}
}

// Point creates a point light.
//
// Parameters:
//   - position: world-space position
//   - flux: RGB radiant flux, in W
//
// Returns:
//   - Light: the light
func Point(position, flux [3]float32) Light {
	return Light{
		Kind:     KindPoint,
		Position: position,
		Flux:     flux,
	}
}

// IrradianceAt returns the RGB irradiance the light delivers to a surface
// at the given world-space position, before any BRDF or cosine term.
//
// Parameters:
//   - pos: the receiving position
//
// Returns:
//   - [3]float32: RGB irradiance in W/m²
func (l Light) IrradianceAt(pos [3]float32) [3]float32 {
	switch l.Kind {
	case KindDirectional:
		return l.Irradiance
	case KindPoint:
		dx := l.Position[0] - pos[0]
		dy := l.Position[1] - pos[1]
		dz := l.Position[2] - pos[2]
		dist2 := dx*dx + dy*dy + dz*dz
		if dist2 < 1e-6 {
			dist2 = 1e-6
		}
		// Flux spread over the sphere of radius d: E = Φ / (4π d²).
		scale := 1.0 / (4.0 * math32.Pi * dist2)
		return [3]float32{l.Flux[0] * scale, l.Flux[1] * scale, l.Flux[2] * scale}
	default:
		panic("unreachable light kind")
	}
}

// GPUVectors packs the light into the two vec4 slots of the lighting
// resolve uniform block: vecA carries direction or position, vecB carries
// irradiance or flux with the kind in its w component.
//
// Returns:
//   - [4]float32: vecA
//   - [4]float32: vecB
func (l Light) GPUVectors() ([4]float32, [4]float32) {
	switch l.Kind {
	case KindDirectional:
		return [4]float32{l.Direction[0], l.Direction[1], l.Direction[2], 0},
			[4]float32{l.Irradiance[0], l.Irradiance[1], l.Irradiance[2], 0}
	case KindPoint:
		return [4]float32{l.Position[0], l.Position[1], l.Position[2], 0},
			[4]float32{l.Flux[0], l.Flux[1], l.Flux[2], 1}
	default:
		panic("unreachable light kind")
	}
}

func normalize(v [3]float32) [3]float32 {
	len2 := v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
	if len2 == 0 {
		return [3]float32{0, -1, 0}
	}
	inv := 1.0 / math32.Sqrt(len2)
	return [3]float32{v[0] * inv, v[1] * inv, v[2] * inv}
}
