package graph

import (
	"github.com/chewxy/math32"

	"github.com/Kalix-Works/helix-go/engine/light"
)

// Host-side mirror of the lighting resolve shader's Cook-Torrance BRDF. The
// functions match the GPU code term for term so shading output can be
// validated numerically without a device.

// DistributionGGX evaluates the Trowbridge-Reitz GGX normal distribution.
//
// Parameters:
//   - nDotH: cosine between the surface normal and the half vector
//   - roughness: perceptual roughness in [0, 1]
//
// Returns:
//   - float32: the microfacet density D
func DistributionGGX(nDotH, roughness float32) float32 {
	a := roughness * roughness
	a2 := a * a
	d := nDotH*nDotH*(a2-1.0) + 1.0
	return a2 / (math32.Pi * d * d)
}

// GeometrySchlickGGX evaluates the Schlick-GGX visibility term for one
// direction, with the direct-lighting remapping k = (r+1)²/8.
//
// Parameters:
//   - nDotV: cosine between the normal and the direction
//   - roughness: perceptual roughness in [0, 1]
//
// Returns:
//   - float32: the single-direction geometry term
func GeometrySchlickGGX(nDotV, roughness float32) float32 {
	r := roughness + 1.0
	k := (r * r) / 8.0
	return nDotV / (nDotV*(1.0-k) + k)
}

// GeometrySmith combines the Schlick-GGX terms of the view and light
// directions.
//
// Parameters:
//   - nDotV: cosine between the normal and the view direction
//   - nDotL: cosine between the normal and the light direction
//   - roughness: perceptual roughness in [0, 1]
//
// Returns:
//   - float32: the combined geometry term G
func GeometrySmith(nDotV, nDotL, roughness float32) float32 {
	return GeometrySchlickGGX(nDotV, roughness) * GeometrySchlickGGX(nDotL, roughness)
}

// FresnelSchlick evaluates the Schlick Fresnel approximation.
//
// Parameters:
//   - cosTheta: cosine between the half vector and the view direction
//   - f0: RGB reflectance at normal incidence
//
// Returns:
//   - [3]float32: the RGB Fresnel reflectance F
func FresnelSchlick(cosTheta float32, f0 [3]float32) [3]float32 {
	c := cosTheta
	if c < 0 {
		c = 0
	} else if c > 1 {
		c = 1
	}
	p := math32.Pow(1.0-c, 5.0)
	return [3]float32{
		f0[0] + (1.0-f0[0])*p,
		f0[1] + (1.0-f0[1])*p,
		f0[2] + (1.0-f0[2])*p,
	}
}

// Surface is one shaded point, as the lighting pass reconstructs it from
// the G-buffer.
type Surface struct {
	// Position is the world-space position.
	Position [3]float32
	// Normal is the world-space normal, normalized.
	Normal [3]float32
	// Albedo is the base color.
	Albedo [3]float32
	// Metallic and Roughness are the material parameters.
	Metallic  float32
	Roughness float32
}

// Shade evaluates the outgoing radiance one light contributes to a surface
// point seen from cameraPos. It mirrors the resolve shader's fragment math.
//
// Parameters:
//   - s: the surface point
//   - l: the light
//   - cameraPos: world-space camera position
//
// Returns:
//   - [3]float32: RGB radiance added by this light
func Shade(s Surface, l light.Light, cameraPos [3]float32) [3]float32 {
	var dir [3]float32
	switch l.Kind {
	case light.KindDirectional:
		dir = [3]float32{-l.Direction[0], -l.Direction[1], -l.Direction[2]}
	case light.KindPoint:
		dir = normalize3(sub3(l.Position, s.Position))
	default:
		panic("unreachable light kind")
	}
	irradiance := l.IrradianceAt(s.Position)

	v := normalize3(sub3(cameraPos, s.Position))
	h := normalize3(add3(v, dir))
	nDotL := max32(dot3(s.Normal, dir), 0)
	nDotV := max32(dot3(s.Normal, v), 1e-4)
	nDotH := max32(dot3(s.Normal, h), 0)

	f0 := [3]float32{
		mix32(0.04, s.Albedo[0], s.Metallic),
		mix32(0.04, s.Albedo[1], s.Metallic),
		mix32(0.04, s.Albedo[2], s.Metallic),
	}
	d := DistributionGGX(nDotH, s.Roughness)
	g := GeometrySmith(nDotV, nDotL, s.Roughness)
	f := FresnelSchlick(max32(dot3(h, v), 0), f0)

	denom := max32(4.0*nDotV*nDotL, 1e-4)
	var out [3]float32
	for i := 0; i < 3; i++ {
		specular := (d * g * f[i]) / denom
		diffuse := (1.0 - f[i]) * (1.0 - s.Metallic) * s.Albedo[i] / math32.Pi
		out[i] = (diffuse + specular) * irradiance[i] * nDotL
	}
	return out
}

func sub3(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func add3(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func normalize3(v [3]float32) [3]float32 {
	len2 := dot3(v, v)
	if len2 == 0 {
		return v
	}
	inv := 1.0 / math32.Sqrt(len2)
	return [3]float32{v[0] * inv, v[1] * inv, v[2] * inv}
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func mix32(a, b, t float32) float32 {
	return a + (b-a)*t
}
