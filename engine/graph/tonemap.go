package graph

// Reinhard maps an HDR color channel into [0, 1) with the same operator the
// post-process shader applies: c / (1 + c).
//
// Parameters:
//   - c: the linear HDR channel value, non-negative
//
// Returns:
//   - float32: the tone-mapped value
func Reinhard(c float32) float32 {
	return c / (1.0 + c)
}

// ReinhardRGB tone-maps all three channels of an HDR color.
//
// Parameters:
//   - c: the linear HDR color
//
// Returns:
//   - [3]float32: the tone-mapped color, each channel in [0, 1)
func ReinhardRGB(c [3]float32) [3]float32 {
	return [3]float32{Reinhard(c[0]), Reinhard(c[1]), Reinhard(c[2])}
}
