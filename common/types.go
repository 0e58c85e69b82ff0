// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "time"

// Extent describes the pixel dimensions of an output surface or attachment.
type Extent struct {
	// Width is the horizontal size in pixels.
	Width uint32
	// Height is the vertical size in pixels.
	Height uint32
}

// IsZero reports whether either dimension is zero. A zero extent is not a
// valid render target size.
//
// Returns:
//   - bool: true if Width or Height is zero
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

// FrameStats is a per-frame statistics record exposed to an external
// inspection layer. All timings are CPU-side recording durations; GPU
// execution is asynchronous and not reflected here.
type FrameStats struct {
	// FrameIndex is the monotonically increasing index of the frame.
	FrameIndex uint64
	// SlotIndex is the pipelined frame slot the frame was recorded into.
	SlotIndex int
	// DrawCount is the number of indexed draws issued by the geometry pass.
	DrawCount int
	// LightCount is the number of lights evaluated by the lighting resolve pass.
	LightCount int
	// GeometryCPU is the CPU time spent recording the geometry pass.
	GeometryCPU time.Duration
	// LightingCPU is the CPU time spent recording the lighting resolve pass.
	LightingCPU time.Duration
	// PostProcessCPU is the CPU time spent recording the post-process pass.
	PostProcessCPU time.Duration
}
