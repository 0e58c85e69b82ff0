// Package shader holds the reflection metadata model consumed by the material
// registry, and the built-in WGSL sources for the deferred pipeline passes.
//
// Reflection metadata is produced by an external tool that inspects compiled
// shaders; this package only defines its shape. The built-in passes ship with
// hand-declared metadata since their binding interfaces are fixed.
package shader

// Stage is a bitmask identifying the shader stages a binding is visible to.
type Stage uint32

const (
	// StageVertex marks a binding visible to the vertex stage.
	StageVertex Stage = 1 << iota
	// StageFragment marks a binding visible to the fragment stage.
	StageFragment
	// StageCompute marks a binding visible to the compute stage.
	StageCompute
)

// Has reports whether the mask includes all stages in other.
//
// Parameters:
//   - other: the stage bits to test for
//
// Returns:
//   - bool: true if every bit of other is set in s
func (s Stage) Has(other Stage) bool {
	return s&other == other
}

// String returns a short human-readable form of the stage mask, used in
// binding-mismatch error messages.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	case StageVertex | StageFragment:
		return "vertex|fragment"
	default:
		return "mixed"
	}
}

// BindingKind identifies the kind of resource a declared binding slot expects.
type BindingKind int

const (
	// KindUniformBuffer is a read-only uniform buffer binding.
	KindUniformBuffer BindingKind = iota
	// KindStorageBuffer is a read-only storage buffer binding.
	KindStorageBuffer
	// KindSampledImage is a texture binding sampled with a separate sampler.
	KindSampledImage
	// KindCombinedImageSampler is a texture binding with an associated sampler,
	// expressed in WGSL as adjacent texture and sampler bindings.
	KindCombinedImageSampler
)

// String returns the metadata name of the binding kind, used in
// binding-mismatch error messages.
func (k BindingKind) String() string {
	switch k {
	case KindUniformBuffer:
		return "uniform_buffer"
	case KindStorageBuffer:
		return "storage_buffer"
	case KindSampledImage:
		return "sampled_image"
	case KindCombinedImageSampler:
		return "combined_image_sampler"
	default:
		return "unknown"
	}
}

// Binding is one entry of a shader's reflection metadata: a declared resource
// slot at (Set, Binding) with its kind, visible stages, and array count.
type Binding struct {
	// Set is the descriptor set (bind group) index.
	Set uint32
	// Binding is the slot index within the set.
	Binding uint32
	// Kind is the expected resource kind for the slot.
	Kind BindingKind
	// Stages is the mask of shader stages the slot is visible to.
	Stages Stage
	// Count is the array count of the slot; 1 for non-arrayed bindings.
	Count uint32
	// Depth marks a sampled-image slot whose bound texture uses a depth
	// format, which changes the sample type declared to the device.
	Depth bool
}

// Module couples a WGSL source with its entry point, stage, and the
// reflection metadata describing its binding interface.
type Module struct {
	// Label is a debug label for the module.
	Label string
	// Source is the WGSL source text.
	Source string
	// EntryPoint is the entry function name within Source.
	EntryPoint string
	// Stage is the pipeline stage the entry point targets.
	Stage Stage
	// Bindings is the ordered reflection metadata for the module.
	Bindings []Binding
}
