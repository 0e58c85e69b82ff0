// Package device defines the narrow hardware-facing interface the engine
// records against. The production implementation targets WebGPU; tests run
// against an in-memory fake. Nothing above this package touches the GPU API
// directly.
package device

import (
	"errors"
	"time"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/shader"
)

var (
	// ErrDeviceLost is returned when the underlying device has been lost.
	// No recovery is attempted; the caller must tear down and rebuild.
	ErrDeviceLost = errors.New("device lost")

	// ErrSurfaceOutdated is returned by AcquireImage when the surface no
	// longer matches the window, typically after a resize. The caller should
	// reconfigure and retry.
	ErrSurfaceOutdated = errors.New("surface outdated")

	// ErrNotMappable is returned by Buffer.Map when the buffer's memory is
	// not visible to the host.
	ErrNotMappable = errors.New("buffer memory is not host-visible")
)

// MemoryKind selects the memory domain a buffer is allocated from.
type MemoryKind int

const (
	// MemoryDeviceLocal is fast device memory, written through queue copies.
	MemoryDeviceLocal MemoryKind = iota
	// MemoryHostVisible is host-mappable memory for staging and per-frame data.
	MemoryHostVisible
)

// BufferUsage identifies the usage class of a buffer allocation. Each class
// maps to a distinct backing arena with its own alignment rules.
type BufferUsage int

const (
	// BufferUsageVertex holds vertex data consumed by the geometry pass.
	BufferUsageVertex BufferUsage = iota
	// BufferUsageIndex holds u32 index data.
	BufferUsageIndex
	// BufferUsageUniform holds per-frame and per-draw uniform blocks.
	BufferUsageUniform
	// BufferUsageStaging holds host-visible upload sources.
	BufferUsageStaging
)

// String returns the usage-class name used in labels and error messages.
func (u BufferUsage) String() string {
	switch u {
	case BufferUsageVertex:
		return "vertex"
	case BufferUsageIndex:
		return "index"
	case BufferUsageUniform:
		return "uniform"
	case BufferUsageStaging:
		return "staging"
	default:
		return "unknown"
	}
}

// TextureFormat identifies the pixel format of a texture or attachment.
type TextureFormat int

const (
	// FormatRGBA16Float is the 64-bit float format used by the G-buffer
	// color attachments and the HDR resolve target.
	FormatRGBA16Float TextureFormat = iota
	// FormatDepth24Plus is the depth attachment format.
	FormatDepth24Plus
	// FormatSurface is whatever format the presentation surface reports;
	// pipelines rendering to the surface use this placeholder.
	FormatSurface
)

// TextureUsage is a bitmask of the ways a texture will be used.
type TextureUsage int

const (
	// TextureUsageRenderAttachment allows the texture as a pass output.
	TextureUsageRenderAttachment TextureUsage = 1 << iota
	// TextureUsageSampled allows the texture to be read from shaders.
	TextureUsageSampled
)

// LoadOp selects what happens to an attachment's contents at pass begin.
type LoadOp int

const (
	// LoadOpClear resets the attachment to the clear value.
	LoadOpClear LoadOp = iota
	// LoadOpLoad preserves the previous contents.
	LoadOpLoad
)

// BlendMode selects how fragment output combines with the attachment.
type BlendMode int

const (
	// BlendReplace overwrites the destination.
	BlendReplace BlendMode = iota
	// BlendAdditive sums source and destination, used by the lighting
	// resolve pass to accumulate one light per draw.
	BlendAdditive
)

// VertexLayout selects the vertex input layout of a render pipeline.
type VertexLayout int

const (
	// VertexLayoutNone declares no vertex buffers; the vertex stage
	// synthesizes positions from the vertex index.
	VertexLayoutNone VertexLayout = iota
	// VertexLayoutMesh is the interleaved position/normal/uv layout.
	VertexLayoutMesh
)

// Buffer is a device buffer allocation.
type Buffer interface {
	// Write schedules a host-to-device copy into the buffer. The data is
	// consumed before Write returns and may be reused by the caller.
	//
	// Parameters:
	//   - offset: destination byte offset within the buffer
	//   - data: bytes to copy
	Write(offset uint64, data []byte)

	// Map exposes the buffer memory to the host for writing. Only valid on
	// host-visible buffers; returns ErrNotMappable otherwise.
	//
	// Returns:
	//   - []byte: the mapped memory, valid until Unmap
	//   - error: ErrNotMappable, or a device error
	Map() ([]byte, error)

	// Unmap releases a mapping obtained from Map.
	Unmap()

	// Size returns the byte size of the allocation.
	Size() uint64

	// Release frees the buffer. The caller guarantees no in-flight work
	// still references it.
	Release()
}

// Texture is a device texture with a default full-resource view.
type Texture interface {
	// Extent returns the pixel dimensions of the texture.
	Extent() common.Extent

	// Format returns the pixel format the texture was created with.
	Format() TextureFormat

	// Release frees the texture. The caller guarantees no in-flight work
	// still references it.
	Release()
}

// Fence is a CPU-visible completion marker for a queue submission.
type Fence interface {
	// Wait blocks until the fence signals or the timeout elapses.
	//
	// Parameters:
	//   - timeout: maximum time to block
	//
	// Returns:
	//   - error: nil once signaled; ErrDeviceLost if the device was lost
	Wait(timeout time.Duration) error

	// Signaled reports whether the fence has already signaled, without
	// blocking.
	Signaled() bool

	// Reset returns the fence to the unsignaled state for reuse. Only valid
	// when no submission is pending on it.
	Reset()
}

// Semaphore is a GPU-side ordering token linking a submission to a
// presentation or to another submission. It carries no host-visible state.
type Semaphore interface {
	// Label returns the debug label the semaphore was created with.
	Label() string
}

// BindGroupLayout is a device-side descriptor set layout.
type BindGroupLayout interface {
	// Release frees the layout.
	Release()
}

// BindGroup is a bound set of shader resources matching one layout.
type BindGroup interface {
	// Release frees the bind group.
	Release()
}

// Pipeline is a compiled render pipeline.
type Pipeline interface {
	// Release frees the pipeline.
	Release()
}

// CommandBuffer is a finished, submittable recording.
type CommandBuffer interface {
	// Release frees the command buffer after submission.
	Release()
}

// SurfaceImage is one acquired presentation image.
type SurfaceImage interface {
	// Extent returns the pixel dimensions of the image.
	Extent() common.Extent

	// Release drops the acquired image without presenting it.
	Release()
}

// BindingResource associates a shader binding slot with a concrete resource.
// Exactly one of Buffer or Texture is set.
type BindingResource struct {
	// Binding is the slot index within the set.
	Binding uint32
	// Buffer is the bound buffer, for buffer-kind slots.
	Buffer Buffer
	// Offset is the byte offset of the bound range within Buffer.
	Offset uint64
	// Size is the byte size of the bound range; 0 binds to the end.
	Size uint64
	// Texture is the bound texture, for image-kind slots.
	Texture Texture
}

// RenderPipelineDescriptor describes a render pipeline to compile.
type RenderPipelineDescriptor struct {
	// Label is a debug label.
	Label string
	// Vertex is the vertex stage module.
	Vertex shader.Module
	// Fragment is the fragment stage module.
	Fragment shader.Module
	// Layouts are the bind group layouts, indexed by set.
	Layouts []BindGroupLayout
	// ColorFormats are the color attachment formats, in attachment order.
	ColorFormats []TextureFormat
	// HasDepth enables the depth attachment.
	HasDepth bool
	// DepthWrite enables depth writes; only meaningful with HasDepth.
	DepthWrite bool
	// Blend selects the color blend mode, applied to every target.
	Blend BlendMode
	// VertexInput selects the vertex buffer layout.
	VertexInput VertexLayout
}

// ColorAttachmentInfo describes one color attachment of a render pass.
// Exactly one of Texture or Surface is set.
type ColorAttachmentInfo struct {
	// Texture is an offscreen render target.
	Texture Texture
	// Surface is an acquired presentation image.
	Surface SurfaceImage
	// Load selects clear-or-load at pass begin.
	Load LoadOp
	// Clear is the clear color, used when Load is LoadOpClear.
	Clear [4]float64
}

// DepthAttachmentInfo describes the depth attachment of a render pass.
type DepthAttachmentInfo struct {
	// Texture is the depth target.
	Texture Texture
	// Load selects clear-or-load at pass begin.
	Load LoadOp
	// ClearDepth is the clear value, used when Load is LoadOpClear.
	ClearDepth float32
}

// RenderPassInfo describes the attachments of one render pass.
type RenderPassInfo struct {
	// Label is a debug label.
	Label string
	// Colors are the color attachments, in shader output order.
	Colors []ColorAttachmentInfo
	// Depth is the optional depth attachment.
	Depth *DepthAttachmentInfo
}

// RenderPass records draw commands into one pass of a command encoder.
type RenderPass interface {
	// SetPipeline binds the render pipeline for subsequent draws.
	SetPipeline(p Pipeline)

	// SetBindGroup binds a resource set at the given set index.
	SetBindGroup(index uint32, group BindGroup)

	// SetVertexBuffer binds a vertex buffer range starting at offset.
	SetVertexBuffer(slot uint32, buf Buffer, offset uint64)

	// SetIndexBuffer binds a u32 index buffer range starting at offset.
	SetIndexBuffer(buf Buffer, offset uint64)

	// DrawIndexed issues an indexed draw.
	//
	// Parameters:
	//   - indexCount: number of indices to draw
	//   - firstIndex: offset into the bound index buffer, in indices
	DrawIndexed(indexCount, firstIndex uint32)

	// Draw issues a non-indexed draw of vertexCount vertices.
	Draw(vertexCount uint32)

	// End closes the pass. No commands may be recorded after End.
	End()
}

// CommandEncoder records render passes into a submittable command buffer.
type CommandEncoder interface {
	// BeginRenderPass opens a render pass with the given attachments.
	//
	// Parameters:
	//   - info: attachment set for the pass
	//
	// Returns:
	//   - RenderPass: the open pass recorder
	//   - error: a device error if the pass could not begin
	BeginRenderPass(info *RenderPassInfo) (RenderPass, error)

	// Finish closes the encoder and produces the command buffer.
	//
	// Returns:
	//   - CommandBuffer: the finished recording
	//   - error: a device error if validation failed
	Finish() (CommandBuffer, error)
}

// Device is the hardware abstraction the engine records against.
//
// All creation calls are safe for concurrent use. Submission, acquisition and
// presentation are serialized by the frame scheduler and must happen on the
// control goroutine.
type Device interface {
	// CreateBuffer allocates a buffer.
	//
	// Parameters:
	//   - label: debug label
	//   - size: byte size
	//   - usage: usage class, selecting the backing arena semantics
	//   - kind: memory domain
	//
	// Returns:
	//   - Buffer: the allocation
	//   - error: a device error when memory is exhausted
	CreateBuffer(label string, size uint64, usage BufferUsage, kind MemoryKind) (Buffer, error)

	// CreateTexture allocates a texture with a default view.
	//
	// Parameters:
	//   - label: debug label
	//   - extent: pixel dimensions; must be non-zero
	//   - format: pixel format
	//   - usage: usage bitmask
	//
	// Returns:
	//   - Texture: the allocation
	//   - error: a device error when memory is exhausted
	CreateTexture(label string, extent common.Extent, format TextureFormat, usage TextureUsage) (Texture, error)

	// CreateBindGroupLayout creates a descriptor set layout from reflection
	// metadata. All entries must share the same set index.
	CreateBindGroupLayout(label string, entries []shader.Binding) (BindGroupLayout, error)

	// CreateBindGroup binds concrete resources against a layout.
	CreateBindGroup(label string, layout BindGroupLayout, resources []BindingResource) (BindGroup, error)

	// CreateRenderPipeline compiles a render pipeline.
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (Pipeline, error)

	// CreateFence creates a fence, optionally in the signaled state.
	CreateFence(label string, signaled bool) Fence

	// CreateSemaphore creates a GPU ordering token.
	CreateSemaphore(label string) Semaphore

	// CreateCommandEncoder opens a new command recording.
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Submit enqueues a command buffer for execution.
	//
	// Parameters:
	//   - cb: the finished recording; released by Submit
	//   - wait: semaphore the execution waits on, or nil
	//   - signal: semaphore signaled at completion, or nil
	//   - fence: fence signaled at completion, or nil
	//
	// Returns:
	//   - error: ErrDeviceLost if the device was lost
	Submit(cb CommandBuffer, wait, signal Semaphore, fence Fence) error

	// ConfigureSurface (re)configures the presentation surface to the given
	// extent. Invalidates previously acquired images.
	ConfigureSurface(extent common.Extent) error

	// SurfaceFormat returns the format the surface was configured with.
	SurfaceFormat() TextureFormat

	// AcquireImage obtains the next presentation image.
	//
	// Parameters:
	//   - timeout: maximum time to block for an image
	//
	// Returns:
	//   - SurfaceImage: the acquired image
	//   - error: ErrSurfaceOutdated when the surface needs reconfiguring,
	//     ErrDeviceLost when the device was lost, or a timeout error
	AcquireImage(timeout time.Duration) (SurfaceImage, error)

	// Present queues the image for display once the wait semaphore's
	// submission completes. The image is consumed.
	//
	// Parameters:
	//   - img: the acquired image to present
	//   - wait: semaphore guarding the rendering that produced the image
	//
	// Returns:
	//   - error: ErrSurfaceOutdated or ErrDeviceLost
	Present(img SurfaceImage, wait Semaphore) error

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle() error

	// Release destroys the device and all resources still alive on it.
	Release()
}
