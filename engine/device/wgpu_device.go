package device

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/shader"
)

// wgpuDevice implements Device on top of WebGPU.
//
// WebGPU exposes a single in-order queue and hides swapchain synchronization,
// so some primitives are emulated rather than mapped one-to-one:
//   - Fences complete via a blocking device poll, which waits for all work
//     submitted up to that point. That is a superset of the fence's own
//     submission, which is correct but conservative.
//   - Semaphores are pure ordering tokens. Queue submission order already
//     provides the ordering they express, so they carry no device state.
//   - Host-visible buffers keep a host shadow that Unmap flushes through a
//     queue write.
type wgpuDevice struct {
	mu sync.Mutex

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat wgpu.TextureFormat
	surfaceExtent common.Extent

	lost atomic.Bool
}

var _ Device = &wgpuDevice{}

// NewWGPU creates a Device backed by WebGPU, rendering to the surface
// described by surfaceDescriptor. The caller's goroutine is locked to its OS
// thread for the lifetime of the device, as required by the windowing layer.
//
// Parameters:
//   - surfaceDescriptor: platform surface obtained from the window layer
//   - forceFallbackAdapter: request the software fallback adapter
//
// Returns:
//   - Device: the device
//   - error: an error if no adapter or device is available
func NewWGPU(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) (Device, error) {
	runtime.LockOSThread()
	d := &wgpuDevice{
		instance: wgpu.CreateInstance(nil),
	}
	d.surface = d.instance.CreateSurface(surfaceDescriptor)

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = adapter

	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	return d, nil
}

func (d *wgpuDevice) textureFormat(f TextureFormat) wgpu.TextureFormat {
	switch f {
	case FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case FormatDepth24Plus:
		return wgpu.TextureFormatDepth24Plus
	case FormatSurface:
		return d.surfaceFormat
	default:
		return wgpu.TextureFormatUndefined
	}
}

func (d *wgpuDevice) CreateBuffer(label string, size uint64, usage BufferUsage, kind MemoryKind) (Buffer, error) {
	var wu wgpu.BufferUsage
	switch usage {
	case BufferUsageVertex:
		wu = wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	case BufferUsageIndex:
		wu = wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	case BufferUsageUniform:
		wu = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	case BufferUsageStaging:
		wu = wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	default:
		return nil, fmt.Errorf("unknown buffer usage %d", usage)
	}

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wu,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s buffer %q: %w", usage, label, err)
	}

	b := &wgpuBuffer{
		buf:   buf,
		queue: d.queue,
		size:  size,
	}
	if kind == MemoryHostVisible {
		b.shadow = make([]byte, size)
	}
	return b, nil
}

func (d *wgpuDevice) CreateTexture(label string, extent common.Extent, format TextureFormat, usage TextureUsage) (Texture, error) {
	var wu wgpu.TextureUsage
	if usage&TextureUsageRenderAttachment != 0 {
		wu |= wgpu.TextureUsageRenderAttachment
	}
	if usage&TextureUsageSampled != 0 {
		wu |= wgpu.TextureUsageTextureBinding
	}

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              extent.Width,
			Height:             extent.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        d.textureFormat(format),
		Usage:         wu,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %q: %w", label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create view for texture %q: %w", label, err)
	}

	return &wgpuTexture{tex: tex, view: view, extent: extent, format: format}, nil
}

func (d *wgpuDevice) CreateBindGroupLayout(label string, entries []shader.Binding) (BindGroupLayout, error) {
	layoutEntries := make([]wgpu.BindGroupLayoutEntry, len(entries))
	for i, e := range entries {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    e.Binding,
			Visibility: stageVisibility(e.Stages),
		}
		switch e.Kind {
		case shader.KindUniformBuffer:
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		case shader.KindStorageBuffer:
			entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		case shader.KindSampledImage, shader.KindCombinedImageSampler:
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
			if e.Depth {
				entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
			} else {
				entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			}
		default:
			return nil, fmt.Errorf("unknown binding kind %d at (set unknown, binding %d)", e.Kind, e.Binding)
		}
		layoutEntries[i] = entry
	}

	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: layoutEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group layout %q: %w", label, err)
	}
	return &wgpuBindGroupLayout{layout: layout}, nil
}

func (d *wgpuDevice) CreateBindGroup(label string, layout BindGroupLayout, resources []BindingResource) (BindGroup, error) {
	wl, ok := layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("bind group layout %q was not created by this device", label)
	}

	entries := make([]wgpu.BindGroupEntry, len(resources))
	for i, r := range resources {
		switch {
		case r.Buffer != nil:
			size := r.Size
			if size == 0 {
				size = wgpu.WholeSize
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding: r.Binding,
				Buffer:  r.Buffer.(*wgpuBuffer).buf,
				Offset:  r.Offset,
				Size:    size,
			}
		case r.Texture != nil:
			entries[i] = wgpu.BindGroupEntry{
				Binding:     r.Binding,
				TextureView: r.Texture.(*wgpuTexture).view,
			}
		default:
			return nil, fmt.Errorf("binding %d of %q has no resource", r.Binding, label)
		}
	}

	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  wl.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %q: %w", label, err)
	}
	return &wgpuBindGroup{group: group}, nil
}

func (d *wgpuDevice) CreateRenderPipeline(desc *RenderPipelineDescriptor) (Pipeline, error) {
	vs, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Vertex.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: desc.Vertex.Source},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile vertex module %q: %w", desc.Vertex.Label, err)
	}
	defer vs.Release()

	fs, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Fragment.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: desc.Fragment.Source},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile fragment module %q: %w", desc.Fragment.Label, err)
	}
	defer fs.Release()

	layouts := make([]*wgpu.BindGroupLayout, len(desc.Layouts))
	for i, l := range desc.Layouts {
		layouts[i] = l.(*wgpuBindGroupLayout).layout
	}
	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label + " Layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline layout %q: %w", desc.Label, err)
	}
	defer pipelineLayout.Release()

	var blend *wgpu.BlendState
	if desc.Blend == BlendAdditive {
		blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}
	targets := make([]wgpu.ColorTargetState, len(desc.ColorFormats))
	for i, f := range desc.ColorFormats {
		targets[i] = wgpu.ColorTargetState{
			Format:    d.textureFormat(f),
			Blend:     blend,
			WriteMask: wgpu.ColorWriteMaskAll,
		}
	}

	var vertexBuffers []wgpu.VertexBufferLayout
	cullMode := wgpu.CullModeNone
	if desc.VertexInput == VertexLayoutMesh {
		cullMode = wgpu.CullModeBack
		vertexBuffers = []wgpu.VertexBufferLayout{{
			ArrayStride: 32, // vec3 position + vec3 normal + vec2 uv
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
				{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
			},
		}}
	}

	var depthStencil *wgpu.DepthStencilState
	if desc.HasDepth {
		depthStencil = &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    vertexBuffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline %q: %w", desc.Label, err)
	}
	return &wgpuPipeline{pipeline: created}, nil
}

func (d *wgpuDevice) CreateFence(label string, signaled bool) Fence {
	return &wgpuFence{d: d, label: label, signaled: signaled}
}

func (d *wgpuDevice) CreateSemaphore(label string) Semaphore {
	return &wgpuSemaphore{label: label}
}

func (d *wgpuDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder %q: %w", label, err)
	}
	return &wgpuCommandEncoder{enc: enc}, nil
}

func (d *wgpuDevice) Submit(cb CommandBuffer, wait, signal Semaphore, fence Fence) error {
	if d.lost.Load() {
		return ErrDeviceLost
	}
	// wait and signal express ordering that the single in-order queue
	// already guarantees; nothing to program.
	_ = wait
	_ = signal

	wcb := cb.(*wgpuCommandBuffer)
	d.queue.Submit(wcb.cb)
	wcb.Release()

	if fence != nil {
		fence.(*wgpuFence).markPending()
	}
	return nil
}

func (d *wgpuDevice) ConfigureSurface(extent common.Extent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if extent.IsZero() {
		return fmt.Errorf("cannot configure surface to zero extent %dx%d", extent.Width, extent.Height)
	}

	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]

	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       extent.Width,
		Height:      extent.Height,
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	d.surfaceExtent = extent
	return nil
}

func (d *wgpuDevice) SurfaceFormat() TextureFormat {
	return FormatSurface
}

func (d *wgpuDevice) AcquireImage(timeout time.Duration) (SurfaceImage, error) {
	if d.lost.Load() {
		return nil, ErrDeviceLost
	}
	// WebGPU blocks internally until an image is available; the timeout is
	// enforced by the emulated path only when the surface reports failure.
	_ = timeout

	tex, err := d.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSurfaceOutdated, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("%w: %v", ErrSurfaceOutdated, err)
	}
	return &wgpuSurfaceImage{tex: tex, view: view, extent: d.surfaceExtent}, nil
}

func (d *wgpuDevice) Present(img SurfaceImage, wait Semaphore) error {
	if d.lost.Load() {
		return ErrDeviceLost
	}
	_ = wait // presentation follows queue order

	si := img.(*wgpuSurfaceImage)
	d.surface.Present()
	si.Release()
	return nil
}

func (d *wgpuDevice) WaitIdle() error {
	if d.lost.Load() {
		return ErrDeviceLost
	}
	d.device.Poll(true, nil)
	return nil
}

func (d *wgpuDevice) Release() {
	d.queue.Release()
	d.device.Release()
	d.surface.Release()
	d.adapter.Release()
	d.instance.Release()
}

func stageVisibility(s shader.Stage) wgpu.ShaderStage {
	var v wgpu.ShaderStage
	if s.Has(shader.StageVertex) {
		v |= wgpu.ShaderStageVertex
	}
	if s.Has(shader.StageFragment) {
		v |= wgpu.ShaderStageFragment
	}
	if s.Has(shader.StageCompute) {
		v |= wgpu.ShaderStageCompute
	}
	return v
}

// wgpuBuffer implements Buffer. Host-visible buffers carry a host shadow
// that Unmap flushes through the queue.
type wgpuBuffer struct {
	buf   *wgpu.Buffer
	queue *wgpu.Queue
	size  uint64

	shadow []byte
	mapped bool
}

var _ Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Write(offset uint64, data []byte) {
	// Keep the shadow coherent: suballocations share one buffer, and a
	// sibling's Unmap flushes the whole shadow over the device bytes.
	if b.shadow != nil {
		copy(b.shadow[offset:], data)
	}
	b.queue.WriteBuffer(b.buf, offset, data)
}

func (b *wgpuBuffer) Map() ([]byte, error) {
	if b.shadow == nil {
		return nil, ErrNotMappable
	}
	b.mapped = true
	return b.shadow, nil
}

func (b *wgpuBuffer) Unmap() {
	if !b.mapped {
		return
	}
	b.mapped = false
	b.queue.WriteBuffer(b.buf, 0, b.shadow)
}

func (b *wgpuBuffer) Size() uint64 {
	return b.size
}

func (b *wgpuBuffer) Release() {
	b.buf.Release()
	b.shadow = nil
}

// wgpuTexture implements Texture, holding the texture and its default view.
type wgpuTexture struct {
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	extent common.Extent
	format TextureFormat
}

var _ Texture = &wgpuTexture{}

func (t *wgpuTexture) Extent() common.Extent { return t.extent }

func (t *wgpuTexture) Format() TextureFormat { return t.format }

func (t *wgpuTexture) Release() {
	t.view.Release()
	t.tex.Release()
}

// wgpuFence implements Fence by waiting for the queue to drain. The queue is
// in-order, so draining implies the fence's own submission has completed.
type wgpuFence struct {
	d     *wgpuDevice
	label string

	mu       sync.Mutex
	signaled bool
	pending  bool
}

var _ Fence = &wgpuFence{}

func (f *wgpuFence) markPending() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = true
	f.signaled = false
}

func (f *wgpuFence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		return nil
	}
	if f.d.lost.Load() {
		return ErrDeviceLost
	}
	_ = timeout // the blocking poll has no timeout parameter

	f.d.device.Poll(true, nil)
	f.signaled = true
	f.pending = false
	return nil
}

func (f *wgpuFence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

func (f *wgpuFence) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signaled = false
	f.pending = false
}

// wgpuSemaphore is an ordering token with no device state; the in-order
// queue provides the ordering it names.
type wgpuSemaphore struct {
	label string
}

var _ Semaphore = &wgpuSemaphore{}

func (s *wgpuSemaphore) Label() string { return s.label }

type wgpuBindGroupLayout struct {
	layout *wgpu.BindGroupLayout
}

var _ BindGroupLayout = &wgpuBindGroupLayout{}

func (l *wgpuBindGroupLayout) Release() { l.layout.Release() }

type wgpuBindGroup struct {
	group *wgpu.BindGroup
}

var _ BindGroup = &wgpuBindGroup{}

func (g *wgpuBindGroup) Release() { g.group.Release() }

type wgpuPipeline struct {
	pipeline *wgpu.RenderPipeline
}

var _ Pipeline = &wgpuPipeline{}

func (p *wgpuPipeline) Release() { p.pipeline.Release() }

type wgpuCommandBuffer struct {
	cb *wgpu.CommandBuffer
}

var _ CommandBuffer = &wgpuCommandBuffer{}

func (c *wgpuCommandBuffer) Release() { c.cb.Release() }

type wgpuSurfaceImage struct {
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	extent common.Extent
}

var _ SurfaceImage = &wgpuSurfaceImage{}

func (s *wgpuSurfaceImage) Extent() common.Extent { return s.extent }

func (s *wgpuSurfaceImage) Release() {
	s.view.Release()
	s.tex.Release()
}

// wgpuCommandEncoder implements CommandEncoder.
type wgpuCommandEncoder struct {
	enc *wgpu.CommandEncoder
}

var _ CommandEncoder = &wgpuCommandEncoder{}

func (e *wgpuCommandEncoder) BeginRenderPass(info *RenderPassInfo) (RenderPass, error) {
	colors := make([]wgpu.RenderPassColorAttachment, len(info.Colors))
	for i, c := range info.Colors {
		var view *wgpu.TextureView
		switch {
		case c.Texture != nil:
			view = c.Texture.(*wgpuTexture).view
		case c.Surface != nil:
			view = c.Surface.(*wgpuSurfaceImage).view
		default:
			return nil, fmt.Errorf("color attachment %d of pass %q has no target", i, info.Label)
		}

		loadOp := wgpu.LoadOpClear
		if c.Load == LoadOpLoad {
			loadOp = wgpu.LoadOpLoad
		}
		colors[i] = wgpu.RenderPassColorAttachment{
			View:    view,
			LoadOp:  loadOp,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: c.Clear[0], G: c.Clear[1], B: c.Clear[2], A: c.Clear[3],
			},
		}
	}

	var depth *wgpu.RenderPassDepthStencilAttachment
	if info.Depth != nil {
		loadOp := wgpu.LoadOpClear
		if info.Depth.Load == LoadOpLoad {
			loadOp = wgpu.LoadOpLoad
		}
		depth = &wgpu.RenderPassDepthStencilAttachment{
			View:            info.Depth.Texture.(*wgpuTexture).view,
			DepthLoadOp:     loadOp,
			DepthStoreOp:    wgpu.StoreOpStore, // depth is sampled by the resolve pass
			DepthClearValue: info.Depth.ClearDepth,
		}
	}

	pass := e.enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:                  info.Label,
		ColorAttachments:       colors,
		DepthStencilAttachment: depth,
	})
	return &wgpuRenderPass{pass: pass}, nil
}

func (e *wgpuCommandEncoder) Finish() (CommandBuffer, error) {
	cb, err := e.enc.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to finish command encoder: %w", err)
	}
	e.enc.Release()
	return &wgpuCommandBuffer{cb: cb}, nil
}

// wgpuRenderPass implements RenderPass over a render pass encoder.
type wgpuRenderPass struct {
	pass *wgpu.RenderPassEncoder
}

var _ RenderPass = &wgpuRenderPass{}

func (p *wgpuRenderPass) SetPipeline(pipe Pipeline) {
	p.pass.SetPipeline(pipe.(*wgpuPipeline).pipeline)
}

func (p *wgpuRenderPass) SetBindGroup(index uint32, group BindGroup) {
	p.pass.SetBindGroup(index, group.(*wgpuBindGroup).group, nil)
}

func (p *wgpuRenderPass) SetVertexBuffer(slot uint32, buf Buffer, offset uint64) {
	b := buf.(*wgpuBuffer)
	p.pass.SetVertexBuffer(slot, b.buf, offset, wgpu.WholeSize)
}

func (p *wgpuRenderPass) SetIndexBuffer(buf Buffer, offset uint64) {
	b := buf.(*wgpuBuffer)
	p.pass.SetIndexBuffer(b.buf, wgpu.IndexFormatUint32, offset, wgpu.WholeSize)
}

func (p *wgpuRenderPass) DrawIndexed(indexCount, firstIndex uint32) {
	p.pass.DrawIndexed(indexCount, 1, firstIndex, 0, 0)
}

func (p *wgpuRenderPass) Draw(vertexCount uint32) {
	p.pass.Draw(vertexCount, 1, 0, 0)
}

func (p *wgpuRenderPass) End() {
	p.pass.End()
	p.pass.Release()
}
