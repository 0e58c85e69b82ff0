// Package devicetest provides an in-memory device.Device for tests. It
// records every creation, submission and release, and exposes knobs to
// script allocation failures, acquisition outcomes and submission
// completion, so frame pacing and destruction ordering can be tested
// without a GPU.
package devicetest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/shader"
)

// ErrScriptedTimeout is returned by AcquireImage for outcomes scripted with
// ScriptAcquireTimeout.
var ErrScriptedTimeout = errors.New("devicetest: scripted acquire timeout")

// ErrScriptedAllocFailure is returned by CreateBuffer and CreateTexture for
// allocations scripted to fail.
var ErrScriptedAllocFailure = errors.New("devicetest: scripted allocation failure")

type acquireOutcome int

const (
	acquireOK acquireOutcome = iota
	acquireOutdated
	acquireTimeout
	acquireLost
)

// Submission records one Submit call.
type Submission struct {
	// Index is the 0-based submission order.
	Index int
	// WaitLabel and SignalLabel are the semaphore labels, or "".
	WaitLabel, SignalLabel string
	// Fence is the fence passed to Submit, or nil.
	Fence *Fence
	// Passes are the render passes recorded into the submitted buffer.
	Passes []*PassRecord
}

// PassRecord captures one render pass recorded through the fake.
type PassRecord struct {
	// Label is the pass label.
	Label string
	// ColorTargets are the labels of the color attachments in order.
	ColorTargets []string
	// DepthTarget is the depth attachment label, or "".
	DepthTarget string
	// Draws is the number of draw calls issued.
	Draws int
	// BindGroupSets counts SetBindGroup calls.
	BindGroupSets int
}

// Device is a fake device.Device.
//
// Completion model: submissions are pending until completed. By default a
// fence Wait completes every submission up to and including the fence's own,
// mimicking a GPU that catches up when the CPU blocks. Set ManualCompletion
// to require explicit CompleteNext calls, in which case Wait on a pending
// fence fails.
type Device struct {
	mu sync.Mutex

	// ManualCompletion disables implicit completion on fence waits.
	ManualCompletion bool

	// FailNextBuffers makes the next N CreateBuffer calls fail.
	FailNextBuffers int
	// FailNextTextures makes the next N CreateTexture calls fail.
	FailNextTextures int

	surfaceExtent common.Extent
	lost          bool

	acquireScript []acquireOutcome
	acquired      int

	submissions []*Submission
	pending     []*Submission

	buffers  []*Buffer
	textures []*Texture
}

var _ device.Device = &Device{}

// New creates a fake device presenting a surface of the given extent.
func New(extent common.Extent) *Device {
	return &Device{surfaceExtent: extent}
}

// ScriptAcquireOutdated queues n acquire attempts that fail with
// device.ErrSurfaceOutdated.
func (d *Device) ScriptAcquireOutdated(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.acquireScript = append(d.acquireScript, acquireOutdated)
	}
}

// ScriptAcquireTimeout queues n acquire attempts that fail with
// ErrScriptedTimeout.
func (d *Device) ScriptAcquireTimeout(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.acquireScript = append(d.acquireScript, acquireTimeout)
	}
}

// SetLost marks the device lost. All subsequent operations fail with
// device.ErrDeviceLost.
func (d *Device) SetLost() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lost = true
}

// CompleteNext completes the oldest pending submission, signaling its fence.
// Returns false if nothing is pending.
func (d *Device) CompleteNext() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completeNextLocked()
}

// CompleteAll completes every pending submission.
func (d *Device) CompleteAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.completeNextLocked() {
	}
}

func (d *Device) completeNextLocked() bool {
	if len(d.pending) == 0 {
		return false
	}
	s := d.pending[0]
	d.pending = d.pending[1:]
	if s.Fence != nil {
		s.Fence.signal()
	}
	return true
}

// PendingSubmissions reports how many submissions have not completed.
func (d *Device) PendingSubmissions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Submissions returns every recorded submission in order.
func (d *Device) Submissions() []*Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Submission, len(d.submissions))
	copy(out, d.submissions)
	return out
}

// AliveBuffers counts buffers that have been created and not released.
func (d *Device) AliveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, b := range d.buffers {
		if !b.released {
			n++
		}
	}
	return n
}

// AliveTextures counts textures that have been created and not released.
func (d *Device) AliveTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, t := range d.textures {
		if !t.released {
			n++
		}
	}
	return n
}

// BufferByLabel returns the first non-released buffer with the given label,
// or nil.
func (d *Device) BufferByLabel(label string) *Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range d.buffers {
		if b.label == label && !b.released {
			return b
		}
	}
	return nil
}

func (d *Device) CreateBuffer(label string, size uint64, usage device.BufferUsage, kind device.MemoryKind) (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return nil, device.ErrDeviceLost
	}
	if d.FailNextBuffers > 0 {
		d.FailNextBuffers--
		return nil, fmt.Errorf("%w: buffer %q", ErrScriptedAllocFailure, label)
	}
	b := &Buffer{
		label: label,
		size:  size,
		usage: usage,
		kind:  kind,
		data:  make([]byte, size),
	}
	d.buffers = append(d.buffers, b)
	return b, nil
}

func (d *Device) CreateTexture(label string, extent common.Extent, format device.TextureFormat, usage device.TextureUsage) (device.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return nil, device.ErrDeviceLost
	}
	if d.FailNextTextures > 0 {
		d.FailNextTextures--
		return nil, fmt.Errorf("%w: texture %q", ErrScriptedAllocFailure, label)
	}
	t := &Texture{label: label, extent: extent, format: format, usage: usage}
	d.textures = append(d.textures, t)
	return t, nil
}

func (d *Device) CreateBindGroupLayout(label string, entries []shader.Binding) (device.BindGroupLayout, error) {
	if d.isLost() {
		return nil, device.ErrDeviceLost
	}
	dup := make([]shader.Binding, len(entries))
	copy(dup, entries)
	return &BindGroupLayout{label: label, Entries: dup}, nil
}

func (d *Device) CreateBindGroup(label string, layout device.BindGroupLayout, resources []device.BindingResource) (device.BindGroup, error) {
	if d.isLost() {
		return nil, device.ErrDeviceLost
	}
	dup := make([]device.BindingResource, len(resources))
	copy(dup, resources)
	return &BindGroup{label: label, Layout: layout.(*BindGroupLayout), Resources: dup}, nil
}

func (d *Device) CreateRenderPipeline(desc *device.RenderPipelineDescriptor) (device.Pipeline, error) {
	if d.isLost() {
		return nil, device.ErrDeviceLost
	}
	return &Pipeline{Desc: *desc}, nil
}

func (d *Device) CreateFence(label string, signaled bool) device.Fence {
	return &Fence{dev: d, label: label, signaled: signaled}
}

func (d *Device) CreateSemaphore(label string) device.Semaphore {
	return semaphore(label)
}

func (d *Device) CreateCommandEncoder(label string) (device.CommandEncoder, error) {
	if d.isLost() {
		return nil, device.ErrDeviceLost
	}
	return &CommandEncoder{label: label}, nil
}

func (d *Device) Submit(cb device.CommandBuffer, wait, signal device.Semaphore, fence device.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return device.ErrDeviceLost
	}

	s := &Submission{Index: len(d.submissions)}
	if wait != nil {
		s.WaitLabel = wait.Label()
	}
	if signal != nil {
		s.SignalLabel = signal.Label()
	}
	if fence != nil {
		f := fence.(*Fence)
		f.markPending(s)
		s.Fence = f
	}
	if fcb, ok := cb.(*CommandBuffer); ok {
		s.Passes = fcb.Passes
	}
	d.submissions = append(d.submissions, s)
	d.pending = append(d.pending, s)
	return nil
}

func (d *Device) ConfigureSurface(extent common.Extent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return device.ErrDeviceLost
	}
	if extent.IsZero() {
		return fmt.Errorf("cannot configure surface to zero extent")
	}
	d.surfaceExtent = extent
	return nil
}

func (d *Device) SurfaceFormat() device.TextureFormat {
	return device.FormatSurface
}

func (d *Device) AcquireImage(timeout time.Duration) (device.SurfaceImage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return nil, device.ErrDeviceLost
	}

	outcome := acquireOK
	if len(d.acquireScript) > 0 {
		outcome = d.acquireScript[0]
		d.acquireScript = d.acquireScript[1:]
	}
	switch outcome {
	case acquireOutdated:
		return nil, device.ErrSurfaceOutdated
	case acquireTimeout:
		return nil, ErrScriptedTimeout
	case acquireLost:
		d.lost = true
		return nil, device.ErrDeviceLost
	}
	d.acquired++
	return &SurfaceImage{index: d.acquired - 1, extent: d.surfaceExtent}, nil
}

func (d *Device) Present(img device.SurfaceImage, wait device.Semaphore) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return device.ErrDeviceLost
	}
	img.(*SurfaceImage).presented = true
	return nil
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return device.ErrDeviceLost
	}
	for d.completeNextLocked() {
	}
	return nil
}

func (d *Device) Release() {}

func (d *Device) isLost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

// Buffer is the fake buffer. Data written through Write or a mapping is
// retained for assertions.
type Buffer struct {
	mu       sync.Mutex
	label    string
	size     uint64
	usage    device.BufferUsage
	kind     device.MemoryKind
	data     []byte
	released bool
	writes   int
}

var _ device.Buffer = &Buffer{}

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Writes reports how many Write calls the buffer received.
func (b *Buffer) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// Released reports whether Release has been called.
func (b *Buffer) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

func (b *Buffer) Write(offset uint64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.data[offset:], data)
	b.writes++
}

func (b *Buffer) Map() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.kind != device.MemoryHostVisible {
		return nil, device.ErrNotMappable
	}
	return b.data, nil
}

func (b *Buffer) Unmap() {}

func (b *Buffer) Size() uint64 { return b.size }

func (b *Buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
}

// Texture is the fake texture.
type Texture struct {
	mu       sync.Mutex
	label    string
	extent   common.Extent
	format   device.TextureFormat
	usage    device.TextureUsage
	released bool
}

var _ device.Texture = &Texture{}

// Label returns the creation label.
func (t *Texture) Label() string { return t.label }

// Released reports whether Release has been called.
func (t *Texture) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

func (t *Texture) Extent() common.Extent { return t.extent }

func (t *Texture) Format() device.TextureFormat { return t.format }

func (t *Texture) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.released = true
}

// Fence is the fake fence. Unless the device uses manual completion, Wait
// completes submissions up to and including the fence's own.
type Fence struct {
	dev   *Device
	label string

	mu       sync.Mutex
	signaled bool
	sub      *Submission
}

var _ device.Fence = &Fence{}

func (f *Fence) markPending(s *Submission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signaled = false
	f.sub = s
}

func (f *Fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signaled = true
	f.sub = nil
}

func (f *Fence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	if f.signaled {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	f.dev.mu.Lock()
	if f.dev.lost {
		f.dev.mu.Unlock()
		return device.ErrDeviceLost
	}
	if f.dev.ManualCompletion {
		f.dev.mu.Unlock()
		return fmt.Errorf("fence %q wait timed out after %v", f.label, timeout)
	}
	for !f.Signaled() {
		if !f.dev.completeNextLocked() {
			break
		}
	}
	f.dev.mu.Unlock()

	if !f.Signaled() {
		return fmt.Errorf("fence %q has no pending submission", f.label)
	}
	return nil
}

func (f *Fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

func (f *Fence) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signaled = false
	f.sub = nil
}

type semaphore string

var _ device.Semaphore = semaphore("")

func (s semaphore) Label() string { return string(s) }

// BindGroupLayout is the fake layout, retaining its entries for assertions.
type BindGroupLayout struct {
	label   string
	Entries []shader.Binding
}

var _ device.BindGroupLayout = &BindGroupLayout{}

func (l *BindGroupLayout) Release() {}

// BindGroup is the fake bind group, retaining its resources for assertions.
type BindGroup struct {
	label     string
	Layout    *BindGroupLayout
	Resources []device.BindingResource
}

var _ device.BindGroup = &BindGroup{}

func (g *BindGroup) Release() {}

// Pipeline is the fake pipeline, retaining its descriptor for assertions.
type Pipeline struct {
	Desc device.RenderPipelineDescriptor
}

var _ device.Pipeline = &Pipeline{}

func (p *Pipeline) Release() {}

// CommandBuffer carries the recorded passes to Submit.
type CommandBuffer struct {
	Passes []*PassRecord
}

var _ device.CommandBuffer = &CommandBuffer{}

func (c *CommandBuffer) Release() {}

// CommandEncoder is the fake encoder.
type CommandEncoder struct {
	label  string
	passes []*PassRecord
}

var _ device.CommandEncoder = &CommandEncoder{}

func (e *CommandEncoder) BeginRenderPass(info *device.RenderPassInfo) (device.RenderPass, error) {
	rec := &PassRecord{Label: info.Label}
	for _, c := range info.Colors {
		switch {
		case c.Texture != nil:
			rec.ColorTargets = append(rec.ColorTargets, c.Texture.(*Texture).label)
		case c.Surface != nil:
			rec.ColorTargets = append(rec.ColorTargets, "surface")
		}
	}
	if info.Depth != nil {
		rec.DepthTarget = info.Depth.Texture.(*Texture).label
	}
	e.passes = append(e.passes, rec)
	return &renderPass{rec: rec}, nil
}

func (e *CommandEncoder) Finish() (device.CommandBuffer, error) {
	return &CommandBuffer{Passes: e.passes}, nil
}

type renderPass struct {
	rec   *PassRecord
	ended bool
}

var _ device.RenderPass = &renderPass{}

func (p *renderPass) SetPipeline(device.Pipeline) {}

func (p *renderPass) SetBindGroup(index uint32, group device.BindGroup) {
	p.rec.BindGroupSets++
}

func (p *renderPass) SetVertexBuffer(slot uint32, buf device.Buffer, offset uint64) {}

func (p *renderPass) SetIndexBuffer(buf device.Buffer, offset uint64) {}

func (p *renderPass) DrawIndexed(indexCount, firstIndex uint32) {
	p.rec.Draws++
}

func (p *renderPass) Draw(vertexCount uint32) {
	p.rec.Draws++
}

func (p *renderPass) End() {
	p.ended = true
}

// SurfaceImage is the fake acquired image.
type SurfaceImage struct {
	index     int
	extent    common.Extent
	presented bool
}

var _ device.SurfaceImage = &SurfaceImage{}

// Presented reports whether the image was handed to Present.
func (s *SurfaceImage) Presented() bool { return s.presented }

func (s *SurfaceImage) Extent() common.Extent { return s.extent }

func (s *SurfaceImage) Release() {}
