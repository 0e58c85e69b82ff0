// Package graph records the fixed three-pass deferred pipeline: geometry
// into the G-buffer, an additive lighting resolve per light into an HDR
// target, and a tone-mapping post-process onto the surface image. The pass
// sequence and attachment formats are not configurable.
package graph

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"go.uber.org/zap"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/descriptor"
	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/frame"
	"github.com/Kalix-Works/helix-go/engine/light"
	"github.com/Kalix-Works/helix-go/engine/material"
	"github.com/Kalix-Works/helix-go/engine/mesh"
	"github.com/Kalix-Works/helix-go/engine/resource"
)

// blockStride is the spacing between uniform blocks packed into one
// allocation. Matches the device's minimum uniform offset alignment.
const blockStride = 256

// frameBlock mirrors the geometry shader's FrameData uniform.
type frameBlock struct {
	ViewProj [16]float32
}

// drawBlock mirrors the geometry shader's DrawData uniform.
type drawBlock struct {
	Model    [16]float32
	Albedo   [4]float32
	Material [4]float32 // x = metallic, y = roughness
}

// lightBlock mirrors the resolve shader's LightData uniform.
type lightBlock struct {
	InvViewProj [16]float32
	CameraPos   [4]float32
	VecA        [4]float32
	VecB        [4]float32
}

var (
	frameBlockSize = uint64(unsafe.Sizeof(frameBlock{}))
	drawBlockSize  = uint64(unsafe.Sizeof(drawBlock{}))
	lightBlockSize = uint64(unsafe.Sizeof(lightBlock{}))
)

// View is the per-frame camera state consumed by the pipeline.
type View struct {
	// ViewProj is the combined view-projection matrix, column-major.
	ViewProj [16]float32
	// InvViewProj is its inverse, used by the resolve pass to reconstruct
	// world positions from depth.
	InvViewProj [16]float32
	// CameraPos is the world-space camera position.
	CameraPos [3]float32
}

// Draw is one entry of the externally supplied draw list.
type Draw struct {
	// Mesh is the geometry to draw.
	Mesh *mesh.Mesh
	// Model is the object-to-world matrix, column-major. Non-uniform scale
	// skews normals; callers wanting correct shading keep scale uniform.
	Model [16]float32
	// Albedo is the base color.
	Albedo [4]float32
	// Metallic and Roughness are the material parameters in [0, 1].
	Metallic  float32
	Roughness float32
}

// Executor records one frame of the deferred pipeline into a command buffer.
//
// The executor is driven from the control goroutine; it is not safe for
// concurrent use. Draw-list uniform packing is parallelized internally.
type Executor interface {
	// Execute records the three passes for the given frame.
	//
	// Parameters:
	//   - f: the frame begun on the scheduler
	//   - view: the camera state
	//   - draws: the draw list
	//   - lights: the light list
	//
	// Returns:
	//   - device.CommandBuffer: the finished commands, ready to submit
	//   - common.FrameStats: recording statistics for the frame
	//   - error: descriptor.ErrPoolExhausted when a bind group pool runs
	//     out mid-frame, or a device or resource error; either way the
	//     frame must be aborted
	Execute(f *frame.Frame, view View, draws []Draw, lights []light.Light) (device.CommandBuffer, common.FrameStats, error)

	// Resize atomically replaces the G-buffer attachments at the new
	// extent. The old attachments are destroyed once in-flight frames
	// retire.
	//
	// Parameters:
	//   - extent: the new attachment size; must be non-zero
	//
	// Returns:
	//   - error: resource.ErrAllocationFailed if the device cannot back
	//     the new attachments; the old set stays active on failure
	Resize(extent common.Extent) error

	// Extent returns the current G-buffer extent.
	Extent() common.Extent

	// Release frees the pipelines and attachments. Only valid after the
	// device is idle.
	Release()
}

// slotUniforms is the per-frame-slot uniform storage. Each pipelined slot
// owns its own ranges so a recording frame never overwrites blocks a
// submitted frame still reads.
type slotUniforms struct {
	slot   int
	frame  resource.Handle
	draws  resource.Handle
	lights resource.Handle

	drawCap  int
	lightCap int

	drawScratch  []byte
	lightScratch []byte
}

type executor struct {
	dev   device.Device
	mgr   resource.Manager
	alloc descriptor.Allocator
	log   *zap.Logger

	pool    worker.DynamicWorkerPool
	workers int

	geometry material.Material
	lighting material.Material
	post     material.Material

	geometryInst *material.Instance
	lightingInst *material.Instance
	postInst     *material.Instance

	gbuf  *gBuffer
	slots []*slotUniforms
}

var _ Executor = &executor{}

func (e *executor) Execute(f *frame.Frame, view View, draws []Draw, lights []light.Light) (device.CommandBuffer, common.FrameStats, error) {
	stats := common.FrameStats{FrameIndex: f.Index, SlotIndex: f.Slot}

	su := e.slots[f.Slot]
	if err := e.ensureCapacity(su, len(draws), len(lights)); err != nil {
		return nil, stats, err
	}
	if err := e.uploadUniforms(su, view, draws, lights); err != nil {
		return nil, stats, err
	}

	enc, err := e.dev.CreateCommandEncoder(fmt.Sprintf("frame %d", f.Index))
	if err != nil {
		return nil, stats, err
	}

	start := time.Now()
	if err := e.recordGeometry(enc, su, draws, &stats); err != nil {
		return nil, stats, err
	}
	stats.GeometryCPU = time.Since(start)

	start = time.Now()
	if err := e.recordLighting(enc, su, lights, &stats); err != nil {
		return nil, stats, err
	}
	stats.LightingCPU = time.Since(start)

	start = time.Now()
	if err := e.recordPostProcess(enc, f, su); err != nil {
		return nil, stats, err
	}
	stats.PostProcessCPU = time.Since(start)

	cb, err := enc.Finish()
	if err != nil {
		return nil, stats, err
	}
	return cb, stats, nil
}

// ensureCapacity grows the slot's uniform ranges to fit the frame's lists.
// Old ranges are freed through the manager's deferred path, so frames still
// in flight keep reading valid memory.
func (e *executor) ensureCapacity(su *slotUniforms, draws, lights int) error {
	if draws > su.drawCap {
		newCap := su.drawCap
		for newCap < draws {
			newCap *= 2
		}
		h, err := e.mgr.Allocate(
			fmt.Sprintf("slot %d draw uniforms", su.slot),
			uint64(newCap)*blockStride,
			device.BufferUsageUniform, device.MemoryDeviceLocal,
		)
		if err != nil {
			return err
		}
		_ = e.mgr.Free(su.draws)
		su.draws = h
		su.drawCap = newCap
		e.log.Info("grew draw uniform range",
			zap.Int("slot", su.slot),
			zap.Int("capacity", newCap),
		)
	}
	if lights > su.lightCap {
		newCap := su.lightCap
		for newCap < lights {
			newCap *= 2
		}
		h, err := e.mgr.Allocate(
			fmt.Sprintf("slot %d light uniforms", su.slot),
			uint64(newCap)*blockStride,
			device.BufferUsageUniform, device.MemoryDeviceLocal,
		)
		if err != nil {
			return err
		}
		_ = e.mgr.Free(su.lights)
		su.lights = h
		su.lightCap = newCap
		e.log.Info("grew light uniform range",
			zap.Int("slot", su.slot),
			zap.Int("capacity", newCap),
		)
	}

	if need := draws * blockStride; cap(su.drawScratch) < need {
		su.drawScratch = make([]byte, need)
	}
	if need := lights * blockStride; cap(su.lightScratch) < need {
		su.lightScratch = make([]byte, need)
	}
	return nil
}

// uploadUniforms packs every uniform block for the frame and issues one
// write per range. Draw blocks are packed in parallel on the compute pool;
// lights are few enough to pack inline.
func (e *executor) uploadUniforms(su *slotUniforms, view View, draws []Draw, lights []light.Light) error {
	fb := frameBlock{ViewProj: view.ViewProj}
	if err := e.mgr.Write(su.frame, 0, common.StructToBytes(&fb)); err != nil {
		return err
	}

	if len(draws) > 0 {
		buf := su.drawScratch[:len(draws)*blockStride]
		e.packDraws(buf, draws)
		if err := e.mgr.Write(su.draws, 0, buf); err != nil {
			return err
		}
	}

	if len(lights) > 0 {
		buf := su.lightScratch[:len(lights)*blockStride]
		for i, l := range lights {
			vecA, vecB := l.GPUVectors()
			lb := lightBlock{
				InvViewProj: view.InvViewProj,
				CameraPos:   [4]float32{view.CameraPos[0], view.CameraPos[1], view.CameraPos[2], 0},
				VecA:        vecA,
				VecB:        vecB,
			}
			copy(buf[i*blockStride:], common.StructToBytes(&lb))
		}
		if err := e.mgr.Write(su.lights, 0, buf); err != nil {
			return err
		}
	}
	return nil
}

// packDraws fills buf with one drawBlock per draw at blockStride spacing.
// The work is split into contiguous ranges across the pool's workers; a
// WaitGroup provides the per-frame barrier since the pool itself runs on.
func (e *executor) packDraws(buf []byte, draws []Draw) {
	tasks := e.workers
	if tasks > len(draws) {
		tasks = len(draws)
	}
	if tasks <= 1 {
		for i := range draws {
			packDrawBlock(buf[i*blockStride:], &draws[i])
		}
		return
	}

	var wg sync.WaitGroup
	chunk := (len(draws) + tasks - 1) / tasks
	for t := 0; t < tasks; t++ {
		lo := t * chunk
		hi := lo + chunk
		if hi > len(draws) {
			hi = len(draws)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		e.pool.SubmitTask(worker.Task{
			ID: t,
			Do: func() (any, error) {
				defer wg.Done()
				for i := lo; i < hi; i++ {
					packDrawBlock(buf[i*blockStride:], &draws[i])
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func packDrawBlock(dst []byte, d *Draw) {
	b := drawBlock{
		Model:    d.Model,
		Albedo:   d.Albedo,
		Material: [4]float32{d.Metallic, d.Roughness, 0, 0},
	}
	copy(dst, common.StructToBytes(&b))
}

func (e *executor) recordGeometry(enc device.CommandEncoder, su *slotUniforms, draws []Draw, stats *common.FrameStats) error {
	pass, err := enc.BeginRenderPass(&device.RenderPassInfo{
		Label: "geometry",
		Colors: []device.ColorAttachmentInfo{
			{Texture: e.gbuf.albedoRough, Load: device.LoadOpClear},
			{Texture: e.gbuf.normalMetal, Load: device.LoadOpClear},
		},
		Depth: &device.DepthAttachmentInfo{
			Texture:    e.gbuf.depth,
			Load:       device.LoadOpClear,
			ClearDepth: 1.0,
		},
	})
	if err != nil {
		return err
	}
	defer pass.End()

	if len(draws) == 0 {
		return nil
	}
	pass.SetPipeline(e.geometry.Pipeline())

	frameBuf, frameOff, _, err := e.mgr.Binding(su.frame)
	if err != nil {
		return err
	}
	frameGroup, err := e.alloc.Allocate(su.slot, "frame data", e.geometryInst, 0, []descriptor.Resource{
		{Binding: 0, Buffer: frameBuf, Offset: frameOff, Size: frameBlockSize},
	})
	if err != nil {
		return fmt.Errorf("geometry frame bind group: %w", err)
	}
	pass.SetBindGroup(0, frameGroup)

	drawBuf, drawOff, _, err := e.mgr.Binding(su.draws)
	if err != nil {
		return err
	}
	for i := range draws {
		d := &draws[i]
		group, err := e.alloc.Allocate(su.slot, "draw data", e.geometryInst, 1, []descriptor.Resource{
			{
				Binding: 0,
				Buffer:  drawBuf,
				Offset:  drawOff + uint64(i)*blockStride,
				Size:    drawBlockSize,
			},
		})
		if err != nil {
			return fmt.Errorf("draw %d of %d bind group: %w", i, len(draws), err)
		}
		pass.SetBindGroup(1, group)

		vbuf, voff, _, err := e.mgr.Binding(d.Mesh.Vertices())
		if err != nil {
			return fmt.Errorf("draw %d vertex range: %w", i, err)
		}
		ibuf, ioff, _, err := e.mgr.Binding(d.Mesh.Indices())
		if err != nil {
			return fmt.Errorf("draw %d index range: %w", i, err)
		}
		pass.SetVertexBuffer(0, vbuf, voff)
		pass.SetIndexBuffer(ibuf, ioff)
		pass.DrawIndexed(d.Mesh.IndexCount(), 0)
		stats.DrawCount++
	}
	return nil
}

func (e *executor) recordLighting(enc device.CommandEncoder, su *slotUniforms, lights []light.Light, stats *common.FrameStats) error {
	pass, err := enc.BeginRenderPass(&device.RenderPassInfo{
		Label: "lighting",
		Colors: []device.ColorAttachmentInfo{
			{Texture: e.gbuf.hdr, Load: device.LoadOpClear},
		},
	})
	if err != nil {
		return err
	}
	defer pass.End()

	if len(lights) == 0 {
		return nil
	}
	pass.SetPipeline(e.lighting.Pipeline())

	lightBuf, lightOff, _, err := e.mgr.Binding(su.lights)
	if err != nil {
		return err
	}
	for i := range lights {
		group, err := e.alloc.Allocate(su.slot, "light resolve", e.lightingInst, 0, []descriptor.Resource{
			{Binding: 0, Texture: e.gbuf.albedoRough},
			{Binding: 1, Texture: e.gbuf.normalMetal},
			{Binding: 2, Texture: e.gbuf.depth},
			{
				Binding: 3,
				Buffer:  lightBuf,
				Offset:  lightOff + uint64(i)*blockStride,
				Size:    lightBlockSize,
			},
		})
		if err != nil {
			return fmt.Errorf("light %d of %d bind group: %w", i, len(lights), err)
		}
		pass.SetBindGroup(0, group)
		pass.Draw(3)
		stats.LightCount++
	}
	return nil
}

func (e *executor) recordPostProcess(enc device.CommandEncoder, f *frame.Frame, su *slotUniforms) error {
	pass, err := enc.BeginRenderPass(&device.RenderPassInfo{
		Label: "post-process",
		Colors: []device.ColorAttachmentInfo{
			{Surface: f.Image, Load: device.LoadOpClear, Clear: [4]float64{0, 0, 0, 1}},
		},
	})
	if err != nil {
		return err
	}
	defer pass.End()

	group, err := e.alloc.Allocate(su.slot, "tonemap", e.postInst, 0, []descriptor.Resource{
		{Binding: 0, Texture: e.gbuf.hdr},
	})
	if err != nil {
		return fmt.Errorf("tonemap bind group: %w", err)
	}
	pass.SetPipeline(e.post.Pipeline())
	pass.SetBindGroup(0, group)
	pass.Draw(3)
	return nil
}

func (e *executor) Resize(extent common.Extent) error {
	if extent == e.gbuf.extent {
		return nil
	}
	next, err := newGBuffer(e.mgr, extent)
	if err != nil {
		return err
	}
	e.gbuf.deferRelease(e.mgr)
	e.gbuf = next
	e.log.Info("recreated gbuffer",
		zap.Uint32("width", extent.Width),
		zap.Uint32("height", extent.Height),
	)
	return nil
}

func (e *executor) Extent() common.Extent { return e.gbuf.extent }

func (e *executor) Release() {
	e.pool.Stop()
	e.geometry.Release()
	e.lighting.Release()
	e.post.Release()
	e.gbuf.releaseCreated()
	for _, su := range e.slots {
		_ = e.mgr.Free(su.frame)
		_ = e.mgr.Free(su.draws)
		_ = e.mgr.Free(su.lights)
	}
}
