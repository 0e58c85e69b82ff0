package graph

import (
	"fmt"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"go.uber.org/zap"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/descriptor"
	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/material"
	"github.com/Kalix-Works/helix-go/engine/resource"
	"github.com/Kalix-Works/helix-go/engine/shader"
)

const (
	// defaultDrawCapacity is the initial per-slot draw uniform capacity.
	defaultDrawCapacity = 256
	// defaultLightCapacity is the initial per-slot light uniform capacity.
	defaultLightCapacity = 64
)

// ExecutorOption configures the executor during construction.
type ExecutorOption func(*executor)

// WithExecutorLogger sets the logger. Defaults to zap.NewNop.
//
// Parameters:
//   - log: the logger to use
//
// Returns:
//   - ExecutorOption: the option
func WithExecutorLogger(log *zap.Logger) ExecutorOption {
	return func(e *executor) {
		if log != nil {
			e.log = log
		}
	}
}

// WithWorkers sets the number of pool workers used to pack draw uniforms.
// Defaults to NumCPU-1, minimum 1.
//
// Parameters:
//   - n: the worker count; values below 1 are clamped to 1
//
// Returns:
//   - ExecutorOption: the option
func WithWorkers(n int) ExecutorOption {
	return func(e *executor) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// NewExecutor compiles the three pass pipelines, creates the G-buffer, and
// reserves per-slot uniform storage.
//
// Parameters:
//   - dev: the device
//   - mgr: the resource manager backing uniforms and attachments
//   - reg: the material registry to compile pass pipelines through
//   - alloc: the per-slot descriptor allocator
//   - slots: the number of pipelined frame slots
//   - extent: the initial attachment size
//   - opts: configuration options
//
// Returns:
//   - Executor: the executor
//   - error: a compile or allocation error
func NewExecutor(dev device.Device, mgr resource.Manager, reg material.Registry, alloc descriptor.Allocator, slots int, extent common.Extent, opts ...ExecutorOption) (Executor, error) {
	if slots < 1 {
		return nil, fmt.Errorf("executor needs at least one frame slot, got %d", slots)
	}

	e := &executor{
		dev:     dev,
		mgr:     mgr,
		alloc:   alloc,
		log:     zap.NewNop(),
		workers: max(runtime.NumCPU()-1, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	// Queue size of 256 covers the per-frame packing chunks with headroom.
	e.pool = worker.NewDynamicWorkerPool(e.workers, 256, 1*time.Second)

	var err error
	if e.geometry, err = reg.Construct(&material.Description{
		Label: "geometry pass",
		Vertex: shader.Module{
			Label:      "geometry vs",
			Source:     shader.GeometryWGSL,
			EntryPoint: "vs_main",
			Stage:      shader.StageVertex,
			Bindings:   shader.GeometryVertexBindings(),
		},
		Fragment: shader.Module{
			Label:      "geometry fs",
			Source:     shader.GeometryWGSL,
			EntryPoint: "fs_main",
			Stage:      shader.StageFragment,
			Bindings:   shader.GeometryFragmentBindings(),
		},
		ColorFormats: []device.TextureFormat{device.FormatRGBA16Float, device.FormatRGBA16Float},
		HasDepth:     true,
		DepthWrite:   true,
		Blend:        device.BlendReplace,
		VertexInput:  device.VertexLayoutMesh,
	}); err != nil {
		return nil, err
	}

	if e.lighting, err = reg.Construct(&material.Description{
		Label: "lighting resolve pass",
		Vertex: shader.Module{
			Label:      "lighting vs",
			Source:     shader.LightingWGSL,
			EntryPoint: "vs_main",
			Stage:      shader.StageVertex,
		},
		Fragment: shader.Module{
			Label:      "lighting fs",
			Source:     shader.LightingWGSL,
			EntryPoint: "fs_main",
			Stage:      shader.StageFragment,
			Bindings:   shader.LightingFragmentBindings(),
		},
		ColorFormats: []device.TextureFormat{device.FormatRGBA16Float},
		Blend:        device.BlendAdditive,
		VertexInput:  device.VertexLayoutNone,
	}); err != nil {
		return nil, err
	}

	if e.post, err = reg.Construct(&material.Description{
		Label: "post-process pass",
		Vertex: shader.Module{
			Label:      "post-process vs",
			Source:     shader.PostProcessWGSL,
			EntryPoint: "vs_main",
			Stage:      shader.StageVertex,
		},
		Fragment: shader.Module{
			Label:      "post-process fs",
			Source:     shader.PostProcessWGSL,
			EntryPoint: "fs_main",
			Stage:      shader.StageFragment,
			Bindings:   shader.PostProcessFragmentBindings(),
		},
		ColorFormats: []device.TextureFormat{dev.SurfaceFormat()},
		Blend:        device.BlendReplace,
		VertexInput:  device.VertexLayoutNone,
	}); err != nil {
		return nil, err
	}

	// The pass bind group shapes are validated here, once; recording builds
	// groups for the instances without re-validation.
	if e.geometryInst, err = reg.Instantiate(e.geometry, [][]material.ProvidedBinding{
		{{Binding: 0, Kind: shader.KindUniformBuffer, Count: 1}},
		{{Binding: 0, Kind: shader.KindUniformBuffer, Count: 1}},
	}); err != nil {
		return nil, err
	}
	if e.lightingInst, err = reg.Instantiate(e.lighting, [][]material.ProvidedBinding{{
		{Binding: 0, Kind: shader.KindSampledImage, Count: 1},
		{Binding: 1, Kind: shader.KindSampledImage, Count: 1},
		{Binding: 2, Kind: shader.KindSampledImage, Count: 1},
		{Binding: 3, Kind: shader.KindUniformBuffer, Count: 1},
	}}); err != nil {
		return nil, err
	}
	if e.postInst, err = reg.Instantiate(e.post, [][]material.ProvidedBinding{{
		{Binding: 0, Kind: shader.KindSampledImage, Count: 1},
	}}); err != nil {
		return nil, err
	}

	if e.gbuf, err = newGBuffer(mgr, extent); err != nil {
		return nil, err
	}

	for slot := 0; slot < slots; slot++ {
		su := &slotUniforms{slot: slot, drawCap: defaultDrawCapacity, lightCap: defaultLightCapacity}
		if su.frame, err = mgr.Allocate(
			fmt.Sprintf("slot %d frame uniforms", slot),
			blockStride, device.BufferUsageUniform, device.MemoryDeviceLocal,
		); err != nil {
			return nil, err
		}
		if su.draws, err = mgr.Allocate(
			fmt.Sprintf("slot %d draw uniforms", slot),
			uint64(su.drawCap)*blockStride, device.BufferUsageUniform, device.MemoryDeviceLocal,
		); err != nil {
			return nil, err
		}
		if su.lights, err = mgr.Allocate(
			fmt.Sprintf("slot %d light uniforms", slot),
			uint64(su.lightCap)*blockStride, device.BufferUsageUniform, device.MemoryDeviceLocal,
		); err != nil {
			return nil, err
		}
		e.slots = append(e.slots, su)
	}

	e.log.Info("executor ready",
		zap.Int("slots", slots),
		zap.Int("workers", e.workers),
		zap.Uint32("width", extent.Width),
		zap.Uint32("height", extent.Height),
	)
	return e, nil
}
