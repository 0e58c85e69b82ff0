// Package engine ties the frame scheduler, resource manager, material
// registry, descriptor allocator and pass executor into one facade driven
// from a single control goroutine.
package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/descriptor"
	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/frame"
	"github.com/Kalix-Works/helix-go/engine/graph"
	"github.com/Kalix-Works/helix-go/engine/light"
	"github.com/Kalix-Works/helix-go/engine/material"
	"github.com/Kalix-Works/helix-go/engine/mesh"
	"github.com/Kalix-Works/helix-go/engine/profiler"
	"github.com/Kalix-Works/helix-go/engine/resource"
)

// maxConsecutiveFailures is how many frames in a row may fail before the
// engine treats the device as unusable.
const maxConsecutiveFailures = 3

// engine implements the Engine interface.
type engine struct {
	dev   device.Device
	mgr   resource.Manager
	reg   material.Registry
	alloc descriptor.Allocator
	sched frame.Scheduler
	exec  graph.Executor
	log   *zap.Logger

	profiler         *profiler.Profiler
	profilingEnabled bool

	pendingExtent common.Extent
	surfaceExtent common.Extent
	failureStreak int
}

// Engine orchestrates one frame at a time: acquire, record the fixed
// deferred pass sequence, submit, present. All methods must be called from
// the same control goroutine.
type Engine interface {
	// RenderFrame renders one frame from the externally supplied draw and
	// light lists.
	//
	// A surface that has gone stale is recreated transparently; the frame
	// that noticed it is skipped and reported with zero stats. Frame-scoped
	// errors such as descriptor.ErrPoolExhausted abort only that frame;
	// after repeated consecutive failures the error escalates to
	// device.ErrDeviceLost.
	//
	// Parameters:
	//   - view: the camera state for the frame
	//   - draws: the draw list; entries are consumed before return
	//   - lights: the light list
	//
	// Returns:
	//   - common.FrameStats: recording statistics for the frame
	//   - error: device.ErrDeviceLost when the device is gone, or a
	//     device/resource error
	RenderFrame(view graph.View, draws []graph.Draw, lights []light.Light) (common.FrameStats, error)

	// Resize schedules a surface and attachment resize. Applied before the
	// next frame; safe to call every time the window reports a new size.
	//
	// Parameters:
	//   - extent: the new surface size; zero extents are ignored
	Resize(extent common.Extent)

	// UploadMesh copies geometry into device-local memory.
	//
	// Parameters:
	//   - label: debug label
	//   - vertices: the vertex data
	//   - indices: the u32 index data
	//
	// Returns:
	//   - *mesh.Mesh: the uploaded mesh
	//   - error: a resource error
	UploadMesh(label string, vertices []mesh.Vertex, indices []uint32) (*mesh.Mesh, error)

	// FreeMesh releases a mesh through the deferred destruction path.
	//
	// Parameters:
	//   - m: the mesh to free
	//
	// Returns:
	//   - error: resource.ErrInvalidHandle if already freed
	FreeMesh(m *mesh.Mesh) error

	// Resources exposes the resource manager for direct allocation.
	//
	// Returns:
	//   - resource.Manager: the manager
	Resources() resource.Manager

	// EnableProfiler enables periodic frame reports to the log.
	EnableProfiler()

	// DisableProfiler disables frame reports.
	DisableProfiler()

	// Release drains the device and frees everything. The engine is
	// unusable afterwards.
	Release()
}

var _ Engine = &engine{}

func (e *engine) RenderFrame(view graph.View, draws []graph.Draw, lights []light.Light) (common.FrameStats, error) {
	if e.pendingExtent != (common.Extent{}) && e.pendingExtent != e.surfaceExtent {
		if err := e.applyResize(e.pendingExtent); err != nil {
			return common.FrameStats{}, e.frameFailed(err)
		}
	}

	f, err := e.sched.Begin()
	if errors.Is(err, device.ErrSurfaceOutdated) {
		// Recreate at the last known size and report a skipped frame; the
		// caller simply renders again.
		if err := e.applyResize(e.surfaceExtent); err != nil {
			return common.FrameStats{}, e.frameFailed(err)
		}
		return common.FrameStats{}, nil
	}
	if err != nil {
		return common.FrameStats{}, e.frameFailed(err)
	}

	e.mgr.BeginFrame(f.Index)
	e.mgr.Collect(e.sched.RetiredFrame())

	cb, stats, err := e.exec.Execute(f, view, draws, lights)
	if err != nil {
		e.sched.Abort(f)
		return stats, e.frameFailed(err)
	}
	if err := e.sched.Submit(f, cb); err != nil {
		e.sched.Abort(f)
		return stats, e.frameFailed(err)
	}
	if err := e.sched.Present(f); err != nil {
		if errors.Is(err, device.ErrSurfaceOutdated) {
			// The frame's work completed; only presentation was dropped.
			e.pendingExtent = e.surfaceExtent
			e.failureStreak = 0
			return stats, nil
		}
		return stats, e.frameFailed(err)
	}

	e.failureStreak = 0
	if e.profilingEnabled {
		e.profiler.Tick(stats)
	}
	return stats, nil
}

// frameFailed counts a failed frame and escalates to device-lost once the
// streak exceeds the budget.
func (e *engine) frameFailed(err error) error {
	if errors.Is(err, device.ErrDeviceLost) {
		return err
	}
	e.failureStreak++
	if e.failureStreak >= maxConsecutiveFailures {
		e.log.Error("giving up after repeated frame failures",
			zap.Int("failures", e.failureStreak),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %d consecutive frame failures, last: %v",
			device.ErrDeviceLost, e.failureStreak, err)
	}
	e.log.Warn("frame failed", zap.Int("streak", e.failureStreak), zap.Error(err))
	return err
}

func (e *engine) Resize(extent common.Extent) {
	if extent.IsZero() {
		return
	}
	e.pendingExtent = extent
}

// applyResize drains in-flight frames, reconfigures the surface, and
// recreates the G-buffer at the new extent.
func (e *engine) applyResize(extent common.Extent) error {
	if err := e.sched.Recreate(extent); err != nil {
		return err
	}
	// Every frame has retired; deferred frees are all collectable.
	e.mgr.Collect(e.sched.RetiredFrame())
	if err := e.exec.Resize(extent); err != nil {
		return err
	}
	e.surfaceExtent = extent
	e.pendingExtent = common.Extent{}
	return nil
}

func (e *engine) UploadMesh(label string, vertices []mesh.Vertex, indices []uint32) (*mesh.Mesh, error) {
	return mesh.Upload(e.mgr, label, vertices, indices)
}

func (e *engine) FreeMesh(m *mesh.Mesh) error {
	return m.Free(e.mgr)
}

func (e *engine) Resources() resource.Manager {
	return e.mgr
}

// EnableProfiler enables periodic frame reports to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables frame reports.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) Release() {
	if err := e.dev.WaitIdle(); err != nil {
		e.log.Warn("device not idle at shutdown", zap.Error(err))
	}
	e.exec.Release()
	e.sched.Release()
	e.alloc.Release()
	e.reg.Release()
	e.mgr.Release()
}
