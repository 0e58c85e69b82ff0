package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/descriptor"
	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/frame"
	"github.com/Kalix-Works/helix-go/engine/graph"
	"github.com/Kalix-Works/helix-go/engine/material"
	"github.com/Kalix-Works/helix-go/engine/profiler"
	"github.com/Kalix-Works/helix-go/engine/resource"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied during NewEngine.
type EngineBuilderOption func(*builderConfig)

type builderConfig struct {
	log              *zap.Logger
	slots            int
	descCapacity     int
	workers          int
	fenceTimeout     time.Duration
	profilingEnabled bool
	profileInterval  time.Duration
}

// WithLogger sets the logger shared by every engine component.
//
// Parameters:
//   - log: the logger to use
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(log *zap.Logger) EngineBuilderOption {
	return func(c *builderConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// WithFrameSlots sets the number of pipelined frame slots. The scheduler
// accepts 2 or 3; the default is 2.
//
// Parameters:
//   - n: the slot count
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameSlots(n int) EngineBuilderOption {
	return func(c *builderConfig) {
		c.slots = n
	}
}

// WithDescriptorCapacity sets the initial per-slot bind group capacity.
// Pools still grow on exhaustion; this only moves the starting point.
//
// Parameters:
//   - n: groups available per slot per frame
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDescriptorCapacity(n int) EngineBuilderOption {
	return func(c *builderConfig) {
		if n > 0 {
			c.descCapacity = n
		}
	}
}

// WithWorkers sets the number of pool workers used for per-frame uniform
// packing. Defaults to NumCPU-1.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorkers(n int) EngineBuilderOption {
	return func(c *builderConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithFenceTimeout sets how long a frame may wait for its slot's previous
// GPU work before the wait is treated as a failure.
//
// Parameters:
//   - d: the timeout
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFenceTimeout(d time.Duration) EngineBuilderOption {
	return func(c *builderConfig) {
		if d > 0 {
			c.fenceTimeout = d
		}
	}
}

// WithProfiling enables or disables periodic frame reports.
//
// Parameters:
//   - enabled: if true, enables frame reports
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(c *builderConfig) {
		c.profilingEnabled = enabled
	}
}

// WithProfileInterval sets the frame report interval. Defaults to 1 second.
//
// Parameters:
//   - d: the interval
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfileInterval(d time.Duration) EngineBuilderOption {
	return func(c *builderConfig) {
		if d > 0 {
			c.profileInterval = d
		}
	}
}

// NewEngine assembles the full rendering stack on the given device: the
// resource manager, material registry, descriptor allocator, frame
// scheduler, and pass executor.
//
// Parameters:
//   - dev: the device, already bound to a surface
//   - extent: the initial surface size
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the engine
//   - error: a construction error; partially built components are released
func NewEngine(dev device.Device, extent common.Extent, options ...EngineBuilderOption) (Engine, error) {
	cfg := &builderConfig{
		log:   zap.NewNop(),
		slots: frame.DefaultSlots,
	}
	for _, opt := range options {
		opt(cfg)
	}

	mgr := resource.NewManager(dev, resource.WithLogger(cfg.log))
	reg := material.NewRegistry(dev, material.WithLogger(cfg.log))

	var allocOpts []descriptor.AllocatorOption
	allocOpts = append(allocOpts, descriptor.WithLogger(cfg.log))
	if cfg.descCapacity > 0 {
		allocOpts = append(allocOpts, descriptor.WithCapacity(cfg.slots, cfg.descCapacity))
	}
	alloc := descriptor.NewAllocator(dev, reg, cfg.slots, allocOpts...)

	schedOpts := []frame.SchedulerOption{
		frame.WithSlots(cfg.slots),
		frame.WithLogger(cfg.log),
		// Recycle a slot's bind groups as soon as its frame retires.
		frame.WithRetireFunc(func(slot int, frameIndex uint64) {
			alloc.Reset(slot)
		}),
	}
	if cfg.fenceTimeout > 0 {
		schedOpts = append(schedOpts, frame.WithFenceTimeout(cfg.fenceTimeout))
	}
	sched, err := frame.NewScheduler(dev, schedOpts...)
	if err != nil {
		reg.Release()
		mgr.Release()
		return nil, err
	}

	execOpts := []graph.ExecutorOption{graph.WithExecutorLogger(cfg.log)}
	if cfg.workers > 0 {
		execOpts = append(execOpts, graph.WithWorkers(cfg.workers))
	}
	exec, err := graph.NewExecutor(dev, mgr, reg, alloc, cfg.slots, extent, execOpts...)
	if err != nil {
		sched.Release()
		alloc.Release()
		reg.Release()
		mgr.Release()
		return nil, err
	}

	profOpts := []profiler.Option{profiler.WithLogger(cfg.log)}
	if cfg.profileInterval > 0 {
		profOpts = append(profOpts, profiler.WithInterval(cfg.profileInterval))
	}

	e := &engine{
		dev:              dev,
		mgr:              mgr,
		reg:              reg,
		alloc:            alloc,
		sched:            sched,
		exec:             exec,
		log:              cfg.log,
		profiler:         profiler.NewProfiler(profOpts...),
		profilingEnabled: cfg.profilingEnabled,
		surfaceExtent:    extent,
	}
	cfg.log.Info("engine ready",
		zap.Int("slots", cfg.slots),
		zap.Uint32("width", extent.Width),
		zap.Uint32("height", extent.Height),
	)
	return e, nil
}
