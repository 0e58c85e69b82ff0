// Package profiler aggregates per-frame statistics and runtime memory
// behavior, reporting at a fixed interval so the log stays readable at
// interactive frame rates.
package profiler

import (
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/Kalix-Works/helix-go/common"
)

// Profiler accumulates FrameStats between reports and samples the Go
// runtime's memory statistics when it reports. Driven from the control
// goroutine; not safe for concurrent use.
type Profiler struct {
	log            *zap.Logger
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	drawTotal   int
	lightTotal  int
	geometryCPU time.Duration
	lightingCPU time.Duration
	postCPU     time.Duration
}

// Option configures a Profiler during construction.
type Option func(*Profiler)

// WithLogger sets the logger reports are written to. Defaults to zap.NewNop.
//
// Parameters:
//   - log: the logger to use
//
// Returns:
//   - Option: the option
func WithLogger(log *zap.Logger) Option {
	return func(p *Profiler) {
		if log != nil {
			p.log = log
		}
	}
}

// WithInterval sets the reporting interval. Defaults to 1 second.
//
// Parameters:
//   - d: the interval; non-positive values are ignored
//
// Returns:
//   - Option: the option
func WithInterval(d time.Duration) Option {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// NewProfiler creates a Profiler.
//
// Parameters:
//   - opts: configuration options
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler(opts ...Option) *Profiler {
	p := &Profiler{
		log:            zap.NewNop(),
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tick records one frame's statistics and reports when the interval has
// elapsed. Reported timings are per-frame averages over the interval.
//
// Parameters:
//   - stats: the frame's statistics
//
// Returns:
//   - bool: true if a report was written this tick
func (p *Profiler) Tick(stats common.FrameStats) bool {
	p.frameCount++
	p.drawTotal += stats.DrawCount
	p.lightTotal += stats.LightCount
	p.geometryCPU += stats.GeometryCPU
	p.lightingCPU += stats.LightingCPU
	p.postCPU += stats.PostProcessCPU

	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	frames := p.frameCount
	fps := float64(frames) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses; scan only
	// the pauses that happened since the previous report.
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			pause := p.memStats.PauseNs[i%256] / 1000
			if pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	p.log.Info("frame report",
		zap.Float64("fps", fps),
		zap.Int("avg_draws", p.drawTotal/frames),
		zap.Int("avg_lights", p.lightTotal/frames),
		zap.Duration("geometry_cpu", p.geometryCPU/time.Duration(frames)),
		zap.Duration("lighting_cpu", p.lightingCPU/time.Duration(frames)),
		zap.Duration("post_cpu", p.postCPU/time.Duration(frames)),
		zap.Float64("heap_mb", allocMB),
		zap.Float64("alloc_rate_mb_s", allocRateMB),
		zap.Uint32("gc_count", gcCount),
		zap.Uint64("gc_last_pause_us", lastPauseUs),
		zap.Uint64("gc_max_pause_us", maxPauseUs),
		zap.Float64("sys_mb", sysMB),
	)

	p.frameCount = 0
	p.drawTotal = 0
	p.lightTotal = 0
	p.geometryCPU = 0
	p.lightingCPU = 0
	p.postCPU = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
