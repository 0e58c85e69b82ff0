package frame

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Kalix-Works/helix-go/engine/device"
)

// SchedulerOption configures a Scheduler during construction.
type SchedulerOption func(*scheduler)

const (
	// DefaultSlots is the default pipelining depth.
	DefaultSlots = 2
	// MaxSlots is the largest supported pipelining depth.
	MaxSlots = 3

	defaultFenceTimeout   = 2 * time.Second
	defaultAcquireTimeout = time.Second
	defaultAcquireRetries = 3
)

// NewScheduler creates a Scheduler with its slot ring on the given device.
//
// Parameters:
//   - dev: the device frames are submitted to
//   - opts: optional configuration
//
// Returns:
//   - Scheduler: the scheduler
//   - error: an error if the slot count is out of range
func NewScheduler(dev device.Device, opts ...SchedulerOption) (Scheduler, error) {
	s := &scheduler{
		dev:            dev,
		log:            zap.NewNop(),
		nextFrame:      1,
		fenceTimeout:   defaultFenceTimeout,
		acquireTimeout: defaultAcquireTimeout,
		acquireRetries: defaultAcquireRetries,
	}
	slotCount := DefaultSlots
	for _, opt := range opts {
		opt(s)
	}
	if s.slots != nil {
		slotCount = len(s.slots)
	}
	if slotCount < 2 || slotCount > MaxSlots {
		return nil, fmt.Errorf("frame slot count %d out of range [2, %d]", slotCount, MaxSlots)
	}

	s.slots = make([]*slot, slotCount)
	for i := range s.slots {
		s.slots[i] = &slot{
			fence:      dev.CreateFence(fmt.Sprintf("frame slot %d fence", i), false),
			acquireSem: dev.CreateSemaphore(fmt.Sprintf("frame slot %d acquire", i)),
			renderSem:  dev.CreateSemaphore(fmt.Sprintf("frame slot %d render", i)),
		}
	}
	return s, nil
}

// WithSlots sets the pipelining depth; 2 or 3 slots are supported.
//
// Parameters:
//   - count: the number of frame slots
//
// Returns:
//   - SchedulerOption: a function that sets the slot count
func WithSlots(count int) SchedulerOption {
	return func(s *scheduler) {
		s.slots = make([]*slot, count)
	}
}

// WithFenceTimeout sets how long Begin waits for a slot's previous frame
// before giving up.
//
// Parameters:
//   - d: the timeout
//
// Returns:
//   - SchedulerOption: a function that sets the fence timeout
func WithFenceTimeout(d time.Duration) SchedulerOption {
	return func(s *scheduler) {
		if d > 0 {
			s.fenceTimeout = d
		}
	}
}

// WithAcquireRetries sets the acquisition retry budget per Begin.
//
// Parameters:
//   - retries: attempts before Begin fails with ErrAcquireTimeout
//
// Returns:
//   - SchedulerOption: a function that sets the retry budget
func WithAcquireRetries(retries int) SchedulerOption {
	return func(s *scheduler) {
		if retries > 0 {
			s.acquireRetries = retries
		}
	}
}

// WithRetireFunc registers the callback invoked when a slot's frame is
// known complete, before the slot is reused.
//
// Parameters:
//   - fn: the retirement callback
//
// Returns:
//   - SchedulerOption: a function that sets the callback
func WithRetireFunc(fn RetireFunc) SchedulerOption {
	return func(s *scheduler) {
		s.onRetire = fn
	}
}

// WithLogger sets the logger pacing events are reported to.
//
// Parameters:
//   - log: the logger to use
//
// Returns:
//   - SchedulerOption: a function that sets the logger
func WithLogger(log *zap.Logger) SchedulerOption {
	return func(s *scheduler) {
		if log != nil {
			s.log = log
		}
	}
}
