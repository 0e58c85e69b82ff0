// Package frame paces CPU recording against GPU execution with a small ring
// of pipelined frame slots. Each slot owns a fence and a pair of ordering
// semaphores; the CPU may run up to K frames ahead and blocks only when it
// wraps around to a slot whose GPU work has not finished.
package frame

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/device"
)

// ErrAcquireTimeout is returned by Begin when the surface repeatedly fails
// to produce an image within the retry budget.
var ErrAcquireTimeout = errors.New("surface image acquisition timed out")

type slotState int

const (
	slotIdle slotState = iota
	slotRecording
	slotSubmitted
	slotPresented
)

func (s slotState) String() string {
	switch s {
	case slotIdle:
		return "idle"
	case slotRecording:
		return "recording"
	case slotSubmitted:
		return "submitted"
	case slotPresented:
		return "presented"
	default:
		return "unknown"
	}
}

// Frame is one in-flight frame, valid from Begin until Present or Abort.
type Frame struct {
	// Index is the monotonically increasing frame index, starting at 1.
	Index uint64
	// Slot is the pipelined slot the frame occupies.
	Slot int
	// Image is the acquired surface image the frame renders to.
	Image device.SurfaceImage
}

type slot struct {
	state      slotState
	fence      device.Fence
	acquireSem device.Semaphore
	renderSem  device.Semaphore
	frameIndex uint64
	pending    bool
}

// RetireFunc is called when a slot's earlier frame is known to have
// completed on the device, before the slot is reused. Per-slot pools and
// deferred destruction are serviced here.
type RetireFunc func(slot int, frameIndex uint64)

// Scheduler paces frames through a fixed ring of slots.
//
// The scheduler is driven from a single control goroutine; it is not safe
// for concurrent use.
type Scheduler interface {
	// Begin starts the next frame: waits for the slot's previous frame if
	// it is still in flight, retires it, and acquires a surface image.
	//
	// Returns:
	//   - *Frame: the frame to record into
	//   - error: device.ErrSurfaceOutdated when the surface needs
	//     recreation, ErrAcquireTimeout after exhausting acquire retries,
	//     or device.ErrDeviceLost
	Begin() (*Frame, error)

	// Submit enqueues the frame's recorded commands. The submission waits
	// on the slot's acquire semaphore, signals its render semaphore, and
	// signals its fence on completion.
	//
	// Parameters:
	//   - f: the frame returned by Begin
	//   - cb: the finished command buffer
	//
	// Returns:
	//   - error: an invalid-state error or device.ErrDeviceLost
	Submit(f *Frame, cb device.CommandBuffer) error

	// Present queues the frame's image for display, ordered after the
	// frame's rendering by the render semaphore.
	//
	// Parameters:
	//   - f: the submitted frame
	//
	// Returns:
	//   - error: an invalid-state error, device.ErrSurfaceOutdated, or
	//     device.ErrDeviceLost
	Present(f *Frame) error

	// Abort abandons a frame begun but not submitted, returning its slot
	// to idle. The acquired image, if any, is released unpresented.
	//
	// Parameters:
	//   - f: the frame to abandon
	Abort(f *Frame)

	// Recreate waits for the device to go idle, retires every in-flight
	// frame, and reconfigures the surface to the new extent.
	//
	// Parameters:
	//   - extent: the new surface size
	//
	// Returns:
	//   - error: device.ErrDeviceLost or a configuration error
	Recreate(extent common.Extent) error

	// RetiredFrame returns the highest frame index known to have completed
	// on the device. Deferred destruction up to this frame is safe.
	RetiredFrame() uint64

	// SlotCount returns the number of pipelined slots.
	SlotCount() int

	// Release discards the slot ring. Only valid after the device is idle.
	Release()
}

type scheduler struct {
	mu  sync.Mutex
	dev device.Device
	log *zap.Logger

	slots          []*slot
	nextFrame      uint64 // 1-based; 0 is "no frame"
	retired        uint64
	fenceTimeout   time.Duration
	acquireTimeout time.Duration
	acquireRetries int
	onRetire       RetireFunc
}

var _ Scheduler = &scheduler{}

func (s *scheduler) Begin() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.nextFrame
	sl := s.slots[int(index)%len(s.slots)]

	if sl.state == slotRecording {
		return nil, fmt.Errorf("slot %d is still recording frame %d", int(index)%len(s.slots), sl.frameIndex)
	}

	// Lazy wait: block on the slot's fence only now that the slot is
	// actually needed again.
	if sl.pending {
		if err := sl.fence.Wait(s.fenceTimeout); err != nil {
			return nil, fmt.Errorf("waiting for frame %d in slot %d: %w", sl.frameIndex, int(index)%len(s.slots), err)
		}
		s.retireLocked(sl, int(index)%len(s.slots))
	}

	img, err := s.acquireLocked()
	if err != nil {
		return nil, err
	}

	sl.state = slotRecording
	sl.frameIndex = index
	s.nextFrame++

	return &Frame{Index: index, Slot: int(index) % len(s.slots), Image: img}, nil
}

// retireLocked marks a slot's previous frame complete. Caller holds s.mu.
func (s *scheduler) retireLocked(sl *slot, slotIndex int) {
	sl.pending = false
	sl.fence.Reset()
	sl.state = slotIdle
	if sl.frameIndex > s.retired {
		s.retired = sl.frameIndex
	}
	if s.onRetire != nil {
		s.onRetire(slotIndex, sl.frameIndex)
	}
}

func (s *scheduler) acquireLocked() (device.SurfaceImage, error) {
	for attempt := 0; attempt < s.acquireRetries; attempt++ {
		img, err := s.dev.AcquireImage(s.acquireTimeout)
		if err == nil {
			return img, nil
		}
		if errors.Is(err, device.ErrSurfaceOutdated) || errors.Is(err, device.ErrDeviceLost) {
			return nil, err
		}
		s.log.Warn("surface acquisition failed",
			zap.Int("attempt", attempt+1),
			zap.Int("budget", s.acquireRetries),
			zap.Error(err),
		)
	}
	return nil, fmt.Errorf("%w: %d attempts", ErrAcquireTimeout, s.acquireRetries)
}

func (s *scheduler) Submit(f *Frame, cb device.CommandBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slots[f.Slot]
	if sl.state != slotRecording || sl.frameIndex != f.Index {
		return fmt.Errorf("cannot submit frame %d: slot %d is %s (frame %d)", f.Index, f.Slot, sl.state, sl.frameIndex)
	}

	if err := s.dev.Submit(cb, sl.acquireSem, sl.renderSem, sl.fence); err != nil {
		return err
	}
	sl.state = slotSubmitted
	sl.pending = true
	return nil
}

func (s *scheduler) Present(f *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slots[f.Slot]
	if sl.state != slotSubmitted || sl.frameIndex != f.Index {
		return fmt.Errorf("cannot present frame %d: slot %d is %s (frame %d)", f.Index, f.Slot, sl.state, sl.frameIndex)
	}

	if err := s.dev.Present(f.Image, sl.renderSem); err != nil {
		return err
	}
	sl.state = slotPresented
	f.Image = nil
	return nil
}

func (s *scheduler) Abort(f *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slots[f.Slot]
	if sl.state != slotRecording || sl.frameIndex != f.Index {
		return
	}
	if f.Image != nil {
		f.Image.Release()
		f.Image = nil
	}
	sl.state = slotIdle
	s.log.Debug("aborted frame", zap.Uint64("frame", f.Index), zap.Int("slot", f.Slot))
}

func (s *scheduler) Recreate(extent common.Extent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dev.WaitIdle(); err != nil {
		return err
	}
	for i, sl := range s.slots {
		if sl.pending {
			// Idle device means every fence has effectively signaled.
			if err := sl.fence.Wait(s.fenceTimeout); err != nil {
				return fmt.Errorf("draining slot %d: %w", i, err)
			}
			s.retireLocked(sl, i)
		}
	}

	if err := s.dev.ConfigureSurface(extent); err != nil {
		return err
	}
	s.log.Info("surface recreated",
		zap.Uint32("width", extent.Width),
		zap.Uint32("height", extent.Height),
	)
	return nil
}

func (s *scheduler) RetiredFrame() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retired
}

func (s *scheduler) SlotCount() int {
	return len(s.slots)
}

func (s *scheduler) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = nil
}
