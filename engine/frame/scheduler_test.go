package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/device/devicetest"
)

var testExtent = common.Extent{Width: 800, Height: 600}

func record(t *testing.T, dev *devicetest.Device) device.CommandBuffer {
	t.Helper()
	enc, err := dev.CreateCommandEncoder("frame")
	require.NoError(t, err)
	cb, err := enc.Finish()
	require.NoError(t, err)
	return cb
}

func runFrame(t *testing.T, s Scheduler, dev *devicetest.Device) *Frame {
	t.Helper()
	f, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, s.Submit(f, record(t, dev)))
	require.NoError(t, s.Present(f))
	return f
}

func TestFramesCycleThroughSlots(t *testing.T) {
	dev := devicetest.New(testExtent)
	s, err := NewScheduler(dev)
	require.NoError(t, err)
	require.Equal(t, 2, s.SlotCount())

	var slots []int
	for i := 0; i < 4; i++ {
		f := runFrame(t, s, dev)
		slots = append(slots, f.Slot)
	}
	assert.Equal(t, []int{1, 0, 1, 0}, slots)

	subs := dev.Submissions()
	require.Len(t, subs, 4)
	// Each submission is fenced and ordered between acquire and present.
	assert.Equal(t, "frame slot 1 acquire", subs[0].WaitLabel)
	assert.Equal(t, "frame slot 1 render", subs[0].SignalLabel)
	require.NotNil(t, subs[0].Fence)
}

func TestPipeliningRunsKFramesWithoutBlocking(t *testing.T) {
	dev := devicetest.New(testExtent)
	dev.ManualCompletion = true
	s, err := NewScheduler(dev)
	require.NoError(t, err)

	// Two frames fit in flight without any fence wait.
	runFrame(t, s, dev)
	runFrame(t, s, dev)

	// The third frame wraps to the first slot and must wait, which fails
	// under manual completion.
	_, err = s.Begin()
	require.Error(t, err)

	// Once the first frame's GPU work completes, the slot frees up.
	dev.CompleteNext()
	f, err := s.Begin()
	require.NoError(t, err)
	assert.EqualValues(t, 3, f.Index)
}

func TestRetirementUnblocksDeferredDestruction(t *testing.T) {
	dev := devicetest.New(testExtent)

	type retirement struct {
		slot  int
		frame uint64
	}
	var retired []retirement

	s, err := NewScheduler(dev, WithRetireFunc(func(slot int, frame uint64) {
		retired = append(retired, retirement{slot: slot, frame: frame})
	}))
	require.NoError(t, err)

	assert.EqualValues(t, 0, s.RetiredFrame())

	runFrame(t, s, dev) // frame 1, slot 1
	runFrame(t, s, dev) // frame 2, slot 0
	assert.Empty(t, retired, "nothing retires while slots are free")

	runFrame(t, s, dev) // frame 3 reuses slot 1, retiring frame 1
	require.Len(t, retired, 1)
	assert.Equal(t, retirement{slot: 1, frame: 1}, retired[0])
	assert.EqualValues(t, 1, s.RetiredFrame())
}

func TestAcquireOutdatedPropagatesForRecreation(t *testing.T) {
	dev := devicetest.New(testExtent)
	s, err := NewScheduler(dev)
	require.NoError(t, err)

	dev.ScriptAcquireOutdated(1)
	_, err = s.Begin()
	require.ErrorIs(t, err, device.ErrSurfaceOutdated)

	require.NoError(t, s.Recreate(common.Extent{Width: 1024, Height: 768}))
	f, err := s.Begin()
	require.NoError(t, err)
	assert.Equal(t, common.Extent{Width: 1024, Height: 768}, f.Image.Extent())
}

func TestAcquireRetriesWithinBudget(t *testing.T) {
	dev := devicetest.New(testExtent)
	s, err := NewScheduler(dev, WithAcquireRetries(3))
	require.NoError(t, err)

	dev.ScriptAcquireTimeout(2)
	f, err := s.Begin()
	require.NoError(t, err)
	assert.NotNil(t, f.Image)
}

func TestAcquireRetriesExhausted(t *testing.T) {
	dev := devicetest.New(testExtent)
	s, err := NewScheduler(dev, WithAcquireRetries(2))
	require.NoError(t, err)

	dev.ScriptAcquireTimeout(2)
	_, err = s.Begin()
	assert.ErrorIs(t, err, ErrAcquireTimeout)
}

func TestRecreateDrainsInFlightFrames(t *testing.T) {
	dev := devicetest.New(testExtent)
	dev.ManualCompletion = true
	s, err := NewScheduler(dev)
	require.NoError(t, err)

	runFrame(t, s, dev)
	runFrame(t, s, dev)
	require.Equal(t, 2, dev.PendingSubmissions())

	require.NoError(t, s.Recreate(common.Extent{Width: 640, Height: 480}))
	assert.Equal(t, 0, dev.PendingSubmissions())
	assert.EqualValues(t, 2, s.RetiredFrame())
}

func TestSubmitRequiresRecordingState(t *testing.T) {
	dev := devicetest.New(testExtent)
	s, err := NewScheduler(dev)
	require.NoError(t, err)

	f, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, s.Submit(f, record(t, dev)))

	// Double submit is an invalid transition.
	assert.Error(t, s.Submit(f, record(t, dev)))

	require.NoError(t, s.Present(f))
	// Present after present likewise.
	assert.Error(t, s.Present(f))
}

func TestAbortReturnsSlotToIdle(t *testing.T) {
	dev := devicetest.New(testExtent)
	s, err := NewScheduler(dev)
	require.NoError(t, err)

	f, err := s.Begin()
	require.NoError(t, err)
	s.Abort(f)

	// The next frame proceeds without waiting on the aborted slot.
	f2, err := s.Begin()
	require.NoError(t, err)
	assert.EqualValues(t, 2, f2.Index)
}

func TestSlotCountBounds(t *testing.T) {
	dev := devicetest.New(testExtent)

	_, err := NewScheduler(dev, WithSlots(1))
	assert.Error(t, err)
	_, err = NewScheduler(dev, WithSlots(4))
	assert.Error(t, err)

	s, err := NewScheduler(dev, WithSlots(3))
	require.NoError(t, err)
	assert.Equal(t, 3, s.SlotCount())
}

func TestDeviceLostSurfacesOnBegin(t *testing.T) {
	dev := devicetest.New(testExtent)
	s, err := NewScheduler(dev)
	require.NoError(t, err)

	dev.SetLost()
	_, err = s.Begin()
	assert.ErrorIs(t, err, device.ErrDeviceLost)
}
