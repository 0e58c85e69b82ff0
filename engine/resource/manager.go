// Package resource manages GPU buffer and attachment lifetimes: usage-class
// arenas for sub-allocation, generation-tagged handles, and deferred
// destruction keyed to frame completion so nothing is destroyed while an
// in-flight frame may still reference it.
package resource

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/device"
)

var (
	// ErrAllocationFailed is returned when the device cannot back an
	// allocation. The manager's internal state is unchanged by a failed
	// allocation.
	ErrAllocationFailed = errors.New("allocation failed")

	// ErrInvalidHandle is returned when a handle does not refer to a live
	// allocation, either because it was never valid or because the
	// allocation was freed.
	ErrInvalidHandle = errors.New("invalid resource handle")
)

// Releasable is anything with device-side state that can be released.
type Releasable interface {
	Release()
}

// Manager allocates buffers from usage-class arenas and defers destruction
// until the frames that may reference a resource have completed.
//
// The manager is safe for concurrent use, but Collect must only run on the
// control goroutine between frames.
type Manager interface {
	// Allocate reserves size bytes from the arena for the given usage class
	// and memory kind.
	//
	// Parameters:
	//   - label: debug label for the allocation
	//   - size: byte size; must be non-zero
	//   - usage: usage class selecting the backing arena
	//   - kind: memory domain
	//
	// Returns:
	//   - Handle: a generation-tagged handle to the allocation
	//   - error: ErrAllocationFailed if the device cannot back it
	Allocate(label string, size uint64, usage device.BufferUsage, kind device.MemoryKind) (Handle, error)

	// Free marks the allocation for destruction. The backing range is
	// reclaimed by a later Collect, once the current frame completes; the
	// handle is invalid immediately.
	//
	// Parameters:
	//   - h: the handle to free
	//
	// Returns:
	//   - error: ErrInvalidHandle if h is stale
	Free(h Handle) error

	// Write schedules a copy of data into the allocation at offset.
	//
	// Parameters:
	//   - h: the destination allocation
	//   - offset: byte offset within the allocation
	//   - data: bytes to copy
	//
	// Returns:
	//   - error: ErrInvalidHandle, or an out-of-range error
	Write(h Handle, offset uint64, data []byte) error

	// Map exposes a host-visible allocation's memory for writing. Fails on
	// device-local allocations.
	//
	// Parameters:
	//   - h: the allocation to map
	//
	// Returns:
	//   - []byte: the mapped range, valid until Unmap
	//   - error: ErrInvalidHandle, or device.ErrNotMappable
	Map(h Handle) ([]byte, error)

	// Unmap releases a mapping obtained from Map and flushes it.
	//
	// Parameters:
	//   - h: the mapped allocation
	//
	// Returns:
	//   - error: ErrInvalidHandle
	Unmap(h Handle) error

	// Binding resolves a handle to its backing buffer range, for vertex and
	// index binding and for bind group construction.
	//
	// Parameters:
	//   - h: the allocation
	//
	// Returns:
	//   - device.Buffer: the backing device buffer
	//   - uint64: byte offset of the allocation within the buffer
	//   - uint64: byte size of the allocation
	//   - error: ErrInvalidHandle
	Binding(h Handle) (device.Buffer, uint64, uint64, error)

	// CreateAttachment creates a render target texture. Attachments are not
	// arena-backed; free them with DeferRelease.
	//
	// Parameters:
	//   - label: debug label
	//   - extent: pixel dimensions
	//   - format: pixel format
	//   - usage: usage bitmask
	//
	// Returns:
	//   - device.Texture: the texture
	//   - error: ErrAllocationFailed if the device cannot back it
	CreateAttachment(label string, extent common.Extent, format device.TextureFormat, usage device.TextureUsage) (device.Texture, error)

	// DeferRelease queues a resource for release once the current frame
	// completes. Used for attachments replaced during a resize while older
	// frames may still reference them.
	//
	// Parameters:
	//   - r: the resource to release later
	DeferRelease(r Releasable)

	// BeginFrame tags subsequent Free and DeferRelease calls with the given
	// frame index, so Collect knows which completed frame unblocks them.
	//
	// Parameters:
	//   - frame: the frame index now being recorded
	BeginFrame(frame uint64)

	// Collect destroys every deferred resource whose tagged frame is at or
	// below completedFrame.
	//
	// Parameters:
	//   - completedFrame: the highest frame index known to have completed
	//
	// Returns:
	//   - int: the number of resources destroyed
	Collect(completedFrame uint64) int

	// Pending reports how many resources await destruction.
	Pending() int

	// Release frees every arena and pending resource unconditionally. Only
	// valid after the device is idle.
	Release()
}

type arenaKey struct {
	usage device.BufferUsage
	kind  device.MemoryKind
}

type allocation struct {
	label      string
	generation uint32
	live       bool
	key        arenaKey
	block      *arenaBlock
	offset     uint64
	size       uint64
	kind       device.MemoryKind
	mapped     bool
}

type pendingSpan struct {
	key   arenaKey
	block *arenaBlock
	span  span
	frame uint64
}

type pendingRelease struct {
	r     Releasable
	frame uint64
}

type resourceManager struct {
	mu  sync.Mutex
	dev device.Device
	log *zap.Logger

	blockSize uint64

	arenas map[arenaKey]*arena

	allocations []allocation
	freeSlots   []uint32

	frame         uint64
	pendingSpans  []pendingSpan
	pendingFrees  []pendingRelease
}

var _ Manager = &resourceManager{}

func (m *resourceManager) Allocate(label string, size uint64, usage device.BufferUsage, kind device.MemoryKind) (Handle, error) {
	if size == 0 {
		return Handle{}, fmt.Errorf("%w: zero-size allocation %q", ErrAllocationFailed, label)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := arenaKey{usage: usage, kind: kind}
	a, ok := m.arenas[key]
	if !ok {
		a = newArena(usage, kind, m.blockSize)
		m.arenas[key] = a
	}

	grown := len(a.blocks)
	block, offset, err := a.allocate(m.dev, size)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %q (%d bytes, %s): %v", ErrAllocationFailed, label, size, usage, err)
	}
	if len(a.blocks) > grown {
		m.log.Debug("arena grew",
			zap.Stringer("usage", usage),
			zap.Int("blocks", len(a.blocks)),
			zap.Uint64("blockSize", a.blocks[len(a.blocks)-1].size),
		)
	}

	var index uint32
	if n := len(m.freeSlots); n > 0 {
		index = m.freeSlots[n-1]
		m.freeSlots = m.freeSlots[:n-1]
	} else {
		m.allocations = append(m.allocations, allocation{})
		index = uint32(len(m.allocations) - 1)
	}

	slot := &m.allocations[index]
	slot.label = label
	slot.generation++
	slot.live = true
	slot.key = key
	slot.block = block
	slot.offset = offset
	slot.size = size
	slot.kind = kind
	slot.mapped = false

	return Handle{index: index, generation: slot.generation}, nil
}

// lookup resolves a handle to its slot. Caller holds m.mu.
func (m *resourceManager) lookup(h Handle) (*allocation, error) {
	if h.IsZero() || int(h.index) >= len(m.allocations) {
		return nil, ErrInvalidHandle
	}
	slot := &m.allocations[h.index]
	if !slot.live || slot.generation != h.generation {
		return nil, fmt.Errorf("%w: stale handle to %q", ErrInvalidHandle, slot.label)
	}
	return slot, nil
}

func (m *resourceManager) Free(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, err := m.lookup(h)
	if err != nil {
		return err
	}
	slot.live = false
	m.freeSlots = append(m.freeSlots, h.index)
	m.pendingSpans = append(m.pendingSpans, pendingSpan{
		key:   slot.key,
		block: slot.block,
		span:  span{offset: slot.offset, size: alignUp(slot.size, m.arenas[slot.key].align)},
		frame: m.frame,
	})
	return nil
}

func (m *resourceManager) Write(h Handle, offset uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, err := m.lookup(h)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > slot.size {
		return fmt.Errorf("write of %d bytes at %d overflows %q (%d bytes)", len(data), offset, slot.label, slot.size)
	}
	slot.block.buf.Write(slot.offset+offset, data)
	return nil
}

func (m *resourceManager) Map(h Handle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, err := m.lookup(h)
	if err != nil {
		return nil, err
	}
	if slot.kind != device.MemoryHostVisible {
		return nil, fmt.Errorf("%w: %q is device-local", device.ErrNotMappable, slot.label)
	}
	mem, err := slot.block.buf.Map()
	if err != nil {
		return nil, err
	}
	slot.mapped = true
	return mem[slot.offset : slot.offset+slot.size], nil
}

func (m *resourceManager) Unmap(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, err := m.lookup(h)
	if err != nil {
		return err
	}
	if slot.mapped {
		slot.mapped = false
		slot.block.buf.Unmap()
	}
	return nil
}

func (m *resourceManager) Binding(h Handle) (device.Buffer, uint64, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, err := m.lookup(h)
	if err != nil {
		return nil, 0, 0, err
	}
	return slot.block.buf, slot.offset, slot.size, nil
}

func (m *resourceManager) CreateAttachment(label string, extent common.Extent, format device.TextureFormat, usage device.TextureUsage) (device.Texture, error) {
	tex, err := m.dev.CreateTexture(label, extent, format, usage)
	if err != nil {
		return nil, fmt.Errorf("%w: attachment %q (%dx%d): %v", ErrAllocationFailed, label, extent.Width, extent.Height, err)
	}
	return tex, nil
}

func (m *resourceManager) DeferRelease(r Releasable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingFrees = append(m.pendingFrees, pendingRelease{r: r, frame: m.frame})
}

func (m *resourceManager) BeginFrame(frame uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame = frame
}

func (m *resourceManager) Collect(completedFrame uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	collected := 0

	kept := m.pendingSpans[:0]
	for _, p := range m.pendingSpans {
		if p.frame <= completedFrame {
			p.block.put(p.span)
			collected++
		} else {
			kept = append(kept, p)
		}
	}
	m.pendingSpans = kept

	keptFrees := m.pendingFrees[:0]
	for _, p := range m.pendingFrees {
		if p.frame <= completedFrame {
			p.r.Release()
			collected++
		} else {
			keptFrees = append(keptFrees, p)
		}
	}
	m.pendingFrees = keptFrees

	if collected > 0 {
		m.log.Debug("collected deferred resources",
			zap.Int("count", collected),
			zap.Uint64("completedFrame", completedFrame),
		)
	}
	return collected
}

func (m *resourceManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pendingSpans) + len(m.pendingFrees)
}

func (m *resourceManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.pendingFrees {
		p.r.Release()
	}
	m.pendingFrees = nil
	m.pendingSpans = nil

	for _, a := range m.arenas {
		a.release()
	}
	m.arenas = map[arenaKey]*arena{}
	m.allocations = nil
	m.freeSlots = nil
}
