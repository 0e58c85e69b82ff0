package resource

import (
	"fmt"

	"github.com/Kalix-Works/helix-go/engine/device"
)

// span is a byte range within an arena block.
type span struct {
	offset uint64
	size   uint64
}

// arenaBlock is one device buffer sub-allocated by an arena. New allocations
// bump the cursor; freed spans go on the free list and are handed out
// first-fit. Spans are not coalesced — the engine's allocation sizes repeat
// frame to frame, so freed spans are reused at the same size.
type arenaBlock struct {
	buf    device.Buffer
	size   uint64
	cursor uint64
	free   []span
}

func (b *arenaBlock) take(size uint64) (uint64, bool) {
	for i, s := range b.free {
		if s.size >= size {
			b.free = append(b.free[:i], b.free[i+1:]...)
			if s.size > size {
				b.free = append(b.free, span{offset: s.offset + size, size: s.size - size})
			}
			return s.offset, true
		}
	}
	if b.cursor+size <= b.size {
		offset := b.cursor
		b.cursor += size
		return offset, true
	}
	return 0, false
}

func (b *arenaBlock) put(s span) {
	b.free = append(b.free, s)
}

// arena owns the device buffers for one (usage class, memory kind) pair.
// Each usage class has its own alignment rules, so classes never share a
// block.
type arena struct {
	usage     device.BufferUsage
	kind      device.MemoryKind
	align     uint64
	blockSize uint64
	blocks    []*arenaBlock
}

func newArena(usage device.BufferUsage, kind device.MemoryKind, blockSize uint64) *arena {
	align := uint64(4)
	switch usage {
	case device.BufferUsageUniform:
		// WebGPU's minimum dynamic uniform offset alignment.
		align = 256
	case device.BufferUsageStaging:
		align = 16
	}
	return &arena{
		usage:     usage,
		kind:      kind,
		align:     align,
		blockSize: blockSize,
	}
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// allocate returns a block and offset holding size bytes. Grows the arena
// with a new device buffer when no existing block fits.
func (a *arena) allocate(dev device.Device, size uint64) (*arenaBlock, uint64, error) {
	size = alignUp(size, a.align)

	for _, b := range a.blocks {
		if offset, ok := b.take(size); ok {
			return b, offset, nil
		}
	}

	blockSize := a.blockSize
	if size > blockSize {
		blockSize = size
	}
	buf, err := dev.CreateBuffer(
		fmt.Sprintf("%s arena block %d", a.usage, len(a.blocks)),
		blockSize, a.usage, a.kind,
	)
	if err != nil {
		return nil, 0, err
	}
	b := &arenaBlock{buf: buf, size: blockSize}
	a.blocks = append(a.blocks, b)
	offset, _ := b.take(size)
	return b, offset, nil
}

func (a *arena) release() {
	for _, b := range a.blocks {
		b.buf.Release()
	}
	a.blocks = nil
}
