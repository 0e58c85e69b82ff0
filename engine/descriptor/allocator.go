// Package descriptor hands out per-frame bind groups from per-slot pools.
// Each pipelined frame slot owns an isolated pool: exhaustion in one slot
// never affects another, and resetting a slot recycles its groups in bulk
// when that slot's frame completes.
package descriptor

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/material"
)

// ErrPoolExhausted is returned when a slot's pool has no capacity left this
// frame. It fails the frame; the pool grows at the slot's next Reset.
var ErrPoolExhausted = errors.New("descriptor pool exhausted")

// Resource binds one slot of a set to a concrete buffer range or texture.
// Its shape against the layout was already validated when the material
// instance was constructed.
type Resource struct {
	// Binding is the slot index within the set.
	Binding uint32
	// Buffer, Offset and Size describe a buffer range, for buffer kinds.
	Buffer device.Buffer
	Offset uint64
	Size   uint64
	// Texture is the bound texture, for image kinds.
	Texture device.Texture
}

// Allocator builds bind groups from per-slot pools.
//
// Allocate takes a material instance whose binding shapes were validated at
// construction; it never re-validates during frame recording.
type Allocator interface {
	// Allocate builds a bind group in the given slot's pool.
	//
	// Parameters:
	//   - slot: the frame slot whose pool to allocate from
	//   - label: debug label
	//   - inst: the validated material instance the group binds for
	//   - set: the set index within the instance's layout
	//   - resources: the concrete resources, in the instance's shape
	//
	// Returns:
	//   - device.BindGroup: the bind group, owned by the pool until Reset
	//   - error: ErrPoolExhausted or a device error
	Allocate(slot int, label string, inst *material.Instance, set int, resources []Resource) (device.BindGroup, error)

	// Reset recycles every group in the slot's pool and applies any growth
	// requested by an exhaustion earlier in that slot. Call only after the
	// slot's frame has completed on the device.
	//
	// Parameters:
	//   - slot: the frame slot to reset
	Reset(slot int)

	// Capacity reports the slot's current per-frame group capacity.
	//
	// Parameters:
	//   - slot: the frame slot
	//
	// Returns:
	//   - int: the capacity
	Capacity(slot int) int

	// Release frees every pool. Only valid after the device is idle.
	Release()
}

type pool struct {
	capacity    int
	groups      []device.BindGroup
	growPending bool
}

type allocator struct {
	mu  sync.Mutex
	dev device.Device
	reg material.Registry
	log *zap.Logger

	pools []*pool
}

var _ Allocator = &allocator{}

func (a *allocator) Allocate(slot int, label string, inst *material.Instance, set int, resources []Resource) (device.BindGroup, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if slot < 0 || slot >= len(a.pools) {
		return nil, fmt.Errorf("descriptor slot %d out of range (%d slots)", slot, len(a.pools))
	}
	p := a.pools[slot]

	if len(p.groups) >= p.capacity {
		if !p.growPending {
			p.growPending = true
			a.log.Warn("descriptor pool exhausted",
				zap.Int("slot", slot),
				zap.Int("capacity", p.capacity),
			)
		}
		return nil, fmt.Errorf("%w: slot %d at capacity %d", ErrPoolExhausted, slot, p.capacity)
	}

	groupLayout, err := a.reg.GroupLayout(inst.Layout(), set)
	if err != nil {
		return nil, err
	}

	bindings := make([]device.BindingResource, len(resources))
	for i, r := range resources {
		bindings[i] = device.BindingResource{
			Binding: r.Binding,
			Buffer:  r.Buffer,
			Offset:  r.Offset,
			Size:    r.Size,
			Texture: r.Texture,
		}
	}
	group, err := a.dev.CreateBindGroup(label, groupLayout, bindings)
	if err != nil {
		return nil, err
	}
	p.groups = append(p.groups, group)
	return group, nil
}

func (a *allocator) Reset(slot int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if slot < 0 || slot >= len(a.pools) {
		return
	}
	p := a.pools[slot]
	for _, g := range p.groups {
		g.Release()
	}
	p.groups = p.groups[:0]

	if p.growPending {
		p.growPending = false
		p.capacity *= 2
		a.log.Info("descriptor pool grown",
			zap.Int("slot", slot),
			zap.Int("capacity", p.capacity),
		)
	}
}

func (a *allocator) Capacity(slot int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if slot < 0 || slot >= len(a.pools) {
		return 0
	}
	return a.pools[slot].capacity
}

func (a *allocator) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.pools {
		for _, g := range p.groups {
			g.Release()
		}
		p.groups = nil
	}
}
