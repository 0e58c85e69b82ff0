package descriptor

import (
	"go.uber.org/zap"

	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/material"
)

// AllocatorOption configures an Allocator during construction.
type AllocatorOption func(*allocator)

const defaultCapacity = 256

// NewAllocator creates an Allocator with one pool per frame slot.
//
// Parameters:
//   - dev: the device bind groups are created on
//   - reg: the registry providing device-side set layouts
//   - slots: the number of frame slots
//   - opts: optional configuration
//
// Returns:
//   - Allocator: the allocator
func NewAllocator(dev device.Device, reg material.Registry, slots int, opts ...AllocatorOption) Allocator {
	a := &allocator{
		dev: dev,
		reg: reg,
		log: zap.NewNop(),
	}
	capacity := defaultCapacity
	for _, opt := range opts {
		opt(a)
	}
	if a.pools == nil {
		a.pools = make([]*pool, slots)
		for i := range a.pools {
			a.pools[i] = &pool{capacity: capacity}
		}
	}
	return a
}

// WithCapacity sets the initial per-slot group capacity.
//
// Parameters:
//   - slots: the number of frame slots
//   - capacity: groups available per slot per frame
//
// Returns:
//   - AllocatorOption: a function that sizes the pools
func WithCapacity(slots, capacity int) AllocatorOption {
	return func(a *allocator) {
		if slots <= 0 || capacity <= 0 {
			return
		}
		a.pools = make([]*pool, slots)
		for i := range a.pools {
			a.pools[i] = &pool{capacity: capacity}
		}
	}
}

// WithLogger sets the logger exhaustion and growth are reported to.
//
// Parameters:
//   - log: the logger to use
//
// Returns:
//   - AllocatorOption: a function that sets the logger
func WithLogger(log *zap.Logger) AllocatorOption {
	return func(a *allocator) {
		if log != nil {
			a.log = log
		}
	}
}
