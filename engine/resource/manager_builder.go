package resource

import (
	"go.uber.org/zap"

	"github.com/Kalix-Works/helix-go/engine/device"
)

// ManagerOption configures a Manager during construction.
type ManagerOption func(*resourceManager)

// NewManager creates a resource Manager backed by the given device.
//
// Parameters:
//   - dev: the device allocations are created on
//   - opts: optional configuration
//
// Returns:
//   - Manager: the manager
func NewManager(dev device.Device, opts ...ManagerOption) Manager {
	m := &resourceManager{
		dev:       dev,
		log:       zap.NewNop(),
		blockSize: 4 << 20,
		arenas:    map[arenaKey]*arena{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithLogger sets the logger the manager reports arena growth and
// collection activity to.
//
// Parameters:
//   - log: the logger to use
//
// Returns:
//   - ManagerOption: a function that sets the logger
func WithLogger(log *zap.Logger) ManagerOption {
	return func(m *resourceManager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithBlockSize sets the byte size of new arena blocks. Allocations larger
// than the block size get a dedicated block.
//
// Parameters:
//   - size: the block size in bytes
//
// Returns:
//   - ManagerOption: a function that sets the block size
func WithBlockSize(size uint64) ManagerOption {
	return func(m *resourceManager) {
		if size > 0 {
			m.blockSize = size
		}
	}
}
