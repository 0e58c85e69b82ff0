package material

import (
	"go.uber.org/zap"

	"github.com/Kalix-Works/helix-go/engine/device"
)

// RegistryOption configures a Registry during construction.
type RegistryOption func(*registry)

// NewRegistry creates a material Registry on the given device.
//
// Parameters:
//   - dev: the device pipelines and set layouts are created on
//   - opts: optional configuration
//
// Returns:
//   - Registry: the registry
func NewRegistry(dev device.Device, opts ...RegistryOption) Registry {
	r := &registry{
		dev:          dev,
		log:          zap.NewNop(),
		layouts:      map[uint64][]*LayoutDescription{},
		groupLayouts: map[groupKey]device.BindGroupLayout{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithLogger sets the logger the registry reports interning and
// construction activity to.
//
// Parameters:
//   - log: the logger to use
//
// Returns:
//   - RegistryOption: a function that sets the logger
func WithLogger(log *zap.Logger) RegistryOption {
	return func(r *registry) {
		if log != nil {
			r.log = log
		}
	}
}
