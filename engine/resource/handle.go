package resource

// Handle is an opaque reference to a buffer allocation. Handles are
// generation-tagged: freeing an allocation invalidates every outstanding
// handle to it, and a reused slot gets a new generation, so stale handles
// are detected instead of aliasing a different allocation.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether the handle is the zero value, which never refers
// to a live allocation.
func (h Handle) IsZero() bool {
	return h.generation == 0
}
