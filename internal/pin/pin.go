// Package pin provides the atomic pin counter a buffer pool frame uses
// to forbid eviction while a page is in use, adapted from the teacher's
// internal/lock.RefCount (there used for the same purpose, on raw
// sync/atomic) onto go.uber.org/atomic so the rest of the frame's
// fields share one atomics package.
package pin

import uatomic "go.uber.org/atomic"

// Count is a non-negative pin counter. A frame is pinned iff Get() > 0.
type Count struct {
	n uatomic.Int32
}

// Inc takes one pin.
func (c *Count) Inc() { c.n.Inc() }

// Dec releases one pin and returns the count remaining. Panics if the
// count would go negative, which indicates a double-release bug at the
// call site rather than an operational error (spec.md §7).
func (c *Count) Dec() int32 {
	n := c.n.Dec()
	if n < 0 {
		panic("pin: count dropped below zero")
	}
	return n
}

// Get reads the current pin count.
func (c *Count) Get() int32 { return c.n.Load() }
