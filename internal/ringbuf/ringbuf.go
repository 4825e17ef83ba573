// Package ringbuf provides a fixed-capacity circular buffer of float64
// values with explicit eviction reporting. It backs the indicator sliding
// windows and any indicator that needs positional access to past values.
package ringbuf

// Ring is a fixed-capacity circular store of float64 values.
//
// Push appends a value, reporting the evicted oldest one once the ring is
// full. Replace overwrites the most recently pushed slot, which is how a
// forming bar's value is repainted in place. head marks the next write
// position, tail the last written one.
type Ring struct {
	buf  []float64
	head int
	tail int
	len  int
}

// New creates a ring buffer with the given capacity.
// Panics if capacity is not positive.
func New(capacity int) *Ring {
	if capacity < 1 {
		panic("ringbuf: capacity must be positive")
	}
	return &Ring{buf: make([]float64, capacity)}
}

// Ready reports whether the ring has filled to capacity.
func (r *Ring) Ready() bool { return r.len == len(r.buf) }

// Len returns the current number of values in the ring.
func (r *Ring) Len() int { return r.len }

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Push appends a value. Once the ring is full, the oldest value is
// overwritten and returned with evicted=true; while still filling,
// evicted is false.
func (r *Ring) Push(value float64) (old float64, evicted bool) {
	if r.Ready() {
		old = r.buf[r.head]
		r.buf[r.head] = value
		r.tail = r.head
		r.head++
		if r.head == len(r.buf) {
			r.head = 0
		}
		return old, true
	}

	r.buf[r.len] = value
	r.tail = r.len
	r.len++
	return 0, false
}

// Replace overwrites the most recently pushed value and returns the value
// it replaced. Must not be called on an empty ring.
func (r *Ring) Replace(value float64) float64 {
	if r.len == 0 {
		panic("ringbuf: Replace on empty ring")
	}
	old := r.buf[r.tail]
	r.buf[r.tail] = value
	return old
}

// Clone returns an independent copy sharing no storage with the original.
func (r *Ring) Clone() *Ring {
	buf := make([]float64, len(r.buf))
	copy(buf, r.buf)
	return &Ring{buf: buf, head: r.head, tail: r.tail, len: r.len}
}
