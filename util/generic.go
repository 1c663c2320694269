// util/generic.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

///////////////////////////////////////////////////////////////////////////
// RingBuffer

// RingBuffer represents an array of no more than a given maximum number of
// items.  Once it has filled, old items are discarded to make way for new
// ones. It is the evicting window used for rolling averages.
type RingBuffer[V any] struct {
	entries []V
	max     int
	index   int
}

func NewRingBuffer[V any](capacity int) *RingBuffer[V] {
	return &RingBuffer[V]{max: capacity}
}

// Add adds all of the provided values to the ring buffer.
func (r *RingBuffer[V]) Add(values ...V) {
	for _, v := range values {
		if len(r.entries) < r.max {
			r.entries = append(r.entries, v)
		} else {
			// r.index%r.max is the oldest entry.
			r.entries[r.index%r.max] = v
		}
		r.index++
	}
}

// Size returns the total number of items stored in the ring buffer.
func (r *RingBuffer[V]) Size() int {
	return len(r.entries)
}

// Capacity returns the maximum number of items the buffer holds.
func (r *RingBuffer[V]) Capacity() int {
	return r.max
}

// Full reports whether the buffer holds Capacity() items.
func (r *RingBuffer[V]) Full() bool {
	return len(r.entries) == r.max
}

// Get returns the specified element of the ring buffer where the index i
// is between 0 and Size()-1 and 0 is the oldest element in the buffer.
func (r *RingBuffer[V]) Get(i int) V {
	if len(r.entries) < r.max {
		return r.entries[i]
	}
	return r.entries[(r.index+i)%r.max]
}

// Values returns the items in the buffer from oldest to newest.
func (r *RingBuffer[V]) Values() []V {
	v := make([]V, 0, len(r.entries))
	for i := range len(r.entries) {
		v = append(v, r.Get(i))
	}
	return v
}

// Clear removes all items from the buffer.
func (r *RingBuffer[V]) Clear() {
	r.entries = r.entries[:0]
	r.index = 0
}
