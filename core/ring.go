// File: core/ring.go
// Package core implements the draw ring and NUMA-aware scheduling core.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// drawRing is a bounded ring of draw contexts with atomic head/tail,
// padded to prevent false sharing. Single writer at the head (the API
// thread); the tail moves only under the retirement of the oldest draw,
// which is single-writer by construction. No ring-wide lock.

package core

import "sync/atomic"

// drawRing indexes entries by a monotonically increasing draw cursor.
// Cursor value n maps to draw id n+1 and to slot n % capacity. The ring is
// full when head-tail equals capacity; unsigned subtraction keeps the test
// wrap-safe.
type drawRing struct {
	entries []DrawContext

	_    [64]byte // keep head and tail on separate cache lines
	head atomic.Uint32
	_    [64]byte
	tail atomic.Uint32
	_    [64]byte
}

func newDrawRing(capacity uint32) *drawRing {
	if capacity == 0 {
		panic("core: draw ring capacity must be positive")
	}
	return &drawRing{entries: make([]DrawContext, capacity)}
}

// GetHead returns the count of draws enqueued so far; the cursor value of
// the next draw to be enqueued.
func (r *drawRing) GetHead() uint32 { return r.head.Load() }

// Entry returns the slot for draw cursor cur.
func (r *drawRing) Entry(cur uint32) *DrawContext {
	return &r.entries[cur%uint32(len(r.entries))]
}

// Enqueue publishes the next draw. The slot must be fully prepared before
// the head store; the atomic increment is the release point workers
// synchronize on.
func (r *drawRing) Enqueue() {
	if r.head.Load()-r.tail.Load() >= uint32(len(r.entries)) {
		panic("core: draw ring overflow")
	}
	r.head.Add(1)
}

// Dequeue retires the oldest draw. Called exactly once per draw, by the
// worker whose decrement drove threadsDone to zero.
func (r *drawRing) Dequeue() {
	if r.head.Load() == r.tail.Load() {
		panic("core: draw ring underflow")
	}
	r.tail.Add(1)
}

// IsFull reports whether every slot holds an unretired draw.
func (r *drawRing) IsFull() bool {
	return r.head.Load()-r.tail.Load() >= uint32(len(r.entries))
}

// IsEmpty reports whether all enqueued draws have retired.
func (r *drawRing) IsEmpty() bool {
	return r.head.Load() == r.tail.Load()
}

// Len returns the number of draws in flight.
func (r *drawRing) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Cap returns the fixed capacity.
func (r *drawRing) Cap() int { return len(r.entries) }
