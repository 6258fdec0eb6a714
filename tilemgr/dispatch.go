// File: tilemgr/dispatch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatch queue for compute draws. Thread groups are claimed atomically by
// the queue, so workers race on GetWork instead of on per-tile locks.

package tilemgr

import "sync/atomic"

// DispatchQueue hands out thread group ids [0, numTasks).
type DispatchQueue struct {
	numTasks    int64
	next        atomic.Int64
	outstanding atomic.Int64
}

// NewDispatchQueue creates a queue of numGroups thread groups.
func NewDispatchQueue(numGroups int) *DispatchQueue {
	q := &DispatchQueue{}
	q.Initialize(numGroups)
	return q
}

// Initialize rearms the queue for ring-slot reuse.
func (q *DispatchQueue) Initialize(numGroups int) {
	q.numTasks = int64(numGroups)
	q.next.Store(0)
	q.outstanding.Store(int64(numGroups))
}

// GetWork claims the next unclaimed thread group.
func (q *DispatchQueue) GetWork() (uint32, bool) {
	claim := q.next.Add(1) - 1
	if claim >= q.numTasks {
		return 0, false
	}
	return uint32(claim), true
}

// FinishedWork signals completion of one claimed group.
func (q *DispatchQueue) FinishedWork() {
	if q.outstanding.Add(-1) < 0 {
		panic("tilemgr: dispatch finishedWork underflow")
	}
}

// GetNumQueued returns the number of unclaimed groups.
func (q *DispatchQueue) GetNumQueued() int {
	r := q.numTasks - q.next.Load()
	if r < 0 {
		return 0
	}
	return int(r)
}

// IsWorkComplete reports whether every group has been claimed and finished.
func (q *DispatchQueue) IsWorkComplete() bool {
	return q.outstanding.Load() == 0
}
