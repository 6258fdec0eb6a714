// File: api/dispatch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatch queue abstraction for compute draws.

package api

// DispatchQueue hands out compute work groups. Unlike macrotiles, groups are
// claimed atomically by the queue itself, so any number of workers may call
// GetWork concurrently.
type DispatchQueue interface {
	// GetWork claims the next unclaimed thread group. Returns false once
	// every group has been handed out.
	GetWork() (threadGroupID uint32, ok bool)

	// FinishedWork signals completion of one previously claimed group.
	FinishedWork()

	// GetNumQueued returns the number of unclaimed groups remaining.
	GetNumQueued() int

	// IsWorkComplete reports whether every group has been claimed and
	// finished.
	IsWorkComplete() bool
}
