// File: api/arena.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Arena abstraction for per-draw transient allocations.

package api

// Arena is a bump allocator whose lifetime is tied to one draw. The
// scheduler resets it at retirement; it never frees individual allocations.
type Arena interface {
	// Alloc returns size bytes aligned to align.
	Alloc(size, align int) []byte

	// Reset recycles the arena. A deep reset also releases backing blocks
	// beyond the first.
	Reset(deep bool)
}
