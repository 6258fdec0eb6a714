// File: arena/arena.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bump allocator tied to the lifetime of one draw. Workers allocate
// transient geometry and bin data from it during the draw; the scheduler
// resets it at retirement. Individual allocations are never freed.

package arena

import "github.com/momentics/rasterpool/api"

// DefaultBlockSize is the granularity of backing block growth.
const DefaultBlockSize = 128 * 1024

// Arena is a block-chained bump allocator. It is not safe for concurrent
// use; each draw stage allocates from its own arena.
type Arena struct {
	blocks    [][]byte
	cur       int // index of the block being bumped
	off       int // bump offset within blocks[cur]
	blockSize int
}

var _ api.Arena = (*Arena)(nil)

// New creates an arena with one backing block of blockSize bytes.
// A non-positive blockSize selects DefaultBlockSize.
func New(blockSize int) *Arena {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Arena{
		blocks:    [][]byte{make([]byte, blockSize)},
		blockSize: blockSize,
	}
}

// Alloc returns size bytes aligned to align. Requests larger than the block
// size get a dedicated block.
func (a *Arena) Alloc(size, align int) []byte {
	if size <= 0 {
		return nil
	}
	if align <= 0 {
		align = 8
	}

	off := alignUp(a.off, align)
	if off+size > len(a.blocks[a.cur]) {
		a.grow(size)
		off = 0
	}
	buf := a.blocks[a.cur][off : off+size : off+size]
	a.off = off + size
	return buf
}

// Reset recycles the arena for the next draw. A deep reset drops every
// backing block beyond the first so that a draw with an outsized transient
// footprint does not pin that memory for the life of the ring slot.
func (a *Arena) Reset(deep bool) {
	if deep && len(a.blocks) > 1 {
		a.blocks = a.blocks[:1]
	}
	a.cur = 0
	a.off = 0
}

// Footprint returns the total bytes held in backing blocks.
func (a *Arena) Footprint() int {
	total := 0
	for _, b := range a.blocks {
		total += len(b)
	}
	return total
}

func (a *Arena) grow(size int) {
	// Reuse a retained block when a shallow Reset left one behind.
	if a.cur+1 < len(a.blocks) && size <= len(a.blocks[a.cur+1]) {
		a.cur++
		a.off = 0
		return
	}
	n := a.blockSize
	if size > n {
		n = size
	}
	a.blocks = append(a.blocks[:a.cur+1], make([]byte, n))
	a.cur++
	a.off = 0
}

func alignUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}
