// File: api/work.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Work descriptors flowing through the front-end and back-end stages.

package api

// WorkKind discriminates the payload queued to a macrotile.
type WorkKind uint32

const (
	// WorkDraw is rasterization work binned from a draw call. A tile whose
	// first queued item is WorkDraw gets hot-tile initialization before it
	// is drained; a WorkDraw item behind another kind does not trigger it.
	WorkDraw WorkKind = iota
	// WorkClear clears a tile without touching hot tiles first.
	WorkClear
	// WorkDiscard invalidates queued tile state.
	WorkDiscard
)

// BEWorkFunc executes one back-end work item on a locked macrotile.
// The draw context is captured by the producer at enqueue time. Handlers
// must be re-entrant across tiles; the scheduler guarantees at most one
// invocation per tile at a time.
type BEWorkFunc func(workerID, tileID uint32, desc any)

// BEWork is a single back-end work item inside a macrotile FIFO.
type BEWork struct {
	Kind WorkKind
	Fn   BEWorkFunc
	Desc any
}

// FEWorkFunc runs the front-end (geometry) stage of a draw. It is invoked
// exactly once per draw, by the worker that wins the FE claim. The function
// must not mutate scheduler-owned draw flags.
type FEWorkFunc func(workerID uint32, desc any)

// FEWork is the front-end stage descriptor attached to a graphics draw.
type FEWork struct {
	Fn   FEWorkFunc
	Desc any
}

// ComputeFunc executes one compute work group. The spill/fill buffer is
// scratch space reused across groups processed by the same worker within
// one dispatch.
type ComputeFunc func(workerID, threadGroupID uint32, spillFill *[]byte)
