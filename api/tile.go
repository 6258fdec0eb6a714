// File: api/tile.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Macrotile and tile-manager abstractions consumed by the back-end scheduler.

package api

// MacroTile is one rectangular screen region with its own work FIFO and a
// non-recursive try-lock. The lock is one-shot per draw: the winner drains
// the FIFO and the tile is rearmed when its manager is re-initialized at
// draw retirement.
type MacroTile interface {
	// ID returns the packed tile identifier.
	ID() uint32

	// NumQueued returns the number of work items not yet dequeued.
	NumQueued() int

	// TryLock attempts to take exclusive ownership of the tile.
	TryLock() bool

	// Peek returns the head work item without removing it, or nil.
	Peek() *BEWork

	// Dequeue removes the head work item.
	Dequeue()
}

// TileManager owns the set of dirty macrotiles for a single draw.
// One instance lives inside each draw context slot and is re-initialized
// when the draw retires.
type TileManager interface {
	// GetDirtyTiles returns every macrotile with work queued this draw.
	GetDirtyTiles() []MacroTile

	// GetTileIndices unpacks a tile id into its 2-D tile coordinates.
	GetTileIndices(tileID uint32) (x, y uint32)

	// MarkTileComplete records that a drained tile has finished all work.
	MarkTileComplete(tileID uint32)

	// IsWorkComplete reports whether every queued work item of the draw
	// has been consumed.
	IsWorkComplete() bool

	// Initialize resets the manager for slot reuse.
	Initialize()
}

// HotTileManager prepares per-tile render-target storage. InitializeHotTiles
// is called once per tile per draw, before the tile is drained, when the
// tile's first queued item is a WorkDraw item.
type HotTileManager interface {
	InitializeHotTiles(drawID, tileID uint32)
}
