// File: tilemgr/tilemgr.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Macrotile work manager. Each draw context owns one MacroTileMgr; the
// front end bins work into per-tile FIFOs and back-end workers drain whole
// tiles under a per-tile try-lock. Tile objects persist across draws in the
// same ring slot so repeated touches of a screen region stay warm.

package tilemgr

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/rasterpool/api"
)

// TileID packs 2-D macrotile indices into one id.
func TileID(x, y uint32) uint32 {
	return x<<16 | y&0xffff
}

// MacroTile is one screen region's work FIFO plus its claim lock.
// Producer side (Enqueue) runs only while the draw's front end is active;
// consumer side (Peek/Dequeue) only after the front end is done, under the
// try-lock. The two phases never overlap, so the FIFO itself needs no lock.
type MacroTile struct {
	id        uint32
	lock      atomic.Uint32
	fifo      *queue.Queue
	queued    atomic.Int32
	completed atomic.Bool
	mgr       *MacroTileMgr
}

// ID returns the packed tile identifier.
func (t *MacroTile) ID() uint32 { return t.id }

// NumQueued returns the count of work items not yet dequeued.
func (t *MacroTile) NumQueued() int { return int(t.queued.Load()) }

// TryLock attempts to claim the tile. The lock is one-shot per draw and is
// rearmed by MacroTileMgr.Initialize at retirement.
func (t *MacroTile) TryLock() bool {
	return t.lock.CompareAndSwap(0, 1)
}

// Peek returns the head work item without removing it, or nil when drained.
func (t *MacroTile) Peek() *api.BEWork {
	if t.fifo.Length() == 0 {
		return nil
	}
	return t.fifo.Peek().(*api.BEWork)
}

// Dequeue removes the head work item.
func (t *MacroTile) Dequeue() {
	t.fifo.Remove()
	t.queued.Add(-1)
	t.mgr.consumed.Add(1)
}

// MacroTileMgr tracks the dirty macrotiles of one draw.
type MacroTileMgr struct {
	mu    sync.Mutex
	tiles map[uint32]*MacroTile
	dirty []api.MacroTile

	produced atomic.Int64
	consumed atomic.Int64
}

var _ api.TileManager = (*MacroTileMgr)(nil)

// New creates an empty macrotile manager.
func New() *MacroTileMgr {
	return &MacroTileMgr{tiles: make(map[uint32]*MacroTile)}
}

// Enqueue bins one back-end work item to the macrotile at (x, y).
func (m *MacroTileMgr) Enqueue(x, y uint32, work *api.BEWork) {
	id := TileID(x, y)

	m.mu.Lock()
	tile, ok := m.tiles[id]
	if !ok {
		tile = &MacroTile{id: id, fifo: queue.New(), mgr: m}
		m.tiles[id] = tile
	}
	if tile.queued.Load() == 0 && !tile.completed.Load() {
		m.dirty = append(m.dirty, tile)
	}
	m.mu.Unlock()

	tile.fifo.Add(work)
	tile.queued.Add(1)
	m.produced.Add(1)
}

// GetDirtyTiles returns every macrotile that received work this draw.
func (m *MacroTileMgr) GetDirtyTiles() []api.MacroTile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// GetTileIndices unpacks a tile id.
func (m *MacroTileMgr) GetTileIndices(tileID uint32) (x, y uint32) {
	return tileID >> 16, tileID & 0xffff
}

// MarkTileComplete records the end of a tile's drain. Exactly one worker
// reaches this per tile per draw (the try-lock winner).
func (m *MacroTileMgr) MarkTileComplete(tileID uint32) {
	m.mu.Lock()
	tile := m.tiles[tileID]
	m.mu.Unlock()
	if tile == nil {
		panic(fmt.Sprintf("tilemgr: markTileComplete on unknown tile %#x", tileID))
	}
	if !tile.completed.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("tilemgr: tile %#x completed twice", tileID))
	}
}

// IsWorkComplete reports whether every binned work item has been consumed.
func (m *MacroTileMgr) IsWorkComplete() bool {
	return m.consumed.Load() == m.produced.Load()
}

// Initialize rearms the manager for ring-slot reuse: counters cleared, tile
// locks released, dirty list emptied. Tile objects are retained.
func (m *MacroTileMgr) Initialize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tiles {
		for t.fifo.Length() > 0 {
			t.fifo.Remove()
		}
		t.queued.Store(0)
		t.lock.Store(0)
		t.completed.Store(false)
	}
	m.dirty = m.dirty[:0]
	m.produced.Store(0)
	m.consumed.Store(0)
}
