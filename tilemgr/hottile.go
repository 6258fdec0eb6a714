// File: tilemgr/hottile.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Hot-tile storage. A hot tile is the working pixel buffer for one
// macrotile; the scheduler asks for initialization once per tile, before
// draining it, when the tile's first queued work item is draw-kind.

package tilemgr

import (
	"sync"

	"github.com/momentics/rasterpool/api"
)

// MacroTileDim is the hot-tile edge length in pixels.
const MacroTileDim = 64

// hotTileBytes is the RGBA8 footprint of one hot tile.
const hotTileBytes = MacroTileDim * MacroTileDim * 4

// HotTile is one macrotile's resident pixel buffer.
type HotTile struct {
	Color  []byte
	DrawID uint32 // draw that last initialized this tile
}

// HotTileMgr keeps hot tiles resident across draws and recycles their
// buffers through a pool.
type HotTileMgr struct {
	mu      sync.Mutex
	tiles   map[uint32]*HotTile
	bufPool sync.Pool
}

var _ api.HotTileManager = (*HotTileMgr)(nil)

// NewHotTileMgr creates an empty hot-tile manager.
func NewHotTileMgr() *HotTileMgr {
	return &HotTileMgr{
		tiles: make(map[uint32]*HotTile),
		bufPool: sync.Pool{
			New: func() any { return make([]byte, hotTileBytes) },
		},
	}
}

// InitializeHotTiles makes the tile's pixel buffer resident and tags it
// with the initializing draw.
func (m *HotTileMgr) InitializeHotTiles(drawID, tileID uint32) {
	m.mu.Lock()
	ht, ok := m.tiles[tileID]
	if !ok {
		ht = &HotTile{Color: m.bufPool.Get().([]byte)}
		m.tiles[tileID] = ht
	}
	ht.DrawID = drawID
	m.mu.Unlock()
}

// Evict releases a tile's buffer back to the pool.
func (m *HotTileMgr) Evict(tileID uint32) {
	m.mu.Lock()
	if ht, ok := m.tiles[tileID]; ok {
		m.bufPool.Put(ht.Color)
		delete(m.tiles, tileID)
	}
	m.mu.Unlock()
}
