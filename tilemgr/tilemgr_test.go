// File: tilemgr/tilemgr_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tilemgr

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/momentics/rasterpool/api"
)

func TestTileIDRoundTrip(t *testing.T) {
	m := New()
	for _, xy := range [][2]uint32{{0, 0}, {1, 2}, {255, 17}, {0xffff, 0xffff}} {
		id := TileID(xy[0], xy[1])
		x, y := m.GetTileIndices(id)
		if x != xy[0] || y != xy[1] {
			t.Errorf("TileID(%d,%d) round-tripped to (%d,%d)", xy[0], xy[1], x, y)
		}
	}
}

func TestEnqueueDirtyAndDrain(t *testing.T) {
	m := New()

	m.Enqueue(0, 0, &api.BEWork{Kind: api.WorkDraw})
	m.Enqueue(0, 0, &api.BEWork{Kind: api.WorkDraw})
	m.Enqueue(3, 1, &api.BEWork{Kind: api.WorkClear})

	dirty := m.GetDirtyTiles()
	if len(dirty) != 2 {
		t.Fatalf("%d dirty tiles, want 2", len(dirty))
	}
	if m.IsWorkComplete() {
		t.Fatal("work complete with items queued")
	}

	for _, tile := range dirty {
		if !tile.TryLock() {
			t.Fatalf("fresh tile %#x locked", tile.ID())
		}
		for w := tile.Peek(); w != nil; w = tile.Peek() {
			tile.Dequeue()
		}
		if tile.NumQueued() != 0 {
			t.Fatalf("tile %#x reports %d queued after drain", tile.ID(), tile.NumQueued())
		}
		m.MarkTileComplete(tile.ID())
	}

	if !m.IsWorkComplete() {
		t.Fatal("work not complete after full drain")
	}
}

func TestTryLockIsOneShot(t *testing.T) {
	m := New()
	m.Enqueue(1, 1, &api.BEWork{})

	tile := m.GetDirtyTiles()[0]
	if !tile.TryLock() {
		t.Fatal("first TryLock failed")
	}
	if tile.TryLock() {
		t.Fatal("second TryLock succeeded on a held tile")
	}

	// Initialize rearms the lock for the next draw in this slot.
	m.Initialize()
	if !tile.TryLock() {
		t.Fatal("TryLock failed after Initialize")
	}
}

func TestTryLockSingleWinner(t *testing.T) {
	m := New()
	m.Enqueue(2, 2, &api.BEWork{})
	tile := m.GetDirtyTiles()[0]

	const racers = 16
	var winners atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if tile.TryLock() {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if n := winners.Load(); n != 1 {
		t.Fatalf("%d goroutines won the tile lock, want exactly 1", n)
	}
}

func TestMarkTileCompleteTwicePanics(t *testing.T) {
	m := New()
	m.Enqueue(0, 0, &api.BEWork{})
	tile := m.GetDirtyTiles()[0]
	tile.TryLock()
	tile.Dequeue()
	m.MarkTileComplete(tile.ID())

	defer func() {
		if recover() == nil {
			t.Fatal("double MarkTileComplete must panic")
		}
	}()
	m.MarkTileComplete(tile.ID())
}

func TestInitializeRearmsSlot(t *testing.T) {
	m := New()
	m.Enqueue(0, 0, &api.BEWork{})
	tile := m.GetDirtyTiles()[0]
	tile.TryLock()
	tile.Dequeue()
	m.MarkTileComplete(tile.ID())

	m.Initialize()

	if len(m.GetDirtyTiles()) != 0 {
		t.Fatal("dirty list survived Initialize")
	}
	if !m.IsWorkComplete() {
		t.Fatal("fresh manager must report work complete")
	}

	// The same screen region binned again reuses the tile object.
	m.Enqueue(0, 0, &api.BEWork{})
	if len(m.GetDirtyTiles()) != 1 {
		t.Fatal("re-binned tile not dirty")
	}
	if got := m.GetDirtyTiles()[0]; got != tile {
		t.Error("tile object not reused across Initialize")
	}
}

func TestDispatchQueueClaimsEachGroupOnce(t *testing.T) {
	const groups = 64
	q := NewDispatchQueue(groups)

	var claims [groups]atomic.Int32
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				id, ok := q.GetWork()
				if !ok {
					return
				}
				claims[id].Add(1)
				q.FinishedWork()
			}
		}()
	}
	wg.Wait()

	for i := range claims {
		if n := claims[i].Load(); n != 1 {
			t.Errorf("group %d claimed %d times, want 1", i, n)
		}
	}
	if !q.IsWorkComplete() {
		t.Fatal("queue not complete after all groups finished")
	}
	if q.GetNumQueued() != 0 {
		t.Fatalf("GetNumQueued = %d after drain", q.GetNumQueued())
	}
}

func TestDispatchQueueRearm(t *testing.T) {
	q := NewDispatchQueue(2)
	q.GetWork()
	q.FinishedWork()

	q.Initialize(3)
	if q.GetNumQueued() != 3 {
		t.Fatalf("GetNumQueued = %d after rearm, want 3", q.GetNumQueued())
	}
	if q.IsWorkComplete() {
		t.Fatal("rearmed queue reports complete")
	}
}

func TestHotTileMgrResidency(t *testing.T) {
	m := NewHotTileMgr()

	m.InitializeHotTiles(1, TileID(0, 0))
	m.InitializeHotTiles(2, TileID(0, 0)) // same tile, later draw

	m.mu.Lock()
	ht := m.tiles[TileID(0, 0)]
	m.mu.Unlock()
	if ht == nil {
		t.Fatal("hot tile not resident")
	}
	if len(ht.Color) != hotTileBytes {
		t.Fatalf("hot tile buffer %d bytes, want %d", len(ht.Color), hotTileBytes)
	}
	if ht.DrawID != 2 {
		t.Errorf("hot tile tagged with draw %d, want 2", ht.DrawID)
	}

	m.Evict(TileID(0, 0))
	m.mu.Lock()
	_, still := m.tiles[TileID(0, 0)]
	m.mu.Unlock()
	if still {
		t.Fatal("tile survived eviction")
	}
}
