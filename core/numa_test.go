// File: core/numa_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Drives the back-end scheduler directly to pin down the NUMA tile filter
// and the per-worker cursor bookkeeping, without live worker threads.

package core

import (
	"testing"

	"github.com/momentics/rasterpool/api"
	"github.com/momentics/rasterpool/control"
	"github.com/momentics/rasterpool/tilemgr"
)

// manualContext builds a single-threaded context whose draws are published
// without the inline drain, so the test controls every scheduling pass.
func manualContext(t *testing.T) *Context {
	t.Helper()
	k := control.Default()
	k.SingleThreaded = true
	ctx, err := NewContext(k)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if err := CreateThreadPool(ctx); err != nil {
		t.Fatalf("CreateThreadPool: %v", err)
	}
	return ctx
}

// publish enqueues dc as Submit would, minus the inline work.
func publish(ctx *Context, dc *DrawContext) {
	dc.threadsDone.Store(int32(ctx.numFEThreads + ctx.numBEThreads))
	if !dc.isCompute {
		ctx.drawsOutstandingFE.Add(1)
	}
	ctx.dcRing.Enqueue()
}

// S5: with numaMask=1, a pass for node 0 drains exactly the tiles whose
// coordinate parity (x^y)&1 is 0, a pass for node 1 drains the rest, and
// neither set starves.
func TestNumaTileFilter(t *testing.T) {
	ctx := manualContext(t)

	ran := make(map[uint32]int)
	beFn := func(workerID, tileID uint32, desc any) { ran[tileID]++ }

	// Parity 0: (0,0), (1,1); parity 1: (1,0), (0,1).
	even := [][2]uint32{{0, 0}, {1, 1}}
	odd := [][2]uint32{{1, 0}, {0, 1}}

	dc := ctx.GetDrawContext(false)
	all := append(append([][2]uint32{}, even...), odd...)
	dc.FeWork.Fn = binTiles(dc, all, beFn)
	publish(ctx, dc)

	var curFE, curBE uint32
	locked := make(TileSet)

	WorkOnFifoFE(ctx, 0, &curFE)
	if !dc.doneFE.Load() {
		t.Fatal("front end did not complete")
	}

	WorkOnFifoBE(ctx, 0, &curBE, locked, 0, 1)
	for _, xy := range even {
		if n := ran[tilemgr.TileID(xy[0], xy[1])]; n != 1 {
			t.Errorf("node-0 pass: tile (%d,%d) ran %d times, want 1", xy[0], xy[1], n)
		}
	}
	for _, xy := range odd {
		if n := ran[tilemgr.TileID(xy[0], xy[1])]; n != 0 {
			t.Errorf("node-0 pass drained foreign tile (%d,%d)", xy[0], xy[1])
		}
	}

	WorkOnFifoBE(ctx, 0, &curBE, locked, 1, 1)
	for _, xy := range odd {
		if n := ran[tilemgr.TileID(xy[0], xy[1])]; n != 1 {
			t.Errorf("node-1 pass: tile (%d,%d) ran %d times, want 1", xy[0], xy[1], n)
		}
	}

	if !dc.tileMgr.IsWorkComplete() {
		t.Fatal("tiles remain queued after both node passes")
	}

	// The node-1 pass took the fast-path retirement for its BE share; one
	// more FE pass counts the front-end share off and retires the draw.
	WorkOnFifoFE(ctx, 0, &curFE)
	if ctx.DrawsInFlight() != 0 {
		t.Fatalf("draw did not retire: %d in flight, threadsDone=%d",
			ctx.DrawsInFlight(), dc.threadsDone.Load())
	}
}

// A tile held by one worker is skipped and remembered in the hint set; once
// the lock owner has drained it, a later pass retires the draw.
func TestLockedTileHint(t *testing.T) {
	ctx := manualContext(t)

	ran := make(map[uint32]int)
	dc := ctx.GetDrawContext(false)
	dc.FeWork.Fn = binTiles(dc, [][2]uint32{{0, 0}, {2, 0}}, func(workerID, tileID uint32, desc any) {
		ran[tileID]++
	})
	publish(ctx, dc)

	var curFE, curBE uint32
	WorkOnFifoFE(ctx, 0, &curFE)

	// Steal tile (0,0)'s lock, simulating another worker mid-drain.
	contended := tilemgr.TileID(0, 0)
	var victim api.MacroTile
	for _, tile := range dc.tileMgr.GetDirtyTiles() {
		if tile.ID() == contended {
			victim = tile
		}
	}
	if victim == nil || !victim.TryLock() {
		t.Fatal("could not stage contention on tile (0,0)")
	}

	locked := make(TileSet)
	WorkOnFifoBE(ctx, 0, &curBE, locked, 0, 0)

	if n := ran[contended]; n != 0 {
		t.Fatalf("contended tile ran %d times while locked elsewhere", n)
	}
	if n := ran[tilemgr.TileID(2, 0)]; n != 1 {
		t.Fatalf("free tile ran %d times, want 1", n)
	}
	if _, ok := locked[contended]; !ok {
		t.Error("contended tile missing from the lockedTiles hint")
	}

	// Lock owner finishes its drain out of band.
	for w := victim.Peek(); w != nil; w = victim.Peek() {
		w.Fn(0, contended, w.Desc)
		victim.Dequeue()
	}
	dc.tileMgr.MarkTileComplete(contended)

	WorkOnFifoBE(ctx, 0, &curBE, locked, 0, 0)
	WorkOnFifoFE(ctx, 0, &curFE)

	if n := ran[contended]; n != 1 {
		t.Fatalf("contended tile ran %d times total, want 1", n)
	}
	if ctx.DrawsInFlight() != 0 {
		t.Fatal("draw did not retire after contention cleared")
	}
}

// The scan must stop at a compute draw even when later graphics draws have
// runnable work: back-end retirement is strictly ordered.
func TestBEStopsAtComputeDraw(t *testing.T) {
	ctx := manualContext(t)

	dcC := ctx.GetDrawContext(true)
	dcC.SetCompute(func(workerID, groupID uint32, spillFill *[]byte) {}, 4)
	publish(ctx, dcC)

	ranGfx := 0
	dcG := ctx.GetDrawContext(false)
	dcG.FeWork.Fn = binTiles(dcG, [][2]uint32{{0, 0}}, func(workerID, tileID uint32, desc any) {
		ranGfx++
	})
	publish(ctx, dcG)

	var curFE, curBE uint32
	locked := make(TileSet)

	WorkOnFifoFE(ctx, 0, &curFE)
	WorkOnFifoBE(ctx, 0, &curBE, locked, 0, 0)

	if ranGfx != 0 {
		t.Fatal("back-end pass crossed an unfinished compute draw")
	}

	WorkOnCompute(ctx, 0, &curBE)
	WorkOnFifoBE(ctx, 0, &curBE, locked, 0, 0)
	WorkOnFifoFE(ctx, 0, &curFE)

	if ranGfx != 1 {
		t.Fatalf("graphics tile ran %d times after compute drained, want 1", ranGfx)
	}
	if ctx.DrawsInFlight() != 0 {
		t.Fatalf("%d draws still in flight", ctx.DrawsInFlight())
	}
}
