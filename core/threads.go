// File: core/threads.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Draw scheduling: front-end claiming, ordered back-end draining with
// per-macrotile try-locks, compute dispatch, and draw retirement. Workers
// advance private FE/BE cursors from the ring tail toward the head; draw
// ids compare through signed deltas so cursor wrap is transparent.

package core

import (
	"fmt"
	"log"
	"runtime"

	"github.com/momentics/rasterpool/affinity"
	"github.com/momentics/rasterpool/api"
)

// getEnqueuedDraw returns the cursor of the next draw to be enqueued.
func getEnqueuedDraw(ctx *Context) uint32 {
	return ctx.dcRing.GetHead()
}

// idLess orders draw cursors with wrap-around handled through the signed
// delta. Valid while fewer than 2^31 draws are in flight, which the ring
// capacity enforces.
func idLess(a, b uint32) bool {
	return int32(a-b) < 0
}

// checkDependency reports whether dc must keep waiting for its predecessor.
func checkDependency(dc *DrawContext, lastRetiredDraw uint32) bool {
	return dc.Dependent && idLess(lastRetiredDraw, dc.drawID-1)
}

// updateClientStats sums the per-worker stats slots and delivers them to
// the client. Runs once, on the retiring worker.
func updateClientStats(ctx *Context, dc *DrawContext) {
	if ctx.updateStats == nil || !dc.state.EnableStats {
		return
	}
	var stats api.Stats
	for i := range dc.dynState.stats {
		stats.DepthPassCount += dc.dynState.stats[i].DepthPassCount
		stats.PsInvocations += dc.dynState.stats[i].PsInvocations
		stats.CsInvocations += dc.dynState.stats[i].CsInvocations
	}
	ctx.updateStats(dc.state.PrivateState, &stats)
}

func executeCallbacks(ctx *Context, dc *DrawContext) {
	updateClientStats(ctx, dc)

	if dc.RetireCallback.Fn != nil {
		dc.RetireCallback.Fn(
			dc.RetireCallback.UserData,
			dc.RetireCallback.UserData2,
			dc.RetireCallback.UserData3)
	}
}

// completeDrawContext counts one worker off the draw. The worker whose
// decrement reaches zero retires it: callbacks, arena reset, tile-manager
// re-init, and finally the ring dequeue. The atomic decrement orders all
// prior writes of this worker before the retirement work.
func completeDrawContext(ctx *Context, dc *DrawContext) int32 {
	result := dc.threadsDone.Add(-1)
	if result < 0 {
		panic(fmt.Sprintf("core: draw %d threadsDone went negative", dc.drawID))
	}

	if result == 0 {
		executeCallbacks(ctx, dc)

		dc.arena.Reset(true)
		if !dc.isCompute {
			dc.tileMgr.Initialize()
		}
		if dc.CleanupState {
			dc.state.Arena.Reset(true)
		}

		ctx.mDrawsRetired.Add(1)

		// The zeroing decrement happens-before the dequeue; the slot is
		// reusable the moment the tail moves.
		ctx.dcRing.Dequeue()
	}

	return result
}

// CompleteDrawContext counts one participant off dc and returns the
// post-decrement counter. Exposed for the host's helper participation.
func CompleteDrawContext(ctx *Context, dc *DrawContext) int32 {
	return completeDrawContext(ctx, dc)
}

// findFirstIncompleteDraw advances curDrawBE past draws whose work has
// fully completed, retiring each as it passes, and reports whether an
// incomplete draw remains below the enqueue head.
func findFirstIncompleteDraw(ctx *Context, curDrawBE *uint32, drawEnqueued *uint32) bool {
	*drawEnqueued = getEnqueuedDraw(ctx)
	for idLess(*curDrawBE, *drawEnqueued) {
		dc := ctx.dcRing.Entry(*curDrawBE)

		// A graphics draw with an unfinished front end blocks the scan:
		// back-end order is strict.
		if !dc.doneFE.Load() && !dc.isCompute {
			break
		}

		var workComplete bool
		if dc.isCompute {
			workComplete = dc.dispatch.IsWorkComplete()
		} else {
			workComplete = dc.tileMgr.IsWorkComplete()
		}
		if !workComplete {
			break
		}

		*curDrawBE++
		completeDrawContext(ctx, dc)
	}

	return idLess(*curDrawBE, *drawEnqueued)
}

// WorkOnFifoBE drains back-end work for the calling worker.
//
// curDrawBE is the worker's private cursor; every worker walks all draws in
// order. lockedTiles is the worker's contention hint: a macrotile that
// failed its try-lock goes in, and while probing draws beyond curDrawBE the
// worker refuses tiles in the set, since they may still have work in flight
// from an earlier draw. The hint also steers the worker back to macrotiles
// it already owns the cache footprint of.
func WorkOnFifoBE(
	ctx *Context,
	workerID uint32,
	curDrawBE *uint32,
	lockedTiles TileSet,
	numaNode uint32,
	numaMask uint32,
) {
	var drawEnqueued uint32
	if !findFirstIncompleteDraw(ctx, curDrawBE, &drawEnqueued) {
		return
	}

	lastRetiredDraw := ctx.dcRing.Entry(*curDrawBE).drawID - 1

	// Contention history restarts every pass.
	clear(lockedTiles)

	for i := *curDrawBE; idLess(i, drawEnqueued); i++ {
		dc := ctx.dcRing.Entry(i)

		if dc.isCompute {
			// Compute is handled by WorkOnCompute; ordering stops the
			// scan here.
			return
		}

		if !dc.doneFE.Load() {
			return
		}

		if checkDependency(dc, lastRetiredDraw) {
			return
		}

		for _, tile := range dc.tileMgr.GetDirtyTiles() {
			tileID := tile.ID()

			// Steer tiles across nodes by their checkerboard parity.
			x, y := dc.tileMgr.GetTileIndices(tileID)
			if (x^y)&numaMask != numaNode {
				continue
			}

			if tile.NumQueued() == 0 {
				continue
			}

			if _, contended := lockedTiles[tileID]; contended {
				continue
			}

			if !tile.TryLock() {
				lockedTiles[tileID] = struct{}{}
				continue
			}

			work := tile.Peek()
			if work == nil {
				panic(fmt.Sprintf("core: tile %#x queued work vanished under lock", tileID))
			}
			if work.Kind == api.WorkDraw && ctx.hotTileMgr != nil {
				ctx.hotTileMgr.InitializeHotTiles(dc.drawID, tileID)
			}

			for work = tile.Peek(); work != nil; work = tile.Peek() {
				work.Fn(workerID, tileID, work.Desc)
				tile.Dequeue()
			}

			dc.tileMgr.MarkTileComplete(tileID)
			ctx.mTilesDrained.Add(1)

			// Fast path: if this was the oldest draw and it just ran
			// dry, retire it here and restart the scan with a clean
			// contention history, since everything older is retired.
			if *curDrawBE == i && dc.tileMgr.IsWorkComplete() {
				*curDrawBE++
				completeDrawContext(ctx, dc)

				lastRetiredDraw++
				clear(lockedTiles)
				break
			}
		}
	}
}

// completeDrawFE finishes the front-end stage: client FE stats, stream-out
// offset flush, the doneFE publish, and the outstanding-FE countdown.
func completeDrawFE(ctx *Context, dc *DrawContext) {
	if ctx.updateStatsFE != nil && dc.state.EnableStats {
		ctx.updateStatsFE(dc.state.PrivateState, &dc.dynState.statsFE)
	}

	if ctx.updateSoWriteOffset != nil {
		for i := uint32(0); i < api.MaxSOBuffers; i++ {
			if dc.dynState.soWriteOffsetDirty[i] && dc.state.SoWriteEnable[i] {
				ctx.updateSoWriteOffset(dc.state.PrivateState, i, dc.dynState.soWriteOffset[i])
			}
		}
	}

	ctx.mFEProcessed.Add(1)

	// doneFE is the release point back-end workers acquire on.
	dc.doneFE.Store(true)

	ctx.drawsOutstandingFE.Add(-1)
}

// WorkOnFifoFE claims and runs front-end work.
//
// The skip loop first advances past draws this worker has nothing to do
// for (compute, FE already done, or FE claimed elsewhere), counting itself
// off each one; this is how a front-end pass also helps retirement. The
// claim loop then races a compare-and-swap per remaining graphics draw.
// Front ends of different draws run in parallel; within a draw the lock
// serializes. A worker that loses a claim moves on, never waits.
func WorkOnFifoFE(ctx *Context, workerID uint32, curDrawFE *uint32) {
	drawEnqueued := getEnqueuedDraw(ctx)

	for idLess(*curDrawFE, drawEnqueued) {
		dc := ctx.dcRing.Entry(*curDrawFE)
		if dc.isCompute || dc.doneFE.Load() || dc.feLock.Load() != 0 {
			completeDrawContext(ctx, dc)
			*curDrawFE++
		} else {
			break
		}
	}

	for cur := *curDrawFE; idLess(cur, drawEnqueued); cur++ {
		dc := ctx.dcRing.Entry(cur)

		if !dc.isCompute && dc.feLock.Load() == 0 {
			if dc.feLock.CompareAndSwap(0, 1) {
				dc.FeWork.Fn(workerID, dc.FeWork.Desc)
				completeDrawFE(ctx, dc)
			}
		}
	}
}

// WorkOnCompute drains compute dispatches in draw order. Groups are
// claimed atomically by the dispatch queue itself, so any number of
// workers pile onto the same draw.
func WorkOnCompute(ctx *Context, workerID uint32, curDrawBE *uint32) {
	var drawEnqueued uint32
	if !findFirstIncompleteDraw(ctx, curDrawBE, &drawEnqueued) {
		return
	}

	lastRetiredDraw := ctx.dcRing.Entry(*curDrawBE).drawID - 1

	for i := *curDrawBE; idLess(i, drawEnqueued); i++ {
		dc := ctx.dcRing.Entry(i)
		if !dc.isCompute {
			return
		}

		if checkDependency(dc, lastRetiredDraw) {
			return
		}

		queue := dc.dispatch
		if queue.GetNumQueued() > 0 {
			// Spill/fill scratch is reused across groups this worker
			// runs within the draw.
			var spillFill []byte
			for {
				groupID, ok := queue.GetWork()
				if !ok {
					break
				}
				dc.ComputeFn(workerID, groupID, &spillFill)
				queue.FinishedWork()
				ctx.mComputeGroups.Add(1)
			}
		}
	}
}

// bindThread pins the calling OS thread per the pool's binding policy.
// Affinity rejection is non-fatal: log and continue with OS scheduling.
func bindThread(ctx *Context, threadID uint32, procGroupID uint16, bindProcGroup bool) {
	// Only bind threads when MAX_WORKER_THREADS isn't set.
	if ctx.knobs.MaxWorkerThreads != 0 && !bindProcGroup {
		return
	}

	b := affinity.Binding{
		ThreadID:  threadID,
		ProcGroup: procGroupID,
		// Under MAX_WORKER_THREADS, grouped platforms bind only to the
		// process group, not the individual hardware thread; platforms
		// without groups still pin the thread id.
		WholeGroup: ctx.knobs.MaxWorkerThreads != 0,
	}
	if err := affinity.Bind(b); err != nil {
		log.Printf("core: worker affinity not applied (thread %d, group %d): %v",
			threadID, procGroupID, err)
	}
}

// threadHasWork compares a worker cursor against the enqueue head.
func (ctx *Context) threadHasWork(curDraw uint32) bool {
	return curDraw != ctx.dcRing.GetHead()
}

// workerMain is the per-thread scheduler loop. Spin for the configured
// budget, then block on the fifos-not-empty condition with a double-checked
// idle test; on wake, run BE, compute, then FE according to capability.
func (ctx *Context) workerMain(td *ThreadData) {
	defer close(td.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	bindThread(ctx, td.threadID, td.procGroupID, td.forceBindProcGroup)

	// Denormal policy (FTZ/DAZ) belongs to the SIMD kernels behind the
	// work handlers; Go exposes no per-thread float-mode control here.

	numaNode := td.numaID
	numaMask := ctx.threadPool.numaMask

	lockedTiles := make(TileSet)

	var curDrawBE, curDrawFE uint32

	for !ctx.threadPool.inThreadShutdown.Load() {
		for loop := uint32(0); loop < ctx.knobs.SpinLoopCount && !ctx.threadHasWork(curDrawBE); loop++ {
			runtime.Gosched()
		}

		if !ctx.threadHasWork(curDrawBE) {
			ctx.waitMu.Lock()

			// Re-check idle condition under lock.
			if ctx.threadHasWork(curDrawBE) {
				ctx.waitMu.Unlock()
				continue
			}

			if ctx.threadPool.inThreadShutdown.Load() {
				ctx.waitMu.Unlock()
				break
			}

			ctx.fifosNotEmpty.Wait()
			ctx.waitMu.Unlock()

			if ctx.threadPool.inThreadShutdown.Load() {
				break
			}
		}

		if td.caps.isBE {
			WorkOnFifoBE(ctx, td.workerID, &curDrawBE, lockedTiles, numaNode, numaMask)
			WorkOnCompute(ctx, td.workerID, &curDrawBE)
		}

		if td.caps.isFE {
			WorkOnFifoFE(ctx, td.workerID, &curDrawFE)

			if !td.caps.isBE {
				// A pure-FE worker still counts itself off old draws.
				curDrawBE = curDrawFE
			}
		}
	}
}
