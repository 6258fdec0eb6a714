// File: core/submit.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Draw submission. The API thread is the ring's single writer: it acquires
// the next slot, prepares the draw context, and publishes it with the head
// increment. In single-threaded mode the same thread then drains the
// pipeline inline through the worker entry points.

package core

import (
	"runtime"
)

// GetDrawContext acquires the ring slot for the next draw. Blocks while
// every slot holds an unretired draw; in single-threaded mode it makes
// room by working the pipeline inline. Must be called from the API thread
// only.
func (ctx *Context) GetDrawContext(isCompute bool) *DrawContext {
	for ctx.dcRing.IsFull() {
		if ctx.knobs.SingleThreaded {
			ctx.workInline()
		} else {
			runtime.Gosched()
		}
	}

	id := ctx.nextDrawID
	ctx.nextDrawID++

	dc := ctx.dcRing.Entry(id - 1)
	dc.reset(id, isCompute)
	return dc
}

// Submit publishes a prepared draw context and wakes the workers. The
// per-draw countdown starts at the pool's registered FE plus BE
// capabilities: each worker counts itself off once per cursor.
func (ctx *Context) Submit(dc *DrawContext) {
	if ctx.numFEThreads == 0 && ctx.numBEThreads == 0 {
		panic("core: Submit before CreateThreadPool")
	}
	if dc.isCompute && dc.ComputeFn == nil {
		panic("core: compute draw submitted without a compute function")
	}
	if !dc.isCompute && dc.FeWork.Fn == nil {
		panic("core: graphics draw submitted without front-end work")
	}

	dc.threadsDone.Store(int32(ctx.numFEThreads + ctx.numBEThreads))

	if !dc.isCompute {
		ctx.drawsOutstandingFE.Add(1)
	}

	ctx.dcRing.Enqueue()

	if ctx.knobs.SingleThreaded {
		ctx.WaitForIdle()
		return
	}

	// Broadcast under the wait lock so a worker past its double-checked
	// idle test cannot miss the wakeup.
	ctx.waitMu.Lock()
	ctx.fifosNotEmpty.Broadcast()
	ctx.waitMu.Unlock()
}

// WaitForIdle returns once every submitted draw has retired. In
// single-threaded mode the API thread drains the pipeline itself;
// otherwise it yields until the workers empty the ring.
func (ctx *Context) WaitForIdle() {
	for !ctx.dcRing.IsEmpty() {
		if ctx.knobs.SingleThreaded {
			ctx.workInline()
		} else {
			runtime.Gosched()
		}
	}
}

// workInline runs one full scheduling pass on the API thread, using its
// private cursors. This is both the single-threaded execution path and the
// helper path while waiting for ring space.
func (ctx *Context) workInline() {
	WorkOnFifoFE(ctx, 0, &ctx.apiCurDrawFE)
	WorkOnFifoBE(ctx, 0, &ctx.apiCurDrawBE, ctx.apiLockedTiles, 0, 0)
	WorkOnCompute(ctx, 0, &ctx.apiCurDrawBE)
}
