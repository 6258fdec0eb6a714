// File: core/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Context is the top-level scheduler state: the draw ring, the worker pool,
// client callbacks and the signaling primitives shared by all workers.

package core

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/rasterpool/api"
	"github.com/momentics/rasterpool/arena"
	"github.com/momentics/rasterpool/control"
	"github.com/momentics/rasterpool/tilemgr"
)

// TileSet is a per-worker hint of macrotile ids that recently failed a
// try-lock. It is cleared on every outer scheduling pass; it must never be
// treated as a precise lock registry.
type TileSet map[uint32]struct{}

// DrawState is the pipeline state snapshot a draw was submitted with. The
// scheduler only reads the fields below; everything else lives behind
// PrivateState and belongs to the host.
type DrawState struct {
	EnableStats   bool
	SoWriteEnable [api.MaxSOBuffers]bool
	PrivateState  any

	// Arena backs state allocations that can outlive a single draw. It is
	// reset only when a draw carries the cleanup-state flag.
	Arena api.Arena
}

// drawDynamicState is the per-draw mutable scratch the workers write.
type drawDynamicState struct {
	stats              []api.Stats // one slot per worker
	statsFE            api.StatsFE
	soWriteOffset      [api.MaxSOBuffers]uint32
	soWriteOffsetDirty [api.MaxSOBuffers]bool
}

// DrawContext is one entry of the draw ring. The API thread prepares it
// between GetDrawContext and Submit; workers mutate only the atomic flags
// and their own stats slot afterwards.
type DrawContext struct {
	drawID    uint32
	isCompute bool

	// Dependent delays this draw's back-end/compute work until the
	// previous draw's work has completed and the scanning worker has
	// counted it off; the previous draw's retire callback may still be
	// pending. Set by the host before Submit.
	Dependent bool

	// CleanupState additionally resets the state arena at retirement.
	CleanupState bool

	// FeWork is the front-end stage of a graphics draw.
	FeWork api.FEWork

	// ComputeFn executes thread groups of a compute draw.
	ComputeFn api.ComputeFunc

	// RetireCallback runs on the retiring worker.
	RetireCallback api.RetireCallback

	doneFE      atomic.Bool
	feLock      atomic.Uint32
	threadsDone atomic.Int32

	tileMgr  api.TileManager
	dispatch api.DispatchQueue
	arena    api.Arena
	state    *DrawState

	dynState drawDynamicState
}

// DrawID returns the id assigned at enqueue. Ids start at 1 and wrap.
func (dc *DrawContext) DrawID() uint32 { return dc.drawID }

// IsCompute reports the draw kind.
func (dc *DrawContext) IsCompute() bool { return dc.isCompute }

// TileMgr returns the draw's macrotile manager. The front-end bins work
// through its concrete type.
func (dc *DrawContext) TileMgr() api.TileManager { return dc.tileMgr }

// Dispatch returns the compute dispatch queue, nil for graphics draws.
func (dc *DrawContext) Dispatch() api.DispatchQueue { return dc.dispatch }

// Arena returns the per-draw transient arena.
func (dc *DrawContext) Arena() api.Arena { return dc.arena }

// State returns the pipeline state snapshot for host setup.
func (dc *DrawContext) State() *DrawState { return dc.state }

// WorkerStats returns the stats slot owned by workerID. Only that worker
// may write it.
func (dc *DrawContext) WorkerStats(workerID uint32) *api.Stats {
	return &dc.dynState.stats[workerID]
}

// StatsFE returns the front-end stats block. Only the FE-claiming worker
// may write it, before the FE stage completes.
func (dc *DrawContext) StatsFE() *api.StatsFE { return &dc.dynState.statsFE }

// SetSoWriteOffset records a stream-out write offset produced by the FE;
// it is flushed to the client when the front end completes.
func (dc *DrawContext) SetSoWriteOffset(slot uint32, offset uint32) {
	dc.dynState.soWriteOffset[slot] = offset
	dc.dynState.soWriteOffsetDirty[slot] = true
}

// SetCompute turns the draw into a compute dispatch of numGroups thread
// groups. Must be called before Submit.
func (dc *DrawContext) SetCompute(fn api.ComputeFunc, numGroups int) {
	dc.isCompute = true
	dc.ComputeFn = fn
	if q, ok := dc.dispatch.(*tilemgr.DispatchQueue); ok && q != nil {
		q.Initialize(numGroups)
	} else {
		dc.dispatch = tilemgr.NewDispatchQueue(numGroups)
	}
}

// reset prepares a recycled ring slot for a new draw. The tile manager and
// the per-draw arena were already re-initialized when the previous occupant
// retired; the state arena only if that draw carried CleanupState.
func (dc *DrawContext) reset(drawID uint32, isCompute bool) {
	dc.drawID = drawID
	dc.isCompute = isCompute
	dc.Dependent = false
	dc.CleanupState = false
	dc.FeWork = api.FEWork{}
	dc.ComputeFn = nil
	dc.RetireCallback = api.RetireCallback{}
	dc.doneFE.Store(false)
	dc.feLock.Store(0)
	for i := range dc.dynState.stats {
		dc.dynState.stats[i] = api.Stats{}
	}
	dc.dynState.statsFE = api.StatsFE{}
	dc.dynState.soWriteOffset = [api.MaxSOBuffers]uint32{}
	dc.dynState.soWriteOffsetDirty = [api.MaxSOBuffers]bool{}
}

// workerCaps are the (IsFE, IsBE) capability bits a worker is constructed
// with. Both bits clear is refused at construction.
type workerCaps struct {
	isFE bool
	isBE bool
}

func newWorkerCaps(isFE, isBE bool) (workerCaps, error) {
	if !isFE && !isBE {
		return workerCaps{}, api.ErrWorkerNoCapability
	}
	return workerCaps{isFE: isFE, isBE: isBE}, nil
}

// ThreadData is the construction-time identity of one worker.
type ThreadData struct {
	workerID           uint32
	threadID           uint32
	numaID             uint32
	coreID             uint32
	htID               uint32
	procGroupID        uint16
	forceBindProcGroup bool
	caps               workerCaps
	done               chan struct{}
}

// ThreadPool holds the spawned workers and their shared shutdown state.
type ThreadPool struct {
	numThreads       uint32
	numaMask         uint32
	inThreadShutdown atomic.Bool
	threadData       []ThreadData
}

// NumThreads returns the spawned worker count (0 in single-threaded mode).
func (p *ThreadPool) NumThreads() uint32 { return p.numThreads }

// NumaMask returns the tile-steering mask derived from the node count.
func (p *ThreadPool) NumaMask() uint32 { return p.numaMask }

// Context is the scheduler instance.
type Context struct {
	knobs  control.Knobs
	dcRing *drawRing

	threadPool ThreadPool

	waitMu        sync.Mutex
	fifosNotEmpty *sync.Cond

	drawsOutstandingFE atomic.Int32

	numWorkerThreads uint32
	numFEThreads     uint32
	numBEThreads     uint32

	nextDrawID uint32

	// API-thread cursors for single-threaded and helper participation.
	apiCurDrawFE   uint32
	apiCurDrawBE   uint32
	apiLockedTiles TileSet

	hotTileMgr api.HotTileManager

	updateStats         api.UpdateStatsFunc
	updateStatsFE       api.UpdateStatsFEFunc
	updateSoWriteOffset api.UpdateSoWriteOffsetFunc

	metrics        *control.MetricsRegistry
	mDrawsRetired  *atomic.Int64
	mFEProcessed   *atomic.Int64
	mTilesDrained  *atomic.Int64
	mComputeGroups *atomic.Int64
}

// Option customizes context initialization.
type Option func(*Context)

// WithUpdateStats installs the client back-end stats callback.
func WithUpdateStats(fn api.UpdateStatsFunc) Option {
	return func(c *Context) { c.updateStats = fn }
}

// WithUpdateStatsFE installs the client front-end stats callback.
func WithUpdateStatsFE(fn api.UpdateStatsFEFunc) Option {
	return func(c *Context) { c.updateStatsFE = fn }
}

// WithUpdateSoWriteOffset installs the stream-out offset flush callback.
func WithUpdateSoWriteOffset(fn api.UpdateSoWriteOffsetFunc) Option {
	return func(c *Context) { c.updateSoWriteOffset = fn }
}

// WithHotTileManager replaces the default hot-tile manager.
func WithHotTileManager(m api.HotTileManager) Option {
	return func(c *Context) { c.hotTileMgr = m }
}

// WithMetrics attaches an external metrics registry.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(c *Context) { c.metrics = mr }
}

// NewContext creates a scheduler context. The thread pool is not started
// until CreateThreadPool.
func NewContext(knobs control.Knobs, opts ...Option) (*Context, error) {
	if err := knobs.Validate(); err != nil {
		return nil, err
	}

	ctx := &Context{
		knobs:          knobs,
		dcRing:         newDrawRing(knobs.MaxDrawsInFlight),
		nextDrawID:     1,
		apiLockedTiles: make(TileSet),
	}
	ctx.fifosNotEmpty = sync.NewCond(&ctx.waitMu)

	for _, opt := range opts {
		opt(ctx)
	}
	if ctx.hotTileMgr == nil {
		ctx.hotTileMgr = tilemgr.NewHotTileMgr()
	}
	if ctx.metrics == nil {
		ctx.metrics = control.NewMetricsRegistry()
	}
	ctx.mDrawsRetired = ctx.metrics.Counter("draws_retired")
	ctx.mFEProcessed = ctx.metrics.Counter("fe_processed")
	ctx.mTilesDrained = ctx.metrics.Counter("tiles_drained")
	ctx.mComputeGroups = ctx.metrics.Counter("compute_groups")

	return ctx, nil
}

// Knobs returns the knob set the context was built with.
func (ctx *Context) Knobs() control.Knobs { return ctx.knobs }

// Metrics returns the context's counter registry.
func (ctx *Context) Metrics() *control.MetricsRegistry { return ctx.metrics }

// NumWorkerThreads returns the effective worker count.
func (ctx *Context) NumWorkerThreads() uint32 { return ctx.numWorkerThreads }

// DrawsInFlight returns the number of unretired draws.
func (ctx *Context) DrawsInFlight() int { return ctx.dcRing.Len() }

// DrawsOutstandingFE returns the count of graphics draws whose front end
// has not completed.
func (ctx *Context) DrawsOutstandingFE() int32 {
	return ctx.drawsOutstandingFE.Load()
}

// initRingSlots sizes per-slot worker state once the worker count is known.
func (ctx *Context) initRingSlots(numThreads uint32) {
	for i := range ctx.dcRing.entries {
		dc := &ctx.dcRing.entries[i]
		dc.dynState.stats = make([]api.Stats, numThreads)
		dc.tileMgr = tilemgr.New()
		dc.dispatch = tilemgr.NewDispatchQueue(0)
		dc.arena = arena.New(0)
		dc.state = &DrawState{Arena: arena.New(0)}
	}
}
