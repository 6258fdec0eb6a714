// File: api/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Client-facing statistics and notification callbacks.

package api

// MaxSOBuffers is the number of stream-output buffer slots tracked per draw.
const MaxSOBuffers = 4

// Stats accumulates back-end counters. Each worker writes only its own slot
// of the per-draw stats array; slots are summed before reaching the client.
type Stats struct {
	DepthPassCount uint64
	PsInvocations  uint64
	CsInvocations  uint64
}

// StatsFE accumulates front-end counters for a draw.
type StatsFE struct {
	IaVertices          uint64
	IaPrimitives        uint64
	VsInvocations       uint64
	SoPrimStorageNeeded [MaxSOBuffers]uint64
	SoNumPrimsWritten   [MaxSOBuffers]uint64
}

// UpdateStatsFunc delivers summed back-end stats to the client at retirement.
type UpdateStatsFunc func(privateState any, stats *Stats)

// UpdateStatsFEFunc delivers front-end stats when the FE stage completes.
type UpdateStatsFEFunc func(privateState any, stats *StatsFE)

// UpdateSoWriteOffsetFunc flushes a dirty stream-output write offset.
type UpdateSoWriteOffsetFunc func(privateState any, soBufferSlot uint32, soWriteOffset uint32)

// RetireCallback runs on the retiring worker, synchronously, with no draw
// lock held. Callbacks are contractually required not to fault.
type RetireCallback struct {
	Fn        func(userData, userData2, userData3 any)
	UserData  any
	UserData2 any
	UserData3 any
}
