// File: core/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thread pool lifecycle: derive the worker count from the probed topology
// and the knob clamps, spawn pinned workers, and orchestrate cooperative
// shutdown.

package core

import (
	"math/bits"

	"github.com/momentics/rasterpool/api"
	"github.com/momentics/rasterpool/topology"
)

// probeTopology is the topology source; a variable so tests can substitute
// synthetic layouts.
var probeTopology = topology.Probe

// CreateThreadPool probes the host topology, sizes the pool, and spawns
// the workers. With SingleThreaded (configured or forced by a starved
// topology) no threads are spawned and the API thread works inline.
func CreateThreadPool(ctx *Context) error {
	topo, err := probeTopology()
	if err != nil {
		return err
	}
	if len(topo.Nodes[0].Cores) == 0 || len(topo.Nodes[0].Cores[0].ThreadIDs) == 0 {
		return api.ErrNoTopology
	}

	numHWNodes := uint32(len(topo.Nodes))
	numHWCoresPerNode := uint32(len(topo.Nodes[0].Cores))
	numHWHyperThreads := uint32(len(topo.Nodes[0].Cores[0].ThreadIDs))

	// Asymmetric topologies make the total a sum, not a product.
	numHWThreads := topo.NumHWThreads()

	numNodes := numHWNodes
	numCoresPerNode := numHWCoresPerNode
	numHyperThreads := numHWHyperThreads

	if m := ctx.knobs.MaxNumaNodes; m != 0 && m < numNodes {
		numNodes = m
	}
	if m := ctx.knobs.MaxCoresPerNumaNode; m != 0 && m < numCoresPerNode {
		numCoresPerNode = m
	}
	if m := ctx.knobs.MaxThreadsPerCore; m != 0 && m < numHyperThreads {
		numHyperThreads = m
	}

	// A 32-bit process can only bind the first 32 threads of a group.
	if bits.UintSize == 32 && ctx.knobs.MaxWorkerThreads == 0 {
		if numCoresPerNode*numHWHyperThreads > 32 {
			numCoresPerNode = 32 / numHWHyperThreads
		}
	}

	numThreads := numNodes * numCoresPerNode * numHyperThreads
	if numThreads > numHWThreads {
		numThreads = numHWThreads
	}

	if m := ctx.knobs.MaxWorkerThreads; m != 0 {
		maxHWThreads := numHWNodes * numHWCoresPerNode * numHWHyperThreads
		numThreads = m
		if numThreads > maxHWThreads {
			numThreads = maxHWThreads
		}
	}

	numAPIReservedThreads := uint32(1)

	if numThreads == 1 {
		// Try to keep the lone worker off the API thread's hardware
		// thread by growing along whichever axis still has headroom.
		switch {
		case numCoresPerNode < numHWCoresPerNode:
			numCoresPerNode++
		case numHyperThreads < numHWHyperThreads:
			numHyperThreads++
		case numNodes < numHWNodes:
			numNodes++
		default:
			ctx.knobs.SingleThreaded = true
		}
		// numThreads stays 1: the grown axis only shifts which hardware
		// thread the lone worker lands on, past the API reservation.
	} else {
		// Save a hardware thread for the API if we can.
		if numThreads > numAPIReservedThreads {
			numThreads -= numAPIReservedThreads
		} else {
			numAPIReservedThreads = 0
		}
	}

	if ctx.knobs.SingleThreaded {
		numThreads = 1
	}

	ctx.initRingSlots(numThreads)

	if ctx.knobs.SingleThreaded {
		ctx.numWorkerThreads = 1
		ctx.numFEThreads = 1
		ctx.numBEThreads = 1
		ctx.threadPool.numThreads = 0
		return nil
	}

	pool := &ctx.threadPool
	pool.numThreads = numThreads
	ctx.numWorkerThreads = numThreads
	pool.inThreadShutdown.Store(false)
	pool.threadData = make([]ThreadData, numThreads)
	pool.numaMask = 0

	caps, err := newWorkerCaps(true, true)
	if err != nil {
		return err
	}

	if ctx.knobs.MaxWorkerThreads != 0 {
		// No per-thread pinning under an explicit thread count, but
		// grouped platforms still need workers spread across process
		// groups when the request exceeds a single group.
		threadsPerGroup := topo.NumThreadsPerProcGroup
		if threadsPerGroup == 0 {
			threadsPerGroup = numThreads
		}
		forceBindProcGroup := numThreads > threadsPerGroup
		numProcGroups := (numThreads + threadsPerGroup - 1) / threadsPerGroup

		for workerID := uint32(0); workerID < numThreads; workerID++ {
			td := &pool.threadData[workerID]
			*td = ThreadData{
				workerID:           workerID,
				procGroupID:        uint16(workerID % numProcGroups),
				forceBindProcGroup: forceBindProcGroup,
				caps:               caps,
				done:               make(chan struct{}),
			}
			ctx.spawnWorker(td)
		}
		return nil
	}

	// numaMask steers back-end tile selection; it is exact only for
	// power-of-two node counts and degrades to a locality hint otherwise.
	pool.numaMask = numNodes - 1

	workerID := uint32(0)
	reserved := numAPIReservedThreads
	for n := uint32(0); n < numNodes; n++ {
		node := &topo.Nodes[n]
		for c := uint32(0); c < numCoresPerNode; c++ {
			if c >= uint32(len(node.Cores)) {
				break
			}
			core := &node.Cores[c]
			for t := uint32(0); t < numHyperThreads; t++ {
				if t >= uint32(len(core.ThreadIDs)) {
					break
				}

				if reserved > 0 {
					reserved--
					continue
				}

				if workerID >= numThreads {
					return nil
				}

				td := &pool.threadData[workerID]
				*td = ThreadData{
					workerID:    workerID,
					threadID:    core.ThreadIDs[t],
					numaID:      n,
					coreID:      c,
					htID:        t,
					procGroupID: uint16(core.ProcGroup),
					caps:        caps,
					done:        make(chan struct{}),
				}
				ctx.spawnWorker(td)

				workerID++
			}
		}
	}

	// Topology holes can leave fewer spawnable slots than the computed
	// thread count; shrink to what actually started.
	if workerID < numThreads {
		pool.threadData = pool.threadData[:workerID]
		pool.numThreads = workerID
		ctx.numWorkerThreads = workerID
	}

	return nil
}

func (ctx *Context) spawnWorker(td *ThreadData) {
	if td.caps.isFE {
		ctx.numFEThreads++
	}
	if td.caps.isBE {
		ctx.numBEThreads++
	}
	go ctx.workerMain(td)
}

// DestroyThreadPool signals shutdown, wakes every blocked worker, and
// joins them in worker-id order. After it returns no further callback
// fires.
func DestroyThreadPool(ctx *Context) {
	if ctx.knobs.SingleThreaded {
		return
	}

	pool := &ctx.threadPool

	ctx.waitMu.Lock()
	pool.inThreadShutdown.Store(true)
	ctx.fifosNotEmpty.Broadcast()
	ctx.waitMu.Unlock()

	for i := range pool.threadData {
		<-pool.threadData[i].done
	}
}
