// File: topology/topology.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral processor topology model: NUMA nodes own cores, cores own
// hardware threads. Platform-specific probing lives in topology_linux.go,
// topology_windows.go and topology_stub.go behind build tags.

package topology

import "github.com/momentics/rasterpool/api"

// Core is one physical core. ProcGroup is the processor-group id on
// platforms that partition the thread id namespace; elsewhere it carries
// the platform's closest analogue.
type Core struct {
	ProcGroup uint32
	ThreadIDs []uint32
}

// NumaNode groups the cores attached to one memory node.
type NumaNode struct {
	Cores []Core
}

// Topology is the probed processor layout. It is computed once at pool
// creation and immutable afterwards. Asymmetric layouts are preserved:
// per-node core counts may differ, but every stored core has at least one
// hardware thread.
type Topology struct {
	Nodes []NumaNode

	// NumThreadsPerProcGroup is the hardware thread count of processor
	// group 0 (on grouped platforms) or the total thread count elsewhere.
	NumThreadsPerProcGroup uint32
}

// Probe enumerates the host topology.
func Probe() (Topology, error) {
	t, err := probePlatform()
	if err != nil {
		return Topology{}, err
	}
	t.pruneEmptyCores()
	if len(t.Nodes) == 0 {
		return Topology{}, api.ErrNoTopology
	}
	return t, nil
}

// NumHWThreads sums hardware threads across all nodes and cores. Due to
// asymmetric topologies this is not nodes*cores*threads.
func (t *Topology) NumHWThreads() uint32 {
	var n uint32
	for i := range t.Nodes {
		for j := range t.Nodes[i].Cores {
			n += uint32(len(t.Nodes[i].Cores[j].ThreadIDs))
		}
	}
	return n
}

// pruneEmptyCores drops cores recorded with no hardware threads. Sparse
// core ids in the probe input produce such holes.
func (t *Topology) pruneEmptyCores() {
	for n := range t.Nodes {
		cores := t.Nodes[n].Cores[:0]
		for _, c := range t.Nodes[n].Cores {
			if len(c.ThreadIDs) > 0 {
				cores = append(cores, c)
			}
		}
		t.Nodes[n].Cores = cores
	}
}

// node returns the node at idx, growing the slice as needed.
func (t *Topology) node(idx uint32) *NumaNode {
	for uint32(len(t.Nodes)) <= idx {
		t.Nodes = append(t.Nodes, NumaNode{})
	}
	return &t.Nodes[idx]
}

// core returns the core at idx within n, growing the slice as needed.
func (n *NumaNode) core(idx uint32) *Core {
	for uint32(len(n.Cores)) <= idx {
		n.Cores = append(n.Cores, Core{})
	}
	return &n.Cores[idx]
}
