//go:build !linux && !windows
// +build !linux,!windows

// File: topology/topology_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fallback probe for platforms without topology enumeration: one node,
// one single-threaded core per logical CPU.

package topology

import "runtime"

func probePlatform() (Topology, error) {
	var t Topology
	n := t.node(0)
	for cpu := 0; cpu < runtime.NumCPU(); cpu++ {
		n.Cores = append(n.Cores, Core{ThreadIDs: []uint32{uint32(cpu)}})
		t.NumThreadsPerProcGroup++
	}
	return t, nil
}
