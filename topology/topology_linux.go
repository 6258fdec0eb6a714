//go:build linux
// +build linux

// File: topology/topology_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux topology probe over /proc/cpuinfo. Threads are grouped into cores by
// "core id" and into nodes by "physical id" (the socket). On systems exposing
// more than one NUMA node per socket this under-reports nodes; the numa mask
// downstream degrades to an affinity hint, so correctness is unaffected.

package topology

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

const cpuinfoPath = "/proc/cpuinfo"

func probePlatform() (Topology, error) {
	f, err := os.Open(cpuinfoPath)
	if err != nil {
		return Topology{}, err
	}
	defer f.Close()
	return parseCPUInfo(f)
}

const unsetID = ^uint32(0)

// parseCPUInfo accumulates a (threadId, coreId, numaId) triple per processor
// record and flushes it when the next "processor" line starts a new record.
// A core's ProcGroup carries its core id; Linux has no processor groups.
func parseCPUInfo(r io.Reader) (Topology, error) {
	var t Topology

	threadID := unsetID
	coreID := unsetID
	numaID := unsetID

	flush := func() {
		if threadID == unsetID {
			return
		}
		// Single-socket boxes may omit "physical id"; older kernels may
		// omit "core id". Fold those onto index 0.
		if numaID == unsetID {
			numaID = 0
		}
		if coreID == unsetID {
			coreID = 0
		}
		core := t.node(numaID).core(coreID)
		core.ProcGroup = coreID
		core.ThreadIDs = append(core.ThreadIDs, threadID)
		t.NumThreadsPerProcGroup++
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "processor"):
			flush()
			threadID = fieldValue(line)
			coreID = unsetID
			numaID = unsetID
		case strings.HasPrefix(line, "core id"):
			coreID = fieldValue(line)
		case strings.HasPrefix(line, "physical id"):
			numaID = fieldValue(line)
		}
	}
	if err := sc.Err(); err != nil {
		return Topology{}, err
	}
	flush()

	return t, nil
}

// fieldValue parses the integer after the ": " separator; unparsable or
// missing values map to unsetID.
func fieldValue(line string) uint32 {
	i := strings.Index(line, ": ")
	if i < 0 {
		return unsetID
	}
	v, err := strconv.ParseUint(strings.TrimSpace(line[i+2:]), 10, 32)
	if err != nil {
		return unsetID
	}
	return uint32(v)
}
