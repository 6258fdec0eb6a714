//go:build windows
// +build windows

// File: topology/topology_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows topology probe via GetLogicalProcessorInformationEx processor-core
// records. Each core's group mask is scanned bit by bit; every set bit is a
// hardware thread whose NUMA node comes from GetNumaProcessorNodeEx.

package topology

import (
	"fmt"
	"math/bits"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32                          = windows.NewLazySystemDLL("kernel32.dll")
	procGetLogicalProcessorInformationEx = modkernel32.NewProc("GetLogicalProcessorInformationEx")
	procGetNumaProcessorNodeEx           = modkernel32.NewProc("GetNumaProcessorNodeEx")
)

const relationProcessorCore = 0

// groupAffinity mirrors GROUP_AFFINITY.
type groupAffinity struct {
	Mask  uintptr
	Group uint16
	_     [3]uint16
}

// processorNumber mirrors PROCESSOR_NUMBER.
type processorNumber struct {
	Group  uint16
	Number uint8
	_      uint8
}

// slpiHeader is the fixed prefix of SYSTEM_LOGICAL_PROCESSOR_INFORMATION_EX.
type slpiHeader struct {
	Relationship uint32
	Size         uint32
}

// processorRelationship mirrors the fixed part of PROCESSOR_RELATIONSHIP.
type processorRelationship struct {
	Flags           uint8
	EfficiencyClass uint8
	_               [20]uint8
	GroupCount      uint16
	// GroupMask array follows, 8-byte aligned.
}

const (
	slpiUnionOffset = 8  // union member starts after Relationship+Size
	groupMaskOffset = 24 // offset of GroupMask within PROCESSOR_RELATIONSHIP
)

func probePlatform() (Topology, error) {
	var bufSize uint32
	ret, _, callErr := procGetLogicalProcessorInformationEx.Call(
		relationProcessorCore, 0, uintptr(unsafe.Pointer(&bufSize)))
	if ret != 0 || callErr != windows.ERROR_INSUFFICIENT_BUFFER {
		return Topology{}, fmt.Errorf("topology: size query failed: %w", callErr)
	}

	buf := make([]byte, bufSize)
	ret, _, callErr = procGetLogicalProcessorInformationEx.Call(
		relationProcessorCore,
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&bufSize)))
	if ret == 0 {
		return Topology{}, fmt.Errorf("topology: processor query failed: %w", callErr)
	}

	var t Topology

	// One KAFFINITY worth of seen-bits per processor group. A (group, bit)
	// pair showing up twice means a 32-bit process is seeing the upper half
	// of a 64-thread group aliased back onto the lower; drop the duplicate.
	var threadMaskPerProcGroup []uintptr

	for off := uintptr(0); off < uintptr(bufSize); {
		hdr := (*slpiHeader)(unsafe.Pointer(&buf[off]))
		if hdr.Relationship == relationProcessorCore {
			rel := (*processorRelationship)(unsafe.Pointer(&buf[off+slpiUnionOffset]))
			masks := unsafe.Pointer(&buf[off+slpiUnionOffset+groupMaskOffset])
			for g := uintptr(0); g < uintptr(rel.GroupCount); g++ {
				gmask := (*groupAffinity)(unsafe.Pointer(uintptr(masks) + g*unsafe.Sizeof(groupAffinity{})))
				if err := t.addCore(gmask.Group, gmask.Mask, &threadMaskPerProcGroup); err != nil {
					return Topology{}, err
				}
			}
		}
		off += uintptr(hdr.Size)
	}

	return t, nil
}

// addCore attaches every set bit of mask as a hardware thread of one new
// core, resolving each thread's NUMA node through the OS.
func (t *Topology) addCore(procGroup uint16, mask uintptr, seen *[]uintptr) error {
	var core *Core

	for mask != 0 {
		threadID := uint32(bits.TrailingZeros64(uint64(mask)))
		threadMask := uintptr(1) << threadID
		mask &^= threadMask

		for uint16(len(*seen)) <= procGroup {
			*seen = append(*seen, 0)
		}
		if (*seen)[procGroup]&threadMask != 0 {
			continue
		}
		(*seen)[procGroup] |= threadMask

		var numaID uint16
		procNum := processorNumber{Group: procGroup, Number: uint8(threadID)}
		ret, _, callErr := procGetNumaProcessorNodeEx.Call(
			uintptr(unsafe.Pointer(&procNum)),
			uintptr(unsafe.Pointer(&numaID)))
		if ret == 0 {
			return fmt.Errorf("topology: numa node lookup failed: %w", callErr)
		}

		node := t.node(uint32(numaID))
		if core == nil {
			node.Cores = append(node.Cores, Core{ProcGroup: uint32(procGroup)})
			core = &node.Cores[len(node.Cores)-1]
		}
		core.ThreadIDs = append(core.ThreadIDs, threadID)

		if procGroup == 0 {
			t.NumThreadsPerProcGroup++
		}
	}

	return nil
}
