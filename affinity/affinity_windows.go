//go:build windows
// +build windows

// File: affinity/affinity_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows-specific thread pinning via SetThreadGroupAffinity.

package affinity

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadGroupAffinity = modkernel32.NewProc("SetThreadGroupAffinity")
)

// groupAffinity mirrors GROUP_AFFINITY.
type groupAffinity struct {
	Mask  uintptr
	Group uint16
	_     [3]uint16
}

// bindableWidth is the widest single-thread mask this process can express.
const bindableWidth = 8 * unsafe.Sizeof(uintptr(0))

// groupAffinityFor computes the GROUP_AFFINITY for b. A zero mask leaves
// processor choice within the group to the scheduler: requested either
// explicitly via WholeGroup, or forced when a 32-bit process cannot bind
// to logical processors 32-63 of a group.
func groupAffinityFor(b Binding) groupAffinity {
	aff := groupAffinity{Group: b.ProcGroup}

	switch {
	case b.WholeGroup:
	case uintptr(b.ThreadID) >= bindableWidth:
	default:
		aff.Mask = uintptr(1) << b.ThreadID
	}

	return aff
}

func bindPlatform(b Binding) error {
	aff := groupAffinityFor(b)

	ret, _, callErr := procSetThreadGroupAffinity.Call(
		uintptr(windows.CurrentThread()),
		uintptr(unsafe.Pointer(&aff)),
		0)
	if ret == 0 {
		return fmt.Errorf("affinity: SetThreadGroupAffinity(group %d, cpu %d): %w",
			b.ProcGroup, b.ThreadID, callErr)
	}
	return nil
}
