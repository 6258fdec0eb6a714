//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux-specific thread pinning via sched_setaffinity(2).

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// maxCPUs is the width of unix.CPUSet.
const maxCPUs = 1024

// cpuSetFor computes the affinity mask for b. ok is false when the thread
// id is beyond the bindable width of the mask, in which case no bind is
// attempted and the OS places the thread.
func cpuSetFor(b Binding) (set unix.CPUSet, ok bool) {
	if b.ThreadID >= maxCPUs {
		return set, false
	}
	set.Zero()
	set.Set(int(b.ThreadID))
	return set, true
}

// bindPlatform narrows the calling thread's CPU set to a single hardware
// thread. Linux has no processor groups, so a whole-group request still
// pins to the given hardware thread id.
func bindPlatform(b Binding) error {
	set, ok := cpuSetFor(b)
	if !ok {
		return nil
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity(cpu %d): %w", b.ThreadID, err)
	}
	return nil
}
