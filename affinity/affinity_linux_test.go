//go:build linux
// +build linux

// File: affinity/affinity_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package affinity

import (
	"runtime"
	"testing"

	"golang.org/x/sys/unix"
)

func TestCPUSetForSingleThread(t *testing.T) {
	set, ok := cpuSetFor(Binding{ThreadID: 3})
	if !ok {
		t.Fatal("in-range thread id refused a mask")
	}
	if !set.IsSet(3) {
		t.Error("mask missing the requested hardware thread")
	}
	if n := set.Count(); n != 1 {
		t.Errorf("mask holds %d CPUs, want exactly 1", n)
	}
}

// Linux has no processor groups: a whole-group request must still pin to
// the single hardware thread, never degrade to a no-op.
func TestCPUSetForWholeGroupStillBinds(t *testing.T) {
	set, ok := cpuSetFor(Binding{ThreadID: 2, ProcGroup: 1, WholeGroup: true})
	if !ok {
		t.Fatal("whole-group binding refused a mask")
	}
	if !set.IsSet(2) || set.Count() != 1 {
		t.Errorf("whole-group binding produced %d-CPU mask, want the single thread bit", set.Count())
	}
}

func TestCPUSetForBeyondMaskWidth(t *testing.T) {
	if _, ok := cpuSetFor(Binding{ThreadID: maxCPUs}); ok {
		t.Error("thread id past the mask width must fall back to OS placement")
	}
	if _, ok := cpuSetFor(Binding{ThreadID: maxCPUs + 7}); ok {
		t.Error("thread id far past the mask width must fall back to OS placement")
	}
}

// Bind against the real scheduler: CPU 0 always exists, and the
// out-of-width fallback must report success without narrowing anything.
func TestBindCurrentThread(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// Remember the current mask so the test thread is restored.
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		t.Fatalf("SchedGetaffinity: %v", err)
	}
	defer unix.SchedSetaffinity(0, &prev)

	if err := Bind(Binding{ThreadID: 0}); err != nil {
		t.Fatalf("Bind to CPU 0: %v", err)
	}

	var got unix.CPUSet
	if err := unix.SchedGetaffinity(0, &got); err != nil {
		t.Fatalf("SchedGetaffinity: %v", err)
	}
	if !got.IsSet(0) || got.Count() != 1 {
		t.Errorf("thread affinity is %d CPUs after bind, want only CPU 0", got.Count())
	}

	if err := Bind(Binding{ThreadID: maxCPUs + 1}); err != nil {
		t.Errorf("out-of-width bind must be a silent fallback, got %v", err)
	}
}
