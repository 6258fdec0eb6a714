// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral API for worker thread pinning. Platform-specific
// implementations are located in separate files (affinity_linux.go,
// affinity_windows.go, etc.) guarded by build tags.

package affinity

// Binding describes the pin target for the calling OS thread.
type Binding struct {
	// ThreadID is the hardware thread id within ProcGroup.
	ThreadID uint32

	// ProcGroup is the processor group on platforms that partition the
	// thread id space. Ignored elsewhere.
	ProcGroup uint16

	// WholeGroup binds to the full group mask instead of a single
	// hardware thread.
	WholeGroup bool
}

// Bind pins the current OS thread according to b. The caller must already
// hold runtime.LockOSThread. A failed Bind is not fatal: the caller is
// expected to log and continue with OS-chosen scheduling.
func Bind(b Binding) error {
	return bindPlatform(b)
}
