//go:build !linux && !windows
// +build !linux,!windows

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub implementation for unsupported platforms. Returns an error to
// indicate unavailability; callers degrade to OS-chosen scheduling.

package affinity

import "github.com/momentics/rasterpool/api"

func bindPlatform(Binding) error {
	return api.ErrNotSupported
}
