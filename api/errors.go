// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types shared across the rasterpool library.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrNoTopology         = fmt.Errorf("topology probe returned no nodes")
	ErrPoolShutdown       = fmt.Errorf("thread pool is shut down")
	ErrRingFull           = fmt.Errorf("draw ring is full")
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
	ErrWorkerNoCapability = fmt.Errorf("worker must have at least one of FE/BE capability")
	ErrNotSupported       = fmt.Errorf("operation not supported")
)
