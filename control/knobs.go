// File: control/knobs.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Tunable knobs for the thread pool and draw ring. All values are optional
// overrides. Zero means "derive from hardware" for the thread count and
// topology clamps, and "use the default" for the spin budget and the ring
// capacity.

package control

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults.
const (
	DefaultSpinLoopCount    = 5000
	DefaultMaxDrawsInFlight = 256
)

// Knobs is the configuration surface of the scheduler core.
type Knobs struct {
	// MaxWorkerThreads overrides the topology-derived worker count and
	// disables per-thread pinning.
	MaxWorkerThreads uint32 `json:"max_worker_threads"`

	// Topology clamps.
	MaxNumaNodes        uint32 `json:"max_numa_nodes"`
	MaxCoresPerNumaNode uint32 `json:"max_cores_per_numa_node"`
	MaxThreadsPerCore   uint32 `json:"max_threads_per_core"`

	// SingleThreaded spawns no workers; the API thread does all work inline.
	SingleThreaded bool `json:"single_threaded"`

	// SpinLoopCount is the idle-spin budget before a worker blocks.
	SpinLoopCount uint32 `json:"spin_loop_count"`

	// MaxDrawsInFlight is the draw ring capacity. Power of two recommended.
	MaxDrawsInFlight uint32 `json:"max_draws_in_flight"`
}

// Default returns the knob set used when the host provides nothing.
func Default() Knobs {
	return Knobs{
		SpinLoopCount:    DefaultSpinLoopCount,
		MaxDrawsInFlight: DefaultMaxDrawsInFlight,
	}
}

// Validate normalizes zero values and rejects nonsense.
func (k *Knobs) Validate() error {
	if k.SpinLoopCount == 0 {
		k.SpinLoopCount = DefaultSpinLoopCount
	}
	if k.MaxDrawsInFlight == 0 {
		k.MaxDrawsInFlight = DefaultMaxDrawsInFlight
	}
	// Wrap-aware draw id ordering needs fewer than 2^31 draws in flight.
	if k.MaxDrawsInFlight >= 1<<31 {
		return fmt.Errorf("control: max_draws_in_flight %d exceeds id ordering window", k.MaxDrawsInFlight)
	}
	return nil
}

// FromEnv overlays KNOB_* environment variables onto k.
func (k *Knobs) FromEnv() {
	envUint32("KNOB_MAX_WORKER_THREADS", &k.MaxWorkerThreads)
	envUint32("KNOB_MAX_NUMA_NODES", &k.MaxNumaNodes)
	envUint32("KNOB_MAX_CORES_PER_NUMA_NODE", &k.MaxCoresPerNumaNode)
	envUint32("KNOB_MAX_THREADS_PER_CORE", &k.MaxThreadsPerCore)
	envUint32("KNOB_WORKER_SPIN_LOOP_COUNT", &k.SpinLoopCount)
	envUint32("KNOB_MAX_DRAWS_IN_FLIGHT", &k.MaxDrawsInFlight)
	if v, ok := os.LookupEnv("KNOB_SINGLE_THREADED"); ok {
		k.SingleThreaded = v == "1" || v == "true"
	}
}

func envUint32(name string, dst *uint32) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return
	}
	*dst = uint32(n)
}
