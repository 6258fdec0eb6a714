// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Knob loading and reload propagation. Files are JSON; decoding goes
// through sonnet for parity with the rest of the stack.

package control

import (
	"fmt"
	"os"
	"sync"

	"github.com/sugawarayuuta/sonnet"
)

// Store holds the active knob set behind a lock, with listener support for
// components that want to observe reloads.
type Store struct {
	mu        sync.RWMutex
	knobs     Knobs
	listeners []func(Knobs)
}

// NewStore initializes a store with validated defaults.
func NewStore() *Store {
	k := Default()
	return &Store{knobs: k}
}

// Snapshot returns a copy of the active knobs.
func (s *Store) Snapshot() Knobs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.knobs
}

// Set replaces the active knobs and notifies listeners synchronously.
func (s *Store) Set(k Knobs) error {
	if err := k.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.knobs = k
	listeners := append([]func(Knobs){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(k)
	}
	return nil
}

// OnReload registers a listener invoked on every Set.
func (s *Store) OnReload(fn func(Knobs)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// LoadFile reads a JSON knob file over the current snapshot and applies it.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	k := s.Snapshot()
	if err := sonnet.Unmarshal(data, &k); err != nil {
		return fmt.Errorf("control: %s: %w", path, err)
	}
	return s.Set(k)
}

// Dump serializes the active knobs to JSON.
func (s *Store) Dump() ([]byte, error) {
	k := s.Snapshot()
	return sonnet.Marshal(&k)
}
