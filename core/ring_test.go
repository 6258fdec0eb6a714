// File: core/ring_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package core

import "testing"

func TestDrawRingBasics(t *testing.T) {
	r := newDrawRing(4)

	if !r.IsEmpty() || r.IsFull() {
		t.Fatal("fresh ring should be empty and not full")
	}
	if r.Cap() != 4 {
		t.Fatalf("Cap = %d, want 4", r.Cap())
	}

	for i := 0; i < 4; i++ {
		r.Enqueue()
	}
	if !r.IsFull() || r.Len() != 4 {
		t.Fatalf("ring should be full, Len=%d", r.Len())
	}

	r.Dequeue()
	if r.IsFull() || r.Len() != 3 {
		t.Fatalf("after one dequeue Len=%d, want 3", r.Len())
	}
}

func TestDrawRingSlotReuseAcrossWrap(t *testing.T) {
	r := newDrawRing(4)

	// Cursors 0 and 4 alias the same slot; 1 and 5 the next, and so on.
	for cur := uint32(0); cur < 16; cur++ {
		if got, want := r.Entry(cur), r.Entry(cur+4); got != want {
			t.Fatalf("cursor %d and %d map to different slots", cur, cur+4)
		}
		if got, want := r.Entry(cur), r.Entry(cur+1); cur%4 != 3 && got == want {
			t.Fatalf("cursors %d and %d alias unexpectedly", cur, cur+1)
		}
	}
}

func TestDrawRingOverflowPanics(t *testing.T) {
	r := newDrawRing(2)
	r.Enqueue()
	r.Enqueue()

	defer func() {
		if recover() == nil {
			t.Fatal("enqueue into a full ring must panic")
		}
	}()
	r.Enqueue()
}

func TestDrawRingUnderflowPanics(t *testing.T) {
	r := newDrawRing(2)

	defer func() {
		if recover() == nil {
			t.Fatal("dequeue from an empty ring must panic")
		}
	}()
	r.Dequeue()
}
