// File: arena/arena_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package arena

import "testing"

func TestAllocAlignment(t *testing.T) {
	a := New(1024)

	a.Alloc(3, 1)
	buf := a.Alloc(16, 64)
	if len(buf) != 16 {
		t.Fatalf("Alloc returned %d bytes, want 16", len(buf))
	}
	if got := a.off; got != 64+16 {
		t.Fatalf("bump offset %d after aligned alloc, want %d", got, 64+16)
	}
}

func TestAllocGrowsBeyondBlock(t *testing.T) {
	a := New(256)

	a.Alloc(200, 8)
	buf := a.Alloc(100, 8) // does not fit the remainder
	if len(buf) != 100 {
		t.Fatalf("overflow alloc returned %d bytes", len(buf))
	}
	if len(a.blocks) != 2 {
		t.Fatalf("%d backing blocks, want 2", len(a.blocks))
	}

	// Oversized requests get a dedicated block.
	big := a.Alloc(4096, 8)
	if len(big) != 4096 {
		t.Fatalf("oversized alloc returned %d bytes", len(big))
	}
}

func TestResetShallowKeepsBlocks(t *testing.T) {
	a := New(128)
	a.Alloc(200, 8) // forces a second block
	blocks := len(a.blocks)

	a.Reset(false)
	if len(a.blocks) != blocks {
		t.Fatalf("shallow reset dropped blocks: %d -> %d", blocks, len(a.blocks))
	}
	if a.cur != 0 || a.off != 0 {
		t.Fatal("shallow reset did not rewind the bump cursor")
	}

	// The retained block is reused on the next overflow.
	a.Alloc(120, 8)
	a.Alloc(100, 8)
	if len(a.blocks) != blocks {
		t.Fatalf("retained block not reused: %d blocks", len(a.blocks))
	}
}

func TestResetDeepReleasesBlocks(t *testing.T) {
	a := New(128)
	a.Alloc(500, 8)
	a.Alloc(500, 8)

	a.Reset(true)
	if len(a.blocks) != 1 {
		t.Fatalf("deep reset kept %d blocks, want 1", len(a.blocks))
	}
	if a.Footprint() != 128 {
		t.Fatalf("footprint %d after deep reset, want 128", a.Footprint())
	}
}

func TestZeroAndNegativeSizes(t *testing.T) {
	a := New(0) // picks the default block size
	if a.Footprint() != DefaultBlockSize {
		t.Fatalf("default footprint %d, want %d", a.Footprint(), DefaultBlockSize)
	}
	if buf := a.Alloc(0, 8); buf != nil {
		t.Fatal("zero-size alloc must return nil")
	}
	if buf := a.Alloc(-5, 8); buf != nil {
		t.Fatal("negative alloc must return nil")
	}
}
