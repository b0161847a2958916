package xfl

import "testing"

// drainFree consumes every block currently on the free list with an
// exactly-sized Malloc, so later allocations in a test start from a clean
// slate instead of competing with whatever remainder extendHeap's initial
// CHUNKSIZE extension happened to leave behind. The consumed blocks are
// deliberately leaked for the lifetime of the test (the Heap itself is
// torn down by t.Cleanup in newTestHeap).
func drainFree(t *testing.T, h *Heap) {
	t.Helper()

	for h.freeHead != nil {
		size := blockSize(h.freeHead)
		payload := uint32(size) - 2*wordSize
		b, err := h.Malloc(payload)
		if err != nil {
			t.Fatalf("drainFree: %v", err)
		}
		if got := blockSize(bp(b)); got != size {
			t.Fatalf("drainFree: expected to consume a %d-byte block whole, got %d", size, got)
		}
	}
}
