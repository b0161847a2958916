package xfl

import "unsafe"

// coalesce merges a just-freed block bp (already marked unallocated, not
// yet linked into the free list) with any free physical neighbours, then
// inserts the resulting block at the free-list head. It returns the
// pointer to the merged block. See spec.md §4.3 for the four-case table;
// the prologue and epilogue sentinels are always marked allocated, so they
// terminate this process without any bounds check.
func (h *Heap) coalesce(bp unsafe.Pointer) unsafe.Pointer {
	prevAlloc := allocOf(getWord(footer(prevPhys(bp)))) == 1
	nextAlloc := allocOf(getWord(header(nextPhys(bp)))) == 1
	size := blockSize(bp)

	switch {
	case prevAlloc && nextAlloc:
		// Case 1: both neighbours allocated, nothing to merge.
		h.insertFree(bp)

	case prevAlloc && !nextAlloc:
		// Case 2: next is free.
		next := nextPhys(bp)
		h.deleteFree(next)
		size += blockSize(next)
		setTag(bp, size, 0)
		h.insertFree(bp)

	case !prevAlloc && nextAlloc:
		// Case 3: prev is free.
		prev := prevPhys(bp)
		h.deleteFree(prev)
		size += blockSize(prev)
		setTag(prev, size, 0)
		bp = prev
		h.insertFree(bp)

	default:
		// Case 4: both neighbours free.
		prev := prevPhys(bp)
		next := nextPhys(bp)
		h.deleteFree(prev)
		h.deleteFree(next)
		size += blockSize(prev) + blockSize(next)
		setTag(prev, size, 0)
		bp = prev
		h.insertFree(bp)
	}

	return bp
}
