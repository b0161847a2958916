package xfl

import "unsafe"

// The explicit free list is threaded through the payload words of free
// blocks themselves: the word at bp holds the next-free pointer, the word
// at bp+8 holds the prev-free pointer (spec.md §3's block layout table).
// There is no separate node type, per the design notes in spec.md §9 — a
// free block *is* its own list node.

func nextFreeSlot(bp unsafe.Pointer) unsafe.Pointer { return bp }
func prevFreeSlot(bp unsafe.Pointer) unsafe.Pointer { return offset(bp, wordSize) }

func getNextFree(bp unsafe.Pointer) unsafe.Pointer {
	return *(*unsafe.Pointer)(nextFreeSlot(bp))
}

func setNextFree(bp, v unsafe.Pointer) {
	*(*unsafe.Pointer)(nextFreeSlot(bp)) = v
}

func getPrevFree(bp unsafe.Pointer) unsafe.Pointer {
	return *(*unsafe.Pointer)(prevFreeSlot(bp))
}

func setPrevFree(bp, v unsafe.Pointer) {
	*(*unsafe.Pointer)(prevFreeSlot(bp)) = v
}

// clearLinks nulls out bp's free-list linkage words. Called both right
// before a block is inserted (so stale pointers never leak into freshly
// split or extended blocks) and right after it is unlinked.
func clearLinks(bp unsafe.Pointer) {
	setNextFree(bp, nil)
	setPrevFree(bp, nil)
}

// insertFree prepends bp to the free list head (LIFO, spec.md §4.2).
// Precondition: bp is marked unallocated and is not already in the list.
func (h *Heap) insertFree(bp unsafe.Pointer) {
	setNextFree(bp, h.freeHead)
	setPrevFree(bp, nil)
	if h.freeHead != nil {
		setPrevFree(h.freeHead, bp)
	}
	h.freeHead = bp
}

// deleteFree unlinks bp from the free list in O(1).
// Precondition: bp is currently in the list.
func (h *Heap) deleteFree(bp unsafe.Pointer) {
	prev := getPrevFree(bp)
	next := getNextFree(bp)

	if prev != nil {
		setNextFree(prev, next)
	} else {
		h.freeHead = next
	}

	if next != nil {
		setPrevFree(next, prev)
	}

	clearLinks(bp)
}
