package xfl

import (
	"unsafe"
)

// trace gates the allocator's debug tracing. It is a plain compile-time
// constant exactly as in cznic/memory: this is hot-path allocation code,
// and spec.md explicitly keeps "print-based debugging helpers" out of the
// core, so there is no flag parsing or env var plumbing — flip it by hand
// and rebuild when chasing a corruption.
const trace = false

// Heap is a single contiguous, boundary-tag heap with an explicit,
// LIFO-ordered free list (spec.md §2-§4). Unlike cznic/memory's
// process-wide Allocator singleton, a Heap is an explicit value: nothing
// about the algorithm requires global state, and spec.md §9 notes that
// encapsulating the two process-wide values (heap start, free-list head)
// in an instance is exactly how multi-arena support would be added later.
// A Heap is not safe for concurrent use (spec.md §5) and must be created
// with New, not as a zero value, since the arena needs a real OS
// reservation.
type Heap struct {
	opts Options

	base      uintptr // arena reservation base
	maxSize   uint64  // total reserved address space
	committed uint64  // bytes of base currently backed by RW pages
	pageSize  uint64
	brk       uint64 // logical heap end, relative to base

	heapStart unsafe.Pointer // bp of the prologue sentinel
	freeHead  unsafe.Pointer // free-list head, nil when empty

	closed bool
}

// New reserves a Heap's backing address space and performs the spec's
// explicit_init: lay down the alignment padding, the prologue and
// epilogue sentinels, then extend the heap once by Options.InitialChunk
// bytes so the first Malloc has somewhere to look.
func New(opts Options) (h *Heap, err error) {
	if trace {
		defer func() { logf("New(%+v) %p, %v", opts, h, err) }()
	}

	opts = opts.resolve()
	base, err := arenaReserve(reservationSize(opts.MaxHeap))
	if err != nil {
		return nil, err
	}

	h = &Heap{
		opts:     opts,
		base:     base,
		maxSize:  reservationSize(opts.MaxHeap),
		pageSize: uint64(osPageSize),
	}

	sentinels, err := h.growHeap(4 * wordSize)
	if err != nil {
		arenaRelease(base, h.maxSize)
		return nil, err
	}

	putWord(sentinels, 0)                                        // alignment padding
	putWord(offset(sentinels, wordSize), pack(prologueSize, 1))   // prologue header
	putWord(offset(sentinels, 2*wordSize), pack(prologueSize, 1)) // prologue footer
	putWord(offset(sentinels, 3*wordSize), pack(0, 1))            // epilogue header
	h.heapStart = offset(sentinels, 2*wordSize)

	if _, err := h.extendHeap(opts.InitialChunk / wordSize); err != nil {
		arenaRelease(base, h.maxSize)
		return nil, err
	}

	return h, nil
}

// extendHeap grows the heap by (at least) words*8 bytes, rounding up to an
// even word count to preserve 8-byte alignment past the old epilogue
// (spec.md §4.4). The new block is formed from the old epilogue's header
// slot and immediately coalesced with whatever free block precedes it.
func (h *Heap) extendHeap(words uint64) (unsafe.Pointer, error) {
	if words%2 != 0 {
		words++
	}

	size := words * wordSize
	if size < minBlock {
		size = minBlock
	}

	bp, err := h.growHeap(size)
	if err != nil {
		return nil, err
	}

	setTag(bp, size, 0)
	putWord(header(nextPhys(bp)), pack(0, 1)) // new epilogue
	clearLinks(bp)

	return h.coalesce(bp), nil
}

// adjustedSize computes asize, the block size a request for n payload
// bytes actually consumes once header/footer overhead and the 32-byte
// free-list-linkage floor are accounted for (spec.md §4.4 step 2).
func adjustedSize(n uint32) uint64 {
	if n <= 8 {
		return minBlock
	}

	asize := roundUp8(uint64(n) + 2*wordSize)
	if asize < minBlock {
		asize = minBlock
	}

	return asize
}

// findFit walks the free list head to tail and returns the first block
// whose size is at least asize, or nil. O(number of free blocks).
func (h *Heap) findFit(asize uint64) unsafe.Pointer {
	for bp := h.freeHead; bp != nil; bp = getNextFree(bp) {
		if blockSize(bp) >= asize {
			return bp
		}
	}

	return nil
}

// place carves asize bytes out of the free block bp, splitting off and
// re-inserting the remainder when it is large enough to stand on its own
// (spec.md §4.4 "place").
func (h *Heap) place(bp unsafe.Pointer, asize uint64) {
	csize := blockSize(bp)
	h.deleteFree(bp)

	if csize-asize >= minBlock {
		setTag(bp, asize, 1)

		rem := nextPhys(bp)
		setTag(rem, csize-asize, 0)
		clearLinks(rem)
		h.insertFree(rem)
		return
	}

	setTag(bp, csize, 1)
}

// Malloc allocates a block of at least n bytes and returns it as a slice
// addressing the block's payload. The memory is not zeroed. Malloc
// returns (nil, nil) for n == 0 — a signalled refusal, not an error
// (spec.md §7) — mirroring cznic/memory's Malloc, which does the same for
// a zero-size request.
func (h *Heap) Malloc(n uint32) (b []byte, err error) {
	if trace {
		defer func() { logf("Malloc(%#x) %p, %v", n, bp(b), err) }()
	}

	if h.closed {
		return nil, ErrClosed
	}

	if n == 0 {
		return nil, nil
	}

	asize := adjustedSize(n)

	p := h.findFit(asize)
	if p == nil {
		words := asize / wordSize
		if asize < ChunkSize {
			words = ChunkSize / wordSize
		}

		var extendErr error
		p, extendErr = h.extendHeap(words)
		if extendErr != nil {
			return nil, extendErr
		}
	}

	h.place(p, asize)
	usable := int(blockSize(p) - 2*wordSize)
	return sliceFrom(p, int(n), usable), nil
}

// Calloc is like Malloc except the returned memory is zeroed.
func (h *Heap) Calloc(n uint32) (b []byte, err error) {
	if trace {
		defer func() { logf("Calloc(%#x) %p, %v", n, bp(b), err) }()
	}

	b, err = h.Malloc(n)
	if b == nil || err != nil {
		return b, err
	}

	for i := range b {
		b[i] = 0
	}

	return b, nil
}

// Free deallocates a block previously returned by Malloc, Calloc or
// Realloc and coalesces it with any free physical neighbours. Freeing a
// zero-length, zero-capacity slice (including the nil returned by
// Malloc(0)) is a no-op, matching cznic/memory's Free.
func (h *Heap) Free(b []byte) (err error) {
	if trace {
		defer func() { logf("Free(%p) %v", bp(b), err) }()
	}

	if h.closed {
		return ErrClosed
	}

	b = b[:cap(b)]
	if len(b) == 0 {
		return nil
	}

	p := unsafe.Pointer(&b[0])
	setTag(p, blockSize(p), 0)
	clearLinks(p)
	h.coalesce(p)
	return nil
}

// Realloc resizes the block backing b to n bytes, preserving the bytes in
// range [0, min(n, old payload size)). If b is empty it behaves as
// Malloc(n); if n is zero it behaves as Free(b). Otherwise a fresh block
// is always allocated and the old one freed — the reference implementation
// this spec is drawn from never grows or shrinks in place, so neither does
// this one (spec.md §4.4). A failure of the internal Malloc is, per the
// spec, not a recoverable condition and is raised as a panic of
// *FatalError rather than returned.
func (h *Heap) Realloc(b []byte, n uint32) (r []byte, err error) {
	if trace {
		defer func() { logf("Realloc(%p, %#x) %p, %v", bp(b), n, bp(r), err) }()
	}

	if h.closed {
		return nil, ErrClosed
	}

	if len(b) == 0 {
		return h.Malloc(n)
	}

	if n == 0 {
		return nil, h.Free(b)
	}

	newB, err := h.Malloc(n)
	if err != nil {
		panic(&FatalError{Op: "Malloc", Err: err})
	}

	p := unsafe.Pointer(&b[0])
	// The 32-bit truncation here mirrors the reference implementation's
	// copySize computation bug-for-bug (spec.md §9's open questions):
	// payloads are assumed never to exceed 4 GiB.
	oldPayload := uint32(blockSize(p) - 2*wordSize)
	copySize := oldPayload
	if n < copySize {
		copySize = n
	}

	copy(newB, b[:copySize])

	if err := h.Free(b); err != nil {
		return nil, err
	}

	return newB, nil
}

// UsableSize reports the number of bytes usable in the block backing b
// without reallocating it. This can be larger than the size originally
// requested, since asize rounds up for alignment and the 32-byte minimum.
func (h *Heap) UsableSize(b []byte) int {
	if len(b) == 0 {
		return 0
	}

	return int(blockSize(unsafe.Pointer(&b[0])) - 2*wordSize)
}

// Close releases the Heap's entire address-space reservation back to the
// OS and marks h unusable. It is not necessary to Close a Heap when
// exiting a process (matching cznic/memory's Allocator.Close doc).
func (h *Heap) Close() error {
	if h.closed {
		return nil
	}

	h.closed = true
	return arenaRelease(h.base, h.maxSize)
}

// sliceFrom builds the []byte view Malloc/Calloc return: length n,
// capacity usable, backed by the payload at p. Same reflect.SliceHeader
// construction cznic/memory's Malloc uses, generalized from a fixed slab
// size class to an arbitrary usable block size.
func sliceFrom(p unsafe.Pointer, n, usable int) []byte {
	full := byteSliceAt(uintptr(p), usable)
	return full[:n]
}

// bp extracts the block pointer backing a slice for trace logging, or nil
// for an empty slice.
func bp(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
