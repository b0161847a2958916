package xfl

import "unsafe"

// This file mirrors Malloc/Calloc/Free/Realloc/UsableSize with an
// unsafe.Pointer-based API, the same duplication cznic/memory carries
// (UnsafeMalloc/UnsafeFree/UnsafeRealloc/UnsafeUsableSize) for callers that
// want to avoid the Go slice header's bookkeeping on the hot path.

// UnsafeMalloc is like Malloc except it returns an unsafe.Pointer.
func (h *Heap) UnsafeMalloc(n uint32) (p unsafe.Pointer, err error) {
	if trace {
		defer func() { logf("UnsafeMalloc(%#x) %p, %v", n, p, err) }()
	}

	if h.closed {
		return nil, ErrClosed
	}

	if n == 0 {
		return nil, nil
	}

	asize := adjustedSize(n)

	bp := h.findFit(asize)
	if bp == nil {
		words := asize / wordSize
		if asize < ChunkSize {
			words = ChunkSize / wordSize
		}

		var extendErr error
		bp, extendErr = h.extendHeap(words)
		if extendErr != nil {
			return nil, extendErr
		}
	}

	h.place(bp, asize)
	return bp, nil
}

// UnsafeCalloc is like UnsafeMalloc except the allocated memory is zeroed.
func (h *Heap) UnsafeCalloc(n uint32) (p unsafe.Pointer, err error) {
	if trace {
		defer func() { logf("UnsafeCalloc(%#x) %p, %v", n, p, err) }()
	}

	p, err = h.UnsafeMalloc(n)
	if p == nil || err != nil {
		return p, err
	}

	b := byteSliceAt(uintptr(p), int(n))
	for i := range b {
		b[i] = 0
	}

	return p, nil
}

// UnsafeFree is like Free except its argument is an unsafe.Pointer, which
// must have been acquired from UnsafeMalloc, UnsafeCalloc or
// UnsafeRealloc.
func (h *Heap) UnsafeFree(p unsafe.Pointer) (err error) {
	if trace {
		defer func() { logf("UnsafeFree(%p) %v", p, err) }()
	}

	if h.closed {
		return ErrClosed
	}

	if p == nil {
		return nil
	}

	setTag(p, blockSize(p), 0)
	clearLinks(p)
	h.coalesce(p)
	return nil
}

// UnsafeUsableSize is like UsableSize except its argument is an
// unsafe.Pointer returned from UnsafeMalloc, UnsafeCalloc or
// UnsafeRealloc.
func (h *Heap) UnsafeUsableSize(p unsafe.Pointer) int {
	if p == nil {
		return 0
	}

	return int(blockSize(p) - 2*wordSize)
}

// UnsafeRealloc is like Realloc except its first argument and its result
// are unsafe.Pointer.
func (h *Heap) UnsafeRealloc(p unsafe.Pointer, n uint32) (r unsafe.Pointer, err error) {
	if trace {
		defer func() { logf("UnsafeRealloc(%p, %#x) %p, %v", p, n, r, err) }()
	}

	if h.closed {
		return nil, ErrClosed
	}

	if p == nil {
		return h.UnsafeMalloc(n)
	}

	if n == 0 {
		return nil, h.UnsafeFree(p)
	}

	oldPayload := uint32(blockSize(p) - 2*wordSize)

	newP, err := h.UnsafeMalloc(n)
	if err != nil {
		panic(&FatalError{Op: "UnsafeMalloc", Err: err})
	}

	copySize := oldPayload
	if n < copySize {
		copySize = n
	}

	copy(byteSliceAt(uintptr(newP), int(copySize)), byteSliceAt(uintptr(p), int(copySize)))

	if err := h.UnsafeFree(p); err != nil {
		return nil, err
	}

	return newP, nil
}
