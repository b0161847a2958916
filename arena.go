package xfl

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/cznic/mathutil"
)

// ChunkSize is the default amount, in bytes, by which the heap is grown
// when malloc finds no fit and must ask the arena for more address space
// (spec.md §4.4, CHUNKSIZE).
const ChunkSize = 4096

// DefaultMaxHeap is the virtual address space reserved up front when
// Options.MaxHeap is left zero. The reservation is pure address space
// (unix: PROT_NONE mmap; windows: MEM_RESERVE) — nothing is paged in until
// extendHeap commits it, so this is cheap even though it looks large.
const DefaultMaxHeap = 1 << 30 // 1 GiB

// Options configures a Heap. The zero value is valid; missing fields are
// replaced by their defaults in resolve. This mirrors the Options-struct
// shape used elsewhere in the corpus (cznic/exp/dbm's Options) rather than
// functional options, since there are only two independent knobs and no
// need for staged construction.
type Options struct {
	// InitialChunk is the size, in bytes, of the first heap extension
	// performed by New. Defaults to ChunkSize.
	InitialChunk uint64

	// MaxHeap caps the total virtual address space reserved for the
	// heap. The allocator can never grow past this; attempting to do so
	// returns ErrOutOfMemory. Defaults to DefaultMaxHeap.
	MaxHeap uint64
}

func (o Options) resolve() Options {
	if o.InitialChunk == 0 {
		o.InitialChunk = ChunkSize
	}
	if o.MaxHeap == 0 {
		o.MaxHeap = DefaultMaxHeap
	}
	return o
}

// reservationSize rounds a requested maximum up to the next power of two,
// the way cznic/memory's newSharedPage sizes a slab class via
// mathutil.BitLen — here applied to the arena reservation instead of a
// slab size class.
func reservationSize(max uint64) uint64 {
	if max <= 1 {
		return 1
	}
	return uint64(1) << uint(mathutil.BitLen(int(max-1)))
}

// byteSliceAt builds a []byte view over an arbitrary address range without
// a copy, the same reflect.SliceHeader construction cznic/memory's Malloc
// and mmap_windows.go's mmap0 use to turn a raw address into a slice.
func byteSliceAt(addr uintptr, length int) []byte {
	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = addr
	sh.Len = length
	sh.Cap = length
	return b
}

// growHeap is the sbrk-like primitive of spec.md §6: it extends the
// logical heap by n bytes and returns the address that was the end of the
// heap just before the extension. Address space for the whole arena is
// reserved once, in New; growHeap only ever commits more of the already
// reserved range, rounding the committed prefix up to a whole number of OS
// pages, and never shrinks it.
func (h *Heap) growHeap(n uint64) (unsafe.Pointer, error) {
	if n == 0 {
		return offset(unsafe.Pointer(h.base), int(h.brk)), nil
	}

	newBrk := h.brk + n
	if newBrk > h.opts.MaxHeap {
		return nil, ErrOutOfMemory
	}

	if newBrk > h.committed {
		newCommitted := roundUpPage(newBrk, h.pageSize)
		if newCommitted > h.maxSize {
			newCommitted = h.maxSize
		}
		if err := arenaCommit(h.base, h.committed, newCommitted-h.committed); err != nil {
			return nil, fmt.Errorf("xfl: extending arena: %w: %w", ErrOutOfMemory, err)
		}
		h.committed = newCommitted
	}

	old := offset(unsafe.Pointer(h.base), int(h.brk))
	h.brk = newBrk
	return old, nil
}

func roundUpPage(n, pageSize uint64) uint64 {
	return (n + pageSize - 1) &^ (pageSize - 1)
}
