package xfl

import "unsafe"

// Word and block layout constants, see spec.md §3 "Data model".
const (
	wordSize     = 8  // W
	minBlock     = 32 // header + next + prev + footer
	prologueSize = 2 * wordSize
)

// pack combines a block size and an allocated flag into a single header or
// footer word. size must already be a multiple of 8; only bit 0 of alloc is
// consulted.
func pack(size uint64, alloc uint64) uint64 {
	return size | (alloc & 1)
}

// sizeOf extracts the block size encoded in a header or footer word.
func sizeOf(w uint64) uint64 { return w &^ 7 }

// allocOf extracts the allocated flag encoded in a header or footer word.
func allocOf(w uint64) uint64 { return w & 1 }

// getWord reads the 8-byte word at p.
func getWord(p unsafe.Pointer) uint64 { return *(*uint64)(p) }

// putWord writes the 8-byte word at p.
func putWord(p unsafe.Pointer, v uint64) { *(*uint64)(p) = v }

// offset advances p by n bytes, n may be negative.
func offset(p unsafe.Pointer, n int) unsafe.Pointer {
	return unsafe.Pointer(uintptr(p) + uintptr(n))
}

// header returns the address of bp's header word. bp addresses the first
// payload byte, 8 bytes past the header (spec.md §3 "Block pointer
// convention").
func header(bp unsafe.Pointer) unsafe.Pointer { return offset(bp, -wordSize) }

// footer returns the address of bp's footer word, derived from the size
// encoded in its header.
func footer(bp unsafe.Pointer) unsafe.Pointer {
	size := sizeOf(getWord(header(bp)))
	return offset(bp, int(size)-2*wordSize)
}

// blockSize reads the total block size (header+payload+footer) from bp's
// header.
func blockSize(bp unsafe.Pointer) uint64 { return sizeOf(getWord(header(bp))) }

// isAllocated reports whether bp's header marks it allocated.
func isAllocated(bp unsafe.Pointer) bool { return allocOf(getWord(header(bp))) == 1 }

// nextPhys returns the block physically following bp.
func nextPhys(bp unsafe.Pointer) unsafe.Pointer {
	return offset(bp, int(blockSize(bp)))
}

// prevPhys returns the block physically preceding bp, found by reading the
// size word in the previous block's footer (at bp-16).
func prevPhys(bp unsafe.Pointer) unsafe.Pointer {
	prevFooter := offset(bp, -2*wordSize)
	size := sizeOf(getWord(prevFooter))
	return offset(bp, -int(size))
}

// setTag writes (size, alloc) into both bp's header and footer.
func setTag(bp unsafe.Pointer, size uint64, alloc uint64) {
	w := pack(size, alloc)
	putWord(header(bp), w)
	putWord(footer(bp), w)
}

// roundUp8 rounds n up to the next multiple of 8.
func roundUp8(n uint64) uint64 { return (n + 7) &^ 7 }
