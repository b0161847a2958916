package xfl

import (
	"math"
	"testing"

	"github.com/cznic/mathutil"
	"github.com/stretchr/testify/require"
)

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	h, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// churn is grounded on cznic/memory/all_test.go's test1/test2: allocate
// pseudo-random sized blocks up to a quota, fill each with known bytes,
// verify the contents from a re-seeded generator, then free everything in
// a shuffled order. The heap must drain back to a single free block and
// the coalescer must never leave garbage behind.
func churn(t *testing.T, max int) {
	h := newTestHeap(t)

	const quota = 4 << 20
	rem := quota
	var blocks [][]byte

	rng, err := mathutil.NewFC32(1, math.MaxInt16, true)
	require.NoError(t, err)

	rng.Seed(42)
	pos := rng.Pos()

	for rem > 0 {
		size := uint32(rng.Next()%max + 1)
		rem -= int(size)

		b, err := h.Malloc(size)
		require.NoError(t, err)
		require.Len(t, b, int(size))
		require.Zero(t, uintptr(bp(b))%wordSize, "payload pointer must be 8-byte aligned")

		for i := range b {
			b[i] = byte(rng.Next())
		}

		blocks = append(blocks, b)
	}

	rng.Seek(pos)
	for i, b := range blocks {
		size := rng.Next()%max + 1
		require.Len(t, b, size)

		for j, got := range b {
			require.Equal(t, byte(rng.Next()), got, "block %d byte %d corrupted", i, j)
		}
	}

	// Shuffle before freeing so coalescing has to handle blocks arriving
	// out of physical order.
	for i := range blocks {
		j := rng.Next() % len(blocks)
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}

	for _, b := range blocks {
		require.NoError(t, h.Free(b))
	}

	require.NoError(t, h.CheckHeap(false))
	require.NotNil(t, h.freeHead, "heap should drain to a single free block")
	require.Nil(t, getNextFree(h.freeHead), "exactly one free block should remain")
}

func TestChurnSmall(t *testing.T) { churn(t, 64) }
func TestChurnBig(t *testing.T)   { churn(t, 4096) }

// TestFixedSizeChurn is the scenario from spec.md §8.1: many same-size
// allocations followed by freeing all of them leaves a single free block
// and never grows the heap again past the point the allocations reached.
func TestFixedSizeChurn(t *testing.T) {
	h := newTestHeap(t)

	const n = 10000
	ptrs := make([][]byte, n)
	for i := range ptrs {
		b, err := h.Malloc(32)
		require.NoError(t, err)
		ptrs[i] = b
	}

	committedAfterAlloc := h.committed

	for _, b := range ptrs {
		require.NoError(t, h.Free(b))
	}

	require.Equal(t, committedAfterAlloc, h.committed, "free must never grow the heap")
	require.NoError(t, h.CheckHeap(false))
	require.NotNil(t, h.freeHead)
	require.Nil(t, getNextFree(h.freeHead))
}

// TestSplitBehaviour is the scenario from spec.md §8.2. A 16-byte request
// adjusts to exactly the 32-byte minimum block (roundUp8(16+16) == 32),
// carved out of the initial CHUNKSIZE-byte free block.
func TestSplitBehaviour(t *testing.T) {
	h := newTestHeap(t)

	p, err := h.Malloc(16)
	require.NoError(t, err)
	require.Len(t, p, 16)

	block := bp(p)
	require.EqualValues(t, 32, blockSize(block))
	require.True(t, isAllocated(block))

	next := nextPhys(block)
	require.False(t, isAllocated(next))
	require.EqualValues(t, ChunkSize-32, blockSize(next))
}

// TestCoalesceAllFourCases is the scenario from spec.md §8.3. The free
// order A, C, B exercises coalesce cases 1 and 4 only; cases 2 and 3 are
// covered by TestCoalesceCaseNextFree and TestCoalesceCasePrevFree in
// coalesce_test.go.
func TestCoalesceAllFourCases(t *testing.T) {
	h := newTestHeap(t)
	drainFree(t, h)

	a, err := h.Malloc(64)
	require.NoError(t, err)
	b, err := h.Malloc(64)
	require.NoError(t, err)
	c, err := h.Malloc(64)
	require.NoError(t, err)
	drainFree(t, h) // consume the trailing remainder so c's successor is allocated

	sizeA := blockSize(bp(a))
	sizeB := blockSize(bp(b))
	sizeC := blockSize(bp(c))

	require.NoError(t, h.Free(a)) // case 1: both neighbours allocated
	require.NoError(t, h.Free(c)) // case 1 again: B still sits allocated between two free blocks
	require.NoError(t, h.Free(b)) // case 4: both neighbours free, merges all three into one

	require.NoError(t, h.CheckHeap(false))
	require.NotNil(t, h.freeHead)
	require.Nil(t, getNextFree(h.freeHead))
	require.Equal(t, sizeA+sizeB+sizeC, blockSize(h.freeHead))
}

// TestReallocCopyFidelity is the scenario from spec.md §8.4.
func TestReallocCopyFidelity(t *testing.T) {
	h := newTestHeap(t)

	p, err := h.Malloc(16)
	require.NoError(t, err)
	for i := range p {
		p[i] = byte(i)
	}

	q, err := h.Realloc(p, 128)
	require.NoError(t, err)
	require.Len(t, q, 128)
	require.Zero(t, uintptr(bp(q))%wordSize)

	for i := 0; i < 16; i++ {
		require.Equal(t, byte(i), q[i])
	}

	require.NoError(t, h.CheckHeap(false))
}

// TestZeroRequest is the scenario from spec.md §8.5.
func TestZeroRequest(t *testing.T) {
	h := newTestHeap(t)

	before := h.brk
	p, err := h.Malloc(0)
	require.NoError(t, err)
	require.Nil(t, p)
	require.Equal(t, before, h.brk, "a zero-size request must not mutate the heap")
}

// TestFirstFitOrdering is the scenario from spec.md §8.6: three free
// blocks of size 64, 128, 256 end up in the free list, LIFO-inserted so
// that the list reads head(64) -> 128 -> 256. A malloc for a 100-byte
// payload (asize=120) must walk past the 64 block, which does not fit,
// and return the 128 block rather than continuing on to the 256 one.
func TestFirstFitOrdering(t *testing.T) {
	h := newTestHeap(t)
	drainFree(t, h)

	// guard allocates and never frees a minimum-size block, keeping the
	// candidate blocks below from physically coalescing with each other.
	guard := func() []byte {
		b, err := h.Malloc(8) // asize = 32
		require.NoError(t, err)
		return b
	}

	_ = guard()
	c64, err := h.Malloc(48) // asize = 64
	require.NoError(t, err)
	_ = guard()
	c128, err := h.Malloc(112) // asize = 128
	require.NoError(t, err)
	_ = guard()
	c256, err := h.Malloc(240) // asize = 256
	require.NoError(t, err)
	_ = guard()

	require.EqualValues(t, 64, blockSize(bp(c64)))
	require.EqualValues(t, 128, blockSize(bp(c128)))
	require.EqualValues(t, 256, blockSize(bp(c256)))

	require.NoError(t, h.Free(c256))
	require.NoError(t, h.Free(c128))
	require.NoError(t, h.Free(c64))

	require.Equal(t, bp(c64), h.freeHead)
	require.Equal(t, bp(c128), getNextFree(h.freeHead))
	require.Equal(t, bp(c256), getNextFree(getNextFree(h.freeHead)))

	got, err := h.Malloc(100)
	require.NoError(t, err)
	require.Equal(t, bp(c128), bp(got))
}
