// Package xfl implements a general-purpose heap memory allocator: a single
// contiguous process-level heap grown on demand from the operating system,
// managed with boundary-tag block headers/footers and an explicit,
// LIFO-ordered, doubly-linked free list.
//
// A Heap provides the three classic primitives over raw byte slices whose
// addresses are stable for the lifetime of the allocation:
//
//	h, err := xfl.New(xfl.Options{})
//	b, err := h.Malloc(100)
//	b, err = h.Realloc(b, 200)
//	err = h.Free(b)
//
// The allocator is not safe for concurrent use; callers needing thread
// safety must serialize access to a Heap externally. See DESIGN.md in the
// module root for the algorithm's provenance.
package xfl
