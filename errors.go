package xfl

import "fmt"

// ErrOutOfMemory is returned when the arena's growth primitive cannot
// extend the heap any further — either the underlying platform call
// failed or the heap has reached Options.MaxHeap (spec.md §7).
var ErrOutOfMemory = fmt.Errorf("xfl: out of memory")

// ErrClosed is returned by Malloc, Calloc, Free, Realloc, their Unsafe*
// variants and CheckHeap when called on a Heap after Close. A second Close
// returns nil; UsableSize and UnsafeUsableSize do not check for it.
var ErrClosed = fmt.Errorf("xfl: heap is closed")

// FatalError is the panic payload raised by Realloc when the internal
// malloc it performs to obtain the new block fails. The core spec treats
// this as unrecoverable — "the design preserves the source's stance that a
// reallocation failure during copy has no recoverable answer" (spec.md
// §4.4, §7) — so, unlike every other failure mode, it is not surfaced as
// an error return.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("xfl: fatal: %s: %v", e.Op, e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }
