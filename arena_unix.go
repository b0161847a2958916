// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// +build darwin dragonfly freebsd linux openbsd solaris netbsd

// Modifications (c) 2017 The Memory Authors.
// Modifications for a single growable heap region.

package xfl

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

var osPageSize = os.Getpagesize()

// arenaReserve reserves size bytes of address space without backing it
// with physical pages. Unlike cznic/memory's mmap0, which maps pages
// read-write immediately because each page is an independently sized
// slab, this mapping is PROT_NONE: the spec's heap must be able to grow
// in place, so the whole range is claimed up front and pages are only
// made accessible as extendHeap commits them.
func arenaReserve(size uint64) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, err
	}

	return uintptr(unsafe.Pointer(&b[0])), nil
}

// arenaCommit makes the byte range [base+off, base+off+length) readable
// and writable, backing it with physical pages.
func arenaCommit(base uintptr, off, length uint64) error {
	if length == 0 {
		return nil
	}

	return unix.Mprotect(byteSliceAt(base+uintptr(off), int(length)), unix.PROT_READ|unix.PROT_WRITE)
}

// arenaRelease gives the whole reservation back to the OS.
func arenaRelease(base uintptr, size uint64) error {
	return unix.Munmap(byteSliceAt(base, int(size)))
}
