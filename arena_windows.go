// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2017 The Memory Authors.
// Modifications for a single growable heap region.

package xfl

import (
	"os"

	"golang.org/x/sys/windows"
)

var osPageSize = os.Getpagesize()

// arenaReserve reserves size bytes of address space with MEM_RESERVE. This
// is the direct Win32 analogue of the unix PROT_NONE mmap: the address
// range is claimed but not yet backed by any page file or physical memory.
// cznic/memory's mmap_windows.go instead used CreateFileMapping +
// MapViewOfFile, which is the right tool when every page needs to be
// mapped at once (its slabs are fixed-size); a growable heap needs the
// reserve/commit split VirtualAlloc provides natively.
func arenaReserve(size uint64) (uintptr, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return 0, os.NewSyscallError("VirtualAlloc", err)
	}

	return addr, nil
}

// arenaCommit pages in and makes readable/writable the byte range
// [base+off, base+off+length).
func arenaCommit(base uintptr, off, length uint64) error {
	if length == 0 {
		return nil
	}

	addr := base + uintptr(off)
	if _, err := windows.VirtualAlloc(addr, uintptr(length), windows.MEM_COMMIT, windows.PAGE_READWRITE); err != nil {
		return os.NewSyscallError("VirtualAlloc", err)
	}

	return nil
}

// arenaRelease gives the whole reservation back to the OS.
func arenaRelease(base uintptr, size uint64) error {
	// A MEM_RELEASE call must specify the original reservation's base
	// address and a zero size; it releases everything reserved there.
	_ = size
	return windows.VirtualFree(base, 0, windows.MEM_RELEASE)
}
