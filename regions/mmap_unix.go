// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

// Package regions provides OS-backed byte regions suitable as the
// backing buffer for an Arena, Stack, Pool, or Slab. It is kept
// outside the memalloc package itself because those allocators never
// perform I/O or syscalls on their own; a region is something the
// caller obtains once, up front, and hands in as a plain []byte.
//
// The mmap path here mirrors the anonymous-mapping setup in
// buddy_init of the pack's own buddy allocator, trimmed to what an
// Arena-style caller actually needs: one big anonymous mapping handed
// back as a []byte, and an explicit Release instead of destructor
// magic.
package regions

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Region is an OS-backed byte slice that must be released with
// Release once the caller is done with it. Using the slice after
// Release is undefined behavior, the same as dereferencing a pointer
// into a munmap'd region in C.
type Region struct {
	buf []byte
}

// NewAnonymous maps a private, anonymous region of at least size
// bytes, readable and writable by the calling process, and returns it
// as a []byte via Region.Bytes. The kernel rounds size up to a
// multiple of the page size; callers that care about the exact
// capacity should read len(Bytes()) back rather than assuming size.
func NewAnonymous(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("memalloc/regions: size must be positive, got %d", size)
	}
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("memalloc/regions: mmap: %w", err)
	}
	return &Region{buf: buf}, nil
}

// Bytes returns the region's backing slice. It is valid to pass this
// directly to memalloc.NewArena, memalloc.NewStack, memalloc.NewPool,
// or memalloc.NewSlab.
func (r *Region) Bytes() []byte { return r.buf }

// Release unmaps the region. It is safe to call once; calling it
// again is a no-op.
func (r *Region) Release() error {
	if r.buf == nil {
		return nil
	}
	err := unix.Munmap(r.buf)
	r.buf = nil
	if err != nil {
		return fmt.Errorf("memalloc/regions: munmap: %w", err)
	}
	return nil
}
