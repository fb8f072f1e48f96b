// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memalloc

import "errors"

// Pool error surface, matching the pool_error_t enum of the original
// single-header pool allocator this package is modeled on. Arena and
// Stack keep a boolean/nil-return contract instead of an error enum;
// only Pool and Slab construction/free paths have a discrete set of
// contract violations worth naming.
var (
	ErrNullBuffer       = errors.New("memalloc: pool: buffer is nil")
	ErrBufferTooSmall   = errors.New("memalloc: pool: buffer too small for even one slot")
	ErrInvalidSlotSize  = errors.New("memalloc: pool: slot size must be non-zero")
	ErrInvalidAlignment = errors.New("memalloc: pool: alignment must be a power of two")
	ErrNullPtr          = errors.New("memalloc: pool: ptr is nil")
	ErrInvalidPtr       = errors.New("memalloc: pool: ptr is not owned by this pool")
	ErrDoubleFree       = errors.New("memalloc: pool: double free detected")
)

// Slab error surface, matching slab.h's SLAB_ERR_* defines.
var (
	ErrNullParam      = errors.New("memalloc: slab: required parameter is nil or zero")
	ErrZeroSize       = errors.New("memalloc: slab: size class must be non-zero")
	ErrTooManyClasses = errors.New("memalloc: slab: class count exceeds MaxSlabClasses")
	ErrBufferSmall    = errors.New("memalloc: slab: buffer too small for requested classes")
	ErrInvalidSize    = errors.New("memalloc: slab: size classes are not distinct after alignment")
	ErrAlreadyInit    = errors.New("memalloc: slab: already initialized, call Destroy first")
)
