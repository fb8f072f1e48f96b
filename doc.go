// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memalloc implements a family of custom memory allocators
// operating over a caller-supplied contiguous byte region, modeled on
// the allocator hierarchy inside the Go runtime itself
// (tcmalloc-style: FixAlloc, MHeap, MSpan, MCentral) but scoped down to
// a single region instead of the whole process address space, and with
// no garbage collector underneath.
//
// The package exposes four independent allocators, each tuned for a
// different allocation lifetime pattern:
//
//	Arena: variable-size bump allocation from one region (or a
//		growing chain of regions); allocate many, free all at
//		once, or roll back to a saved marker. No per-allocation
//		free.
//
//	Stack: variable-size LIFO allocation. Every allocation carries a
//		hidden header recording the watermark that existed before
//		it, so freeing restores that watermark. Only the most
//		recent allocation may be freed.
//
//	Pool: fixed-size slot allocation with O(1) alloc/free via an
//		intrusive singly-linked free list threaded through the
//		free slots themselves.
//
//	Slab: several Pool-like size classes co-resident in one region.
//		An allocation of n bytes is dispatched to the smallest
//		class whose slot size is >= n; classes never borrow from
//		each other.
//
// None of the four ever perform I/O, log unconditionally, or touch
// global state. Debug-mode instrumentation (poison bytes, free-list
// canaries, occupancy bitmaps, leak reports, allocation records) is
// opt-in per instance; the one place it changes memory layout rather
// than just behavior is Pool/Slab's minimum slot size, which grows
// from one word to two to hold the double-free canary. The occupancy
// bitmap is a separate side allocation, not trailer space stolen from
// the region.
//
// None of these types are safe for concurrent use; every operation
// mutates the allocator's descriptor (watermark, free-list head,
// counters), and the caller must serialize access the same way they
// would around any unsynchronized mutable value.
package memalloc
