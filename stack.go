// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Stack: variable-size LIFO allocation.
//
// See doc.go for an overview of the allocator family.
//
// Every allocation is preceded by a hidden header word recording the
// watermark that existed immediately before it. Freeing reads that
// header and restores the watermark to it, which is only correct if
// the freed allocation was the most recent one: the same intrusive
// metadata-inside-the-managed-memory trick as mfixalloc.go's mlink,
// which threads a freed object's "next" pointer through the object's
// own first word instead of a side table.
package memalloc

import "unsafe"

const stackHeaderSize = unsafe.Sizeof(uintptr(0))

// StackOptions configures optional behavior of a Stack.
type StackOptions struct {
	// Debug enables poison bytes on Free/Reset/Restore/Destroy and
	// peak-usage tracking.
	Debug bool

	// ValidateLIFO promotes a LIFO-discipline violation (freeing
	// something other than the most recent allocation) from undefined
	// behavior to a panic. Requires Debug.
	ValidateLIFO bool

	// DefaultAlign is used by Alloc when align == 0. Defaults to
	// DefaultAlign if zero; must be at least stackHeaderSize since the
	// header sits immediately before the aligned user pointer.
	DefaultAlign uintptr

	PoisonFreed byte

	// ZeroOnAlloc/ZeroOnFree force zeroing at the corresponding
	// operation regardless of Debug.
	ZeroOnAlloc bool
	ZeroOnFree  bool
}

func (o StackOptions) align() uintptr {
	if o.DefaultAlign == 0 {
		return DefaultAlign
	}
	return o.DefaultAlign
}

func (o StackOptions) poisonFreed() byte {
	if o.PoisonFreed == 0 {
		return PoisonFreed
	}
	return o.PoisonFreed
}

// StackMarker is a snapshot of a Stack's watermark, captured by Save
// and consumed by Restore. Restoring is equivalent to freeing, in LIFO
// order, every allocation made after the marker was captured.
type StackMarker struct {
	offset     uintptr
	allocCount uintptr
}

// StackStats is a point-in-time snapshot of a Stack's bookkeeping.
type StackStats struct {
	Capacity        uintptr
	Used            uintptr
	Remaining       uintptr
	AllocationCount uintptr
	PeakUsage       uintptr
}

// Stack is a LIFO allocator over a caller-supplied byte region. The
// zero value is not usable; construct with NewStack.
type Stack struct {
	opts StackOptions

	buf    []byte
	offset uintptr

	allocCount uintptr
	peakUsage  uintptr

	// liveStack mirrors, in debug+ValidateLIFO mode, the sequence of
	// currently-live user pointers, most recent last, so Free can
	// assert the pointer being freed really is the top of the stack.
	liveStack []uintptr
}

// NewStack initializes a stack over buf. The caller retains ownership
// of buf; Stack never frees it.
func NewStack(buf []byte, opts StackOptions) *Stack {
	s := &Stack{opts: opts, buf: buf}
	if opts.Debug && opts.ValidateLIFO {
		s.liveStack = make([]uintptr, 0, 64)
	}
	return s
}

// Destroy releases debug bookkeeping and, in debug mode, poisons the
// used part of the region. It does not free the backing buffer.
func (s *Stack) Destroy() {
	if s.opts.Debug && s.offset > 0 {
		poisonRange(s.buf[:s.offset], s.opts.poisonFreed())
	}
	s.liveStack = nil
	s.allocCount = 0
	s.offset = 0
}

func headerPtr(buf []byte, userOffset uintptr) *uintptr {
	return (*uintptr)(unsafe.Pointer(&buf[userOffset-stackHeaderSize]))
}

// Alloc reserves size bytes aligned to align (0 means
// opts.DefaultAlign), reserving one header word immediately before the
// returned region to record the watermark that existed before this
// call. Returns nil if the request does not fit.
func (s *Stack) Alloc(size, align uintptr) []byte {
	if align == 0 {
		align = s.opts.align()
	}
	if !IsPowerOfTwo(align) || align < stackHeaderSize {
		return nil
	}
	if size == 0 {
		return nil
	}

	prevOffset := s.offset
	headerEnd := SafeAdd(prevOffset, stackHeaderSize)
	capacity := uintptr(len(s.buf))

	userOffset, _, ok := CalcAlignedOffset(headerEnd, align, size, capacity)
	if !ok {
		return nil
	}

	*headerPtr(s.buf, userOffset) = prevOffset
	s.offset = userOffset + size
	s.allocCount++
	if s.opts.Debug {
		if s.offset > s.peakUsage {
			s.peakUsage = s.offset
		}
		if s.liveStack != nil {
			s.liveStack = append(s.liveStack, userOffset)
		}
	}

	out := s.buf[userOffset:s.offset]
	if s.opts.ZeroOnAlloc {
		zeroRange(out)
	}
	return out
}

// AllocAligned is an alias for Alloc kept for parity with the
// original library's stack_alloc_aligned, which is identical to
// stack_alloc except that it requires the caller to name an alignment
// explicitly rather than defaulting it.
func (s *Stack) AllocAligned(size, align uintptr) []byte {
	return s.Alloc(size, align)
}

// Calloc allocates num*size zeroed bytes, rejecting the request if the
// multiplication would overflow uintptr.
func (s *Stack) Calloc(num, size uintptr) []byte {
	if num != 0 && size > (^uintptr(0))/num {
		return nil
	}
	out := s.Alloc(num*size, 0)
	if out != nil {
		zeroRange(out)
	}
	return out
}

// Free releases ptr, which must be the most recent live allocation
// from s. Violating LIFO order when ValidateLIFO is not enabled is
// undefined behavior; with Debug+ValidateLIFO it panics instead.
func (s *Stack) Free(ptr []byte) {
	if len(ptr) == 0 {
		return
	}
	userOffset := uintptr(unsafe.Pointer(unsafe.SliceData(ptr))) - uintptr(unsafe.Pointer(unsafe.SliceData(s.buf)))

	if s.opts.Debug && s.opts.ValidateLIFO {
		if len(s.liveStack) == 0 || s.liveStack[len(s.liveStack)-1] != userOffset {
			panic("memalloc: stack: free() violates LIFO discipline")
		}
		s.liveStack = s.liveStack[:len(s.liveStack)-1]
	}

	prevOffset := *headerPtr(s.buf, userOffset)
	switch {
	case s.opts.ZeroOnFree:
		zeroRange(s.buf[userOffset:s.offset])
	case s.opts.Debug:
		poisonRange(s.buf[userOffset:s.offset], s.opts.poisonFreed())
	}
	s.offset = prevOffset
	s.allocCount--
}

// Save captures the stack's current watermark.
func (s *Stack) Save() StackMarker {
	return StackMarker{offset: s.offset, allocCount: s.allocCount}
}

// Restore rewinds the stack to marker, freeing every allocation made
// after it in one step (equivalent to repeated LIFO Free calls).
func (s *Stack) Restore(marker StackMarker) {
	if s.opts.Debug {
		if marker.offset < s.offset {
			poisonRange(s.buf[marker.offset:s.offset], s.opts.poisonFreed())
		}
		if s.liveStack != nil {
			n := int(marker.allocCount)
			if n > len(s.liveStack) {
				n = len(s.liveStack)
			}
			s.liveStack = s.liveStack[:n]
		}
	}
	s.offset = marker.offset
	s.allocCount = marker.allocCount
}

// Reset returns the stack to its initial, empty state.
func (s *Stack) Reset() {
	if s.opts.Debug && s.offset > 0 {
		poisonRange(s.buf[:s.offset], s.opts.poisonFreed())
	}
	s.offset = 0
	s.allocCount = 0
	if s.liveStack != nil {
		s.liveStack = s.liveStack[:0]
	}
}

// Remaining returns bytes free in the stack.
func (s *Stack) Remaining() uintptr { return uintptr(len(s.buf)) - s.offset }

// Owns reports whether ptr's backing memory lies within the stack's
// buffer.
func (s *Stack) Owns(ptr []byte) bool {
	if len(ptr) == 0 || len(s.buf) == 0 {
		return false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(s.buf)))
	p := uintptr(unsafe.Pointer(unsafe.SliceData(ptr)))
	return p >= base && p < base+uintptr(len(s.buf))
}

// Stats returns a snapshot of the stack's bookkeeping.
func (s *Stack) Stats() StackStats {
	return StackStats{
		Capacity:        uintptr(len(s.buf)),
		Used:            s.offset,
		Remaining:       s.Remaining(),
		AllocationCount: s.allocCount,
		PeakUsage:       s.peakUsage,
	}
}
