// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Pool: fixed-size slot allocation over a caller-supplied region.
//
// Free slots are threaded into a singly-linked free list using the
// slot's own first word to hold the "next free slot" offset, the same
// mlink trick mfixalloc.go uses for the runtime's own fixed-size
// object allocator, rather than a side free-list array.
// In debug mode each freed slot also gets a canary word written right
// after the link; Free checks the occupancy bitmap and that canary on
// every call and treats a slot the bitmap marks free, or one whose
// canary is already in place, as a double free.
package memalloc

import "unsafe"

const poolNilOffset = ^uintptr(0)

const wordSize = unsafe.Sizeof(uintptr(0))

// PoolOptions configures optional behavior of a Pool.
type PoolOptions struct {
	// Debug enables the occupancy bitmap, free-magic canary, and
	// poisoning of freed slots.
	Debug bool

	// Align is the alignment guaranteed for every slot. Defaults to
	// DefaultAlign if zero.
	Align uintptr

	PoisonFreed  byte
	PoisonUninit byte

	// ZeroOnAlloc/ZeroOnFree force zeroing at the corresponding
	// operation regardless of Debug; equivalent to always calling
	// AllocZero, and to zeroing before returning a slot to the free
	// list.
	ZeroOnAlloc bool
	ZeroOnFree  bool

	// Log receives a leak report from Destroy in debug mode, one call
	// per outstanding slot. A nil Log is a no-op: Destroy never panics
	// or asserts on the caller's behalf, it only reports.
	Log func(format string, args ...any)
}

func (o PoolOptions) log(format string, args ...any) {
	if o.Log != nil {
		o.Log(format, args...)
	}
}

func (o PoolOptions) align() uintptr {
	if o.Align == 0 {
		return DefaultAlign
	}
	return o.Align
}

func (o PoolOptions) poisonFreed() byte {
	if o.PoisonFreed == 0 {
		return PoisonFreed
	}
	return o.PoisonFreed
}

func (o PoolOptions) poisonUninit() byte {
	if o.PoisonUninit == 0 {
		return PoisonUninit
	}
	return o.PoisonUninit
}

// metadataSize returns how many bytes of a free slot are reserved for
// the free-list link (and, in debug mode, the double-free canary).
func (o PoolOptions) metadataSize() uintptr {
	if o.Debug {
		return wordSize * 2
	}
	return wordSize
}

// PoolStats is a point-in-time snapshot of a Pool's bookkeeping.
type PoolStats struct {
	SlotSize   uintptr
	SlotStride uintptr
	SlotCount  int
	FreeCount  int
	UsedCount  int
}

// Pool hands out fixed-size slots from a caller-supplied region in
// O(1) via an intrusive free list. The zero value is not usable;
// construct with NewPool.
type Pool struct {
	opts PoolOptions

	buf        []byte
	slotSize   uintptr
	slotStride uintptr
	slotCount  int

	freeHead  uintptr // offset of first free slot, or poolNilOffset
	freeCount int

	// bitmap marks, one bit per slot, whether a slot is currently
	// allocated. Present only in debug mode; used for double-free
	// detection and leak reporting, not for the fast path.
	bitmap []byte
}

// PoolRequiredSize returns the number of bytes a buffer must be at
// least for NewPool to carve out count slots of the given size and
// alignment, under the given options. Callers that size their own
// backing array should call this rather than guessing at overhead.
func PoolRequiredSize(slotSize uintptr, count int, opts PoolOptions) uintptr {
	if slotSize == 0 || count <= 0 {
		return 0
	}
	align := opts.align()
	stride, ok := AlignUp(max(slotSize, opts.metadataSize()), align)
	if !ok {
		return 0
	}
	return SafeAdd(stride*uintptr(count), align-1)
}

// NewPool partitions buf into slots of slotSize bytes (rounded up to
// satisfy alignment and, internally, the free-list link) and chains
// them into a free list. Returns an error if buf cannot hold at least
// one slot.
func NewPool(buf []byte, slotSize uintptr, opts PoolOptions) (*Pool, error) {
	if buf == nil {
		return nil, ErrNullBuffer
	}
	if slotSize == 0 {
		return nil, ErrInvalidSlotSize
	}
	align := opts.align()
	if !IsPowerOfTwo(align) {
		return nil, ErrInvalidAlignment
	}

	stride, ok := AlignUp(max(slotSize, opts.metadataSize()), align)
	if !ok {
		return nil, ErrBufferTooSmall
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	firstSlot, ok := AlignUp(base, align)
	if !ok {
		return nil, ErrBufferTooSmall
	}
	headPad := firstSlot - base
	if headPad >= uintptr(len(buf)) {
		return nil, ErrBufferTooSmall
	}
	usable := uintptr(len(buf)) - headPad
	slotCount := int(usable / stride)
	if slotCount == 0 {
		return nil, ErrBufferTooSmall
	}

	p := &Pool{
		opts:       opts,
		buf:        buf[headPad:],
		slotSize:   slotSize,
		slotStride: stride,
		slotCount:  slotCount,
		freeHead:   poolNilOffset,
	}
	if opts.Debug {
		p.bitmap = make([]byte, (slotCount+7)/8)
	}

	// Thread every slot onto the free list, slot 0 first, so early
	// allocations reuse low offsets first (helps the bitmap stay
	// dense and makes debugging output readable).
	for i := slotCount - 1; i >= 0; i-- {
		off := uintptr(i) * stride
		if opts.Debug {
			poisonRange(p.slotBytes(off)[:slotSize], opts.poisonUninit())
			p.writeCanary(off)
		}
		p.writeLink(off, p.freeHead)
		p.freeHead = off
	}
	p.freeCount = slotCount

	return p, nil
}

func (p *Pool) slotBytes(off uintptr) []byte {
	return p.buf[off : off+p.slotStride]
}

func (p *Pool) writeLink(off, next uintptr) {
	*(*uintptr)(unsafe.Pointer(&p.buf[off])) = next
}

func (p *Pool) readLink(off uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(&p.buf[off]))
}

func (p *Pool) writeCanary(off uintptr) {
	*(*uint64)(unsafe.Pointer(&p.buf[off+wordSize])) = poolFreeMagic
}

func (p *Pool) hasCanary(off uintptr) bool {
	return *(*uint64)(unsafe.Pointer(&p.buf[off+wordSize])) == poolFreeMagic
}

func (p *Pool) clearCanary(off uintptr) {
	*(*uint64)(unsafe.Pointer(&p.buf[off+wordSize])) = 0
}

func (p *Pool) bitSet(i int) bool {
	return p.bitmap[i/8]&(1<<uint(i%8)) != 0
}

func (p *Pool) bitMark(i int, used bool) {
	if used {
		p.bitmap[i/8] |= 1 << uint(i%8)
	} else {
		p.bitmap[i/8] &^= 1 << uint(i%8)
	}
}

// Alloc removes one slot from the free list and returns it, or nil if
// the pool is exhausted.
func (p *Pool) Alloc() []byte {
	if p.freeHead == poolNilOffset {
		return nil
	}
	off := p.freeHead
	p.freeHead = p.readLink(off)
	p.freeCount--

	if p.opts.Debug {
		p.clearCanary(off)
		p.bitMark(int(off/p.slotStride), true)
	}

	out := p.slotBytes(off)[:p.slotSize]
	switch {
	case p.opts.ZeroOnAlloc:
		zeroRange(out)
	case p.opts.Debug:
		poisonRange(out, p.opts.poisonUninit())
	}
	return out
}

// AllocZero is Alloc followed by zeroing the returned slot.
func (p *Pool) AllocZero() []byte {
	out := p.Alloc()
	if out != nil {
		zeroRange(out)
	}
	return out
}

// Free returns ptr's slot to the pool. In debug mode it validates that
// ptr was actually carved from this pool and detects a double free
// from the occupancy bitmap and from the canary a previous Free left in
// the slot; outside debug mode a double free silently corrupts the free
// list, exactly as the underlying C library documents.
func (p *Pool) Free(ptr []byte) error {
	if ptr == nil {
		return ErrNullPtr
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.buf)))
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(ptr)))
	if addr < base {
		return ErrInvalidPtr
	}
	off := addr - base
	if off%p.slotStride != 0 || off >= p.span() {
		return ErrInvalidPtr
	}

	if p.opts.Debug {
		idx := int(off / p.slotStride)
		if !p.bitSet(idx) || p.hasCanary(off) {
			return ErrDoubleFree
		}
		p.bitMark(idx, false)
	}
	switch {
	case p.opts.ZeroOnFree:
		zeroRange(p.slotBytes(off)[:p.slotSize])
	case p.opts.Debug:
		poisonRange(p.slotBytes(off)[:p.slotSize], p.opts.poisonFreed())
	}

	if p.opts.Debug {
		p.writeCanary(off)
	}
	p.writeLink(off, p.freeHead)
	p.freeHead = off
	p.freeCount++
	return nil
}

// Reset returns every slot to the free list in one step, as if every
// outstanding allocation had been freed, without re-validating each
// one individually.
func (p *Pool) Reset() {
	p.freeHead = poolNilOffset
	for i := p.slotCount - 1; i >= 0; i-- {
		off := uintptr(i) * p.slotStride
		if p.opts.Debug {
			poisonRange(p.slotBytes(off)[:p.slotSize], p.opts.poisonUninit())
			p.writeCanary(off)
		}
		p.writeLink(off, p.freeHead)
		p.freeHead = off
	}
	p.freeCount = p.slotCount
	if p.opts.Debug {
		for i := range p.bitmap {
			p.bitmap[i] = 0
		}
	}
}

// Destroy reports, in debug mode, every slot the occupancy bitmap
// still marks live (one Log call each) and returns the count. It never
// asserts or panics on the caller's behalf; a caller that wants leaks
// to be fatal should check the returned count itself. It does not
// touch the backing buffer, which the caller owns.
func (p *Pool) Destroy() int {
	if !p.opts.Debug {
		return 0
	}
	leaks := 0
	for i := 0; i < p.slotCount; i++ {
		if p.bitSet(i) {
			leaks++
			p.opts.log("pool: leaked slot at offset %d", uintptr(i)*p.slotStride)
		}
	}
	return leaks
}

// span returns the number of bytes actually partitioned into slots,
// which can be less than len(p.buf) when the usable buffer length
// isn't an exact multiple of the slot stride; the remainder is dead
// space no valid pointer can point into.
func (p *Pool) span() uintptr {
	return uintptr(p.slotCount) * p.slotStride
}

// Owns reports whether ptr's backing memory is the start of one of
// this pool's slots: inside the partitioned region and aligned to the
// slot stride. An address inside the buffer but in the unpartitioned
// tail, or not itself a slot boundary, does not count as owned.
func (p *Pool) Owns(ptr []byte) bool {
	if ptr == nil || len(p.buf) == 0 {
		return false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.buf)))
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(ptr)))
	if addr < base {
		return false
	}
	off := addr - base
	return off%p.slotStride == 0 && off < p.span()
}

// Stats returns a snapshot of the pool's bookkeeping.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		SlotSize:   p.slotSize,
		SlotStride: p.slotStride,
		SlotCount:  p.slotCount,
		FreeCount:  p.freeCount,
		UsedCount:  p.slotCount - p.freeCount,
	}
}

// LeakCount reports the number of slots still outstanding. It is only
// meaningful in debug mode; outside debug mode it falls back to the
// free-list-derived count, which is still accurate for well-behaved
// callers but cannot detect slots corrupted by a double free.
func (p *Pool) LeakCount() int {
	if p.opts.Debug {
		return popcount(p.bitmap)
	}
	return p.slotCount - p.freeCount
}
