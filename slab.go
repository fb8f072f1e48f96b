// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Slab: multi-class fixed-size-slot allocation.
//
// A Slab partitions its backing region into a fixed number of size
// classes, each backed by its own Pool, the same way mcentral.go and
// msize.go split the runtime's small-object space into a fixed ladder
// of size classes and route each allocation to the narrowest class
// that fits it. Unlike the runtime's allocator, this one never spills
// an allocation into a different class's region: each class owns a
// disjoint, equally-sized partition of the buffer decided once at
// Init time.
package memalloc

import "sort"

// MaxSlabClasses bounds the number of size classes a single Slab may
// have, matching the fixed-size class-descriptor array the original
// single-header implementation carries inline rather than growing
// dynamically.
const MaxSlabClasses = 32

// SlabClassSpec describes one requested size class before Init
// computes its partition.
type SlabClassSpec struct {
	// Size is the largest allocation this class should serve.
	Size uintptr
}

// SlabClassStats reports one size class's bookkeeping after Init.
type SlabClassStats struct {
	Size      uintptr
	SlotCount int
	FreeCount int
	UsedCount int
}

// SlabOptions configures optional behavior of a Slab.
type SlabOptions struct {
	Debug        bool
	Align        uintptr
	PoisonFreed  byte
	PoisonUninit byte
	ZeroOnAlloc  bool
	ZeroOnFree   bool

	// Log receives a leak report from Destroy in debug mode.
	Log func(format string, args ...any)
}

func (o SlabOptions) toPoolOptions() PoolOptions {
	return PoolOptions{
		Debug:        o.Debug,
		Align:        o.Align,
		PoisonFreed:  o.PoisonFreed,
		PoisonUninit: o.PoisonUninit,
		ZeroOnAlloc:  o.ZeroOnAlloc,
		ZeroOnFree:   o.ZeroOnFree,
		Log:          o.Log,
	}
}

// Slab routes allocations of varying sizes to one of a fixed ladder of
// Pools, one per size class, each given an equal share of the backing
// buffer. The zero value is not usable; construct with NewSlab.
type Slab struct {
	opts    SlabOptions
	classes []*Pool
	sizes   []uintptr // ascending, parallel to classes
	magic   uint32
}

// SlabBufferSizeNeeded returns the minimum buffer size NewSlab needs
// to carve out slotsPerClass slots in each of the given size classes,
// under opts. Classes are deduplicated and sorted internally by
// NewSlab, but this helper assumes that has already happened for an
// exact estimate; passing the raw spec list over-estimates only by
// however much duplicate sizes would have been merged.
func SlabBufferSizeNeeded(specs []SlabClassSpec, slotsPerClass int, opts SlabOptions) uintptr {
	// NewSlab gives every class the same share of the buffer, so every
	// share must be as large as the most demanding class needs.
	var share uintptr
	for _, s := range specs {
		share = max(share, PoolRequiredSize(s.Size, slotsPerClass, opts.toPoolOptions()))
	}
	var total uintptr
	for range specs {
		total = SafeAdd(total, share)
	}
	return total
}

// NewSlab partitions buf into len(specs) equally sized regions (after
// sorting and deduplicating specs by size), and initializes one Pool
// per region sized to hold as many slots of that class's size as the
// region allows.
func NewSlab(buf []byte, specs []SlabClassSpec, opts SlabOptions) (*Slab, error) {
	s := &Slab{}
	if err := s.Init(buf, specs, opts); err != nil {
		return nil, err
	}
	return s, nil
}

// Init (re-)initializes s over buf. Unlike the other three allocators,
// a Slab descriptor that is already initialized rejects a second Init
// without an intervening Destroy, matching the magic-sentinel re-init
// guard the original library specifies for this allocator alone.
func (s *Slab) Init(buf []byte, specs []SlabClassSpec, opts SlabOptions) error {
	if s.magic == slabInitMagic {
		return ErrAlreadyInit
	}
	if buf == nil || len(specs) == 0 {
		return ErrNullParam
	}
	if len(specs) > MaxSlabClasses {
		return ErrTooManyClasses
	}

	align := opts.toPoolOptions().align()
	sizes := make([]uintptr, 0, len(specs))
	seen := make(map[uintptr]bool, len(specs))
	for _, spec := range specs {
		if spec.Size == 0 {
			return ErrZeroSize
		}
		// Effective slot size: rounded up to the slab's alignment, and
		// never narrower than a pointer, matching the original's
		// max(align_up(size, SLAB_ALIGNMENT), pointer_width). Dispatch,
		// UsableSize, and Stats all report this value, not the raw
		// nominal size, so a class fits every size it advertises.
		effective, ok := AlignUp(spec.Size, align)
		if !ok {
			return ErrInvalidSize
		}
		effective = max(effective, wordSize)
		if seen[effective] {
			continue
		}
		seen[effective] = true
		sizes = append(sizes, effective)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })
	if len(sizes) < 2 && len(specs) >= 2 {
		// every spec collapsed to the same size after dedup: not
		// actually a useful multi-class ladder.
		return ErrInvalidSize
	}

	n := len(sizes)
	share := uintptr(len(buf)) / uintptr(n)
	if share == 0 {
		return ErrBufferSmall
	}

	classes := make([]*Pool, 0, n)
	var offset uintptr
	for i, size := range sizes {
		end := offset + share
		if i == n-1 {
			end = uintptr(len(buf))
		}
		pool, err := NewPool(buf[offset:end], size, opts.toPoolOptions())
		if err != nil {
			return err
		}
		classes = append(classes, pool)
		offset = end
	}

	s.opts = opts
	s.classes = classes
	s.sizes = sizes
	s.magic = slabInitMagic
	return nil
}

// classFor returns the index of the narrowest class able to serve
// size, or -1 if size exceeds every class.
func (s *Slab) classFor(size uintptr) int {
	idx := sort.Search(len(s.sizes), func(i int) bool { return s.sizes[i] >= size })
	if idx == len(s.sizes) {
		return -1
	}
	return idx
}

// Alloc serves size bytes from the narrowest size class that fits it.
// It never spills into a larger class's region if that class's own
// pool happens to be exhausted; it fails outright instead, matching
// the fixed-partition contract classes are initialized with.
func (s *Slab) Alloc(size uintptr) []byte {
	full := s.allocFullSlot(size)
	if full == nil {
		return nil
	}
	return full[:size]
}

func (s *Slab) allocFullSlot(size uintptr) []byte {
	if size == 0 {
		return nil
	}
	idx := s.classFor(size)
	if idx < 0 {
		return nil
	}
	return s.classes[idx].Alloc()
}

// AllocZero zeroes the entire backing slot, not just the requested
// size, matching a class's fixed slot layout: the caller may later see
// zeroed bytes past size up to the class's own slot size.
func (s *Slab) AllocZero(size uintptr) []byte {
	full := s.allocFullSlot(size)
	if full == nil {
		return nil
	}
	zeroRange(full)
	return full[:size]
}

// Free returns ptr to whichever class's pool owns it. Free must be
// given a slice previously returned by Alloc/AllocZero from this same
// Slab; ptr's length does not need to equal the class's nominal size
// since Alloc truncates the returned slice down from the pool's full
// slot.
func (s *Slab) Free(ptr []byte) error {
	if ptr == nil {
		return ErrNullParam
	}
	for _, p := range s.classes {
		if p.Owns(ptr) {
			return p.Free(ptr)
		}
	}
	return ErrInvalidPtr
}

// Owns reports whether ptr was handed out by some class's pool in this
// slab.
func (s *Slab) Owns(ptr []byte) bool {
	if ptr == nil {
		return false
	}
	for _, p := range s.classes {
		if p.Owns(ptr) {
			return true
		}
	}
	return false
}

// UsableSize returns the effective slot size of the class that owns
// ptr, which may be larger than the size originally requested from
// Alloc/AllocZero, or 0 if ptr is not owned by this slab.
func (s *Slab) UsableSize(ptr []byte) uintptr {
	if ptr == nil {
		return 0
	}
	for i, p := range s.classes {
		if p.Owns(ptr) {
			return s.sizes[i]
		}
	}
	return 0
}

// Reset returns every class's pool to its fully-free state.
func (s *Slab) Reset() {
	for _, p := range s.classes {
		p.Reset()
	}
}

// Destroy reports, in debug mode, every leaked slot across every class
// (via Pool.Destroy's Log callback) and returns the total leak count,
// then clears the slab's initialization marker. It does not zero or
// free the backing buffer, which the caller owns.
func (s *Slab) Destroy() int {
	leaks := 0
	for _, p := range s.classes {
		leaks += p.Destroy()
	}
	s.magic = 0
	s.classes = nil
	s.sizes = nil
	return leaks
}

// ClassSizes returns the ascending list of size classes this slab was
// initialized with.
func (s *Slab) ClassSizes() []uintptr {
	out := make([]uintptr, len(s.sizes))
	copy(out, s.sizes)
	return out
}

// Stats returns one snapshot per size class, in ascending size order.
func (s *Slab) Stats() []SlabClassStats {
	out := make([]SlabClassStats, len(s.classes))
	for i, p := range s.classes {
		ps := p.Stats()
		out[i] = SlabClassStats{
			Size:      s.sizes[i],
			SlotCount: ps.SlotCount,
			FreeCount: ps.FreeCount,
			UsedCount: ps.UsedCount,
		}
	}
	return out
}
