// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memalloc

// Debug-mode byte conventions. These are part of the in-band wire
// format of the allocators' metadata: a double-free in Pool is
// detected from a slot the bitmap marks free or from reading back
// poolFreeMagic in the slot, and freed/reset regions are filled with a
// poison byte so that a stray read after free produces an obviously
// wrong value rather than silently-stale data.
const (
	// PoisonUninit fills freshly returned, not-yet-written memory in
	// debug mode (Arena.Alloc).
	PoisonUninit byte = 0xCD

	// PoisonFreed fills memory that has just been freed, reset, or
	// rolled back past, in debug mode.
	PoisonFreed byte = 0xFE
)

// poolFreeMagic is the canary written into the word following a free
// slot's free-list link in Pool debug mode. Finding it during an
// ordinary allocation check signals the slot was never actually
// re-allocated since it was freed; finding it is how Pool.Free detects
// a double free.
const poolFreeMagic uint64 = 0xDEADC0DEDEADC0DE

// slabInitMagic marks a Slab descriptor as initialized, so a second
// Init call without an intervening Destroy is rejected instead of
// silently leaking the first init's outstanding allocations.
const slabInitMagic uint32 = 0x534C4142 // "SLAB"

// fill writes b into every byte of buf. It is the package's one
// memset-equivalent, used by every poison/zero path instead of a
// byte-at-a-time loop at each call site.
func fill(buf []byte, b byte) {
	if len(buf) == 0 {
		return
	}
	buf[0] = b
	for i := 1; i < len(buf); i *= 2 {
		copy(buf[i:], buf[:i])
	}
}

func zeroRange(buf []byte) {
	fill(buf, 0)
}

func poisonRange(buf []byte, b byte) {
	fill(buf, b)
}
