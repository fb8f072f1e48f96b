// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slabSpecs(sizes ...uintptr) []SlabClassSpec {
	specs := make([]SlabClassSpec, len(sizes))
	for i, s := range sizes {
		specs[i] = SlabClassSpec{Size: s}
	}
	return specs
}

func TestSlabRoutesToNarrowestFittingClass(t *testing.T) {
	buf := make([]byte, 4096)
	s, err := NewSlab(buf, slabSpecs(16, 64, 256), SlabOptions{})
	require.NoError(t, err)

	small := s.Alloc(10)
	require.NotNil(t, small)
	assert.LessOrEqual(t, len(small), 16)

	mid := s.Alloc(50)
	require.NotNil(t, mid)
	assert.LessOrEqual(t, len(mid), 64)

	assert.Nil(t, s.Alloc(1000))
}

func TestSlabFreeRoutesBackToOwningClass(t *testing.T) {
	buf := make([]byte, 4096)
	s, err := NewSlab(buf, slabSpecs(16, 64, 256), SlabOptions{Debug: true})
	require.NoError(t, err)

	p := s.Alloc(40)
	require.NotNil(t, p)
	require.NoError(t, s.Free(p))

	statsBefore := s.Stats()
	again := s.Alloc(40)
	require.NotNil(t, again)
	statsAfter := s.Stats()

	// the re-allocation must come from the same class (index 1, size
	// 64): its free count drops by exactly one from right after the free.
	assert.Equal(t, statsBefore[1].FreeCount-1, statsAfter[1].FreeCount)
}

func TestSlabNeverSpillsAcrossClasses(t *testing.T) {
	// a small buffer (128 bytes per class: 8 slots of 16, 4 of 32)
	// forces exhaustion quickly.
	buf := make([]byte, 256)
	s, err := NewSlab(buf, slabSpecs(16, 32), SlabOptions{})
	require.NoError(t, err)

	stats := s.Stats()
	require.Len(t, stats, 2)

	count16 := stats[0].SlotCount
	for i := 0; i < count16; i++ {
		require.NotNil(t, s.Alloc(16))
	}
	// class 0 (size 16) exhausted; a further size-16 request must not
	// spill into class 1's region even though it has free slots.
	assert.Nil(t, s.Alloc(16))
	assert.NotNil(t, s.Alloc(32))
}

func TestSlabDeduplicatesEqualSizeClasses(t *testing.T) {
	buf := make([]byte, 1024)
	s, err := NewSlab(buf, slabSpecs(32, 32, 64), SlabOptions{})
	require.NoError(t, err)
	assert.Equal(t, []uintptr{32, 64}, s.ClassSizes())
}

func TestSlabRejectsInvalidConstruction(t *testing.T) {
	_, err := NewSlab(nil, slabSpecs(16), SlabOptions{})
	assert.ErrorIs(t, err, ErrNullParam)

	_, err = NewSlab(make([]byte, 64), nil, SlabOptions{})
	assert.ErrorIs(t, err, ErrNullParam)

	_, err = NewSlab(make([]byte, 64), slabSpecs(0), SlabOptions{})
	assert.ErrorIs(t, err, ErrZeroSize)
}

func TestSlabReset(t *testing.T) {
	buf := make([]byte, 1024)
	s, err := NewSlab(buf, slabSpecs(16, 64), SlabOptions{})
	require.NoError(t, err)

	require.NotNil(t, s.Alloc(16))
	s.Reset()
	for _, cs := range s.Stats() {
		assert.Equal(t, cs.SlotCount, cs.FreeCount)
	}
}

func TestSlabRejectsZeroSizeAlloc(t *testing.T) {
	buf := make([]byte, 1024)
	s, err := NewSlab(buf, slabSpecs(16, 64), SlabOptions{})
	require.NoError(t, err)
	assert.Nil(t, s.Alloc(0))
}

func TestSlabAllocZeroClearsEntireSlot(t *testing.T) {
	buf := make([]byte, 1024)
	s, err := NewSlab(buf, slabSpecs(16, 64), SlabOptions{})
	require.NoError(t, err)

	dirty := s.Alloc(16)
	require.NotNil(t, dirty)
	for i := range dirty {
		dirty[i] = 0xAA
	}
	require.NoError(t, s.Free(dirty))

	out := s.AllocZero(10)
	require.NotNil(t, out)
	require.Equal(t, uintptr(16), s.UsableSize(out))
	for _, b := range out[:s.UsableSize(out)] {
		assert.Zero(t, b)
	}
}

func TestSlabRejectsReinitWithoutDestroy(t *testing.T) {
	buf := make([]byte, 1024)
	s, err := NewSlab(buf, slabSpecs(16, 64), SlabOptions{})
	require.NoError(t, err)

	err = s.Init(buf, slabSpecs(16, 64), SlabOptions{})
	assert.ErrorIs(t, err, ErrAlreadyInit)

	s.Destroy()
	assert.NoError(t, s.Init(buf, slabSpecs(16, 64), SlabOptions{}))
}

func TestSlabOwnsAndUsableSize(t *testing.T) {
	buf := make([]byte, 4096)
	s, err := NewSlab(buf, slabSpecs(16, 64, 256), SlabOptions{})
	require.NoError(t, err)

	p := s.Alloc(50)
	require.NotNil(t, p)
	assert.True(t, s.Owns(p))
	assert.Equal(t, uintptr(64), s.UsableSize(p))

	foreign := make([]byte, 64)
	assert.False(t, s.Owns(foreign))
	assert.Equal(t, uintptr(0), s.UsableSize(foreign))
}

func TestSlabClassSizesAreRoundedToAlignment(t *testing.T) {
	buf := make([]byte, 4096)
	// 50 is not a multiple of the default 16-byte alignment; the stored
	// class size must be the rounded-up effective slot size (64), not
	// the raw nominal spec (50), so dispatch and usable_size agree.
	s, err := NewSlab(buf, slabSpecs(50), SlabOptions{})
	require.NoError(t, err)
	assert.Equal(t, []uintptr{64}, s.ClassSizes())

	p := s.Alloc(50)
	require.NotNil(t, p)
	assert.Equal(t, uintptr(64), s.UsableSize(p))
}

func TestSlabDestroyReportsLeaksAcrossClasses(t *testing.T) {
	var reports int
	buf := make([]byte, 1024)
	s, err := NewSlab(buf, slabSpecs(16, 64), SlabOptions{
		Debug: true,
		Log:   func(format string, args ...any) { reports++ },
	})
	require.NoError(t, err)

	require.NotNil(t, s.Alloc(10))
	require.NotNil(t, s.Alloc(50))

	leaks := s.Destroy()
	assert.Equal(t, 2, leaks)
	assert.Equal(t, 2, reports)
}
