// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackAllocFreeLIFO(t *testing.T) {
	buf := make([]byte, 256)
	s := NewStack(buf, StackOptions{})

	a := s.Alloc(16, 0)
	require.NotNil(t, a)
	b := s.Alloc(32, 0)
	require.NotNil(t, b)

	used := s.Stats().Used
	assert.Greater(t, used, uintptr(48))

	s.Free(b)
	s.Free(a)
	assert.Equal(t, uintptr(0), s.Stats().Used)
}

func TestStackSaveRestore(t *testing.T) {
	buf := make([]byte, 256)
	s := NewStack(buf, StackOptions{})

	s.Alloc(16, 0)
	marker := s.Save()
	s.Alloc(16, 0)
	s.Alloc(16, 0)

	s.Restore(marker)
	assert.Equal(t, marker, s.Save())
}

func TestStackReset(t *testing.T) {
	buf := make([]byte, 128)
	s := NewStack(buf, StackOptions{})

	s.Alloc(40, 0)
	s.Reset()
	assert.Equal(t, uintptr(0), s.Stats().Used)
	assert.Equal(t, uintptr(0), s.Stats().AllocationCount)
}

func TestStackCallocZeroesAndRejectsOverflow(t *testing.T) {
	buf := make([]byte, 128)
	s := NewStack(buf, StackOptions{})

	out := s.Calloc(4, 8)
	require.NotNil(t, out)
	for _, b := range out {
		assert.Zero(t, b)
	}

	assert.Nil(t, s.Calloc(^uintptr(0), 2))
}

func TestStackExhaustion(t *testing.T) {
	buf := make([]byte, 24)
	s := NewStack(buf, StackOptions{})

	require.NotNil(t, s.Alloc(8, 0))
	assert.Nil(t, s.Alloc(64, 0))
}

func TestStackValidateLIFOPanicsOnOutOfOrderFree(t *testing.T) {
	buf := make([]byte, 256)
	s := NewStack(buf, StackOptions{Debug: true, ValidateLIFO: true})

	a := s.Alloc(16, 0)
	b := s.Alloc(16, 0)
	_ = b

	assert.Panics(t, func() {
		s.Free(a)
	})
}

func TestStackZeroOnAllocAndFree(t *testing.T) {
	buf := make([]byte, 128)
	for i := range buf {
		buf[i] = 0xAA
	}
	s := NewStack(buf, StackOptions{ZeroOnAlloc: true, ZeroOnFree: true})

	p := s.Alloc(16, 0)
	require.NotNil(t, p)
	for _, b := range p {
		assert.Zero(t, b)
	}

	for i := range p {
		p[i] = 0x11
	}
	s.Free(p)
	for _, b := range p {
		assert.Zero(t, b)
	}
}

func TestStackOwns(t *testing.T) {
	buf := make([]byte, 64)
	s := NewStack(buf, StackOptions{})
	other := make([]byte, 64)

	p := s.Alloc(8, 0)
	require.NotNil(t, p)
	assert.True(t, s.Owns(p))
	assert.False(t, s.Owns(other))
}
