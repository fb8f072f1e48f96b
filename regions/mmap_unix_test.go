// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package regions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnonymousMapsUsableMemory(t *testing.T) {
	r, err := NewAnonymous(4096)
	require.NoError(t, err)
	defer r.Release()

	buf := r.Bytes()
	require.GreaterOrEqual(t, len(buf), 4096)

	buf[0] = 0x42
	assert.Equal(t, byte(0x42), buf[0])
}

func TestReleaseIsIdempotent(t *testing.T) {
	r, err := NewAnonymous(4096)
	require.NoError(t, err)

	require.NoError(t, r.Release())
	require.NoError(t, r.Release())
}

func TestNewAnonymousRejectsNonPositiveSize(t *testing.T) {
	_, err := NewAnonymous(0)
	assert.Error(t, err)
}
