// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package regions

import "fmt"

// Region is an OS-backed byte slice. On non-unix platforms there is no
// mmap-backed implementation; NewAnonymous always fails so that
// callers elsewhere in this module can still build, they just can't
// obtain a mapped Region on this GOOS.
type Region struct {
	buf []byte
}

func NewAnonymous(size int) (*Region, error) {
	return nil, fmt.Errorf("memalloc/regions: anonymous mmap regions are not supported on this platform")
}

func (r *Region) Bytes() []byte { return r.buf }

func (r *Region) Release() error { return nil }
