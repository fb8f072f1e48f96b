// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Arena debug instrumentation: naming, the allocation-record ring,
// stats printing, and chain integrity checking. Split into its own
// file the way mstats.go sits next to malloc.go in the runtime: the
// core bump-allocation logic in arena.go never needs to know these
// exist, it only ever touches the plain counters and the (possibly
// nil-capacity) records slice.
package memalloc

import (
	"fmt"
	"io"
)

// SetName attaches a diagnostic name used by PrintStats and by
// CheckIntegrity's log output.
func (a *Arena) SetName(name string) { a.name = name }

// EnableTracking turns on (or resizes) the debug allocation-record
// ring. It is a no-op unless opts.Debug is set. Existing records are
// discarded; this is meant to be called right after construction, not
// mid-session.
func (a *Arena) EnableTracking(maxRecords int) bool {
	if !a.opts.Debug || maxRecords <= 0 {
		return false
	}
	a.records = make([]arenaAllocRecord, 0, maxRecords)
	return true
}

// PrintStats writes a human-readable stats dump, followed by every
// still-tracked allocation record, to w. It performs no implicit I/O
// of its own; callers choose the destination, the Go analog of an
// injectable PRINTF hook rather than writing to stderr directly.
func (a *Arena) PrintStats(w io.Writer) {
	s := a.Stats()
	fmt.Fprintf(w, "arena %q: capacity=%d used=%d remaining=%d allocs=%d requested=%d peak=%d wasted=%d blocks=%d (owned=%d)\n",
		a.name, s.Capacity, s.Used, s.Remaining, s.AllocCount, s.TotalRequested, s.PeakUsage, s.WastedAlignment, s.BlockCount, s.OwnedBlockCount)
	for _, r := range a.records {
		fmt.Fprintf(w, "  #%d size=%d actual=%d at %s:%d\n", r.sequence, r.size, r.actualSize, r.file, r.line)
	}
}

// CheckIntegrity walks the block chain verifying back-pointer
// consistency and that every block's offset does not exceed its
// capacity, logging (via opts.Log) and returning the first
// inconsistency found, or nil if the chain is sound.
func (a *Arena) CheckIntegrity() error {
	var prev *arenaBlock
	for b := a.firstBlock; b != nil; b = b.next {
		if b.prev != prev {
			err := fmt.Errorf("memalloc: arena integrity: block back-pointer mismatch")
			a.opts.log("arena %q: %v", a.name, err)
			return err
		}
		if b.offset > b.capacity() {
			err := fmt.Errorf("memalloc: arena integrity: block offset %d exceeds capacity %d", b.offset, b.capacity())
			a.opts.log("arena %q: %v", a.name, err)
			return err
		}
		prev = b
	}
	return nil
}
