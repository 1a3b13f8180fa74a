// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of go-gameid.
//
// go-gameid is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-gameid is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-gameid.  If not, see <https://www.gnu.org/licenses/>.

package om

import (
	"testing"
)

func buildOffsets(n int) []uint64 {
	offsets := make([]uint64, n+1)
	for i := 1; i <= n; i++ {
		offsets[i] = offsets[i-1] + uint64(10+i%7)
	}
	return offsets
}

func TestLookupTableByteRangeMatchesOffsets(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 63, 256, 257, 1563} {
		offsets := buildOffsets(n)
		lut, err := NewLookupTableForWrite(offsets)
		if err != nil {
			t.Fatalf("n=%d: NewLookupTableForWrite failed: %v", n, err)
		}
		for i := 0; i < n; i++ {
			start, end, err := lut.ByteRange(uint64(i))
			if err != nil {
				t.Fatalf("n=%d chunk=%d: ByteRange failed: %v", n, i, err)
			}
			if start != offsets[i] || end != offsets[i+1] {
				t.Errorf("n=%d chunk=%d: ByteRange = (%d,%d), want (%d,%d)", n, i, start, end, offsets[i], offsets[i+1])
			}
		}
	}
}

func TestLookupTableByteRangeOutOfRange(t *testing.T) {
	t.Parallel()

	offsets := buildOffsets(10)
	lut, err := NewLookupTableForWrite(offsets)
	if err != nil {
		t.Fatalf("NewLookupTableForWrite failed: %v", err)
	}
	if _, _, err := lut.ByteRange(10); err == nil {
		t.Fatal("expected error for chunk index == numChunks")
	}
}

func TestLookupTableRejectsNonMonotonicOffsets(t *testing.T) {
	t.Parallel()

	_, err := NewLookupTableForWrite([]uint64{0, 10, 5, 20})
	if err == nil {
		t.Fatal("expected error for non-monotonic offsets")
	}
}

func TestLookupTableDebugEntriesRoundTrip(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 256, 257, 1563} {
		offsets := buildOffsets(n)
		lut, err := NewLookupTableForWrite(offsets)
		if err != nil {
			t.Fatalf("n=%d: NewLookupTableForWrite failed: %v", n, err)
		}
		got, err := lut.DebugEntries()
		if err != nil {
			t.Fatalf("n=%d: DebugEntries failed: %v", n, err)
		}
		if len(got) != len(offsets) {
			t.Fatalf("n=%d: DebugEntries returned %d entries, want %d", n, len(got), len(offsets))
		}
		for i := range offsets {
			if got[i] != offsets[i] {
				t.Errorf("n=%d entry %d = %d, want %d", n, i, got[i], offsets[i])
			}
		}
	}
}

func TestOpenLookupTableForReadFromSerialized(t *testing.T) {
	t.Parallel()

	offsets := buildOffsets(1563)
	writeLut, err := NewLookupTableForWrite(offsets)
	if err != nil {
		t.Fatalf("NewLookupTableForWrite failed: %v", err)
	}
	serialized := writeLut.Serialize()

	source := NewMemorySource(serialized)
	readLut, err := OpenLookupTableForRead(source, 0, writeLut.ChunkLength(), uint64(len(offsets)-1))
	if err != nil {
		t.Fatalf("OpenLookupTableForRead failed: %v", err)
	}

	for _, i := range []int{0, 1, 255, 256, 257, 1000, 1562} {
		wantStart, wantEnd, err := writeLut.ByteRange(uint64(i))
		if err != nil {
			t.Fatalf("writeLut.ByteRange(%d) failed: %v", i, err)
		}
		gotStart, gotEnd, err := readLut.ByteRange(uint64(i))
		if err != nil {
			t.Fatalf("readLut.ByteRange(%d) failed: %v", i, err)
		}
		if gotStart != wantStart || gotEnd != wantEnd {
			t.Errorf("chunk %d: ByteRange = (%d,%d), want (%d,%d)", i, gotStart, gotEnd, wantStart, wantEnd)
		}
	}
}

func TestOpenLookupTableForReadCachesRepeatedLookups(t *testing.T) {
	t.Parallel()

	offsets := buildOffsets(500)
	writeLut, err := NewLookupTableForWrite(offsets)
	if err != nil {
		t.Fatalf("NewLookupTableForWrite failed: %v", err)
	}
	source := NewMemorySource(writeLut.Serialize())
	readLut, err := OpenLookupTableForRead(source, 0, writeLut.ChunkLength(), uint64(len(offsets)-1))
	if err != nil {
		t.Fatalf("OpenLookupTableForRead failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		_, _, err := readLut.ByteRange(42)
		if err != nil {
			t.Fatalf("repeated ByteRange(42) failed on iteration %d: %v", i, err)
		}
	}
}
