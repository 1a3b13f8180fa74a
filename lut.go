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
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// lutSubChunkEntries is E, the number of cumulative offsets grouped into one
// LUT sub-chunk (spec §4.3). 256 entries per sub-chunk balances random-access
// fan-out (how many sub-chunks a large array needs) against per-access
// decode cost (how many entries get unpacked to answer one lookup).
const lutSubChunkEntries = 256

// lutCacheSize bounds the reader's decoded-sub-chunk cache. Grounded on the
// teacher's hunk.go metadata cache, but replacing its unbounded "clear
// everything" map with an LRU of fixed capacity — a long-lived reader over a
// huge LUT should not retain every sub-chunk it has ever touched.
const lutCacheSize = 64

// LookupTable maps a chunk index to the compressed chunk's byte range within
// the chunk stream. On disk it is itself stored compressed, partitioned into
// fixed-size sub-chunks of lutSubChunkEntries cumulative offsets each,
// bitpacked as successive deltas (spec §4.3): offsets are non-decreasing, so
// deltas are small and pack tightly regardless of overall file size.
type LookupTable struct {
	numChunks uint64

	// subChunks holds the compressed bytes for each sub-chunk, in order.
	// Present when building a LookupTable for writing, or when the whole
	// table was decoded eagerly; empty otherwise (reader-driven lazy case
	// uses source/cache instead).
	subChunks [][]byte

	// chunkLength is the padded stride: every sub-chunk's on-disk slot is
	// exactly this many bytes, so sub-chunk i lives at offset + i*chunkLength
	// regardless of its actual compressed size.
	chunkLength int

	// Fields below support lazy, cached decode from a ByteSource (the reader
	// path). Nil when the table was built purely for writing.
	source ByteSource
	offset uint64
	cache  *lru.Cache[int, []uint64]
}

// NewLookupTableForWrite builds a LookupTable from the complete set of
// cumulative chunk-stream offsets (length numChunks+1: entry i is where
// chunk i starts, entry numChunks is the total compressed chunk-stream
// length) ready for serialization.
func NewLookupTableForWrite(offsets []uint64) (*LookupTable, error) {
	if len(offsets) < 1 {
		return nil, fmt.Errorf("%w: lookup table needs at least one offset", ErrCorruptLut)
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return nil, fmt.Errorf("%w: offsets must be non-decreasing (entry %d: %d < %d)", ErrCorruptLut, i, offsets[i], offsets[i-1])
		}
	}

	numChunks := uint64(len(offsets) - 1)
	zstdCoder := &zstdEntropyCoder{}

	// Sub-chunk i covers chunk indices [i*E, i*E+E) and therefore needs E+1
	// offsets (the boundary after the last chunk in the sub-chunk is shared
	// with the first entry of sub-chunk i+1), so consecutive sub-chunks
	// overlap by exactly one entry. This keeps ByteRange's common case a
	// single sub-chunk fetch instead of two.
	var subChunks [][]byte
	maxLen := 0
	for start := 0; start < len(offsets)-1; start += lutSubChunkEntries {
		end := start + lutSubChunkEntries + 1
		if end > len(offsets) {
			end = len(offsets)
		}
		packed := packUint64Delta(offsets[start:end])
		compressed, err := zstdCoder.Compress(packed)
		if err != nil {
			return nil, fmt.Errorf("compress lut sub-chunk: %w", err)
		}
		if len(compressed) > MaxLutSubChunkBytes {
			return nil, fmt.Errorf("%w: sub-chunk compressed size %d exceeds limit %d", ErrCorruptLut, len(compressed), MaxLutSubChunkBytes)
		}
		subChunks = append(subChunks, compressed)
		if len(compressed) > maxLen {
			maxLen = len(compressed)
		}
	}

	return &LookupTable{
		numChunks:   numChunks,
		subChunks:   subChunks,
		chunkLength: maxLen,
	}, nil
}

// Serialize returns the padded, on-disk byte representation: each sub-chunk
// zero-padded up to ChunkLength() so every slot has a uniform stride.
func (t *LookupTable) Serialize() []byte {
	out := make([]byte, len(t.subChunks)*t.chunkLength)
	for i, sc := range t.subChunks {
		copy(out[i*t.chunkLength:], sc)
	}
	return out
}

// ChunkLength returns the padded per-sub-chunk stride (lut_chunk_length in
// the on-disk metadata).
func (t *LookupTable) ChunkLength() int { return t.chunkLength }

// NumSubChunks returns how many sub-chunk slots the serialized table has.
func (t *LookupTable) NumSubChunks() int { return len(t.subChunks) }

// OpenLookupTableForRead builds a LookupTable that lazily decodes sub-chunks
// on demand from source, starting at byte offset within it, given the
// on-disk chunkLength stride and total numChunks recovered from the file's
// metadata trailer.
func OpenLookupTableForRead(source ByteSource, offset uint64, chunkLength int, numChunks uint64) (*LookupTable, error) {
	if chunkLength <= 0 || chunkLength > MaxLutSubChunkBytes {
		return nil, fmt.Errorf("%w: lut_chunk_length %d out of range", ErrCorruptLut, chunkLength)
	}
	cache, err := lru.New[int, []uint64](lutCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init lut cache: %w", err)
	}
	return &LookupTable{
		numChunks:   numChunks,
		chunkLength: chunkLength,
		source:      source,
		offset:      offset,
		cache:       cache,
	}, nil
}

// subChunkEntries returns the decoded cumulative offsets for sub-chunk idx,
// serving from cache when possible.
func (t *LookupTable) subChunkEntries(idx int) ([]uint64, error) {
	if t.cache != nil {
		if cached, ok := t.cache.Get(idx); ok {
			return cached, nil
		}
	}

	start := idx * lutSubChunkEntries
	count := lutSubChunkEntries + 1 // sub-chunks overlap by one boundary entry
	total := int(t.numChunks) + 1
	if start >= total {
		return nil, fmt.Errorf("%w: sub-chunk %d out of range", ErrCorruptLut, idx)
	}
	if start+count > total {
		count = total - start
	}

	var entries []uint64
	if t.subChunks != nil {
		// In-memory table built for writing: decode directly from subChunks.
		if idx >= len(t.subChunks) {
			return nil, fmt.Errorf("%w: sub-chunk %d out of range", ErrCorruptLut, idx)
		}
		zstdCoder := &zstdEntropyCoder{}
		packed := make([]byte, 1+count*9) // generous: header + up to 9 bytes/entry at width<=64
		n, err := zstdCoder.Decompress(packed, t.subChunks[idx])
		if err != nil {
			return nil, fmt.Errorf("decompress lut sub-chunk %d: %w", idx, err)
		}
		entries, err = unpackUint64Delta(packed[:n], count)
		if err != nil {
			return nil, fmt.Errorf("unpack lut sub-chunk %d: %w", idx, err)
		}
	} else {
		raw, err := t.source.ReadRange(t.offset+uint64(idx)*uint64(t.chunkLength), uint64(t.chunkLength))
		if err != nil {
			return nil, fmt.Errorf("read lut sub-chunk %d: %w", idx, err)
		}
		zstdCoder := &zstdEntropyCoder{}
		packed := make([]byte, 1+count*9)
		n, err := zstdCoder.Decompress(packed, raw)
		if err != nil {
			return nil, fmt.Errorf("decompress lut sub-chunk %d: %w", idx, err)
		}
		entries, err = unpackUint64Delta(packed[:n], count)
		if err != nil {
			return nil, fmt.Errorf("unpack lut sub-chunk %d: %w", idx, err)
		}
	}

	if t.cache != nil {
		t.cache.Add(idx, entries)
	}
	return entries, nil
}

// ByteRange returns the [start, end) byte range within the compressed chunk
// stream for chunkIndex.
func (t *LookupTable) ByteRange(chunkIndex uint64) (start, end uint64, err error) {
	if chunkIndex >= t.numChunks {
		return 0, 0, fmt.Errorf("%w: chunk index %d >= %d chunks", ErrCorruptLut, chunkIndex, t.numChunks)
	}

	subIdx := int(chunkIndex) / lutSubChunkEntries
	within := int(chunkIndex) % lutSubChunkEntries

	entries, err := t.subChunkEntries(subIdx)
	if err != nil {
		return 0, 0, err
	}
	if within+1 >= len(entries) {
		return 0, 0, fmt.Errorf("%w: chunk %d missing end boundary in sub-chunk %d", ErrCorruptLut, chunkIndex, subIdx)
	}
	if entries[within] > entries[within+1] {
		return 0, 0, fmt.Errorf("%w: entry %d (%d) > entry %d (%d)", ErrCorruptLut, within, entries[within], within+1, entries[within+1])
	}
	return entries[within], entries[within+1], nil
}

// DebugEntries decodes and returns every cumulative offset in the table
// (length NumChunks()+1). Intended for tests and diagnostics, not the hot
// read path: it visits every sub-chunk, serving each from the cache when it
// is already there.
func (t *LookupTable) DebugEntries() ([]uint64, error) {
	out := make([]uint64, 0, t.numChunks+1)
	numSub := (int(t.numChunks) + lutSubChunkEntries - 1) / lutSubChunkEntries
	for i := 0; i < numSub; i++ {
		entries, err := t.subChunkEntries(i)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			entries = entries[1:] // drop the boundary entry shared with the previous sub-chunk
		}
		out = append(out, entries...)
	}
	return out, nil
}

// NumChunks returns the number of chunks this table indexes.
func (t *LookupTable) NumChunks() uint64 { return t.numChunks }
