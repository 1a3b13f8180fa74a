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
	"encoding/binary"
	"fmt"
)

// coalesceGapThreshold bounds how much dead space between two chunks'
// compressed byte ranges is worth bridging into a single ReadRange call
// versus issuing two separate reads (spec §4.6, "coalesced reads"). Set to a
// few KB: small enough that bridging never meaningfully over-reads, large
// enough to absorb the usual gap between nearby chunks.
const coalesceGapThreshold = 4096

// Reader opens an existing om file (any supported version) for random-access
// reads. It parses the header/trailer and LUT once on Open and reuses one
// chunkPipeline across every Read call.
type Reader struct {
	source   ByteSource
	desc     *ArrayDescriptor
	pipeline *chunkPipeline
	lut      *LookupTable
	chunkOff uint64 // absolute offset of the chunk stream within source
	version  int
}

// Open parses source as an om file and prepares it for reading.
func Open(source ByteSource) (*Reader, error) {
	env, err := parseEnvelope(source)
	if err != nil {
		return nil, err
	}

	pipeline, err := newChunkPipeline(env.desc)
	if err != nil {
		return nil, fmt.Errorf("init chunk pipeline: %w", err)
	}

	var lut *LookupTable
	if env.version == versionCurrent {
		lut, err = OpenLookupTableForRead(source, env.lutOffset, env.lutChunkLen, env.numChunks)
		if err != nil {
			return nil, fmt.Errorf("open lut: %w", err)
		}
	} else {
		lut, err = openLegacyLookupTable(source, env.lutOffset, env.numChunks)
		if err != nil {
			return nil, fmt.Errorf("open legacy lut: %w", err)
		}
	}

	return &Reader{
		source:   source,
		desc:     env.desc,
		pipeline: pipeline,
		lut:      lut,
		chunkOff: env.chunkStreamOff,
		version:  env.version,
	}, nil
}

// Descriptor returns the array's geometry and codec parameters.
func (r *Reader) Descriptor() *ArrayDescriptor { return r.desc }

// Stat summarizes the file for diagnostics and tests without decoding any
// chunk data.
type Stat struct {
	Version     int
	Dims        []uint64
	Chunks      []uint64
	NumChunks   uint64
	Compression CompressionMode
	Entropy     EntropyCodec
}

// Stat returns introspection metadata about the opened file.
func (r *Reader) Stat() Stat {
	return Stat{
		Version:     r.version,
		Dims:        r.desc.Dims,
		Chunks:      r.desc.Chunks,
		NumChunks:   r.desc.Geometry().NumChunks(),
		Compression: r.desc.Compression,
		Entropy:     r.desc.Entropy,
	}
}

// chunkJob is one chunk's worth of read plan: which chunk, and its byte
// range within the chunk stream.
type chunkJob struct {
	idx        uint64
	coord      []uint64
	start, end uint64
}

// Read fills sel.Buf with every array element sel.FileWindow selects,
// reading only the chunks that intersect it. Chunks are visited in ascending
// chunk_index order; adjacent chunks' byte ranges are coalesced into a
// single backing-store read when the gap between them is small, and a
// prefetch hint is issued for the whole coalesced span before it is read.
func (r *Reader) Read(sel Selection) error {
	if err := r.desc.Geometry().ValidateWindow(sel.FileWindow); err != nil {
		return err
	}

	var jobs []chunkJob
	err := r.desc.Geometry().EachChunkInWindow(sel.FileWindow, func(idx uint64, coord []uint64) error {
		start, end, err := r.lut.ByteRange(idx)
		if err != nil {
			return err
		}
		jobs = append(jobs, chunkJob{idx: idx, coord: coord, start: start, end: end})
		return nil
	})
	if err != nil {
		return err
	}

	totalLen, err := r.source.Len()
	if err != nil {
		return fmt.Errorf("stat backing store: %w", err)
	}

	i := 0
	for i < len(jobs) {
		j := i
		spanEnd := jobs[i].end
		for j+1 < len(jobs) && jobs[j+1].start <= spanEnd+coalesceGapThreshold {
			j++
			spanEnd = jobs[j].end
		}

		if r.chunkOff+spanEnd > totalLen {
			return fmt.Errorf("%w: chunk bytes end at %d, past end of file %d", ErrCorruptLut, r.chunkOff+spanEnd, totalLen)
		}
		spanStart := jobs[i].start
		spanLen := spanEnd - spanStart
		r.source.Prefetch(r.chunkOff+spanStart, spanLen)
		raw, err := r.source.ReadRange(r.chunkOff+spanStart, spanLen)
		if err != nil {
			return fmt.Errorf("read chunk stream span: %w", err)
		}

		for k := i; k <= j; k++ {
			job := jobs[k]
			compressed := raw[job.start-spanStart : job.end-spanStart]
			if err := r.pipeline.DecodeChunk(job.coord, compressed, sel); err != nil {
				return err
			}
		}

		i = j + 1
	}

	return nil
}

// openLegacyLookupTable reads a version-1/2 flat, uncompressed array of
// (numChunks+1) little-endian uint64 cumulative offsets directly into a
// write-shaped LookupTable (it is tiny enough, and legacy files rare enough,
// that eager decode is simpler than threading a second on-disk layout
// through LookupTable's lazy path).
func openLegacyLookupTable(source ByteSource, lutOffset, numChunks uint64) (*LookupTable, error) {
	raw, err := source.ReadRange(lutOffset, (numChunks+1)*8)
	if err != nil {
		return nil, fmt.Errorf("read legacy lut: %w", err)
	}
	offsets := make([]uint64, numChunks+1)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint64(raw[i*8:])
	}
	return NewLookupTableForWrite(offsets)
}
