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
)

// BufferedWriter assembles one om file: it writes the leading header
// immediately, accumulates compressed chunks into a fixed-capacity buffer
// that flushes to the sink whenever the next chunk might exceed it, and
// finally serializes the LUT and JSON metadata trailer once every chunk has
// been written. Grounded on the teacher's metadata/codec write path in
// chd.go, generalized from MAME's single-pass hunk writer to this format's
// explicit chunk-index-ordered write contract (spec §4.5).
type BufferedWriter struct {
	desc     *ArrayDescriptor
	pipeline *chunkPipeline
	sink     ByteSink

	buf      []byte // pending compressed bytes not yet flushed
	capacity int    // flush threshold

	offsets     []uint64 // cumulative chunk-stream offsets, len == chunks written + 1
	nextChunk   uint64
	streamBytes uint64 // total bytes written to the chunk stream so far (flushed + pending)
	sealed      bool
}

// defaultWriteBufferCapacityChunks sets the buffer capacity as a multiple of
// one chunk's worst-case compressed size, batching several chunks per
// sink.Write call instead of flushing after every one.
const defaultWriteBufferCapacityChunks = 64

// NewBufferedWriter creates a writer for desc and immediately writes the
// leading header to sink.
func NewBufferedWriter(desc *ArrayDescriptor, sink ByteSink) (*BufferedWriter, error) {
	pipeline, err := newChunkPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("init chunk pipeline: %w", err)
	}
	if err := writeHeaderV3(sink); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	w := &BufferedWriter{
		desc:     desc,
		pipeline: pipeline,
		sink:     sink,
		capacity: pipeline.bound() * defaultWriteBufferCapacityChunks,
		offsets:  make([]uint64, 0, desc.Geometry().NumChunks()+1),
	}
	w.offsets = append(w.offsets, 0)
	return w, nil
}

// WriteChunk encodes and appends the chunk identified by coord, gathering
// its data from sel. Chunks must be written in strictly ascending
// chunk_index order (spec §4.5); writing out of order, or writing after
// Seal, returns an error.
func (w *BufferedWriter) WriteChunk(coord []uint64, sel Selection) error {
	if w.sealed {
		return ErrSealed
	}
	geom := w.desc.Geometry()
	idx := geom.ChunkIndex(coord)
	if idx != w.nextChunk {
		return fmt.Errorf("%w: expected chunk_index %d, got %d", ErrOutOfOrder, w.nextChunk, idx)
	}

	if len(w.buf)+w.pipeline.bound() > w.capacity {
		if err := w.flush(); err != nil {
			return err
		}
	}

	start := len(w.buf)
	w.buf = append(w.buf, make([]byte, w.pipeline.bound())...)
	n, err := w.pipeline.EncodeChunk(coord, sel, w.buf[start:])
	if err != nil {
		w.buf = w.buf[:start]
		return err
	}
	w.buf = w.buf[:start+n]

	w.streamBytes += uint64(n)
	w.offsets = append(w.offsets, w.streamBytes)
	w.nextChunk++
	return nil
}

// flush writes any buffered compressed chunk bytes to the sink.
func (w *BufferedWriter) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := w.sink.Write(w.buf); err != nil {
		return fmt.Errorf("flush chunk buffer: %w", err)
	}
	w.buf = w.buf[:0]
	return nil
}

// Seal flushes remaining chunk data, then writes the LUT and JSON metadata
// trailer. Every chunk in the array's geometry must have been written first.
func (w *BufferedWriter) Seal() error {
	if w.sealed {
		return ErrSealed
	}
	geom := w.desc.Geometry()
	if w.nextChunk != geom.NumChunks() {
		return fmt.Errorf("%w: wrote %d of %d chunks", ErrIncompleteWrite, w.nextChunk, geom.NumChunks())
	}
	if err := w.flush(); err != nil {
		return err
	}

	lut, err := NewLookupTableForWrite(w.offsets)
	if err != nil {
		return fmt.Errorf("build lut: %w", err)
	}
	lutOffset := 3 + w.streamBytes
	if err := w.sink.Write(lut.Serialize()); err != nil {
		return fmt.Errorf("write lut: %w", err)
	}

	meta := fileMetadata{
		Dims:            w.desc.Dims,
		Chunks:          w.desc.Chunks,
		ScaleFactor:     w.desc.ScaleFactor,
		Compression:     uint8(w.desc.Compression),
		Entropy:         uint8(w.desc.Entropy),
		NChunks:         geom.NumChunks(),
		LutOffset:       lutOffset,
		LutChunkLength:  uint64(lut.ChunkLength()),
		LutSubChunkSize: lutSubChunkEntries,
	}
	if err := writeTrailerV3(meta, w.sink); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}

	w.sealed = true
	return nil
}
