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

// chunkPipeline owns the scratch buffers and entropy coder for one
// writer/reader instance and implements the per-chunk encode/decode
// pipeline (spec §4.2): gather+quantize, 2D delta/XOR-delta, bitpack,
// entropy code — and the exact inverse. Buffers are sized once to the
// array's largest possible chunk and reused across every chunk, matching
// the format's "codec-owned scratch buffer" design (spec §5, §9).
type chunkPipeline struct {
	desc    *ArrayDescriptor
	entropy entropyCoder

	scratchInt16 []int16  // quantized int16 modes
	scratchU32   []uint32 // float-bits for FloatXorDelta
	packBuf      []byte   // pre-entropy bitpacked bytes (encode scratch)
	unpackBuf    []byte   // post-decompress, pre-unpack bytes (decode scratch)
}

func newChunkPipeline(desc *ArrayDescriptor) (*chunkPipeline, error) {
	entropy, err := newEntropyCoder(desc.Entropy)
	if err != nil {
		return nil, err
	}

	maxCount := int(desc.Geometry().MaxChunkElementCount())

	// Upper bound on the bitpacked (pre-entropy) byte size: one header byte
	// plus ceil(count*bits/8) at the widest possible bit width for the mode.
	var maxPackedBytes int
	if desc.Compression == FloatXorDelta {
		maxPackedBytes = maxCount * 4 // raw float32 bytes, no bitpack stage
	} else {
		maxPackedBytes = 1 + (maxCount*16+7)/8
	}

	return &chunkPipeline{
		desc:         desc,
		entropy:      entropy,
		scratchInt16: make([]int16, maxCount),
		scratchU32:   make([]uint32, maxCount),
		packBuf:      make([]byte, maxPackedBytes),
		unpackBuf:    make([]byte, maxPackedBytes),
	}, nil
}

// bound returns the worst-case compressed size of one chunk, used by the
// buffered writer as its flush threshold (spec §4.2, "Output buffer sizing").
func (p *chunkPipeline) bound() int {
	maxCount := int(p.desc.Geometry().MaxChunkElementCount())
	var rawBytes int
	if p.desc.Compression == FloatXorDelta {
		rawBytes = maxCount * 4
	} else {
		rawBytes = 1 + (maxCount*16+7)/8
	}
	return p.entropy.Bound(rawBytes)
}

// EncodeChunk gathers the chunk identified by coord from sel, runs the
// quantize/delta/entropy pipeline, and writes the compressed bytes into out
// (which must have at least p.bound() capacity). Returns the number of
// bytes written.
func (p *chunkPipeline) EncodeChunk(coord []uint64, sel Selection, out []byte) (int, error) {
	geom := p.desc.Geometry()
	extent := geom.ChunkExtent(coord)
	chunkRange := geom.ChunkGlobalRange(coord)
	rank := len(extent)
	cols := int(extent[rank-1])
	count := int(geom.ChunkElementCount(coord))
	if cols == 0 || count == 0 {
		return 0, nil
	}
	rows := count / cols

	var raw []byte
	switch p.desc.Compression {
	case FloatXorDelta:
		scratch := p.scratchU32[:count]
		if !walkOverlap(sel, chunkRange, func(bufBase, chunkBase, length uint64) {
			for k := uint64(0); k < length; k++ {
				scratch[chunkBase+k] = float32ToBits(sel.Buf[bufBase+k])
			}
		}) {
			return 0, fmt.Errorf("%w: chunk %v has no overlap with write selection", ErrInvalidGeometry, coord)
		}
		delta2DEncodeXOR(scratch, rows, cols)
		raw = p.packBuf[:count*4]
		for i, v := range scratch {
			binary.LittleEndian.PutUint32(raw[i*4:], v)
		}
	default:
		logMode := p.desc.Compression == LogIntQuantizedDelta
		scratch := p.scratchInt16[:count]
		if !walkOverlap(sel, chunkRange, func(bufBase, chunkBase, length uint64) {
			for k := uint64(0); k < length; k++ {
				scratch[chunkBase+k] = quantizeValue(sel.Buf[bufBase+k], p.desc.ScaleFactor, logMode)
			}
		}) {
			return 0, fmt.Errorf("%w: chunk %v has no overlap with write selection", ErrInvalidGeometry, coord)
		}
		delta2DEncodeInt16(scratch, rows, cols)
		raw = packInt16Zigzag(scratch)
	}

	compressed, err := p.entropy.Compress(raw)
	if err != nil {
		return 0, fmt.Errorf("encode chunk %v: %w", coord, err)
	}
	if len(compressed) > len(out) {
		return 0, fmt.Errorf("encode chunk %v: compressed size %d exceeds buffer capacity %d", coord, len(compressed), len(out))
	}
	n := copy(out, compressed)
	return n, nil
}

// DecodeChunk decompresses compressed bytes for the chunk at coord and
// scatters the result into sel via the inverse pipeline.
func (p *chunkPipeline) DecodeChunk(coord []uint64, compressed []byte, sel Selection) error {
	geom := p.desc.Geometry()
	extent := geom.ChunkExtent(coord)
	chunkRange := geom.ChunkGlobalRange(coord)
	rank := len(extent)
	cols := int(extent[rank-1])
	count := int(geom.ChunkElementCount(coord))
	if cols == 0 || count == 0 {
		return nil
	}
	rows := count / cols

	switch p.desc.Compression {
	case FloatXorDelta:
		dst := p.unpackBuf[:count*4]
		n, err := p.entropy.Decompress(dst, compressed)
		if err != nil {
			return fmt.Errorf("decode chunk %v: %w", coord, err)
		}
		if n != count*4 {
			return &ChunkDecodeMismatchError{ChunkIndex: geom.ChunkIndex(coord), Expected: count * 4, Got: n}
		}
		scratch := p.scratchU32[:count]
		for i := range scratch {
			scratch[i] = binary.LittleEndian.Uint32(dst[i*4:])
		}
		delta2DDecodeXOR(scratch, rows, cols)
		walkOverlap(sel, chunkRange, func(bufBase, chunkBase, length uint64) {
			for k := uint64(0); k < length; k++ {
				sel.Buf[bufBase+k] = bitsToFloat32(scratch[chunkBase+k])
			}
		})
	default:
		logMode := p.desc.Compression == LogIntQuantizedDelta
		dst := p.unpackBuf[:cap(p.unpackBuf)]
		n, err := p.entropy.Decompress(dst, compressed)
		if err != nil {
			return fmt.Errorf("decode chunk %v: %w", coord, err)
		}
		scratch, err := unpackInt16Zigzag(dst[:n], count)
		if err != nil {
			return fmt.Errorf("decode chunk %v: %w", coord, err)
		}
		delta2DDecodeInt16(scratch, rows, cols)
		walkOverlap(sel, chunkRange, func(bufBase, chunkBase, length uint64) {
			for k := uint64(0); k < length; k++ {
				sel.Buf[bufBase+k] = dequantizeValue(scratch[chunkBase+k], p.desc.ScaleFactor, logMode)
			}
		})
	}

	return nil
}
