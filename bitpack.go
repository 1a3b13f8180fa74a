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
	"bytes"
	"fmt"
	"math/bits"

	"github.com/icza/bitio"
)

// bitpack.go implements the "zigzag + bitpack int16" entropy pre-stage for
// the integer compression modes, and the 64-bit delta bitpacker used by the
// LUT codec (spec §4.2, §4.3). Both share the same shape: find the minimum
// fixed bit-width that holds every value in the batch, write that width as a
// one-byte header, then pack every value at that width with a bit writer.
// This keeps the *entropy coder* (zstd/lzma, see entropy.go) working over an
// already-dense byte stream instead of one padded to byte boundaries per
// value.
//
// Bit-level I/O itself is delegated to github.com/icza/bitio rather than a
// hand-rolled accumulator.

// packInt16Zigzag zigzag-encodes each int16 and bitpacks the results at the
// minimum fixed width needed to hold the largest zigzag value in values.
func packInt16Zigzag(values []int16) []byte {
	var maxZZ uint16
	zz := make([]uint16, len(values))
	for i, v := range values {
		z := zigzagEncode(v)
		zz[i] = z
		if z > maxZZ {
			maxZZ = z
		}
	}

	width := bits.Len16(maxZZ)
	if width == 0 {
		width = 1 // bitio.WriteBits requires n >= 1
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(width))
	bw := bitio.NewWriter(&buf)
	for _, z := range zz {
		_ = bw.WriteBits(uint64(z), uint8(width)) //nolint:errcheck // bytes.Buffer never errors
	}
	_ = bw.Close()

	return buf.Bytes()
}

// unpackInt16Zigzag is the exact inverse of packInt16Zigzag, given the
// expected element count (the chunk's known L_c).
func unpackInt16Zigzag(data []byte, count int) ([]int16, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: bitpacked int16 payload empty", ErrChunkDecodeMismatch)
	}
	width := int(data[0])
	br := bitio.NewReader(bytes.NewReader(data[1:]))

	out := make([]int16, count)
	for i := 0; i < count; i++ {
		z, err := br.ReadBits(uint8(width))
		if err != nil {
			return nil, fmt.Errorf("%w: reading packed int16 %d: %v", ErrChunkDecodeMismatch, i, err)
		}
		out[i] = zigzagDecode(uint16(z))
	}
	return out, nil
}

// packUint64Delta bitpacks a non-decreasing sequence of cumulative offsets
// as successive deltas at the minimum fixed width needed to hold the
// largest delta. This is the LUT's on-disk representation within one
// sub-chunk (spec §4.3): lut[k+1]-lut[k] is always >= 0 by the format's
// monotonicity invariant.
func packUint64Delta(values []uint64) []byte {
	deltas := make([]uint64, len(values))
	var prev, maxDelta uint64
	for i, v := range values {
		d := v - prev
		deltas[i] = d
		if d > maxDelta {
			maxDelta = d
		}
		prev = v
	}

	width := bits.Len64(maxDelta)
	if width == 0 {
		width = 1
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(width))
	bw := bitio.NewWriter(&buf)
	for _, d := range deltas {
		_ = bw.WriteBits(d, uint8(width)) //nolint:errcheck // bytes.Buffer never errors
	}
	_ = bw.Close()

	return buf.Bytes()
}

// unpackUint64Delta is the exact inverse of packUint64Delta.
func unpackUint64Delta(data []byte, count int) ([]uint64, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: bitpacked LUT payload empty", ErrCorruptLut)
	}
	width := int(data[0])
	br := bitio.NewReader(bytes.NewReader(data[1:]))

	out := make([]uint64, count)
	var prev uint64
	for i := 0; i < count; i++ {
		d, err := br.ReadBits(uint8(width))
		if err != nil {
			return nil, fmt.Errorf("%w: reading packed LUT entry %d: %v", ErrCorruptLut, i, err)
		}
		prev += d
		out[i] = prev
	}
	return out, nil
}
