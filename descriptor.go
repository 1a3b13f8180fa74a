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
	"math"
)

// CompressionMode selects the per-chunk quantize/delta pipeline. It is a
// tagged variant with three cases dispatched by a switch in the inner loop
// rather than by interface method calls, keeping the hot path allocation-
// and vtable-free.
type CompressionMode uint8

const (
	// IntQuantizedDelta quantizes float32 to int16 via round(v*scale) with
	// saturation, then applies 2D delta along the last dimension.
	IntQuantizedDelta CompressionMode = iota

	// FloatXorDelta passes values through as float32 and applies 2D
	// XOR-delta (on the IEEE-754 bit pattern) along the last dimension.
	FloatXorDelta

	// LogIntQuantizedDelta is IntQuantizedDelta applied to log10(1+v)
	// instead of v directly, suited to heavy-tailed non-negative values.
	LogIntQuantizedDelta
)

// String implements fmt.Stringer for diagnostics.
func (m CompressionMode) String() string {
	switch m {
	case IntQuantizedDelta:
		return "IntQuantizedDelta"
	case FloatXorDelta:
		return "FloatXorDelta"
	case LogIntQuantizedDelta:
		return "LogIntQuantizedDelta"
	default:
		return fmt.Sprintf("CompressionMode(%d)", uint8(m))
	}
}

// EntropyCodec selects the byte-level compressor applied after the
// quantize+delta stage (spec §1 treats the entropy coder as a black-box
// byte transform; this format wires that box to real libraries — see
// entropy.go).
type EntropyCodec uint8

const (
	// EntropyZstd compresses the post-delta byte stream with zstd.
	EntropyZstd EntropyCodec = iota

	// EntropyLZMA compresses the post-delta byte stream with LZMA.
	EntropyLZMA
)

func (c EntropyCodec) String() string {
	switch c {
	case EntropyZstd:
		return "zstd"
	case EntropyLZMA:
		return "lzma"
	default:
		return fmt.Sprintf("EntropyCodec(%d)", uint8(c))
	}
}

// ArrayDescriptor is the immutable set of parameters that define an array's
// on-disk layout: shape, chunking, quantization scale, and compression mode.
// It never changes once a file is created (spec §3).
type ArrayDescriptor struct {
	Dims        []uint64
	Chunks      []uint64
	ScaleFactor float32
	Compression CompressionMode
	Entropy     EntropyCodec

	geometry *Geometry
}

// NewArrayDescriptor validates dims/chunks/scale and builds the derived
// chunk geometry. Rank must be >= 1; every chunks[i] must be in [1, dims[i]].
func NewArrayDescriptor(dims, chunks []uint64, scaleFactor float32, compression CompressionMode, entropy EntropyCodec) (*ArrayDescriptor, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: rank must be >= 1", ErrInvalidGeometry)
	}
	if len(dims) != len(chunks) {
		return nil, fmt.Errorf("%w: dims rank %d != chunks rank %d", ErrInvalidGeometry, len(dims), len(chunks))
	}
	for i := range dims {
		if dims[i] == 0 {
			return nil, fmt.Errorf("%w: dims[%d] must be positive", ErrInvalidGeometry, i)
		}
		if chunks[i] == 0 || chunks[i] > dims[i] {
			return nil, fmt.Errorf("%w: chunks[%d]=%d must be in [1, dims[%d]=%d]", ErrInvalidGeometry, i, chunks[i], i, dims[i])
		}
	}
	if !(scaleFactor > 0) || math.IsInf(float64(scaleFactor), 1) {
		return nil, fmt.Errorf("%w: scale_factor must be finite and positive", ErrInvalidGeometry)
	}

	geom := NewGeometry(dims, chunks)
	if geom.NumChunks() > MaxChunks {
		return nil, fmt.Errorf("%w: %d chunks exceeds limit %d", ErrInvalidGeometry, geom.NumChunks(), MaxChunks)
	}

	return &ArrayDescriptor{
		Dims:        append([]uint64(nil), dims...),
		Chunks:      append([]uint64(nil), chunks...),
		ScaleFactor: scaleFactor,
		Compression: compression,
		Entropy:     entropy,
		geometry:    geom,
	}, nil
}

// Geometry returns the array's derived chunk geometry.
func (d *ArrayDescriptor) Geometry() *Geometry { return d.geometry }

// BytesPerElement returns the on-the-wire element width before entropy
// coding: 2 for the int16 quantized modes, 4 for float pass-through.
func (d *ArrayDescriptor) BytesPerElement() int {
	if d.Compression == FloatXorDelta {
		return 4
	}
	return 2
}
