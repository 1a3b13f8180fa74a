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

// This file implements the pure dimension geometry described in the format
// design: chunk counts per axis, chunk-index <-> chunk-coordinate mapping,
// chunk extents clamped against the array's dims, and intersection/clamping
// against a requested read window. All arithmetic is unsigned 64-bit so the
// geometry holds for multi-terabyte arrays.
//
// The chunk-grid-shape-plus-row-major-iteration shape here follows the same
// design every chunked-array reader in the wild uses (Zarr, HDF5): compute
// ceil(dim/chunk) per axis, then walk chunk coordinates in row-major order
// with the last axis fastest.

// Interval is a half-open range [Lo, Hi) along one axis.
type Interval struct {
	Lo, Hi uint64
}

// Len returns the number of elements the interval spans.
func (iv Interval) Len() uint64 {
	if iv.Hi <= iv.Lo {
		return 0
	}
	return iv.Hi - iv.Lo
}

// Geometry holds the per-axis chunk-grid shape derived from an array's dims
// and chunks, plus the precomputed values needed to iterate chunks without
// recomputing divisions on every call.
type Geometry struct {
	dims        []uint64
	chunks      []uint64
	gridShape   []uint64 // n_chunks_per_dim(i)
	gridStrides []uint64 // row-major strides over gridShape, last axis fastest
	numChunks   uint64
}

// NewGeometry derives the chunk grid from dims and chunks. Both slices must
// be non-empty, equal length, and satisfy 0 < chunks[i] <= dims[i] — callers
// normally reach this only via ArrayDescriptor, which validates first.
func NewGeometry(dims, chunks []uint64) *Geometry {
	rank := len(dims)
	gridShape := make([]uint64, rank)
	for i := 0; i < rank; i++ {
		gridShape[i] = ceilDiv(dims[i], chunks[i])
	}

	gridStrides := make([]uint64, rank)
	stride := uint64(1)
	for i := rank - 1; i >= 0; i-- {
		gridStrides[i] = stride
		stride *= gridShape[i]
	}

	return &Geometry{
		dims:        append([]uint64(nil), dims...),
		chunks:      append([]uint64(nil), chunks...),
		gridShape:   gridShape,
		gridStrides: gridStrides,
		numChunks:   stride,
	}
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Rank returns the number of dimensions.
func (g *Geometry) Rank() int { return len(g.dims) }

// Dims returns the array's per-axis element counts.
func (g *Geometry) Dims() []uint64 { return g.dims }

// Chunks returns the nominal per-axis chunk element counts.
func (g *Geometry) Chunks() []uint64 { return g.chunks }

// NumChunksPerDim returns n_chunks_per_dim(i) = ceil(dims[i] / chunks[i]).
func (g *Geometry) NumChunksPerDim(axis int) uint64 { return g.gridShape[axis] }

// NumChunks returns the total chunk count N_chunks = product of
// NumChunksPerDim(i) over all axes.
func (g *Geometry) NumChunks() uint64 { return g.numChunks }

// ChunkCoord converts a flat chunk_index into per-axis chunk coordinates,
// with the last dimension varying fastest to match row-major encode order.
func (g *Geometry) ChunkCoord(chunkIndex uint64) []uint64 {
	coord := make([]uint64, len(g.gridShape))
	for i := range coord {
		coord[i] = (chunkIndex / g.gridStrides[i]) % g.gridShape[i]
	}
	return coord
}

// ChunkIndex is the inverse of ChunkCoord: flattens per-axis chunk
// coordinates into a row-major chunk_index.
func (g *Geometry) ChunkIndex(coord []uint64) uint64 {
	var idx uint64
	for i, c := range coord {
		idx += c * g.gridStrides[i]
	}
	return idx
}

// ChunkGlobalRange returns, for a chunk coordinate, the half-open per-axis
// interval of array coordinates the chunk covers, clamped against dims (the
// final chunk along any axis may be short).
func (g *Geometry) ChunkGlobalRange(coord []uint64) []Interval {
	ranges := make([]Interval, len(coord))
	for i, c := range coord {
		lo := c * g.chunks[i]
		hi := lo + g.chunks[i]
		if hi > g.dims[i] {
			hi = g.dims[i]
		}
		ranges[i] = Interval{Lo: lo, Hi: hi}
	}
	return ranges
}

// ChunkExtent returns the per-axis element counts of a chunk (the lengths of
// ChunkGlobalRange's intervals), i.e. chunk_extent(c).
func (g *Geometry) ChunkExtent(coord []uint64) []uint64 {
	rng := g.ChunkGlobalRange(coord)
	extent := make([]uint64, len(rng))
	for i, iv := range rng {
		extent[i] = iv.Len()
	}
	return extent
}

// ChunkElementCount returns L_c, the total element count of a chunk.
func (g *Geometry) ChunkElementCount(coord []uint64) uint64 {
	extent := g.ChunkExtent(coord)
	count := uint64(1)
	for _, e := range extent {
		count *= e
	}
	return count
}

// MaxChunkElementCount returns the element count of the largest possible
// chunk (the nominal, unclamped chunk shape), used to size scratch buffers
// that are reused across all chunks.
func (g *Geometry) MaxChunkElementCount() uint64 {
	count := uint64(1)
	for _, c := range g.chunks {
		count *= c
	}
	return count
}

// Intersects reports whether a chunk's global range overlaps a read window
// (both given as one Interval per axis) on every axis.
func Intersects(chunkRange, window []Interval) bool {
	for i := range chunkRange {
		if chunkRange[i].Hi <= window[i].Lo || window[i].Hi <= chunkRange[i].Lo {
			return false
		}
	}
	return true
}

// Clamped returns the per-axis overlap between a chunk's global range and a
// read window. Callers must first confirm Intersects returns true; Clamped
// does not itself validate non-emptiness.
func Clamped(chunkRange, window []Interval) []Interval {
	out := make([]Interval, len(chunkRange))
	for i := range chunkRange {
		lo := chunkRange[i].Lo
		if window[i].Lo > lo {
			lo = window[i].Lo
		}
		hi := chunkRange[i].Hi
		if window[i].Hi < hi {
			hi = window[i].Hi
		}
		out[i] = Interval{Lo: lo, Hi: hi}
	}
	return out
}

// EachChunkInWindow calls fn once for every chunk index whose global range
// intersects window, in ascending row-major chunk_index order. fn receives
// the chunk index and its coordinate so callers avoid recomputing it.
func (g *Geometry) EachChunkInWindow(window []Interval, fn func(chunkIndex uint64, coord []uint64) error) error {
	rank := len(g.gridShape)
	// Restrict the per-axis chunk-coordinate search range to chunks whose
	// nominal extent could possibly overlap the window, rather than walking
	// every chunk in the grid.
	loCoord := make([]uint64, rank)
	hiCoord := make([]uint64, rank)
	for i := 0; i < rank; i++ {
		if g.chunks[i] == 0 {
			return ErrInvalidGeometry
		}
		lo := window[i].Lo / g.chunks[i]
		var hi uint64
		if window[i].Hi == 0 {
			hi = 0
		} else {
			hi = (window[i].Hi - 1) / g.chunks[i]
		}
		if hi >= g.gridShape[i] {
			hi = g.gridShape[i] - 1
		}
		loCoord[i] = lo
		hiCoord[i] = hi
	}

	coord := append([]uint64(nil), loCoord...)
	for {
		chunkRange := g.ChunkGlobalRange(coord)
		if Intersects(chunkRange, window) {
			idx := g.ChunkIndex(coord)
			if err := fn(idx, append([]uint64(nil), coord...)); err != nil {
				return err
			}
		}

		// Advance coord like an odometer, last axis fastest.
		axis := rank - 1
		for axis >= 0 {
			coord[axis]++
			if coord[axis] <= hiCoord[axis] {
				break
			}
			coord[axis] = loCoord[axis]
			axis--
		}
		if axis < 0 {
			break
		}
	}
	return nil
}

// ValidateWindow checks 0 <= lo <= hi <= dims[i] for every axis.
func (g *Geometry) ValidateWindow(window []Interval) error {
	if len(window) != len(g.dims) {
		return ErrInvalidGeometry
	}
	for i, iv := range window {
		if iv.Lo > iv.Hi || iv.Hi > g.dims[i] {
			return &DimensionOutOfBoundsError{Axis: i, Lo: iv.Lo, Hi: iv.Hi, Allowed: g.dims[i]}
		}
	}
	return nil
}
