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

// Selection describes how a user-supplied float32 buffer maps onto
// file-global array coordinates, the same shape HDF5 bindings call a
// memory dataspace + file dataspace pair: Buf/BufDims/BufWindow describe the
// caller's own buffer (its shape and the sub-region of it in play), and
// FileWindow is the corresponding hyper-rectangle in the array's global
// coordinate space — same per-axis extents as BufWindow, offset
// independently. The writer uses this to gather from a user array into a
// chunk scratch buffer; the reader uses it to scatter a decoded chunk back
// into a user output buffer.
type Selection struct {
	Buf        []float32
	BufDims    []uint64
	BufWindow  []Interval
	FileWindow []Interval
}

func stridesRowMajor(shape []uint64) []uint64 {
	rank := len(shape)
	strides := make([]uint64, rank)
	stride := uint64(1)
	for i := rank - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// walkOverlap computes the overlap between chunkRange and sel.FileWindow and
// calls rowFn once per contiguous run along the last axis, giving the flat
// buffer offset, flat chunk-local offset, and run length. This is the
// coordinate walker described in the format's design notes: it avoids
// recursion by only odometer-looping the non-fastest axes and always
// collapsing the fastest axis into one bulk run. Returns false if there is
// no overlap (callers should treat that as "nothing to do for this chunk").
func walkOverlap(sel Selection, chunkRange []Interval, rowFn func(bufBase, chunkBase, length uint64)) bool {
	rank := len(chunkRange)
	fileOverlap := make([]Interval, rank)
	for i := range chunkRange {
		lo := chunkRange[i].Lo
		if sel.FileWindow[i].Lo > lo {
			lo = sel.FileWindow[i].Lo
		}
		hi := chunkRange[i].Hi
		if sel.FileWindow[i].Hi < hi {
			hi = sel.FileWindow[i].Hi
		}
		if hi <= lo {
			return false
		}
		fileOverlap[i] = Interval{Lo: lo, Hi: hi}
	}

	bufStrides := stridesRowMajor(sel.BufDims)

	chunkExtent := make([]uint64, rank)
	for i := range chunkRange {
		chunkExtent[i] = chunkRange[i].Hi - chunkRange[i].Lo
	}
	chunkStrides := stridesRowMajor(chunkExtent)

	bufOffset := make([]uint64, rank)
	chunkOffset := make([]uint64, rank)
	lengths := make([]uint64, rank)
	for i := range chunkRange {
		bufOffset[i] = sel.BufWindow[i].Lo + (fileOverlap[i].Lo - sel.FileWindow[i].Lo)
		chunkOffset[i] = fileOverlap[i].Lo - chunkRange[i].Lo
		lengths[i] = fileOverlap[i].Hi - fileOverlap[i].Lo
	}

	last := rank - 1
	if rank == 1 {
		rowFn(bufOffset[0]*bufStrides[0], chunkOffset[0]*chunkStrides[0], lengths[0])
		return true
	}

	idx := make([]uint64, rank-1)
	for {
		var bufBase, chunkBase uint64
		for i := 0; i < last; i++ {
			bufBase += (bufOffset[i] + idx[i]) * bufStrides[i]
			chunkBase += (chunkOffset[i] + idx[i]) * chunkStrides[i]
		}
		bufBase += bufOffset[last] * bufStrides[last]
		chunkBase += chunkOffset[last] * chunkStrides[last]
		rowFn(bufBase, chunkBase, lengths[last])

		axis := last - 1
		for axis >= 0 {
			idx[axis]++
			if idx[axis] < lengths[axis] {
				break
			}
			idx[axis] = 0
			axis--
		}
		if axis < 0 {
			break
		}
	}
	return true
}

// FullSelection builds a Selection where the buffer and the file share the
// same coordinate space: the common case of reading or writing using a
// buffer shaped exactly like (a window of) the full array.
func FullSelection(buf []float32, dims []uint64, window []Interval) Selection {
	return Selection{Buf: buf, BufDims: dims, BufWindow: window, FileWindow: window}
}
