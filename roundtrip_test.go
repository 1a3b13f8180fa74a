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
	"errors"
	"math"
	"testing"
)

// writeFullArray drives a BufferedWriter through every chunk of desc, in
// ascending chunk_index order, gathering from src (shaped exactly like the
// full array). It returns the sealed file bytes.
func writeFullArray(t *testing.T, desc *ArrayDescriptor, src []float32) []byte {
	t.Helper()

	sink := NewMemorySink()
	w, err := NewBufferedWriter(desc, sink)
	if err != nil {
		t.Fatalf("NewBufferedWriter failed: %v", err)
	}

	geom := desc.Geometry()
	fullWindow := make([]Interval, geom.Rank())
	for i, d := range desc.Dims {
		fullWindow[i] = Interval{Lo: 0, Hi: d}
	}
	sel := FullSelection(src, desc.Dims, fullWindow)

	numChunks := geom.NumChunks()
	for idx := uint64(0); idx < numChunks; idx++ {
		coord := geom.ChunkCoord(idx)
		if err := w.WriteChunk(coord, sel); err != nil {
			t.Fatalf("WriteChunk(%v) failed: %v", coord, err)
		}
	}
	if err := w.Seal(); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	return sink.Bytes()
}

func TestRoundTripIntQuantizedDeltaFullArray(t *testing.T) {
	t.Parallel()

	dims := []uint64{17, 23}
	chunks := []uint64{5, 7} // forces short edge chunks on both axes
	desc, err := NewArrayDescriptor(dims, chunks, 1000, IntQuantizedDelta, EntropyZstd)
	if err != nil {
		t.Fatalf("NewArrayDescriptor failed: %v", err)
	}

	n := dims[0] * dims[1]
	src := make([]float32, n)
	for i := range src {
		src[i] = float32(math.Sin(float64(i)*0.37)) * 12.5
	}
	src[5] = float32(math.NaN())

	fileBytes := writeFullArray(t, desc, src)

	reader, err := Open(NewMemorySource(fileBytes))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	stat := reader.Stat()
	if stat.Version != versionCurrent {
		t.Errorf("Stat.Version = %d, want %d", stat.Version, versionCurrent)
	}
	if stat.NumChunks != desc.Geometry().NumChunks() {
		t.Errorf("Stat.NumChunks = %d, want %d", stat.NumChunks, desc.Geometry().NumChunks())
	}

	dst := make([]float32, n)
	fullWindow := []Interval{{Lo: 0, Hi: dims[0]}, {Lo: 0, Hi: dims[1]}}
	readSel := FullSelection(dst, dims, fullWindow)
	if err := reader.Read(readSel); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	for i := range src {
		want := dequantizeValue(quantizeValue(src[i], 1000, false), 1000, false)
		got := dst[i]
		if math.IsNaN(float64(want)) {
			if !math.IsNaN(float64(got)) {
				t.Errorf("elem %d: got %v, want NaN", i, got)
			}
			continue
		}
		// quantization error bound: |decoded - original| <= 1/(2*scale)
		if diff := math.Abs(float64(got) - float64(src[i])); diff > 1.0/(2*1000)+1e-6 {
			t.Errorf("elem %d: got %v, want ~%v (diff %v exceeds quantization bound)", i, got, want, diff)
		}
	}
}

func TestRoundTripFloatXorDeltaFullArray(t *testing.T) {
	t.Parallel()

	dims := []uint64{12, 12}
	chunks := []uint64{4, 4}
	desc, err := NewArrayDescriptor(dims, chunks, 1, FloatXorDelta, EntropyLZMA)
	if err != nil {
		t.Fatalf("NewArrayDescriptor failed: %v", err)
	}

	n := dims[0] * dims[1]
	src := make([]float32, n)
	for i := range src {
		src[i] = float32(i) * 0.25
	}

	fileBytes := writeFullArray(t, desc, src)

	reader, err := Open(NewMemorySource(fileBytes))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	dst := make([]float32, n)
	fullWindow := []Interval{{Lo: 0, Hi: dims[0]}, {Lo: 0, Hi: dims[1]}}
	readSel := FullSelection(dst, dims, fullWindow)
	if err := reader.Read(readSel); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	for i := range src {
		if dst[i] != src[i] {
			t.Errorf("elem %d: got %v, want %v (FloatXorDelta is lossless)", i, dst[i], src[i])
		}
	}
}

// TestRoundTripPartialReadMatchesFullArrayProjection checks that reading a
// sub-window returns exactly the elements the full-array read would have
// produced at those same coordinates (spec's partial-read-equals-projection
// property).
func TestRoundTripPartialReadMatchesFullArrayProjection(t *testing.T) {
	t.Parallel()

	dims := []uint64{30, 30}
	chunks := []uint64{6, 6}
	desc, err := NewArrayDescriptor(dims, chunks, 500, IntQuantizedDelta, EntropyZstd)
	if err != nil {
		t.Fatalf("NewArrayDescriptor failed: %v", err)
	}

	n := dims[0] * dims[1]
	src := make([]float32, n)
	for i := range src {
		src[i] = float32(i%97) - 48
	}

	fileBytes := writeFullArray(t, desc, src)
	reader, err := Open(NewMemorySource(fileBytes))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Full-array reference read.
	full := make([]float32, n)
	fullWindow := []Interval{{Lo: 0, Hi: dims[0]}, {Lo: 0, Hi: dims[1]}}
	if err := reader.Read(FullSelection(full, dims, fullWindow)); err != nil {
		t.Fatalf("full Read failed: %v", err)
	}

	// Partial window straddling several chunk boundaries, offset within a
	// smaller buffer (exercises the non-Full Selection path).
	window := []Interval{{Lo: 8, Hi: 19}, {Lo: 3, Hi: 27}}
	rows := window[0].Hi - window[0].Lo
	cols := window[1].Hi - window[1].Lo
	partial := make([]float32, rows*cols)
	sel := Selection{
		Buf:        partial,
		BufDims:    []uint64{rows, cols},
		BufWindow:  []Interval{{Lo: 0, Hi: rows}, {Lo: 0, Hi: cols}},
		FileWindow: window,
	}
	if err := reader.Read(sel); err != nil {
		t.Fatalf("partial Read failed: %v", err)
	}

	for r := uint64(0); r < rows; r++ {
		for c := uint64(0); c < cols; c++ {
			globalR, globalC := window[0].Lo+r, window[1].Lo+c
			want := full[globalR*dims[1]+globalC]
			got := partial[r*cols+c]
			if got != want {
				t.Errorf("partial[%d,%d] = %v, want %v (full[%d,%d])", r, c, got, want, globalR, globalC)
			}
		}
	}
}

// TestRoundTripLutSubChunkBoundarySizes exercises arrays whose chunk count
// lands exactly on, just below, and just above LUT sub-chunk boundaries.
func TestRoundTripLutSubChunkBoundarySizes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		rows, cols uint64
		chunkRows  uint64
		chunkCols  uint64
	}{
		{"below_one_subchunk", 10, 10, 5, 5},         // 4 chunks
		{"exactly_one_subchunk", 160, 160, 10, 10},   // 256 chunks
		{"just_over_one_subchunk", 170, 160, 10, 10}, // 272 chunks
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			desc, err := NewArrayDescriptor(
				[]uint64{tc.rows, tc.cols},
				[]uint64{tc.chunkRows, tc.chunkCols},
				200, IntQuantizedDelta, EntropyZstd)
			if err != nil {
				t.Fatalf("NewArrayDescriptor failed: %v", err)
			}

			n := tc.rows * tc.cols
			src := make([]float32, n)
			for i := range src {
				src[i] = float32(i%13) * 0.1
			}

			fileBytes := writeFullArray(t, desc, src)
			reader, err := Open(NewMemorySource(fileBytes))
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}

			dst := make([]float32, n)
			window := []Interval{{Lo: 0, Hi: tc.rows}, {Lo: 0, Hi: tc.cols}}
			if err := reader.Read(FullSelection(dst, []uint64{tc.rows, tc.cols}, window)); err != nil {
				t.Fatalf("Read failed: %v", err)
			}

			for i := range src {
				want := dequantizeValue(quantizeValue(src[i], 200, false), 200, false)
				if dst[i] != want {
					t.Fatalf("elem %d: got %v, want %v", i, dst[i], want)
				}
			}
		})
	}
}

// TestRoundTripVersion1FileIsReadable constructs a legacy (version 1) file by
// hand — fixed 40-byte header, flat uncompressed int64 LUT, chunk stream
// encoded with the current chunkPipeline (the codec itself never changed
// across versions; only the envelope/LUT layout did) — and checks the Reader
// handles it transparently.
func TestRoundTripVersion1FileIsReadable(t *testing.T) {
	t.Parallel()

	dims := []uint64{10, 10}
	chunks := []uint64{5, 5}
	desc, err := NewArrayDescriptor(dims, chunks, 100, IntQuantizedDelta, EntropyZstd)
	if err != nil {
		t.Fatalf("NewArrayDescriptor failed: %v", err)
	}
	pipeline, err := newChunkPipeline(desc)
	if err != nil {
		t.Fatalf("newChunkPipeline failed: %v", err)
	}

	n := dims[0] * dims[1]
	src := make([]float32, n)
	for i := range src {
		src[i] = float32(i)
	}
	fullWindow := []Interval{{Lo: 0, Hi: dims[0]}, {Lo: 0, Hi: dims[1]}}
	sel := FullSelection(src, dims, fullWindow)

	geom := desc.Geometry()
	numChunks := geom.NumChunks()
	var chunkStream []byte
	offsets := make([]uint64, 1, numChunks+1)
	for idx := uint64(0); idx < numChunks; idx++ {
		coord := geom.ChunkCoord(idx)
		out := make([]byte, pipeline.bound())
		n, err := pipeline.EncodeChunk(coord, sel, out)
		if err != nil {
			t.Fatalf("EncodeChunk(%v) failed: %v", coord, err)
		}
		chunkStream = append(chunkStream, out[:n]...)
		offsets = append(offsets, offsets[len(offsets)-1]+uint64(n))
	}

	hdr := make([]byte, legacyHeaderSize)
	hdr[0], hdr[1], hdr[2] = 'O', 'M', versionLegacyV1
	hdr[legacyOffCompression] = uint8(IntQuantizedDelta)
	putU32 := func(b []byte, v uint32) {
		b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	}
	putU64 := func(b []byte, v uint64) {
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (8 * i))
		}
	}
	putU32(hdr[legacyOffScale:], float32ToBits(100))
	putU64(hdr[legacyOffDim0:], dims[0])
	putU64(hdr[legacyOffDim1:], dims[1])
	putU64(hdr[legacyOffChunk0:], chunks[0])
	putU64(hdr[legacyOffChunk1:], chunks[1])

	// Spec §6 legacy ordering: header, then the flat uncompressed LUT, then
	// the compressed chunk stream.
	var file []byte
	file = append(file, hdr...)
	for _, off := range offsets {
		lb := make([]byte, 8)
		putU64(lb, off)
		file = append(file, lb...)
	}
	file = append(file, chunkStream...)

	reader, err := Open(NewMemorySource(file))
	if err != nil {
		t.Fatalf("Open legacy file failed: %v", err)
	}
	stat := reader.Stat()
	if stat.Version != versionLegacyV1 {
		t.Errorf("Stat.Version = %d, want %d", stat.Version, versionLegacyV1)
	}

	dst := make([]float32, n)
	if err := reader.Read(FullSelection(dst, dims, fullWindow)); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for i := range src {
		want := dequantizeValue(quantizeValue(src[i], 100, false), 100, false)
		if dst[i] != want {
			t.Errorf("elem %d: got %v, want %v", i, dst[i], want)
		}
	}
}

func TestRoundTripWriterRejectsOutOfOrderChunks(t *testing.T) {
	t.Parallel()

	desc, err := NewArrayDescriptor([]uint64{10, 10}, []uint64{5, 5}, 10, IntQuantizedDelta, EntropyZstd)
	if err != nil {
		t.Fatalf("NewArrayDescriptor failed: %v", err)
	}
	sink := NewMemorySink()
	w, err := NewBufferedWriter(desc, sink)
	if err != nil {
		t.Fatalf("NewBufferedWriter failed: %v", err)
	}

	buf := make([]float32, 100)
	sel := FullSelection(buf, []uint64{10, 10}, []Interval{{Lo: 0, Hi: 10}, {Lo: 0, Hi: 10}})

	// Chunk coord [1,0] has chunk_index 2, but chunk_index 0 must come first.
	if err := w.WriteChunk([]uint64{1, 0}, sel); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
}

func TestRoundTripSealRejectsIncompleteWrite(t *testing.T) {
	t.Parallel()

	desc, err := NewArrayDescriptor([]uint64{10, 10}, []uint64{5, 5}, 10, IntQuantizedDelta, EntropyZstd)
	if err != nil {
		t.Fatalf("NewArrayDescriptor failed: %v", err)
	}
	sink := NewMemorySink()
	w, err := NewBufferedWriter(desc, sink)
	if err != nil {
		t.Fatalf("NewBufferedWriter failed: %v", err)
	}

	buf := make([]float32, 100)
	sel := FullSelection(buf, []uint64{10, 10}, []Interval{{Lo: 0, Hi: 10}, {Lo: 0, Hi: 10}})
	if err := w.WriteChunk([]uint64{0, 0}, sel); err != nil {
		t.Fatalf("WriteChunk failed: %v", err)
	}

	if err := w.Seal(); !errors.Is(err, ErrIncompleteWrite) {
		t.Fatalf("expected ErrIncompleteWrite, got %v", err)
	}
}

func TestRoundTripReadRejectsOutOfBoundsWindow(t *testing.T) {
	t.Parallel()

	desc, err := NewArrayDescriptor([]uint64{10, 10}, []uint64{5, 5}, 10, IntQuantizedDelta, EntropyZstd)
	if err != nil {
		t.Fatalf("NewArrayDescriptor failed: %v", err)
	}
	src := make([]float32, 100)
	fileBytes := writeFullArray(t, desc, src)

	reader, err := Open(NewMemorySource(fileBytes))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	dst := make([]float32, 100)
	badWindow := []Interval{{Lo: 0, Hi: 11}, {Lo: 0, Hi: 10}}
	err = reader.Read(FullSelection(dst, []uint64{10, 10}, badWindow))
	var oob *DimensionOutOfBoundsError
	if !errors.As(err, &oob) {
		t.Fatalf("expected *DimensionOutOfBoundsError, got %v", err)
	}
}
