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

func TestDimensionOutOfBoundsErrorUnwraps(t *testing.T) {
	t.Parallel()

	err := &DimensionOutOfBoundsError{Axis: 1, Lo: 5, Hi: 20, Allowed: 10}
	if !errors.Is(err, ErrDimensionOutOfBounds) {
		t.Error("expected errors.Is to match ErrDimensionOutOfBounds")
	}
	if err.Error() == "" {
		t.Error("expected non-empty Error() message")
	}
}

func TestChunkDecodeMismatchErrorUnwraps(t *testing.T) {
	t.Parallel()

	err := &ChunkDecodeMismatchError{ChunkIndex: 3, Expected: 100, Got: 50}
	if !errors.Is(err, ErrChunkDecodeMismatch) {
		t.Error("expected errors.Is to match ErrChunkDecodeMismatch")
	}
	if err.Error() == "" {
		t.Error("expected non-empty Error() message")
	}
}

func TestNewArrayDescriptorValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dims    []uint64
		chunks  []uint64
		scale   float32
		wantErr bool
	}{
		{"valid", []uint64{100, 100}, []uint64{10, 10}, 100, false},
		{"empty_rank", nil, nil, 100, true},
		{"rank_mismatch", []uint64{100, 100}, []uint64{10}, 100, true},
		{"zero_dim", []uint64{0, 100}, []uint64{10, 10}, 100, true},
		{"chunk_exceeds_dim", []uint64{100, 100}, []uint64{10, 200}, 100, true},
		{"zero_chunk", []uint64{100, 100}, []uint64{0, 10}, 100, true},
		{"zero_scale", []uint64{100, 100}, []uint64{10, 10}, 0, true},
		{"negative_scale", []uint64{100, 100}, []uint64{10, 10}, -1, true},
		{"infinite_scale", []uint64{100, 100}, []uint64{10, 10}, float32(math.Inf(1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewArrayDescriptor(tt.dims, tt.chunks, tt.scale, IntQuantizedDelta, EntropyZstd)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewArrayDescriptor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("expected errors.Is to match ErrInvalidGeometry, got %v", err)
			}
		})
	}
}

func TestCompressionModeAndEntropyCodecString(t *testing.T) {
	t.Parallel()

	if IntQuantizedDelta.String() != "IntQuantizedDelta" {
		t.Errorf("unexpected String(): %s", IntQuantizedDelta.String())
	}
	if FloatXorDelta.String() != "FloatXorDelta" {
		t.Errorf("unexpected String(): %s", FloatXorDelta.String())
	}
	if EntropyZstd.String() != "zstd" {
		t.Errorf("unexpected String(): %s", EntropyZstd.String())
	}
	if EntropyLZMA.String() != "lzma" {
		t.Errorf("unexpected String(): %s", EntropyLZMA.String())
	}
}
