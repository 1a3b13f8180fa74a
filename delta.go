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

// delta.go implements the 2D delta stage (spec §4.2): the chunk is treated
// as a matrix of shape [rows, cols] where cols is the chunk's extent along
// the last dimension. Every row after the first is replaced by its
// difference (or XOR, for float mode) against the *original* previous row.
// Decoding restores each row by prefix-sum (or cumulative XOR) in the
// opposite direction.
//
// Both directions process rows back-to-front on encode and front-to-back on
// decode so that the "previous row" referenced is always still in its
// pre-transform (encode) or already-restored (decode) state — an in-place
// transform with no extra row buffer.

// delta2DEncodeInt16 replaces data[r*cols:(r+1)*cols] with its difference
// against row r-1, for every row r from rows-1 down to 1. Row 0 is
// untouched. data must hold exactly rows*cols elements.
func delta2DEncodeInt16(data []int16, rows, cols int) {
	for r := rows - 1; r >= 1; r-- {
		cur := data[r*cols : (r+1)*cols]
		prev := data[(r-1)*cols : r*cols]
		for c := 0; c < cols; c++ {
			cur[c] -= prev[c]
		}
	}
}

// delta2DDecodeInt16 is the exact inverse of delta2DEncodeInt16.
func delta2DDecodeInt16(data []int16, rows, cols int) {
	for r := 1; r < rows; r++ {
		cur := data[r*cols : (r+1)*cols]
		prev := data[(r-1)*cols : r*cols]
		for c := 0; c < cols; c++ {
			cur[c] += prev[c]
		}
	}
}

// delta2DEncodeXOR XORs each row (as IEEE-754 bit patterns) against row r-1,
// for every row r from rows-1 down to 1.
func delta2DEncodeXOR(data []uint32, rows, cols int) {
	for r := rows - 1; r >= 1; r-- {
		cur := data[r*cols : (r+1)*cols]
		prev := data[(r-1)*cols : r*cols]
		for c := 0; c < cols; c++ {
			cur[c] ^= prev[c]
		}
	}
}

// delta2DDecodeXOR is the exact inverse of delta2DEncodeXOR (XOR is its own
// inverse, so decode walks forward using the already-restored previous row).
func delta2DDecodeXOR(data []uint32, rows, cols int) {
	for r := 1; r < rows; r++ {
		cur := data[r*cols : (r+1)*cols]
		prev := data[(r-1)*cols : r*cols]
		for c := 0; c < cols; c++ {
			cur[c] ^= prev[c]
		}
	}
}
