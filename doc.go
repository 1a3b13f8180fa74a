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

// Package om implements the core codec for the OM format: a chunked,
// compressed, random-access numeric array file format. It provides the
// on-disk layout (header, chunk stream, lookup table, trailer), the chunk
// iteration geometry, the per-chunk quantize/delta/entropy pipeline, and a
// buffered streaming writer plus a random-access reader.
//
// Everything above the codec — CLI parsing, regridding, weather-model
// readers, logging — lives outside this package. The backing store is a
// collaborator: callers supply anything satisfying ByteSource/ByteSink.
package om
