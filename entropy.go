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

import "fmt"

// entropy.go defines the black-box byte-in/byte-out entropy coder contract
// the format spec deliberately treats as a substitutable external collaborator
// (spec §1): "produces N bytes; inverse restores the input exactly". This
// repo wires that contract to real compressors instead of the spec's named
// placeholders (p4nzenc128v16 et al.), selected per ArrayDescriptor.Entropy.
type entropyCoder interface {
	// Compress returns the compressed form of src.
	Compress(src []byte) ([]byte, error)

	// Decompress decompresses src into dst, which must be preallocated to at
	// least the expected decompressed size (callers that don't know the exact
	// size up front, such as a bitpacked payload whose length depends on a
	// width byte only known after decompression, may oversize dst and read
	// the returned count instead). Returns the number of bytes written.
	Decompress(dst, src []byte) (int, error)

	// Bound returns a safe upper bound on Compress's output length for an
	// input of n bytes, used by the buffered writer to size its flush
	// threshold (spec §4.2, "Output buffer sizing").
	Bound(n int) int
}

// newEntropyCoder constructs a fresh, instance-owned coder for the given
// tag. Coders are not shared across goroutines or reused across unrelated
// writer/reader instances: each owns whatever mutable encoder/decoder state
// the underlying library needs (spec §5 — owned, not borrowed, buffers).
func newEntropyCoder(codec EntropyCodec) (entropyCoder, error) {
	switch codec {
	case EntropyZstd:
		return &zstdEntropyCoder{}, nil
	case EntropyLZMA:
		return &lzmaEntropyCoder{}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownEntropyCodec, codec)
	}
}
