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

	"github.com/klauspost/compress/zstd"
)

// zstdEntropyCoder backs EntropyZstd. Grounded on the teacher's
// chd/codec_zstd.go zstdCodec: lazily-initialized, instance-owned
// encoder/decoder, EncodeAll/DecodeAll into a capacity-primed buffer rather
// than the streaming Reader/Writer API (chunks are small enough that the
// one-shot API avoids the overhead of a goroutine-backed stream per chunk).
type zstdEntropyCoder struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func (c *zstdEntropyCoder) Compress(src []byte) ([]byte, error) {
	if c.encoder == nil {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd init: %w", err)
		}
		c.encoder = enc
	}
	return c.encoder.EncodeAll(src, make([]byte, 0, len(src))), nil
}

func (c *zstdEntropyCoder) Decompress(dst, src []byte) (int, error) {
	if c.decoder == nil {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return 0, fmt.Errorf("zstd init: %w", err)
		}
		c.decoder = dec
	}

	result, err := c.decoder.DecodeAll(src, dst[:0])
	if err != nil {
		return 0, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) > len(dst) {
		return 0, fmt.Errorf("zstd decompress: output %d bytes exceeds destination %d bytes", len(result), len(dst))
	}
	if len(result) > 0 && &result[0] != &dst[0] {
		copy(dst, result)
	}
	return len(result), nil
}

// Bound returns zstd's documented worst-case expansion: input size plus a
// small per-block and frame overhead.
func (c *zstdEntropyCoder) Bound(n int) int {
	return n + (n >> 8) + 256
}
