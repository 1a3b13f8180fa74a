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
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// lzmaEntropyCoder backs EntropyLZMA, the alternate entropy backend. Unlike
// the teacher's chd/codec_lzma.go — which has to synthesize a classic LZMA
// header by hand because MAME's CHD stores a bare, headerless stream — this
// format is both written and read by this same package, so there is no
// interop reason to reproduce that trick: Compress/Decompress simply use the
// library's self-describing writer/reader pair.
type lzmaEntropyCoder struct{}

func (lzmaEntropyCoder) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("lzma init writer: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("lzma compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lzma close: %w", err)
	}
	return buf.Bytes(), nil
}

func (lzmaEntropyCoder) Decompress(dst, src []byte) (int, error) {
	r, err := lzma.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, fmt.Errorf("lzma init reader: %w", err)
	}

	n, err := io.ReadFull(r, dst)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, fmt.Errorf("lzma decompress: %w", err)
	}
	return n, nil
}

// Bound is a generous margin: LZMA has no small fixed worst-case expansion
// guarantee the way block codecs do, so the bound favors safety over
// tightness. It only governs the buffered writer's flush threshold, not an
// allocation the format's correctness depends on.
func (lzmaEntropyCoder) Bound(n int) int {
	return n + n/2 + 4096
}
