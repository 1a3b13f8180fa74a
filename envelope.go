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
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// magicOM is the two-byte tag every om file starts with.
var magicOM = [2]byte{'O', 'M'}

const (
	versionLegacyV1 = 1
	versionLegacyV2 = 2
	versionCurrent  = 3

	// legacyHeaderSize is the fixed size of the version 1/2 header exactly as
	// spec §6 documents it: magic(2) + version(1) + compression(1) +
	// scale_factor f32(4) + dim0 u64(8) + dim1 u64(8) + chunk0 u64(8) +
	// chunk1 u64(8) = 40. The legacy format has no rank field: it always
	// describes a rank-2 array.
	legacyHeaderSize = 40

	legacyOffCompression = 3
	legacyOffScale       = 4
	legacyOffDim0        = 8
	legacyOffDim1        = 16
	legacyOffChunk0      = 24
	legacyOffChunk1      = 32
)

// fileMetadata is the version-3 trailing JSON blob (spec §4.4): everything
// needed to reconstruct an ArrayDescriptor and locate the LUT, written once
// the chunk stream and LUT are both finalized so it can record their exact
// lengths.
type fileMetadata struct {
	Dims            []uint64 `json:"dims"`
	Chunks          []uint64 `json:"chunks"`
	ScaleFactor     float32  `json:"scale_factor"`
	Compression     uint8    `json:"compression"`
	Entropy         uint8    `json:"entropy"`
	NChunks         uint64   `json:"n_chunks"`
	LutOffset       uint64   `json:"lut_offset"`
	LutChunkLength  uint64   `json:"lut_chunk_length"`
	LutSubChunkSize uint64   `json:"lut_sub_chunk_size"`
}

// writeHeaderV3 writes the version-3 fixed-size leading header: the chunk
// stream follows immediately after it.
func writeHeaderV3(sink ByteSink) error {
	var hdr [3]byte
	hdr[0], hdr[1] = magicOM[0], magicOM[1]
	hdr[2] = versionCurrent
	return sink.Write(hdr[:])
}

// writeTrailerV3 serializes metadata as JSON, writes it, then appends its
// own length as a little-endian uint64 so a reader can seek from EOF
// straight to the metadata start without a separate index.
func writeTrailerV3(meta fileMetadata, sink ByteSink) error {
	body, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata trailer: %w", err)
	}
	if err := sink.Write(body); err != nil {
		return fmt.Errorf("write metadata trailer: %w", err)
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(body)))
	return sink.Write(lenBuf[:])
}

// parsedEnvelope is the result of opening an om file for reading: enough to
// build an ArrayDescriptor, a LookupTable, and locate the chunk stream.
type parsedEnvelope struct {
	version        int
	desc           *ArrayDescriptor
	chunkStreamOff uint64
	chunkStreamLen uint64
	lutOffset      uint64
	lutChunkLen    int
	numChunks      uint64
}

// parseEnvelope inspects a file's magic/version and dispatches to the
// version-specific header/trailer parser. source.Len() must return the total
// file size.
func parseEnvelope(source ByteSource) (*parsedEnvelope, error) {
	totalLen, err := source.Len()
	if err != nil {
		return nil, fmt.Errorf("stat backing store: %w", err)
	}
	if totalLen < 3 {
		return nil, fmt.Errorf("%w: file shorter than the magic+version header", ErrNotAnOmFile)
	}

	head, err := source.ReadRange(0, 3)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if head[0] != magicOM[0] || head[1] != magicOM[1] {
		return nil, ErrNotAnOmFile
	}

	switch head[2] {
	case versionLegacyV1, versionLegacyV2:
		return parseLegacyEnvelope(source, int(head[2]), totalLen)
	case versionCurrent:
		return parseV3Envelope(source, totalLen)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, head[2])
	}
}

// parseLegacyEnvelope reads the fixed-size version 1/2 header exactly as
// spec §6 lays it out: magic, version, compression, scale_factor, then
// dim0/dim1/chunk0/chunk1 — always rank 2, no rank field. The layout on disk
// is header, then the flat uncompressed LUT, then the chunk stream (spec
// §6's "File format (version 1 legacy)"), the reverse order from version 3.
// Both 1 and 2 share this layout; the Open Question of how version 2 ever
// signaled a compression mode besides IntQuantizedDelta is resolved (per
// this format's design decision, recorded in the project's design notes) by
// treating compression as always IntQuantizedDelta pre-version-3 — the
// compression byte at legacyOffCompression is read but deliberately
// ignored, since no legacy file in the wild used anything else.
func parseLegacyEnvelope(source ByteSource, version int, totalLen uint64) (*parsedEnvelope, error) {
	if totalLen < legacyHeaderSize {
		return nil, fmt.Errorf("%w: legacy header truncated", ErrInvalidHeader)
	}
	hdr, err := source.ReadRange(0, legacyHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("read legacy header: %w", err)
	}

	scaleBits := binary.LittleEndian.Uint32(hdr[legacyOffScale:])
	scale := bitsToFloat32(scaleBits)

	dims := []uint64{
		binary.LittleEndian.Uint64(hdr[legacyOffDim0:]),
		binary.LittleEndian.Uint64(hdr[legacyOffDim1:]),
	}
	chunks := []uint64{
		binary.LittleEndian.Uint64(hdr[legacyOffChunk0:]),
		binary.LittleEndian.Uint64(hdr[legacyOffChunk1:]),
	}

	desc, err := NewArrayDescriptor(dims, chunks, scale, IntQuantizedDelta, EntropyZstd)
	if err != nil {
		return nil, fmt.Errorf("legacy header geometry: %w", err)
	}
	numChunks := desc.Geometry().NumChunks()

	// The flat, uncompressed LUT (numChunks+1 little-endian uint64 cumulative
	// offsets, spec §3/§6) sits immediately after the header; the compressed
	// chunk stream follows it.
	lutOffset := uint64(legacyHeaderSize)
	lutBytes := (numChunks + 1) * 8
	if lutOffset+lutBytes > totalLen {
		return nil, fmt.Errorf("%w: legacy lut of %d entries exceeds file size", ErrInvalidHeader, numChunks+1)
	}
	chunkStreamOff := lutOffset + lutBytes

	return &parsedEnvelope{
		version:        version,
		desc:           desc,
		chunkStreamOff: chunkStreamOff,
		chunkStreamLen: totalLen - chunkStreamOff,
		lutOffset:      lutOffset,
		lutChunkLen:    0, // signals "legacy flat int64 LUT" to the reader
		numChunks:      numChunks,
	}, nil
}

// parseV3Envelope reads the 8-byte trailing length, then the JSON metadata
// blob it points to, and derives the chunk stream bounds.
func parseV3Envelope(source ByteSource, totalLen uint64) (*parsedEnvelope, error) {
	if totalLen < 3+8 {
		return nil, fmt.Errorf("%w: file too short for v3 trailer", ErrInvalidHeader)
	}
	lenBuf, err := source.ReadRange(totalLen-8, 8)
	if err != nil {
		return nil, fmt.Errorf("read trailer length: %w", err)
	}
	metaLen := binary.LittleEndian.Uint64(lenBuf)
	if metaLen == 0 || metaLen > MaxMetadataBytes {
		return nil, fmt.Errorf("%w: metadata length %d out of range", ErrInvalidHeader, metaLen)
	}
	if metaLen+8+3 > totalLen {
		return nil, fmt.Errorf("%w: metadata length %d exceeds file size", ErrInvalidHeader, metaLen)
	}

	metaOff := totalLen - 8 - metaLen
	body, err := source.ReadRange(metaOff, metaLen)
	if err != nil {
		return nil, fmt.Errorf("read metadata trailer: %w", err)
	}

	var meta fileMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata JSON: %v", ErrInvalidHeader, err)
	}

	desc, err := NewArrayDescriptor(meta.Dims, meta.Chunks, meta.ScaleFactor, CompressionMode(meta.Compression), EntropyCodec(meta.Entropy))
	if err != nil {
		return nil, fmt.Errorf("metadata geometry: %w", err)
	}
	if desc.Geometry().NumChunks() != meta.NChunks {
		return nil, fmt.Errorf("%w: metadata declares %d chunks, geometry implies %d", ErrInvalidHeader, meta.NChunks, desc.Geometry().NumChunks())
	}
	if meta.LutOffset > metaOff {
		return nil, fmt.Errorf("%w: lut_offset %d exceeds metadata start %d", ErrInvalidHeader, meta.LutOffset, metaOff)
	}

	return &parsedEnvelope{
		version:        versionCurrent,
		desc:           desc,
		chunkStreamOff: 3,
		chunkStreamLen: meta.LutOffset - 3,
		lutOffset:      meta.LutOffset,
		lutChunkLen:    int(meta.LutChunkLength),
		numChunks:      meta.NChunks,
	}, nil
}
