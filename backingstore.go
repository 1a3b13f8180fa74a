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
	"io"
	"os"
)

// ByteSource is the random-access read side of the format's backing-store
// boundary (spec §6): the reader never assumes a local *os.File, only that
// something can serve byte ranges and take prefetch hints. Grounded on the
// teacher's archive.Archive abstraction (package archive), generalized from
// "open a named entry" to "read an arbitrary byte range" since this format
// has no internal directory of entries.
type ByteSource interface {
	// ReadRange returns the length bytes starting at offset.
	ReadRange(offset, length uint64) ([]byte, error)

	// Prefetch is advisory: implementations may start readahead for the
	// given range but must not block or guarantee anything. The in-memory
	// source ignores it entirely.
	Prefetch(offset, length uint64)

	// Len returns the total size of the backing store in bytes.
	Len() (uint64, error)
}

// ByteSink is the append-only write side of the backing-store boundary. The
// buffered writer is the only caller; it always writes monotonically
// increasing, non-overlapping ranges.
type ByteSink interface {
	Write(p []byte) error
}

// FileSource is a ByteSource backed by an *os.File, the common case for
// reading an om file from local disk.
type FileSource struct {
	f *os.File
}

// NewFileSource wraps an already-open file for random-access reads. The
// caller retains ownership of f and must close it.
func NewFileSource(f *os.File) *FileSource {
	return &FileSource{f: f}
}

func (s *FileSource) ReadRange(offset, length uint64) ([]byte, error) {
	buf := make([]byte, length)
	n, err := s.f.ReadAt(buf, int64(offset))
	if err != nil && !(err == io.EOF && uint64(n) == length) {
		return nil, fmt.Errorf("read range [%d, %d): %w", offset, offset+length, err)
	}
	return buf[:n], nil
}

// Prefetch is a no-op: the OS page cache and filesystem readahead already
// cover the common case, and os.File exposes no portable hint syscall.
func (s *FileSource) Prefetch(offset, length uint64) {}

func (s *FileSource) Len() (uint64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}
	return uint64(info.Size()), nil
}

// FileSink is a ByteSink that appends to an *os.File opened for writing.
type FileSink struct {
	f *os.File
}

// NewFileSink wraps an already-open, write-only file. The caller retains
// ownership and must close it (and should fsync as appropriate for its own
// durability requirements — this package does not fsync on the caller's
// behalf).
func NewFileSink(f *os.File) *FileSink {
	return &FileSink{f: f}
}

func (s *FileSink) Write(p []byte) error {
	if _, err := s.f.Write(p); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// MemorySource is an in-memory ByteSource, useful for tests and for files
// small enough to hold entirely in memory (e.g. already downloaded).
type MemorySource struct {
	data []byte
}

// NewMemorySource wraps a byte slice. The slice must not be mutated while
// the source is in use.
func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data}
}

func (s *MemorySource) ReadRange(offset, length uint64) ([]byte, error) {
	if offset+length > uint64(len(s.data)) {
		return nil, fmt.Errorf("read range [%d, %d) exceeds source length %d", offset, offset+length, len(s.data))
	}
	return s.data[offset : offset+length], nil
}

func (s *MemorySource) Prefetch(offset, length uint64) {}

func (s *MemorySource) Len() (uint64, error) {
	return uint64(len(s.data)), nil
}

// MemorySink is an in-memory ByteSink that accumulates everything written to
// it, for tests and for building a file entirely in memory before handing it
// off to real storage.
type MemorySink struct {
	buf []byte
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(p []byte) error {
	s.buf = append(s.buf, p...)
	return nil
}

// Bytes returns the accumulated contents. The returned slice aliases the
// sink's internal buffer and must not be mutated by the caller.
func (s *MemorySink) Bytes() []byte { return s.buf }
