// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of unecm.
//
// unecm is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// unecm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with unecm.  If not, see <https://www.gnu.org/licenses/>.

// Package ecmindex loads, builds, and queries the sparse ".edi" seek index
// that maps logical (decompressed) offsets to ECM stream positions.
package ecmindex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	ibinary "github.com/go-unecm/unecm/internal/binary"
	"github.com/go-unecm/unecm/internal/tag"
)

// CheckpointSpacing is the logical-byte distance between index checkpoints.
const CheckpointSpacing = 65536

// HeaderSize is the fixed byte size of the ".edi" header (entry count + reserved).
const HeaderSize = 8

// EntrySize is the on-disk byte size of one checkpoint entry.
const EntrySize = 16

// ErrCorruptIndex is returned when the header or entry payload cannot be parsed.
var ErrCorruptIndex = errors.New("ecmindex: corrupt index")

// ErrTruncatedStream is returned when the ECM stream ends before the sentinel tag.
var ErrTruncatedStream = errors.New("ecmindex: truncated stream")

// Checkpoint is one (logical_offset, ecm_offset) pair recorded at a block boundary.
type Checkpoint struct {
	Logical int64
	ECM     int64
}

// Index is the in-memory form of a loaded ".edi" file.
type Index struct {
	Checkpoints []Checkpoint
}

// Load reads a complete ".edi" index from r.
func Load(r io.ReaderAt) (*Index, error) {
	var header [HeaderSize]byte
	if err := ibinary.ReadAt(r, 0, header[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorruptIndex, err)
	}
	count := binary.LittleEndian.Uint32(header[0:4])

	entries := make([]Checkpoint, count)
	var buf []byte
	if count > 0 {
		var err error
		buf, err = ibinary.ReadBytesAt(r, HeaderSize, int(count)*EntrySize)
		if err != nil {
			return nil, fmt.Errorf("%w: reading entries: %v", ErrCorruptIndex, err)
		}
	}
	for i := uint32(0); i < count; i++ {
		off := int(i) * EntrySize
		logical := int64(binary.LittleEndian.Uint64(buf[off : off+8]))
		ecm := int64(binary.LittleEndian.Uint64(buf[off+8 : off+16]))
		if logical < 0 || ecm < 0 {
			return nil, fmt.Errorf("%w: negative offset at entry %d", ErrCorruptIndex, i)
		}
		entries[i] = Checkpoint{Logical: logical, ECM: ecm}
	}

	return &Index{Checkpoints: entries}, nil
}

// Lookup returns the nearest checkpoint at or before logical offset.
func (idx *Index) Lookup(offset int64) (Checkpoint, error) {
	if len(idx.Checkpoints) == 0 {
		return Checkpoint{}, fmt.Errorf("%w: empty index", ErrCorruptIndex)
	}
	i := offset / CheckpointSpacing
	if i >= int64(len(idx.Checkpoints)) {
		i = int64(len(idx.Checkpoints)) - 1
	}
	return idx.Checkpoints[i], nil
}

// LastLogicalOffset reports the logical offset of the final checkpoint; the
// true uncompressed size is this value plus however many bytes remain in
// the final block, determined by exhausting reads from that checkpoint.
func (idx *Index) LastLogicalOffset() (int64, error) {
	if len(idx.Checkpoints) == 0 {
		return 0, fmt.Errorf("%w: empty index", ErrCorruptIndex)
	}
	return idx.Checkpoints[len(idx.Checkpoints)-1].Logical, nil
}

// Build scans an ECM stream (positioned so that src's byte 4 is the first
// tag, i.e. src includes the "ECM\0" magic) and writes a complete ".edi"
// index to w. It mirrors the one-pass checkpoint-boundary algorithm of the
// reference index builder: a checkpoint is emitted at the start of the
// first block whose end would cross the next 64 KiB logical boundary,
// repeated for every boundary a single block spans.
func Build(src io.ReaderAt, w io.Writer) error {
	var entryCount uint32
	emit := func(logical, ecm int64) error {
		var rec [EntrySize]byte
		binary.LittleEndian.PutUint64(rec[0:8], uint64(logical))
		binary.LittleEndian.PutUint64(rec[8:16], uint64(ecm))
		if _, err := w.Write(rec[:]); err != nil {
			return fmt.Errorf("ecmindex: writing entry: %w", err)
		}
		entryCount++
		return nil
	}

	if _, err := w.Write(make([]byte, HeaderSize)); err != nil {
		return fmt.Errorf("ecmindex: writing header: %w", err)
	}

	var logicalOffset, ecmOffset int64 = 0, 4
	nextBoundary := int64(CheckpointSpacing)
	if err := emit(logicalOffset, ecmOffset); err != nil {
		return err
	}

	for {
		current := ecmOffset
		typ, rawCount, next, err := tag.ReadTag(src, ecmOffset)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTruncatedStream, err)
		}
		if rawCount == tag.Sentinel {
			break
		}
		count := int64(rawCount) + 1

		payloadUnit, err := tag.PayloadBytes(typ)
		if err != nil {
			return err
		}
		logicalUnit, err := tag.LogicalBytes(typ)
		if err != nil {
			return err
		}

		var logicalSize, ecmSize int64
		if typ == tag.Bytes {
			logicalSize = count
			ecmSize = count
		} else {
			logicalSize = int64(logicalUnit) * count
			ecmSize = int64(payloadUnit) * count
		}

		if logicalOffset+logicalSize < logicalOffset {
			return fmt.Errorf("%w: logical offset overflow", ErrCorruptIndex)
		}

		for logicalOffset+logicalSize >= nextBoundary {
			if err := emit(logicalOffset, current); err != nil {
				return err
			}
			nextBoundary += CheckpointSpacing
		}

		logicalOffset += logicalSize
		ecmOffset = next + ecmSize
	}

	countBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(countBytes, entryCount)
	if ws, ok := w.(io.WriteSeeker); ok {
		if _, err := ws.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("ecmindex: seeking to back-patch header: %w", err)
		}
		if _, err := ws.Write(countBytes); err != nil {
			return fmt.Errorf("ecmindex: back-patching header: %w", err)
		}
		return nil
	}

	return fmt.Errorf("ecmindex: destination does not support back-patching the header (need io.WriteSeeker)")
}

// BuildFile opens ecmPath, verifies its ECM magic, and writes ecmPath+".edi"
// alongside it. It is the single-file convenience wrapper around Build.
func BuildFile(ecmPath string) error {
	f, err := os.Open(ecmPath) //nolint:gosec // ecmPath is caller-supplied, same trust level as os.Open elsewhere in this module
	if err != nil {
		return fmt.Errorf("ecmindex: open %s: %w", ecmPath, err)
	}
	defer func() { _ = f.Close() }()

	var magic [4]byte
	if _, err := f.ReadAt(magic[:], 0); err != nil || string(magic[:3]) != "ECM" {
		return fmt.Errorf("ecmindex: %s: missing ECM magic", ecmPath)
	}

	out, err := os.Create(ecmPath + ".edi") //nolint:gosec // ecmPath is caller-supplied, same trust level as os.Create elsewhere in this module
	if err != nil {
		return fmt.Errorf("ecmindex: create index: %w", err)
	}

	if err := Build(f, out); err != nil {
		_ = out.Close()
		_ = os.Remove(ecmPath + ".edi")
		return fmt.Errorf("ecmindex: build index: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("ecmindex: close index: %w", err)
	}

	return nil
}
