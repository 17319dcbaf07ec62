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

// Package unecm provides transparent, random-access decompression of
// CD-ROM images stored in the ECM (Error Code Modeler) format. An Image
// opened against an "X.ecm" file with a matching "X.ecm.edi" index behaves
// like a read-only, fully reconstructed binary image: callers read at
// arbitrary byte offsets without materializing the decompressed data on
// disk.
package unecm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-unecm/unecm/internal/tag"
	"github.com/go-unecm/unecm/pkg/eccedc"
	"github.com/go-unecm/unecm/pkg/ecmindex"
	"github.com/go-unecm/unecm/pkg/sector"
)

// magic is the 4-byte prefix every ECM stream must begin with.
var magic = [4]byte{'E', 'C', 'M', 0x00}

// indexSuffix is appended to the ECM path to name its companion seek index.
const indexSuffix = ".edi"

var (
	// ErrMissingMagic is returned when a file does not begin with "ECM\0".
	ErrMissingMagic = errors.New("unecm: missing ECM magic")
	// ErrMissingIndex is returned when the ".edi" companion cannot be opened.
	ErrMissingIndex = errors.New("unecm: missing index file")
	// ErrCorruptIndex is returned when the index header or payload is malformed.
	ErrCorruptIndex = ecmindex.ErrCorruptIndex
	// ErrTruncatedStream is returned by Image reads when a sector block's
	// payload is shorter than its tag declares, and by ecmindex.Build when a
	// tag read hits EOF before the sentinel. Image reads treat EOF at a tag
	// boundary as clean end of stream.
	ErrTruncatedStream = ecmindex.ErrTruncatedStream
	// ErrUnknownBlockType is returned for a tag type outside {0,1,2,3}.
	ErrUnknownBlockType = tag.ErrUnknownType
)

var tablesOnce sync.Once

// Image is an open ECM stream paired with its seek index. An Image is safe
// for concurrent ReadAt calls: every read re-derives its cursor from the
// logical offset argument rather than tracking a shared position.
type Image struct {
	ecm    *os.File
	idx    *ecmindex.Index
	size   int64
	mu     sync.Mutex // guards closed so Close is idempotent; ReadAt does not take it
	closed bool
}

// Open opens relPath within root as an ECM image, requiring a sibling
// "relPath.edi" index in the same directory. Go's os.Root confines both
// opens to the directory tree root was created against, the idiomatic
// substitute for the original C library's (dir_fd, relative_path) contract.
func Open(root *os.Root, relPath string) (*Image, error) {
	ecmFile, err := root.Open(relPath)
	if err != nil {
		return nil, fmt.Errorf("unecm: open %s: %w", relPath, err)
	}

	img := &Image{ecm: ecmFile}
	if err := img.init(root, relPath); err != nil {
		_ = ecmFile.Close()
		return nil, err
	}
	return img, nil
}

func (img *Image) init(root *os.Root, relPath string) error {
	var buf [4]byte
	if _, err := img.ecm.ReadAt(buf[:], 0); err != nil {
		return fmt.Errorf("%w: %v", ErrMissingMagic, err)
	}
	if buf != magic {
		return fmt.Errorf("%w: %s", ErrMissingMagic, relPath)
	}

	idxFile, err := root.Open(relPath + indexSuffix)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingIndex, err)
	}
	defer func() { _ = idxFile.Close() }()

	idx, err := ecmindex.Load(idxFile)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	img.idx = idx

	size, err := img.determineSize()
	if err != nil {
		return err
	}
	img.size = size

	tablesOnce.Do(eccedc.Init)
	return nil
}

// determineSize walks forward from the last checkpoint in 4096-byte chunks
// until a zero-byte read signals the stream's terminator.
func (img *Image) determineSize() (int64, error) {
	last, err := img.idx.LastLogicalOffset()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	offset := last
	buf := make([]byte, 4096)
	for {
		n, err := img.readAtLocked(buf, offset)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return offset, nil
		}
		offset += int64(n)
	}
}

// Close releases the underlying file descriptor. Idempotent.
func (img *Image) Close() error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.closed {
		return nil
	}
	img.closed = true
	if err := img.ecm.Close(); err != nil {
		return fmt.Errorf("unecm: close: %w", err)
	}
	return nil
}

// Size returns the uncompressed (logical) byte count of the image.
func (img *Image) Size() int64 {
	return img.size
}

// ReadAt implements io.ReaderAt over the logical (decompressed) image.
// A return of (0, nil) never happens for len(p) > 0 at end of file;
// instead io.EOF is returned once no more bytes are available, matching
// io.ReaderAt's contract (the reconstruction loop, unlike the reference
// read(2)-based contract, reports clean EOF this way).
func (img *Image) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("unecm: negative offset %d", off)
	}
	n, err := img.readAtLocked(p, off)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// readAtLocked performs the core read(offset, length) loop described by the
// random-access reader component: repeatedly locate the block containing
// the current offset, reconstruct as many bytes as that block can supply,
// and advance until the request is satisfied or the stream is exhausted.
func (img *Image) readAtLocked(p []byte, off int64) (int, error) {
	var total int
	for len(p) > 0 {
		n, err := img.readOneBlock(p, off)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
		off += int64(n)
		p = p[n:]
	}
	return total, nil
}

// readOneBlock locates the ECM block containing off, reconstructs it, and
// copies as many bytes as the block can supply (bounded by both len(p) and
// the block's remaining logical bytes) into p.
func (img *Image) readOneBlock(p []byte, off int64) (int, error) {
	cp, err := img.idx.Lookup(off)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	logicalOffset := cp.Logical
	ecmOffset := cp.ECM

	for {
		typ, rawCount, next, err := tag.ReadTag(img.ecm, ecmOffset)
		if err != nil {
			return 0, nil // clean EOF: no more blocks at/after this checkpoint
		}
		if rawCount == tag.Sentinel {
			return 0, nil
		}
		count := int64(rawCount) + 1

		payloadUnit, err := tag.PayloadBytes(typ)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnknownBlockType, err)
		}
		logicalUnit, err := tag.LogicalBytes(typ)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnknownBlockType, err)
		}

		var blockLogical, blockPayload int64
		if typ == tag.Bytes {
			blockLogical = count
			blockPayload = count
		} else {
			blockLogical = int64(logicalUnit) * count
			blockPayload = int64(payloadUnit) * count
		}

		if off < logicalOffset+blockLogical {
			skip := off - logicalOffset
			return img.readWithinBlock(p, typ, next, skip, int64(logicalUnit), int64(payloadUnit), blockPayload)
		}

		logicalOffset += blockLogical
		ecmOffset = next + blockPayload
	}
}

// readWithinBlock reconstructs the single logical unit (sector, or the
// verbatim BYTES run) containing skip bytes into the block, and copies up
// to len(p) bytes starting at that residual offset.
func (img *Image) readWithinBlock(p []byte, typ tag.Type, payloadStart, skip, logicalUnit, payloadUnit, blockPayload int64) (int, error) {
	if typ == tag.Bytes {
		avail := blockPayload - skip
		if avail <= 0 {
			return 0, nil
		}
		n := int64(len(p))
		if n > avail {
			n = avail
		}
		buf := make([]byte, n)
		read, err := img.ecm.ReadAt(buf, payloadStart+skip)
		if err != nil && err != io.EOF {
			return 0, fmt.Errorf("%w: %v", ErrTruncatedStream, err)
		}
		copy(p, buf[:read])
		return read, nil
	}

	unitIndex := skip / logicalUnit
	unitSkip := skip % logicalUnit

	payload := make([]byte, payloadUnit)
	if _, err := img.ecm.ReadAt(payload, payloadStart+unitIndex*payloadUnit); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncatedStream, err)
	}

	reconstructed, err := sector.Reconstruct(sectorType(typ), payload)
	if err != nil {
		return 0, fmt.Errorf("unecm: reconstruct: %w", err)
	}
	visible, err := sector.UserDataSlice(sectorType(typ), reconstructed)
	if err != nil {
		return 0, fmt.Errorf("unecm: reconstruct: %w", err)
	}

	avail := int64(len(visible)) - unitSkip
	if avail <= 0 {
		return 0, nil
	}
	n := int64(len(p))
	if n > avail {
		n = avail
	}
	copy(p, visible[unitSkip:unitSkip+n])
	return int(n), nil
}

// sectorType converts a tag.Type to the identically-numbered sector.Type;
// the two enumerations are defined in lockstep (Bytes=0, Mode1=1,
// Mode2Form1=2, Mode2Form2=3) per the wire format in §3 of the specification.
func sectorType(typ tag.Type) sector.Type {
	return sector.Type(typ)
}
