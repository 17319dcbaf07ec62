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

// Package tag reads and writes the variable-length (type, count) tags that
// introduce every block of an ECM stream.
package tag

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/icza/bitio"

	"github.com/go-unecm/unecm/internal/binary"
)

// Type identifies the kind of block a tag introduces.
type Type uint8

const (
	// Bytes is a verbatim passthrough block: payload equals logical output.
	Bytes Type = 0
	// Mode1 is a Mode 1 CD-ROM sector (2352 logical bytes from 0x803 payload bytes).
	Mode1 Type = 1
	// Mode2Form1 is a Mode 2 Form 1 sector (2336 logical bytes from 0x804 payload bytes).
	Mode2Form1 Type = 2
	// Mode2Form2 is a Mode 2 Form 2 sector (2336 logical bytes from 0x918 payload bytes).
	Mode2Form2 Type = 3
)

// Sentinel is the raw count value that marks the end of the block stream.
const Sentinel uint32 = 0xFFFFFFFF

// ErrUnknownType is returned when a tag's type bits do not map to a known block type.
// Structurally impossible (type occupies 2 bits, all 4 values are defined) but checked
// defensively, per spec.
var ErrUnknownType = errors.New("tag: unknown block type")

// PayloadBytes returns the per-unit compressed payload size for typ.
func PayloadBytes(typ Type) (int, error) {
	switch typ {
	case Bytes:
		return 1, nil // BYTES payload size is count-dependent; 1 is the per-unit size used by callers that scale by count.
	case Mode1:
		return 0x803, nil
	case Mode2Form1:
		return 0x804, nil
	case Mode2Form2:
		return 0x918, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
}

// LogicalBytes returns the per-unit logical (decompressed) size for typ.
func LogicalBytes(typ Type) (int, error) {
	switch typ {
	case Bytes:
		return 1, nil
	case Mode1:
		return 2352, nil
	case Mode2Form1, Mode2Form2:
		return 2336, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
}

// ReadTag reads one tag at pos using positional I/O and returns the decoded
// type, raw count (the caller applies +1 unless count is Sentinel), and the
// offset immediately following the tag's last byte.
//
// The continuation loop stops when the last byte read has bit 7 clear. Bit
// position starts at 5 (the first byte carries 5 count bits above the 2 type
// bits) and grows by 7 per continuation byte, accumulated into a uint32 to
// match the encoder (spec's varint width note).
func ReadTag(r io.ReaderAt, pos int64) (typ Type, count uint32, next int64, err error) {
	c, err := binary.ReadUint8At(r, pos)
	if err != nil {
		return 0, 0, pos, io.EOF
	}
	pos++

	typ = Type(c & 0x3)
	count = uint32(c>>2) & 0x1F
	bits := uint(5)

	for c&0x80 != 0 {
		c, err = binary.ReadUint8At(r, pos)
		if err != nil {
			return 0, 0, pos, io.EOF
		}
		pos++
		count |= uint32(c&0x7F) << bits
		bits += 7
	}

	return typ, count, pos, nil
}

// EncodeTag is the bitwise inverse of ReadTag: it produces the tag bytes for
// (typ, count). Used to build test fixtures and to prove the round-trip
// invariant ReadTag(EncodeTag(t, c)) == (t, c); not needed by the decoder
// itself (spec.md's Non-goals exclude writing ECM streams in general, but a
// single-tag encoder is the minimum machinery a property test needs).
func EncodeTag(typ Type, count uint32) []byte {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)

	first := byte(typ) & 0x3
	first |= byte(count&0x1F) << 2
	count >>= 5

	more := count != 0
	if more {
		first |= 0x80
	}
	_ = w.WriteByte(first)

	for more {
		chunk := byte(count & 0x7F)
		count >>= 7
		more = count != 0
		if more {
			chunk |= 0x80
		}
		_ = w.WriteByte(chunk)
	}

	_ = w.Close()
	return buf.Bytes()
}
