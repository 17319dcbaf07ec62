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

// Package eccedc computes the CRC-32 error detection code and the
// Reed-Solomon P/Q error correction codes used by CD-ROM Mode 1 and
// Mode 2 Form 1 sectors.
package eccedc

import "sync"

var (
	initOnce sync.Once
	fLUT     [256]byte
	bLUT     [256]byte
	edcLUT   [256]uint32
)

// Init builds the ECC/EDC lookup tables. Safe to call from multiple
// goroutines; the tables are computed exactly once.
func Init() {
	initOnce.Do(func() {
		for i := 0; i < 256; i++ {
			j := i << 1
			if i&0x80 != 0 {
				j ^= 0x11D
			}
			fLUT[i] = byte(j)
			bLUT[i^j&0xFF] = byte(i)

			edc := uint32(i)
			for b := 0; b < 8; b++ {
				if edc&1 != 0 {
					edc = (edc >> 1) ^ 0xD8018001
				} else {
					edc >>= 1
				}
			}
			edcLUT[i] = edc
		}
	})
}

// EDC folds src into a running CRC-32 (poly 0xD8018001, reflected, no final
// XOR). Pass 0 as the running value to start a new computation.
func EDC(running uint32, src []byte) uint32 {
	Init()
	for _, b := range src {
		running = (running >> 8) ^ edcLUT[(running^uint32(b))&0xFF]
	}
	return running
}

// ComputeEDC computes the little-endian 4-byte EDC of src.
func ComputeEDC(src []byte) [4]byte {
	edc := EDC(0, src)
	return [4]byte{
		byte(edc),
		byte(edc >> 8),
		byte(edc >> 16),
		byte(edc >> 24),
	}
}

// ComputeBlock computes one Reed-Solomon parity pass (P or Q, depending on
// the caller's major/minor parameters) over src and writes majorCount bytes
// of "a" parity followed by majorCount bytes of "a^b" parity into dest.
// dest must have at least 2*majorCount bytes of room.
func ComputeBlock(src []byte, majorCount, minorCount, majorMult, minorInc int, dest []byte) {
	Init()
	size := majorCount * minorCount

	for major := 0; major < majorCount; major++ {
		index := (major>>1)*majorMult + (major & 1)
		var eccA, eccB byte

		for minor := 0; minor < minorCount; minor++ {
			temp := src[index]
			index += minorInc
			if index >= size {
				index -= size
			}
			eccA ^= temp
			eccB ^= temp
			eccA = fLUT[eccA]
		}
		eccA = bLUT[fLUT[eccA]^eccB]
		dest[major] = eccA
		dest[major+majorCount] = eccA ^ eccB
	}
}
