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

// Package sector fills CD-ROM sector templates from the compressed payload
// bytes an ECM block carries, reconstructing the sync pattern, address,
// mode byte, subheader, and EDC/ECC fields byte-exactly.
package sector

import (
	"errors"
	"fmt"

	"github.com/go-unecm/unecm/pkg/eccedc"
)

// Type identifies which CD-ROM sector layout to reconstruct.
type Type uint8

const (
	Bytes Type = iota
	Mode1
	Mode2Form1
	Mode2Form2
)

// Size is the fixed length of a reconstructed CD-ROM sector.
const Size = 2352

// ErrShortPayload is returned when the payload passed to Reconstruct is
// smaller than the block type requires.
var ErrShortPayload = errors.New("sector: payload too short")

// ErrUnknownType is returned for a Type outside {Bytes, Mode1, Mode2Form1, Mode2Form2}.
var ErrUnknownType = errors.New("sector: unknown type")

// PayloadLen returns the compressed payload size Reconstruct requires for typ.
// Bytes blocks have no fixed payload length; callers pass the block's own length.
func PayloadLen(typ Type) (int, error) {
	switch typ {
	case Mode1:
		return 0x803, nil
	case Mode2Form1:
		return 0x804, nil
	case Mode2Form2:
		return 0x918, nil
	case Bytes:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
}

// Reconstruct fills a 2352-byte sector template from payload. For Bytes, the
// payload is returned unchanged (no template, no fixed length). EDC/ECC are
// always computed, even when the caller ultimately wants only the user-data
// slice, so that the full sector remains available bit-exact.
func Reconstruct(typ Type, payload []byte) ([]byte, error) {
	switch typ {
	case Bytes:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil

	case Mode1:
		if len(payload) < 0x803 {
			return nil, fmt.Errorf("%w: mode1 needs %d, got %d", ErrShortPayload, 0x803, len(payload))
		}
		sector := make([]byte, Size)
		sector[0x00] = 0x00
		for i := 0x01; i <= 0x0A; i++ {
			sector[i] = 0xFF
		}
		sector[0x0B] = 0x00
		copy(sector[0x0C:0x0F], payload[0:3])
		sector[0x0F] = 0x01
		copy(sector[0x10:0x810], payload[3:0x803])

		edc := eccedc.ComputeEDC(sector[0x00:0x810])
		copy(sector[0x810:0x814], edc[:])
		for i := 0x814; i < 0x81C; i++ {
			sector[i] = 0
		}
		eccedc.ComputeBlock(sector[0x0C:0x0C+2340], 86, 24, 2, 86, sector[0x81C:0x81C+172])
		eccedc.ComputeBlock(sector[0x0C:0x0C+2340], 52, 43, 86, 88, sector[0x8C8:0x8C8+104])
		return sector, nil

	case Mode2Form1:
		if len(payload) < 0x804 {
			return nil, fmt.Errorf("%w: mode2form1 needs %d, got %d", ErrShortPayload, 0x804, len(payload))
		}
		sector := make([]byte, Size)
		sector[0x00] = 0x00
		for i := 0x01; i <= 0x0A; i++ {
			sector[i] = 0xFF
		}
		sector[0x0B] = 0x00
		sector[0x0F] = 0x02
		copy(sector[0x10:0x14], payload[0:4])
		copy(sector[0x14:0x18], payload[0:4])
		copy(sector[0x18:0x818], payload[4:0x804])

		edc := eccedc.ComputeEDC(sector[0x10:0x818])
		copy(sector[0x818:0x81C], edc[:])

		var addr [4]byte
		copy(addr[:], sector[0x0C:0x10])
		for i := 0x0C; i < 0x10; i++ {
			sector[i] = 0
		}
		eccedc.ComputeBlock(sector[0x0C:0x0C+2340], 86, 24, 2, 86, sector[0x81C:0x81C+172])
		eccedc.ComputeBlock(sector[0x0C:0x0C+2340], 52, 43, 86, 88, sector[0x8C8:0x8C8+104])
		copy(sector[0x0C:0x10], addr[:])
		return sector, nil

	case Mode2Form2:
		if len(payload) < 0x918 {
			return nil, fmt.Errorf("%w: mode2form2 needs %d, got %d", ErrShortPayload, 0x918, len(payload))
		}
		sector := make([]byte, Size)
		sector[0x00] = 0x00
		for i := 0x01; i <= 0x0A; i++ {
			sector[i] = 0xFF
		}
		sector[0x0B] = 0x00
		sector[0x0F] = 0x02
		copy(sector[0x10:0x14], payload[0:4])
		copy(sector[0x14:0x18], payload[0:4])
		copy(sector[0x18:0x92C], payload[4:0x918])

		edc := eccedc.ComputeEDC(sector[0x10:0x92C])
		copy(sector[0x92C:0x930], edc[:])
		return sector, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
}

// UserDataSlice returns the portion of a reconstructed sector visible to
// readers that only want the logical (decompressed) bytes: the full sector
// for Mode 1, and the post-sync region for Mode 2 variants.
func UserDataSlice(typ Type, sector []byte) ([]byte, error) {
	switch typ {
	case Mode1:
		return sector[0x00:Size], nil
	case Mode2Form1, Mode2Form2:
		return sector[0x10:Size], nil
	case Bytes:
		return sector, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
}
