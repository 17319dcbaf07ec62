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

package binary

import (
	"bytes"
	"testing"
)

func TestReadUint8At(t *testing.T) {
	t.Parallel()

	data := []byte{0x00, 0x42, 0xFF, 0x80}
	reader := bytes.NewReader(data)

	tests := []struct {
		name    string
		offset  int64
		want    uint8
		wantErr bool
	}{
		{"first byte (0x00)", 0, 0x00, false},
		{"second byte (0x42)", 1, 0x42, false},
		{"third byte (0xFF)", 2, 0xFF, false},
		{"fourth byte (0x80)", 3, 0x80, false},
		{"past end", 4, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ReadUint8At(reader, tt.offset)
			if (err != nil) != tt.wantErr {
				t.Errorf("ReadUint8At() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ReadUint8At() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestReadBytesAt(t *testing.T) {
	t.Parallel()

	data := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}
	reader := bytes.NewReader(data)

	tests := []struct {
		name    string
		want    []byte
		offset  int64
		length  int
		wantErr bool
	}{
		{name: "read from start", offset: 0, length: 3, want: []byte{0x00, 0x01, 0x02}, wantErr: false},
		{name: "read from middle", offset: 2, length: 3, want: []byte{0x02, 0x03, 0x04}, wantErr: false},
		{name: "read to end", offset: 3, length: 3, want: []byte{0x03, 0x04, 0x05}, wantErr: false},
		{name: "read past end", offset: 4, length: 5, want: nil, wantErr: true},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := ReadBytesAt(reader, testCase.offset, testCase.length)
			if (err != nil) != testCase.wantErr {
				t.Errorf("ReadBytesAt() error = %v, wantErr %v", err, testCase.wantErr)
				return
			}
			if !testCase.wantErr && !bytes.Equal(got, testCase.want) {
				t.Errorf("ReadBytesAt() = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestCleanString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		want  string
		input []byte
	}{
		{name: "normal string", input: []byte("Hello"), want: "Hello"},
		{name: "with null terminator", input: []byte("Hello\x00World"), want: "Hello"},
		{name: "padded with nulls", input: []byte("Test\x00\x00\x00"), want: "Test"},
		{name: "with trailing spaces", input: []byte("Test   "), want: "Test"},
		{name: "with leading spaces", input: []byte("   Test"), want: "Test"},
		{name: "with both", input: []byte("  Test  \x00"), want: "Test"},
		{name: "empty", input: []byte{}, want: ""},
		{name: "only nulls", input: []byte{0, 0, 0}, want: ""},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := CleanString(testCase.input)
			if got != testCase.want {
				t.Errorf("CleanString() = %q, want %q", got, testCase.want)
			}
		})
	}
}

func TestExtractPrintable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		want  string
		input []byte
	}{
		{name: "normal ASCII", input: []byte("Hello"), want: "Hello"},
		{name: "with control chars", input: []byte("Hello\x01World"), want: "HelloWorld"},
		{name: "with high bytes", input: []byte("Test\x80\x90"), want: "Test"},
		{name: "spaces preserved", input: []byte("Hello World"), want: "Hello World"},
		{name: "numbers and symbols", input: []byte("Test123!@#"), want: "Test123!@#"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := ExtractPrintable(testCase.input)
			if got != testCase.want {
				t.Errorf("ExtractPrintable() = %q, want %q", got, testCase.want)
			}
		})
	}
}

func TestBytesEqual(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    []byte
		b    []byte
		want bool
	}{
		{"equal", []byte{1, 2, 3}, []byte{1, 2, 3}, true},
		{"not equal", []byte{1, 2, 3}, []byte{1, 2, 4}, false},
		{"different lengths", []byte{1, 2}, []byte{1, 2, 3}, false},
		{"empty both", []byte{}, []byte{}, true},
		{"empty one", []byte{}, []byte{1}, false},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := BytesEqual(testCase.a, testCase.b)
			if got != testCase.want {
				t.Errorf("BytesEqual() = %v, want %v", got, testCase.want)
			}
		})
	}
}
