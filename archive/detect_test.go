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

package archive_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/go-unecm/unecm/archive"
)

func TestIsECMExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename string
		want     bool
	}{
		{"game.ecm", true},
		{"GAME.ECM", true},
		{"disc/game.ecm", true},
		{"game.ecm.edi", false},
		{"game.chd", false},
		{"readme.txt", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			t.Parallel()
			if got := archive.IsECMExtension(tt.filename); got != tt.want {
				t.Errorf("IsECMExtension(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestIsIndexExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename string
		want     bool
	}{
		{"game.ecm.edi", true},
		{"GAME.ECM.EDI", true},
		{"game.ecm", false},
		{"game.edi", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			t.Parallel()
			if got := archive.IsIndexExtension(tt.filename); got != tt.want {
				t.Errorf("IsIndexExtension(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestIsCHDExtension(t *testing.T) {
	t.Parallel()

	if !archive.IsCHDExtension("disc.chd") {
		t.Error("expected disc.chd to be a CHD file")
	}
	if archive.IsCHDExtension("disc.ecm") {
		t.Error("did not expect disc.ecm to be a CHD file")
	}
}

func TestDetectECMFilesFindsMember(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	files := map[string][]byte{
		"readme.txt": []byte("readme"),
		"game.ecm":   make([]byte, 100),
		"notes.doc":  []byte("notes"),
	}
	zipPath := createTestZIP(t, tmpDir, "discs.zip", files)

	arc, err := archive.Open(zipPath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer func() { _ = arc.Close() }()

	found, err := archive.DetectECMFiles(arc)
	if err != nil {
		t.Fatalf("detect ecm files: %v", err)
	}
	if len(found) != 1 || found[0] != "game.ecm" {
		t.Errorf("got %v, want [\"game.ecm\"]", found)
	}
}

func TestDetectECMFilesNoneFound(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	files := map[string][]byte{
		"readme.txt": []byte("readme"),
		"notes.doc":  []byte("notes"),
	}
	zipPath := createTestZIP(t, tmpDir, "nodiscs.zip", files)

	arc, err := archive.Open(zipPath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer func() { _ = arc.Close() }()

	_, err = archive.DetectECMFiles(arc)
	if err == nil {
		t.Error("expected error for archive with no .ecm members")
	}

	var noECMErr archive.NoECMFilesError
	if !errors.As(err, &noECMErr) {
		t.Errorf("expected NoECMFilesError, got %T", err)
	}
}

func TestDetectECMFilesMultipleMembers(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	files := map[string][]byte{
		"disc1.ecm": make([]byte, 100),
		"disc2.ecm": make([]byte, 200),
	}
	zipPath := createTestZIP(t, tmpDir, "multidisc.zip", files)

	arc, err := archive.Open(zipPath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer func() { _ = arc.Close() }()

	found, err := archive.DetectECMFiles(arc)
	if err != nil {
		t.Fatalf("detect ecm files: %v", err)
	}
	sort.Strings(found)
	if len(found) != 2 || found[0] != "disc1.ecm" || found[1] != "disc2.ecm" {
		t.Errorf("got %v, want [disc1.ecm disc2.ecm]", found)
	}
}

func TestHasMatchingIndex(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	files := map[string][]byte{
		"disc.ecm":     make([]byte, 100),
		"disc.ecm.edi": make([]byte, 24),
	}
	zipPath := createTestZIP(t, tmpDir, "indexed.zip", files)

	arc, err := archive.Open(zipPath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer func() { _ = arc.Close() }()

	ok, err := archive.HasMatchingIndex(arc, "disc.ecm")
	if err != nil {
		t.Fatalf("HasMatchingIndex: %v", err)
	}
	if !ok {
		t.Error("expected matching index to be found")
	}

	ok, err = archive.HasMatchingIndex(arc, "missing.ecm")
	if err != nil {
		t.Fatalf("HasMatchingIndex: %v", err)
	}
	if ok {
		t.Error("did not expect a match for missing.ecm")
	}
}
