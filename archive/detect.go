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

package archive

import (
	"fmt"
	"path/filepath"
	"strings"
)

// IsECMExtension reports whether filename ends in the ECM stream extension.
func IsECMExtension(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".ecm"
}

// IsIndexExtension reports whether filename ends in the seek index
// extension ("X.ecm.edi").
func IsIndexExtension(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".ecm.edi")
}

// IsCHDExtension reports whether filename ends in the CHD overlay-source
// extension.
func IsCHDExtension(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".chd"
}

// DetectECMFiles finds every ".ecm" member in an archive.
func DetectECMFiles(arc Archive) ([]string, error) {
	files, err := arc.List()
	if err != nil {
		return nil, fmt.Errorf("list archive files: %w", err)
	}

	var found []string
	for _, file := range files {
		if IsECMExtension(file.Name) {
			found = append(found, file.Name)
		}
	}
	if len(found) == 0 {
		return nil, NoECMFilesError{Archive: "archive"}
	}
	return found, nil
}

// HasMatchingIndex reports whether path+".edi" is present among an
// archive's members, i.e. whether an ".ecm" member is ready to be
// reconstructed without first running the index builder.
func HasMatchingIndex(arc Archive, ecmPath string) (bool, error) {
	files, err := arc.List()
	if err != nil {
		return false, fmt.Errorf("list archive files: %w", err)
	}
	want := ecmPath + ".edi"
	for _, file := range files {
		if file.Name == want {
			return true, nil
		}
	}
	return false, nil
}
