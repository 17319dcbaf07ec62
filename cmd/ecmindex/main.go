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

// Command ecmindex builds the ".edi" seek index for an ECM stream, either a
// plain file on disk or a member inside a ZIP/7z/RAR archive.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-unecm/unecm/archive"
	"github.com/go-unecm/unecm/pkg/ecmindex"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <path-to-ecm>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "       %s -archive <path-to-zip|7z|rar>\n", os.Args[0])
}

func main() {
	archivePath := flag.String("archive", "", "build indexes for every .ecm member of this archive")
	flag.Usage = usage
	flag.Parse()

	var err error
	if *archivePath != "" {
		err = buildFromArchive(*archivePath)
	} else {
		if flag.NArg() != 1 {
			usage()
			os.Exit(1)
		}
		err = buildFromFile(flag.Arg(0))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ecmindex: %v\n", err)
		os.Exit(1)
	}
}

// buildFromFile verifies the ECM magic and writes path+".edi" in the same directory.
func buildFromFile(path string) error {
	if err := ecmindex.BuildFile(path); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "wrote %s.edi\n", path)
	return nil
}

// buildFromArchive walks an archive, builds an in-memory index for every
// ".ecm" member, and writes each "<member>.edi" next to a local extraction
// of the member. The archive itself is never modified (writing inside the
// compressed container remains out of scope).
func buildFromArchive(path string) error {
	arc, err := archive.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = arc.Close() }()

	members, err := archive.DetectECMFiles(arc)
	if err != nil {
		return fmt.Errorf("detect .ecm members: %w", err)
	}

	outDir, err := os.MkdirTemp("", "ecmindex-extract-")
	if err != nil {
		return fmt.Errorf("create extraction directory: %w", err)
	}
	fmt.Fprintf(os.Stdout, "extracting %d member(s) to %s\n", len(members), outDir)

	for _, member := range members {
		reader, size, closer, err := arc.OpenReaderAt(member)
		if err != nil {
			return fmt.Errorf("open %s: %w", member, err)
		}

		data := make([]byte, size)
		if _, err := reader.ReadAt(data, 0); err != nil && err != io.EOF {
			_ = closer.Close()
			return fmt.Errorf("read %s: %w", member, err)
		}
		_ = closer.Close()

		if string(data[:min(4, len(data))]) != "ECM\x00" {
			fmt.Fprintf(os.Stderr, "skipping %s: missing ECM magic\n", member)
			continue
		}

		localPath := filepath.Join(outDir, filepath.Base(member))
		if err := os.WriteFile(localPath, data, 0o644); err != nil {
			return fmt.Errorf("extract %s: %w", member, err)
		}

		out, err := os.Create(localPath + ".edi")
		if err != nil {
			return fmt.Errorf("create index for %s: %w", member, err)
		}
		if err := ecmindex.Build(bytes.NewReader(data), out); err != nil {
			_ = out.Close()
			return fmt.Errorf("build index for %s: %w", member, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("close index for %s: %w", member, err)
		}
		fmt.Fprintf(os.Stdout, "wrote %s.edi\n", localPath)
	}

	return nil
}
