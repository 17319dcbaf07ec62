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

// Command unecmfs exercises the overlay bridge directly with ls/cat/stat/files
// subcommands, standing in for a mounted filesystem (registering an actual
// FUSE mount is systems plumbing outside any library in this module).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-unecm/unecm"
	"github.com/go-unecm/unecm/pkg/bridge"
	"github.com/go-unecm/unecm/pkg/iso9660"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <ls|cat|stat|files> -dir <directory> <path>\n", os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	dir := fs.String("dir", "", "directory to overlay (required)")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(1)
	}

	if *dir == "" {
		usage()
		os.Exit(1)
	}

	if unecm.IsBlockDevice(*dir) {
		fmt.Fprintf(os.Stderr, "unecmfs: %s is a raw block device, not a directory\n", *dir)
		os.Exit(1)
	}

	overlay, err := bridge.NewOverlay(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unecmfs: %v\n", err)
		os.Exit(1)
	}

	var runErr error
	switch cmd {
	case "ls":
		runErr = runLs(overlay, fs.Arg(0))
	case "cat":
		runErr = catTo(os.Stdout, overlay, fs.Arg(0))
	case "stat":
		runErr = runStat(overlay, fs.Arg(0))
	case "files":
		runErr = runFiles(overlay, fs.Arg(0))
	default:
		usage()
		os.Exit(1)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "unecmfs: %v\n", runErr)
		os.Exit(1)
	}
}

func runLs(overlay *bridge.Overlay, path string) error {
	if path == "" {
		path = "."
	}
	entries, err := overlay.ReadDir(path)
	if err != nil {
		return fmt.Errorf("ls %s: %w", path, err)
	}
	for _, e := range entries {
		fmt.Printf("%10d  %s\n", e.Size(), e.Name())
	}
	return nil
}

func catTo(w io.Writer, overlay *bridge.Overlay, path string) error {
	if path == "" {
		return fmt.Errorf("cat: path required")
	}
	f, err := overlay.Open(path)
	if err != nil {
		return fmt.Errorf("cat %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("cat %s: %w", path, err)
	}

	const chunk = 1 << 20
	buf := make([]byte, chunk)
	var off int64
	for off < info.Size() {
		n, err := f.ReadAt(buf, off)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			off += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("cat %s: %w", path, err)
		}
	}
	return nil
}

// runFiles opens an overlaid disc image and lists the files inside its
// ISO9660 filesystem, not just the directory entry the overlay exposes.
func runFiles(overlay *bridge.Overlay, path string) error {
	if path == "" {
		return fmt.Errorf("files: path required")
	}
	f, err := overlay.Open(path)
	if err != nil {
		return fmt.Errorf("files %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("files %s: %w", path, err)
	}

	disc, err := iso9660.Open(f, info.Size())
	if err != nil {
		return fmt.Errorf("files %s: %w", path, err)
	}

	entries, err := disc.ListFiles(true)
	if err != nil {
		return fmt.Errorf("files %s: %w", path, err)
	}
	for _, e := range entries {
		fmt.Printf("%10d  %s\n", e.Size, e.Name)
	}
	return nil
}

func runStat(overlay *bridge.Overlay, path string) error {
	if path == "" {
		return fmt.Errorf("stat: path required")
	}
	info, err := overlay.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	fmt.Printf("name:  %s\n", filepath.Base(info.Name()))
	fmt.Printf("size:  %d\n", info.Size())
	fmt.Printf("mode:  %s\n", info.Mode())
	return nil
}
