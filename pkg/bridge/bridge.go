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

// Package bridge presents a directory containing "X.ecm"+"X.ecm.edi" pairs
// (or "X.chd" files) as an overlay afero.Fs in which each pair is visible
// under its logical name "X", fully reconstructed and randomly readable.
// It is the library equivalent of fuse-unecm.c's FUSE operation table,
// scoped to afero.Fs rather than a mounted kernel filesystem.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"

	"github.com/go-unecm/unecm"
	"github.com/go-unecm/unecm/chd"
)

const (
	ecmExt   = ".ecm"
	indexExt = ".ecm.edi"
	chdExt   = ".chd"
)

// ErrNotOverlaid names the case of a name with no compressed backing. No
// function in this package returns it; Overlay serves such names straight
// from the base filesystem.
var ErrNotOverlaid = errors.New("bridge: not an overlaid name")

// cacheSize bounds the path-classification memoization cache, the overlay
// analogue of fuse-unecm.c's tdb lookup table.
const cacheSize = 4096

// NeedsUncompress reports whether name should be served from a compressed
// sibling rather than directly: true iff name itself does not exist but
// name+".ecm" (with a matching ".ecm.edi") or name+".chd" does. This
// function does not cache; an Overlay memoizes its results per path, so
// callers must construct a fresh Overlay if the backing directory's
// compressed files change underneath it.
func NeedsUncompress(fsys afero.Fs, name string) (bool, error) {
	if exists, err := afero.Exists(fsys, name); err != nil {
		return false, fmt.Errorf("bridge: stat %s: %w", name, err)
	} else if exists {
		return false, nil
	}

	if ok, err := afero.Exists(fsys, name+ecmExt); err != nil {
		return false, fmt.Errorf("bridge: stat %s: %w", name+ecmExt, err)
	} else if ok {
		if idx, err := afero.Exists(fsys, name+indexExt); err != nil {
			return false, fmt.Errorf("bridge: stat %s: %w", name+indexExt, err)
		} else if idx {
			return true, nil
		}
		return false, nil
	}

	if ok, err := afero.Exists(fsys, name+chdExt); err != nil {
		return false, fmt.Errorf("bridge: stat %s: %w", name+chdExt, err)
	} else if ok {
		return true, nil
	}

	return false, nil
}

// Overlay wraps a base directory so that compressed "X.ecm"/"X.chd" pairs
// are visible under their logical name "X".
type Overlay struct {
	base  afero.Fs
	dir   string
	cache *lru.Cache[string, bool]
}

// NewOverlay roots an Overlay at dir, a real filesystem directory.
func NewOverlay(dir string) (*Overlay, error) {
	cache, err := lru.New[string, bool](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("bridge: create cache: %w", err)
	}
	return &Overlay{
		base:  afero.NewBasePathFs(afero.NewOsFs(), dir),
		dir:   dir,
		cache: cache,
	}, nil
}

func (o *Overlay) needsUncompress(name string) (bool, error) {
	if v, ok := o.cache.Get(name); ok {
		return v, nil
	}
	v, err := NeedsUncompress(o.base, name)
	if err != nil {
		return false, err
	}
	o.cache.Add(name, v)
	return v, nil
}

// Open opens name, transparently serving the reconstructed image when name
// is backed by an ".ecm"+".ecm.edi" pair, the raw 2352-byte sectors when
// name is backed by a ".chd" file, and the plain file otherwise.
func (o *Overlay) Open(name string) (afero.File, error) {
	overlaid, err := o.needsUncompress(name)
	if err != nil {
		return nil, err
	}
	if !overlaid {
		return o.base.Open(name)
	}

	if exists, _ := afero.Exists(o.base, name+ecmExt); exists {
		root, err := os.OpenRoot(o.dir)
		if err != nil {
			return nil, fmt.Errorf("bridge: open root: %w", err)
		}
		img, err := unecm.Open(root, name+ecmExt)
		if err != nil {
			_ = root.Close()
			return nil, fmt.Errorf("bridge: open %s: %w", name, err)
		}
		return &imageFile{name: filepath.Base(name), img: img, root: root}, nil
	}

	if exists, _ := afero.Exists(o.base, name+chdExt); exists {
		img, err := chd.Open(filepath.Join(o.dir, name+chdExt))
		if err != nil {
			return nil, fmt.Errorf("bridge: open %s: %w", name, err)
		}
		header := img.Header()
		unitBytes := int64(header.UnitBytes)
		if unitBytes == 0 {
			unitBytes = 2448
		}
		units := int64(header.LogicalBytes) / unitBytes
		return &chdImageFile{
			name:   filepath.Base(name),
			img:    img,
			reader: img.RawSectorReader(),
			size:   units * 2352,
		}, nil
	}

	return nil, fmt.Errorf("bridge: %s: no compressed backing found", name)
}

// Stat reports the logical size and identity of name, resolving overlaid
// names to the reconstructed image's size rather than the compressed file's.
func (o *Overlay) Stat(name string) (os.FileInfo, error) {
	overlaid, err := o.needsUncompress(name)
	if err != nil {
		return nil, err
	}
	if !overlaid {
		return o.base.Stat(name)
	}

	f, err := o.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return f.Stat()
}

// ReadDir lists dir's entries, collapsing every "X.ecm"+"X.ecm.edi" pair
// into a single logical entry "X" and hiding the ".ecm"/".ecm.edi" files
// themselves, mirroring fuse_unecm_readdir.
func (o *Overlay) ReadDir(dir string) ([]os.FileInfo, error) {
	entries, err := afero.ReadDir(o.base, dir)
	if err != nil {
		return nil, fmt.Errorf("bridge: readdir %s: %w", dir, err)
	}

	hasIndex := make(map[string]bool)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), indexExt) {
			hasIndex[strings.TrimSuffix(e.Name(), ".edi")] = true
		}
	}

	var out []os.FileInfo
	seen := make(map[string]bool)
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), indexExt):
			continue
		case strings.HasSuffix(e.Name(), ecmExt) && hasIndex[e.Name()]:
			logical := strings.TrimSuffix(e.Name(), ecmExt)
			if seen[logical] {
				continue
			}
			seen[logical] = true
			info, err := o.Stat(filepath.Join(dir, logical))
			if err != nil {
				return nil, err
			}
			out = append(out, info)
		case strings.HasSuffix(e.Name(), chdExt):
			logical := strings.TrimSuffix(e.Name(), chdExt)
			if seen[logical] {
				continue
			}
			seen[logical] = true
			info, err := o.Stat(filepath.Join(dir, logical))
			if err != nil {
				return nil, err
			}
			out = append(out, info)
		default:
			if seen[e.Name()] {
				continue
			}
			seen[e.Name()] = true
			out = append(out, e)
		}
	}
	return out, nil
}

// imageFile adapts *unecm.Image to afero.File for the subset of the
// interface the overlay needs to support (ReadAt-backed random access,
// Stat, Close); directory and write operations are not meaningful for a
// reconstructed CD-ROM image and return errors.
type imageFile struct {
	name string
	img  *unecm.Image
	root *os.Root
}

func (f *imageFile) Name() string { return f.name }

func (f *imageFile) ReadAt(p []byte, off int64) (int, error) {
	return f.img.ReadAt(p, off)
}

func (f *imageFile) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("bridge: sequential Read not supported, use ReadAt")
}

func (f *imageFile) Seek(offset int64, whence int) (int64, error) {
	return 0, fmt.Errorf("bridge: Seek not supported, use ReadAt")
}

func (f *imageFile) Close() error {
	err := f.img.Close()
	if rerr := f.root.Close(); err == nil {
		err = rerr
	}
	return err
}

func (f *imageFile) Stat() (os.FileInfo, error) {
	return imageFileInfo{name: f.name, size: f.img.Size()}, nil
}

func (f *imageFile) Sync() error { return nil }

func (f *imageFile) Truncate(int64) error {
	return fmt.Errorf("bridge: %s is read-only", f.name)
}

func (f *imageFile) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("bridge: %s is read-only", f.name)
}

func (f *imageFile) WriteAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("bridge: %s is read-only", f.name)
}

func (f *imageFile) WriteString(s string) (int, error) {
	return 0, fmt.Errorf("bridge: %s is read-only", f.name)
}

func (f *imageFile) Readdir(count int) ([]os.FileInfo, error) {
	return nil, fmt.Errorf("bridge: %s is not a directory", f.name)
}

func (f *imageFile) Readdirnames(n int) ([]string, error) {
	return nil, fmt.Errorf("bridge: %s is not a directory", f.name)
}

// chdImageFile adapts a *chd.CHD's raw sector reader to afero.File, the
// CHD analogue of imageFile. Raw 2352-byte sectors are exposed verbatim;
// ECC/EDC reconstruction does not apply since CHD stores decompressed
// sector data directly.
type chdImageFile struct {
	name   string
	img    *chd.CHD
	reader io.ReaderAt
	size   int64
}

func (f *chdImageFile) Name() string { return f.name }

func (f *chdImageFile) ReadAt(p []byte, off int64) (int, error) {
	return f.reader.ReadAt(p, off)
}

func (f *chdImageFile) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("bridge: sequential Read not supported, use ReadAt")
}

func (f *chdImageFile) Seek(offset int64, whence int) (int64, error) {
	return 0, fmt.Errorf("bridge: Seek not supported, use ReadAt")
}

func (f *chdImageFile) Close() error {
	return f.img.Close()
}

func (f *chdImageFile) Stat() (os.FileInfo, error) {
	return imageFileInfo{name: f.name, size: f.size}, nil
}

func (f *chdImageFile) Sync() error { return nil }

func (f *chdImageFile) Truncate(int64) error {
	return fmt.Errorf("bridge: %s is read-only", f.name)
}

func (f *chdImageFile) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("bridge: %s is read-only", f.name)
}

func (f *chdImageFile) WriteAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("bridge: %s is read-only", f.name)
}

func (f *chdImageFile) WriteString(s string) (int, error) {
	return 0, fmt.Errorf("bridge: %s is read-only", f.name)
}

func (f *chdImageFile) Readdir(count int) ([]os.FileInfo, error) {
	return nil, fmt.Errorf("bridge: %s is not a directory", f.name)
}

func (f *chdImageFile) Readdirnames(n int) ([]string, error) {
	return nil, fmt.Errorf("bridge: %s is not a directory", f.name)
}

// imageFileInfo is the minimal os.FileInfo for a reconstructed image.
type imageFileInfo struct {
	name string
	size int64
}

func (i imageFileInfo) Name() string       { return i.name }
func (i imageFileInfo) Size() int64        { return i.size }
func (i imageFileInfo) Mode() os.FileMode  { return 0o444 }
func (i imageFileInfo) ModTime() time.Time { return time.Time{} }
func (i imageFileInfo) IsDir() bool        { return false }
func (i imageFileInfo) Sys() any           { return nil }
