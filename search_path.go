// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-libstage/memfs"
	"github.com/klauspost/compress/zip"
)

// magicBytesZip contains the magic bytes of a zip archive, including the empty one.
// reference: https://pkg.go.dev/archive/zip
var magicBytesZip = [][]byte{
	{0x50, 0x4B, 0x03, 0x04},
	{0x50, 0x4B, 0x05, 0x06},
}

// entryKind is the kind of a search path entry
type entryKind int

const (
	entryArchive entryKind = iota
	entryDir
	entryMount
)

// searchEntry is a single element of a [SearchPath]
type searchEntry struct {
	kind entryKind
	path string
	name string
	fsys fs.FS
}

// SearchPath is the ordered list of places resources are looked up in. It holds
// zip-format archives, plain directories and mounted virtual filesystems.
//
// A SearchPath is safe for concurrent use.
type SearchPath struct {
	mu      sync.RWMutex
	entries []searchEntry
	mounts  map[string]fs.FS
}

// NewSearchPath creates an empty search path.
func NewSearchPath() *SearchPath {
	return &SearchPath{
		mounts: make(map[string]fs.FS),
	}
}

// DefaultSearchPath returns a search path populated by [SearchPath.AddDefault].
func DefaultSearchPath() (*SearchPath, error) {
	sp := NewSearchPath()
	if err := sp.AddDefault(); err != nil {
		return nil, err
	}
	return sp, nil
}

// AddDefault adds the directory of the running executable, followed by the
// executable itself if it carries a zip payload.
func (sp *SearchPath) AddDefault() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	if err := sp.AddDir(filepath.Dir(exe)); err != nil {
		return err
	}

	// a binary with an appended zip payload is a valid archive
	if zr, err := zip.OpenReader(exe); err == nil {
		zr.Close()
		return sp.AddArchive(exe)
	}
	return nil
}

// Add adds path to the search path. Directories are added with [SearchPath.AddDir],
// files that start with the zip magic bytes with [SearchPath.AddArchive]. Any other
// file is rejected with [ErrUnsupportedEntry].
func (sp *SearchPath) Add(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot add %s: %w", path, err)
	}
	if stat.IsDir() {
		return sp.AddDir(path)
	}

	ok, err := isZipFile(path)
	if err != nil {
		return fmt.Errorf("cannot add %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEntry, path)
	}
	return sp.AddArchive(path)
}

// AddArchive adds a zip-format archive (zip, jar, war) to the search path.
func (sp *SearchPath) AddArchive(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot add archive %s: %w", path, err)
	}
	stat, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("cannot add archive %s: %w", path, err)
	}
	if !stat.Mode().IsRegular() {
		return fmt.Errorf("%w: archive is not a regular file: %s", ErrUnsupportedEntry, path)
	}
	sp.append(searchEntry{kind: entryArchive, path: abs})
	return nil
}

// AddDir adds a plain directory to the search path.
func (sp *SearchPath) AddDir(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot add directory %s: %w", path, err)
	}
	stat, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("cannot add directory %s: %w", path, err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("%w: not a directory: %s", ErrUnsupportedEntry, path)
	}
	sp.append(searchEntry{kind: entryDir, path: abs})
	return nil
}

// Mount adds the virtual filesystem fsys to the search path under the mount name.
// The name must be unique and must not contain a slash or a colon.
func (sp *SearchPath) Mount(name string, fsys fs.FS) error {
	if len(name) == 0 || strings.ContainsAny(name, "/\\:@?#% ") {
		return fmt.Errorf("%w: invalid mount name %q", ErrUnsupportedEntry, name)
	}
	if fsys == nil {
		return fmt.Errorf("%w: nil filesystem for mount %q", ErrUnsupportedEntry, name)
	}

	sp.mu.Lock()
	defer sp.mu.Unlock()
	if _, ok := sp.mounts[name]; ok {
		return fmt.Errorf("mount %q: %w", name, fs.ErrExist)
	}
	sp.mounts[name] = fsys
	sp.entries = append(sp.entries, searchEntry{kind: entryMount, name: name, fsys: fsys})
	return nil
}

// MountArchive expands the zip-format archive at path into memory and mounts it
// under name, the way an application server mounts a deployed web archive.
func (sp *SearchPath) MountArchive(name string, path string) error {
	mfs, err := memfs.LoadArchive(path)
	if err != nil {
		return fmt.Errorf("cannot mount archive %s: %w", path, err)
	}
	return sp.Mount(name, mfs)
}

// Len returns the number of entries in the search path.
func (sp *SearchPath) Len() int {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return len(sp.entries)
}

// Resolve returns an iterator over every root named name that is visible on the
// search path, in search path order. The entries are looked up lazily while
// iterating.
func (sp *SearchPath) Resolve(name string) *RootIterator {
	sp.mu.RLock()
	entries := make([]searchEntry, len(sp.entries))
	copy(entries, sp.entries)
	sp.mu.RUnlock()

	return &RootIterator{name: name, entries: entries}
}

// lookupMount returns the filesystem mounted under name.
func (sp *SearchPath) lookupMount(name string) (fs.FS, bool) {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	fsys, ok := sp.mounts[name]
	return fsys, ok
}

func (sp *SearchPath) append(e searchEntry) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.entries = append(sp.entries, e)
}

// RootIterator produces the roots of a single resolution. It cannot be restarted.
type RootIterator struct {
	name    string
	entries []searchEntry
	pos     int
}

// Next returns the next root. It returns [io.EOF] once all search path entries
// have been looked up. Lookup errors are returned as is; the iterator stays
// usable afterwards.
func (it *RootIterator) Next() (*Root, error) {
	if !validName(it.name) {
		it.pos = len(it.entries)
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, it.name)
	}

	for it.pos < len(it.entries) {
		e := it.entries[it.pos]
		it.pos++

		root, err := e.lookup(it.name)
		if err != nil {
			return nil, err
		}
		if root != nil {
			return root, nil
		}
	}
	return nil, io.EOF
}

// lookup returns the root for name inside the entry, or nil if the entry does not hold it.
func (e searchEntry) lookup(name string) (*Root, error) {
	switch e.kind {
	case entryArchive:
		return lookupArchive(e.path, name)
	case entryDir:
		return lookupDir(e.path, name)
	case entryMount:
		return lookupMount(e.name, e.fsys, name)
	default:
		return nil, fmt.Errorf("unknown search path entry kind %d", e.kind)
	}
}

// lookupArchive scans the entry listing of the archive for name or anything below it.
func lookupArchive(archive string, name string) (*Root, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("cannot read archive %s: %w", archive, err)
	}
	defer zr.Close()

	prefix := name + "/"
	for _, f := range zr.File {
		if f.Name == prefix || strings.HasPrefix(f.Name, prefix) {
			return newArchiveRoot(archive, name), nil
		}
	}
	return nil, nil
}

func lookupDir(dir string, name string) (*Root, error) {
	p := filepath.Join(dir, filepath.FromSlash(name))
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot stat %s: %w", p, err)
	}
	return newPlainRoot(p), nil
}

func lookupMount(mount string, fsys fs.FS, name string) (*Root, error) {
	if _, err := fs.Stat(fsys, name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot stat %s in mount %s: %w", name, mount, err)
	}
	return newVirtualRoot(mount, name), nil
}

// validName checks that name is usable as resource name and as a folder below the staging root.
func validName(name string) bool {
	return fs.ValidPath(name) && name != "."
}

// isZipFile checks if the file at path starts with the magic bytes of a zip archive.
func isZipFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, 4)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, fmt.Errorf("cannot read header: %w", err)
	}
	return matchesMagicBytes(header[:n], 0, magicBytesZip), nil
}

// matchesMagicBytes checks if the bytes in data are equal to one of the magic bytes at the given offset.
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	// check all possible magic bytes until match is found
	for _, mb := range magicBytes {
		// check if header is long enough
		if offset+len(mb) > len(data) {
			continue
		}

		// check for byte match
		if bytes.Equal(mb, data[offset:offset+len(mb)]) {
			return true
		}
	}

	// no match found
	return false
}
