// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package memfs provides an in-memory filesystem that implements [io/fs.FS].
//
// It is used to mount the content of a zip-format archive as a virtual
// filesystem without writing it to disk first.
package memfs

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
)

// FS is an in-memory filesystem. It is a map of slash separated paths to entries.
// Parent directories are created implicitly when a file or directory is added.
// Permissions on entries are stored but not enforced.
type FS struct {
	files sync.Map // map[string]*entry
}

var (
	_ fs.FS         = (*FS)(nil)
	_ fs.ReadDirFS  = (*FS)(nil)
	_ fs.ReadFileFS = (*FS)(nil)
	_ fs.StatFS     = (*FS)(nil)
	_ fs.SubFS      = (*FS)(nil)
	_ fs.GlobFS     = (*FS)(nil)
)

// New creates a new, empty in-memory filesystem.
func New() *FS {
	return &FS{}
}

// CreateFile creates or replaces the file at name with the content of src. Missing parent
// directories are created with mode 0755. The number of bytes written is returned.
func (m *FS) CreateFile(name string, src io.Reader, mode fs.FileMode) (int64, error) {
	if !fs.ValidPath(name) || name == "." {
		return 0, &fs.PathError{Op: "create", Path: name, Err: fs.ErrInvalid}
	}
	if e, ok := m.load(name); ok && e.info.IsDir() {
		return 0, &fs.PathError{Op: "create", Path: name, Err: fs.ErrExist}
	}
	if err := m.CreateDir(path.Dir(name), 0755); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, src)
	if err != nil {
		return n, fmt.Errorf("cannot write %s: %w", name, err)
	}

	m.files.Store(name, &entry{
		info: &fileInfo{name: path.Base(name), size: n, mode: mode.Perm(), modTime: time.Now()},
		data: buf.Bytes(),
	})
	return n, nil
}

// CreateDir creates the directory at name together with all missing parents.
// Existing directories are left untouched.
func (m *FS) CreateDir(name string, mode fs.FileMode) error {
	if !fs.ValidPath(name) {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return nil
	}

	// walk from the top so every parent exists before its children
	parts := strings.Split(name, "/")
	for i := range parts {
		p := strings.Join(parts[:i+1], "/")
		if e, ok := m.load(p); ok {
			if !e.info.IsDir() {
				return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrExist}
			}
			continue
		}
		m.files.Store(p, &entry{
			info: &fileInfo{name: parts[i], mode: mode.Perm() | fs.ModeDir, modTime: time.Now()},
		})
	}
	return nil
}

// Open opens the named file or directory for reading.
func (m *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	if name == "." {
		return &openDir{fsys: m, path: name, info: rootInfo()}, nil
	}

	e, ok := m.load(name)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if e.info.IsDir() {
		return &openDir{fsys: m, path: name, info: e.info}, nil
	}

	// each handle reads its own view of the data
	return &openFile{info: e.info, r: bytes.NewReader(e.data)}, nil
}

// Stat returns the FileInfo for the given path.
func (m *FS) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return rootInfo(), nil
	}
	if e, ok := m.load(name); ok {
		return e.info, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadDir returns the entries of the named directory sorted by name.
func (m *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	if name != "." {
		e, ok := m.load(name)
		if !ok {
			return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
		}
		if !e.info.IsDir() {
			return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
		}
	}

	var entries []fs.DirEntry
	m.files.Range(func(p, e any) bool {
		if path.Dir(p.(string)) == name {
			entries = append(entries, fs.FileInfoToDirEntry(e.(*entry).info))
		}
		return true
	})

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	return entries, nil
}

// ReadFile returns the content of the named file.
func (m *FS) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	e, ok := m.load(name)
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	if e.info.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	return bytes.Clone(e.data), nil
}

// Remove removes the entry at name and everything below it.
func (m *FS) Remove(name string) error {
	if !fs.ValidPath(name) || name == "." {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrInvalid}
	}
	prefix := name + "/"
	m.files.Range(func(p, _ any) bool {
		if p.(string) == name || strings.HasPrefix(p.(string), prefix) {
			m.files.Delete(p)
		}
		return true
	})
	return nil
}

// Sub returns an FS corresponding to the subtree rooted at dir.
func (m *FS) Sub(dir string) (fs.FS, error) {
	if !fs.ValidPath(dir) {
		return nil, &fs.PathError{Op: "sub", Path: dir, Err: fs.ErrInvalid}
	}
	if dir == "." {
		return m, nil
	}
	if info, err := m.Stat(dir); err != nil {
		return nil, err
	} else if !info.IsDir() {
		return nil, &fs.PathError{Op: "sub", Path: dir, Err: fs.ErrInvalid}
	}

	prefix := dir + "/"
	sub := New()
	m.files.Range(func(p, e any) bool {
		if strings.HasPrefix(p.(string), prefix) {
			sub.files.Store(p.(string)[len(prefix):], e)
		}
		return true
	})
	return sub, nil
}

// Glob returns the names of all files matching pattern or nil if there is no matching file.
func (m *FS) Glob(pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}

	var matches []string
	m.files.Range(func(p, _ any) bool {
		if ok, _ := path.Match(pattern, p.(string)); ok {
			matches = append(matches, p.(string))
		}
		return true
	})
	sort.Strings(matches)

	return matches, nil
}

// FromZip expands the zip archive read from r into a new in-memory filesystem.
// Entries with names that are not local paths are skipped.
func FromZip(r io.ReaderAt, size int64) (*FS, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("cannot create zip reader: %w", err)
	}

	m := New()
	for _, f := range zr.File {
		name := strings.TrimSuffix(f.Name, "/")
		if len(name) == 0 || !fs.ValidPath(name) {
			continue
		}

		if f.FileInfo().IsDir() {
			if err := m.CreateDir(name, f.Mode()); err != nil {
				return nil, err
			}
			continue
		}

		if err := m.addZipFile(name, f); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// LoadArchive expands the zip-format archive at path into a new in-memory filesystem.
func LoadArchive(path string) (*FS, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return FromZip(f, stat.Size())
}

func (m *FS) addZipFile(name string, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", f.Name, err)
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	_, err = m.CreateFile(name, rc, mode)
	return err
}

func (m *FS) load(name string) (*entry, bool) {
	e, ok := m.files.Load(name)
	if !ok {
		return nil, false
	}
	return e.(*entry), true
}

// entry is a file or directory of the in-memory filesystem
type entry struct {
	info *fileInfo
	data []byte
}

// openFile is an open handle of a regular file
type openFile struct {
	info *fileInfo
	r    *bytes.Reader
}

func (f *openFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *openFile) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *openFile) Close() error               { return nil }

// openDir is an open handle of a directory
type openDir struct {
	fsys    *FS
	path    string
	info    fs.FileInfo
	entries []fs.DirEntry
	read    bool
}

func (d *openDir) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *openDir) Close() error               { return nil }

func (d *openDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.path, Err: fs.ErrInvalid}
}

// ReadDir implements [io/fs.ReadDirFile].
func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.read {
		entries, err := d.fsys.ReadDir(d.path)
		if err != nil {
			return nil, err
		}
		d.entries = entries
		d.read = true
	}

	if n <= 0 {
		entries := d.entries
		d.entries = nil
		return entries, nil
	}
	if len(d.entries) == 0 {
		return nil, io.EOF
	}
	if n > len(d.entries) {
		n = len(d.entries)
	}
	entries := d.entries[:n]
	d.entries = d.entries[n:]
	return entries, nil
}

// fileInfo is a FileInfo implementation for the in-memory filesystem
type fileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi *fileInfo) ModTime() time.Time { return fi.modTime }
func (fi *fileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *fileInfo) Sys() any           { return nil }

func rootInfo() *fileInfo {
	return &fileInfo{name: ".", mode: fs.ModeDir | 0755}
}
