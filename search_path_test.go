// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestResolveOrder(t *testing.T) {
	dir := t.TempDir()
	name := "linux-x86-64"

	// directory holding the resource
	plainDir := filepath.Join(dir, "lib")
	createTestFile(t, filepath.Join(plainDir, name, "libfoo.so"), 8)

	// archive holding the resource
	archive := createTestZip(t, dir, "app.jar", []testEntry{
		{name: name + "/libfoo.so", size: 8},
	})

	// archive without the resource
	other := createTestZip(t, dir, "other.zip", []testEntry{
		{name: "darwin-aarch64/libfoo.dylib", size: 8},
	})

	sp := NewSearchPath()
	if err := sp.AddDir(plainDir); err != nil {
		t.Fatalf("AddDir() failed: %s", err)
	}
	if err := sp.Add(other); err != nil {
		t.Fatalf("Add() failed: %s", err)
	}
	if err := sp.Add(archive); err != nil {
		t.Fatalf("Add() failed: %s", err)
	}
	if err := sp.Mount("webapp", fstest.MapFS{
		name + "/libfoo.so": &fstest.MapFile{Data: testContent(8)},
	}); err != nil {
		t.Fatalf("Mount() failed: %s", err)
	}

	if sp.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", sp.Len())
	}

	var kinds []Kind
	it := sp.Resolve(name)
	for {
		root, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() failed: %s", err)
		}
		kinds = append(kinds, Classify(root))
	}

	want := []Kind{KindPlain, KindArchive, KindVirtual}
	if len(kinds) != len(want) {
		t.Fatalf("Resolve() returned %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("Resolve() root %d is %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestResolveNoRoots(t *testing.T) {
	sp := NewSearchPath()
	if err := sp.AddDir(t.TempDir()); err != nil {
		t.Fatalf("AddDir() failed: %s", err)
	}

	root, err := sp.Resolve("linux-x86-64").Next()
	if err != io.EOF {
		t.Fatalf("Next() expected io.EOF, got %v (%v)", err, root)
	}
}

func TestResolveInvalidName(t *testing.T) {
	sp := NewSearchPath()
	for _, name := range []string{"", ".", "/abs", "../up", "a/../b"} {
		if _, err := sp.Resolve(name).Next(); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Next() for %q expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestResolveUnreadableArchive(t *testing.T) {
	dir := t.TempDir()
	archive := createTestZip(t, dir, "app.jar", []testEntry{{name: "x/y", size: 1}})

	sp := NewSearchPath()
	if err := sp.AddArchive(archive); err != nil {
		t.Fatalf("AddArchive() failed: %s", err)
	}

	// corrupt the archive after it was added
	if err := os.WriteFile(archive, []byte("not a zip"), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %s", err)
	}

	if _, err := sp.Resolve("x").Next(); err == nil || err == io.EOF {
		t.Fatalf("Next() expected read error, got %v", err)
	}
}

func TestAddUnsupported(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "plain.txt")
	createTestFile(t, p, 16)

	sp := NewSearchPath()
	if err := sp.Add(p); !errors.Is(err, ErrUnsupportedEntry) {
		t.Errorf("Add() expected ErrUnsupportedEntry, got %v", err)
	}
	if err := sp.AddDir(p); !errors.Is(err, ErrUnsupportedEntry) {
		t.Errorf("AddDir() expected ErrUnsupportedEntry, got %v", err)
	}
	if err := sp.AddArchive(dir); !errors.Is(err, ErrUnsupportedEntry) {
		t.Errorf("AddArchive() expected ErrUnsupportedEntry, got %v", err)
	}
	if err := sp.Add(filepath.Join(dir, "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Add() expected fs.ErrNotExist, got %v", err)
	}
	if sp.Len() != 0 {
		t.Errorf("Len() = %d, want 0", sp.Len())
	}
}

func TestMount(t *testing.T) {
	sp := NewSearchPath()
	fsys := fstest.MapFS{}

	if err := sp.Mount("webapp", fsys); err != nil {
		t.Fatalf("Mount() failed: %s", err)
	}
	if err := sp.Mount("webapp", fsys); !errors.Is(err, fs.ErrExist) {
		t.Errorf("Mount() of duplicate name expected fs.ErrExist, got %v", err)
	}
	for _, name := range []string{"", "a/b", "c:d"} {
		if err := sp.Mount(name, fsys); !errors.Is(err, ErrUnsupportedEntry) {
			t.Errorf("Mount(%q) expected ErrUnsupportedEntry, got %v", name, err)
		}
	}
	if err := sp.Mount("empty", nil); !errors.Is(err, ErrUnsupportedEntry) {
		t.Errorf("Mount() of nil filesystem expected ErrUnsupportedEntry, got %v", err)
	}
	if _, ok := sp.lookupMount("webapp"); !ok {
		t.Errorf("lookupMount() did not find webapp")
	}
}

func TestMountArchive(t *testing.T) {
	dir := t.TempDir()
	archive := createTestZip(t, dir, "app.war", []testEntry{
		{name: "WEB-INF/"},
		{name: "linux-x86-64/libfoo.so", size: 32},
	})

	sp := NewSearchPath()
	if err := sp.MountArchive("webapp", archive); err != nil {
		t.Fatalf("MountArchive() failed: %s", err)
	}

	root, err := sp.Resolve("linux-x86-64").Next()
	if err != nil {
		t.Fatalf("Next() failed: %s", err)
	}
	if Classify(root) != KindVirtual {
		t.Errorf("Classify() = %s, want %s", Classify(root), KindVirtual)
	}
}

func TestIsZipFile(t *testing.T) {
	dir := t.TempDir()
	archive := createTestZip(t, dir, "empty.zip", nil)
	short := filepath.Join(dir, "short")
	createTestFile(t, short, 2)

	cases := []struct {
		path string
		want bool
	}{
		{path: archive, want: true},
		{path: short, want: false},
	}
	for _, tc := range cases {
		got, err := isZipFile(tc.path)
		if err != nil {
			t.Fatalf("isZipFile() failed: %s", err)
		}
		if got != tc.want {
			t.Errorf("isZipFile(%s) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
