// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// testEntry is a single entry of a generated test archive. Names ending with
// a slash become directory entries.
type testEntry struct {
	name string
	size int
}

// createTestZip writes a zip archive with the given entries to dir/name and
// returns its path. File content is size bytes of a repeated pattern.
func createTestZip(t *testing.T, dir string, name string, entries []testEntry) string {
	t.Helper()

	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("Create() failed: %s", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("zip.Create() failed: %s", err)
		}
		if strings.HasSuffix(e.name, "/") {
			continue
		}
		if _, err := w.Write(testContent(e.size)); err != nil {
			t.Fatalf("Write() failed: %s", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip.Close() failed: %s", err)
	}
	return p
}

// createTestFile writes size bytes of test content to path, creating parents as needed.
func createTestFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll() failed: %s", err)
	}
	if err := os.WriteFile(path, testContent(size), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %s", err)
	}
}

// testContent returns size bytes of deterministic content.
func testContent(size int) []byte {
	return bytes.Repeat([]byte("x"), size)
}

// assertFileSize fails the test unless path is a regular file of size bytes.
func assertFileSize(t *testing.T, path string, size int64) {
	t.Helper()
	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() failed: %s", err)
	}
	if !stat.Mode().IsRegular() {
		t.Fatalf("expected regular file: %s", path)
	}
	if stat.Size() != size {
		t.Fatalf("unexpected size of %s: expected %d, got %d", path, size, stat.Size())
	}
}

// testConfigOptions returns options that stage into a temporary directory of t.
func testConfigOptions(t *testing.T, opts ...ConfigOption) []ConfigOption {
	return append([]ConfigOption{WithTempDir(t.TempDir())}, opts...)
}
