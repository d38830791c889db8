// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// failingReader returns some data followed by an error.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestCreateFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sub", "libfoo.so")

	n, err := createFile(p, bytes.NewReader(testContent(64)), 0755, 0755)
	if err != nil {
		t.Fatalf("createFile() failed: %s", err)
	}
	if n != 64 {
		t.Errorf("createFile() wrote %d bytes, want 64", n)
	}
	if !isUpToDate(p, 64) {
		t.Errorf("isUpToDate() = false after createFile()")
	}
	if isUpToDate(p, 63) {
		t.Errorf("isUpToDate() = true for a different size")
	}
}

func TestCreateFileRemovesPartialFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "libfoo.so")
	readErr := errors.New("read failed")

	n, err := createFile(p, &failingReader{data: testContent(10), err: readErr}, 0755, 0755)
	if !errors.Is(err, readErr) {
		t.Fatalf("createFile() expected read error, got %v", err)
	}
	if n != 10 {
		t.Errorf("createFile() reported %d bytes, want 10", n)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Errorf("partial file was left behind")
	}
}

func TestCreateDir(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a", "b")

	created, err := createDir(p, 0755)
	if err != nil || !created {
		t.Fatalf("createDir() = %v, %v", created, err)
	}
	created, err = createDir(p, 0755)
	if err != nil || created {
		t.Fatalf("second createDir() = %v, %v", created, err)
	}

	// a file in the way
	f := filepath.Join(t.TempDir(), "file")
	createTestFile(t, f, 1)
	if _, err := createDir(f, 0755); err == nil {
		t.Fatalf("createDir() expected error, got nil")
	}
}
