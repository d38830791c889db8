// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// isUpToDate reports whether a regular file exists at path with exactly size bytes.
// Size is the only property compared; a changed file of equal size is not detected.
func isUpToDate(path string, size int64) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}
	return stat.Mode().IsRegular() && stat.Size() == size
}

// createDir creates the directory at path together with all missing parents.
// It reports whether the directory had to be created.
func createDir(path string, mode fs.FileMode) (bool, error) {
	if stat, err := os.Stat(path); err == nil {
		if !stat.IsDir() {
			return false, fmt.Errorf("cannot create directory %s: file exists", path)
		}
		return false, nil
	}

	if err := os.MkdirAll(path, mode.Perm()); err != nil {
		return false, fmt.Errorf("failed to create directory (%w)", err)
	}
	return true, nil
}

// createFile creates or truncates the file at path and writes src into it.
// Missing parent directories are created with dirMode. The number of bytes
// written is returned, also in case of an error. A file that could not be
// written completely is removed again.
func createFile(path string, src io.Reader, mode fs.FileMode, dirMode fs.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirMode.Perm()); err != nil {
		return 0, fmt.Errorf("failed to create directory (%w)", err)
	}

	// create dst file
	dstFile, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	// write data to file
	n, err := io.Copy(dstFile, src)
	if cerr := dstFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
			return n, fmt.Errorf("failed to write file: %w", errors.Join(err, rerr))
		}
		return n, fmt.Errorf("failed to write file: %w", err)
	}

	return n, nil
}
