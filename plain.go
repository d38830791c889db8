// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/otiai10/copy"
)

// stagePlain copies the file or directory a plain root points at into dst.
func stagePlain(root *Root, dst string, cfg *Config, td *TelemetryData) error {
	return extractPlain(root.plainPath(), dst, cfg, td)
}

// extractPlain copies the directory tree at src into dst, or the single file at src
// to the file path dst. Existing files are always overwritten. Symbolic links,
// including src itself, are followed so dst never links back into the source.
func extractPlain(src string, dst string, cfg *Config, td *TelemetryData) error {
	resolved, err := filepath.EvalSymlinks(src)
	if err != nil {
		return fmt.Errorf("cannot resolve %s: %w", src, err)
	}
	stat, err := os.Stat(resolved)
	if err != nil {
		return fmt.Errorf("cannot stat %s: %w", src, err)
	}

	cfg.Logger().Debug("copying plain resource", "src", resolved, "dst", dst, "dir", stat.IsDir())

	// the root itself is not passed to Skip
	var files, size int64
	if stat.Mode().IsRegular() {
		files, size = 1, stat.Size()
	}

	opts := copy.Options{
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Deep
		},
		Skip: func(info os.FileInfo, p string, _ string) (bool, error) {
			if info.Mode()&os.ModeSymlink != 0 {
				if target, err := os.Stat(p); err == nil {
					info = target
				}
			}
			if p != resolved && info.Mode().IsRegular() {
				files++
				size += info.Size()
			}
			return false, nil
		},
		Sync: true,
	}
	if err := copy.Copy(resolved, dst, opts); err != nil {
		return fmt.Errorf("cannot copy %s to %s: %w", src, dst, err)
	}

	td.CopiedFiles += files
	td.CopiedBytes += size
	return nil
}
