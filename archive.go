// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// stageArchive opens the archive root points into and extracts it to dst. Failures are
// logged as warnings and counted in td, but never returned: entries that were written
// before the failure stay in place and are validated again by the next staging pass.
func stageArchive(root *Root, dst string, cfg *Config, td *TelemetryData) {
	conn, err := openArchive(root)
	if err != nil {
		td.recordError(err)
		cfg.Logger().Warn("cannot open archive root", "root", root.String(), "err", err)
		return
	}
	defer conn.Close()

	if err := extractArchive(conn, dst, cfg, td); err != nil {
		td.recordError(err)
		cfg.Logger().Warn("archive extraction aborted", "root", root.String(), "err", err)
	}
}

// extractArchive walks the full entry listing of the archive and extracts every entry
// below the base entry of conn into dst. The first failing entry ends the walk.
func extractArchive(conn *archiveConnection, dst string, cfg *Config, td *TelemetryData) error {
	prefix := conn.EntryName() + "/"

	cfg.Logger().Debug("extracting archive", "archive", conn.archive, "entry", conn.EntryName(), "dst", dst)

	for _, f := range conn.Files() {
		if !strings.HasPrefix(f.Name, prefix) {
			continue
		}

		rel := strings.Trim(f.Name[len(prefix):], "/")
		target := dst
		if len(rel) > 0 {
			name := filepath.FromSlash(rel)
			if !filepath.IsLocal(name) {
				cfg.Logger().Warn("skip entry with path traversal", "entry", f.Name)
				continue
			}
			target = filepath.Join(dst, name)
		}

		if f.FileInfo().IsDir() {
			created, err := createDir(target, cfg.DirMode())
			if err != nil {
				return err
			}
			if created {
				td.CreatedDirs++
			}
			continue
		}

		if err := extractArchiveFile(f, target, cfg, td); err != nil {
			return err
		}
	}

	return nil
}

// extractArchiveFile writes a single entry to target unless target already
// has the declared size of the entry.
func extractArchiveFile(f *zip.File, target string, cfg *Config, td *TelemetryData) error {
	size := int64(f.UncompressedSize64)
	if isUpToDate(target, size) {
		td.SkippedFiles++
		cfg.Logger().Debug("skip up to date file", "path", target)
		return nil
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("cannot open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	n, err := createFile(target, rc, cfg.FileMode(), cfg.DirMode())
	td.CopiedBytes += n
	if err != nil {
		return fmt.Errorf("cannot extract entry %s: %w", f.Name, err)
	}
	td.CopiedFiles++
	return nil
}
