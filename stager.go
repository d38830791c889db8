// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// destinationLocks holds one mutex per destination directory, so that staging
// passes into the same directory are serialized even across [Stager] values.
var destinationLocks sync.Map // map[string]*sync.Mutex

// lockDestination locks the mutex of dst and returns the function that unlocks it.
func lockDestination(dst string) func() {
	v, _ := destinationLocks.LoadOrStore(dst, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Stager copies the resources of a [SearchPath] into the staging root.
type Stager struct {
	cfg *Config
	sp  *SearchPath
}

// NewStager creates a stager for sp. A nil search path is treated as empty.
func NewStager(sp *SearchPath, opts ...ConfigOption) *Stager {
	if sp == nil {
		sp = NewSearchPath()
	}
	return &Stager{cfg: NewConfig(opts...), sp: sp}
}

// Stage resolves name on the search path of a new [Stager] and copies every root
// found into the destination directory. See [Stager.Stage].
func Stage(ctx context.Context, name string, sp *SearchPath, opts ...ConfigOption) (string, error) {
	return NewStager(sp, opts...).Stage(ctx, name)
}

// Config returns the configuration of the stager.
func (s *Stager) Config() *Config {
	return s.cfg
}

// Destination returns the directory name is staged into.
func (s *Stager) Destination(name string) string {
	return filepath.Join(s.cfg.StagingRoot(), filepath.FromSlash(name))
}

// Stage resolves name on the search path and copies every root found into the
// destination directory <staging root>/<name>, which is returned.
//
// The destination is returned even when nothing was found and the directory does
// not exist, so callers check for its existence before using it. Failures while
// looking up a search path entry or reading archives are logged, and the pass
// continues with the next entry. Failures while copying
// from a virtual filesystem or the regular filesystem end the pass and are returned
// together with the destination.
//
// Concurrent calls for the same destination are serialized within the process and,
// if [WithProcessLock] is enabled, across processes.
func (s *Stager) Stage(ctx context.Context, name string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	dst := s.Destination(name)

	unlock := lockDestination(dst)
	defer unlock()

	// prepare telemetry data collection and emit
	td := &TelemetryData{Name: name, Destination: dst}
	defer s.cfg.TelemetryHook()(ctx, td)
	defer captureStagingDuration(td, time.Now())

	var fl *flock.Flock
	defer func() {
		if fl == nil {
			return
		}
		if err := fl.Unlock(); err != nil {
			s.cfg.Logger().Warn("cannot unlock staging root", "path", fl.Path(), "err", err)
		}
	}()

	it := s.sp.Resolve(name)
	for {
		root, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			td.recordError(err)
			s.cfg.Logger().Warn("skip unreadable search path entry", "name", name, "err", err)
			continue
		}

		// lock only once there is something to write
		if fl == nil && s.cfg.ProcessLock() {
			fl = s.lockProcess(name)
		}

		if err := s.stageRoot(root, dst, td); err != nil {
			td.recordError(err)
			return dst, fmt.Errorf("cannot stage %s: %w", root, err)
		}
	}

	s.cfg.Logger().Info("staged resources", "name", name, "destination", dst, "roots", td.Roots(),
		"copied", td.CopiedFiles, "skipped", td.SkippedFiles)
	return dst, nil
}

// stageRoot copies a single root into dst using the extractor for its kind.
func (s *Stager) stageRoot(root *Root, dst string, td *TelemetryData) error {
	kind := Classify(root)
	s.cfg.Logger().Debug("staging root", "root", root.String(), "kind", kind.String())

	switch kind {
	case KindArchive:
		td.ArchiveRoots++
		stageArchive(root, dst, s.cfg, td)
		return nil
	case KindVirtual:
		td.VirtualRoots++
		return stageVirtual(s.sp, root, dst, s.cfg, td)
	case KindPlain:
		td.PlainRoots++
		return stagePlain(root, dst, s.cfg, td)
	case KindNone:
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidRoot, kind)
	}
}

// lockProcess takes the lock file of name in the staging root. Failing to do so
// is logged; the pass then continues without cross process serialization.
func (s *Stager) lockProcess(name string) *flock.Flock {
	root := s.cfg.StagingRoot()
	if _, err := createDir(root, s.cfg.DirMode()); err != nil {
		s.cfg.Logger().Warn("cannot create staging root", "path", root, "err", err)
		return nil
	}

	lockFile := filepath.Join(root, "."+strings.ReplaceAll(name, "/", "_")+".lock")
	fl := flock.New(lockFile)
	if err := fl.Lock(); err != nil {
		s.cfg.Logger().Warn("cannot lock staging root", "path", lockFile, "err", err)
		return nil
	}
	return fl
}
