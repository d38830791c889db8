// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// State is the load state of a [Loader].
type State int

const (
	// StateUnloaded is the state before the library was loaded successfully.
	StateUnloaded State = iota

	// StateLoaded is the state after the library was loaded.
	StateLoaded
)

// String returns the name of the state.
func (s State) String() string {
	if s == StateLoaded {
		return "loaded"
	}
	return "unloaded"
}

// Library is a native library opened by an [Opener].
type Library struct {
	// Name is the logical name the library was requested with
	Name string

	// Path is the file the library was opened from
	Path string

	// Handle is the platform handle of the opened library
	Handle uintptr
}

//go:generate mockgen -destination=internal/mocks/mock_opener.go -package=mocks github.com/hashicorp/go-libstage Opener

// Opener opens a native library by its logical name.
type Opener interface {
	// Open resolves the library name in the directories of searchPath, in order,
	// and opens the first match.
	Open(name string, searchPath []string) (*Library, error)
}

// SystemOpener opens libraries with the dynamic loader of the operating system.
type SystemOpener struct{}

// Open resolves name with [FindLibrary] and opens the file found.
func (SystemOpener) Open(name string, searchPath []string) (*Library, error) {
	p, err := FindLibrary(name, searchPath)
	if err != nil {
		return nil, err
	}

	handle, err := openLibrary(p)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", p, err)
	}
	return &Library{Name: name, Path: p, Handle: handle}, nil
}

// FindLibrary returns the path of the first file named [MapLibraryName](name) in
// the directories of searchPath.
func FindLibrary(name string, searchPath []string) (string, error) {
	file := MapLibraryName(name)
	for _, dir := range searchPath {
		p := filepath.Join(dir, file)
		if stat, err := os.Stat(p); err == nil && stat.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %v", ErrLibraryNotFound, file, searchPath)
}

// Loader stages the native libraries of the configured platform and opens one
// of them exactly once.
//
// A Loader is safe for concurrent use. Load calls are serialized; once a call
// succeeded all further calls return the same [Library].
type Loader struct {
	mu      sync.Mutex
	name    string
	opener  Opener
	stager  *Stager
	state   State
	library *Library
}

// NewLoader creates a loader for the library name. The platform resources are staged
// with stager. A nil opener defaults to [SystemOpener].
func NewLoader(name string, stager *Stager, opener Opener) *Loader {
	if stager == nil {
		stager = NewStager(nil)
	}
	if opener == nil {
		opener = SystemOpener{}
	}
	return &Loader{name: name, opener: opener, stager: stager}
}

// State returns the current load state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Load stages the platform resources and opens the library. The staged directory is
// appended to the library search path of the environment and handed to the opener;
// the environment itself is not modified. A staging error does not stop the load,
// since the library might already be staged or be present on the search path.
func (l *Loader) Load(ctx context.Context) (*Library, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateLoaded {
		return l.library, nil
	}

	cfg := l.stager.Config()
	dst, stageErr := l.stager.Stage(ctx, cfg.Platform())
	if stageErr != nil {
		cfg.Logger().Warn("staging native resources failed", "platform", cfg.Platform(), "err", stageErr)
	}

	searchPath := LibrarySearchPath(dst)
	lib, err := l.opener.Open(l.name, searchPath)
	if err != nil {
		return nil, fmt.Errorf("cannot load library %s: %w", l.name, errors.Join(err, stageErr))
	}

	l.library = lib
	l.state = StateLoaded
	cfg.Logger().Info("loaded native library", "name", l.name, "path", lib.Path)
	return lib, nil
}
