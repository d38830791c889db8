// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import "errors"

var (
	// ErrInvalidName indicates a resource name that is not a valid slash separated relative path.
	ErrInvalidName = errors.New("invalid resource name")

	// ErrInvalidRoot indicates a root locator that cannot be parsed or opened.
	ErrInvalidRoot = errors.New("invalid root")

	// ErrLibraryNotFound indicates that no search path directory holds the requested library.
	ErrLibraryNotFound = errors.New("library not found")

	// ErrUnsupportedEntry indicates a search path entry that is neither a directory nor a zip-format archive.
	ErrUnsupportedEntry = errors.New("unsupported search path entry")
)
