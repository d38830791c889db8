// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build darwin || freebsd || linux

package libstage

import "github.com/ebitengine/purego"

// openLibrary opens the shared object at path and resolves all its symbols
// immediately, making them available to libraries loaded later.
func openLibrary(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}
