// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build !(darwin || freebsd || linux || windows)

package libstage

import (
	"fmt"
	"runtime"
)

// openLibrary is not supported on this platform.
func openLibrary(path string) (uintptr, error) {
	return 0, fmt.Errorf("loading native libraries is not supported on %s", runtime.GOOS)
}
