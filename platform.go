// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// archNames maps GOARCH to the architecture part of a platform resource name.
var archNames = map[string]string{
	"386":      "x86",
	"amd64":    "x86-64",
	"arm":      "arm",
	"arm64":    "aarch64",
	"loong64":  "loongarch64",
	"mips64le": "mips64el",
	"ppc":      "ppc",
	"ppc64":    "ppc64",
	"ppc64le":  "ppc64le",
	"riscv64":  "riscv64",
	"s390x":    "s390x",
}

// PlatformName returns the resource name native libraries for goos and goarch
// are bundled under, e.g. "linux-x86-64", "darwin-aarch64" or "win32-x86-64".
func PlatformName(goos string, goarch string) string {
	osName := goos
	if goos == "windows" {
		osName = "win32"
	}

	arch, ok := archNames[goarch]
	if !ok {
		arch = goarch
	}
	return fmt.Sprintf("%s-%s", osName, arch)
}

// CurrentPlatform returns the resource name for the running platform.
func CurrentPlatform() string {
	return PlatformName(runtime.GOOS, runtime.GOARCH)
}

// MapLibraryName returns the platform specific file name of the library name,
// e.g. "libfoo.so" on linux, "libfoo.dylib" on darwin and "foo.dll" on windows.
func MapLibraryName(name string) string {
	return mapLibraryName(runtime.GOOS, name)
}

func mapLibraryName(goos string, name string) string {
	switch goos {
	case "windows":
		return name + ".dll"
	case "darwin", "ios":
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}

// librarySearchVariable returns the environment variable holding the library
// search path of goos.
func librarySearchVariable(goos string) string {
	switch goos {
	case "windows":
		return "PATH"
	case "darwin", "ios":
		return "DYLD_LIBRARY_PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}

// LibrarySearchPath returns the directories a library is looked up in: the
// entries of the platform library search variable followed by staged, if that
// directory exists. The environment itself is never modified.
func LibrarySearchPath(staged string) []string {
	return appendSearchPath(os.Getenv(librarySearchVariable(runtime.GOOS)), staged)
}

// appendSearchPath splits the list value and appends staged if it exists.
func appendSearchPath(value string, staged string) []string {
	var dirs []string
	for _, dir := range filepath.SplitList(value) {
		if len(strings.TrimSpace(dir)) > 0 {
			dirs = append(dirs, dir)
		}
	}

	if len(staged) > 0 {
		if stat, err := os.Stat(staged); err == nil && stat.IsDir() {
			dirs = append(dirs, staged)
		}
	}
	return dirs
}
