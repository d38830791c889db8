// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	// protocolArchive is the scheme of a root inside a zip-format archive
	protocolArchive = "jar"

	// protocolZip is accepted as an alias of protocolArchive when parsing
	protocolZip = "zip"

	// protocolVirtual is the scheme of a root on a mounted virtual filesystem
	protocolVirtual = "vfs"

	// protocolFile is the scheme of a root on the regular filesystem
	protocolFile = "file"

	// archiveSeparator separates the archive location from the entry name
	archiveSeparator = "!/"
)

// Kind is the kind of source a [Root] points to.
type Kind int

const (
	// KindNone is the kind of an absent root. Nothing is staged for it.
	KindNone Kind = iota

	// KindArchive is a directory-shaped entry inside a zip-format archive.
	KindArchive

	// KindVirtual is a node of a mounted virtual filesystem.
	KindVirtual

	// KindPlain is a file or directory on the regular filesystem.
	KindPlain
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindArchive:
		return "archive"
	case KindVirtual:
		return "virtual"
	case KindPlain:
		return "plain"
	default:
		return "none"
	}
}

// Root is a locator of a directory-shaped resource found on a [SearchPath].
//
// The locator is URL-like:
//
//	jar:file:/opt/app/app.jar!/linux-x86-64
//	vfs://webapp/linux-x86-64
//	file:///opt/app/lib/linux-x86-64
type Root struct {
	u *url.URL
}

// ParseRoot parses a root locator. Strings without a scheme are treated as
// paths on the regular filesystem.
func ParseRoot(s string) (*Root, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: empty locator", ErrInvalidRoot)
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoot, err)
	}
	return &Root{u: u}, nil
}

// String returns the locator of the root.
func (r *Root) String() string {
	if r == nil || r.u == nil {
		return ""
	}
	return r.u.String()
}

// Scheme returns the scheme of the locator in lower case.
func (r *Root) Scheme() string {
	return strings.ToLower(r.u.Scheme)
}

// Classify determines which kind of source r points to. The archive connection
// takes precedence over the virtual filesystem protocol, everything else is
// treated as a path on the regular filesystem. A nil root is [KindNone].
func Classify(r *Root) Kind {
	if r == nil || r.u == nil {
		return KindNone
	}
	switch r.Scheme() {
	case protocolArchive, protocolZip:
		return KindArchive
	case protocolVirtual:
		return KindVirtual
	default:
		return KindPlain
	}
}

// newArchiveRoot creates the root for entry inside the archive at archivePath.
func newArchiveRoot(archivePath string, entry string) *Root {
	return &Root{u: &url.URL{
		Scheme: protocolArchive,
		Opaque: protocolFile + ":" + toSlashPath(archivePath) + archiveSeparator + entry,
	}}
}

// newVirtualRoot creates the root for name on the filesystem mounted as mount.
func newVirtualRoot(mount string, name string) *Root {
	return &Root{u: &url.URL{
		Scheme: protocolVirtual,
		Host:   mount,
		Path:   "/" + name,
	}}
}

// newPlainRoot creates the root for a path on the regular filesystem.
func newPlainRoot(p string) *Root {
	return &Root{u: &url.URL{
		Scheme: protocolFile,
		Path:   toSlashPath(p),
	}}
}

// virtualLocation returns the mount name and the slash separated path
// of a virtual root.
func (r *Root) virtualLocation() (string, string) {
	p := strings.Trim(path.Clean("/"+r.u.Path), "/")
	if len(p) == 0 {
		p = "."
	}
	return r.u.Host, p
}

// plainPath returns the path on the regular filesystem a plain root points to.
func (r *Root) plainPath() string {
	p := r.u.Path
	if len(p) == 0 {
		p = r.u.Opaque
	}
	if runtime.GOOS == "windows" && len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p)
}

// toSlashPath converts p to an absolute, slash separated path that starts
// with a slash.
func toSlashPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// archiveConnection is an open archive together with the entry a root points at.
type archiveConnection struct {
	archive string
	entry   string
	zr      *zip.ReadCloser
}

// openArchive parses an archive root and opens the archive it points into.
// The caller must close the returned connection.
func openArchive(r *Root) (*archiveConnection, error) {
	if Classify(r) != KindArchive {
		return nil, fmt.Errorf("%w: not an archive root: %s", ErrInvalidRoot, r)
	}

	opaque := r.u.Opaque
	i := strings.Index(opaque, archiveSeparator)
	if i < 0 {
		return nil, fmt.Errorf("%w: missing %q in %s", ErrInvalidRoot, archiveSeparator, r)
	}

	archive := strings.TrimPrefix(opaque[:i], protocolFile+":")
	entry := strings.Trim(opaque[i+len(archiveSeparator):], "/")
	if len(archive) == 0 || len(entry) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoot, r)
	}

	archive = (&Root{u: &url.URL{Path: archive}}).plainPath()
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("cannot open archive %s: %w", archive, err)
	}

	return &archiveConnection{archive: archive, entry: entry, zr: zr}, nil
}

// EntryName returns the base entry path the connection points at.
func (c *archiveConnection) EntryName() string {
	return c.entry
}

// Files returns the full entry listing of the archive.
func (c *archiveConnection) Files() []*zip.File {
	return c.zr.File
}

// Close releases the archive handle.
func (c *archiveConnection) Close() error {
	return c.zr.Close()
}
