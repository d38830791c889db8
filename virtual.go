// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// VirtualNode is a file or directory of a virtual filesystem, for example a
// node of a web archive mounted by an application server.
type VirtualNode interface {
	// Name returns the base name of the node.
	Name() string

	// IsDir returns true if the node can have children.
	IsDir() bool

	// Size returns the declared size of the node content.
	Size() int64

	// Children returns the child nodes ordered by name.
	Children() ([]VirtualNode, error)

	// Open returns a reader for the node content.
	Open() (io.ReadCloser, error)
}

// fsNode is a [VirtualNode] backed by a path of an [io/fs.FS].
type fsNode struct {
	fsys fs.FS
	path string
	info fs.FileInfo
}

// NewFSNode returns the node at the slash separated path p of fsys.
func NewFSNode(fsys fs.FS, p string) (VirtualNode, error) {
	info, err := fs.Stat(fsys, p)
	if err != nil {
		return nil, err
	}
	return &fsNode{fsys: fsys, path: p, info: info}, nil
}

// Name returns the base name of the node. The root of a filesystem is named ".".
func (n *fsNode) Name() string {
	return path.Base(n.path)
}

// IsDir returns true if the node is a directory.
func (n *fsNode) IsDir() bool {
	return n.info.IsDir()
}

// Size returns the size of the node as reported by the filesystem.
func (n *fsNode) Size() int64 {
	return n.info.Size()
}

// Children returns the directory entries of the node ordered by name.
func (n *fsNode) Children() ([]VirtualNode, error) {
	entries, err := fs.ReadDir(n.fsys, n.path)
	if err != nil {
		return nil, err
	}

	children := make([]VirtualNode, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		children = append(children, &fsNode{fsys: n.fsys, path: path.Join(n.path, e.Name()), info: info})
	}
	return children, nil
}

// Open opens the node content for reading.
func (n *fsNode) Open() (io.ReadCloser, error) {
	return n.fsys.Open(n.path)
}

// stageVirtual looks up the mount of root and mirrors the node root points at into dst.
func stageVirtual(sp *SearchPath, root *Root, dst string, cfg *Config, td *TelemetryData) error {
	mount, p := root.virtualLocation()
	fsys, ok := sp.lookupMount(mount)
	if !ok {
		return fmt.Errorf("%w: unknown mount %q in %s", ErrInvalidRoot, mount, root)
	}

	node, err := NewFSNode(fsys, p)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", root, err)
	}
	return extractVirtual(node, dst, cfg, td)
}

// extractVirtual mirrors node into the folder dst.
//
// A directory whose name contains no "." and equals the name of dst (ignoring case)
// is taken to be dst itself, so its children are extracted straight into dst.
// Any other such directory becomes a sub folder of dst. Everything else, including
// directories with a "." in their name, is copied as file dst/<name> unless a file
// of the same size already exists there.
func extractVirtual(node VirtualNode, dst string, cfg *Config, td *TelemetryData) error {
	if node.IsDir() && !strings.Contains(node.Name(), ".") {
		folder := dst
		if !strings.EqualFold(filepath.Base(dst), node.Name()) {
			folder = filepath.Join(dst, node.Name())
			created, err := createDir(folder, cfg.DirMode())
			if err != nil {
				return err
			}
			if created {
				td.CreatedDirs++
			}
		}

		children, err := node.Children()
		if err != nil {
			return fmt.Errorf("cannot list %s: %w", node.Name(), err)
		}
		for _, child := range children {
			if err := extractVirtual(child, folder, cfg, td); err != nil {
				return err
			}
		}
		return nil
	}

	target := filepath.Join(dst, node.Name())
	if isUpToDate(target, node.Size()) {
		td.SkippedFiles++
		cfg.Logger().Debug("skip up to date file", "path", target)
		return nil
	}

	rc, err := node.Open()
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", node.Name(), err)
	}
	defer rc.Close()

	n, err := createFile(target, rc, cfg.FileMode(), cfg.DirMode())
	td.CopiedBytes += n
	if err != nil {
		return err
	}
	td.CopiedFiles++
	return nil
}
