// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// ConfigOption is a function pointer to implement the option pattern
type ConfigOption func(*Config)

// Config provides a configuration struct and options to adjust the configuration.
//
// The configuration struct holds all configuration options for the staging process.
// The configuration options can be adjusted using the option pattern style.
//
// The default configuration stages into <os.TempDir()>/libstage/<name> and serializes
// concurrent staging passes across processes with an advisory file lock.
type Config struct {
	// appDir is the fixed sub folder of the temp directory that holds all staged resources
	appDir string

	// dirMode is the file mode for created directories (respecting umask)
	dirMode fs.FileMode

	// fileMode is the file mode for extracted files (respecting umask)
	fileMode fs.FileMode

	// logger stream for staging
	logger logger

	// platform is the resource name used by the [Loader]
	platform string

	// processLock decides if staging passes are serialized across processes
	processLock bool

	// telemetryHook is a function to consume telemetry data after a finished staging pass
	// Important: do not adjust this value after staging started
	telemetryHook TelemetryHook

	// tempDir is the base directory of the staging root
	tempDir string
}

// AppDir returns the name of the folder below the temp directory that holds
// all staged resources.
func (c *Config) AppDir() string {
	return c.appDir
}

// DirMode returns the file mode for created directories. (respecting umask)
func (c *Config) DirMode() fs.FileMode {
	return c.dirMode
}

// FileMode returns the file mode for extracted files. (respecting umask)
func (c *Config) FileMode() fs.FileMode {
	return c.fileMode
}

// Logger returns the logger.
func (c *Config) Logger() logger {
	return c.logger
}

// Platform returns the platform resource name that is staged by a [Loader].
func (c *Config) Platform() string {
	return c.platform
}

// ProcessLock returns true if staging passes for the same destination are
// serialized across processes with a lock file in the staging root.
func (c *Config) ProcessLock() bool {
	return c.processLock
}

// StagingRoot returns the directory below which every resource name gets
// its own destination directory.
func (c *Config) StagingRoot() string {
	return filepath.Join(c.tempDir, c.appDir)
}

// TelemetryHook returns the telemetry hook.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return defaultTelemetryHook
	}
	return c.telemetryHook
}

// TempDir returns the base directory of the staging root.
func (c *Config) TempDir() string {
	return c.tempDir
}

const (
	defaultAppDir      = "libstage" // <tmp>/libstage/<name>
	defaultDirMode     = 0755       // rwxr-xr-x
	defaultFileMode    = 0755       // rwxr-xr-x, shared objects are mapped executable
	defaultProcessLock = true       // serialize across processes
)

var (
	// slog to discard
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	// no operation telemetry hook
	defaultTelemetryHook = func(ctx context.Context, d *TelemetryData) {
		// noop
	}
)

// NewConfig is a generator option that takes opts as adjustments of the
// default configuration in an option pattern style.
func NewConfig(opts ...ConfigOption) *Config {

	// setup default values
	config := &Config{
		appDir:        defaultAppDir,
		dirMode:       defaultDirMode,
		fileMode:      defaultFileMode,
		logger:        defaultLogger,
		platform:      CurrentPlatform(),
		processLock:   defaultProcessLock,
		telemetryHook: defaultTelemetryHook,
		tempDir:       os.TempDir(),
	}

	// Loop through each option
	for _, opt := range opts {
		opt(config)
	}

	return config
}

// WithAppDir options pattern function to set the folder below the temp directory
// that holds all staged resources.
func WithAppDir(name string) ConfigOption {
	return func(c *Config) {
		if len(name) > 0 {
			c.appDir = name
		}
	}
}

// WithDirMode options pattern function to set the file mode for created directories.
func WithDirMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.dirMode = mode
	}
}

// WithFileMode options pattern function to set the file mode for extracted files.
func WithFileMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.fileMode = mode
	}
}

// WithLogger options pattern function to set a custom logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPlatform options pattern function to override the platform resource name
// that a [Loader] stages. An empty name keeps [CurrentPlatform].
func WithPlatform(platform string) ConfigOption {
	return func(c *Config) {
		if len(platform) > 0 {
			c.platform = platform
		}
	}
}

// WithProcessLock options pattern function to enable/disable the lock file that
// serializes staging passes across processes.
func WithProcessLock(enable bool) ConfigOption {
	return func(c *Config) {
		c.processLock = enable
	}
}

// WithTelemetryHook options pattern function to set a [TelemetryHook], which is called after
// each staging pass.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}

// WithTempDir options pattern function to set the base directory of the staging root.
func WithTempDir(dir string) ConfigOption {
	return func(c *Config) {
		if len(dir) > 0 {
			c.tempDir = dir
		}
	}
}
