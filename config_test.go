// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage_test

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	libstage "github.com/hashicorp/go-libstage"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := libstage.NewConfig()

	if cfg.AppDir() != "libstage" {
		t.Errorf("AppDir() = %s, want libstage", cfg.AppDir())
	}
	if cfg.TempDir() != os.TempDir() {
		t.Errorf("TempDir() = %s, want %s", cfg.TempDir(), os.TempDir())
	}
	if cfg.StagingRoot() != filepath.Join(os.TempDir(), "libstage") {
		t.Errorf("StagingRoot() = %s", cfg.StagingRoot())
	}
	if cfg.DirMode() != 0755 || cfg.FileMode() != 0755 {
		t.Errorf("unexpected modes %s, %s", cfg.DirMode(), cfg.FileMode())
	}
	if cfg.Platform() != libstage.CurrentPlatform() {
		t.Errorf("Platform() = %s, want %s", cfg.Platform(), libstage.CurrentPlatform())
	}
	if !cfg.ProcessLock() {
		t.Errorf("ProcessLock() = false, want true")
	}
	if cfg.Logger() == nil || cfg.TelemetryHook() == nil {
		t.Errorf("missing default logger or telemetry hook")
	}
}

func TestConfigOptions(t *testing.T) {
	tmp := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	called := false

	cfg := libstage.NewConfig(
		libstage.WithAppDir("myapp"),
		libstage.WithDirMode(0700),
		libstage.WithFileMode(0600),
		libstage.WithLogger(logger),
		libstage.WithPlatform("linux-riscv64"),
		libstage.WithProcessLock(false),
		libstage.WithTelemetryHook(func(ctx context.Context, td *libstage.TelemetryData) {
			called = true
		}),
		libstage.WithTempDir(tmp),
	)

	if cfg.StagingRoot() != filepath.Join(tmp, "myapp") {
		t.Errorf("StagingRoot() = %s, want %s", cfg.StagingRoot(), filepath.Join(tmp, "myapp"))
	}
	if cfg.DirMode() != fs.FileMode(0700) || cfg.FileMode() != fs.FileMode(0600) {
		t.Errorf("unexpected modes %s, %s", cfg.DirMode(), cfg.FileMode())
	}
	if cfg.Logger() != logger {
		t.Errorf("Logger() did not return the configured logger")
	}
	if cfg.Platform() != "linux-riscv64" {
		t.Errorf("Platform() = %s, want linux-riscv64", cfg.Platform())
	}
	if cfg.ProcessLock() {
		t.Errorf("ProcessLock() = true, want false")
	}

	cfg.TelemetryHook()(context.Background(), &libstage.TelemetryData{})
	if !called {
		t.Errorf("TelemetryHook() did not return the configured hook")
	}
}

func TestConfigEmptyOptionsKeepDefaults(t *testing.T) {
	tests := []struct {
		name string
		opt  libstage.ConfigOption
		get  func(*libstage.Config) string
		want string
	}{
		{
			name: "empty app dir",
			opt:  libstage.WithAppDir(""),
			get:  (*libstage.Config).AppDir,
			want: "libstage",
		},
		{
			name: "empty platform",
			opt:  libstage.WithPlatform(""),
			get:  (*libstage.Config).Platform,
			want: libstage.CurrentPlatform(),
		},
		{
			name: "empty temp dir",
			opt:  libstage.WithTempDir(""),
			get:  (*libstage.Config).TempDir,
			want: os.TempDir(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.get(libstage.NewConfig(tt.opt)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNilTelemetryHook(t *testing.T) {
	cfg := libstage.NewConfig(libstage.WithTelemetryHook(nil))

	// must not panic
	cfg.TelemetryHook()(context.Background(), &libstage.TelemetryData{})
}
