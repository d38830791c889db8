// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package logging creates the slog based logger of the libstage command.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/golang-cz/devslog"
	console "github.com/phsym/console-slog"
)

// Format declares the kind of logging handler to use.
type Format string

const (
	// FormatText uses the standard slog TextHandler
	FormatText Format = "text"
	// FormatJSON uses the standard slog JSONHandler
	FormatJSON Format = "json"
	// FormatConsole uses console-slog to provide prettier colorful messages
	FormatConsole Format = "console"
	// FormatDev uses a verbose and pretty printing devslog handler
	FormatDev Format = "dev"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatConsole, FormatDev}

// Config is configuration for a logger.
type Config struct {
	Level   slog.Level
	Format  Format
	NoColor bool
}

// New returns a logger writing to w according to cfg.
func New(w io.Writer, cfg Config) (*slog.Logger, error) {
	opts := slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	switch Format(strings.ToLower(string(cfg.Format))) {
	case "", FormatText:
		handler = slog.NewTextHandler(w, &opts)
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &opts)
	case FormatConsole:
		handler = console.NewHandler(w, &console.HandlerOptions{
			Level:   cfg.Level,
			NoColor: cfg.NoColor,
		})
	case FormatDev:
		opts.AddSource = true
		handler = devslog.NewHandler(w, &devslog.Options{
			HandlerOptions:  &opts,
			NewLineAfterLog: true,
			NoColor:         cfg.NoColor,
		})
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	return slog.New(handler), nil
}
