// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	libstage "github.com/hashicorp/go-libstage"
	"github.com/hashicorp/go-libstage/internal/logging"
	"github.com/pkg/errors"
)

// CLI are the cli parameters for the libstage binary
type CLI struct {
	Name              string           `arg:"" optional:"" name:"name" help:"Resource name to stage. (default: current platform)"`
	AppDir            string           `optional:"" default:"libstage" help:"Folder below the temp directory that holds staged resources."`
	Archives          []string         `short:"a" name:"archive" type:"existingfile" help:"Zip-format archive (zip, jar, war) to add to the search path."`
	DefaultSearchPath bool             `short:"D" help:"Add the executable directory and an appended zip payload to the search path."`
	Dirs              []string         `short:"d" name:"dir" type:"existingdir" help:"Directory to add to the search path."`
	Load              string           `short:"l" optional:"" help:"Load this library from the staged directory afterwards."`
	LogFormat         string           `optional:"" default:"text" enum:"text,json,console,dev" help:"Log format (text, json, console, dev)."`
	Mounts            []string         `short:"m" name:"mount" help:"Archive to expand in memory and mount as virtual filesystem. (NAME=PATH)"`
	NoColor           bool             `optional:"" help:"Disable colored log output."`
	NoProcessLock     bool             `optional:"" help:"Do not serialize staging across processes."`
	Telemetry         bool             `short:"T" optional:"" help:"Print telemetry data to log after staging."`
	TempDir           string           `optional:"" type:"path" help:"Base directory of the staging root. (default: system temp dir)"`
	Verbose           bool             `short:"v" optional:"" help:"Verbose logging."`
	Version           kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`
}

// Run the entrypoint into libstage as a cli tool
func Run(version, commit, date string) {
	var cli CLI
	kong.Parse(&cli,
		kong.Description("Stage bundled native libraries to a local directory"),
		kong.UsageOnError(),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
		},
	)

	// Check for verbose output
	logLevel := slog.LevelWarn
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}

	// setup logger
	logger, err := logging.New(os.Stderr, logging.Config{
		Level:   logLevel,
		Format:  logging.Format(cli.LogFormat),
		NoColor: cli.NoColor,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}

	if err := run(context.Background(), &cli, logger, os.Stdout); err != nil {
		logger.Error("staging failed", "err", err)
		os.Exit(-1)
	}
}

// run stages the resource name configured in cli and prints the staging directory to out.
func run(ctx context.Context, cli *CLI, logger *slog.Logger, out io.Writer) error {
	sp, err := searchPath(cli)
	if err != nil {
		return err
	}

	// setup telemetry hook
	telemetryToLog := func(ctx context.Context, td *libstage.TelemetryData) {
		if cli.Telemetry {
			logger.Info("staging finished", "telemetry", td)
		}
	}

	stager := libstage.NewStager(sp,
		libstage.WithAppDir(cli.AppDir),
		libstage.WithLogger(logger),
		libstage.WithPlatform(cli.Name),
		libstage.WithProcessLock(!cli.NoProcessLock),
		libstage.WithTelemetryHook(telemetryToLog),
		libstage.WithTempDir(cli.TempDir),
	)

	name := stager.Config().Platform()

	if len(cli.Load) > 0 {
		lib, err := libstage.NewLoader(cli.Load, stager, nil).Load(ctx)
		if err != nil {
			return errors.Wrapf(err, "loading %s", cli.Load)
		}
		_, err = fmt.Fprintln(out, lib.Path)
		return err
	}

	dst, err := stager.Stage(ctx, name)
	if err != nil {
		return errors.Wrapf(err, "staging %s", name)
	}
	if _, err := os.Stat(dst); err != nil {
		logger.Warn("nothing staged", "name", name, "destination", dst)
	}

	_, err = fmt.Fprintln(out, dst)
	return err
}

// searchPath assembles the search path from the cli parameters. Directories come first,
// followed by archives, mounts and finally the default search path.
func searchPath(cli *CLI) (*libstage.SearchPath, error) {
	sp := libstage.NewSearchPath()

	for _, dir := range cli.Dirs {
		if err := sp.AddDir(dir); err != nil {
			return nil, errors.Wrap(err, "adding directory")
		}
	}

	for _, archive := range cli.Archives {
		if err := sp.Add(archive); err != nil {
			return nil, errors.Wrap(err, "adding archive")
		}
	}

	for _, m := range cli.Mounts {
		name, path, ok := strings.Cut(m, "=")
		if !ok {
			return nil, errors.Errorf("invalid mount %q, expected NAME=PATH", m)
		}
		if err := sp.MountArchive(name, path); err != nil {
			return nil, errors.Wrap(err, "mounting archive")
		}
	}

	if cli.DefaultSearchPath {
		if err := sp.AddDefault(); err != nil {
			return nil, errors.Wrap(err, "adding default search path")
		}
	}

	return sp, nil
}
