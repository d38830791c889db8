// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package libstage

import (
	"context"
	"encoding/json"
	"time"
)

// TelemetryData holds all telemetry data of a staging pass.
type TelemetryData struct {
	// ArchiveRoots is the number of resolved roots inside archives
	ArchiveRoots int64 `json:"archive_roots"`

	// CopiedBytes is the number of bytes written to the destination
	CopiedBytes int64 `json:"copied_bytes"`

	// CopiedFiles is the number of files written to the destination
	CopiedFiles int64 `json:"copied_files"`

	// CreatedDirs is the number of directories created below the destination
	CreatedDirs int64 `json:"created_dirs"`

	// Destination is the staging directory of the pass
	Destination string `json:"destination"`

	// LastStagingError is the last error during staging
	LastStagingError error `json:"last_staging_error"`

	// Name is the staged resource name
	Name string `json:"name"`

	// PlainRoots is the number of resolved roots on the regular filesystem
	PlainRoots int64 `json:"plain_roots"`

	// SkippedFiles is the number of files that already existed with the expected size
	SkippedFiles int64 `json:"skipped_files"`

	// StagingDuration is the time the staging pass took
	StagingDuration time.Duration `json:"staging_duration"`

	// StagingErrors is the number of errors during staging, including swallowed ones
	StagingErrors int64 `json:"staging_errors"`

	// VirtualRoots is the number of resolved roots on virtual filesystems
	VirtualRoots int64 `json:"virtual_roots"`
}

// Roots returns the number of resolved roots over all kinds.
func (td TelemetryData) Roots() int64 {
	return td.ArchiveRoots + td.PlainRoots + td.VirtualRoots
}

// String returns a string representation of [TelemetryData].
func (td TelemetryData) String() string {
	b, _ := json.Marshal(td)
	return string(b)
}

// MarshalJSON implements the [encoding/json.Marshaler] interface.
func (td TelemetryData) MarshalJSON() ([]byte, error) {
	var lastError string
	if td.LastStagingError != nil {
		lastError = td.LastStagingError.Error()
	}

	type Alias TelemetryData
	return json.Marshal(&struct {
		LastStagingError string `json:"last_staging_error"`
		*Alias
	}{
		LastStagingError: lastError,
		Alias:            (*Alias)(&td),
	})
}

// TelemetryHook is a function type that performs operations on [TelemetryData]
// after a staging pass has finished which can be used to submit the [TelemetryData]
// to a telemetry service, for example.
type TelemetryHook func(context.Context, *TelemetryData)

// recordError counts err and remembers it as the last error.
func (td *TelemetryData) recordError(err error) {
	td.StagingErrors++
	td.LastStagingError = err
}

// captureStagingDuration ensures that the staging duration is captured
func captureStagingDuration(td *TelemetryData, start time.Time) {
	td.StagingDuration = time.Since(start)
}
