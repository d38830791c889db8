// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package libstage stages native libraries that ship inside an application's
// deployment artifact onto the local disk, so they can be loaded from a
// predictable path.
//
// A [SearchPath] lists the places resources are looked up in: zip-format archives
// (zip, jar, war), plain directories and mounted virtual filesystems. A [Stager]
// resolves a resource name, typically the platform tag from [CurrentPlatform], against
// the search path and copies every matching resource root into
// <temp dir>/<app dir>/<name>. Files that already exist with the expected size are
// not written again, which makes repeated staging passes cheap.
//
// A [Loader] stages the current platform and opens a shared library from the
// resulting directory exactly once.
//
// Configuration is done using the [Config], which holds the staging root, the
// logger and the telemetry hook. [TelemetryData] is captured for every staging pass.
package libstage
