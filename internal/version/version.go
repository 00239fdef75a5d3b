// SPDX-License-Identifier: MIT

// Package version carries build identity injected via ldflags.
package version

var (
	// Version is the current application version. Populated by the build
	// system; the fallback matches the latest tagged release.
	Version = "v0.3.0"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)
