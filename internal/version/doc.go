// Package version exposes build metadata for the installer binaries.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. Short and Full render them for CLI output, UserAgent for HTTP.
package version
