// Package version exposes build metadata for the scheduler daemon.
//
// Version, Commit and BuildTime are injected at build time via Go
// ldflags and default to sensible values for local builds.
package version
