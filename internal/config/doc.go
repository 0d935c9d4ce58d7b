// Package config defines the YAML settings consumed by the scheduler
// daemon and provides helpers to load and validate them.
//
// Validation is deliberately strict: non-positive durations, a
// non-positive batch size or an unknown scheduler mode reject the whole
// configuration at load time. A misconfigured scheduler never reaches
// the polling loop.
package config
