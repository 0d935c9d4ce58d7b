// Package settings resolves per-recipient notification preferences:
// locale, timezone and the reminder on/off switch. Resolution failures
// never block delivery; callers fall back to Default.
package settings
