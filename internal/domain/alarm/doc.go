// Package alarm defines the domain model of a pending calendar
// reminder and its storage key discipline.
package alarm
