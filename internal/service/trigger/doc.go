// Package trigger processes a single due alarm: it resolves the
// recipient's preferences, sends the localized notification and then
// drives the record's state machine: delete for one-off events,
// advance to the next occurrence for recurring ones.
package trigger
