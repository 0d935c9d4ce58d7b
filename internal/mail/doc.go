// Package mail renders localized event-alarm notifications from a
// structured content model and delivers them over SMTP.
package mail
