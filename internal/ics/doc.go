// Package ics gives the alarm pipeline read access to raw calendar
// payloads: rendering fields (organizer, attendees, summary, location,
// description, start time), occurrence lookup by RECURRENCE-ID, and
// computation of the next reminder instant of a recurring series from
// its RRULE and VALARM trigger.
package ics
