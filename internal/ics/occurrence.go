package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

// AlarmInstant is the resolved reminder instant of one occurrence of a
// recurring event.
type AlarmInstant struct {
	// AlarmTime is when the reminder fires.
	AlarmTime time.Time
	// EventStartTime is when the occurrence begins.
	EventStartTime time.Time
	// RecurrenceID identifies the occurrence (UTC, basic ICS format).
	RecurrenceID string
	// Recipients lists every address a reminder record should exist for.
	Recipients []string
}

// recurrenceIDLayout is the basic UTC date-time form used for
// RECURRENCE-ID values produced by this package.
const recurrenceIDLayout = "20060102T150405Z"

// NextAlarmInstant computes the reminder instant of the next occurrence
// whose alarm fires strictly after the given instant.
//
// It returns (nil, nil) when the series is exhausted, carries no RRULE,
// or defines no VALARM trigger: in all three cases there is nothing
// left to schedule.
func NextAlarmInstant(payload []byte, after time.Time, recipient string) (*AlarmInstant, error) {
	cal, err := Parse(payload)
	if err != nil {
		return nil, err
	}

	event, err := masterEvent(cal)
	if err != nil {
		return nil, err
	}

	offset, ok := triggerOffset(event)
	if !ok {
		return nil, nil
	}

	rruleProp := event.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil || rruleProp.Value == "" {
		return nil, nil
	}

	start, err := event.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("read event start: %w", err)
	}

	rule, err := rrule.StrToRRule(rruleProp.Value)
	if err != nil {
		return nil, fmt.Errorf("parse RRULE %q: %w", rruleProp.Value, err)
	}

	rule.DTStart(start)

	var set rrule.Set

	set.RRule(rule)

	for _, exDate := range exDates(event, start.Location()) {
		set.ExDate(exDate)
	}

	// alarmTime = occurrenceStart + offset, so the next occurrence whose
	// alarm is still ahead starts strictly after (after - offset).
	nextStart := set.After(after.Add(-offset).In(start.Location()), false)
	if nextStart.IsZero() {
		return nil, nil
	}

	recipients := AttendeeEmails(event)
	if len(recipients) == 0 {
		recipients = []string{strings.ToLower(recipient)}
	}

	return &AlarmInstant{
		AlarmTime:      nextStart.Add(offset),
		EventStartTime: nextStart,
		RecurrenceID:   nextStart.UTC().Format(recurrenceIDLayout),
		Recipients:     recipients,
	}, nil
}

// masterEvent returns the base VEVENT of the series, skipping
// RECURRENCE-ID overrides.
func masterEvent(cal *ical.Calendar) (*ical.VEvent, error) {
	events := cal.Events()
	if len(events) == 0 {
		return nil, ErrNoEvent
	}

	for _, event := range events {
		if event.GetProperty("RECURRENCE-ID") == nil {
			return event, nil
		}
	}

	return events[0], nil
}

// triggerOffset reads the relative VALARM trigger of the event.
// Absolute (DATE-TIME) triggers carry no reusable offset and report false.
func triggerOffset(event *ical.VEvent) (time.Duration, bool) {
	for _, alarm := range event.Alarms() {
		p := alarm.GetProperty("TRIGGER")
		if p == nil || p.Value == "" {
			continue
		}

		if values, ok := p.ICalParameters["VALUE"]; ok && len(values) > 0 &&
			strings.EqualFold(values[0], "DATE-TIME") {
			continue
		}

		offset, err := parseISODuration(p.Value)
		if err != nil {
			continue
		}

		return offset, true
	}

	return 0, false
}

// exDates parses the event's EXDATE properties into the given location.
func exDates(event *ical.VEvent, loc *time.Location) []time.Time {
	var out []time.Time

	for _, p := range event.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			if t, err := parseICSTime(part, loc); err == nil {
				out = append(out, t)
			}
		}
	}

	return out
}

// parseICSTime parses a basic ICS date or date-time value.
func parseICSTime(value string, loc *time.Location) (time.Time, error) {
	switch {
	case strings.HasSuffix(value, "Z"):
		return time.Parse("20060102T150405Z", value)
	case strings.Contains(value, "T"):
		return time.ParseInLocation("20060102T150405", value, loc)
	default:
		return time.ParseInLocation("20060102", value, loc)
	}
}

// parseISODuration parses an ISO 8601 duration such as "-PT15M" or
// "P1DT2H" into a time.Duration. Only the day/time designators used by
// VALARM triggers are supported.
func parseISODuration(value string) (time.Duration, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	negative := false

	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	if len(s) == 0 || (s[0] != 'P' && s[0] != 'p') {
		return 0, fmt.Errorf("invalid ISO duration %q", value)
	}

	s = s[1:]

	var (
		total      time.Duration
		number     int64
		inTime     bool
		digits     bool
		components int
	)

	for i := range len(s) {
		c := s[i]

		switch {
		case c >= '0' && c <= '9':
			number = number*10 + int64(c-'0')
			digits = true
		case c == 'T' || c == 't':
			inTime = true
		default:
			if !digits {
				return 0, fmt.Errorf("invalid ISO duration %q", value)
			}

			switch {
			case (c == 'W' || c == 'w') && !inTime:
				total += time.Duration(number) * 7 * 24 * time.Hour
			case (c == 'D' || c == 'd') && !inTime:
				total += time.Duration(number) * 24 * time.Hour
			case (c == 'H' || c == 'h') && inTime:
				total += time.Duration(number) * time.Hour
			case (c == 'M' || c == 'm') && inTime:
				total += time.Duration(number) * time.Minute
			case (c == 'S' || c == 's') && inTime:
				total += time.Duration(number) * time.Second
			default:
				return 0, fmt.Errorf("invalid designator %q in ISO duration %q", string(c), value)
			}

			number = 0
			digits = false
			components++
		}
	}

	if digits {
		return 0, fmt.Errorf("trailing number in ISO duration %q", value)
	}

	if components == 0 {
		return 0, fmt.Errorf("empty ISO duration %q", value)
	}

	if negative {
		total = -total
	}

	return total, nil
}
