package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// Person is an organizer or attendee extracted from a calendar payload.
type Person struct {
	// CN is the common (display) name, possibly empty.
	CN string
	// Email is the bare mail address, without the mailto: scheme.
	Email string
}

// EventDetails is the slice of a VEVENT the reminder mail needs.
type EventDetails struct {
	Summary     string
	Location    string
	Description string
	Organizer   Person
	Attendees   []Person
	StartAt     time.Time
}

var (
	// ErrNoEvent is returned when the payload contains no VEVENT.
	ErrNoEvent = errors.New("no VEVENT found in calendar payload")
	// errEmptyPayload is returned for an empty ICS body.
	errEmptyPayload = errors.New("empty ICS payload")
)

// Parse decodes a raw ICS payload into a calendar.
func Parse(payload []byte) (*ical.Calendar, error) {
	if len(payload) == 0 {
		return nil, errEmptyPayload
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("parse ICS payload: %w", err)
	}

	return cal, nil
}

// SelectEvent locates the VEVENT a reminder refers to. With a non-empty
// recurrenceID it picks the sub-component whose RECURRENCE-ID matches;
// otherwise, or when no override matches, the first VEVENT is used.
func SelectEvent(cal *ical.Calendar, recurrenceID string) (*ical.VEvent, error) {
	events := cal.Events()
	if len(events) == 0 {
		return nil, ErrNoEvent
	}

	if recurrenceID != "" {
		for _, event := range events {
			if p := event.GetProperty("RECURRENCE-ID"); p != nil && p.Value == recurrenceID {
				return event, nil
			}
		}
	}

	return events[0], nil
}

// Details extracts the renderable fields from a VEVENT.
func Details(event *ical.VEvent) (*EventDetails, error) {
	startAt, err := event.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("read event start: %w", err)
	}

	details := &EventDetails{
		StartAt: startAt,
	}

	if p := event.GetProperty(ical.ComponentPropertySummary); p != nil {
		details.Summary = p.Value
	}

	if p := event.GetProperty(ical.ComponentPropertyLocation); p != nil {
		details.Location = p.Value
	}

	if p := event.GetProperty(ical.ComponentPropertyDescription); p != nil {
		details.Description = p.Value
	}

	if p := event.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		details.Organizer = toPerson(p.Value, p.ICalParameters)
	}

	for _, p := range event.GetProperties(ical.ComponentPropertyAttendee) {
		details.Attendees = append(details.Attendees, toPerson(p.Value, p.ICalParameters))
	}

	return details, nil
}

// AttendeeEmails returns the lowercased attendee addresses of the event.
func AttendeeEmails(event *ical.VEvent) []string {
	var emails []string

	for _, p := range event.GetProperties(ical.ComponentPropertyAttendee) {
		if email := stripMailto(p.Value); email != "" {
			emails = append(emails, strings.ToLower(email))
		}
	}

	return emails
}

// toPerson builds a Person from a CAL-ADDRESS value and its parameters.
func toPerson(value string, params map[string][]string) Person {
	person := Person{Email: stripMailto(value)}

	if cns, ok := params["CN"]; ok && len(cns) > 0 {
		person.CN = cns[0]
	}

	if person.CN == "" {
		person.CN = person.Email
	}

	return person
}

// stripMailto removes the mailto: scheme from a CAL-ADDRESS value.
func stripMailto(value string) string {
	value = strings.TrimSpace(value)

	if len(value) >= len("mailto:") && strings.EqualFold(value[:len("mailto:")], "mailto:") {
		return value[len("mailto:"):]
	}

	return value
}
