package alarm

import (
	"fmt"
	"strings"
	"time"
)

// Event is a pending reminder for a calendar event.
//
// At most one live Event exists per (EventUID, Recipient) pair. Records
// are created upstream when an event's alarms are (re)computed; they
// are mutated or deleted only by the trigger processor.
type Event struct {
	// EventUID is the stable identifier of the source calendar event.
	EventUID string
	// AlarmTime is the instant at which the reminder should be delivered.
	AlarmTime time.Time
	// EventStartTime is when the calendar event itself begins.
	EventStartTime time.Time
	// Recurring reports whether the source event repeats.
	Recurring bool
	// RecurrenceID identifies the specific occurrence this record refers
	// to. Empty until an occurrence is resolved for a recurring event.
	RecurrenceID string
	// Recipient is the email address to notify.
	Recipient string
	// ICS is the raw calendar payload used to re-render the event and to
	// compute the next occurrence.
	ICS []byte
}

// Key returns the canonical (EventUID, Recipient) storage key.
// Recipients are case-insensitive mail addresses, so the key lowercases them.
func (e *Event) Key() string {
	return Key(e.EventUID, e.Recipient)
}

// Key builds the canonical storage key for an event/recipient pair.
func Key(eventUID, recipient string) string {
	return eventUID + "\x00" + strings.ToLower(recipient)
}

// ShortString renders a compact identification of the event for logs.
func (e *Event) ShortString() string {
	return fmt.Sprintf("event=%s recipient=%s alarm_time=%d",
		e.EventUID, strings.ToLower(e.Recipient), e.AlarmTime.Unix())
}

// Clone returns a copy of the event with its own ICS buffer, so callers
// cannot mutate a stored record through a shared slice.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}

	cloned := *e
	cloned.ICS = append([]byte(nil), e.ICS...)

	return &cloned
}
