package mail

import (
	"context"
	"time"

	"golang.org/x/text/language"
)

// Person is a rendered organizer or attendee.
type Person struct {
	// Name is the display name; falls back to the address upstream.
	Name string
	// Email is the bare mail address.
	Email string
}

// Content is the structured model of one reminder notification.
type Content struct {
	// Summary is the event title.
	Summary string
	// Organizer convenes the event.
	Organizer Person
	// Attendees are the invited participants.
	Attendees []Person
	// Location is optional.
	Location string
	// Description is optional.
	Description string
	// StartAt is when the event begins.
	StartAt time.Time
	// TimeRemaining is eventStart minus now at render time. Negative
	// values mean the event already started; rendering clamps them.
	TimeRemaining time.Duration
}

// Message is a rendered notification ready for transport.
type Message struct {
	// Recipient is the destination address.
	Recipient string
	// Subject is the localized subject line.
	Subject string
	// Body is the localized plain-text body.
	Body string
}

// Sender transmits rendered notification messages. Failures propagate
// as opaque errors to the trigger processor, which logs and retries on
// the next poll cycle.
type Sender interface {
	Send(ctx context.Context, message *Message) error
}

// Renderer produces a localized Message from a Content model.
type Renderer interface {
	Render(content *Content, recipient string, locale language.Tag) (*Message, error)
}
