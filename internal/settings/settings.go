package settings

import (
	"context"
	"errors"

	"golang.org/x/text/language"
)

// Resolved holds the per-recipient preferences the trigger pipeline
// cares about.
type Resolved struct {
	// Locale selects the notification language.
	Locale language.Tag
	// Timezone is the recipient's IANA timezone name, possibly empty.
	Timezone string
	// AlarmEnabled reports whether the recipient wants reminder mails.
	AlarmEnabled bool
}

// Default is used whenever a recipient's stored settings cannot be
// resolved: English, reminders on. Delivery is never blocked by a
// preference-lookup failure.
var Default = Resolved{
	Locale:       language.English,
	AlarmEnabled: true,
}

// ErrUnknownDomain signals that the recipient's mail domain is not
// managed by this deployment. Callers fall back to defaults without
// alarming the logs; every other resolver failure is worth a warning.
var ErrUnknownDomain = errors.New("recipient domain is not managed")

// Resolver looks up the preferences of a reminder recipient.
type Resolver interface {
	// Resolve returns the recipient's settings, or an error. Callers are
	// expected to fall back to Default on any error.
	Resolve(ctx context.Context, recipient string) (Resolved, error)
}

// Static is a Resolver returning the same settings for every
// recipient. The zero value resolves everyone to Default.
type Static struct {
	// Settings, when non-nil, is returned for every recipient.
	Settings *Resolved
}

// Resolve returns the fixed settings.
func (s Static) Resolve(_ context.Context, _ string) (Resolved, error) {
	if s.Settings != nil {
		return *s.Settings, nil
	}

	return Default, nil
}
