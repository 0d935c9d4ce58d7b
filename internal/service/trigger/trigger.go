package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/dkotenko/calarm/internal/domain/alarm"
	"github.com/dkotenko/calarm/internal/ics"
	"github.com/dkotenko/calarm/internal/logger"
	"github.com/dkotenko/calarm/internal/mail"
	alarmrepo "github.com/dkotenko/calarm/internal/repository/alarm"
	"github.com/dkotenko/calarm/internal/settings"
)

// NextInstantFunc resolves the reminder instant of the next occurrence
// of a recurring series, or nil when the series is exhausted.
type NextInstantFunc func(payload []byte, after time.Time, recipient string) (*ics.AlarmInstant, error)

// Service processes one due alarm end to end: resolve recipient
// preferences, render and send the notification, then delete the record
// or advance it to the next occurrence.
type Service struct {
	store    alarmrepo.Repository
	settings settings.Resolver
	renderer mail.Renderer
	sender   mail.Sender

	// nextInstant computes recurrence advancement; replaceable in tests.
	nextInstant NextInstantFunc
	// now is the clock; replaceable in tests.
	now func() time.Time
}

// NewService creates a trigger processor over the provided
// collaborators.
func NewService(
	store alarmrepo.Repository,
	resolver settings.Resolver,
	renderer mail.Renderer,
	sender mail.Sender,
) *Service {
	return &Service{
		store:       store,
		settings:    resolver,
		renderer:    renderer,
		sender:      sender,
		nextInstant: ics.NextAlarmInstant,
		now:         time.Now,
	}
}

// Process delivers the reminder and advances or removes its record.
//
// On error the record is left untouched: its AlarmTime is unchanged and
// still due, so the next poll cycle retries. That makes delivery
// at-least-once under partial failure.
func (s *Service) Process(ctx context.Context, event *domain.Event) error {
	now := s.now()
	resolved := s.resolveSettings(ctx, event.Recipient)

	if resolved.AlarmEnabled {
		if err := s.send(ctx, event, resolved, now); err != nil {
			return fmt.Errorf("send reminder: %w", err)
		}
	} else {
		// A disabled reminder still consumes its record below.
		logger.InfoKV(ctx, "Reminders disabled for recipient, skipping send",
			"event", event.ShortString())
	}

	if err := s.cleanup(ctx, event, now); err != nil {
		return fmt.Errorf("advance alarm record: %w", err)
	}

	logger.InfoKV(ctx, "Processed alarm",
		"event_uid", event.EventUID,
		"recipient", event.Recipient,
		"event_start_time", event.EventStartTime)

	return nil
}

// resolveSettings looks the recipient's preferences up, falling back to
// defaults on any failure. An unknown mail domain is an expected
// condition and stays quiet; everything else is logged.
func (s *Service) resolveSettings(ctx context.Context, recipient string) settings.Resolved {
	resolved, err := s.settings.Resolve(ctx, recipient)
	if err != nil {
		if !errors.Is(err, settings.ErrUnknownDomain) {
			logger.ErrorKV(ctx, "Error resolving recipient settings, using defaults",
				"recipient", recipient, "error", err)
		}

		return settings.Default
	}

	return resolved
}

// send renders the localized notification and hands it to the mail
// transport.
func (s *Service) send(ctx context.Context, event *domain.Event, resolved settings.Resolved, now time.Time) error {
	cal, err := ics.Parse(event.ICS)
	if err != nil {
		return err
	}

	vevent, err := ics.SelectEvent(cal, event.RecurrenceID)
	if err != nil {
		return err
	}

	details, err := ics.Details(vevent)
	if err != nil {
		return err
	}

	content := &mail.Content{
		Summary:       details.Summary,
		Organizer:     toMailPerson(details.Organizer),
		Location:      details.Location,
		Description:   details.Description,
		StartAt:       event.EventStartTime,
		TimeRemaining: event.EventStartTime.Sub(now),
	}

	for _, attendee := range details.Attendees {
		content.Attendees = append(content.Attendees, toMailPerson(attendee))
	}

	message, err := s.renderer.Render(content, event.Recipient, resolved.Locale)
	if err != nil {
		return err
	}

	return s.sender.Send(ctx, message)
}

// cleanup removes a one-off record, or advances a recurring one to the
// next occurrence for every recipient the resolution returns.
//
// Recipients missing from the new resolution are deliberately not
// pruned; only the returned recipients are upserted.
func (s *Service) cleanup(ctx context.Context, event *domain.Event, now time.Time) error {
	if !event.Recurring {
		return s.store.Delete(ctx, event.EventUID, event.Recipient)
	}

	instant, err := s.nextInstant(event.ICS, now, event.Recipient)
	if err != nil {
		return err
	}

	if instant == nil {
		// Series exhausted.
		return s.store.Delete(ctx, event.EventUID, event.Recipient)
	}

	for _, recipient := range instant.Recipients {
		next := &domain.Event{
			EventUID:       event.EventUID,
			AlarmTime:      instant.AlarmTime,
			EventStartTime: instant.EventStartTime,
			Recurring:      true,
			RecurrenceID:   instant.RecurrenceID,
			Recipient:      recipient,
			ICS:            event.ICS,
		}

		if err := s.store.Update(ctx, next); err != nil {
			return err
		}
	}

	return nil
}

// toMailPerson maps a parsed calendar person onto the mail model.
func toMailPerson(p ics.Person) mail.Person {
	return mail.Person{Name: p.CN, Email: p.Email}
}
