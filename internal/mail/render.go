package mail

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/language"
)

// catalog holds the localized strings of the event-alarm template.
type catalog struct {
	subject     string // fmt: summary, duration
	intro       string // fmt: summary, duration
	organizer   string
	attendees   string
	location    string
	description string
	now         string // rendered when the event already started
	day         string
	days        string
	hour        string
	hours       string
	minute      string
	minutes     string
}

// catalogs lists the supported notification languages. The matcher
// falls back to the first entry, so English leads.
//
//nolint:gochecknoglobals // Static translation table.
var catalogs = map[language.Tag]catalog{
	language.English: {
		subject:     "Notification: %s starts in %s",
		intro:       "The event %s starts in %s.",
		organizer:   "Organizer",
		attendees:   "Attendees",
		location:    "Location",
		description: "Description",
		now:         "now",
		day:         "day",
		days:        "days",
		hour:        "hour",
		hours:       "hours",
		minute:      "minute",
		minutes:     "minutes",
	},
	language.French: {
		subject:     "Notification : %s commence dans %s",
		intro:       "L'évènement %s commence dans %s.",
		organizer:   "Organisateur",
		attendees:   "Participants",
		location:    "Lieu",
		description: "Description",
		now:         "maintenant",
		day:         "jour",
		days:        "jours",
		hour:        "heure",
		hours:       "heures",
		minute:      "minute",
		minutes:     "minutes",
	},
	language.Russian: {
		subject:     "Напоминание: %s начнётся через %s",
		intro:       "Событие %s начнётся через %s.",
		organizer:   "Организатор",
		attendees:   "Участники",
		location:    "Место",
		description: "Описание",
		now:         "сейчас",
		day:         "дн.",
		days:        "дн.",
		hour:        "ч.",
		hours:       "ч.",
		minute:      "мин.",
		minutes:     "мин.",
	},
}

//nolint:gochecknoglobals // Derived from the static catalog table.
var (
	supportedLocales = []language.Tag{language.English, language.French, language.Russian}
	localeMatcher    = language.NewMatcher(supportedLocales)
)

// bodyTemplate is the plain-text event-alarm layout. Labels and the
// intro line arrive pre-localized.
//
//nolint:gochecknoglobals // Parsed once at startup.
var bodyTemplate = template.Must(template.New("event-alarm").Parse(
	`{{.Intro}}

{{.OrganizerLabel}}: {{.Organizer.Name}} <{{.Organizer.Email}}>
{{- if .Attendees}}
{{.AttendeesLabel}}:
{{- range .Attendees}}
  - {{.Name}} <{{.Email}}>
{{- end}}
{{- end}}
{{- if .Location}}
{{.LocationLabel}}: {{.Location}}
{{- end}}
{{- if .Description}}
{{.DescriptionLabel}}: {{.Description}}
{{- end}}
`))

// bodyModel feeds bodyTemplate.
type bodyModel struct {
	Intro            string
	OrganizerLabel   string
	Organizer        Person
	AttendeesLabel   string
	Attendees        []Person
	LocationLabel    string
	Location         string
	DescriptionLabel string
	Description      string
}

// TemplateRenderer renders the event-alarm notification in the best
// matching supported language.
type TemplateRenderer struct{}

// Render produces the localized subject and body for the recipient.
func (TemplateRenderer) Render(content *Content, recipient string, locale language.Tag) (*Message, error) {
	_, index, _ := localeMatcher.Match(locale)
	cat := catalogs[supportedLocales[index]]

	duration := formatDuration(content.TimeRemaining, cat)

	model := bodyModel{
		Intro:            fmt.Sprintf(cat.intro, content.Summary, duration),
		OrganizerLabel:   cat.organizer,
		Organizer:        content.Organizer,
		AttendeesLabel:   cat.attendees,
		Attendees:        content.Attendees,
		LocationLabel:    cat.location,
		Location:         content.Location,
		DescriptionLabel: cat.description,
		Description:      content.Description,
	}

	var body strings.Builder
	if err := bodyTemplate.Execute(&body, model); err != nil {
		return nil, fmt.Errorf("render notification body: %w", err)
	}

	return &Message{
		Recipient: recipient,
		Subject:   fmt.Sprintf(cat.subject, content.Summary, duration),
		Body:      body.String(),
	}, nil
}

// FormatDuration renders a time-remaining value in the best matching
// supported language, e.g. "1 hour 5 minutes".
func FormatDuration(d time.Duration, locale language.Tag) string {
	_, index, _ := localeMatcher.Match(locale)

	return formatDuration(d, catalogs[supportedLocales[index]])
}

// formatDuration renders the value with the catalog's unit names.
// Sub-minute and negative remainders render as the localized "now": an
// alarm firing after the event started is still delivered, it just
// cannot claim the event is ahead.
func formatDuration(d time.Duration, cat catalog) string {
	if d < time.Minute {
		return cat.now
	}

	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", days, pick(days, cat.day, cat.days)))
	}

	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", hours, pick(hours, cat.hour, cat.hours)))
	}

	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", minutes, pick(minutes, cat.minute, cat.minutes)))
	}

	return strings.Join(parts, " ")
}

// pick selects the singular or plural unit name.
func pick(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}

	return plural
}
