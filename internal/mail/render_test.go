package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func testContent() *Content {
	return &Content{
		Summary:   "Sprint review",
		Organizer: Person{Name: "Alice Smith", Email: "alice@example.com"},
		Attendees: []Person{
			{Name: "Bob", Email: "bob@example.com"},
			{Name: "Carol", Email: "carol@example.com"},
		},
		Location:      "Room 42",
		Description:   "Quarterly sync",
		StartAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		TimeRemaining: 10 * time.Minute,
	}
}

// TestRenderEnglish checks the full subject and body layout.
func TestRenderEnglish(t *testing.T) {
	t.Parallel()

	msg, err := TemplateRenderer{}.Render(testContent(), "bob@example.com", language.English)
	require.NoError(t, err)

	require.Equal(t, "bob@example.com", msg.Recipient)
	require.Equal(t, "Notification: Sprint review starts in 10 minutes", msg.Subject)
	require.Contains(t, msg.Body, "The event Sprint review starts in 10 minutes.")
	require.Contains(t, msg.Body, "Organizer: Alice Smith <alice@example.com>")
	require.Contains(t, msg.Body, "- Bob <bob@example.com>")
	require.Contains(t, msg.Body, "- Carol <carol@example.com>")
	require.Contains(t, msg.Body, "Location: Room 42")
	require.Contains(t, msg.Body, "Description: Quarterly sync")
}

// TestRenderOmitsEmptyOptionalFields: no location/description lines
// when the event carries none.
func TestRenderOmitsEmptyOptionalFields(t *testing.T) {
	t.Parallel()

	content := testContent()
	content.Location = ""
	content.Description = ""
	content.Attendees = nil

	msg, err := TemplateRenderer{}.Render(content, "bob@example.com", language.English)
	require.NoError(t, err)

	require.NotContains(t, msg.Body, "Location:")
	require.NotContains(t, msg.Body, "Description:")
	require.NotContains(t, msg.Body, "Attendees:")
}

// TestRenderFrench picks the French catalog.
func TestRenderFrench(t *testing.T) {
	t.Parallel()

	msg, err := TemplateRenderer{}.Render(testContent(), "bob@example.com", language.French)
	require.NoError(t, err)

	require.Equal(t, "Notification : Sprint review commence dans 10 minutes", msg.Subject)
	require.Contains(t, msg.Body, "Organisateur: Alice Smith")
}

// TestRenderUnsupportedLocaleFallsBackToEnglish: an unmatched tag uses
// the leading catalog entry.
func TestRenderUnsupportedLocaleFallsBackToEnglish(t *testing.T) {
	t.Parallel()

	msg, err := TemplateRenderer{}.Render(testContent(), "bob@example.com", language.Japanese)
	require.NoError(t, err)
	require.Contains(t, msg.Subject, "starts in")
}

// TestFormatDuration exercises unit selection and the "now" clamp.
func TestFormatDuration(t *testing.T) {
	t.Parallel()

	cases := map[time.Duration]string{
		10 * time.Minute:              "10 minutes",
		time.Minute:                   "1 minute",
		time.Hour + 5*time.Minute:     "1 hour 5 minutes",
		26*time.Hour + 30*time.Minute: "1 day 2 hours 30 minutes",
		3 * 24 * time.Hour:            "3 days",
		30 * time.Second:              "now",
		-10 * time.Minute:             "now",
		2*time.Hour + 59*time.Second:  "2 hours",
		48*time.Hour + time.Minute:    "2 days 1 minute",
	}

	for d, want := range cases {
		require.Equal(t, want, FormatDuration(d, language.English), d.String())
	}

	require.Equal(t, "10 minutes", FormatDuration(10*time.Minute, language.French))
	require.Equal(t, "10 мин.", FormatDuration(10*time.Minute, language.Russian))
}
