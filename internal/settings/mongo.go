package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/text/language"
)

// Collection and field names of the user settings store.
const (
	Collection = "calendar_user_settings"

	emailField    = "email"
	languageField = "language"
	timezoneField = "timezone"
	alarmField    = "alarmEnabled"
)

// MongoResolver reads per-user settings from a shared MongoDB
// collection populated by the user-facing calendar application.
type MongoResolver struct {
	collection *mongo.Collection
	// domains, when non-empty, lists the mail domains this deployment
	// manages. Recipients outside it resolve to ErrUnknownDomain.
	domains map[string]struct{}
}

// settingsDocument is the BSON shape of one user's preferences.
// Pointers keep "unset" distinguishable from zero values.
type settingsDocument struct {
	Email        string  `bson:"email"`
	Language     *string `bson:"language,omitempty"`
	Timezone     *string `bson:"timezone,omitempty"`
	AlarmEnabled *bool   `bson:"alarmEnabled,omitempty"`
}

// NewMongoResolver creates a resolver over the user settings
// collection. managedDomains may be empty, in which case every domain
// is accepted.
func NewMongoResolver(database *mongo.Database, managedDomains []string) *MongoResolver {
	domains := make(map[string]struct{}, len(managedDomains))
	for _, domain := range managedDomains {
		domains[strings.ToLower(domain)] = struct{}{}
	}

	return &MongoResolver{
		collection: database.Collection(Collection),
		domains:    domains,
	}
}

// Resolve looks the recipient up by lowercased address. A missing
// document resolves to Default; a missing field falls back per-field.
func (r *MongoResolver) Resolve(ctx context.Context, recipient string) (Resolved, error) {
	recipient = strings.ToLower(recipient)

	if err := r.checkDomain(recipient); err != nil {
		return Default, err
	}

	var doc settingsDocument

	err := r.collection.FindOne(ctx, bson.M{emailField: recipient}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Default, nil
		}

		return Default, fmt.Errorf("read user settings: %w", err)
	}

	resolved := Default

	if doc.Language != nil {
		if tag, err := language.Parse(*doc.Language); err == nil {
			resolved.Locale = tag
		}
	}

	if doc.Timezone != nil {
		resolved.Timezone = *doc.Timezone
	}

	if doc.AlarmEnabled != nil {
		resolved.AlarmEnabled = *doc.AlarmEnabled
	}

	return resolved, nil
}

// checkDomain rejects recipients outside the managed domains.
func (r *MongoResolver) checkDomain(recipient string) error {
	if len(r.domains) == 0 {
		return nil
	}

	at := strings.LastIndexByte(recipient, '@')
	if at < 0 {
		return ErrUnknownDomain
	}

	if _, ok := r.domains[recipient[at+1:]]; !ok {
		return ErrUnknownDomain
	}

	return nil
}
