package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/dkotenko/calarm/internal/domain/alarm"
)

// Collection and field names of the claim ledger.
const (
	Collection = "calendar_alarm_events_ledger"

	eventUIDField  = "eventUid"
	recipientField = "recipient"
	alarmTimeField = "alarmTime"
	createdAtField = "createdAt"
	expiresAtField = "expiresAt"

	// UniqueIndexName enforces one live claim per
	// (eventUid, recipient, alarmTime) tuple across all replicas.
	UniqueIndexName = "uniq_event_alarm_recipient"

	ttlIndexName = "ttl_expiresAt"
)

// MongoLedger records claims in a shared MongoDB collection. The
// unique compound index is the only cross-replica coordination
// mechanism in the system; the TTL index on expiresAt garbage-collects
// lapsed claims server-side.
type MongoLedger struct {
	collection *mongo.Collection
	// now allows tests to control the clock.
	now func() time.Time
}

// NewMongoLedger creates a ledger over the claim collection of the
// provided database.
func NewMongoLedger(database *mongo.Database) *MongoLedger {
	return NewMongoLedgerWithClock(database, time.Now)
}

// NewMongoLedgerWithClock creates a ledger whose clock is injectable.
func NewMongoLedgerWithClock(database *mongo.Database, now func() time.Time) *MongoLedger {
	return &MongoLedger{
		collection: database.Collection(Collection),
		now:        now,
	}
}

// EnsureIndexes declares the unique claim constraint and the TTL index.
// expireAfterSeconds is zero so documents fall due exactly at their
// expiresAt value.
func (l *MongoLedger) EnsureIndexes(ctx context.Context) error {
	_, err := l.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: eventUIDField, Value: 1},
				{Key: recipientField, Value: 1},
				{Key: alarmTimeField, Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName(UniqueIndexName),
		},
		{
			Keys:    bson.D{{Key: expiresAtField, Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName(ttlIndexName),
		},
	})
	if err != nil {
		return fmt.Errorf("create ledger indexes: %w", err)
	}

	return nil
}

// Insert records a claim valid for ttl. A duplicate-key rejection on
// the unique index maps to ErrClaimExists; any other error propagates
// unchanged.
func (l *MongoLedger) Insert(ctx context.Context, event *domain.Event, ttl time.Duration) error {
	now := l.now().UTC()

	_, err := l.collection.InsertOne(ctx, bson.D{
		{Key: eventUIDField, Value: event.EventUID},
		{Key: recipientField, Value: strings.ToLower(event.Recipient)},
		{Key: alarmTimeField, Value: event.AlarmTime.UTC()},
		{Key: createdAtField, Value: now},
		{Key: expiresAtField, Value: now.Add(ttl)},
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrClaimExists
		}

		return fmt.Errorf("insert claim: %w", err)
	}

	return nil
}
