package alarm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/dkotenko/calarm/internal/domain/alarm"
)

// Collection and field names of the alarm event store.
const (
	Collection = "calendar_alarm_events"

	eventUIDField  = "eventUid"
	recipientField = "recipient"
	alarmTimeField = "alarmTime"

	uniqueIndexName    = "uniq_event_recipient"
	alarmTimeIndexName = "idx_alarmTime"
)

// MongoRepository persists alarm records in a shared MongoDB
// collection so that multiple scheduler replicas see the same set of
// pending reminders.
type MongoRepository struct {
	collection *mongo.Collection
}

// alarmDocument is the BSON shape of one pending reminder.
type alarmDocument struct {
	EventUID       string    `bson:"eventUid"`
	AlarmTime      time.Time `bson:"alarmTime"`
	EventStartTime time.Time `bson:"eventStartTime"`
	Recurring      bool      `bson:"recurring"`
	RecurrenceID   string    `bson:"recurrenceId,omitempty"`
	Recipient      string    `bson:"recipient"`
	ICS            []byte    `bson:"ics"`
}

// NewMongoRepository creates a repository over the alarm events
// collection of the provided database.
func NewMongoRepository(database *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: database.Collection(Collection),
	}
}

// EnsureIndexes declares the unique (eventUid, recipient) constraint
// backing the one-record-per-pair invariant, plus the alarmTime index
// serving FindDue.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: eventUIDField, Value: 1},
				{Key: recipientField, Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName(uniqueIndexName),
		},
		{
			Keys:    bson.D{{Key: alarmTimeField, Value: 1}},
			Options: options.Index().SetName(alarmTimeIndexName),
		},
	})
	if err != nil {
		return fmt.Errorf("create alarm indexes: %w", err)
	}

	return nil
}

// Find returns the record for the pair, or ErrNotFound.
func (r *MongoRepository) Find(ctx context.Context, eventUID, recipient string) (*domain.Event, error) {
	var doc alarmDocument

	err := r.collection.FindOne(ctx, keyFilter(eventUID, recipient)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("find alarm event: %w", err)
	}

	return fromDocument(&doc), nil
}

// Create stores the record, replacing any existing one for the pair.
func (r *MongoRepository) Create(ctx context.Context, event *domain.Event) error {
	return r.Update(ctx, event)
}

// Update replaces the record for the event's pair, inserting it when
// absent. The upsert keeps the operation idempotent under concurrent
// schedulers updating different recipients of the same event.
func (r *MongoRepository) Update(ctx context.Context, event *domain.Event) error {
	_, err := r.collection.ReplaceOne(ctx,
		keyFilter(event.EventUID, event.Recipient),
		toDocument(event),
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert alarm event: %w", err)
	}

	return nil
}

// Delete removes the record for the pair if present.
func (r *MongoRepository) Delete(ctx context.Context, eventUID, recipient string) error {
	if _, err := r.collection.DeleteOne(ctx, keyFilter(eventUID, recipient)); err != nil {
		return fmt.Errorf("delete alarm event: %w", err)
	}

	return nil
}

// FindDue returns all records whose AlarmTime is at or before now, in
// natural collection order.
func (r *MongoRepository) FindDue(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		alarmTimeField: bson.M{"$lte": now},
	})
	if err != nil {
		return nil, fmt.Errorf("find due alarm events: %w", err)
	}

	var docs []alarmDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode due alarm events: %w", err)
	}

	events := make([]*domain.Event, 0, len(docs))
	for i := range docs {
		events = append(events, fromDocument(&docs[i]))
	}

	return events, nil
}

// keyFilter builds the (eventUid, recipient) point filter.
// Recipients are stored lowercased, matching the domain key discipline.
func keyFilter(eventUID, recipient string) bson.M {
	return bson.M{
		eventUIDField:  eventUID,
		recipientField: strings.ToLower(recipient),
	}
}

// toDocument converts the domain event into its BSON shape.
func toDocument(event *domain.Event) *alarmDocument {
	return &alarmDocument{
		EventUID:       event.EventUID,
		AlarmTime:      event.AlarmTime.UTC(),
		EventStartTime: event.EventStartTime.UTC(),
		Recurring:      event.Recurring,
		RecurrenceID:   event.RecurrenceID,
		Recipient:      strings.ToLower(event.Recipient),
		ICS:            event.ICS,
	}
}

// fromDocument converts the BSON shape back into the domain event.
func fromDocument(doc *alarmDocument) *domain.Event {
	return &domain.Event{
		EventUID:       doc.EventUID,
		AlarmTime:      doc.AlarmTime,
		EventStartTime: doc.EventStartTime,
		Recurring:      doc.Recurring,
		RecurrenceID:   doc.RecurrenceID,
		Recipient:      doc.Recipient,
		ICS:            doc.ICS,
	}
}
