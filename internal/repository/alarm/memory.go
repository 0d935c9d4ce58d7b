package alarm

import (
	"context"
	"sync"
	"time"

	domain "github.com/dkotenko/calarm/internal/domain/alarm"
)

// MemoryRepository keeps alarm records in a mutex-guarded map. It is
// the single-process backend; replicas sharing a store need the
// MongoDB implementation.
type MemoryRepository struct {
	// mu protects events.
	mu sync.RWMutex
	// events maps the canonical (event, recipient) key to the record.
	events map[string]*domain.Event
}

// NewMemoryRepository creates an empty in-memory alarm repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		events: make(map[string]*domain.Event),
	}
}

// Find returns the stored record for the pair, or ErrNotFound.
func (r *MemoryRepository) Find(_ context.Context, eventUID, recipient string) (*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[domain.Key(eventUID, recipient)]
	if !ok {
		return nil, ErrNotFound
	}

	return event.Clone(), nil
}

// Create stores the record, replacing any existing one for the pair.
func (r *MemoryRepository) Create(_ context.Context, event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.Key()] = event.Clone()

	return nil
}

// Update replaces the record for the event's pair, inserting it when absent.
func (r *MemoryRepository) Update(ctx context.Context, event *domain.Event) error {
	return r.Create(ctx, event)
}

// Delete removes the record for the pair if present.
func (r *MemoryRepository) Delete(_ context.Context, eventUID, recipient string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.events, domain.Key(eventUID, recipient))

	return nil
}

// FindDue returns all records whose AlarmTime is at or before now.
// Map iteration order makes the result deliberately unordered.
func (r *MemoryRepository) FindDue(_ context.Context, now time.Time) ([]*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []*domain.Event

	for _, event := range r.events {
		if !event.AlarmTime.After(now) {
			due = append(due, event.Clone())
		}
	}

	return due, nil
}
