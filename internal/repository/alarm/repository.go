package alarm

import (
	"context"
	"errors"
	"time"

	domain "github.com/dkotenko/calarm/internal/domain/alarm"
)

// Repository defines persistence operations for pending alarm records,
// keyed by (event UID, recipient).
//
// The layer surfaces storage errors as-is and performs no retries.
// Cross-record atomicity is not part of the contract, only per-key
// read-after-write consistency.
type Repository interface {
	// Find returns the record for the pair, or ErrNotFound.
	Find(ctx context.Context, eventUID, recipient string) (*domain.Event, error)
	// Create stores a record. Upsert semantics: an existing record for
	// the same pair is replaced.
	Create(ctx context.Context, event *domain.Event) error
	// Update replaces the record for the event's pair, inserting it when
	// absent.
	Update(ctx context.Context, event *domain.Event) error
	// Delete removes the record for the pair. Deleting an absent record
	// is not an error.
	Delete(ctx context.Context, eventUID, recipient string) error
	// FindDue returns all records with AlarmTime <= now.
	// No ordering is guaranteed; callers must not assume FIFO delivery.
	FindDue(ctx context.Context, now time.Time) ([]*domain.Event, error)
}

// ErrNotFound is returned by Find when no record exists for the pair.
var ErrNotFound = errors.New("alarm event not found")
