package ledger

import (
	"context"
	"errors"
	"time"

	domain "github.com/dkotenko/calarm/internal/domain/alarm"
)

// Ledger records short-lived exclusive claims keyed by
// (event UID, recipient, alarm time).
//
// A claim is never updated or explicitly deleted by the application:
// it lapses on its own once expiresAt passes. Letting a claim expire is
// the recovery mechanism for a crashed worker, so the ledger exposes no
// delete API at all.
type Ledger interface {
	// Insert records a claim for the event's (EventUID, Recipient,
	// AlarmTime) tuple, valid for ttl. It returns ErrClaimExists when a
	// live claim for the same tuple already exists; any other storage
	// error propagates unchanged.
	Insert(ctx context.Context, event *domain.Event, ttl time.Duration) error
}

// ErrClaimExists signals a unique-key violation on the claim tuple:
// some replica already owns this alarm instant. Callers rely on telling
// this apart from "the store is broken".
var ErrClaimExists = errors.New("claim already exists")
