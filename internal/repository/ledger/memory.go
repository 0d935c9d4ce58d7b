package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/dkotenko/calarm/internal/domain/alarm"
)

// MemoryLedger keeps claims in a mutex-guarded map. Expiry is lazy: an
// expired entry no longer blocks a new claim and is dropped whenever it
// is encountered, mirroring the store-side garbage collection of the
// MongoDB TTL index.
type MemoryLedger struct {
	// now allows tests to control the clock.
	now func() time.Time

	// mu protects claims.
	mu sync.Mutex
	// claims maps the three-part claim key to its expiry instant.
	claims map[string]time.Time
}

// NewMemoryLedger creates an empty in-memory claim ledger.
func NewMemoryLedger() *MemoryLedger {
	return NewMemoryLedgerWithClock(time.Now)
}

// NewMemoryLedgerWithClock creates a ledger whose clock is injectable.
func NewMemoryLedgerWithClock(now func() time.Time) *MemoryLedger {
	return &MemoryLedger{
		now:    now,
		claims: make(map[string]time.Time),
	}
}

// Insert records a claim, failing with ErrClaimExists while a live
// claim holds the same (event, recipient, alarm time) tuple.
func (l *MemoryLedger) Insert(_ context.Context, event *domain.Event, ttl time.Duration) error {
	key := claimKey(event)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if expiresAt, ok := l.claims[key]; ok {
		if now.Before(expiresAt) {
			return ErrClaimExists
		}

		// The previous claim lapsed; drop it and take over.
		delete(l.claims, key)
	}

	l.claims[key] = now.Add(ttl)

	return nil
}

// claimKey builds the unique three-part claim key.
func claimKey(event *domain.Event) string {
	return fmt.Sprintf("%s\x00%s\x00%d",
		event.EventUID, strings.ToLower(event.Recipient), event.AlarmTime.UnixMilli())
}
