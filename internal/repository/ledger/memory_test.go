package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/dkotenko/calarm/internal/domain/alarm"
)

func claimEvent() *domain.Event {
	return &domain.Event{
		EventUID:  "uid-1",
		AlarmTime: time.Unix(1000, 0),
		Recipient: "user@example.com",
	}
}

// TestMemoryLedgerConflict verifies the second insert for the same
// tuple fails with ErrClaimExists while the first claim is live.
func TestMemoryLedgerConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := NewMemoryLedger()

	require.NoError(t, l.Insert(ctx, claimEvent(), time.Minute))
	require.ErrorIs(t, l.Insert(ctx, claimEvent(), time.Minute), ErrClaimExists)

	// A different alarm instant of the same event is an independent claim.
	other := claimEvent()
	other.AlarmTime = other.AlarmTime.Add(time.Hour)
	require.NoError(t, l.Insert(ctx, other, time.Minute))
}

// TestMemoryLedgerConcurrentInsert races two inserts for the same
// tuple: exactly one must win.
func TestMemoryLedgerConcurrentInsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := NewMemoryLedger()

	const workers = 8

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := l.Insert(ctx, claimEvent(), time.Minute); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	require.Equal(t, 1, wins)
}

// TestMemoryLedgerExpiry checks that a lapsed claim no longer blocks a
// new one. The clock is injected so no real waiting happens.
func TestMemoryLedgerExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	current := time.Unix(0, 0)

	var mu sync.Mutex

	l := NewMemoryLedgerWithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		return current
	})

	require.NoError(t, l.Insert(ctx, claimEvent(), time.Second))
	require.ErrorIs(t, l.Insert(ctx, claimEvent(), time.Second), ErrClaimExists)

	mu.Lock()
	current = current.Add(1500 * time.Millisecond)
	mu.Unlock()

	require.NoError(t, l.Insert(ctx, claimEvent(), time.Second))
}

// TestMemoryLedgerRealClockExpiry is the polled variant of the expiry
// check against the wall clock, with a short TTL.
func TestMemoryLedgerRealClockExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := NewMemoryLedger()

	require.NoError(t, l.Insert(ctx, claimEvent(), 50*time.Millisecond))

	require.Eventually(t, func() bool {
		return l.Insert(ctx, claimEvent(), time.Minute) == nil
	}, 2*time.Second, 10*time.Millisecond)
}
