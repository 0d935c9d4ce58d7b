package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/dkotenko/calarm/internal/domain/alarm"
	"github.com/dkotenko/calarm/internal/repository/ledger"
)

// Lease grants a replica exclusive rights to process one alarm instant.
//
// Acquisition is fail-fast and carries no renewal: once acquired, the
// claim is not refreshed while processing runs. If processing outlives
// the TTL, the claim lapses and another replica may legitimately
// re-process the same alarm. Reminder delivery is best-effort, so the
// occasional duplicate send is the accepted cost of crash recovery
// staying this simple.
type Lease interface {
	// Acquire claims the alarm for ttl. It returns ErrLockAlreadyHeld
	// when another replica owns the claim; any other error is a storage
	// failure.
	Acquire(ctx context.Context, event *domain.Event, ttl time.Duration) error
}

// ErrLockAlreadyHeld signals that another scheduler already acquired
// the claim for this alarm instant. It is an expected outcome, not a
// failure.
var ErrLockAlreadyHeld = errors.New("alarm lock already held")

// LedgerLease backs the lease with the shared claim ledger.
type LedgerLease struct {
	ledger ledger.Ledger
}

// NewLedgerLease creates a lease over the provided claim ledger.
func NewLedgerLease(l ledger.Ledger) *LedgerLease {
	return &LedgerLease{ledger: l}
}

// Acquire inserts a claim, translating the ledger's conflict into
// ErrLockAlreadyHeld.
func (l *LedgerLease) Acquire(ctx context.Context, event *domain.Event, ttl time.Duration) error {
	err := l.ledger.Insert(ctx, event, ttl)
	if err != nil {
		if errors.Is(err, ledger.ErrClaimExists) {
			return ErrLockAlreadyHeld
		}

		return fmt.Errorf("acquire alarm lease: %w", err)
	}

	return nil
}

// Noop always grants the lease without any I/O. It is used when the
// deployment guarantees a single active scheduler, making cross-replica
// exclusion unnecessary.
type Noop struct{}

// Acquire succeeds immediately.
func (Noop) Acquire(_ context.Context, _ *domain.Event, _ time.Duration) error {
	return nil
}
