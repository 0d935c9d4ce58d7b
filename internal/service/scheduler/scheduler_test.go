package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/dkotenko/calarm/internal/domain/alarm"
	alarmrepo "github.com/dkotenko/calarm/internal/repository/alarm"
	"github.com/dkotenko/calarm/internal/repository/ledger"
	"github.com/dkotenko/calarm/internal/service/lease"
)

// countingStore wraps a repository and counts FindDue calls.
type countingStore struct {
	alarmrepo.Repository

	findDueCalls atomic.Int64
}

func (c *countingStore) FindDue(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	c.findDueCalls.Add(1)
	return c.Repository.FindDue(ctx, now)
}

// recordingProcessor consumes alarms like the real trigger service:
// it deletes the record and remembers who was notified.
type recordingProcessor struct {
	store alarmrepo.Repository

	mu        sync.Mutex
	processed []string
}

func (p *recordingProcessor) Process(ctx context.Context, event *domain.Event) error {
	if err := p.store.Delete(ctx, event.EventUID, event.Recipient); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, event.Recipient)

	return nil
}

func (p *recordingProcessor) recipients() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.processed...)
}

// failingLease fails the test if it is ever consulted.
type failingLease struct {
	t *testing.T
}

func (f failingLease) Acquire(_ context.Context, _ *domain.Event, _ time.Duration) error {
	f.t.Error("lease must not be touched in this mode")
	return nil
}

func fastConfig(mode Mode) Config {
	return Config{
		PollInterval:     5 * time.Millisecond,
		BatchSize:        100,
		InitialJitterMax: time.Millisecond,
		Mode:             mode,
	}
}

func dueEvent(uid, recipient string) *domain.Event {
	return &domain.Event{
		EventUID:       uid,
		AlarmTime:      time.Now().Add(-10 * time.Minute),
		EventStartTime: time.Now().Add(10 * time.Minute),
		Recipient:      recipient,
		ICS:            []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"),
	}
}

// TestParseMode covers canonical names, aliases and rejects.
func TestParseMode(t *testing.T) {
	t.Parallel()

	for s, want := range map[string]Mode{
		"":            ModeDisabled,
		"disabled":    ModeDisabled,
		"single":      ModeSingle,
		"cluster":     ModeCluster,
		"distributed": ModeCluster,
		"multi":       ModeCluster,
	} {
		got, err := ParseMode(s)
		require.NoError(t, err, s)
		require.Equal(t, want, got, s)
	}

	_, err := ParseMode("standalone")
	require.Error(t, err)
}

// TestNewRejectsInvalidConfig: bad values fail at construction, not at
// runtime.
func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	store := alarmrepo.NewMemoryRepository()
	processor := &recordingProcessor{store: store}

	cases := []Config{
		{Mode: ModeSingle, BatchSize: 10, InitialJitterMax: time.Second},
		{Mode: ModeSingle, PollInterval: time.Second, InitialJitterMax: time.Second},
		{Mode: ModeSingle, PollInterval: time.Second, BatchSize: 10},
		{Mode: ModeCluster, PollInterval: -time.Second, BatchSize: 10, InitialJitterMax: time.Second},
	}

	for _, cfg := range cases {
		_, err := New(cfg, store, lease.Noop{}, processor)
		require.Error(t, err)
	}

	// Disabled mode skips the loop validation entirely.
	_, err := New(Config{Mode: ModeDisabled}, store, lease.Noop{}, processor)
	require.NoError(t, err)
}

// TestDisabledModeNeverQueriesTheStore: starting a disabled scheduler
// issues no store calls and no sends.
func TestDisabledModeNeverQueriesTheStore(t *testing.T) {
	t.Parallel()

	store := &countingStore{Repository: alarmrepo.NewMemoryRepository()}
	processor := &recordingProcessor{store: store}

	s, err := New(fastConfig(ModeDisabled), store, lease.Noop{}, processor)
	require.NoError(t, err)

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Close()

	require.Zero(t, store.findDueCalls.Load())
	require.Empty(t, processor.recipients())
}

// TestSingleModeProcessesDueAlarm: a due alarm is delivered exactly
// once and its record removed, while the ledger-backed lease candidate
// is never consulted.
func TestSingleModeProcessesDueAlarm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := alarmrepo.NewMemoryRepository()
	processor := &recordingProcessor{store: store}

	require.NoError(t, store.Create(ctx, dueEvent("uid-1", "r@x.com")))

	s, err := New(fastConfig(ModeSingle), store, failingLease{t: t}, processor)
	require.NoError(t, err)

	s.Start(ctx)
	defer s.Close()

	require.Eventually(t, func() bool {
		return len(processor.recipients()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, []string{"r@x.com"}, processor.recipients())

	_, err = store.Find(ctx, "uid-1", "r@x.com")
	require.ErrorIs(t, err, alarmrepo.ErrNotFound)
}

// TestFutureAlarmIsLeftAlone: a not-yet-due record survives ticks
// untouched.
func TestFutureAlarmIsLeftAlone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := alarmrepo.NewMemoryRepository()
	processor := &recordingProcessor{store: store}

	future := dueEvent("uid-1", "r@x.com")
	future.AlarmTime = time.Now().Add(10 * time.Minute)
	require.NoError(t, store.Create(ctx, future))

	s, err := New(fastConfig(ModeSingle), store, lease.Noop{}, processor)
	require.NoError(t, err)

	s.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	s.Close()

	require.Empty(t, processor.recipients())

	_, err = store.Find(ctx, "uid-1", "r@x.com")
	require.NoError(t, err)
}

// TestClusterModeUsesLedgerExclusivity: with a shared ledger, two
// schedulers over the same store deliver each alarm once in total.
func TestClusterModeUsesLedgerExclusivity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := alarmrepo.NewMemoryRepository()
	sharedLedger := ledger.NewMemoryLedger()
	processor := &recordingProcessor{store: store}

	for _, uid := range []string{"uid-1", "uid-2", "uid-3"} {
		require.NoError(t, store.Create(ctx, dueEvent(uid, "r@x.com")))
	}

	first, err := New(fastConfig(ModeCluster), store, lease.NewLedgerLease(sharedLedger), processor)
	require.NoError(t, err)

	second, err := New(fastConfig(ModeCluster), store, lease.NewLedgerLease(sharedLedger), processor)
	require.NoError(t, err)

	first.Start(ctx)
	second.Start(ctx)

	defer first.Close()
	defer second.Close()

	require.Eventually(t, func() bool {
		return len(processor.recipients()) == 3
	}, 2*time.Second, 5*time.Millisecond)

	// The lease TTL outlives the test, so no alarm is delivered twice.
	time.Sleep(50 * time.Millisecond)
	require.Len(t, processor.recipients(), 3)
}

// TestBatchSizeCapsTick: a tick never processes more than BatchSize
// alarms, the remainder waits for later ticks.
func TestBatchSizeCapsTick(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := alarmrepo.NewMemoryRepository()
	processor := &recordingProcessor{store: store}

	require.NoError(t, store.Create(ctx, dueEvent("uid-1", "a@x.com")))
	require.NoError(t, store.Create(ctx, dueEvent("uid-2", "b@x.com")))
	require.NoError(t, store.Create(ctx, dueEvent("uid-3", "c@x.com")))

	cfg := fastConfig(ModeSingle)
	cfg.BatchSize = 1

	s, err := New(cfg, store, lease.Noop{}, processor)
	require.NoError(t, err)

	s.Start(ctx)
	defer s.Close()

	// All three drain eventually, one per tick.
	require.Eventually(t, func() bool {
		return len(processor.recipients()) == 3
	}, 2*time.Second, 5*time.Millisecond)
}

// flakyStore fails its first FindDue calls, then recovers.
type flakyStore struct {
	alarmrepo.Repository

	failures atomic.Int64
}

func (f *flakyStore) FindDue(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, errors.New("storage unavailable")
	}

	return f.Repository.FindDue(ctx, now)
}

// TestFetchFailureEndsTickButNotTheLoop: a failed poll is logged and
// the loop keeps ticking, so the alarm goes out once storage recovers.
func TestFetchFailureEndsTickButNotTheLoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &flakyStore{Repository: alarmrepo.NewMemoryRepository()}
	store.failures.Store(3)
	processor := &recordingProcessor{store: store}

	require.NoError(t, store.Create(ctx, dueEvent("uid-1", "r@x.com")))

	s, err := New(fastConfig(ModeSingle), store, lease.Noop{}, processor)
	require.NoError(t, err)

	s.Start(ctx)
	defer s.Close()

	require.Eventually(t, func() bool {
		return len(processor.recipients()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

// TestCloseStopsTicking: after Close no further store polls happen.
func TestCloseStopsTicking(t *testing.T) {
	t.Parallel()

	store := &countingStore{Repository: alarmrepo.NewMemoryRepository()}
	processor := &recordingProcessor{store: store}

	s, err := New(fastConfig(ModeSingle), store, lease.Noop{}, processor)
	require.NoError(t, err)

	s.Start(context.Background())

	require.Eventually(t, func() bool {
		return store.findDueCalls.Load() > 0
	}, 2*time.Second, time.Millisecond)

	s.Close()

	settled := store.findDueCalls.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, settled, store.findDueCalls.Load())
}
