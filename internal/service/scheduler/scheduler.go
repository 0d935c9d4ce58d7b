package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/dkotenko/calarm/internal/domain/alarm"
	"github.com/dkotenko/calarm/internal/logger"
	alarmrepo "github.com/dkotenko/calarm/internal/repository/alarm"
	"github.com/dkotenko/calarm/internal/service/lease"
)

// Mode selects the deployment model of the polling loop.
type Mode int

const (
	// ModeDisabled creates no loop at all.
	ModeDisabled Mode = iota
	// ModeSingle runs the loop without cross-replica coordination.
	ModeSingle
	// ModeCluster runs the loop with the shared claim ledger as the
	// mutual-exclusion mechanism between replicas.
	ModeCluster
)

// ParseMode maps a configuration string onto a Mode. "distributed" and
// "multi" are accepted aliases of "cluster".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "disabled":
		return ModeDisabled, nil
	case "single":
		return ModeSingle, nil
	case "cluster", "distributed", "multi":
		return ModeCluster, nil
	default:
		return ModeDisabled, fmt.Errorf("unknown scheduler mode %q", s)
	}
}

// Processor handles one due alarm. Implemented by the trigger service.
type Processor interface {
	Process(ctx context.Context, event *domain.Event) error
}

// Config controls the polling loop.
type Config struct {
	// PollInterval is the period between due-alarm polls.
	PollInterval time.Duration
	// BatchSize caps how many due alarms one tick may process.
	BatchSize int
	// InitialJitterMax bounds the random startup delay and the random
	// pause after each batch. The jitter desynchronizes replicas polling
	// the same store, so they stop colliding on the same due alarms.
	InitialJitterMax time.Duration
	// Mode selects the deployment model.
	Mode Mode
}

const (
	// leaseTTL bounds how long a claimed alarm stays exclusive. There is
	// no renewal: processing that outlives the TTL can legitimately be
	// picked up again by another replica, trading an occasional
	// duplicate reminder for trivial crash recovery.
	leaseTTL = time.Minute

	// processConcurrency is the fixed fan-out within one tick. Each
	// alarm touches the settings store, the mail relay and the alarm
	// store, so the limit stays low.
	processConcurrency = 4
)

var (
	// errPollIntervalNotPositive rejects a non-positive poll interval.
	errPollIntervalNotPositive = errors.New("poll interval must be positive")
	// errBatchSizeNotPositive rejects a non-positive batch size.
	errBatchSizeNotPositive = errors.New("batch size must be positive")
	// errJitterNotPositive rejects a non-positive jitter ceiling.
	errJitterNotPositive = errors.New("initial jitter max must be positive")
)

// Scheduler owns the polling loop: it periodically pulls a bounded
// batch of due alarms and pushes each one through the lease and the
// processor with bounded concurrency.
//
// Lifecycle is one-shot: Start then Close, no restart.
type Scheduler struct {
	cfg       Config
	store     alarmrepo.Repository
	lease     lease.Lease
	processor Processor

	// instanceID tags this replica's log lines.
	instanceID string
	// now is the clock; replaceable in tests.
	now func() time.Time

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	started   bool
}

// New creates a scheduler. In single mode the provided lease candidate
// is replaced by the no-op lease: with one replica there is nobody to
// coordinate with.
func New(cfg Config, store alarmrepo.Repository, leaseCandidate lease.Lease, processor Processor) (*Scheduler, error) {
	if cfg.Mode != ModeDisabled {
		switch {
		case cfg.PollInterval <= 0:
			return nil, errPollIntervalNotPositive
		case cfg.BatchSize <= 0:
			return nil, errBatchSizeNotPositive
		case cfg.InitialJitterMax <= 0:
			return nil, errJitterNotPositive
		}
	}

	selectedLease := leaseCandidate
	if cfg.Mode == ModeSingle {
		selectedLease = lease.Noop{}
	}

	return &Scheduler{
		cfg:        cfg,
		store:      store,
		lease:      selectedLease,
		processor:  processor,
		instanceID: uuid.NewString(),
		now:        time.Now,
		done:       make(chan struct{}),
	}, nil
}

// Start launches the polling loop. Disabled mode starts nothing.
// Subsequent calls are no-ops.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx = logger.WithKV(logger.WithName(ctx, "alarm-scheduler"), "scheduler_id", s.instanceID)

		if s.cfg.Mode == ModeDisabled {
			logger.Info(ctx, "Alarm scheduler is disabled")
			return
		}

		logger.InfoKV(ctx, "Starting alarm scheduler",
			"poll_interval", s.cfg.PollInterval.String(),
			"batch_size", s.cfg.BatchSize,
			"initial_jitter_max", s.cfg.InitialJitterMax.String())

		loopCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.started = true

		go s.run(loopCtx)
	})
}

// Close stops future ticks. In-flight per-alarm work already dispatched
// is not interrupted; the processor leaves consistent state regardless
// of when the loop stops.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		if !s.started {
			return
		}

		s.cancel()
		<-s.done
	})
}

// run drives the tick cycle: initial jitter, then one tick per poll
// interval with a random post-batch pause. A tick that comes due while
// the previous one is still running is dropped, not queued.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	defer logger.Info(ctx, "Alarm scheduler stopped")

	if !s.sleep(ctx, s.jitter()) {
		return
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.tick(ctx)

		if !s.sleep(ctx, s.jitter()) {
			return
		}

		// Drop the tick that may have fired while the batch or the
		// jitter pause was in progress.
		select {
		case <-ticker.C:
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick fetches one batch of due alarms and processes it with bounded
// concurrency. Nothing escapes this boundary: every error is logged
// and swallowed here.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	due, err := s.store.FindDue(ctx, now)
	if err != nil {
		logger.WarnKV(ctx, "Failed to fetch due alarms", "error", err)
		return
	}

	if len(due) > s.cfg.BatchSize {
		due = due[:s.cfg.BatchSize]
	}

	if len(due) == 0 {
		return
	}

	// Per-alarm work survives Close: the loop context only governs the
	// tick schedule.
	workCtx := context.WithoutCancel(ctx)

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, processConcurrency)
	)

	for _, event := range due {
		sem <- struct{}{}
		wg.Add(1)

		go func(event *domain.Event) {
			defer func() {
				<-sem
				wg.Done()
			}()

			s.processOne(workCtx, event)
		}(event)
	}

	wg.Wait()

	logger.DebugKV(ctx, "Processed alarm batch", "count", len(due))
}

// processOne claims the alarm and, only on success, hands it to the
// processor. A held lock means another replica is on it and is not an
// error.
func (s *Scheduler) processOne(ctx context.Context, event *domain.Event) {
	if err := s.lease.Acquire(ctx, event, leaseTTL); err != nil {
		if errors.Is(err, lease.ErrLockAlreadyHeld) {
			logger.InfoKV(ctx, "Skipping alarm, another scheduler holds the lock",
				"event", event.ShortString())
			return
		}

		logger.WarnKV(ctx, "Failed to acquire alarm lease",
			"event", event.ShortString(), "error", err)

		return
	}

	if err := s.processor.Process(ctx, event); err != nil {
		logger.ErrorKV(ctx, "Failed to process alarm",
			"event", event.ShortString(), "error", err)
	}
}

// jitter returns a random delay in [0, InitialJitterMax).
func (s *Scheduler) jitter() time.Duration {
	return rand.N(s.cfg.InitialJitterMax)
}

// sleep waits for d unless the context ends first; reports whether the
// full delay elapsed.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
