package auction

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultSweepInterval = 5 * time.Second
	sweepTimeout         = 30 * time.Second
	sweepConcurrency     = 8
)

// Scheduler drives the auction lifecycle from wall-clock time with periodic
// sweeps. Sweeps are idempotent, so overlapping or repeated runs (including
// a crash-recovery sweep at startup) apply each transition once.
type Scheduler struct {
	manager  *Manager
	interval time.Duration
	shutdown chan struct{}
	done     chan struct{}
}

func NewScheduler(manager *Manager, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Scheduler{
		manager:  manager,
		interval: interval,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs an immediate recovery sweep, then sweeps on the interval until
// Shutdown.
func (s *Scheduler) Start() {
	go func() {
		defer close(s.done)

		s.runSweep()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runSweep()
			case <-s.shutdown:
				return
			}
		}
	}()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if err := s.Sweep(ctx, time.Now()); err != nil {
		slog.Error("Lifecycle sweep failed",
			slog.Any("error", err))
	}
}

// Sweep advances every auction whose stored status lags the wall clock.
// Due auctions are handled concurrently; an error on one does not hold the
// others back beyond group cancellation.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) error {
	due, err := s.manager.store.DueTransitions(ctx, now)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, auction := range due {
		auction := auction
		g.Go(func() error {
			_, err := s.manager.SyncStatus(ctx, auction, now)
			return err
		})
	}
	return g.Wait()
}

// Shutdown stops the sweep loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Shutdown() {
	close(s.shutdown)
	<-s.done
	slog.Info("Auction scheduler shutdown completed")
}
