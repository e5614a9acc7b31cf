// Package ingest owns the polling loop: on a fixed interval it fans
// out across the configured lead set with bounded concurrency, persists
// raw payloads, and recomputes derived position state.
package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"leadwatch/internal/client/exchange"
	"leadwatch/internal/repository"
)

// Fetcher is the upstream client surface the scheduler needs; the
// ingest tests swap in an instrumented fake.
type Fetcher interface {
	FetchLeadPayload(ctx context.Context, leadID string, orderPageSize int, timeout time.Duration) (*exchange.LeadPayload, []error)
}

type Config struct {
	Enabled       bool
	Interval      time.Duration
	LeadIDs       []string
	Concurrency   int
	OrderPageSize int
	Timeout       time.Duration
}

// Scheduler drives periodic ingestion. It is either stopped or
// running; Start and Stop are the only transitions.
type Scheduler struct {
	Client Fetcher
	Repo   repository.Repository
	Logger *zap.Logger
	Config Config

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	inFlight atomic.Bool
}

// Start launches the polling loop. It is a no-op when ingestion is
// disabled or the scheduler is already running. ctx bounds the
// lifetime of dispatch; already-dispatched per-lead work is allowed to
// finish even after cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.Config.Enabled {
		if s.Logger != nil {
			s.Logger.Info("ingest scheduler disabled")
		}
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx)
	if s.Logger != nil {
		s.Logger.Info("ingest scheduler started",
			zap.Duration("interval", s.interval()),
			zap.Int("leads", len(s.Config.LeadIDs)),
			zap.Int("concurrency", s.concurrency()),
		)
	}
}

// Stop prevents new ticks from starting and waits for the in-flight
// tick's workers to drain before returning.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	if s.Logger != nil {
		s.Logger.Info("ingest scheduler stopped")
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	var ticks sync.WaitGroup
	defer ticks.Wait()

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	// First tick fires immediately.
	s.launchTick(ctx, &ticks)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.launchTick(ctx, &ticks)
		}
	}
}

// launchTick starts one tick unless the previous one is still
// executing. A missed tick is skipped, never queued.
func (s *Scheduler) launchTick(ctx context.Context, ticks *sync.WaitGroup) {
	if !s.inFlight.CompareAndSwap(false, true) {
		if s.Logger != nil {
			s.Logger.Warn("previous tick still running, skipping")
		}
		return
	}
	ticks.Add(1)
	go func() {
		defer ticks.Done()
		defer s.inFlight.Store(false)
		s.runTick(ctx)
	}()
}

// runTick processes the configured lead set in waves of at most
// Concurrency workers. One lead's failure never blocks or fails the
// tick for other leads.
func (s *Scheduler) runTick(ctx context.Context) {
	leads := s.Config.LeadIDs
	if len(leads) == 0 {
		if s.Logger != nil {
			s.Logger.Debug("no leads configured, tick is a no-op")
		}
		return
	}
	started := time.Now()

	// Dispatched lead work survives cancellation so partially-written
	// state is finished, not abandoned; cancellation only stops the
	// feed of new leads.
	workCtx := context.WithoutCancel(ctx)

	workers := s.concurrency()
	if workers > len(leads) {
		workers = len(leads)
	}
	workCh := make(chan string)
	var failed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for leadID := range workCh {
				if err := s.processLead(workCtx, leadID); err != nil {
					failed.Add(1)
					if s.Logger != nil {
						s.Logger.Warn("lead ingest failed",
							zap.String("lead_id", leadID),
							zap.Error(err),
						)
					}
				}
			}
		}()
	}

feed:
	for _, leadID := range leads {
		select {
		case workCh <- leadID:
		case <-ctx.Done():
			break feed
		}
	}
	close(workCh)
	wg.Wait()

	if s.Logger != nil {
		s.Logger.Info("ingest tick complete",
			zap.Int("leads", len(leads)),
			zap.Int64("failed", failed.Load()),
			zap.Duration("took", time.Since(started)),
		)
	}
}

func (s *Scheduler) interval() time.Duration {
	if s.Config.Interval <= 0 {
		return time.Minute
	}
	return s.Config.Interval
}

func (s *Scheduler) concurrency() int {
	if s.Config.Concurrency <= 0 {
		return 4
	}
	return s.Config.Concurrency
}
