package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"leadwatch/internal/client/exchange"
)

// fakeFetcher counts invocations and tracks how many run at once.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	current int32
	max     int32

	delay time.Duration
	gate  chan struct{}
	fail  map[string]bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: map[string]int{}}
}

func (f *fakeFetcher) FetchLeadPayload(ctx context.Context, leadID string, orderPageSize int, timeout time.Duration) (*exchange.LeadPayload, []error) {
	cur := atomic.AddInt32(&f.current, 1)
	for {
		old := atomic.LoadInt32(&f.max)
		if cur <= old || atomic.CompareAndSwapInt32(&f.max, old, cur) {
			break
		}
	}
	defer atomic.AddInt32(&f.current, -1)

	f.mu.Lock()
	f.calls[leadID]++
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail[leadID] {
		return nil, []error{errors.New("upstream unavailable")}
	}
	show := false
	return &exchange.LeadPayload{
		LeadID:          leadID,
		PortfolioDetail: &exchange.PortfolioDetail{Nickname: "lead-" + leadID, PositionShow: &show},
		FetchedAt:       time.Now().UTC(),
	}, nil
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func leadSet(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("lead-%02d", i))
	}
	return out
}

func TestTickBoundsConcurrency(t *testing.T) {
	repo := newStubRepo()
	fetcher := newFakeFetcher()
	fetcher.delay = 5 * time.Millisecond
	s := &Scheduler{
		Client: fetcher,
		Repo:   repo,
		Logger: zap.NewNop(),
		Config: Config{
			Enabled:     true,
			LeadIDs:     leadSet(12),
			Concurrency: 3,
		},
	}
	s.runTick(context.Background())

	if got := atomic.LoadInt32(&fetcher.max); got > 3 {
		t.Fatalf("max concurrent fetches = %d, want <= 3", got)
	}
	if got := repo.rawCount(); got != 12 {
		t.Fatalf("raw snapshots = %d, want 12", got)
	}
}

func TestTickIsolatesFailures(t *testing.T) {
	repo := newStubRepo()
	fetcher := newFakeFetcher()
	fetcher.fail = map[string]bool{"lead-01": true}
	s := &Scheduler{
		Client: fetcher,
		Repo:   repo,
		Logger: zap.NewNop(),
		Config: Config{
			Enabled:     true,
			LeadIDs:     leadSet(4),
			Concurrency: 2,
		},
	}
	s.runTick(context.Background())

	if got := repo.rawCount(); got != 3 {
		t.Fatalf("raw snapshots = %d, want 3", got)
	}
	if got := fetcher.totalCalls(); got != 4 {
		t.Fatalf("fetch calls = %d, want 4", got)
	}
}

func TestLaunchTickSkipsWhileRunning(t *testing.T) {
	repo := newStubRepo()
	fetcher := newFakeFetcher()
	fetcher.gate = make(chan struct{})
	s := &Scheduler{
		Client: fetcher,
		Repo:   repo,
		Logger: zap.NewNop(),
		Config: Config{
			Enabled:     true,
			LeadIDs:     leadSet(1),
			Concurrency: 1,
		},
	}

	var ticks sync.WaitGroup
	s.launchTick(context.Background(), &ticks)

	// Wait for the tick's worker to actually start fetching.
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&fetcher.current) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first tick never started")
		}
		time.Sleep(time.Millisecond)
	}

	// Second launch while the first is blocked must be dropped.
	s.launchTick(context.Background(), &ticks)

	close(fetcher.gate)
	ticks.Wait()

	if got := fetcher.totalCalls(); got != 1 {
		t.Fatalf("fetch calls = %d, want 1 (second tick skipped)", got)
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	s := &Scheduler{
		Client: newFakeFetcher(),
		Repo:   newStubRepo(),
		Logger: zap.NewNop(),
		Config: Config{Enabled: false, LeadIDs: leadSet(1)},
	}
	s.Start(context.Background())
	// Stop on a never-started scheduler must return immediately.
	s.Stop()
}

func TestStartStopDrains(t *testing.T) {
	repo := newStubRepo()
	fetcher := newFakeFetcher()
	s := &Scheduler{
		Client: fetcher,
		Repo:   repo,
		Logger: zap.NewNop(),
		Config: Config{
			Enabled:     true,
			Interval:    time.Hour,
			LeadIDs:     leadSet(2),
			Concurrency: 2,
		},
	}
	s.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for repo.rawCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("first tick never completed, raw=%d", repo.rawCount())
		}
		time.Sleep(time.Millisecond)
	}
	s.Stop()

	if got := repo.rawCount(); got != 2 {
		t.Fatalf("raw snapshots = %d, want 2", got)
	}
	// A second Stop is a no-op.
	s.Stop()
}
