package ingest

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"leadwatch/internal/models"
	"leadwatch/internal/repository"
)

// stubRepo is a test-only in-memory implementation of
// repository.Repository. Writes are recorded under a mutex so tests
// can assert on them after concurrent ticks.
type stubRepo struct {
	mu sync.Mutex

	traders map[string]models.LeadTrader
	raws    []models.RawIngest
	states  map[string]map[string]models.PositionState
	events  []models.PositionEvent
	scores  map[string]models.TraderScore
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		traders: map[string]models.LeadTrader{},
		states:  map[string]map[string]models.PositionState{},
		scores:  map[string]models.TraderScore{},
	}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) EnsureLeadTrader(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.traders[id]; !ok {
		s.traders[id] = models.LeadTrader{ID: id}
	}
	return nil
}

func (s *stubRepo) UpsertLeadTrader(ctx context.Context, item *models.LeadTrader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traders[item.ID] = *item
	return nil
}

func (s *stubRepo) GetLeadTrader(ctx context.Context, id string) (*models.LeadTrader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lt, ok := s.traders[id]; ok {
		out := lt
		return &out, nil
	}
	return nil, nil
}

func (s *stubRepo) ListLeadTraders(ctx context.Context, ids []string) ([]models.LeadTrader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LeadTrader
	for _, id := range ids {
		if lt, ok := s.traders[id]; ok {
			out = append(out, lt)
		}
	}
	return out, nil
}

func (s *stubRepo) InsertRawIngest(ctx context.Context, item *models.RawIngest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raws = append(s.raws, *item)
	return nil
}

func (s *stubRepo) LatestRawIngests(ctx context.Context, leadIDs []string, since time.Time) (map[string]models.RawIngest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]struct{}{}
	for _, id := range leadIDs {
		want[id] = struct{}{}
	}
	out := map[string]models.RawIngest{}
	for _, row := range s.raws {
		if _, ok := want[row.LeadID]; !ok {
			continue
		}
		if row.FetchedAt.Before(since) {
			continue
		}
		if cur, ok := out[row.LeadID]; !ok || row.FetchedAt.After(cur.FetchedAt) {
			out[row.LeadID] = row
		}
	}
	return out, nil
}

func (s *stubRepo) DeleteRawIngestsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.raws[:0]
	var deleted int64
	for _, row := range s.raws {
		if row.FetchedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	s.raws = kept
	return deleted, nil
}

func (s *stubRepo) ListPositionStatesByLead(ctx context.Context, leadID string) ([]models.PositionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PositionState
	for _, st := range s.states[leadID] {
		out = append(out, st)
	}
	return out, nil
}

func (s *stubRepo) ListActivePositionStates(ctx context.Context, leadIDs []string) ([]models.PositionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PositionState
	for _, id := range leadIDs {
		for _, st := range s.states[id] {
			if st.Status == models.PositionStatusActive {
				out = append(out, st)
			}
		}
	}
	return out, nil
}

func (s *stubRepo) ListPositionStates(ctx context.Context, params repository.ListPositionStatesParams) ([]models.PositionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PositionState
	for leadID, bySymbol := range s.states {
		if params.LeadID != nil && *params.LeadID != leadID {
			continue
		}
		for _, st := range bySymbol {
			if params.Symbol != nil && *params.Symbol != st.Symbol {
				continue
			}
			if params.Status != nil && *params.Status != st.Status {
				continue
			}
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *stubRepo) UpsertPositionStateTx(ctx context.Context, tx *gorm.DB, item *models.PositionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bySymbol, ok := s.states[item.LeadID]
	if !ok {
		bySymbol = map[string]models.PositionState{}
		s.states[item.LeadID] = bySymbol
	}
	bySymbol[item.Symbol] = *item
	return nil
}

func (s *stubRepo) InsertPositionEventsTx(ctx context.Context, tx *gorm.DB, items []models.PositionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, items...)
	return nil
}

func (s *stubRepo) ListPositionEvents(ctx context.Context, params repository.ListPositionEventsParams) ([]models.PositionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]struct{}{}
	for _, id := range params.LeadIDs {
		want[id] = struct{}{}
	}
	var out []models.PositionEvent
	for _, ev := range s.events {
		if len(want) > 0 {
			if _, ok := want[ev.LeadID]; !ok {
				continue
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *stubRepo) UpsertTraderScore(ctx context.Context, item *models.TraderScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[item.LeadID] = *item
	return nil
}

func (s *stubRepo) ListTraderScores(ctx context.Context, leadIDs []string) ([]models.TraderScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TraderScore
	for _, id := range leadIDs {
		if sc, ok := s.scores[id]; ok {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *stubRepo) rawCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.raws)
}

func (s *stubRepo) stateFor(leadID, symbol string) (models.PositionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[leadID][symbol]
	return st, ok
}

func (s *stubRepo) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
