package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"leadwatch/internal/models"
	"leadwatch/internal/repository"
)

// stubRepo is a test-only in-memory implementation of
// repository.Repository seeded directly by each test.
type stubRepo struct {
	traders map[string]models.LeadTrader
	states  []models.PositionState
	events  []models.PositionEvent
	scores  map[string]models.TraderScore
	raws    map[string]models.RawIngest

	deletedBefore *time.Time
	pruned        int64
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) EnsureLeadTrader(ctx context.Context, id string) error { return nil }

func (s *stubRepo) UpsertLeadTrader(ctx context.Context, item *models.LeadTrader) error { return nil }

func (s *stubRepo) GetLeadTrader(ctx context.Context, id string) (*models.LeadTrader, error) {
	if lt, ok := s.traders[id]; ok {
		out := lt
		return &out, nil
	}
	return nil, nil
}

func (s *stubRepo) ListLeadTraders(ctx context.Context, ids []string) ([]models.LeadTrader, error) {
	var out []models.LeadTrader
	for _, id := range ids {
		if lt, ok := s.traders[id]; ok {
			out = append(out, lt)
		}
	}
	return out, nil
}

func (s *stubRepo) InsertRawIngest(ctx context.Context, item *models.RawIngest) error { return nil }

func (s *stubRepo) LatestRawIngests(ctx context.Context, leadIDs []string, since time.Time) (map[string]models.RawIngest, error) {
	out := map[string]models.RawIngest{}
	for _, id := range leadIDs {
		if row, ok := s.raws[id]; ok && !row.FetchedAt.Before(since) {
			out[id] = row
		}
	}
	return out, nil
}

func (s *stubRepo) DeleteRawIngestsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.deletedBefore = &cutoff
	return s.pruned, nil
}

func (s *stubRepo) ListPositionStatesByLead(ctx context.Context, leadID string) ([]models.PositionState, error) {
	var out []models.PositionState
	for _, st := range s.states {
		if st.LeadID == leadID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *stubRepo) ListActivePositionStates(ctx context.Context, leadIDs []string) ([]models.PositionState, error) {
	want := map[string]struct{}{}
	for _, id := range leadIDs {
		want[id] = struct{}{}
	}
	var out []models.PositionState
	for _, st := range s.states {
		if st.Status != models.PositionStatusActive {
			continue
		}
		if _, ok := want[st.LeadID]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *stubRepo) ListPositionStates(ctx context.Context, params repository.ListPositionStatesParams) ([]models.PositionState, error) {
	return s.states, nil
}

func (s *stubRepo) UpsertPositionStateTx(ctx context.Context, tx *gorm.DB, item *models.PositionState) error {
	return nil
}

func (s *stubRepo) InsertPositionEventsTx(ctx context.Context, tx *gorm.DB, items []models.PositionEvent) error {
	return nil
}

func (s *stubRepo) ListPositionEvents(ctx context.Context, params repository.ListPositionEventsParams) ([]models.PositionEvent, error) {
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
	if s.scores == nil {
		s.scores = map[string]models.TraderScore{}
	}
	s.scores[item.LeadID] = *item
	return nil
}

func (s *stubRepo) ListTraderScores(ctx context.Context, leadIDs []string) ([]models.TraderScore, error) {
	var out []models.TraderScore
	for _, id := range leadIDs {
		if sc, ok := s.scores[id]; ok {
			out = append(out, sc)
		}
	}
	return out, nil
}
