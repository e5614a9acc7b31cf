package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"leadwatch/internal/client/exchange"
	"leadwatch/internal/models"
	"leadwatch/internal/repository"
	"leadwatch/internal/segment"
)

// FeedService composes the read surface the dashboard layer consumes.
// It only reads; all writes happen in the ingest pipeline.
type FeedService struct {
	Repo    repository.Repository
	Logger  *zap.Logger
	LeadIDs []string
}

type LeadSummary struct {
	LeadID          string          `json:"lead_id"`
	Nickname        string          `json:"nickname"`
	Segment         segment.Segment `json:"segment"`
	TraderWeight    decimal.Decimal `json:"trader_weight"`
	ActivePositions int             `json:"active_positions"`
	LastIngestAt    *time.Time      `json:"last_ingest_at,omitempty"`
}

type IngestRecord struct {
	LeadID    string          `json:"lead_id"`
	Nickname  string          `json:"nickname"`
	Segment   segment.Segment `json:"segment"`
	FetchedAt time.Time       `json:"fetched_at"`
	Orders    int             `json:"orders"`
	Positions int             `json:"positions"`
}

type HeatmapCell struct {
	Symbol           string          `json:"symbol"`
	Direction        string          `json:"direction"`
	LeadCount        int             `json:"lead_count"`
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	Notional         decimal.Decimal `json:"notional"`
	WeightedExposure decimal.Decimal `json:"weighted_exposure"`
}

type TraderDetail struct {
	Profile     models.LeadTrader         `json:"profile"`
	Segment     segment.Segment           `json:"segment"`
	Positions   []models.PositionState    `json:"positions"`
	Performance *exchange.PortfolioDetail `json:"performance,omitempty"`
	RoiSeries   []exchange.RoiPoint       `json:"roi_series,omitempty"`
}

// includedLeads resolves the tracked set against the segment filter.
// UNKNOWN-visibility leads are only reachable through an explicit
// lookup, never through aggregate queries.
func (s *FeedService) includedLeads(ctx context.Context, f segment.Filter) ([]models.LeadTrader, error) {
	if len(s.LeadIDs) == 0 {
		return nil, nil
	}
	traders, err := s.Repo.ListLeadTraders(ctx, s.LeadIDs)
	if err != nil {
		return nil, err
	}
	out := traders[:0]
	for _, lt := range traders {
		if segment.ShouldInclude(segment.Resolve(lt.PositionShow), f) {
			out = append(out, lt)
		}
	}
	return out, nil
}

func (s *FeedService) Feed(ctx context.Context, f segment.Filter) ([]LeadSummary, error) {
	traders, err := s.includedLeads(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(traders) == 0 {
		return []LeadSummary{}, nil
	}
	ids := leadIDs(traders)

	scores, err := s.Repo.ListTraderScores(ctx, ids)
	if err != nil {
		return nil, err
	}
	weightByLead := map[string]decimal.Decimal{}
	for _, sc := range scores {
		weightByLead[sc.LeadID] = sc.TraderWeight
	}

	active, err := s.Repo.ListActivePositionStates(ctx, ids)
	if err != nil {
		return nil, err
	}
	activeByLead := map[string]int{}
	for _, st := range active {
		activeByLead[st.LeadID]++
	}

	latest, err := s.Repo.LatestRawIngests(ctx, ids, time.Time{})
	if err != nil {
		return nil, err
	}

	out := make([]LeadSummary, 0, len(traders))
	for _, lt := range traders {
		weight := decimal.NewFromInt(1)
		if w, ok := weightByLead[lt.ID]; ok {
			weight = w
		}
		summary := LeadSummary{
			LeadID:          lt.ID,
			Nickname:        lt.Nickname,
			Segment:         segment.Resolve(lt.PositionShow),
			TraderWeight:    weight,
			ActivePositions: activeByLead[lt.ID],
		}
		if row, ok := latest[lt.ID]; ok {
			t := row.FetchedAt
			summary.LastIngestAt = &t
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TraderWeight.GreaterThan(out[j].TraderWeight)
	})
	return out, nil
}

// LatestRecords summarizes each included lead's most recent snapshot
// at or after since.
func (s *FeedService) LatestRecords(ctx context.Context, f segment.Filter, since time.Time) ([]IngestRecord, error) {
	traders, err := s.includedLeads(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(traders) == 0 {
		return []IngestRecord{}, nil
	}
	latest, err := s.Repo.LatestRawIngests(ctx, leadIDs(traders), since)
	if err != nil {
		return nil, err
	}

	out := make([]IngestRecord, 0, len(traders))
	for _, lt := range traders {
		row, ok := latest[lt.ID]
		if !ok {
			continue
		}
		rec := IngestRecord{
			LeadID:    lt.ID,
			Nickname:  lt.Nickname,
			Segment:   segment.Resolve(lt.PositionShow),
			FetchedAt: row.FetchedAt,
		}
		var payload exchange.LeadPayload
		if err := json.Unmarshal(row.Payload, &payload); err == nil {
			if payload.OrderHistory != nil {
				rec.Orders = len(payload.OrderHistory.AllOrders)
			}
			rec.Positions = len(payload.ActivePositions)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FetchedAt.After(out[j].FetchedAt)
	})
	return out, nil
}

// Heatmap aggregates ACTIVE position state into a symbol/direction
// exposure grid, weighting each lead by its trader score.
func (s *FeedService) Heatmap(ctx context.Context, f segment.Filter) ([]HeatmapCell, error) {
	traders, err := s.includedLeads(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(traders) == 0 {
		return []HeatmapCell{}, nil
	}
	ids := leadIDs(traders)

	states, err := s.Repo.ListActivePositionStates(ctx, ids)
	if err != nil {
		return nil, err
	}
	scores, err := s.Repo.ListTraderScores(ctx, ids)
	if err != nil {
		return nil, err
	}
	weightByLead := map[string]decimal.Decimal{}
	for _, sc := range scores {
		weightByLead[sc.LeadID] = sc.TraderWeight
	}

	type cellKey struct{ symbol, direction string }
	cells := map[cellKey]*HeatmapCell{}
	for _, st := range states {
		if st.Direction == nil || st.Amount.IsZero() {
			continue
		}
		key := cellKey{symbol: st.Symbol, direction: *st.Direction}
		cell, ok := cells[key]
		if !ok {
			cell = &HeatmapCell{Symbol: st.Symbol, Direction: *st.Direction}
			cells[key] = cell
		}
		weight := decimal.NewFromInt(1)
		if w, ok := weightByLead[st.LeadID]; ok {
			weight = w
		}
		notional := st.Amount.Mul(st.EntryPrice)
		cell.LeadCount++
		cell.GrossAmount = cell.GrossAmount.Add(st.Amount)
		cell.Notional = cell.Notional.Add(notional)
		cell.WeightedExposure = cell.WeightedExposure.Add(notional.Mul(weight))
	}

	out := make([]HeatmapCell, 0, len(cells))
	for _, cell := range cells {
		out = append(out, *cell)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Direction < out[j].Direction
	})
	return out, nil
}

// Events returns the chronological lot-transition feed for included
// leads.
func (s *FeedService) Events(ctx context.Context, f segment.Filter, params repository.ListPositionEventsParams) ([]models.PositionEvent, error) {
	traders, err := s.includedLeads(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(traders) == 0 {
		return []models.PositionEvent{}, nil
	}
	params.LeadIDs = leadIDs(traders)
	return s.Repo.ListPositionEvents(ctx, params)
}

// Trader composes one lead's profile, current positions, and the
// performance series from its latest raw snapshot. Unlike the
// aggregate queries this works for UNKNOWN-segment leads too.
func (s *FeedService) Trader(ctx context.Context, leadID string) (*TraderDetail, error) {
	lt, err := s.Repo.GetLeadTrader(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, nil
	}
	states, err := s.Repo.ListPositionStatesByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	detail := &TraderDetail{
		Profile:   *lt,
		Segment:   segment.Resolve(lt.PositionShow),
		Positions: states,
	}
	latest, err := s.Repo.LatestRawIngests(ctx, []string{leadID}, time.Time{})
	if err != nil {
		return nil, err
	}
	if row, ok := latest[leadID]; ok {
		var payload exchange.LeadPayload
		if err := json.Unmarshal(row.Payload, &payload); err == nil {
			detail.Performance = payload.PortfolioDetail
			detail.RoiSeries = payload.RoiSeries
		} else if s.Logger != nil {
			s.Logger.Warn("decode raw payload failed",
				zap.String("lead_id", leadID),
				zap.Error(err),
			)
		}
	}
	return detail, nil
}

func leadIDs(traders []models.LeadTrader) []string {
	out := make([]string, 0, len(traders))
	for _, lt := range traders {
		out = append(out, lt.ID)
	}
	return out
}
