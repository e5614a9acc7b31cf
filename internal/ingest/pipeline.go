package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"leadwatch/internal/client/exchange"
	"leadwatch/internal/derive"
	"leadwatch/internal/models"
	"leadwatch/internal/segment"
)

// processLead runs the full per-lead pipeline for one tick: fetch,
// persist the raw snapshot, and recompute position state. Degraded
// payload fields reduce what gets recomputed but are never fatal.
func (s *Scheduler) processLead(ctx context.Context, leadID string) error {
	payload, softErrs := s.Client.FetchLeadPayload(ctx, leadID, s.Config.OrderPageSize, s.Config.Timeout)
	if payload == nil {
		return fmt.Errorf("fetch yielded no payload")
	}
	if s.Logger != nil {
		for _, err := range softErrs {
			s.Logger.Debug("lead sub-fetch degraded",
				zap.String("lead_id", leadID),
				zap.Error(err),
			)
		}
	}

	// positionShow is only rewritten when the detail sub-request
	// actually returned; a missing detail never implies hidden.
	var show *bool
	if payload.PortfolioDetail != nil {
		show = payload.PortfolioDetail.PositionShow
		if err := s.Repo.UpsertLeadTrader(ctx, &models.LeadTrader{
			ID:           leadID,
			Nickname:     payload.PortfolioDetail.Nickname,
			PositionShow: show,
			UpdatedAt:    time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("upsert lead: %w", err)
		}
	} else {
		if err := s.Repo.EnsureLeadTrader(ctx, leadID); err != nil {
			return fmt.Errorf("ensure lead: %w", err)
		}
		stored, err := s.Repo.GetLeadTrader(ctx, leadID)
		if err != nil {
			return fmt.Errorf("load lead: %w", err)
		}
		if stored != nil {
			show = stored.PositionShow
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := s.Repo.InsertRawIngest(ctx, &models.RawIngest{
		LeadID:    leadID,
		Payload:   datatypes.JSON(raw),
		FetchedAt: payload.FetchedAt,
	}); err != nil {
		return fmt.Errorf("append raw ingest: %w", err)
	}

	prior, err := s.Repo.ListPositionStatesByLead(ctx, leadID)
	if err != nil {
		return fmt.Errorf("load prior state: %w", err)
	}

	now := time.Now().UTC()
	seg := segment.Resolve(show)

	var next []*models.PositionState
	var lots map[string]*derive.Lot
	if seg == segment.Visible {
		if payload.ActivePositions == nil {
			// Live feed degraded this tick; keep the previous state.
			return nil
		}
		next = statesFromLive(leadID, payload.ActivePositions, prior, now)
		next = append(next, closedForMissing(prior, next, now)...)
	} else {
		if payload.OrderHistory == nil {
			return nil
		}
		var anomalies []derive.Anomaly
		lots, anomalies = derive.Replay(ordersFromHistory(payload.OrderHistory))
		if s.Logger != nil {
			for _, a := range anomalies {
				s.Logger.Warn("derivation anomaly",
					zap.String("lead_id", leadID),
					zap.String("symbol", a.Symbol),
					zap.String("order_id", a.OrderID),
					zap.String("reason", a.Reason),
				)
			}
		}
		next = statesFromLots(leadID, lots, now)
	}
	if len(next) == 0 {
		return nil
	}

	events := computeTransitions(leadID, prior, next, lots, now)
	return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		for _, st := range next {
			if err := s.Repo.UpsertPositionStateTx(ctx, tx, st); err != nil {
				return fmt.Errorf("upsert position state %s: %w", st.Symbol, err)
			}
		}
		if err := s.Repo.InsertPositionEventsTx(ctx, tx, events); err != nil {
			return fmt.Errorf("insert position events: %w", err)
		}
		return nil
	})
}

// ordersFromHistory converts the exchange's order page into replayable
// orders, dropping rows that are missing the fields a replay needs.
func ordersFromHistory(h *exchange.OrderHistory) []derive.Order {
	if h == nil {
		return nil
	}
	out := make([]derive.Order, 0, len(h.AllOrders))
	for _, o := range h.AllOrders {
		if o.Symbol == "" || o.ExecutedQty == nil || o.AvgPrice == nil {
			continue
		}
		lev := decimal.Zero
		if o.Leverage != nil {
			lev = *o.Leverage
		}
		out = append(out, derive.Order{
			OrderID:      o.OrderID,
			Symbol:       o.Symbol,
			Side:         strings.ToUpper(strings.TrimSpace(o.Side)),
			PositionSide: strings.ToUpper(strings.TrimSpace(o.PositionSide)),
			Quantity:     o.ExecutedQty.Abs(),
			Price:        *o.AvgPrice,
			Leverage:     lev,
			Time:         o.OrderedTime(),
		})
	}
	return out
}

// statesFromLots turns terminal replay lots into upsertable rows.
func statesFromLots(leadID string, lots map[string]*derive.Lot, now time.Time) []*models.PositionState {
	out := make([]*models.PositionState, 0, len(lots))
	for symbol, lot := range lots {
		st := &models.PositionState{
			LeadID:    leadID,
			Symbol:    symbol,
			UpdatedAt: now,
		}
		if lot.Size.IsZero() {
			st.Status = models.PositionStatusClosed
			st.Amount = decimal.Zero
			st.EntryPrice = decimal.Zero
			st.Leverage = decimal.Zero
		} else {
			dir := lot.Direction()
			st.Status = models.PositionStatusActive
			st.Direction = &dir
			st.Amount = lot.Size.Abs()
			st.EntryPrice = lot.EntryPrice
			st.Leverage = lot.Leverage
			firstSeen := lot.FirstSeenAt
			openedAt := lot.OpenedAt
			st.FirstSeenAt = &firstSeen
			st.EstimatedOpenTime = &openedAt
			if lot.OpenOrderID != "" {
				openID := lot.OpenOrderID
				st.OpenEventID = &openID
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// statesFromLive maps a visible lead's live position feed directly to
// state rows. Open metadata the feed does not carry is inherited from
// the prior row when the direction is unchanged.
func statesFromLive(leadID string, positions []exchange.LeadPosition, prior []models.PositionState, now time.Time) []*models.PositionState {
	priorBySymbol := indexBySymbol(prior)
	out := make([]*models.PositionState, 0, len(positions))
	for _, p := range positions {
		if p.Symbol == "" || p.PositionAmount == nil || p.PositionAmount.IsZero() {
			continue
		}
		dir := strings.ToUpper(strings.TrimSpace(p.PositionSide))
		if dir != models.DirectionLong && dir != models.DirectionShort {
			if p.PositionAmount.Sign() < 0 {
				dir = models.DirectionShort
			} else {
				dir = models.DirectionLong
			}
		}
		st := &models.PositionState{
			LeadID:    leadID,
			Symbol:    p.Symbol,
			Status:    models.PositionStatusActive,
			Direction: &dir,
			Amount:    p.PositionAmount.Abs(),
			UpdatedAt: now,
		}
		if p.EntryPrice != nil {
			st.EntryPrice = *p.EntryPrice
		}
		if p.Leverage != nil {
			st.Leverage = *p.Leverage
		}
		if old, ok := priorBySymbol[p.Symbol]; ok &&
			old.Status == models.PositionStatusActive &&
			old.Direction != nil && *old.Direction == dir {
			st.FirstSeenAt = old.FirstSeenAt
			st.EstimatedOpenTime = old.EstimatedOpenTime
			st.OpenEventID = old.OpenEventID
		} else {
			t := now
			st.FirstSeenAt = &t
			st.EstimatedOpenTime = &t
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// closedForMissing marks prior ACTIVE symbols that dropped out of an
// authoritative live feed as CLOSED.
func closedForMissing(prior []models.PositionState, next []*models.PositionState, now time.Time) []*models.PositionState {
	seen := map[string]struct{}{}
	for _, st := range next {
		seen[st.Symbol] = struct{}{}
	}
	var out []*models.PositionState
	for _, old := range prior {
		if old.Status != models.PositionStatusActive {
			continue
		}
		if _, ok := seen[old.Symbol]; ok {
			continue
		}
		out = append(out, &models.PositionState{
			LeadID:     old.LeadID,
			Symbol:     old.Symbol,
			Status:     models.PositionStatusClosed,
			Amount:     decimal.Zero,
			EntryPrice: decimal.Zero,
			Leverage:   decimal.Zero,
			UpdatedAt:  now,
		})
	}
	return out
}

// computeTransitions diffs the new states against the prior rows and
// emits lot lifecycle events. States already seen in a previous tick
// produce nothing, which keeps re-derivation over overlapping history
// windows from duplicating the feed.
func computeTransitions(leadID string, prior []models.PositionState, next []*models.PositionState, lots map[string]*derive.Lot, now time.Time) []models.PositionEvent {
	priorBySymbol := indexBySymbol(prior)
	var events []models.PositionEvent

	closedAt := func(symbol string) time.Time {
		if lot, ok := lots[symbol]; ok && !lot.ClosedAt.IsZero() {
			return lot.ClosedAt
		}
		return now
	}
	openedAt := func(st *models.PositionState) time.Time {
		if st.EstimatedOpenTime != nil {
			return *st.EstimatedOpenTime
		}
		return now
	}

	for _, st := range next {
		old, known := priorBySymbol[st.Symbol]

		if st.Status == models.PositionStatusClosed {
			if known && old.Status == models.PositionStatusActive {
				events = append(events, models.PositionEvent{
					LeadID:     leadID,
					Symbol:     st.Symbol,
					EventType:  models.EventClosed,
					Direction:  old.Direction,
					Amount:     old.Amount,
					Price:      old.EntryPrice,
					OccurredAt: closedAt(st.Symbol),
				})
			}
			continue
		}

		// st is ACTIVE.
		switch {
		case !known || old.Status == models.PositionStatusClosed:
			events = append(events, models.PositionEvent{
				LeadID:     leadID,
				Symbol:     st.Symbol,
				EventType:  models.EventOpened,
				Direction:  st.Direction,
				Amount:     st.Amount,
				Price:      st.EntryPrice,
				OrderID:    st.OpenEventID,
				OccurredAt: openedAt(st),
			})
		case old.Direction != nil && st.Direction != nil && *old.Direction != *st.Direction:
			events = append(events, models.PositionEvent{
				LeadID:     leadID,
				Symbol:     st.Symbol,
				EventType:  models.EventFlipped,
				Direction:  st.Direction,
				Amount:     st.Amount,
				Price:      st.EntryPrice,
				OrderID:    st.OpenEventID,
				OccurredAt: openedAt(st),
			})
		case changedOpenEvent(old.OpenEventID, st.OpenEventID):
			// Same direction but a different opening order: the lot
			// closed and reopened between ticks.
			events = append(events,
				models.PositionEvent{
					LeadID:     leadID,
					Symbol:     st.Symbol,
					EventType:  models.EventClosed,
					Direction:  old.Direction,
					Amount:     old.Amount,
					Price:      old.EntryPrice,
					OccurredAt: openedAt(st),
				},
				models.PositionEvent{
					LeadID:     leadID,
					Symbol:     st.Symbol,
					EventType:  models.EventOpened,
					Direction:  st.Direction,
					Amount:     st.Amount,
					Price:      st.EntryPrice,
					OrderID:    st.OpenEventID,
					OccurredAt: openedAt(st),
				},
			)
		}
	}
	return events
}

func changedOpenEvent(old, next *string) bool {
	if old == nil || next == nil {
		return false
	}
	return *old != *next
}

func indexBySymbol(states []models.PositionState) map[string]models.PositionState {
	out := make(map[string]models.PositionState, len(states))
	for _, st := range states {
		out[st.Symbol] = st
	}
	return out
}
