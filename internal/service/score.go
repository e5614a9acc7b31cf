package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"leadwatch/internal/client/exchange"
	"leadwatch/internal/models"
	"leadwatch/internal/repository"
)

var (
	minWeight = decimal.NewFromFloat(0.1)
	maxWeight = decimal.NewFromInt(3)
)

// ScoreService periodically recomputes the per-lead trader weight
// used to scale heatmap exposure.
type ScoreService struct {
	Repo    repository.Repository
	Logger  *zap.Logger
	LeadIDs []string
}

// Recompute derives a weight for every tracked lead from the
// performance block of its latest snapshot. Leads without a usable
// snapshot keep their current weight.
func (s *ScoreService) Recompute(ctx context.Context) error {
	if len(s.LeadIDs) == 0 {
		return nil
	}
	latest, err := s.Repo.LatestRawIngests(ctx, s.LeadIDs, time.Time{})
	if err != nil {
		return err
	}

	updated := 0
	for _, leadID := range s.LeadIDs {
		row, ok := latest[leadID]
		if !ok {
			continue
		}
		var payload exchange.LeadPayload
		if err := json.Unmarshal(row.Payload, &payload); err != nil {
			s.Logger.Warn("decode raw payload failed",
				zap.String("lead_id", leadID),
				zap.Error(err),
			)
			continue
		}
		if payload.PortfolioDetail == nil {
			continue
		}
		weight := weightFromDetail(payload.PortfolioDetail)
		score := &models.TraderScore{
			LeadID:       leadID,
			TraderWeight: weight,
			UpdatedAt:    time.Now().UTC(),
		}
		if err := s.Repo.UpsertTraderScore(ctx, score); err != nil {
			return err
		}
		updated++
	}
	s.Logger.Info("trader scores recomputed",
		zap.Int("updated", updated),
		zap.Int("tracked", len(s.LeadIDs)),
	)
	return nil
}

// weightFromDetail maps 30d performance onto a clamped multiplier.
// Baseline is 1; ROI and win rate push it up, drawdown pulls it down.
func weightFromDetail(detail *exchange.PortfolioDetail) decimal.Decimal {
	weight := decimal.NewFromInt(1)
	if detail.Roi != nil {
		weight = weight.Add(*detail.Roi)
	}
	if detail.WinRate != nil {
		half := detail.WinRate.Sub(decimal.NewFromFloat(0.5))
		weight = weight.Add(half)
	}
	if detail.Mdd != nil {
		weight = weight.Sub(detail.Mdd.Abs())
	}
	if weight.LessThan(minWeight) {
		return minWeight
	}
	if weight.GreaterThan(maxWeight) {
		return maxWeight
	}
	return weight
}
