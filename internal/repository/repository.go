package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"leadwatch/internal/models"
)

// Repository is the persistence surface shared by the ingest pipeline
// and the read services.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Lead traders.
	EnsureLeadTrader(ctx context.Context, id string) error
	UpsertLeadTrader(ctx context.Context, item *models.LeadTrader) error
	GetLeadTrader(ctx context.Context, id string) (*models.LeadTrader, error)
	ListLeadTraders(ctx context.Context, ids []string) ([]models.LeadTrader, error)

	// Raw ingest log (append-only).
	InsertRawIngest(ctx context.Context, item *models.RawIngest) error
	LatestRawIngests(ctx context.Context, leadIDs []string, since time.Time) (map[string]models.RawIngest, error)
	DeleteRawIngestsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Derived position state.
	ListPositionStatesByLead(ctx context.Context, leadID string) ([]models.PositionState, error)
	ListActivePositionStates(ctx context.Context, leadIDs []string) ([]models.PositionState, error)
	ListPositionStates(ctx context.Context, params ListPositionStatesParams) ([]models.PositionState, error)
	UpsertPositionStateTx(ctx context.Context, tx *gorm.DB, item *models.PositionState) error

	// Position transition events (insert-only).
	InsertPositionEventsTx(ctx context.Context, tx *gorm.DB, items []models.PositionEvent) error
	ListPositionEvents(ctx context.Context, params ListPositionEventsParams) ([]models.PositionEvent, error)

	// Trader scores.
	UpsertTraderScore(ctx context.Context, item *models.TraderScore) error
	ListTraderScores(ctx context.Context, leadIDs []string) ([]models.TraderScore, error)
}

type ListPositionStatesParams struct {
	Limit   int
	Offset  int
	LeadID  *string
	Symbol  *string
	Status  *string
	OrderBy string
	Asc     *bool
}

type ListPositionEventsParams struct {
	Limit   int
	Offset  int
	LeadIDs []string
	Symbol  *string
	Types   []string
	Since   *time.Time
	Until   *time.Time
	Asc     *bool
}
