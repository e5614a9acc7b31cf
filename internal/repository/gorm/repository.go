package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leadwatch/internal/models"
	"leadwatch/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Lead traders -----------------------------------------------------------

func (s *Store) EnsureLeadTrader(ctx context.Context, id string) error {
	if s == nil || s.db == nil || strings.TrimSpace(id) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&models.LeadTrader{ID: strings.TrimSpace(id)}).Error
}

func (s *Store) UpsertLeadTrader(ctx context.Context, item *models.LeadTrader) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.ID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"nickname",
			"position_show",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetLeadTrader(ctx context.Context, id string) (*models.LeadTrader, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.LeadTrader
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListLeadTraders(ctx context.Context, ids []string) ([]models.LeadTrader, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var items []models.LeadTrader
	if err := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Raw ingest log ---------------------------------------------------------

func (s *Store) InsertRawIngest(ctx context.Context, item *models.RawIngest) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) LatestRawIngests(ctx context.Context, leadIDs []string, since time.Time) (map[string]models.RawIngest, error) {
	if s == nil || s.db == nil || len(leadIDs) == 0 {
		return map[string]models.RawIngest{}, nil
	}
	var rows []models.RawIngest
	err := s.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (lead_id) *
FROM raw_ingests
WHERE lead_id IN ? AND fetched_at >= ?
ORDER BY lead_id, fetched_at DESC`, leadIDs, since).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.RawIngest, len(rows))
	for _, row := range rows {
		out[row.LeadID] = row
	}
	return out, nil
}

func (s *Store) DeleteRawIngestsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil || cutoff.IsZero() {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("fetched_at < ?", cutoff).
		Delete(&models.RawIngest{})
	return res.RowsAffected, res.Error
}

// --- Position state ---------------------------------------------------------

func (s *Store) ListPositionStatesByLead(ctx context.Context, leadID string) ([]models.PositionState, error) {
	if s == nil || s.db == nil || strings.TrimSpace(leadID) == "" {
		return nil, nil
	}
	var items []models.PositionState
	if err := s.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("symbol asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListActivePositionStates(ctx context.Context, leadIDs []string) ([]models.PositionState, error) {
	if s == nil || s.db == nil || len(leadIDs) == 0 {
		return nil, nil
	}
	var items []models.PositionState
	if err := s.db.WithContext(ctx).
		Where("lead_id IN ?", leadIDs).
		Where("status = ?", models.PositionStatusActive).
		Order("lead_id asc, symbol asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPositionStates(ctx context.Context, params repository.ListPositionStatesParams) ([]models.PositionState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.PositionState{})
	if params.LeadID != nil && strings.TrimSpace(*params.LeadID) != "" {
		query = query.Where("lead_id = ?", strings.TrimSpace(*params.LeadID))
	}
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.TrimSpace(*params.Symbol))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.ToUpper(strings.TrimSpace(*params.Status)))
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "updated_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.PositionState
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// UpsertPositionStateTx writes one (lead_id, symbol) row inside the
// caller's transaction so readers never observe a lot mid-update.
func (s *Store) UpsertPositionStateTx(ctx context.Context, tx *gorm.DB, item *models.PositionState) error {
	if s == nil || item == nil {
		return nil
	}
	db := tx
	if db == nil {
		db = s.db
	}
	if db == nil {
		return nil
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "lead_id"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"direction",
			"amount",
			"leverage",
			"entry_price",
			"first_seen_at",
			"estimated_open_time",
			"open_event_id",
			"updated_at",
		}),
	}).Create(item).Error
}

// --- Position events --------------------------------------------------------

func (s *Store) InsertPositionEventsTx(ctx context.Context, tx *gorm.DB, items []models.PositionEvent) error {
	if s == nil || len(items) == 0 {
		return nil
	}
	db := tx
	if db == nil {
		db = s.db
	}
	if db == nil {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (s *Store) ListPositionEvents(ctx context.Context, params repository.ListPositionEventsParams) ([]models.PositionEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.PositionEvent{})
	if len(params.LeadIDs) > 0 {
		query = query.Where("lead_id IN ?", params.LeadIDs)
	}
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.TrimSpace(*params.Symbol))
	}
	if len(params.Types) > 0 {
		query = query.Where("event_type IN ?", params.Types)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("occurred_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("occurred_at <= ?", *params.Until)
	}
	dir := "desc"
	if params.Asc != nil && *params.Asc {
		dir = "asc"
	}
	query = query.Order("occurred_at " + dir + ", id " + dir)
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.PositionEvent
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Trader scores ----------------------------------------------------------

func (s *Store) UpsertTraderScore(ctx context.Context, item *models.TraderScore) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.LeadID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "lead_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"trader_weight",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListTraderScores(ctx context.Context, leadIDs []string) ([]models.TraderScore, error) {
	if s == nil || s.db == nil || len(leadIDs) == 0 {
		return nil, nil
	}
	var items []models.TraderScore
	if err := s.db.WithContext(ctx).
		Where("lead_id IN ?", leadIDs).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	col := strings.TrimSpace(orderBy)
	if col == "" {
		col = fallback
	}
	dir := "desc"
	if asc != nil && *asc {
		dir = "asc"
	}
	return query.Order(col + " " + dir)
}

func normalizeLimit(limit, def int) int {
	if limit <= 0 || limit > 1000 {
		return def
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
