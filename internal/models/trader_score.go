package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TraderScore weights a lead in ranking and heatmap aggregation.
type TraderScore struct {
	LeadID       string          `gorm:"primaryKey;type:text"`
	TraderWeight decimal.Decimal `gorm:"type:numeric(10,4);not null;default:1"`
	UpdatedAt    time.Time       `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TraderScore) TableName() string {
	return "trader_scores"
}
