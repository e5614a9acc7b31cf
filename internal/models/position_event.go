package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOpened  = "OPENED"
	EventClosed  = "CLOSED"
	EventFlipped = "FLIPPED"
)

// PositionEvent records one state transition of a lead's lot. Rows are
// insert-only and produced from state diffs, so re-deriving over an
// overlapping history window does not duplicate them.
type PositionEvent struct {
	ID        uint64  `gorm:"primaryKey;autoIncrement"`
	LeadID    string  `gorm:"type:text;not null;index"`
	Symbol    string  `gorm:"type:text;not null;index"`
	EventType string  `gorm:"type:varchar(10);not null"`
	Direction *string `gorm:"type:varchar(10)"`

	Amount decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Price  decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`

	OrderID    *string   `gorm:"type:text"`
	OccurredAt time.Time `gorm:"type:timestamptz;not null;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PositionEvent) TableName() string {
	return "position_events"
}
