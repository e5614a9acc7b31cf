package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PositionStatusActive = "ACTIVE"
	PositionStatusClosed = "CLOSED"

	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

// PositionState is the derived belief about a lead's exposure to one
// symbol. One row per (lead_id, symbol); a closed lot keeps its row
// with status CLOSED until a new lot reopens it.
type PositionState struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	LeadID string `gorm:"type:text;not null;uniqueIndex:ux_position_states_lead_symbol,priority:1"`
	Symbol string `gorm:"type:text;not null;uniqueIndex:ux_position_states_lead_symbol,priority:2"`

	Status    string  `gorm:"type:varchar(10);not null;index"`
	Direction *string `gorm:"type:varchar(10)"`

	Amount     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Leverage   decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	EntryPrice decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`

	FirstSeenAt       *time.Time `gorm:"type:timestamptz"`
	EstimatedOpenTime *time.Time `gorm:"type:timestamptz"`
	OpenEventID       *string    `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (PositionState) TableName() string {
	return "position_states"
}
