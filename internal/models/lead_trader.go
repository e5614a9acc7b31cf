package models

import (
	"time"
)

// LeadTrader is one tracked lead portfolio. PositionShow is tri-state:
// true/false as reported by the exchange, nil when the exchange has not
// told us either way.
type LeadTrader struct {
	ID           string `gorm:"primaryKey;type:text"`
	Nickname     string `gorm:"type:text"`
	PositionShow *bool  `gorm:"type:boolean"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (LeadTrader) TableName() string {
	return "lead_traders"
}
