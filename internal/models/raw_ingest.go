package models

import (
	"time"

	"gorm.io/datatypes"
)

// RawIngest is an immutable snapshot of one lead's aggregated payload.
// Rows are append-only; the current payload for a lead is the most
// recent row.
type RawIngest struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement"`
	LeadID    string         `gorm:"type:text;not null;index:idx_raw_ingests_lead_fetched,priority:1"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	FetchedAt time.Time      `gorm:"type:timestamptz;not null;index:idx_raw_ingests_lead_fetched,priority:2"`
}

func (RawIngest) TableName() string {
	return "raw_ingests"
}
