package db

import (
	"leadwatch/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.LeadTrader{},
		&models.RawIngest{},
		&models.PositionState{},
		&models.PositionEvent{},
		&models.TraderScore{},
	)
}
