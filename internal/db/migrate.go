package db

import (
	"oddlynews/internal/models"
)

// AutoMigrate runs on the admin handle; the read role is not expected to hold DDL rights.
func AutoMigrate(db *DB) error {
	if db == nil || db.Admin == nil {
		return nil
	}
	return db.Admin.AutoMigrate(
		&models.Agent{},
		&models.Briefing{},
	)
}
