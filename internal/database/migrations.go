package database

import (
	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Relationship{},
		&models.Notification{},
	)
}
