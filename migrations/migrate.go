package migrations

import (
	"gorm.io/gorm"

	"github.com/villebiz/marketplace-server/models"
)

// Migrate keeps the primary marketplace schema current.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Order{},
		&models.Transaction{},
		&models.Notification{},
	)
}

// MigrateSubscriptions keeps the push subscription schema current on its
// separate database.
func MigrateSubscriptions(db *gorm.DB) error {
	return db.AutoMigrate(&models.PushSubscription{})
}
