package store

import (
	"fmt"
	"os"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Connect opens the primary marketplace database. Connection parameters come
// from the environment the same way the rest of the deployment is configured.
func Connect() (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect marketplace database: %w", err)
	}
	return db, nil
}

// ConnectSubscriptions opens the local sqlite database that holds web-push
// subscriptions.
func ConnectSubscriptions() (*gorm.DB, error) {
	path := os.Getenv("SUBSCRIPTIONS_DB")
	if path == "" {
		path = "subscriptions.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect subscriptions database: %w", err)
	}
	return db, nil
}
