package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mariogenie/genie-chat/internal/config"
)

// Connect opens the Lakehouse PostgreSQL database. The OAuth token is passed
// as the password; Connect refuses to proceed without one.
func Connect(cfg config.Config) (*gorm.DB, error) {
	if cfg.DBPassword == "" {
		return nil, config.ErrNoDBCredential
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=require",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("db: open postgres: %w", err)
	}
	return gdb, nil
}
