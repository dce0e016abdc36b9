package database

import (
	"fmt"

	"mintix/internal/concerts"
	"mintix/internal/tickets"
	"mintix/internal/users"

	"gorm.io/gorm"
)

// Migrate runs auto-migrations for all persistent models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&users.User{},
		&concerts.Concert{},
		&concerts.Section{},
		&tickets.Ticket{},
	); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}
