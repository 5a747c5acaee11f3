package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates or updates the schema. Running it repeatedly is a no-op.
func Migrate(ctx context.Context, conn *gorm.DB) error {
	if err := conn.WithContext(ctx).AutoMigrate(&User{}, &SimCard{}, &UsageRecord{}); err != nil {
		return fmt.Errorf("platform/db: migrate: %w", err)
	}
	return nil
}
