package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// WithTx executes fn inside a transaction bound to ctx. The transaction is
// rolled back when fn returns an error or panics.
func WithTx(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	err := conn.WithContext(ctx).Transaction(fn)
	if err != nil {
		return fmt.Errorf("platform/db: tx: %w", err)
	}
	return nil
}
