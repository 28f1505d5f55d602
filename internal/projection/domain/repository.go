package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	InsertView(ctx context.Context, db *gorm.DB, view *BillView) (bool, error)
	// UpdateView applies fields to the row whose version is seq-1 and bumps
	// its version to seq. It returns the number of rows changed.
	UpdateView(ctx context.Context, db *gorm.DB, billID string, seq, position int64, fields map[string]any) (int64, error)
	ViewVersion(ctx context.Context, db *gorm.DB, billID string) (int64, bool, error)
	InsertFile(ctx context.Context, db *gorm.DB, file *BillFile) error
	Truncate(ctx context.Context, db *gorm.DB) error
}
