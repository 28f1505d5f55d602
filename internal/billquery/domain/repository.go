package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, billID string) (*BillView, error)
	FindVersion(ctx context.Context, db *gorm.DB, billID string) (int64, bool, error)
	List(ctx context.Context, db *gorm.DB, filter Filter) ([]BillView, error)
	Count(ctx context.Context, db *gorm.DB, filter Filter) (int64, error)
}
