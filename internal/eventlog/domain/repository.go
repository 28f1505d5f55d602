package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	CurrentVersion(ctx context.Context, db *gorm.DB, aggregateID string) (int64, error)
	Insert(ctx context.Context, db *gorm.DB, records []Record) error
	ListStream(ctx context.Context, db *gorm.DB, aggregateID string) ([]Record, error)
	ListAfter(ctx context.Context, db *gorm.DB, position int64, limit int) ([]Record, error)
	HeadPosition(ctx context.Context, db *gorm.DB) (int64, error)
}

type CheckpointRepository interface {
	Get(ctx context.Context, db *gorm.DB, name string) (int64, error)
	Save(ctx context.Context, db *gorm.DB, name string, position int64, now time.Time) error
	// Advance moves the checkpoint from one position to another. It returns
	// ErrCheckpointMoved when the stored position is no longer from.
	Advance(ctx context.Context, db *gorm.DB, name string, from, to int64, now time.Time) error
}
