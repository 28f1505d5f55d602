package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/billflow/internal/eventlog/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CurrentVersion(ctx context.Context, db *gorm.DB, aggregateID string) (int64, error) {
	var version int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(sequence), 0) FROM bill_events WHERE aggregate_id = ?`,
		aggregateID,
	).Scan(&version).Error
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&records).Error
}

func (r *repo) ListStream(ctx context.Context, db *gorm.DB, aggregateID string) ([]domain.Record, error) {
	var records []domain.Record
	err := db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("sequence asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) ListAfter(ctx context.Context, db *gorm.DB, position int64, limit int) ([]domain.Record, error) {
	var records []domain.Record
	err := db.WithContext(ctx).
		Where("global_position > ?", position).
		Order("global_position asc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) HeadPosition(ctx context.Context, db *gorm.DB) (int64, error) {
	var head int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(global_position), 0) FROM bill_events`,
	).Scan(&head).Error
	return head, err
}

type checkpointRepo struct{}

func ProvideCheckpoints() domain.CheckpointRepository {
	return &checkpointRepo{}
}

func (r *checkpointRepo) Get(ctx context.Context, db *gorm.DB, name string) (int64, error) {
	var rows []domain.Checkpoint
	err := db.WithContext(ctx).
		Where("name = ?", name).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Position, nil
}

func (r *checkpointRepo) Save(ctx context.Context, db *gorm.DB, name string, position int64, now time.Time) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"position", "updated_at"}),
	}).Create(&domain.Checkpoint{
		Name:      name,
		Position:  position,
		UpdatedAt: now,
	}).Error
}

func (r *checkpointRepo) Advance(ctx context.Context, db *gorm.DB, name string, from, to int64, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Checkpoint{}).
		Where("name = ? AND position = ?", name, from).
		Updates(map[string]any{"position": to, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if from != 0 {
		return domain.ErrCheckpointMoved
	}

	// A consumer that never saved starts from zero without a row.
	res = db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.Checkpoint{
		Name:      name,
		Position:  to,
		UpdatedAt: now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrCheckpointMoved
	}
	return nil
}
