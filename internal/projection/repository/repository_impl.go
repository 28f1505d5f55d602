package repository

import (
	"context"

	"github.com/smallbiznis/billflow/internal/projection/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertView(ctx context.Context, db *gorm.DB, view *domain.BillView) (bool, error) {
	res := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bill_id"}},
			DoNothing: true,
		}).
		Create(view)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateView(ctx context.Context, db *gorm.DB, billID string, seq, position int64, fields map[string]any) (int64, error) {
	updates := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")
	updates["last_position"] = position

	res := db.WithContext(ctx).
		Model(&domain.BillView{}).
		Where("bill_id = ? AND version = ?", billID, seq-1).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) ViewVersion(ctx context.Context, db *gorm.DB, billID string) (int64, bool, error) {
	var rows []domain.BillView
	err := db.WithContext(ctx).
		Select("bill_id", "version").
		Where("bill_id = ?", billID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Version, true, nil
}

func (r *repo) InsertFile(ctx context.Context, db *gorm.DB, file *domain.BillFile) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bill_id"}, {Name: "event_sequence"}},
			DoNothing: true,
		}).
		Create(file).Error
}

func (r *repo) Truncate(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	if err := tx.Delete(&domain.BillFile{}).Error; err != nil {
		return err
	}
	return tx.Delete(&domain.BillView{}).Error
}
