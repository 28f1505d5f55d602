package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/billflow/internal/billquery/domain"
	projectiondomain "github.com/smallbiznis/billflow/internal/projection/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, billID string) (*domain.BillView, error) {
	var view domain.BillView
	err := db.WithContext(ctx).
		Preload("Files", func(tx *gorm.DB) *gorm.DB { return tx.Order("event_sequence asc") }).
		Where("bill_id = ?", billID).
		First(&view).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &view, nil
}

func (r *repo) FindVersion(ctx context.Context, db *gorm.DB, billID string) (int64, bool, error) {
	var versions []int64
	err := db.WithContext(ctx).
		Model(&domain.BillView{}).
		Where("bill_id = ?", billID).
		Limit(1).
		Pluck("version", &versions).Error
	if err != nil {
		return 0, false, err
	}
	if len(versions) == 0 {
		return 0, false, nil
	}
	return versions[0], true, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.Filter) ([]domain.BillView, error) {
	direction := "asc"
	if filter.Descending {
		direction = "desc"
	}

	sortBy := filter.SortBy
	if sortBy == domain.SortTotal {
		sortBy = projectiondomain.AmountExpr(db, sortBy)
	}

	var views []domain.BillView
	err := applyFilter(db.WithContext(ctx).Model(&domain.BillView{}), filter).
		Preload("Files", func(tx *gorm.DB) *gorm.DB { return tx.Order("event_sequence asc") }).
		Order(sortBy + " " + direction).
		Order("bill_id " + direction).
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&views).Error
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, filter domain.Filter) (int64, error) {
	var total int64
	err := applyFilter(db.WithContext(ctx).Model(&domain.BillView{}), filter).Count(&total).Error
	return total, err
}

func applyFilter(q *gorm.DB, f domain.Filter) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.TitleContains != "" {
		q = q.Where("LOWER(title) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(f.TitleContains))+"%")
	}
	total, arg := projectiondomain.AmountExpr(q, "total"), projectiondomain.AmountExpr(q, "?")
	if f.MinTotal != nil {
		q = q.Where(total+" >= "+arg, f.MinTotal.String())
	}
	if f.MaxTotal != nil {
		q = q.Where(total+" <= "+arg, f.MaxTotal.String())
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at < ?", *f.CreatedTo)
	}
	return q
}

func escapeLike(s string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(s)
}
