package domain

import (
	"time"

	"github.com/shopspring/decimal"
	projectiondomain "github.com/smallbiznis/billflow/internal/projection/domain"
	"github.com/smallbiznis/billflow/pkg/db/pagination"
)

type BillView = projectiondomain.BillView
type BillFile = projectiondomain.BillFile

const (
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
	SortTotal     = "total"
	SortTitle     = "title"
)

type ListRequest struct {
	Status        string
	TitleContains string
	MinTotal      *decimal.Decimal
	MaxTotal      *decimal.Decimal
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	SortBy        string
	Descending    bool
	pagination.Pagination
}

type ListResponse struct {
	Bills      []BillView          `json:"bills"`
	TotalCount int64               `json:"total_count"`
	Page       pagination.PageInfo `json:"page"`
}

// Filter is a normalised ListRequest ready for the repository.
type Filter struct {
	Status        string
	TitleContains string
	MinTotal      *decimal.Decimal
	MaxTotal      *decimal.Decimal
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	SortBy        string
	Descending    bool
	Offset        int
	Limit         int
}
