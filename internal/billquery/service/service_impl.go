package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	billdomain "github.com/smallbiznis/billflow/internal/bill/domain"
	"github.com/smallbiznis/billflow/internal/billquery/domain"
	"github.com/smallbiznis/billflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	waitInitialBackoff = 10 * time.Millisecond
	waitMaxBackoff     = 250 * time.Millisecond
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("billquery.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetByID(ctx context.Context, billID string) (*domain.BillView, error) {
	billID = strings.TrimSpace(billID)
	if billID == "" {
		return nil, domain.ErrInvalidID
	}
	view, err := s.repo.FindByID(ctx, s.db, billID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, domain.ErrNotFound
	}
	return view, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	filter, err := normalize(req)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.Count(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	bills, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if bills == nil {
		bills = []domain.BillView{}
	}

	return &domain.ListResponse{
		Bills:      bills,
		TotalCount: total,
		Page:       pagination.BuildPageInfo(filter.Offset, filter.Limit, total),
	}, nil
}

// WaitForVersion polls the read model until the bill reaches version or ctx
// ends. A bill that has not been projected yet is waited for as well.
func (s *Service) WaitForVersion(ctx context.Context, billID string, version int64) (*domain.BillView, error) {
	billID = strings.TrimSpace(billID)
	if billID == "" {
		return nil, domain.ErrInvalidID
	}
	if version < 0 {
		return nil, domain.ErrInvalidVersion
	}

	backoff := waitInitialBackoff
	for {
		current, found, err := s.repo.FindVersion(ctx, s.db, billID)
		if err != nil {
			return nil, err
		}
		if found && current >= version {
			return s.GetByID(ctx, billID)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			if !found {
				return nil, fmt.Errorf("%w: %v", domain.ErrNotFound, ctx.Err())
			}
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, waitMaxBackoff)
	}
}

func normalize(req domain.ListRequest) (domain.Filter, error) {
	offset, limit, err := req.Pagination.Normalize()
	if err != nil {
		return domain.Filter{}, err
	}

	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status != "" && !billdomain.Status(status).Valid() {
		return domain.Filter{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, req.Status)
	}

	sortBy := strings.ToLower(strings.TrimSpace(req.SortBy))
	switch sortBy {
	case "":
		sortBy = domain.SortCreatedAt
	case domain.SortCreatedAt, domain.SortUpdatedAt, domain.SortTotal, domain.SortTitle:
	default:
		return domain.Filter{}, fmt.Errorf("%w: %q", domain.ErrInvalidSort, req.SortBy)
	}

	if req.MinTotal != nil && req.MaxTotal != nil && req.MinTotal.GreaterThan(*req.MaxTotal) {
		return domain.Filter{}, fmt.Errorf("%w: min_total above max_total", domain.ErrInvalidRange)
	}
	if req.CreatedFrom != nil && req.CreatedTo != nil && req.CreatedFrom.After(*req.CreatedTo) {
		return domain.Filter{}, fmt.Errorf("%w: created_from after created_to", domain.ErrInvalidRange)
	}

	return domain.Filter{
		Status:        status,
		TitleContains: strings.TrimSpace(req.TitleContains),
		MinTotal:      req.MinTotal,
		MaxTotal:      req.MaxTotal,
		CreatedFrom:   req.CreatedFrom,
		CreatedTo:     req.CreatedTo,
		SortBy:        sortBy,
		Descending:    req.Descending,
		Offset:        offset,
		Limit:         limit,
	}, nil
}
