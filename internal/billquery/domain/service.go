package domain

import (
	"context"
	"errors"
)

// Service reads projected bills. It never consults the event log, so a bill
// that exists but is not projected yet is reported as not found.
type Service interface {
	GetByID(ctx context.Context, billID string) (*BillView, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	WaitForVersion(ctx context.Context, billID string, version int64) (*BillView, error)
}

var (
	ErrNotFound       = errors.New("bill_not_found")
	ErrInvalidID      = errors.New("invalid_bill_id")
	ErrInvalidStatus  = errors.New("invalid_status")
	ErrInvalidSort    = errors.New("invalid_sort")
	ErrInvalidRange   = errors.New("invalid_range")
	ErrInvalidVersion = errors.New("invalid_version")
)
