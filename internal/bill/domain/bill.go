package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill is the state folded from one bill's event stream. It is never stored.
type Bill struct {
	ID             string
	Title          string
	Total          decimal.Decimal
	Metadata       map[string]any
	Status         Status
	File           *FileAttachment
	OcrRequestedAt *time.Time
	Ocr            *OcrResult
	Approval       *Approval
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type FileAttachment struct {
	Filename    string
	ContentType string
	FileSize    int64
	StoragePath string
	Checksum    string
	AttachedAt  time.Time
}

type OcrResult struct {
	ExtractedText    string
	ExtractedTotal   *decimal.Decimal
	ExtractedTitle   string
	Confidence       float64
	ProcessingTimeMs int64
	CompletedAt      time.Time
}

type Approval struct {
	ApproverID string
	Decision   Decision
	Reason     string
	ApprovedAt time.Time
}

// Exists reports whether a BillCreated event has been applied.
func (b Bill) Exists() bool {
	return b.Version > 0
}
