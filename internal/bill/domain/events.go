package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventBillCreated  = "BillCreated"
	EventFileAttached = "FileAttached"
	EventOcrRequested = "OcrRequested"
	EventOcrCompleted = "OcrCompleted"
	EventBillApproved = "BillApproved"
)

// Event is the closed set of facts recorded for a bill.
type Event interface {
	EventType() string
	isEvent()
}

type BillCreated struct {
	BillID    string          `json:"bill_id"`
	Title     string          `json:"title"`
	Total     decimal.Decimal `json:"total"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type FileAttached struct {
	BillID      string    `json:"bill_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	FileSize    int64     `json:"file_size"`
	StoragePath string    `json:"storage_path"`
	Checksum    string    `json:"checksum"`
	AttachedAt  time.Time `json:"attached_at"`
}

type OcrRequested struct {
	BillID      string    `json:"bill_id"`
	StoragePath string    `json:"storage_path"`
	ContentType string    `json:"content_type"`
	RequestedAt time.Time `json:"requested_at"`
}

type OcrCompleted struct {
	BillID           string           `json:"bill_id"`
	ExtractedText    string           `json:"extracted_text"`
	ExtractedTotal   *decimal.Decimal `json:"extracted_total,omitempty"`
	ExtractedTitle   string           `json:"extracted_title,omitempty"`
	Confidence       float64          `json:"confidence"`
	ProcessingTimeMs int64            `json:"processing_time_ms"`
	CompletedAt      time.Time        `json:"completed_at"`
}

type BillApproved struct {
	BillID     string    `json:"bill_id"`
	ApproverID string    `json:"approver_id"`
	Decision   Decision  `json:"decision"`
	Reason     string    `json:"reason,omitempty"`
	ApprovedAt time.Time `json:"approved_at"`
}

func (BillCreated) EventType() string  { return EventBillCreated }
func (FileAttached) EventType() string { return EventFileAttached }
func (OcrRequested) EventType() string { return EventOcrRequested }
func (OcrCompleted) EventType() string { return EventOcrCompleted }
func (BillApproved) EventType() string { return EventBillApproved }

func (BillCreated) isEvent()  {}
func (FileAttached) isEvent() {}
func (OcrRequested) isEvent() {}
func (OcrCompleted) isEvent() {}
func (BillApproved) isEvent() {}

// Envelope is an event positioned in its stream.
type Envelope struct {
	Sequence   int64
	RecordedAt time.Time
	Event      Event
}
