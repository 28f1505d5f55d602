package domain

import (
	"time"

	"gorm.io/datatypes"
)

// BillView is the read model row for one bill. Version equals the sequence
// of the last event applied to the row.
type BillView struct {
	BillID   string            `gorm:"column:bill_id;type:varchar(36);primaryKey" json:"bill_id"`
	Title    string            `gorm:"column:title;type:varchar(255);not null;index:idx_bill_views_title" json:"title"`
	Total    Amount            `gorm:"column:total;not null;index:idx_bill_views_total" json:"total"`
	Metadata datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	Status   string            `gorm:"column:status;type:varchar(32);not null;index:idx_bill_views_status" json:"status"`

	Filename        string     `gorm:"column:filename;type:varchar(255)" json:"filename,omitempty"`
	FileContentType string     `gorm:"column:file_content_type;type:varchar(127)" json:"file_content_type,omitempty"`
	FileSize        int64      `gorm:"column:file_size" json:"file_size,omitempty"`
	StoragePath     string     `gorm:"column:storage_path;type:varchar(1024)" json:"storage_path,omitempty"`
	Checksum        string     `gorm:"column:checksum;type:varchar(128)" json:"checksum,omitempty"`
	AttachedAt      *time.Time `gorm:"column:attached_at" json:"attached_at,omitempty"`

	OcrRequestedAt   *time.Time `gorm:"column:ocr_requested_at" json:"ocr_requested_at,omitempty"`
	ExtractedText    string     `gorm:"column:extracted_text;type:text" json:"extracted_text,omitempty"`
	ExtractedTotal   NullAmount `gorm:"column:extracted_total" json:"extracted_total"`
	ExtractedTitle   string     `gorm:"column:extracted_title;type:varchar(255)" json:"extracted_title,omitempty"`
	Confidence       *float64   `gorm:"column:confidence" json:"confidence,omitempty"`
	ProcessingTimeMs *int64     `gorm:"column:processing_time_ms" json:"processing_time_ms,omitempty"`
	OcrCompletedAt   *time.Time `gorm:"column:ocr_completed_at" json:"ocr_completed_at,omitempty"`

	ApproverID string     `gorm:"column:approver_id;type:varchar(64)" json:"approver_id,omitempty"`
	Decision   string     `gorm:"column:decision;type:varchar(16)" json:"decision,omitempty"`
	Reason     string     `gorm:"column:reason;type:text" json:"reason,omitempty"`
	ApprovedAt *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`

	Version      int64     `gorm:"column:version;not null" json:"version"`
	LastPosition int64     `gorm:"column:last_position;not null" json:"last_position"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;autoCreateTime:false;index:idx_bill_views_created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false;index:idx_bill_views_updated_at" json:"updated_at"`

	Files []BillFile `gorm:"foreignKey:BillID;references:BillID" json:"files,omitempty"`
}

func (BillView) TableName() string { return "bill_views" }

// BillFile is one attachment. EventSequence identifies the FileAttached
// event that produced it so redelivery never duplicates the row.
type BillFile struct {
	ID            string    `gorm:"column:id;type:varchar(32);primaryKey" json:"id"`
	BillID        string    `gorm:"column:bill_id;type:varchar(36);not null;uniqueIndex:ux_bill_files_event,priority:1" json:"bill_id"`
	EventSequence int64     `gorm:"column:event_sequence;not null;uniqueIndex:ux_bill_files_event,priority:2" json:"event_sequence"`
	Filename      string    `gorm:"column:filename;type:varchar(255);not null" json:"filename"`
	ContentType   string    `gorm:"column:content_type;type:varchar(127);not null" json:"content_type"`
	FileSize      int64     `gorm:"column:file_size;not null" json:"file_size"`
	StoragePath   string    `gorm:"column:storage_path;type:varchar(1024)" json:"storage_path"`
	Checksum      string    `gorm:"column:checksum;type:varchar(128)" json:"checksum"`
	AttachedAt    time.Time `gorm:"column:attached_at;not null" json:"attached_at"`
}

func (BillFile) TableName() string { return "bill_files" }

// Status describes how far a consumer trails the log.
type Status struct {
	Consumer   string    `json:"consumer"`
	Checkpoint int64     `json:"checkpoint"`
	Head       int64     `json:"head"`
	Lag        int64     `json:"lag"`
	Leader     bool      `json:"leader"`
	CheckedAt  time.Time `json:"checked_at"`
}
