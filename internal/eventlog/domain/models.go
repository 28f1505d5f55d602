package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Record is one persisted domain event. Rows are insert-only.
type Record struct {
	GlobalPosition int64          `gorm:"column:global_position;primaryKey;autoIncrement" json:"global_position"`
	EventID        string         `gorm:"column:event_id;type:varchar(26);not null;uniqueIndex:ux_bill_events_event_id" json:"event_id"`
	AggregateType  string         `gorm:"column:aggregate_type;type:varchar(32);not null" json:"aggregate_type"`
	AggregateID    string         `gorm:"column:aggregate_id;type:varchar(36);not null;uniqueIndex:ux_bill_events_stream,priority:1" json:"aggregate_id"`
	Sequence       int64          `gorm:"column:sequence;not null;uniqueIndex:ux_bill_events_stream,priority:2" json:"sequence"`
	EventType      string         `gorm:"column:event_type;type:varchar(64);not null" json:"event_type"`
	Payload        datatypes.JSON `gorm:"column:payload;not null" json:"payload"`
	RecordedAt     time.Time      `gorm:"column:recorded_at;not null" json:"recorded_at"`
}

func (Record) TableName() string { return "bill_events" }

// NewEvent is an event submitted for append; the log assigns identity and order.
type NewEvent struct {
	Type       string
	Payload    []byte
	RecordedAt time.Time
}

// AppendResult describes a committed append.
type AppendResult struct {
	Version int64
	Records []Record
}

// Checkpoint is the last global position a named consumer has processed.
type Checkpoint struct {
	Name      string    `gorm:"column:name;type:varchar(64);primaryKey"`
	Position  int64     `gorm:"column:position;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Checkpoint) TableName() string { return "event_checkpoints" }
