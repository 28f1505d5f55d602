package domain

import (
	"github.com/shopspring/decimal"
)

// MaxBillIDBytes bounds a bill id in bytes, the unit the event log keys
// streams by.
const MaxBillIDBytes = 36

// Command is the closed set of requests a bill accepts.
type Command interface {
	TargetID() string
	CommandName() string
	isCommand()
}

type CreateBill struct {
	ID       string          `validate:"omitempty,max=36"`
	Title    string          `validate:"required,max=255"`
	Total    decimal.Decimal `validate:"-"`
	Metadata map[string]any  `validate:"-"`
}

type AttachFile struct {
	BillID      string `validate:"required,max=36"`
	Filename    string `validate:"required,max=255"`
	ContentType string `validate:"required,max=127"`
	FileSize    int64  `validate:"gt=0"`
	StoragePath string `validate:"max=1024"`
	Checksum    string `validate:"max=128"`
}

type ApplyOcrResult struct {
	BillID           string           `validate:"required,max=36"`
	ExtractedText    string           `validate:"required"`
	ExtractedTotal   *decimal.Decimal `validate:"-"`
	ExtractedTitle   string           `validate:"max=255"`
	Confidence       float64          `validate:"gte=0,lte=1"`
	ProcessingTimeMs int64            `validate:"gte=0"`
}

type ApproveBill struct {
	BillID     string   `validate:"required,max=36"`
	ApproverID string   `validate:"required,max=64"`
	Decision   Decision `validate:"required,oneof=APPROVED REJECTED"`
	Reason     string   `validate:"max=1024"`
}

func (c CreateBill) TargetID() string     { return c.ID }
func (c AttachFile) TargetID() string     { return c.BillID }
func (c ApplyOcrResult) TargetID() string { return c.BillID }
func (c ApproveBill) TargetID() string    { return c.BillID }

func (CreateBill) CommandName() string     { return "CreateBill" }
func (AttachFile) CommandName() string     { return "AttachFile" }
func (ApplyOcrResult) CommandName() string { return "ApplyOcrResult" }
func (ApproveBill) CommandName() string    { return "ApproveBill" }

func (CreateBill) isCommand()     {}
func (AttachFile) isCommand()     {}
func (ApplyOcrResult) isCommand() {}
func (ApproveBill) isCommand()    {}
