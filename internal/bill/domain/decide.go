package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Decide validates cmd against state and returns the events it produces.
// It never mutates state. An empty result with a nil error means the
// command was already applied.
func Decide(state Bill, cmd Command, now time.Time) ([]Event, error) {
	now = now.UTC()

	switch c := cmd.(type) {
	case CreateBill:
		return decideCreate(state, c, now)

	case AttachFile:
		if err := requireStatus(state, StatusCreated); err != nil {
			return nil, err
		}
		c.Filename = strings.TrimSpace(c.Filename)
		c.ContentType = strings.TrimSpace(c.ContentType)
		if err := check(c, map[string]error{
			"BillID":      ErrInvalidBillID,
			"Filename":    ErrInvalidFile,
			"ContentType": ErrInvalidFile,
			"FileSize":    ErrInvalidFile,
			"StoragePath": ErrInvalidFile,
			"Checksum":    ErrInvalidFile,
		}); err != nil {
			return nil, err
		}
		return []Event{
			FileAttached{
				BillID:      state.ID,
				Filename:    c.Filename,
				ContentType: c.ContentType,
				FileSize:    c.FileSize,
				StoragePath: c.StoragePath,
				Checksum:    c.Checksum,
				AttachedAt:  now,
			},
			OcrRequested{
				BillID:      state.ID,
				StoragePath: c.StoragePath,
				ContentType: c.ContentType,
				RequestedAt: now,
			},
		}, nil

	case ApplyOcrResult:
		if err := requireStatus(state, StatusFileAttached); err != nil {
			return nil, err
		}
		c.ExtractedText = strings.TrimSpace(c.ExtractedText)
		if err := check(c, map[string]error{
			"BillID":           ErrInvalidBillID,
			"ExtractedText":    ErrInvalidOcrResult,
			"ExtractedTitle":   ErrInvalidOcrResult,
			"Confidence":       ErrInvalidConfidence,
			"ProcessingTimeMs": ErrInvalidOcrResult,
		}); err != nil {
			return nil, err
		}
		if c.ExtractedTotal != nil {
			if c.ExtractedTotal.IsNegative() {
				return nil, fmt.Errorf("%w: extracted total is negative", ErrInvalidOcrResult)
			}
			if err := CheckMoney(*c.ExtractedTotal); err != nil {
				return nil, fmt.Errorf("%w: extracted total has %v", ErrInvalidOcrResult, err)
			}
		}
		return []Event{OcrCompleted{
			BillID:           state.ID,
			ExtractedText:    c.ExtractedText,
			ExtractedTotal:   c.ExtractedTotal,
			ExtractedTitle:   strings.TrimSpace(c.ExtractedTitle),
			Confidence:       c.Confidence,
			ProcessingTimeMs: c.ProcessingTimeMs,
			CompletedAt:      now,
		}}, nil

	case ApproveBill:
		if err := requireStatus(state, StatusProcessed); err != nil {
			return nil, err
		}
		c.ApproverID = strings.TrimSpace(c.ApproverID)
		if err := check(c, map[string]error{
			"BillID":     ErrInvalidBillID,
			"ApproverID": ErrInvalidApprover,
			"Decision":   ErrInvalidDecision,
			"Reason":     ErrInvalidDecision,
		}); err != nil {
			return nil, err
		}
		return []Event{BillApproved{
			BillID:     state.ID,
			ApproverID: c.ApproverID,
			Decision:   c.Decision,
			Reason:     strings.TrimSpace(c.Reason),
			ApprovedAt: now,
		}}, nil
	}

	return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
}

func decideCreate(state Bill, c CreateBill, now time.Time) ([]Event, error) {
	c.ID = strings.TrimSpace(c.ID)
	c.Title = strings.TrimSpace(c.Title)
	if c.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidBillID)
	}
	// The validator counts runes; the event log keys streams by byte length.
	if len(c.ID) > MaxBillIDBytes {
		return nil, fmt.Errorf("%w: id exceeds %d bytes", ErrInvalidBillID, MaxBillIDBytes)
	}
	if err := check(c, map[string]error{
		"ID":    ErrInvalidBillID,
		"Title": ErrInvalidTitle,
	}); err != nil {
		return nil, err
	}
	if !c.Total.IsPositive() {
		return nil, fmt.Errorf("%w: total must be greater than zero", ErrInvalidTotal)
	}
	if err := CheckMoney(c.Total); err != nil {
		return nil, fmt.Errorf("%w: total has %v", ErrInvalidTotal, err)
	}
	if _, err := json.Marshal(c.Metadata); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	if state.Exists() {
		if sameCreate(state, c) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrBillAlreadyExists, c.ID)
	}

	return []Event{BillCreated{
		BillID:    c.ID,
		Title:     c.Title,
		Total:     c.Total,
		Metadata:  c.Metadata,
		CreatedAt: now,
	}}, nil
}

// sameCreate reports whether c repeats the payload that created state.
// Metadata is compared by its JSON form since stored values round-trip
// through JSON.
func sameCreate(state Bill, c CreateBill) bool {
	if state.Title != c.Title || !state.Total.Equal(c.Total) {
		return false
	}
	if len(state.Metadata) == 0 && len(c.Metadata) == 0 {
		return true
	}
	a, errA := json.Marshal(state.Metadata)
	b, errB := json.Marshal(c.Metadata)
	return errA == nil && errB == nil && string(a) == string(b)
}

// requireStatus checks that the bill exists and currently has the given status.
func requireStatus(state Bill, current Status) error {
	if !state.Exists() {
		return ErrNotFound
	}
	if state.Status.Terminal() {
		return fmt.Errorf("%w: bill is %s", ErrBillTerminal, state.Status)
	}
	if state.Status != current {
		return fmt.Errorf("%w: requires %s, bill is %s", ErrInvalidStatus, current, state.Status)
	}
	return nil
}

func check(cmd any, fields map[string]error) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	sentinel, ok := fields[fe.StructField()]
	if !ok {
		sentinel = ErrUnknownCommand
	}
	return fmt.Errorf("%w: %s failed %s", sentinel, strings.ToLower(fe.StructField()), fe.Tag())
}
