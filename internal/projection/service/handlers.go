package service

import (
	"context"
	"errors"
	"fmt"

	billdomain "github.com/smallbiznis/billflow/internal/bill/domain"
	eventlogdomain "github.com/smallbiznis/billflow/internal/eventlog/domain"
	"github.com/smallbiznis/billflow/internal/projection/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func (e *Engine) handle(ctx context.Context, tx *gorm.DB, rec eventlogdomain.Record) error {
	ev, err := billdomain.DecodeEvent(rec.EventType, rec.Payload)
	if err != nil {
		return domain.Skip(decodeReason(err), err)
	}

	switch ev := ev.(type) {
	case billdomain.BillCreated:
		return e.onCreated(ctx, tx, rec, ev)

	case billdomain.FileAttached:
		attachedAt := ev.AttachedAt
		applied, err := e.update(ctx, tx, rec, map[string]any{
			"status":            string(billdomain.StatusFileAttached),
			"filename":          ev.Filename,
			"file_content_type": ev.ContentType,
			"file_size":         ev.FileSize,
			"storage_path":      ev.StoragePath,
			"checksum":          ev.Checksum,
			"attached_at":       &attachedAt,
			"updated_at":        ev.AttachedAt,
		})
		if err != nil || !applied {
			return err
		}
		return e.repo.InsertFile(ctx, tx, &domain.BillFile{
			ID:            e.genID.Generate().String(),
			BillID:        rec.AggregateID,
			EventSequence: rec.Sequence,
			Filename:      ev.Filename,
			ContentType:   ev.ContentType,
			FileSize:      ev.FileSize,
			StoragePath:   ev.StoragePath,
			Checksum:      ev.Checksum,
			AttachedAt:    ev.AttachedAt,
		})

	case billdomain.OcrRequested:
		requestedAt := ev.RequestedAt
		_, err := e.update(ctx, tx, rec, map[string]any{
			"ocr_requested_at": &requestedAt,
			"updated_at":       ev.RequestedAt,
		})
		return err

	case billdomain.OcrCompleted:
		if ev.ExtractedTotal != nil {
			if err := billdomain.CheckMoney(*ev.ExtractedTotal); err != nil {
				return domain.Skip(domain.ReasonInvalidAmount, err)
			}
		}
		confidence := ev.Confidence
		processing := ev.ProcessingTimeMs
		completedAt := ev.CompletedAt
		_, err := e.update(ctx, tx, rec, map[string]any{
			"status":             string(billdomain.StatusProcessed),
			"extracted_text":     ev.ExtractedText,
			"extracted_total":    domain.NewNullAmount(ev.ExtractedTotal),
			"extracted_title":    ev.ExtractedTitle,
			"confidence":         &confidence,
			"processing_time_ms": &processing,
			"ocr_completed_at":   &completedAt,
			"updated_at":         ev.CompletedAt,
		})
		return err

	case billdomain.BillApproved:
		approvedAt := ev.ApprovedAt
		_, err := e.update(ctx, tx, rec, map[string]any{
			"status":      string(ev.Decision.Status()),
			"approver_id": ev.ApproverID,
			"decision":    string(ev.Decision),
			"reason":      ev.Reason,
			"approved_at": &approvedAt,
			"updated_at":  ev.ApprovedAt,
		})
		return err
	}

	return domain.Skip(domain.ReasonUnknownEvent, fmt.Errorf("no handler for %T", ev))
}

func (e *Engine) onCreated(ctx context.Context, tx *gorm.DB, rec eventlogdomain.Record, ev billdomain.BillCreated) error {
	if rec.Sequence != 1 {
		return domain.Skip(domain.ReasonOutOfOrder, fmt.Errorf("BillCreated at sequence %d", rec.Sequence))
	}
	if err := billdomain.CheckMoney(ev.Total); err != nil {
		return domain.Skip(domain.ReasonInvalidAmount, err)
	}
	var metadata datatypes.JSONMap
	if len(ev.Metadata) > 0 {
		metadata = datatypes.JSONMap(ev.Metadata)
	}
	_, err := e.repo.InsertView(ctx, tx, &domain.BillView{
		BillID:       rec.AggregateID,
		Title:        ev.Title,
		Total:        domain.NewAmount(ev.Total),
		Metadata:     metadata,
		Status:       string(billdomain.StatusCreated),
		Version:      rec.Sequence,
		LastPosition: rec.GlobalPosition,
		CreatedAt:    ev.CreatedAt,
		UpdatedAt:    ev.CreatedAt,
	})
	// An existing row means the event was applied before.
	return err
}

// update applies fields if the row is exactly one version behind rec. It
// reports false without error when the event was already applied.
func (e *Engine) update(ctx context.Context, tx *gorm.DB, rec eventlogdomain.Record, fields map[string]any) (bool, error) {
	n, err := e.repo.UpdateView(ctx, tx, rec.AggregateID, rec.Sequence, rec.GlobalPosition, fields)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	version, found, err := e.repo.ViewVersion(ctx, tx, rec.AggregateID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, domain.Skip(domain.ReasonMissingRow, fmt.Errorf("no row for bill %s", rec.AggregateID))
	}
	if version >= rec.Sequence {
		return false, nil
	}
	return false, domain.Skip(domain.ReasonOutOfOrder, fmt.Errorf("row at version %d, event sequence %d", version, rec.Sequence))
}

func decodeReason(err error) string {
	if errors.Is(err, billdomain.ErrUnknownEvent) {
		return domain.ReasonUnknownEvent
	}
	return domain.ReasonDecode
}
