package domain

import (
	"fmt"
	"maps"
)

// Apply folds one event into state and returns the new state. The input is
// not modified. Events that do not follow the lifecycle are rejected with
// ErrCorruptStream.
func Apply(state Bill, env Envelope) (Bill, error) {
	if env.Sequence != state.Version+1 {
		return state, fmt.Errorf("%w: sequence %d after version %d", ErrCorruptStream, env.Sequence, state.Version)
	}

	next := state
	switch ev := env.Event.(type) {
	case BillCreated:
		if state.Exists() {
			return state, fmt.Errorf("%w: %s on existing bill", ErrCorruptStream, ev.EventType())
		}
		next.ID = ev.BillID
		next.Title = ev.Title
		next.Total = ev.Total
		next.Metadata = maps.Clone(ev.Metadata)
		next.Status = StatusCreated
		next.CreatedAt = ev.CreatedAt
		next.UpdatedAt = ev.CreatedAt

	case FileAttached:
		if err := advance(&next, StatusFileAttached, ev); err != nil {
			return state, err
		}
		next.File = &FileAttachment{
			Filename:    ev.Filename,
			ContentType: ev.ContentType,
			FileSize:    ev.FileSize,
			StoragePath: ev.StoragePath,
			Checksum:    ev.Checksum,
			AttachedAt:  ev.AttachedAt,
		}
		next.UpdatedAt = ev.AttachedAt

	case OcrRequested:
		if !state.Exists() || state.Status != StatusFileAttached || state.OcrRequestedAt != nil {
			return state, fmt.Errorf("%w: %s in status %q", ErrCorruptStream, ev.EventType(), state.Status)
		}
		requestedAt := ev.RequestedAt
		next.OcrRequestedAt = &requestedAt
		next.UpdatedAt = requestedAt

	case OcrCompleted:
		if err := advance(&next, StatusProcessed, ev); err != nil {
			return state, err
		}
		next.Ocr = &OcrResult{
			ExtractedText:    ev.ExtractedText,
			ExtractedTotal:   ev.ExtractedTotal,
			ExtractedTitle:   ev.ExtractedTitle,
			Confidence:       ev.Confidence,
			ProcessingTimeMs: ev.ProcessingTimeMs,
			CompletedAt:      ev.CompletedAt,
		}
		next.UpdatedAt = ev.CompletedAt

	case BillApproved:
		if !ev.Decision.Valid() {
			return state, fmt.Errorf("%w: decision %q", ErrCorruptStream, ev.Decision)
		}
		if err := advance(&next, ev.Decision.Status(), ev); err != nil {
			return state, err
		}
		next.Approval = &Approval{
			ApproverID: ev.ApproverID,
			Decision:   ev.Decision,
			Reason:     ev.Reason,
			ApprovedAt: ev.ApprovedAt,
		}
		next.UpdatedAt = ev.ApprovedAt

	default:
		return state, fmt.Errorf("%w: %T", ErrUnknownEvent, env.Event)
	}

	next.Version = env.Sequence
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = env.RecordedAt
	}
	return next, nil
}

func advance(b *Bill, to Status, ev Event) error {
	if !b.Exists() || !b.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s from %q", ErrCorruptStream, ev.EventType(), b.Status)
	}
	b.Status = to
	return nil
}

// Replay rebuilds a bill from its stream. It performs no I/O; the same
// envelopes always produce the same state.
func Replay(envs []Envelope) (Bill, error) {
	var state Bill
	for _, env := range envs {
		next, err := Apply(state, env)
		if err != nil {
			return Bill{}, err
		}
		state = next
	}
	return state, nil
}
