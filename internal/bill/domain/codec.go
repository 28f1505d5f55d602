package domain

import (
	"encoding/json"
	"fmt"
)

// EncodeEvent returns the stored type name and JSON payload for ev.
// Decimal amounts are written as strings.
func EncodeEvent(ev Event) (string, []byte, error) {
	switch ev.(type) {
	case BillCreated, FileAttached, OcrRequested, OcrCompleted, BillApproved:
	default:
		return "", nil, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	return ev.EventType(), payload, nil
}

// DecodeEvent parses a stored payload back into its event type.
func DecodeEvent(eventType string, payload []byte) (Event, error) {
	switch eventType {
	case EventBillCreated:
		return decode[BillCreated](eventType, payload)
	case EventFileAttached:
		return decode[FileAttached](eventType, payload)
	case EventOcrRequested:
		return decode[OcrRequested](eventType, payload)
	case EventOcrCompleted:
		return decode[OcrCompleted](eventType, payload)
	case EventBillApproved:
		return decode[BillApproved](eventType, payload)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, eventType)
}

func decode[T Event](eventType string, payload []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return ev, nil
}
