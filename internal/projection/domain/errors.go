package domain

import "fmt"

const ConsumerName = "projection.bills"

const (
	ReasonDecode        = "decode"
	ReasonUnknownEvent  = "unknown_event"
	ReasonMissingRow    = "missing_row"
	ReasonOutOfOrder    = "out_of_order"
	ReasonInvalidAmount = "invalid_amount"
)

// HandlerError marks a failure caused by the event itself. The event is
// skipped and projection continues with the next one.
type HandlerError struct {
	Reason string
	Err    error
}

func (e *HandlerError) Error() string {
	if e.Err == nil {
		return "projection handler: " + e.Reason
	}
	return fmt.Sprintf("projection handler: %s: %v", e.Reason, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

func Skip(reason string, err error) error {
	return &HandlerError{Reason: reason, Err: err}
}
