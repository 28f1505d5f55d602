package domain

import "errors"

var (
	ErrInvalidBillID     = errors.New("invalid_bill_id")
	ErrInvalidTitle      = errors.New("invalid_title")
	ErrInvalidTotal      = errors.New("invalid_total")
	ErrInvalidMetadata   = errors.New("invalid_metadata")
	ErrInvalidFile       = errors.New("invalid_file")
	ErrInvalidOcrResult  = errors.New("invalid_ocr_result")
	ErrInvalidConfidence = errors.New("invalid_confidence")
	ErrInvalidApprover   = errors.New("invalid_approver")
	ErrInvalidDecision   = errors.New("invalid_decision")
	ErrInvalidStatus     = errors.New("invalid_status_transition")
	ErrBillTerminal      = errors.New("bill_terminal")
	ErrBillAlreadyExists = errors.New("bill_already_exists")
	ErrUnknownCommand    = errors.New("unknown_command")

	ErrNotFound = errors.New("bill_not_found")
	ErrConflict = errors.New("bill_conflict")

	ErrUnknownEvent  = errors.New("unknown_event")
	ErrCorruptStream = errors.New("corrupt_stream")
)

var validationErrors = []error{
	ErrInvalidBillID,
	ErrInvalidTitle,
	ErrInvalidTotal,
	ErrInvalidMetadata,
	ErrInvalidFile,
	ErrInvalidOcrResult,
	ErrInvalidConfidence,
	ErrInvalidApprover,
	ErrInvalidDecision,
	ErrInvalidStatus,
	ErrBillTerminal,
	ErrBillAlreadyExists,
	ErrUnknownCommand,
}

// IsValidationError reports whether err rejects a command on its payload or
// on the bill's current state. Such errors are never retried.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ValidationCode returns the code of the validation sentinel err wraps, or ""
// when err is not a validation error.
func ValidationCode(err error) string {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return ""
}
