package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billdomain "github.com/smallbiznis/billflow/internal/bill/domain"
	billservice "github.com/smallbiznis/billflow/internal/bill/service"
	billquerydomain "github.com/smallbiznis/billflow/internal/billquery/domain"
	"github.com/smallbiznis/billflow/pkg/db/pagination"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrProjectionLagging  = errors.New("projection_lagging")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(err, code),
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, billdomain.ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "bill was modified concurrently, retry the request",
		}
	case errors.Is(err, ErrProjectionLagging):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "projection_lagging",
			Message: "read model has not caught up yet",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, billservice.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	case billdomain.IsValidationError(err),
		isQueryValidationError(err):
		return true
	default:
		return false
	}
}

func isQueryValidationError(err error) bool {
	switch {
	case errors.Is(err, billquerydomain.ErrInvalidID),
		errors.Is(err, billquerydomain.ErrInvalidStatus),
		errors.Is(err, billquerydomain.ErrInvalidSort),
		errors.Is(err, billquerydomain.ErrInvalidRange),
		errors.Is(err, billquerydomain.ErrInvalidVersion):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, billdomain.ErrNotFound),
		errors.Is(err, billquerydomain.ErrNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, target := range []error{
		ErrInvalidRequest,
		pagination.ErrInvalidPageToken,
		billquerydomain.ErrInvalidID,
		billquerydomain.ErrInvalidStatus,
		billquerydomain.ErrInvalidSort,
		billquerydomain.ErrInvalidRange,
		billquerydomain.ErrInvalidVersion,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return billdomain.ValidationCode(err)
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "invalid_status_transition", "bill_terminal":
		return "status"
	case "bill_already_exists":
		return "id"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(err error, code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	}
	if msg := err.Error(); strings.HasPrefix(msg, code+": ") {
		return strings.TrimPrefix(msg, code+": ")
	}
	return "invalid value"
}

// classifyErrorForLog returns the error type and code recorded on request logs.
func classifyErrorForLog(err error) (string, string) {
	if errors.Is(err, context.Canceled) {
		return "canceled", "context_canceled"
	}
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}
