package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type billIDKey struct{}
type commandKey struct{}

// WithRequestID stores the request identifier used to correlate logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithBillID stores the bill the current operation targets.
func WithBillID(ctx context.Context, billID string) context.Context {
	billID = strings.TrimSpace(billID)
	if billID == "" {
		return ctx
	}
	return context.WithValue(ctx, billIDKey{}, billID)
}

func BillIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(billIDKey{}).(string)
	return value
}

// WithCommand stores the command type being dispatched.
func WithCommand(ctx context.Context, command string) context.Context {
	if command == "" {
		return ctx
	}
	return context.WithValue(ctx, commandKey{}, command)
}

func CommandFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(commandKey{}).(string)
	return value
}
