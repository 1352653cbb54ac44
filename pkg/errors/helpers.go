package errors

import (
	"context"
	"errors"
)

// CheckContext returns an error if the context is canceled or timed out.
// This provides a standardized way to check and wrap context errors.
func CheckContext(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		code := Canceled
		if errors.Is(err, context.DeadlineExceeded) {
			code = Timeout
		}
		return Wrap(err, code, operation+" canceled")
	}
	return nil
}

// Code extracts the error code from an error, or Unknown if it does not
// carry one.
func Code(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return Unknown
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code() == code
	}
	return false
}
