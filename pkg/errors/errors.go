package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound   = errors.New("resource not found")
	ErrBadRequest = errors.New("bad request")
	ErrInternal   = errors.New("internal server error")
	ErrValidation = errors.New("validation error")

	// Analysis error taxonomy. Every check-level failure inside a pipeline is
	// converted into one of these at its own boundary; only ErrIO on the
	// primary input is allowed to abort a whole pipeline.
	ErrIO          = errors.New("file unreadable")
	ErrParse       = errors.New("malformed document")
	ErrModel       = errors.New("external predictor failure")
	ErrSignature   = errors.New("signature validation failure")
	ErrAggregation = errors.New("fusion input malformed")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Analysis taxonomy constructors. These wrap check-level failures so callers
// can test the category with errors.Is while keeping the original cause.

func IO(err error, message string) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, message, err)
}

func Parse(err error, message string) error {
	return fmt.Errorf("%w: %s: %w", ErrParse, message, err)
}

func Model(err error, message string) error {
	return fmt.Errorf("%w: %s: %w", ErrModel, message, err)
}

func Signature(err error, message string) error {
	return fmt.Errorf("%w: %s: %w", ErrSignature, message, err)
}

func Aggregation(message string) error {
	return fmt.Errorf("%w: %s", ErrAggregation, message)
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
