package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes surfaced to callers.
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeVersionConflict    = "VERSION_CONFLICT"
	CodeAmbiguousSemantic  = "AMBIGUOUS_SEMANTIC_VALUE"
	CodeUnknownSemantic    = "UNKNOWN_SEMANTIC_VALUE"
	CodeStoreFailure       = "STORE_FAILURE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeRequestTimeout     = "REQUEST_TIMEOUT"
	CodeInvalidField       = "INVALID_FIELD"
	CodeUnknownField       = "UNKNOWN_FIELD"
	CodeIllegalTransition  = "ILLEGAL_TRANSITION"
	CodeResolutionRequired = "RESOLUTION_REQUIRED"
	CodeTooLong            = "TOO_LONG"
	CodeReferenceNotFound  = "REFERENCE_NOT_FOUND"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// FieldError identifies one rejected field of a write request.
type FieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FieldErrors collects rejections keyed by field name.
type FieldErrors map[string]FieldError

// Add records a rejection; the first rejection of a field wins.
func (f FieldErrors) Add(field, code, message string) {
	if _, exists := f[field]; exists {
		return
	}
	f[field] = FieldError{Code: code, Message: message}
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

// NewFieldValidationError reports every rejected field individually.
func NewFieldValidationError(message string, fields FieldErrors) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, map[string]any{"fields": fields})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewVersionConflict reports that another writer advanced the ticket first.
func NewVersionConflict(ticketID int64, expected, current int) error {
	return NewDomainError(CodeVersionConflict, "ticket was modified concurrently", http.StatusConflict, map[string]any{
		"ticket_id":        ticketID,
		"expected_version": expected,
		"current_version":  current,
	})
}

// NewSemanticError reports an ambiguous or unmapped semantic term.
func NewSemanticError(code, message string, details map[string]any) error {
	return NewDomainError(code, message, http.StatusUnprocessableEntity, details)
}

// NewStoreFailure wraps an unexpected store error. Details carry the
// offending column or constraint when the driver reports one, never the
// statement text.
func NewStoreFailure(err error) error {
	details := map[string]any{}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		details["sqlstate"] = pgErr.Code
		if pgErr.ColumnName != "" {
			details["column"] = pgErr.ColumnName
		}
		if pgErr.ConstraintName != "" {
			details["constraint"] = pgErr.ConstraintName
		}
		if pgErr.TableName != "" {
			details["table"] = pgErr.TableName
		}
		if pgErr.Detail != "" {
			details["detail"] = pgErr.Detail
		}
	}
	return &DomainError{
		Code:       CodeStoreFailure,
		Message:    "store operation failed",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    details,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &DomainError{
			Code:       CodeRequestTimeout,
			Message:    "request timed out",
			HTTPStatus: http.StatusGatewayTimeout,
			Err:        err,
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return NewStoreFailure(err).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// HasCode reports whether err carries the given DomainError code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
