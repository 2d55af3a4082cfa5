package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error codes of the ERM error taxonomy.
const (
	CodeUnknownType       = "unknown_type"
	CodeValidation        = "validation_error"
	CodeInvalidIdentifier = "invalid_identifier"
	CodeNotFound          = "not_found"
	CodeSourceNotFound    = "source_not_found"
	CodeTargetNotFound    = "target_not_found"
	CodeStale             = "stale"
	CodeForbidden         = "forbidden"
	CodeInvalidDepth      = "invalid_depth"
	CodeGraphUnavailable  = "graph_unavailable"
	CodeNotConfigured     = "not_configured"

	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal_error"
	CodeDatabase     = "database_error"
)

// envelopeKinds maps taxonomy codes to the kind reported in the error envelope.
var envelopeKinds = map[string]string{
	CodeUnknownType:       "validation_error",
	CodeValidation:        "validation_error",
	CodeInvalidIdentifier: "bad_request",
	CodeInvalidDepth:      "bad_request",
	CodeBadRequest:        "bad_request",
	CodeNotFound:          "not_found",
	CodeSourceNotFound:    "not_found",
	CodeTargetNotFound:    "not_found",
	CodeStale:             "version_conflict",
	CodeForbidden:         "forbidden",
	CodeUnauthorized:      "unauthorized",
	CodeGraphUnavailable:  "graph_unavailable",
	CodeNotConfigured:     "internal_server_error",
	CodeInternal:          "internal_server_error",
	CodeDatabase:          "internal_server_error",
}

// Error represents an application error with HTTP status and error code
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
	Details    map[string]any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error
func (e *Error) Unwrap() error {
	return e.Internal
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, apperror.ErrStale) matches copies made by WithMessage etc.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Kind returns the envelope kind for the error code.
func (e *Error) Kind() string {
	if k, ok := envelopeKinds[e.Code]; ok {
		return k
	}
	return "internal_server_error"
}

// Envelope renders the error body clients receive.
func (e *Error) Envelope() map[string]any {
	body := map[string]any{
		"error":   e.Kind(),
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return body
}

// ToEchoError converts the app error to an echo.HTTPError for proper handling
func (e *Error) ToEchoError() *echo.HTTPError {
	return echo.NewHTTPError(e.HTTPStatus, e.Envelope())
}

// WithInternal returns a copy of the error with an internal error attached
func (e *Error) WithInternal(err error) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Internal:   err,
		Details:    e.Details,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    message,
		Internal:   e.Internal,
		Details:    e.Details,
	}
}

// WithDetails returns a copy of the error with details attached
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Internal:   e.Internal,
		Details:    details,
	}
}

// New creates a new application error
func New(status int, code, message string) *Error {
	return &Error{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
	}
}

var (
	// Authentication / authorization
	ErrUnauthorized = New(http.StatusUnauthorized, CodeUnauthorized, "Authentication required")
	ErrForbidden    = New(http.StatusForbidden, CodeForbidden, "Access denied")

	// Resources
	ErrNotFound       = New(http.StatusNotFound, CodeNotFound, "Resource not found")
	ErrSourceNotFound = New(http.StatusNotFound, CodeSourceNotFound, "Source entity not found")
	ErrTargetNotFound = New(http.StatusNotFound, CodeTargetNotFound, "Target entity not found")

	// Input
	ErrBadRequest        = New(http.StatusBadRequest, CodeBadRequest, "Invalid request")
	ErrUnknownType       = New(http.StatusUnprocessableEntity, CodeUnknownType, "Unknown type")
	ErrValidation        = New(http.StatusUnprocessableEntity, CodeValidation, "Validation failed")
	ErrInvalidIdentifier = New(http.StatusBadRequest, CodeInvalidIdentifier, "Invalid identifier")
	ErrInvalidDepth      = New(http.StatusBadRequest, CodeInvalidDepth, "Invalid traversal depth")

	// Concurrency
	ErrStale = New(http.StatusConflict, CodeStale, "Schema version is stale, reload and retry")

	// Stores
	ErrGraphUnavailable = New(http.StatusServiceUnavailable, CodeGraphUnavailable, "Graph store unavailable")
	ErrNotConfigured    = New(http.StatusNotImplemented, CodeNotConfigured, "Store adapter not configured")
	ErrInternal         = New(http.StatusInternalServerError, CodeInternal, "An internal error occurred")
	ErrDatabase         = New(http.StatusInternalServerError, CodeDatabase, "Database operation failed")
)

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given taxonomy code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// ToHTTPError converts an app error to an HTTP-friendly format
func ToHTTPError(err error) (int, map[string]any) {
	if appErr, ok := As(err); ok {
		return appErr.HTTPStatus, appErr.Envelope()
	}

	return http.StatusInternalServerError, map[string]any{
		"error":   "internal_server_error",
		"code":    CodeInternal,
		"message": "An internal error occurred",
	}
}

// NewBadRequest creates a bad request error with a custom message
func NewBadRequest(message string) *Error {
	return ErrBadRequest.WithMessage(message)
}

// NewNotFound creates a not found error for a resource type and ID
func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

// NewInternal creates an internal error with a message and optional wrapped error
func NewInternal(message string, err error) *Error {
	return &Error{
		HTTPStatus: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    message,
		Internal:   err,
	}
}

// NewForbidden creates a forbidden error with a custom message
func NewForbidden(message string) *Error {
	return ErrForbidden.WithMessage(message)
}

// NewGraphUnavailable wraps a graph store failure.
func NewGraphUnavailable(err error) *Error {
	return ErrGraphUnavailable.WithInternal(err)
}
