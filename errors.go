package datagrid

import (
	"errors"

	"github.com/nlstn/go-datagrid/internal/auth"
	"github.com/nlstn/go-datagrid/internal/calendar"
	"github.com/nlstn/go-datagrid/internal/handlers"
	"github.com/nlstn/go-datagrid/internal/query"
	"github.com/nlstn/go-datagrid/internal/store"
	"github.com/nlstn/go-datagrid/internal/table"
	"github.com/nlstn/go-datagrid/internal/validation"
)

// Sentinel errors returned by the service and its components.
// These can be used with errors.Is() for error handling.
var (
	// ErrNotFound indicates the requested product does not exist.
	// Maps to HTTP 404 Not Found.
	ErrNotFound = store.ErrNotFound

	// ErrEventNotFound indicates the requested calendar event does not exist.
	// Maps to HTTP 404 Not Found.
	ErrEventNotFound = calendar.ErrNotFound

	// ErrValidation indicates a candidate record failed validation.
	// Maps to HTTP 400 Bad Request.
	ErrValidation = validation.ErrValidation

	// ErrBadRequest indicates a malformed request body or query option.
	// Maps to HTTP 400 Bad Request.
	ErrBadRequest = handlers.ErrBadRequest

	// ErrUnknownField indicates a sort or query referenced a field that does not exist.
	ErrUnknownField = query.ErrUnknownField

	// ErrUnauthorized indicates the request carries no usable session.
	// Maps to HTTP 401 Unauthorized.
	ErrUnauthorized = auth.ErrUnauthenticated

	// ErrInvalidCredentials indicates a failed login.
	// Maps to HTTP 401 Unauthorized.
	ErrInvalidCredentials = auth.ErrInvalidCredentials

	// ErrConflict indicates a conflict with the current state.
	// Maps to HTTP 409 Conflict.
	ErrConflict = handlers.ErrConflict

	// ErrDuplicateID indicates an insert collided with an existing id.
	// Maps to HTTP 409 Conflict.
	ErrDuplicateID = store.ErrDuplicateID

	// ErrStaleOverwrite indicates a refresh result lost against a newer edit.
	// Maps to HTTP 409 Conflict.
	ErrStaleOverwrite = store.ErrStaleOverwrite

	// ErrSuperseded indicates a refresh was replaced by a newer one.
	// Maps to HTTP 409 Conflict.
	ErrSuperseded = table.ErrSuperseded

	// ErrRefreshFailed indicates the loader returned records the grid could
	// not hold, such as duplicate ids.
	// Maps to HTTP 500 Internal Server Error.
	ErrRefreshFailed = table.ErrRefreshFailed

	// ErrPreconditionFailed indicates an If-Match check failed.
	// Maps to HTTP 412 Precondition Failed.
	ErrPreconditionFailed = table.ErrPreconditionFailed
)

// Error is an error with an explicit HTTP status and error envelope.
// Return one from a custom loader to control the response a refresh produces.
type Error = handlers.Error

// MapErrorToHTTPStatus maps an error to the HTTP status the service answers with.
// Unrecognised errors map to 500 Internal Server Error.
func MapErrorToHTTPStatus(err error) int {
	return handlers.StatusForError(err)
}

// IsNotFound reports whether err means a product or event does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrEventNotFound)
}

// IsValidation reports whether err carries field validation failures.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// FieldErrors extracts per-field validation messages from err.
// It returns nil when err carries none.
func FieldErrors(err error) map[string]string {
	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		return fe.Map()
	}
	return nil
}
