package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nlstn/go-datagrid/internal/auth"
	"github.com/nlstn/go-datagrid/internal/calendar"
	"github.com/nlstn/go-datagrid/internal/query"
	"github.com/nlstn/go-datagrid/internal/response"
	"github.com/nlstn/go-datagrid/internal/store"
	"github.com/nlstn/go-datagrid/internal/table"
	"github.com/nlstn/go-datagrid/internal/validation"
)

var (
	// ErrBadRequest indicates a malformed request body or query.
	ErrBadRequest = errors.New("bad request")
	// ErrConflict indicates the request conflicts with the current state.
	ErrConflict = errors.New("conflict")
	// ErrMethodNotAllowed indicates the route does not support the method.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// Error is an error carrying the exact HTTP response to produce. Handlers,
// and callers embedding the service, return it when a sentinel mapping is not
// precise enough.
type Error struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int
	// Code is the machine-readable error code. Defaults to the status code.
	Code string
	// Message is a human-readable description.
	Message string
	// Target optionally names the field or parameter at fault.
	Target  string
	Details []response.ErrorDetail
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is() and errors.As().
func (e *Error) Unwrap() error {
	return e.Err
}

// badRequest wraps err as a 400 with the given message.
func badRequest(message, target string, err error) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       CodeBadRequest,
		Message:    message,
		Target:     target,
		Err:        err,
	}
}

// StatusForError returns the HTTP status for err.
func StatusForError(err error) int {
	status, _ := classify(err)
	return status
}

func classify(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	var httpErr *Error
	if errors.As(err, &httpErr) {
		code := httpErr.Code
		if code == "" {
			code = fmt.Sprint(httpErr.StatusCode)
		}
		return httpErr.StatusCode, code
	}

	switch {
	case errors.Is(err, validation.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, query.ErrUnknownField),
		errors.Is(err, query.ErrInvalidPageSize),
		errors.Is(err, query.ErrInvalidDirection):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeInvalidCredentials
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, store.ErrNotFound), errors.Is(err, calendar.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, CodeMethodNotAllowed
	case errors.Is(err, store.ErrStaleOverwrite):
		return http.StatusConflict, CodeStaleOverwrite
	case errors.Is(err, table.ErrSuperseded):
		return http.StatusConflict, CodeSuperseded
	case errors.Is(err, ErrConflict), errors.Is(err, store.ErrDuplicateID):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, table.ErrPreconditionFailed):
		return http.StatusPreconditionFailed, CodePreconditionFailed
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeInternal
	}
	return http.StatusInternalServerError, CodeInternal
}

// errorBody builds the envelope for err. Internal errors never leak their
// text to the client.
func errorBody(status int, code string, err error) *response.Error {
	body := &response.Error{Code: code, Message: err.Error()}

	var httpErr *Error
	if errors.As(err, &httpErr) {
		body.Message = httpErr.Message
		body.Target = httpErr.Target
		body.Details = httpErr.Details
	}

	var fields validation.FieldErrors
	if errors.As(err, &fields) {
		body.Message = ErrMsgValidationFailed
		for _, f := range fields {
			body.Details = append(body.Details, response.ErrorDetail{Target: f.Field, Message: f.Message})
		}
		if len(fields) == 1 {
			body.Target = fields[0].Field
		}
	}

	switch code {
	case CodePreconditionFailed:
		body.Message = ErrMsgPreconditionFailed
	case CodeStaleOverwrite:
		body.Message = ErrMsgStaleOverwrite
	case CodeSuperseded:
		body.Message = ErrMsgSuperseded
	}
	if status >= http.StatusInternalServerError && httpErr == nil {
		body.Message = ErrMsgInternalError
	}
	return body
}

// WriteError writes the error envelope for err and logs server-side failures.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := classify(err)
	if logger == nil {
		logger = slog.Default()
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	if writeErr := response.WriteError(w, status, errorBody(status, code, err)); writeErr != nil {
		logger.Error("Error writing error response", "error", writeErr)
	}
}

// methodNotAllowed writes a 405 listing the allowed methods.
func methodNotAllowed(w http.ResponseWriter, r *http.Request, logger *slog.Logger, resource string, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add(HeaderAllow, m)
	}
	WriteError(w, r, logger, &Error{
		StatusCode: http.StatusMethodNotAllowed,
		Code:       CodeMethodNotAllowed,
		Message:    ErrMsgMethodNotAllowed,
		Err:        fmt.Errorf(ErrDetailUnsupportedMethod, r.Method, resource),
	})
}
