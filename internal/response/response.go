// Package response writes the grid service's JSON bodies and error envelopes.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ContentTypeJSON is the content type of every body the service writes.
const ContentTypeJSON = "application/json; charset=utf-8"

// ErrorDetail is one additional error, typically a rejected field.
type ErrorDetail struct {
	Target  string `json:"target,omitempty"`
	Message string `json:"message"`
}

// Error is the error object of an error response.
type Error struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Target  string        `json:"target,omitempty"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// errorEnvelope wraps Error as {"error": {...}}.
type errorEnvelope struct {
	Error *Error `json:"error"`
}

// WriteJSON writes v as the JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}

// WriteEntity writes a single record, setting the ETag header when etag is
// non-empty.
func WriteEntity(w http.ResponseWriter, status int, v any, etag string) error {
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	return WriteJSON(w, status, v)
}

// WriteNoContent writes an empty 204 response, keeping the ETag when given.
func WriteNoContent(w http.ResponseWriter, etag string) {
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	w.WriteHeader(http.StatusNoContent)
}

// WriteNotModified writes a 304 response for a matching If-None-Match.
func WriteNotModified(w http.ResponseWriter, etag string) {
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusNotModified)
}

// WriteError writes an error envelope. An empty code defaults to the status
// code.
func WriteError(w http.ResponseWriter, status int, e *Error) error {
	if e == nil {
		e = &Error{}
	}
	if e.Code == "" {
		e.Code = strconv.Itoa(status)
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return WriteJSON(w, status, errorEnvelope{Error: e})
}

// BuildBaseURL builds the base URL for the service from the request,
// honouring X-Forwarded-Proto.
func BuildBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	host := r.Host
	if host == "" {
		host = "localhost:8080"
	}
	return scheme + "://" + host
}
