package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nlstn/go-datagrid/internal/calendar"
	"github.com/nlstn/go-datagrid/internal/observability"
	"github.com/nlstn/go-datagrid/internal/response"
	"go.opentelemetry.io/otel/trace"
)

const monthLayout = "2006-01"

// EventHandler serves the calendar.
type EventHandler struct {
	base
	manager *calendar.Manager
}

// NewEventHandler creates an event handler over manager.
func NewEventHandler(manager *calendar.Manager) *EventHandler {
	return &EventHandler{base: newBase(), manager: manager}
}

type eventList struct {
	Events []calendar.Event `json:"events"`
	Count  int              `json:"count"`
}

// HandleCollection handles /events.
func (h *EventHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.serve(w, r, observability.ResourceEvents, observability.OpQuery, "", h.handleList)
	case http.MethodPost:
		h.serve(w, r, observability.ResourceEvents, observability.OpCreate, "", h.handleAdd)
	default:
		methodNotAllowed(w, r, h.logger, "the event collection", http.MethodGet, http.MethodPost)
	}
}

// HandleEntity handles /events/{id}.
func (h *EventHandler) HandleEntity(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		h.serve(w, r, observability.ResourceEvents, observability.OpRead, id, func(w http.ResponseWriter, r *http.Request, _ trace.Span) error {
			ev, err := h.manager.Get(id)
			if err != nil {
				return eventNotFound(id, err)
			}
			h.writeJSON(w, r, http.StatusOK, ev)
			return nil
		})
	case http.MethodDelete:
		h.serve(w, r, observability.ResourceEvents, observability.OpDelete, id, func(w http.ResponseWriter, r *http.Request, _ trace.Span) error {
			if err := h.manager.Delete(r.Context(), id); err != nil {
				return eventNotFound(id, err)
			}
			h.observability.Metrics().RecordMutation(r.Context(), observability.ResourceEvents, observability.OpDelete, 1)
			response.WriteNoContent(w, "")
			return nil
		})
	default:
		methodNotAllowed(w, r, h.logger, "an event", http.MethodGet, http.MethodDelete)
	}
}

func (h *EventHandler) handleList(w http.ResponseWriter, r *http.Request, span trace.Span) error {
	values := r.URL.Query()
	var events []calendar.Event
	switch {
	case values.Has("date"):
		day, err := time.Parse(calendar.DayLayout, values.Get("date"))
		if err != nil {
			return badRequest(ErrDetailInvalidDateFormat, "date", err)
		}
		events = h.manager.OnDate(day)
	case values.Has("month"):
		month, err := time.Parse(monthLayout, values.Get("month"))
		if err != nil {
			return badRequest(ErrDetailInvalidMonthFormat, "month", err)
		}
		events = h.manager.InMonth(month.Year(), month.Month())
	default:
		events = h.manager.All()
	}

	span.SetAttributes(observability.ResultCountAttr(len(events)))
	h.observability.Metrics().RecordResultCount(r.Context(), observability.ResourceEvents, len(events))
	h.writeJSON(w, r, http.StatusOK, eventList{Events: events, Count: len(events)})
	return nil
}

func (h *EventHandler) handleAdd(w http.ResponseWriter, r *http.Request, span trace.Span) error {
	var d calendar.Draft
	if err := decodeJSON(r, &d); err != nil {
		return err
	}
	ev, err := h.manager.Add(r.Context(), d)
	if err != nil {
		return err
	}
	span.SetAttributes(observability.RecordIDAttr(ev.ID))
	h.observability.Metrics().RecordMutation(r.Context(), observability.ResourceEvents, observability.OpCreate, 1)

	w.Header().Set(HeaderLocation, response.BuildBaseURL(r)+"/events/"+url.PathEscape(ev.ID))
	h.writeJSON(w, r, http.StatusCreated, ev)
	return nil
}

func eventNotFound(id string, err error) error {
	if !errors.Is(err, calendar.ErrNotFound) {
		return err
	}
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf(ErrMsgEventNotFound, id),
		Target:     "id",
		Err:        err,
	}
}
