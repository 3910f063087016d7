package handlers

import (
	"net/http"

	"github.com/nlstn/go-datagrid/internal/dashboard"
	"github.com/nlstn/go-datagrid/internal/notify"
	"github.com/nlstn/go-datagrid/internal/observability"
	"go.opentelemetry.io/otel/trace"
)

// DashboardHandler serves the dashboard metrics with an inventory summary of
// the requesting session's products.
type DashboardHandler struct {
	base
	tables TableSource
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(tables TableSource) *DashboardHandler {
	return &DashboardHandler{base: newBase(), tables: tables}
}

// HandleCollection handles /dashboard.
func (h *DashboardHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, h.logger, "the dashboard", http.MethodGet)
		return
	}
	h.serve(w, r, observability.ResourceDashboard, observability.OpRead, "", func(w http.ResponseWriter, r *http.Request, _ trace.Span) error {
		tbl, err := h.tables.Table(r.Context())
		if err != nil {
			return err
		}
		h.writeJSON(w, r, http.StatusOK, dashboard.Build(tbl.Records()))
		return nil
	})
}

// HandleEntity rejects /dashboard/{anything}.
func (h *DashboardHandler) HandleEntity(w http.ResponseWriter, r *http.Request, _ string) {
	WriteError(w, r, h.logger, &Error{StatusCode: http.StatusNotFound, Code: CodeNotFound, Message: "Not found"})
}

// NotificationHandler serves the notification history.
type NotificationHandler struct {
	base
	history *notify.Log
}

// NewNotificationHandler creates a handler reading from log.
func NewNotificationHandler(log *notify.Log) *NotificationHandler {
	return &NotificationHandler{base: newBase(), history: log}
}

type notificationList struct {
	Notifications []notify.Event `json:"notifications"`
	Token         string         `json:"token"`
}

// HandleCollection handles /notifications?token=. The response carries the
// token for the next poll in the body and in X-Notification-Token.
func (h *NotificationHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, h.logger, "notifications", http.MethodGet)
		return
	}
	h.serve(w, r, observability.ResourceNotifications, observability.OpQuery, "", func(w http.ResponseWriter, r *http.Request, span trace.Span) error {
		events, next, err := h.history.Since(r.URL.Query().Get("token"))
		if err != nil {
			return badRequest("Invalid notification token", "token", err)
		}
		if events == nil {
			events = []notify.Event{}
		}
		span.SetAttributes(observability.ResultCountAttr(len(events)))
		w.Header().Set(HeaderNotifyToken, next)
		h.writeJSON(w, r, http.StatusOK, notificationList{Notifications: events, Token: next})
		return nil
	})
}

// HandleEntity rejects /notifications/{anything}.
func (h *NotificationHandler) HandleEntity(w http.ResponseWriter, r *http.Request, _ string) {
	WriteError(w, r, h.logger, &Error{StatusCode: http.StatusNotFound, Code: CodeNotFound, Message: "Not found"})
}
