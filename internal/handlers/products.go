package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nlstn/go-datagrid/internal/etag"
	"github.com/nlstn/go-datagrid/internal/observability"
	"github.com/nlstn/go-datagrid/internal/preference"
	"github.com/nlstn/go-datagrid/internal/query"
	"github.com/nlstn/go-datagrid/internal/record"
	"github.com/nlstn/go-datagrid/internal/response"
	"github.com/nlstn/go-datagrid/internal/store"
	"github.com/nlstn/go-datagrid/internal/table"
	"github.com/nlstn/go-datagrid/internal/validation"
	"go.opentelemetry.io/otel/trace"
)

// ProductHandler serves the product grid of the requesting session.
type ProductHandler struct {
	base
	tables TableSource
}

// NewProductHandler creates a product handler resolving grids from tables.
func NewProductHandler(tables TableSource) *ProductHandler {
	return &ProductHandler{base: newBase(), tables: tables}
}

// productPage is the body of a grid read.
type productPage struct {
	query.View
	Refreshing bool `json:"refreshing"`
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

type deleteResult struct {
	Deleted int        `json:"deleted"`
	View    query.View `json:"view"`
}

type sortRequest struct {
	Field     string          `json:"field"`
	Direction query.Direction `json:"direction,omitempty"`
}

type selectRequest struct {
	ID      string `json:"id"`
	Checked bool   `json:"checked"`
	All     *bool  `json:"all"`
}

// HandleCollection handles /products.
func (h *ProductHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.serve(w, r, observability.ResourceProducts, observability.OpQuery, "", h.handleQuery)
	case http.MethodPost:
		h.serve(w, r, observability.ResourceProducts, observability.OpCreate, "", h.handleCreate)
	case http.MethodDelete:
		h.serve(w, r, observability.ResourceProducts, observability.OpDeleteMany, "", h.handleDeleteMany)
	default:
		methodNotAllowed(w, r, h.logger, "the product collection", http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

// HandleEntity handles /products/{id}.
func (h *ProductHandler) HandleEntity(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		h.serve(w, r, observability.ResourceProducts, observability.OpRead, id, func(w http.ResponseWriter, r *http.Request, _ trace.Span) error {
			return h.handleGet(w, r, id)
		})
	case http.MethodPut, http.MethodPatch:
		h.serve(w, r, observability.ResourceProducts, observability.OpUpdate, id, func(w http.ResponseWriter, r *http.Request, _ trace.Span) error {
			return h.handleUpdate(w, r, id, r.Method == http.MethodPatch)
		})
	case http.MethodDelete:
		h.serve(w, r, observability.ResourceProducts, observability.OpDelete, id, func(w http.ResponseWriter, r *http.Request, _ trace.Span) error {
			return h.handleDelete(w, r, id)
		})
	default:
		methodNotAllowed(w, r, h.logger, "a product", http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}

// HandleAction handles /products/$sort, /products/$select and
// /products/$refresh.
func (h *ProductHandler) HandleAction(w http.ResponseWriter, r *http.Request, name string) {
	var op string
	var fn operationFunc
	switch name {
	case ActionSort:
		op, fn = observability.OpSort, h.handleSort
	case ActionSelect:
		op, fn = observability.OpSelect, h.handleSelect
	case ActionRefresh:
		op, fn = observability.OpRefresh, h.handleRefresh
	default:
		WriteError(w, r, h.logger, &Error{
			StatusCode: http.StatusNotFound,
			Code:       CodeNotFound,
			Message:    "Unknown action '$" + name + "'",
		})
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, h.logger, "$"+name, http.MethodPost)
		return
	}
	h.serve(w, r, observability.ResourceProducts, op, "", fn)
}

func (h *ProductHandler) table(ctx context.Context) (*table.Table, error) {
	if h.tables == nil {
		return nil, errors.New("no table source configured")
	}
	return h.tables.Table(ctx)
}

func (h *ProductHandler) handleQuery(w http.ResponseWriter, r *http.Request, span trace.Span) error {
	tbl, err := h.table(r.Context())
	if err != nil {
		return err
	}

	var view query.View
	if values := r.URL.Query(); len(values) > 0 {
		view, err = tbl.Query(values)
		if err != nil {
			return badRequest(ErrMsgInvalidQueryOptions, "", err)
		}
	} else {
		view = tbl.View()
	}

	h.observability.Tracer().AddQueryState(span, view.Search, orderBy(view), view.Page, view.PageSize)
	span.SetAttributes(observability.ResultCountAttr(len(view.Rows)))
	h.observability.Metrics().RecordResultCount(r.Context(), observability.ResourceProducts, len(view.Rows))

	h.writeJSON(w, r, http.StatusOK, productPage{View: view, Refreshing: tbl.Refreshing()})
	return nil
}

func (h *ProductHandler) handleCreate(w http.ResponseWriter, r *http.Request, span trace.Span) error {
	var c validation.Candidate
	if err := decodeJSON(r, &c); err != nil {
		return err
	}
	tbl, err := h.table(r.Context())
	if err != nil {
		return err
	}
	created, err := tbl.Create(r.Context(), c)
	if err != nil {
		return err
	}
	span.SetAttributes(observability.RecordIDAttr(created.ID))
	h.observability.Metrics().RecordMutation(r.Context(), observability.ResourceProducts, observability.OpCreate, 1)

	w.Header().Set(HeaderLocation, response.BuildBaseURL(r)+"/products/"+url.PathEscape(created.ID))
	h.writeMutation(w, r, http.StatusCreated, created)
	return nil
}

func (h *ProductHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) error {
	tbl, err := h.table(r.Context())
	if err != nil {
		return err
	}
	p, err := tbl.Get(id)
	if err != nil {
		return notFound(id, err)
	}
	tag := etag.Generate(p)
	if !etag.NoneMatch(r.Header.Get(HeaderIfNoneMatch), tag) {
		response.WriteNotModified(w, tag)
		return nil
	}
	h.writeEntity(w, r, http.StatusOK, p, tag)
	return nil
}

func (h *ProductHandler) handleUpdate(w http.ResponseWriter, r *http.Request, id string, merge bool) error {
	tbl, err := h.table(r.Context())
	if err != nil {
		return err
	}

	var c validation.Candidate
	if merge {
		cur, err := tbl.Get(id)
		if err != nil {
			return notFound(id, err)
		}
		c = validation.FromProduct(cur)
	}
	if err := decodeJSON(r, &c); err != nil {
		return err
	}

	updated, err := tbl.Update(r.Context(), id, c, r.Header.Get(HeaderIfMatch))
	if err != nil {
		return notFound(id, err)
	}
	h.observability.Metrics().RecordMutation(r.Context(), observability.ResourceProducts, observability.OpUpdate, 1)
	h.writeMutation(w, r, http.StatusOK, updated)
	return nil
}

func (h *ProductHandler) handleDelete(w http.ResponseWriter, r *http.Request, id string) error {
	tbl, err := h.table(r.Context())
	if err != nil {
		return err
	}
	if err := tbl.Delete(r.Context(), id, r.Header.Get(HeaderIfMatch)); err != nil {
		return notFound(id, err)
	}
	h.observability.Metrics().RecordMutation(r.Context(), observability.ResourceProducts, observability.OpDelete, 1)
	response.WriteNoContent(w, "")
	return nil
}

func (h *ProductHandler) handleDeleteMany(w http.ResponseWriter, r *http.Request, span trace.Span) error {
	var req deleteRequest
	present, err := decodeOptionalJSON(r, &req)
	if err != nil {
		return err
	}
	if present && req.IDs == nil {
		return badRequest(ErrMsgInvalidRequestBody, "ids", errors.New("ids is required when a body is sent"))
	}
	tbl, err := h.table(r.Context())
	if err != nil {
		return err
	}

	var n int
	if req.IDs != nil {
		n = tbl.DeleteMany(r.Context(), req.IDs)
	} else {
		n = tbl.DeleteSelected(r.Context())
	}
	span.SetAttributes(observability.AffectedCountAttr(n))
	h.observability.Metrics().RecordMutation(r.Context(), observability.ResourceProducts, observability.OpDeleteMany, n)
	h.writeJSON(w, r, http.StatusOK, deleteResult{Deleted: n, View: tbl.View()})
	return nil
}

func (h *ProductHandler) handleSort(w http.ResponseWriter, r *http.Request, span trace.Span) error {
	var req sortRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	tbl, err := h.table(r.Context())
	if err != nil {
		return err
	}

	var view query.View
	if req.Direction != "" || req.Field == "" {
		dir := req.Direction
		if dir == "" {
			dir = query.Asc
		}
		view, err = tbl.SetOrder(req.Field, dir)
	} else {
		view, err = tbl.SetSort(req.Field)
	}
	if err != nil {
		return badRequest("Invalid sort request", "field", err)
	}
	h.observability.Tracer().AddQueryState(span, view.Search, orderBy(view), view.Page, view.PageSize)
	h.writeJSON(w, r, http.StatusOK, view)
	return nil
}

func (h *ProductHandler) handleSelect(w http.ResponseWriter, r *http.Request, _ trace.Span) error {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	tbl, err := h.table(r.Context())
	if err != nil {
		return err
	}

	if req.All != nil {
		h.writeJSON(w, r, http.StatusOK, tbl.SelectAll(*req.All))
		return nil
	}
	if req.ID == "" {
		return badRequest("Either id or all is required", "id", nil)
	}
	view, onPage := tbl.Toggle(req.ID, req.Checked)
	if !onPage {
		return badRequest("The product '"+req.ID+"' is not on the current page", "id", nil)
	}
	h.writeJSON(w, r, http.StatusOK, view)
	return nil
}

func (h *ProductHandler) handleRefresh(w http.ResponseWriter, r *http.Request, span trace.Span) error {
	tbl, err := h.table(r.Context())
	if err != nil {
		return err
	}

	// The refresh outlives a disconnected client; its result lands in the store.
	view, err := tbl.Refresh(context.WithoutCancel(r.Context()))
	outcome := refreshOutcome(err)
	span.SetAttributes(observability.RefreshOutcomeAttr(outcome))
	h.observability.Metrics().RecordRefresh(r.Context(), outcome)
	if err != nil {
		return err
	}
	w.Header().Set(HeaderRefreshStatus, outcome)
	h.writeJSON(w, r, http.StatusOK, view)
	return nil
}

// writeMutation honours Prefer: return=minimal for a written product.
func (h *ProductHandler) writeMutation(w http.ResponseWriter, r *http.Request, status int, p record.Product) {
	tag := etag.Generate(p)
	pref := preference.ParsePrefer(r)
	pref.Apply(w)
	if !pref.ShouldReturnContent() {
		response.WriteNoContent(w, tag)
		return
	}
	h.writeEntity(w, r, status, p, tag)
}

func refreshOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, table.ErrSuperseded):
		return "superseded"
	case errors.Is(err, store.ErrStaleOverwrite):
		return "stale"
	default:
		return "failed"
	}
}

// notFound attaches a readable message to a missing product.
func notFound(id string, err error) error {
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf(ErrMsgProductNotFound, id),
		Target:     "id",
		Err:        err,
	}
}

func orderBy(v query.View) string {
	if v.SortField == "" {
		return ""
	}
	return v.SortField + " " + string(v.SortDir)
}
