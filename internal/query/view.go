// Package query derives the visible slice of the grid from the record store
// and the per-session query state: search filter, stable sort, pagination and
// page-scoped row selection.
package query

import (
	"sort"
	"strings"

	"github.com/nlstn/go-datagrid/internal/record"
)

// View is the derived, presentation-ready result of a query.
type View struct {
	Rows        []record.Product `json:"rows"`
	Total       int              `json:"total"`
	Page        int              `json:"page"`
	PageSize    int              `json:"pageSize"`
	TotalPages  int              `json:"totalPages"`
	Search      string           `json:"search"`
	SortField   string           `json:"sortField,omitempty"`
	SortDir     Direction        `json:"sortDirection"`
	Selected    []string         `json:"selected"`
	AllSelected bool             `json:"allSelected"`
}

// IDs returns the ids of the rows on the page, in display order.
func (v View) IDs() []string {
	out := make([]string, 0, len(v.Rows))
	for _, p := range v.Rows {
		out = append(out, p.ID)
	}
	return out
}

// Matches reports whether p contains term, case-insensitively, in its name,
// category or id. The empty term matches every record.
func Matches(p record.Product, term string) bool {
	if term == "" {
		return true
	}
	needle := strings.ToLower(term)
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Category), needle) ||
		strings.Contains(strings.ToLower(p.ID), needle)
}

// Filter returns the records matching term in their original order.
func Filter(records []record.Product, term string) []record.Product {
	if term == "" {
		return append([]record.Product(nil), records...)
	}
	filtered := make([]record.Product, 0, len(records))
	for _, p := range records {
		if Matches(p, term) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// Sort orders records in place by field. Records comparing equal keep their
// relative order. An empty field leaves the order untouched.
func Sort(records []record.Product, field string, dir Direction) {
	if field == "" || len(records) < 2 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		cmp := record.Compare(records[i], records[j], field)
		if dir == Desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

// TotalPages returns ceil(total/pageSize).
func TotalPages(total, pageSize int) int {
	if pageSize < 1 || total == 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Paginate returns records[(page-1)*pageSize : page*pageSize], clipped to bounds.
func Paginate(records []record.Product, page, pageSize int) []record.Product {
	if pageSize < 1 || page < 1 {
		return []record.Product{}
	}
	start := (page - 1) * pageSize
	if start >= len(records) {
		return []record.Product{}
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}

// Derive computes the view for records under s without modifying s.
func Derive(records []record.Product, s *State) View {
	sorted := Filter(records, s.Search)
	Sort(sorted, s.SortField, s.SortDir)
	rows := Paginate(sorted, s.Page, s.PageSize)

	v := View{
		Rows:       rows,
		Total:      len(sorted),
		Page:       s.Page,
		PageSize:   s.PageSize,
		TotalPages: TotalPages(len(sorted), s.PageSize),
		Search:     s.Search,
		SortField:  s.SortField,
		SortDir:    s.SortDir,
	}

	pageIDs := v.IDs()
	v.Selected = make([]string, 0, len(s.selected))
	for _, id := range pageIDs {
		if s.IsSelected(id) {
			v.Selected = append(v.Selected, id)
		}
	}
	v.AllSelected = len(pageIDs) > 0 && len(v.Selected) == len(pageIDs)
	return v
}

// Apply recomputes the view for records, first clamping the page to the
// available range and then pruning the selection to the visible rows.
func (s *State) Apply(records []record.Product) View {
	v := Derive(records, s)
	if clamped := clampPage(s.Page, v.TotalPages); clamped != s.Page {
		s.Page = clamped
		v = Derive(records, s)
	}
	s.Prune(v.IDs())
	return v
}
