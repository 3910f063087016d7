package query

import (
	"errors"
	"fmt"

	"github.com/nlstn/go-datagrid/internal/record"
)

// DefaultPageSize is the number of rows per page for a fresh state.
const DefaultPageSize = 10

var (
	// ErrUnknownField is returned when sorting by a field that does not exist.
	ErrUnknownField = errors.New("unknown sort field")
	// ErrInvalidPageSize is returned for page sizes below one.
	ErrInvalidPageSize = errors.New("page size must be positive")
	// ErrInvalidDirection is returned for sort directions other than asc/desc.
	ErrInvalidDirection = errors.New("sort direction must be asc or desc")
)

// Direction is a sort direction.
type Direction string

const (
	// Asc sorts ascending.
	Asc Direction = "asc"
	// Desc sorts descending.
	Desc Direction = "desc"
)

// State is the transient per-session query state driving the derived view.
// Selection is page-scoped: it is pruned to the ids on the current page
// every time the view is recomputed.
type State struct {
	Search    string
	SortField string
	SortDir   Direction
	Page      int
	PageSize  int
	selected  []string
}

// NewState returns the initial state: no search, unsorted, first page of
// DefaultPageSize rows, nothing selected.
func NewState() *State {
	return &State{SortDir: Asc, Page: 1, PageSize: DefaultPageSize}
}

// Reset restores the initial state but keeps the page size.
func (s *State) Reset() {
	s.Search = ""
	s.SortField = ""
	s.SortDir = Asc
	s.Page = 1
	s.selected = nil
}

// SetSearch changes the search term. A changed term returns to page 1.
func (s *State) SetSearch(term string) {
	if term == s.Search {
		return
	}
	s.Search = term
	s.Page = 1
}

// SetSort applies header-click semantics: the current field flips direction,
// a new field sorts ascending.
func (s *State) SetSort(field string) error {
	if !record.IsField(field) {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if s.SortField == field {
		if s.SortDir == Asc {
			s.SortDir = Desc
		} else {
			s.SortDir = Asc
		}
		return nil
	}
	s.SortField = field
	s.SortDir = Asc
	return nil
}

// SetOrder sets the sort field and direction explicitly. An empty field
// clears sorting.
func (s *State) SetOrder(field string, dir Direction) error {
	if field == "" {
		s.ClearSort()
		return nil
	}
	if !record.IsField(field) {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if dir != Asc && dir != Desc {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
	s.SortField = field
	s.SortDir = dir
	return nil
}

// ClearSort restores the store order.
func (s *State) ClearSort() {
	s.SortField = ""
	s.SortDir = Asc
}

// SetPage moves to page n, clamped to [1, max(1, totalPages)].
func (s *State) SetPage(n, totalPages int) {
	s.Page = clampPage(n, totalPages)
}

// SetPageSize changes the number of rows per page and returns to page 1.
func (s *State) SetPageSize(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, n)
	}
	if n != s.PageSize {
		s.PageSize = n
		s.Page = 1
	}
	return nil
}

// Selected returns a copy of the selected ids in selection order.
func (s *State) Selected() []string {
	return append([]string(nil), s.selected...)
}

// IsSelected reports whether id is selected.
func (s *State) IsSelected(id string) bool {
	for _, sel := range s.selected {
		if sel == id {
			return true
		}
	}
	return false
}

// Toggle selects or deselects one row. Ids that are not on the current page
// are ignored and false is returned.
func (s *State) Toggle(id string, checked bool, pageIDs []string) bool {
	if !contains(pageIDs, id) {
		return false
	}
	if checked {
		if !s.IsSelected(id) {
			s.selected = append(s.selected, id)
		}
		return true
	}
	kept := s.selected[:0]
	for _, sel := range s.selected {
		if sel != id {
			kept = append(kept, sel)
		}
	}
	s.selected = kept
	return true
}

// SelectAll selects every row on the current page, or clears the selection.
func (s *State) SelectAll(checked bool, pageIDs []string) {
	if !checked {
		s.selected = nil
		return
	}
	s.selected = append([]string(nil), pageIDs...)
}

// Prune drops selected ids that are not on the current page.
func (s *State) Prune(pageIDs []string) {
	if len(s.selected) == 0 {
		return
	}
	kept := make([]string, 0, len(s.selected))
	for _, sel := range s.selected {
		if contains(pageIDs, sel) {
			kept = append(kept, sel)
		}
	}
	s.selected = kept
}

func clampPage(n, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if n < 1 {
		return 1
	}
	if n > totalPages {
		return totalPages
	}
	return n
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
