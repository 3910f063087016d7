package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// OrderByItem is one parsed orderby clause.
type OrderByItem struct {
	Property   string
	Descending bool
}

// ParseOrderBy parses an orderby clause such as "price desc". Only a single
// property is supported since the grid sorts by one column at a time.
func ParseOrderBy(orderBy string) (*OrderByItem, error) {
	trimmed := strings.TrimSpace(orderBy)
	if trimmed == "" {
		return nil, nil
	}
	if strings.Contains(trimmed, ",") {
		return nil, fmt.Errorf("orderby accepts a single property, got '%s'", trimmed)
	}

	tokens := strings.Fields(trimmed)
	if len(tokens) > 2 {
		return nil, fmt.Errorf("invalid orderby clause '%s'", trimmed)
	}
	item := &OrderByItem{Property: tokens[0]}
	if len(tokens) > 1 {
		direction := strings.ToLower(tokens[1])
		if direction == "desc" {
			item.Descending = true
		} else if direction != "asc" {
			return nil, fmt.Errorf("invalid direction '%s', expected 'asc' or 'desc'", tokens[1])
		}
	}
	return item, nil
}

// ParseValues applies the query parameters present in values to s. Absent
// parameters leave the state untouched. Recognized parameters: search,
// orderby, pageSize and page. The page is applied last, without clamping;
// Apply clamps it against the filtered result.
func ParseValues(values url.Values, s *State) error {
	if values.Has("search") {
		s.SetSearch(values.Get("search"))
	}

	if values.Has("orderby") {
		item, err := ParseOrderBy(values.Get("orderby"))
		if err != nil {
			return err
		}
		if item == nil {
			s.ClearSort()
		} else {
			dir := Asc
			if item.Descending {
				dir = Desc
			}
			if err := s.SetOrder(item.Property, dir); err != nil {
				return err
			}
		}
	}

	if values.Has("pageSize") {
		n, err := strconv.Atoi(strings.TrimSpace(values.Get("pageSize")))
		if err != nil {
			return fmt.Errorf("invalid pageSize: %w", err)
		}
		if err := s.SetPageSize(n); err != nil {
			return err
		}
	}

	if values.Has("page") {
		n, err := strconv.Atoi(strings.TrimSpace(values.Get("page")))
		if err != nil {
			return fmt.Errorf("invalid page: %w", err)
		}
		if n < 1 {
			n = 1
		}
		s.Page = n
	}

	return nil
}
