// Package record defines the product record managed by the data grid and the
// fixed vocabularies (categories, statuses) its fields are drawn from.
package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// IDPrefix is prepended to the sequence number of every generated record id.
const IDPrefix = "PRD-"

// IDBase is the first sequence number handed out by the store.
const IDBase = 1000

// Status represents whether a product is listed.
type Status string

const (
	// StatusActive marks a product as listed.
	StatusActive Status = "active"
	// StatusInactive marks a product as delisted.
	StatusInactive Status = "inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Categories is the fixed set of categories a product may belong to, in display order.
var Categories = []string{
	"Electronics",
	"Clothing",
	"Books",
	"Home & Kitchen",
	"Toys",
	"Sports",
	"Beauty",
}

// IsCategory reports whether name is one of Categories.
func IsCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Product is a single row of the data grid.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Stock    int64           `json:"stock"`
	Status   Status          `json:"status"`
}

// Field names usable for sorting and search.
const (
	FieldID       = "id"
	FieldName     = "name"
	FieldCategory = "category"
	FieldPrice    = "price"
	FieldStock    = "stock"
	FieldStatus   = "status"
)

// Fields lists every sortable field key.
var Fields = []string{FieldID, FieldName, FieldCategory, FieldPrice, FieldStock, FieldStatus}

// IsField reports whether name is a sortable field key.
func IsField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Compare orders a and b by the named field. Strings compare lexicographically,
// price and stock numerically. Unknown fields compare equal.
func Compare(a, b Product, field string) int {
	switch field {
	case FieldID:
		return strings.Compare(a.ID, b.ID)
	case FieldName:
		return strings.Compare(a.Name, b.Name)
	case FieldCategory:
		return strings.Compare(a.Category, b.Category)
	case FieldStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case FieldPrice:
		return a.Price.Cmp(b.Price)
	case FieldStock:
		switch {
		case a.Stock < b.Stock:
			return -1
		case a.Stock > b.Stock:
			return 1
		}
		return 0
	}
	return 0
}

// FormatID renders a sequence number as a record id.
func FormatID(n int) string {
	return IDPrefix + strconv.Itoa(n)
}

// ParseID extracts the sequence number from a record id.
func ParseID(id string) (int, error) {
	if !strings.HasPrefix(id, IDPrefix) {
		return 0, fmt.Errorf("record id %q lacks prefix %q", id, IDPrefix)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, IDPrefix))
	if err != nil {
		return 0, fmt.Errorf("record id %q: %w", id, err)
	}
	return n, nil
}
