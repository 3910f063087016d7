// Package validation is the gateway every product must pass before it can be
// written to the record store. It coerces loosely typed form input into a
// record.Product and reports every violated field rule at once.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nlstn/go-datagrid/internal/record"
	"github.com/shopspring/decimal"
)

// ErrValidation is matched by every FieldErrors value via errors.Is.
var ErrValidation = errors.New("validation failed")

// Candidate is unvalidated product input as submitted by a form or a JSON body.
// Price and Stock accept JSON numbers or numeric strings.
type Candidate struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    any    `json:"price"`
	Stock    any    `json:"stock"`
	Status   string `json:"status"`
}

// FromProduct builds a candidate carrying the values of p, useful for
// pre-filling an edit form.
func FromProduct(p record.Product) Candidate {
	return Candidate{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Price:    p.Price.String(),
		Stock:    p.Stock,
		Status:   string(p.Status),
	}
}

// FieldError describes one violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors collects every violation found in a candidate, in schema order.
type FieldErrors []FieldError

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, e := range fe {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) succeed for any FieldErrors.
func (fe FieldErrors) Is(target error) bool {
	return target == ErrValidation
}

// Get returns the message for field, or "" when the field passed.
func (fe FieldErrors) Get(field string) string {
	for _, e := range fe {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}

// Map returns the violations keyed by field name.
func (fe FieldErrors) Map() map[string]string {
	m := make(map[string]string, len(fe))
	for _, e := range fe {
		m[e.Field] = e.Message
	}
	return m
}

var (
	minPrice = decimal.New(1, -2)
	maxStock = decimal.NewFromInt(math.MaxInt64)
)

// Numbers outside these bounds are rejected before any arithmetic, since
// comparing or rounding a decimal rescales it to 10^exponent.
const (
	maxExponent      = 20
	maxIntegerDigits = 18
)

// Validate checks c against the product schema. On success the returned
// product carries coerced numeric values, a trimmed name and a price rounded
// to cents; the id is passed through untouched. On failure the product is the
// zero value and the error is a FieldErrors listing every violated field.
func Validate(c Candidate) (record.Product, error) {
	var errs FieldErrors
	add := func(field, msg string) {
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	name := strings.TrimSpace(c.Name)
	if len([]rune(name)) < 2 {
		add(record.FieldName, "Name must be at least 2 characters.")
	}

	category := strings.TrimSpace(c.Category)
	switch {
	case category == "":
		add(record.FieldCategory, "Please select a category.")
	case !record.IsCategory(category):
		add(record.FieldCategory, "Category must be one of: "+strings.Join(record.Categories, ", ")+".")
	}

	price, err := coerceDecimal(c.Price)
	switch {
	case err != nil:
		add(record.FieldPrice, "Price must be a number.")
	case price.LessThan(minPrice):
		add(record.FieldPrice, "Price must be greater than 0.")
	}

	stock, err := coerceStock(c.Stock)
	switch {
	case err != nil, !stock.IsInteger(), stock.GreaterThan(maxStock):
		add(record.FieldStock, "Stock must be a whole number.")
	case stock.IsNegative():
		add(record.FieldStock, "Stock cannot be negative.")
	}

	status := record.Status(strings.TrimSpace(c.Status))
	if !status.Valid() {
		add(record.FieldStatus, "Status must be active or inactive.")
	}

	if len(errs) > 0 {
		return record.Product{}, errs
	}

	return record.Product{
		ID:       strings.TrimSpace(c.ID),
		Name:     name,
		Category: category,
		Price:    price.Round(2),
		Stock:    stock.IntPart(),
		Status:   status,
	}, nil
}

// coerceStock parses integer strings directly and defers everything else to
// coerceDecimal.
func coerceStock(v any) (decimal.Decimal, error) {
	if s, ok := v.(string); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return decimal.NewFromInt(n), nil
		}
	}
	return coerceDecimal(v)
}

// coerceDecimal converts a JSON-decoded or form value into a decimal of
// bounded magnitude.
func coerceDecimal(v any) (decimal.Decimal, error) {
	d, err := parseDecimal(v)
	if err != nil {
		return decimal.Zero, err
	}
	exp := int(d.Exponent())
	if exp > maxExponent || exp < -maxExponent || exp+d.NumDigits() > maxIntegerDigits {
		return decimal.Zero, fmt.Errorf("value is out of range (exponent %d)", exp)
	}
	return d, nil
}

func parseDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("value is required")
	case decimal.Decimal:
		return n, nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, fmt.Errorf("value %v is not finite", n)
		}
		return decimal.NewFromFloat(n), nil
	case float32:
		return parseDecimal(float64(n))
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Zero, fmt.Errorf("value is empty")
		}
		return decimal.NewFromString(s)
	}
	return decimal.Zero, fmt.Errorf("value of type %T is not numeric", v)
}
