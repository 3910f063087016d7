package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nlstn/go-datagrid/internal/record"
	"github.com/shopspring/decimal"
)

func TestValidate_Valid(t *testing.T) {
	p, err := Validate(Candidate{
		Name:     "  Widget ",
		Category: "Toys",
		Price:    9.99,
		Stock:    float64(5),
		Status:   "active",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.Name != "Widget" {
		t.Errorf("name = %q, want trimmed", p.Name)
	}
	if !p.Price.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("price = %s, want 9.99", p.Price)
	}
	if p.Stock != 5 {
		t.Errorf("stock = %d, want 5", p.Stock)
	}
	if p.Status != record.StatusActive {
		t.Errorf("status = %q", p.Status)
	}
}

func TestValidate_CollectsEveryFieldError(t *testing.T) {
	_, err := Validate(Candidate{
		Name:     "A",
		Category: "",
		Price:    -1,
		Stock:    -1,
		Status:   "bogus",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if len(fe) != 5 {
		t.Fatalf("expected 5 field errors, got %d: %v", len(fe), fe)
	}
	want := map[string]string{
		record.FieldName:     "Name must be at least 2 characters.",
		record.FieldCategory: "Please select a category.",
		record.FieldPrice:    "Price must be greater than 0.",
		record.FieldStock:    "Stock cannot be negative.",
		record.FieldStatus:   "Status must be active or inactive.",
	}
	for field, msg := range want {
		if got := fe.Get(field); got != msg {
			t.Errorf("%s: got %q, want %q", field, got, msg)
		}
	}
}

func TestValidate_Coercion(t *testing.T) {
	tests := []struct {
		name      string
		price     any
		stock     any
		wantPrice string
		wantStock int64
		wantErr   []string
	}{
		{name: "numeric strings", price: "12.50", stock: "7", wantPrice: "12.5", wantStock: 7},
		{name: "json number", price: json.Number("3.333"), stock: json.Number("0"), wantPrice: "3.33", wantStock: 0},
		{name: "integers", price: 4, stock: int64(2), wantPrice: "4", wantStock: 2},
		{name: "minimum price", price: "0.01", stock: 0, wantPrice: "0.01", wantStock: 0},
		{name: "zero price", price: 0, stock: 1, wantErr: []string{record.FieldPrice}},
		{name: "non numeric", price: "cheap", stock: "many", wantErr: []string{record.FieldPrice, record.FieldStock}},
		{name: "missing", price: nil, stock: nil, wantErr: []string{record.FieldPrice, record.FieldStock}},
		{name: "fractional stock", price: 1, stock: 2.5, wantErr: []string{record.FieldStock}},
		{name: "empty string", price: "", stock: "", wantErr: []string{record.FieldPrice, record.FieldStock}},
		{name: "bool", price: true, stock: 1, wantErr: []string{record.FieldPrice}},
		{name: "huge exponent", price: "1e100000000", stock: "1e100000000", wantErr: []string{record.FieldPrice, record.FieldStock}},
		{name: "tiny exponent", price: "1e-100000000", stock: json.Number("1e-100000000"), wantErr: []string{record.FieldPrice, record.FieldStock}},
		{name: "too many integer digits", price: "1234567890123456789", stock: 1e300, wantErr: []string{record.FieldPrice, record.FieldStock}},
		{name: "exponent within range", price: "1.5e2", stock: "3e1", wantPrice: "150", wantStock: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Validate(Candidate{Name: "Widget", Category: "Books", Price: tt.price, Stock: tt.stock, Status: "inactive"})
			if len(tt.wantErr) > 0 {
				var fe FieldErrors
				if !errors.As(err, &fe) {
					t.Fatalf("expected FieldErrors, got %v", err)
				}
				if len(fe) != len(tt.wantErr) {
					t.Fatalf("expected %d errors, got %v", len(tt.wantErr), fe)
				}
				for _, field := range tt.wantErr {
					if fe.Get(field) == "" {
						t.Errorf("expected error for %s, got %v", field, fe)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !p.Price.Equal(decimal.RequireFromString(tt.wantPrice)) {
				t.Errorf("price = %s, want %s", p.Price, tt.wantPrice)
			}
			if p.Stock != tt.wantStock {
				t.Errorf("stock = %d, want %d", p.Stock, tt.wantStock)
			}
		})
	}
}

func TestValidate_OutOfRangeMessages(t *testing.T) {
	_, err := Validate(Candidate{Name: "Widget", Category: "Books", Price: "1e100000000", Stock: "1e100000000", Status: "active"})
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if got := fe.Get(record.FieldPrice); got != "Price must be a number." {
		t.Errorf("price message = %q", got)
	}
	if got := fe.Get(record.FieldStock); got != "Stock must be a whole number." {
		t.Errorf("stock message = %q", got)
	}
}

func TestValidate_UnknownCategory(t *testing.T) {
	_, err := Validate(Candidate{Name: "Widget", Category: "Garden", Price: 1, Stock: 1, Status: "active"})
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if fe.Get(record.FieldCategory) == "" {
		t.Fatalf("expected category error, got %v", fe)
	}
	if len(fe.Map()) != 1 {
		t.Fatalf("expected only the category to fail, got %v", fe.Map())
	}
}

func TestFromProductRoundTrip(t *testing.T) {
	orig := record.Product{ID: "PRD-1003", Name: "Yoga Mat", Category: "Sports", Price: decimal.RequireFromString("25.40"), Stock: 12, Status: record.StatusInactive}
	got, err := Validate(FromProduct(orig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != orig.ID || got.Name != orig.Name || got.Stock != orig.Stock || !got.Price.Equal(orig.Price) || got.Status != orig.Status {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, orig)
	}
}
