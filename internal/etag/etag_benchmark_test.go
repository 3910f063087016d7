package etag

import (
	"testing"

	"github.com/nlstn/go-datagrid/internal/record"
	"github.com/shopspring/decimal"
)

func benchmarkProduct() record.Product {
	return record.Product{
		ID:       "PRD-12345",
		Name:     "Premium Headphones",
		Category: "Electronics",
		Price:    decimal.RequireFromString("89.99"),
		Stock:    100,
		Status:   record.StatusActive,
	}
}

func BenchmarkETagGenerate(b *testing.B) {
	p := benchmarkProduct()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = Generate(p)
	}
}

func BenchmarkETagGenerate_Parallel(b *testing.B) {
	p := benchmarkProduct()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Generate(p)
		}
	})
}
