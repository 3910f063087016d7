package record

import (
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

var sampleNames = []string{
	"Premium Headphones", "Wireless Keyboard", "Smart Watch", "Bluetooth Speaker",
	"Cotton T-Shirt", "Denim Jeans", "Leather Jacket", "Summer Dress",
	"Science Fiction Novel", "Cookbook", "Biography", "Children's Book",
	"Coffee Maker", "Blender", "Toaster", "Vacuum Cleaner",
	"Action Figure", "Board Game", "Building Blocks", "Remote Control Car",
	"Basketball", "Yoga Mat", "Tennis Racket", "Dumbbells",
	"Face Cream", "Shampoo", "Perfume", "Makeup Set",
}

// GenerateSample builds count products with sequential ids starting at IDBase.
// Prices fall in [10, 110) with two decimal places, stock in [0, 100), and
// roughly one in five products is inactive.
func GenerateSample(rng *rand.Rand, count int) []Product {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	products := make([]Product, 0, count)
	for i := 0; i < count; i++ {
		status := StatusActive
		if rng.Float64() <= 0.2 {
			status = StatusInactive
		}
		cents := 1000 + rng.Int64N(10000)
		products = append(products, Product{
			ID:       FormatID(IDBase + i),
			Name:     sampleNames[rng.IntN(len(sampleNames))],
			Category: Categories[rng.IntN(len(Categories))],
			Price:    decimal.New(cents, -2),
			Stock:    rng.Int64N(100),
			Status:   status,
		})
	}
	return products
}
