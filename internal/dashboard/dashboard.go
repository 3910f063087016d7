// Package dashboard assembles the admin panel's overview: static demo series
// and KPI cards, plus a live summary of the product inventory.
package dashboard

import (
	"fmt"

	"github.com/nlstn/go-datagrid/internal/record"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LowStockThreshold is the stock level below which a product counts as low.
const LowStockThreshold = 10

// Point is one labelled value of a chart series.
type Point struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Trend is the direction of a KPI change.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// Stat is a KPI card.
type Stat struct {
	Title  string `json:"title"`
	Value  string `json:"value"`
	Change string `json:"change"`
	Trend  Trend  `json:"trend"`
}

// Summary describes the current product inventory.
type Summary struct {
	TotalProducts      int             `json:"totalProducts"`
	Active             int             `json:"active"`
	Inactive           int             `json:"inactive"`
	UnitsInStock       int64           `json:"unitsInStock"`
	InventoryValue     decimal.Decimal `json:"inventoryValue"`
	InventoryValueText string          `json:"inventoryValueText"`
	LowStock           int             `json:"lowStock"`
	ByCategory         map[string]int  `json:"byCategory"`
}

// Overview is the full dashboard payload.
type Overview struct {
	Stats         []Stat  `json:"stats"`
	Revenue       []Point `json:"revenue"`
	UsersByDevice []Point `json:"usersByDevice"`
	WeeklySales   []Point `json:"weeklySales"`
	Inventory     Summary `json:"inventory"`
}

// MonthlyRevenue is the demo revenue series.
func MonthlyRevenue() []Point {
	return []Point{
		{"Jan", 4000}, {"Feb", 3000}, {"Mar", 5000}, {"Apr", 7000},
		{"May", 6000}, {"Jun", 9000}, {"Jul", 8000}, {"Aug", 10000},
		{"Sep", 11000}, {"Oct", 12000}, {"Nov", 15000}, {"Dec", 18000},
	}
}

// UsersByDevice is the demo device split, in percent.
func UsersByDevice() []Point {
	return []Point{{"Desktop", 45}, {"Mobile", 35}, {"Tablet", 20}}
}

// WeeklySales is the demo sales series.
func WeeklySales() []Point {
	return []Point{
		{"Mon", 5400}, {"Tue", 6200}, {"Wed", 7800}, {"Thu", 6800},
		{"Fri", 9200}, {"Sat", 11000}, {"Sun", 9000},
	}
}

// Stats returns the KPI cards.
func Stats() []Stat {
	p := printer()
	return []Stat{
		{Title: "Total Revenue", Value: FormatCurrency(85200), Change: "+12.5%", Trend: TrendUp},
		{Title: "New Users", Value: p.Sprintf("%d", 1240), Change: "+8.2%", Trend: TrendUp},
		{Title: "Orders", Value: p.Sprintf("%d", 852), Change: "-2.4%", Trend: TrendDown},
		{Title: "Conversion Rate", Value: "3.24%", Change: "+4.7%", Trend: TrendUp},
	}
}

func printer() *message.Printer {
	return message.NewPrinter(language.AmericanEnglish)
}

// FormatCurrency renders whole dollars the en-US way, e.g. "$18,000".
func FormatCurrency(v int64) string {
	if v < 0 {
		return "-$" + printer().Sprintf("%d", -v)
	}
	return "$" + printer().Sprintf("%d", v)
}

// FormatAmount renders d rounded to cents, e.g. "$1,234.50".
func FormatAmount(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	d = d.Round(2)
	whole := d.IntPart()
	cents := d.Sub(decimal.NewFromInt(whole)).Shift(2).IntPart()
	return fmt.Sprintf("%s$%s.%02d", sign, printer().Sprintf("%d", whole), cents)
}

// Summarize computes the inventory summary of products.
func Summarize(products []record.Product) Summary {
	s := Summary{
		InventoryValue: decimal.Zero,
		ByCategory:     make(map[string]int, len(record.Categories)),
	}
	for _, c := range record.Categories {
		s.ByCategory[c] = 0
	}
	for _, p := range products {
		s.TotalProducts++
		if p.Status == record.StatusActive {
			s.Active++
		} else {
			s.Inactive++
		}
		s.UnitsInStock += p.Stock
		s.InventoryValue = s.InventoryValue.Add(p.Price.Mul(decimal.NewFromInt(p.Stock)))
		if p.Stock < LowStockThreshold {
			s.LowStock++
		}
		s.ByCategory[p.Category]++
	}
	s.InventoryValueText = FormatAmount(s.InventoryValue)
	return s
}

// Build assembles the overview for the given inventory.
func Build(products []record.Product) Overview {
	return Overview{
		Stats:         Stats(),
		Revenue:       MonthlyRevenue(),
		UsersByDevice: UsersByDevice(),
		WeeklySales:   WeeklySales(),
		Inventory:     Summarize(products),
	}
}
