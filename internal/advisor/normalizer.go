package advisor

import (
	"sort"
	"strings"
	"time"
)

type field string

const (
	fieldProduct      field = "product"
	fieldDate         field = "date"
	fieldQuantity     field = "quantity"
	fieldPrice        field = "price"
	fieldCurrentStock field = "currentStock"
	fieldShelfLife    field = "shelfLife"
	fieldLeadTimeDays field = "leadTimeDays"
)

// columnAlias lists the normalized column names that feed a canonical field,
// in priority order.
type columnAlias struct {
	field field
	names []string
}

var productColumn = columnAlias{fieldProduct, []string{"product", "product_name", "item", "name"}}

var leadTimeColumn = columnAlias{fieldLeadTimeDays, []string{"leadtimedays", "leadtime", "lead_time", "lead_time_days"}}

var salesColumns = []columnAlias{
	productColumn,
	{fieldDate, []string{"date", "sale_date", "timestamp"}},
	{fieldQuantity, []string{"quantity", "quantity_sold", "qty", "q"}},
	{fieldPrice, []string{"price", "unit_price"}},
}

var productColumns = []columnAlias{
	productColumn,
	{fieldCurrentStock, []string{"currentstock", "current stock", "current_stock", "stock", "stock_level", "batch_stock"}},
	{fieldShelfLife, []string{"shelflife", "shelf life", "shelf_life", "shelf_life_days", "expiry_days"}},
	leadTimeColumn,
}

var configColumns = []columnAlias{leadTimeColumn}

// SalesRow is a canonical sales record. A zero Date means the source date
// could not be parsed; such rows never reach the aggregates.
type SalesRow struct {
	Product  string
	Date     time.Time
	Quantity float64
	Price    float64
	HasPrice bool
}

// HasDate reports whether the row carries a usable calendar date.
func (r SalesRow) HasDate() bool {
	return !r.Date.IsZero()
}

// ProductRow is a canonical product master record.
type ProductRow struct {
	Product      string
	CurrentStock float64
	ShelfLife    float64
	HasShelfLife bool
	LeadTimeDays int
	HasLeadTime  bool
}

// Tables holds both canonical record sets.
type Tables struct {
	Sales    []SalesRow
	Products []ProductRow
}

// Normalize canonicalizes raw sales and product records. Rows without a
// product identifier are dropped; every other coercion problem falls back to
// the field default.
func Normalize(sales, products []map[string]any) Tables {
	return Tables{
		Sales:    NormalizeSales(sales),
		Products: NormalizeProducts(products),
	}
}

func NormalizeSales(records []map[string]any) []SalesRow {
	rows := make([]SalesRow, 0, len(records))
	for _, rec := range records {
		cols := canonicalize(rec, salesColumns)

		id := coerceID(cols[fieldProduct])
		if id == "" {
			continue
		}

		row := SalesRow{
			Product:  id,
			Quantity: coerceQuantity(cols[fieldQuantity]),
		}
		if d, ok := parseDate(cols[fieldDate]); ok {
			row.Date = d
		}
		if p, ok := parseNumber(cols[fieldPrice], true); ok {
			row.Price = p
			row.HasPrice = true
		}
		rows = append(rows, row)
	}
	return rows
}

func NormalizeProducts(records []map[string]any) []ProductRow {
	rows := make([]ProductRow, 0, len(records))
	for _, rec := range records {
		cols := canonicalize(rec, productColumns)

		id := coerceID(cols[fieldProduct])
		if id == "" {
			continue
		}

		row := ProductRow{
			Product:      id,
			CurrentStock: coerceQuantity(cols[fieldCurrentStock]),
		}
		if sl, ok := parseNumber(cols[fieldShelfLife], false); ok {
			row.ShelfLife = sl
			row.HasShelfLife = true
		}
		if lt, ok := coerceLeadTime(cols[fieldLeadTimeDays]); ok {
			row.LeadTimeDays = lt
			row.HasLeadTime = true
		}
		rows = append(rows, row)
	}
	return rows
}

// resolveLeadTime reads the request-level default lead time, falling back when
// it is absent or not numeric.
func resolveLeadTime(cfg map[string]any, fallback int) int {
	if v, ok := coerceLeadTime(canonicalize(cfg, configColumns)[fieldLeadTimeDays]); ok {
		return v
	}
	return fallback
}

// canonicalize maps a raw record onto canonical fields. Keys are visited in
// sorted order so colliding spellings resolve deterministically.
func canonicalize(rec map[string]any, aliases []columnAlias) map[field]any {
	out := make(map[field]any, len(aliases))
	if len(rec) == 0 {
		return out
	}

	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	normalized := make(map[string]any, len(rec))
	for _, k := range keys {
		name := normalizeColumnName(k)
		if _, seen := normalized[name]; !seen {
			normalized[name] = rec[k]
		}
	}

	for _, alias := range aliases {
		for _, name := range alias.names {
			if v, ok := normalized[name]; ok {
				out[alias.field] = v
				break
			}
		}
	}
	return out
}

func normalizeColumnName(name string) string {
	name = strings.ReplaceAll(name, "\ufeff", "")
	return strings.ToLower(strings.TrimSpace(name))
}
