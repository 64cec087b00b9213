package advisor

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// CorrelationMatrix aligns every product's daily totals on the union of sale
// dates, with 0 where a product had no sales that day. It is built once per
// prediction call and shared read-only by all products.
type CorrelationMatrix struct {
	products []string
	index    map[string]int
	columns  [][]float64
	constant []bool
}

// NewCorrelationMatrix builds the aligned matrix from the aggregated totals.
func NewCorrelationMatrix(daily map[string]DailyTotals) *CorrelationMatrix {
	products := make([]string, 0, len(daily))
	dateSet := make(map[time.Time]struct{})
	for product, totals := range daily {
		if totals.Len() == 0 {
			continue
		}
		products = append(products, product)
		for _, d := range totals.Days {
			dateSet[d] = struct{}{}
		}
	}
	sort.Strings(products)

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	row := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		row[d] = i
	}

	m := &CorrelationMatrix{
		products: products,
		index:    make(map[string]int, len(products)),
		columns:  make([][]float64, len(products)),
		constant: make([]bool, len(products)),
	}

	for col, product := range products {
		m.index[product] = col

		values := make([]float64, len(dates))
		totals := daily[product]
		for i, d := range totals.Days {
			values[row[d]] = totals.Quantities[i]
		}

		m.columns[col] = values
		m.constant[col] = isConstant(values)
	}

	return m
}

// Correlation returns the Pearson correlation between two products, or false
// when either is unknown or has no variance.
func (m *CorrelationMatrix) Correlation(a, b string) (float64, bool) {
	i, ok := m.index[a]
	if !ok {
		return 0, false
	}
	j, ok := m.index[b]
	if !ok {
		return 0, false
	}
	return m.pearson(i, j)
}

// BestPartner returns the other product with the highest correlation to
// product. Ties keep the lexicographically smallest partner.
func (m *CorrelationMatrix) BestPartner(product string) (string, float64, bool) {
	i, ok := m.index[product]
	if !ok || m.constant[i] {
		return "", 0, false
	}

	best, bestCorr, found := "", 0.0, false
	for j, other := range m.products {
		if j == i {
			continue
		}
		c, ok := m.pearson(i, j)
		if !ok {
			continue
		}
		if !found || c > bestCorr {
			best, bestCorr, found = other, c, true
		}
	}
	return best, bestCorr, found
}

func (m *CorrelationMatrix) pearson(i, j int) (float64, bool) {
	if m.constant[i] || m.constant[j] {
		return 0, false
	}

	c := stat.Correlation(m.columns[i], m.columns[j], nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, c)), true
}

func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
