package advisor

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

const secondsPerDay = 24 * 60 * 60

// DailyTotals is one product's sparse per-day sales, ordered by date. Only
// days that had at least one sale row are present.
type DailyTotals struct {
	Days       []time.Time
	Quantities []float64
}

// Len returns the number of observed sale days.
func (d DailyTotals) Len() int {
	return len(d.Days)
}

// Dense expands the totals into a zero-filled calendar spanning the first to
// the last observed day.
func (d DailyTotals) Dense() DailySeries {
	if len(d.Days) == 0 {
		return DailySeries{}
	}

	start := d.Days[0]
	values := make([]float64, daysBetween(start, d.Days[len(d.Days)-1])+1)
	for i, dt := range d.Days {
		values[daysBetween(start, dt)] += d.Quantities[i]
	}
	return DailySeries{Start: start, Values: values}
}

// DailySeries is a dense day-indexed quantity sequence.
type DailySeries struct {
	Start  time.Time
	Values []float64
}

func (s DailySeries) Len() int {
	return len(s.Values)
}

// Mean returns the arithmetic mean, or 0 for an empty series.
func (s DailySeries) Mean() float64 {
	return mean(s.Values)
}

// Aggregates holds the per-product series derived from the sales table.
type Aggregates struct {
	Daily map[string]DailyTotals
	// Baseline is the mean monthly volume per product, keyed by raw
	// month-of-year, so the same month of different years shares one bucket.
	Baseline map[string]float64
}

// Aggregate groups dated sales by (product, day) and (product, month).
func Aggregate(sales []SalesRow) Aggregates {
	byDay := make(map[string]map[time.Time]float64)
	byMonth := make(map[string]map[time.Month]float64)

	for _, row := range sales {
		if !row.HasDate() {
			continue
		}

		days, ok := byDay[row.Product]
		if !ok {
			days = make(map[time.Time]float64)
			byDay[row.Product] = days
			byMonth[row.Product] = make(map[time.Month]float64)
		}
		days[row.Date] += row.Quantity
		byMonth[row.Product][row.Date.Month()] += row.Quantity
	}

	agg := Aggregates{
		Daily:    make(map[string]DailyTotals, len(byDay)),
		Baseline: make(map[string]float64, len(byMonth)),
	}

	for product, days := range byDay {
		keys := make([]time.Time, 0, len(days))
		for d := range days {
			keys = append(keys, d)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

		totals := DailyTotals{
			Days:       keys,
			Quantities: make([]float64, len(keys)),
		}
		for i, d := range keys {
			totals.Quantities[i] = days[d]
		}
		agg.Daily[product] = totals
	}

	for product, months := range byMonth {
		var sum float64
		for m := time.January; m <= time.December; m++ {
			sum += months[m]
		}
		agg.Baseline[product] = sum / float64(len(months))
	}

	return agg
}

// daysBetween counts whole days between two UTC midnights. Unix seconds are
// used instead of Sub, which saturates for spans beyond ~292 years.
func daysBetween(from, to time.Time) int {
	return int((to.Unix() - from.Unix()) / secondsPerDay)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
