package advisor

import (
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/inventory-advisor/internal/domain"
	"github.com/andresuchdata/inventory-advisor/pkg/logger"
)

const (
	weekdayPeakRatio     = 1.25
	weekendUpliftRatio   = 1.2
	monthlySpikeRatio    = 1.4
	trendMinDays         = 14
	trendWindow          = 7
	trendLookback        = 8
	trendThreshold       = 0.2
	overstockRatio       = 3.0
	fastMoverRatio       = 1.5
	slowMoverRatio       = 0.4
	shortShelfLifeDays   = 7.0
	bundleMinCorrelation = 0.45
)

const (
	msgNoSales  = "No recent sales data: perform a stock and sales audit or import more sales history."
	msgNoSignal = "No strong patterns detected: monitor weekly and adjust orders based on demand."
	fifoNote    = "Sell oldest batch first (FIFO)."
)

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// ruleInput is everything a rule may look at for one product.
type ruleInput struct {
	product      string
	sparse       DailyTotals
	dense        DailySeries
	avgDaily     float64
	currentStock float64
	baseline     float64
	shelfLife    float64
	hasShelfLife bool
	metrics      InventoryMetrics
	anomaly      *domain.Anomaly
	correlations *CorrelationMatrix
}

// rule returns an advisory and true when its signal fires.
type rule struct {
	name string
	eval func(in ruleInput) (string, bool)
}

// rules run in this order and their advisories keep it.
var rules = []rule{
	{"short_term_trend", shortTermTrend},
	{"weekday_peak", weekdayPeak},
	{"weekend_uplift", weekendUplift},
	{"monthly_spike", monthlySpike},
	{"fast_slow_mover", fastSlowMover},
	{"expiry_discounting", expiryDiscounting},
	{"anomaly_insight", anomalyInsight},
	{"bundle_crosssell", bundleCrossSell},
}

// runRules evaluates every rule and falls back to a single default advisory
// when none of them fire.
func runRules(in ruleInput) []string {
	advisories := make([]string, 0, 4)
	for _, r := range rules {
		if msg, ok := evaluate(r, in); ok && msg != "" {
			advisories = append(advisories, msg)
		}
	}

	if len(advisories) == 0 {
		if in.avgDaily <= 0 {
			return []string{msgNoSales}
		}
		return []string{msgNoSignal}
	}
	return advisories
}

// evaluate runs one rule, treating a panic as no signal.
func evaluate(r rule, in ruleInput) (msg string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Log.Debug().
				Str("rule", r.name).
				Str("product", in.product).
				Interface("panic", rec).
				Msg("rule evaluation failed")
			msg, ok = "", false
		}
	}()
	return r.eval(in)
}

// mondayIndex maps time.Weekday onto Mon=0..Sun=6.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func weekdayPeak(in ruleInput) (string, bool) {
	var sums, counts [7]float64
	for i, d := range in.sparse.Days {
		wd := mondayIndex(d.Weekday())
		sums[wd] += in.sparse.Quantities[i]
		counts[wd]++
	}

	top, topMean := -1, 0.0
	var total float64
	var groups int
	for wd := 0; wd < 7; wd++ {
		if counts[wd] == 0 {
			continue
		}
		m := sums[wd] / counts[wd]
		total += m
		groups++
		if top < 0 || m > topMean {
			top, topMean = wd, m
		}
	}
	if groups == 0 {
		return "", false
	}

	overall := total / float64(groups)
	if overall > 0 && topMean > overall*weekdayPeakRatio {
		return fmt.Sprintf("Peak sales on %s (avg %s). Consider stocking up before that day.",
			weekdayNames[top], formatTrimmed(topMean, 1)), true
	}
	return "", false
}

func weekendUplift(in ruleInput) (string, bool) {
	var weekend, weekday []float64
	for i, d := range in.sparse.Days {
		if mondayIndex(d.Weekday()) >= 5 {
			weekend = append(weekend, in.sparse.Quantities[i])
		} else {
			weekday = append(weekday, in.sparse.Quantities[i])
		}
	}

	wknd, wkday := mean(weekend), mean(weekday)
	if wkday > 0 && wknd > wkday*weekendUpliftRatio {
		return "Weekend uplift detected: consider increasing stock on Thu/Fri to meet weekend demand.", true
	}
	return "", false
}

func monthlySpike(in ruleInput) (string, bool) {
	var sums, counts [13]float64
	for i, d := range in.sparse.Days {
		m := int(d.Month())
		sums[m] += in.sparse.Quantities[i]
		counts[m]++
	}

	top, topMean := 0, 0.0
	var total float64
	var groups int
	for m := 1; m <= 12; m++ {
		if counts[m] == 0 {
			continue
		}
		v := sums[m] / counts[m]
		total += v
		groups++
		if top == 0 || v > topMean {
			top, topMean = m, v
		}
	}
	if groups == 0 {
		return "", false
	}

	if topMean > (total/float64(groups))*monthlySpikeRatio {
		return fmt.Sprintf("Monthly spike detected for month %d; prepare extra stock before that month.", top), true
	}
	return "", false
}

func shortTermTrend(in ruleInput) (string, bool) {
	n := in.dense.Len()
	if n < trendMinDays {
		return "", false
	}

	last := rollingMean(in.dense.Values, n-1, trendWindow)
	prev := rollingMean(in.dense.Values, n-trendLookback, trendWindow)
	if prev <= 0 {
		return "", false
	}

	pct := (last - prev) / prev
	switch {
	case pct > trendThreshold:
		return fmt.Sprintf("7-day rising trend (+%d%%): consider ordering extra units to avoid stockouts.",
			saturatingInt(pct*100)), true
	case pct < -trendThreshold:
		return fmt.Sprintf("7-day falling trend (%d%%): consider reducing the next order or running promotions.",
			saturatingInt(pct*100)), true
	}
	return "", false
}

// rollingMean is the mean of the window ending at index i. Near the start of
// the series the window shrinks to the points available.
func rollingMean(values []float64, i, window int) float64 {
	return mean(values[max(0, i-window+1) : i+1])
}

func fastSlowMover(in ruleInput) (string, bool) {
	baseline := in.baseline
	if baseline <= 0 {
		return "", false
	}

	switch {
	case in.currentStock > baseline*overstockRatio:
		return "Overstock detected (stock > 3x monthly avg). Consider clearance or reduce future orders.", true
	case in.avgDaily > baseline*fastMoverRatio:
		return "Fast mover: increase reorder frequency or quantity.", true
	case in.avgDaily < baseline*slowMoverRatio:
		return "Slow mover: consider smaller reorders and promotional offers.", true
	}
	return "", false
}

func expiryDiscounting(in ruleInput) (string, bool) {
	switch in.metrics.ExpiryRisk {
	case domain.RiskHigh:
		return "High expiry risk: apply an aggressive discount (e.g. 30%) and prioritize older batches (FIFO).", true
	case domain.RiskMedium:
		return "Medium expiry risk: consider a moderate discount (10% to 20%) and monitor daily.", true
	}

	if in.hasShelfLife && in.shelfLife > 0 && in.shelfLife < shortShelfLifeDays &&
		in.metrics.HasDaysToSell && in.metrics.DaysToSell > in.shelfLife {
		return "Short shelf life combined with slow sales: immediate discounting recommended.", true
	}
	return "", false
}

func anomalyInsight(in ruleInput) (string, bool) {
	if in.anomaly == nil {
		return "", false
	}

	switch in.anomaly.Reason {
	case domain.AnomalySpike:
		return "Unusual sales spike detected: investigate promotions or data entry issues.", true
	case domain.AnomalyDrop:
		return "Unusual sales drop detected: check for stockouts, display or supplier problems.", true
	}
	return "", false
}

func bundleCrossSell(in ruleInput) (string, bool) {
	if in.correlations == nil {
		return "", false
	}

	partner, corr, ok := in.correlations.BestPartner(in.product)
	if !ok || math.IsNaN(corr) || corr <= bundleMinCorrelation {
		return "", false
	}
	return fmt.Sprintf("Consider bundling with '%s' (correlation %s).", partner, formatTrimmed(corr, 2)), true
}
