package advisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/inventory-advisor/internal/domain"
)

func TestWeekdayPeak(t *testing.T) {
	// 2024-01-01 is a Monday.
	msg, ok := weekdayPeak(ruleInput{sparse: totals("2024-01-01", 50, 10, 10, 10, 10, 10, 10)})
	require.True(t, ok)
	assert.Equal(t, "Peak sales on Mon (avg 50.0). Consider stocking up before that day.", msg)

	_, ok = weekdayPeak(ruleInput{sparse: totals("2024-01-01", 10, 10, 10, 10, 10, 10, 10)})
	assert.False(t, ok)

	_, ok = weekdayPeak(ruleInput{})
	assert.False(t, ok)
}

func TestWeekendUplift(t *testing.T) {
	msg, ok := weekendUplift(ruleInput{sparse: totals("2024-01-01", 10, 10, 10, 10, 10, 20, 20)})
	require.True(t, ok)
	assert.Contains(t, msg, "Weekend uplift detected")

	_, ok = weekendUplift(ruleInput{sparse: totals("2024-01-06", 20, 20)})
	assert.False(t, ok, "needs weekday sales to compare against")
}

func TestMonthlySpike(t *testing.T) {
	sparse := DailyTotals{
		Days:       []time.Time{day("2024-01-15"), day("2024-02-15"), day("2024-03-15")},
		Quantities: []float64{10, 10, 50},
	}
	msg, ok := monthlySpike(ruleInput{sparse: sparse})
	require.True(t, ok)
	assert.Equal(t, "Monthly spike detected for month 3; prepare extra stock before that month.", msg)

	_, ok = monthlySpike(ruleInput{sparse: totals("2024-01-01", 10, 10, 90)})
	assert.False(t, ok, "a single month cannot spike against itself")
}

func TestShortTermTrend(t *testing.T) {
	rising := make([]float64, 14)
	falling := make([]float64, 14)
	for i := range rising {
		if i < 7 {
			rising[i], falling[i] = 10, 20
		} else {
			rising[i], falling[i] = 20, 10
		}
	}

	msg, ok := shortTermTrend(ruleInput{dense: DailySeries{Values: rising}})
	require.True(t, ok)
	assert.Equal(t, "7-day rising trend (+100%): consider ordering extra units to avoid stockouts.", msg)

	msg, ok = shortTermTrend(ruleInput{dense: DailySeries{Values: falling}})
	require.True(t, ok)
	assert.Equal(t, "7-day falling trend (-50%): consider reducing the next order or running promotions.", msg)

	_, ok = shortTermTrend(ruleInput{dense: DailySeries{Values: rising[:13]}})
	assert.False(t, ok, "needs two weeks of history")

	_, ok = shortTermTrend(ruleInput{dense: DailySeries{Values: make([]float64, 20)}})
	assert.False(t, ok)
}

func TestRollingMeanShrinksAtStart(t *testing.T) {
	values := []float64{2, 4, 6, 8, 10, 12, 14, 16}
	assert.Equal(t, 2.0, rollingMean(values, 0, 7))
	assert.Equal(t, 4.0, rollingMean(values, 2, 7))
	assert.Equal(t, 10.0, rollingMean(values, 7, 7))
}

func TestFastSlowMover(t *testing.T) {
	tests := []struct {
		name string
		in   ruleInput
		want string
	}{
		{"overstock", ruleInput{baseline: 300, currentStock: 1000, avgDaily: 10}, "Overstock detected"},
		{"fast", ruleInput{baseline: 300, avgDaily: 500}, "Fast mover"},
		{"slow", ruleInput{baseline: 300, avgDaily: 100}, "Slow mover"},
		{"in between", ruleInput{baseline: 300, avgDaily: 200}, ""},
		{"no baseline", ruleInput{avgDaily: 5, currentStock: 100}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := fastSlowMover(tt.in)
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Contains(t, msg, tt.want)
		})
	}
}

func TestExpiryDiscounting(t *testing.T) {
	msg, ok := expiryDiscounting(ruleInput{metrics: InventoryMetrics{ExpiryRisk: domain.RiskHigh}})
	require.True(t, ok)
	assert.Contains(t, msg, "High expiry risk")

	msg, ok = expiryDiscounting(ruleInput{metrics: InventoryMetrics{ExpiryRisk: domain.RiskMedium}})
	require.True(t, ok)
	assert.Contains(t, msg, "Medium expiry risk")

	msg, ok = expiryDiscounting(ruleInput{
		shelfLife:    5,
		hasShelfLife: true,
		metrics:      InventoryMetrics{ExpiryRisk: domain.RiskLow, DaysToSell: 6, HasDaysToSell: true},
	})
	require.True(t, ok)
	assert.Contains(t, msg, "Short shelf life")

	_, ok = expiryDiscounting(ruleInput{metrics: InventoryMetrics{ExpiryRisk: domain.RiskUnknown}})
	assert.False(t, ok)
}

func TestAnomalyInsight(t *testing.T) {
	msg, ok := anomalyInsight(ruleInput{anomaly: &domain.Anomaly{Anomaly: true, Reason: domain.AnomalySpike}})
	require.True(t, ok)
	assert.Contains(t, msg, "Unusual sales spike")

	msg, ok = anomalyInsight(ruleInput{anomaly: &domain.Anomaly{Anomaly: true, Reason: domain.AnomalyDrop}})
	require.True(t, ok)
	assert.Contains(t, msg, "Unusual sales drop")

	_, ok = anomalyInsight(ruleInput{})
	assert.False(t, ok)
}

func TestBundleCrossSell(t *testing.T) {
	m := NewCorrelationMatrix(map[string]DailyTotals{
		"Bread":  totals("2024-01-01", 1, 5, 2, 8),
		"Butter": totals("2024-01-01", 2, 10, 4, 16),
		"Salt":   totals("2024-01-01", 4, 4, 5, 4),
	})

	msg, ok := bundleCrossSell(ruleInput{product: "Bread", correlations: m})
	require.True(t, ok)
	assert.Equal(t, "Consider bundling with 'Butter' (correlation 1.0).", msg)

	_, ok = bundleCrossSell(ruleInput{product: "Unknown", correlations: m})
	assert.False(t, ok)

	_, ok = bundleCrossSell(ruleInput{product: "Bread"})
	assert.False(t, ok)
}

func TestEvaluateRecoversFromPanic(t *testing.T) {
	boom := rule{name: "boom", eval: func(ruleInput) (string, bool) {
		var values []float64
		return "", values[3] > 0
	}}

	msg, ok := evaluate(boom, ruleInput{product: "A"})
	assert.False(t, ok)
	assert.Empty(t, msg)
}

func TestRunRulesFallback(t *testing.T) {
	assert.Equal(t, []string{msgNoSales}, runRules(ruleInput{product: "A"}))
	assert.Equal(t, []string{msgNoSignal}, runRules(ruleInput{product: "A", avgDaily: 5}))
}

func TestRunRulesKeepsOrder(t *testing.T) {
	got := runRules(ruleInput{
		product:  "A",
		avgDaily: 100,
		baseline: 300,
		anomaly:  &domain.Anomaly{Anomaly: true, Reason: domain.AnomalySpike},
		metrics:  InventoryMetrics{ExpiryRisk: domain.RiskHigh},
	})
	require.Len(t, got, 3)
	assert.Contains(t, got[0], "Slow mover")
	assert.Contains(t, got[1], "High expiry risk")
	assert.Contains(t, got[2], "Unusual sales spike")
}
