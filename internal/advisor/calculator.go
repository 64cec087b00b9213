package advisor

import (
	"math"

	"github.com/andresuchdata/inventory-advisor/internal/domain"
)

// InventoryCalculator derives reorder and expiry metrics from per-product
// scalars.
type InventoryCalculator struct {
	safetyDays      float64
	mediumRiskRatio float64
}

// NewInventoryCalculator creates a calculator holding 1.5 days of demand as
// safety stock and flagging Medium risk above 60% of shelf life.
func NewInventoryCalculator() *InventoryCalculator {
	return &InventoryCalculator{
		safetyDays:      1.5,
		mediumRiskRatio: 0.6,
	}
}

// CalculatorInput carries the scalar inputs for one product.
type CalculatorInput struct {
	AvgDailySales float64
	LeadTimeDays  int
	CurrentStock  float64
	ShelfLife     float64
	HasShelfLife  bool
}

// InventoryMetrics holds calculated inventory metrics
type InventoryMetrics struct {
	ForecastDemand     float64 // Demand expected during the lead time
	SafetyStock        float64 // Buffer stock
	RecommendedReorder float64 // Quantity to order now, never negative
	DaysToSell         float64 // Days to sell current stock, valid when HasDaysToSell
	HasDaysToSell      bool
	ExpiryRisk         domain.ExpiryRisk
	SuggestedDiscount  string
	PredictedLoss      int // Units expected to expire unsold
}

// Calculate computes all inventory metrics for one product
func (ic *InventoryCalculator) Calculate(in CalculatorInput) InventoryMetrics {
	metrics := InventoryMetrics{}

	// 1. Forecast demand = Avg Daily Sales × Lead Time
	metrics.ForecastDemand = in.AvgDailySales * float64(in.LeadTimeDays)

	// 2. Safety stock = Avg Daily Sales × safety days
	metrics.SafetyStock = in.AvgDailySales * ic.safetyDays

	// 3. Reorder = Forecast + Safety - Stock, floored at zero
	metrics.RecommendedReorder = math.Max(0, metrics.ForecastDemand+metrics.SafetyStock-in.CurrentStock)

	// 4. Days to sell the current stock
	if in.AvgDailySales > 0 {
		metrics.DaysToSell = in.CurrentStock / in.AvgDailySales
		metrics.HasDaysToSell = true
	}

	// 5. Expiry risk against shelf life
	metrics.ExpiryRisk = ic.classify(in, metrics)

	// 6. Discount and expected loss follow the risk class
	metrics.SuggestedDiscount = metrics.ExpiryRisk.Discount()
	if factor := metrics.ExpiryRisk.LossFactor(); factor > 0 {
		metrics.PredictedLoss = roundShare(in.CurrentStock, factor)
	}

	return metrics
}

func (ic *InventoryCalculator) classify(in CalculatorInput, m InventoryMetrics) domain.ExpiryRisk {
	switch {
	case !in.HasShelfLife:
		return domain.RiskUnknown
	case in.AvgDailySales <= 0:
		return domain.RiskHigh
	case m.DaysToSell > in.ShelfLife:
		return domain.RiskHigh
	case m.DaysToSell > in.ShelfLife*ic.mediumRiskRatio:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
