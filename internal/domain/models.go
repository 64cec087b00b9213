// internal/domain/models.go
package domain

import "time"

// PredictionRequest is the payload accepted by the advisor. Sales and product
// rows are loosely shaped and get canonicalized by the normalizer.
type PredictionRequest struct {
	Sales    []map[string]any `json:"sales"`
	Products []map[string]any `json:"products"`
	Config   map[string]any   `json:"config"`
}

// PredictionResponse holds one prediction and one chart point per product,
// both ordered by product identifier.
type PredictionResponse struct {
	Predictions []Prediction `json:"predictions"`
	ChartData   []ChartPoint `json:"chartData"`
}

// Prediction is the per-product inventory recommendation
type Prediction struct {
	Product            string     `json:"product"`
	CurrentStock       int        `json:"currentStock"`
	AvgDailySales      float64    `json:"avgDailySales"`
	LeadTimeDays       int        `json:"leadTimeDays"`
	ForecastDemand     float64    `json:"forecastDemand"`
	SafetyStock        float64    `json:"safetyStock"`
	RecommendedReorder float64    `json:"recommendedReorder"`
	ExpiryRisk         ExpiryRisk `json:"expiryRisk"`
	SuggestedDiscount  string     `json:"suggestedDiscount"`
	PredictedLoss      int        `json:"predictedLoss"`
	Anomaly            *Anomaly   `json:"anomaly"`
	FIFOSuggestion     string     `json:"fifoSuggestion"`
	Advisories         []string   `json:"advisories"`
}

// ChartPoint is the compact per-product view used for charting
type ChartPoint struct {
	Product        string  `json:"product"`
	AvgDailySales  float64 `json:"avgDailySales"`
	CurrentStock   int     `json:"currentStock"`
	ForecastDemand float64 `json:"forecastDemand"`
}

// AnomalyReason classifies the last observed day against its trailing average
type AnomalyReason string

const (
	AnomalySpike AnomalyReason = "spike"
	AnomalyDrop  AnomalyReason = "drop"
)

// Anomaly flags an unusual last day of sales.
type Anomaly struct {
	Anomaly      bool          `json:"anomaly"`
	Reason       AnomalyReason `json:"reason"`
	LastQuantity int           `json:"lastQuantity"`
	Avg30        float64       `json:"avg30"`
}

// PredictionRun is a persisted execution of the advisor
type PredictionRun struct {
	ID             string              `json:"id" db:"id"`
	SalesSource    string              `json:"salesSource" db:"sales_source"`
	ProductsSource string              `json:"productsSource" db:"products_source"`
	ProductCount   int                 `json:"productCount" db:"product_count"`
	CreatedAt      time.Time           `json:"createdAt" db:"created_at"`
	Response       *PredictionResponse `json:"response,omitempty" db:"-"`
}

// RunMeta describes where the inputs of a run came from
type RunMeta struct {
	SalesSource    string
	ProductsSource string
}
