package advisor

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/inventory-advisor/internal/domain"
	"github.com/andresuchdata/inventory-advisor/pkg/logger"
)

// DefaultLeadTimeDays applies when neither the product row nor the request
// config carries a usable lead time.
const DefaultLeadTimeDays = 7

var (
	// ErrEmptyInput is returned when no request body was supplied.
	ErrEmptyInput = errors.New("no input")
	// ErrInvalidInput is returned when the request body is not a JSON object.
	ErrInvalidInput = errors.New("invalid JSON input")
)

// ConfigLeadTimeKey is the canonical request config key for the default lead time.
const ConfigLeadTimeKey = string(fieldLeadTimeDays)

// Options tunes a Predictor.
type Options struct {
	// DefaultLeadTimeDays is used when the request config has no lead time.
	DefaultLeadTimeDays int
	// Workers bounds per-product parallelism. Zero means GOMAXPROCS.
	Workers int
}

// Predictor turns sales history and stock levels into per-product advice.
// It holds no per-request state and is safe for concurrent use.
type Predictor struct {
	opts       Options
	calculator *InventoryCalculator
}

// NewPredictor creates a predictor, filling unset options with defaults.
func NewPredictor(opts Options) *Predictor {
	if opts.DefaultLeadTimeDays <= 0 {
		opts.DefaultLeadTimeDays = DefaultLeadTimeDays
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	return &Predictor{
		opts:       opts,
		calculator: NewInventoryCalculator(),
	}
}

// ResolveLeadTime returns the default lead time a request with this config
// runs with: the config's own value when valid, else the predictor default.
func (p *Predictor) ResolveLeadTime(cfg map[string]any) int {
	return resolveLeadTime(cfg, p.opts.DefaultLeadTimeDays)
}

// productInput is the per-product slice of the shared aggregates.
type productInput struct {
	id       string
	master   ProductRow
	found    bool
	daily    DailyTotals
	baseline float64
	hasBase  bool
}

// Predict runs the full pipeline. It either returns a complete response or
// an error; partial results are never returned.
func (p *Predictor) Predict(ctx context.Context, req domain.PredictionRequest) (*domain.PredictionResponse, error) {
	tables := Normalize(req.Sales, req.Products)
	leadTime := p.ResolveLeadTime(req.Config)

	agg := Aggregate(tables.Sales)
	inputs := collectProducts(tables, agg)
	correlations := NewCorrelationMatrix(agg.Daily)

	logger.Log.Debug().
		Int("sales_rows", len(tables.Sales)).
		Int("product_rows", len(tables.Products)).
		Int("products", len(inputs)).
		Int("default_lead_time", leadTime).
		Msg("running predictions")

	predictions := make([]domain.Prediction, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, in := range inputs {
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = errors.WithStack(fmt.Errorf("predict %q: panic: %v", in.id, rec))
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			predictions[i] = p.predictOne(in, leadTime, correlations)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "prediction failed")
	}

	resp := &domain.PredictionResponse{
		Predictions: predictions,
		ChartData:   make([]domain.ChartPoint, len(predictions)),
	}
	for i, pred := range predictions {
		resp.ChartData[i] = domain.ChartPoint{
			Product:        pred.Product,
			AvgDailySales:  pred.AvgDailySales,
			CurrentStock:   pred.CurrentStock,
			ForecastDemand: pred.ForecastDemand,
		}
	}
	return resp, nil
}

// collectProducts returns the sorted union of product ids from both tables.
// The first product row per id wins.
func collectProducts(tables Tables, agg Aggregates) []productInput {
	byID := make(map[string]*productInput)
	get := func(id string) *productInput {
		in, ok := byID[id]
		if !ok {
			in = &productInput{id: id}
			byID[id] = in
		}
		return in
	}

	for _, row := range tables.Products {
		in := get(row.Product)
		if !in.found {
			in.master = row
			in.found = true
		}
	}
	for id, daily := range agg.Daily {
		get(id).daily = daily
	}
	for id, base := range agg.Baseline {
		in := get(id)
		in.baseline = base
		in.hasBase = true
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]productInput, len(ids))
	for i, id := range ids {
		out[i] = *byID[id]
	}
	return out
}

func (p *Predictor) predictOne(in productInput, defaultLeadTime int, correlations *CorrelationMatrix) domain.Prediction {
	leadTime := defaultLeadTime
	if in.found && in.master.HasLeadTime {
		leadTime = in.master.LeadTimeDays
	}

	dense := in.daily.Dense()
	avgDaily := dense.Mean()
	stock := in.master.CurrentStock

	metrics := p.calculator.Calculate(CalculatorInput{
		AvgDailySales: avgDaily,
		LeadTimeDays:  leadTime,
		CurrentStock:  stock,
		ShelfLife:     in.master.ShelfLife,
		HasShelfLife:  in.master.HasShelfLife,
	})
	anomaly := DetectAnomaly(dense)

	baseline := avgDaily * 30
	if in.hasBase {
		baseline = in.baseline
	}

	advisories := runRules(ruleInput{
		product:      in.id,
		sparse:       in.daily,
		dense:        dense,
		avgDaily:     avgDaily,
		currentStock: stock,
		baseline:     baseline,
		shelfLife:    in.master.ShelfLife,
		hasShelfLife: in.master.HasShelfLife,
		metrics:      metrics,
		anomaly:      anomaly,
		correlations: correlations,
	})

	return domain.Prediction{
		Product:            in.id,
		CurrentStock:       saturatingInt(stock),
		AvgDailySales:      roundFloat(avgDaily, 2),
		LeadTimeDays:       leadTime,
		ForecastDemand:     roundFloat(metrics.ForecastDemand, 2),
		SafetyStock:        roundFloat(metrics.SafetyStock, 2),
		RecommendedReorder: roundFloat(metrics.RecommendedReorder, 2),
		ExpiryRisk:         metrics.ExpiryRisk,
		SuggestedDiscount:  metrics.SuggestedDiscount,
		PredictedLoss:      metrics.PredictedLoss,
		Anomaly:            anomaly,
		FIFOSuggestion:     fifoNote,
		Advisories:         advisories,
	}
}
