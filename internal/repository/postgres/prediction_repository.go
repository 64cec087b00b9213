package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andresuchdata/inventory-advisor/internal/domain"
	"github.com/andresuchdata/inventory-advisor/internal/repository"
)

var _ repository.PredictionRepository = (*PredictionRepository)(nil)

// PredictionRepository persists prediction runs and their per-product items.
type PredictionRepository struct {
	db *DB
}

func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// predictionItem is one prediction_items row.
type predictionItem struct {
	RunID              string         `db:"run_id"`
	Position           int            `db:"position"`
	Product            string         `db:"product"`
	CurrentStock       int            `db:"current_stock"`
	AvgDailySales      float64        `db:"avg_daily_sales"`
	LeadTimeDays       int            `db:"lead_time_days"`
	ForecastDemand     float64        `db:"forecast_demand"`
	SafetyStock        float64        `db:"safety_stock"`
	RecommendedReorder float64        `db:"recommended_reorder"`
	ExpiryRisk         string         `db:"expiry_risk"`
	SuggestedDiscount  string         `db:"suggested_discount"`
	PredictedLoss      int            `db:"predicted_loss"`
	Anomaly            []byte         `db:"anomaly"`
	FIFOSuggestion     string         `db:"fifo_suggestion"`
	Advisories         pq.StringArray `db:"advisories"`
}

// SaveRun inserts the run header and every prediction in one transaction.
func (r *PredictionRepository) SaveRun(ctx context.Context, run *domain.PredictionRun) error {
	if run.Response == nil {
		return fmt.Errorf("save run %s: missing response", run.ID)
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO prediction_runs (id, sales_source, products_source, product_count)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`, run.ID, run.SalesSource, run.ProductsSource, run.ProductCount).Scan(&run.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert prediction run: %w", err)
		}

		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO prediction_items (
				run_id, position, product, current_stock, avg_daily_sales,
				lead_time_days, forecast_demand, safety_stock, recommended_reorder,
				expiry_risk, suggested_discount, predicted_loss, anomaly,
				fifo_suggestion, advisories
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`)
		if err != nil {
			return fmt.Errorf("prepare prediction item insert: %w", err)
		}
		defer stmt.Close()

		for i, p := range run.Response.Predictions {
			item, err := toItem(run.ID, i, p)
			if err != nil {
				return err
			}

			// anomaly is nullable jsonb, so a nil slice must reach the driver as NULL
			var anomaly any
			if item.Anomaly != nil {
				anomaly = string(item.Anomaly)
			}

			if _, err := stmt.ExecContext(ctx,
				item.RunID, item.Position, item.Product, item.CurrentStock, item.AvgDailySales,
				item.LeadTimeDays, item.ForecastDemand, item.SafetyStock, item.RecommendedReorder,
				item.ExpiryRisk, item.SuggestedDiscount, item.PredictedLoss, anomaly,
				item.FIFOSuggestion, item.Advisories,
			); err != nil {
				return fmt.Errorf("insert prediction item %q: %w", p.Product, err)
			}
		}
		return nil
	})
}

// ListRuns returns the newest runs first, without their items.
func (r *PredictionRepository) ListRuns(ctx context.Context, limit int) ([]domain.PredictionRun, error) {
	if limit <= 0 {
		limit = 20
	}

	runs := make([]domain.PredictionRun, 0, limit)
	err := r.db.SelectContext(ctx, &runs, `
		SELECT id, sales_source, products_source, product_count, created_at
		FROM prediction_runs
		ORDER BY created_at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list prediction runs: %w", err)
	}
	return runs, nil
}

// GetRun loads one run together with its stored response.
func (r *PredictionRepository) GetRun(ctx context.Context, id string) (*domain.PredictionRun, error) {
	var run domain.PredictionRun
	err := r.db.GetContext(ctx, &run, `
		SELECT id, sales_source, products_source, product_count, created_at
		FROM prediction_runs
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction run %s: %w", id, err)
	}

	var items []predictionItem
	err = r.db.SelectContext(ctx, &items, `
		SELECT run_id, position, product, current_stock, avg_daily_sales,
		       lead_time_days, forecast_demand, safety_stock, recommended_reorder,
		       expiry_risk, suggested_discount, predicted_loss, anomaly,
		       fifo_suggestion, advisories
		FROM prediction_items
		WHERE run_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get prediction items for %s: %w", id, err)
	}

	resp, err := fromItems(items)
	if err != nil {
		return nil, err
	}
	run.Response = resp
	return &run, nil
}

func toItem(runID string, position int, p domain.Prediction) (predictionItem, error) {
	item := predictionItem{
		RunID:              runID,
		Position:           position,
		Product:            p.Product,
		CurrentStock:       p.CurrentStock,
		AvgDailySales:      p.AvgDailySales,
		LeadTimeDays:       p.LeadTimeDays,
		ForecastDemand:     p.ForecastDemand,
		SafetyStock:        p.SafetyStock,
		RecommendedReorder: p.RecommendedReorder,
		ExpiryRisk:         string(p.ExpiryRisk),
		SuggestedDiscount:  p.SuggestedDiscount,
		PredictedLoss:      p.PredictedLoss,
		FIFOSuggestion:     p.FIFOSuggestion,
		Advisories:         pq.StringArray(p.Advisories),
	}
	if item.Advisories == nil {
		item.Advisories = pq.StringArray{}
	}

	if p.Anomaly != nil {
		raw, err := json.Marshal(p.Anomaly)
		if err != nil {
			return item, fmt.Errorf("encode anomaly for %q: %w", p.Product, err)
		}
		item.Anomaly = raw
	}
	return item, nil
}

// fromItems rebuilds a response from stored rows, which are already in
// product order.
func fromItems(items []predictionItem) (*domain.PredictionResponse, error) {
	resp := &domain.PredictionResponse{
		Predictions: make([]domain.Prediction, 0, len(items)),
		ChartData:   make([]domain.ChartPoint, 0, len(items)),
	}

	for _, item := range items {
		risk, ok := domain.ParseExpiryRisk(item.ExpiryRisk)
		if !ok {
			return nil, fmt.Errorf("stored item %q has unknown expiry risk %q", item.Product, item.ExpiryRisk)
		}

		p := domain.Prediction{
			Product:            item.Product,
			CurrentStock:       item.CurrentStock,
			AvgDailySales:      item.AvgDailySales,
			LeadTimeDays:       item.LeadTimeDays,
			ForecastDemand:     item.ForecastDemand,
			SafetyStock:        item.SafetyStock,
			RecommendedReorder: item.RecommendedReorder,
			ExpiryRisk:         risk,
			SuggestedDiscount:  item.SuggestedDiscount,
			PredictedLoss:      item.PredictedLoss,
			FIFOSuggestion:     item.FIFOSuggestion,
			Advisories:         []string(item.Advisories),
		}
		if p.Advisories == nil {
			p.Advisories = []string{}
		}
		if len(item.Anomaly) > 0 {
			var a domain.Anomaly
			if err := json.Unmarshal(item.Anomaly, &a); err != nil {
				return nil, fmt.Errorf("decode anomaly for %q: %w", item.Product, err)
			}
			p.Anomaly = &a
		}

		resp.Predictions = append(resp.Predictions, p)
		resp.ChartData = append(resp.ChartData, domain.ChartPoint{
			Product:        p.Product,
			AvgDailySales:  p.AvgDailySales,
			CurrentStock:   p.CurrentStock,
			ForecastDemand: p.ForecastDemand,
		})
	}
	return resp, nil
}
