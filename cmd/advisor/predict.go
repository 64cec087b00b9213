package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventory-advisor/internal/advisor"
	"github.com/andresuchdata/inventory-advisor/internal/cache"
	"github.com/andresuchdata/inventory-advisor/internal/domain"
	"github.com/andresuchdata/inventory-advisor/internal/ingest"
	"github.com/andresuchdata/inventory-advisor/internal/repository/postgres"
	"github.com/andresuchdata/inventory-advisor/internal/service"
	"github.com/andresuchdata/inventory-advisor/internal/storage"
	"github.com/andresuchdata/inventory-advisor/pkg/logger"
)

// runPredict reads one JSON request from --input or stdin.
func (a *advisorApp) runPredict(c *cli.Context) error {
	if c.Args().Present() {
		return fmt.Errorf("unknown command %q", c.Args().First())
	}

	var (
		r      io.Reader = a.stdin
		source           = "stdin"
	)
	if path := c.String("input"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r, source = f, filepath.Base(path)
	}

	req, err := advisor.DecodeRequest(r)
	if err != nil {
		return err
	}
	return a.predict(c, req, domain.RunMeta{SalesSource: source, ProductsSource: source})
}

func (a *advisorApp) runFiles(c *cli.Context) error {
	salesPath, productsPath := c.String("sales"), c.String("products")
	return a.predictFiles(c, salesPath, productsPath, domain.RunMeta{
		SalesSource:    filepath.Base(salesPath),
		ProductsSource: filepath.Base(productsPath),
	})
}

func (a *advisorApp) predictFiles(c *cli.Context, salesPath, productsPath string, meta domain.RunMeta) error {
	sales, err := ingest.ReadFile(salesPath)
	if err != nil {
		return err
	}
	products, err := ingest.ReadFile(productsPath)
	if err != nil {
		return err
	}

	logger.Log.Info().
		Int("sales_rows", len(sales)).
		Int("product_rows", len(products)).
		Msg("input files loaded")

	return a.predict(c, ingest.BuildRequest(sales, products, a.leadTimeDays(c)), meta)
}

func (a *advisorApp) leadTimeDays(c *cli.Context) int {
	if v := c.Int("lead-time-days"); v > 0 {
		return v
	}
	return a.cfg.Advisor.DefaultLeadTimeDays
}

// predict runs the pipeline and writes the response. Nothing reaches stdout
// unless the whole run succeeded.
func (a *advisorApp) predict(c *cli.Context, req domain.PredictionRequest, meta domain.RunMeta) error {
	svc, cleanup, err := a.buildService(c)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := svc.Predict(c.Context, req, meta)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(run.Response); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if _, err := buf.WriteTo(a.stdout); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	if c.Bool("persist") {
		logger.Log.Info().Str("run_id", run.ID).Msg("prediction run saved")
	}
	return nil
}

// buildService wires the advisor alone, or with history, cache and archive
// when --persist is set.
func (a *advisorApp) buildService(c *cli.Context) (*service.PredictionService, func(), error) {
	predictor := advisor.NewPredictor(advisor.Options{
		DefaultLeadTimeDays: a.leadTimeDays(c),
		Workers:             a.workers(c),
	})
	if !c.Bool("persist") {
		return service.NewPredictionService(predictor, nil, nil, nil, nil), func() {}, nil
	}

	if !a.cfg.Database.Enabled {
		return nil, nil, fmt.Errorf("--persist needs DB_ENABLED=true and a database configuration")
	}
	db, err := postgres.NewDB(&a.cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	predictionCache, err := cache.NewPredictionCache(c.Context, a.cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("prediction cache unavailable, continuing without it")
	}

	var archive storage.ObjectStorage
	if a.cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(a.cfg.Storage)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		archive = client
	}

	svc := service.NewPredictionService(predictor, postgres.NewPredictionRepository(db), predictionCache, archive, nil)
	return svc, func() { db.Close() }, nil
}

func (a *advisorApp) workers(c *cli.Context) int {
	if v := c.Int("workers"); v > 0 {
		return v
	}
	return a.cfg.Advisor.Workers
}
