package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventory-advisor/internal/advisor"
	"github.com/andresuchdata/inventory-advisor/internal/cache"
	"github.com/andresuchdata/inventory-advisor/internal/service"
)

func (a *advisorApp) runCacheFlush(c *cli.Context) error {
	if !a.cfg.Cache.Enabled {
		return fmt.Errorf("cache flush needs CACHE_ENABLED=true and a redis configuration")
	}

	predictionCache, err := cache.NewPredictionCache(c.Context, a.cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	svc := service.NewPredictionService(advisor.NewPredictor(advisor.Options{}), nil, predictionCache, nil, nil)
	if err := svc.FlushCache(c.Context); err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, "prediction cache flushed")
	return nil
}
