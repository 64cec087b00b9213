package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventory-advisor/internal/advisor"
	"github.com/andresuchdata/inventory-advisor/internal/cache"
	"github.com/andresuchdata/inventory-advisor/internal/domain"
	"github.com/andresuchdata/inventory-advisor/internal/metrics"
	"github.com/andresuchdata/inventory-advisor/internal/repository"
	"github.com/andresuchdata/inventory-advisor/internal/storage"
)

// ErrHistoryDisabled is returned by the history lookups when neither a
// repository nor an archive is configured.
var ErrHistoryDisabled = errors.New("prediction history is not enabled")

type PredictionService struct {
	predictor *advisor.Predictor
	repo      repository.PredictionRepository
	cache     cache.PredictionCache
	archive   *runArchive
	metrics   *metrics.Recorder
}

// NewPredictionService wires the advisor to its optional collaborators. repo,
// archive and recorder may be nil; a nil cache falls back to the noop cache.
func NewPredictionService(
	predictor *advisor.Predictor,
	repo repository.PredictionRepository,
	cacheImpl cache.PredictionCache,
	archive storage.ObjectStorage,
	recorder *metrics.Recorder,
) *PredictionService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopPredictionCache()
	}
	svc := &PredictionService{
		predictor: predictor,
		repo:      repo,
		cache:     cacheImpl,
		metrics:   recorder,
	}
	if archive != nil {
		svc.archive = &runArchive{store: archive}
	}
	return svc
}

// Predict computes (or reuses) the response for req and records the run.
func (s *PredictionService) Predict(ctx context.Context, req domain.PredictionRequest, meta domain.RunMeta) (*domain.PredictionRun, error) {
	req = s.withLeadTime(req)
	resp, err := s.compute(ctx, req)
	if err != nil {
		return nil, err
	}

	run := &domain.PredictionRun{
		ID:             uuid.NewString(),
		SalesSource:    meta.SalesSource,
		ProductsSource: meta.ProductsSource,
		ProductCount:   len(resp.Predictions),
		CreatedAt:      time.Now().UTC(),
		Response:       resp,
	}

	if s.repo != nil {
		if err := s.repo.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("save prediction run: %w", err)
		}
	}

	if s.archive != nil {
		s.archive.save(ctx, run, req)
	}

	log.Info().
		Str("run_id", run.ID).
		Int("products", run.ProductCount).
		Msg("prediction run completed")

	return run, nil
}

func (s *PredictionService) compute(ctx context.Context, req domain.PredictionRequest) (*domain.PredictionResponse, error) {
	if resp, ok, err := s.cache.Get(ctx, req); err == nil && ok {
		s.metrics.ObserveCache(true)
		return resp, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("predictions: cache get failed")
	}
	s.metrics.ObserveCache(false)

	start := time.Now()
	resp, err := s.predictor.Predict(ctx, req)
	if err != nil {
		s.metrics.ObservePrediction(0, time.Since(start), err)
		return nil, err
	}
	s.metrics.ObservePrediction(len(resp.Predictions), time.Since(start), nil)

	if err := s.cache.Set(ctx, req, resp); err != nil {
		log.Warn().Err(err).Msg("predictions: cache set failed")
	}
	return resp, nil
}

// withLeadTime writes the lead time the predictor will fall back to into the
// request config, so cache keys and archived requests carry it.
func (s *PredictionService) withLeadTime(req domain.PredictionRequest) domain.PredictionRequest {
	cfg := make(map[string]any, len(req.Config)+1)
	maps.Copy(cfg, req.Config)
	cfg[advisor.ConfigLeadTimeKey] = s.predictor.ResolveLeadTime(req.Config)
	req.Config = cfg
	return req
}

// FlushCache drops every cached prediction response.
func (s *PredictionService) FlushCache(ctx context.Context) error {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("flush prediction cache: %w", err)
	}
	log.Info().Msg("prediction cache flushed")
	return nil
}

// ListRuns returns the newest stored runs. The database is preferred; the
// archive serves history when it is the only store.
func (s *PredictionService) ListRuns(ctx context.Context, limit int) ([]domain.PredictionRun, error) {
	switch {
	case s.repo != nil:
		return s.repo.ListRuns(ctx, limit)
	case s.archive != nil:
		return s.archive.list(ctx, limit)
	}
	return nil, ErrHistoryDisabled
}

// GetRun returns one stored run with its response.
func (s *PredictionService) GetRun(ctx context.Context, id string) (*domain.PredictionRun, error) {
	if s.repo == nil && s.archive == nil {
		return nil, ErrHistoryDisabled
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrRunNotFound
	}
	if s.repo != nil {
		return s.repo.GetRun(ctx, id)
	}
	return s.archive.get(ctx, id)
}
