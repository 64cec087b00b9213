package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventory-advisor/internal/config"
	"github.com/andresuchdata/inventory-advisor/internal/domain"
)

const (
	predictionKeyPrefix     = "predictions"
	predictionScanBatchSize = 100
)

// PredictionCache stores responses keyed by the request that produced them.
type PredictionCache interface {
	Get(ctx context.Context, req domain.PredictionRequest) (*domain.PredictionResponse, bool, error)
	Set(ctx context.Context, req domain.PredictionRequest, resp *domain.PredictionResponse) error
	InvalidateAll(ctx context.Context) error
}

type redisPredictionCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopPredictionCache struct{}

// NewPredictionCache returns a redis-backed cache when caching is enabled and
// a noop cache otherwise.
func NewPredictionCache(ctx context.Context, cfg config.CacheConfig) (PredictionCache, error) {
	if !cfg.Enabled {
		return &noopPredictionCache{}, nil
	}

	client, err := connectRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return NewRedisPredictionCache(client, cacheTTL(cfg)), nil
}

// NewRedisPredictionCache wraps an existing client.
func NewRedisPredictionCache(client *redis.Client, ttl time.Duration) PredictionCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisPredictionCache{
		client: client,
		ttl:    ttl,
	}
}

func NewNoopPredictionCache() PredictionCache {
	return &noopPredictionCache{}
}

func (c *redisPredictionCache) Get(ctx context.Context, req domain.PredictionRequest) (*domain.PredictionResponse, bool, error) {
	key, err := BuildPredictionKey(req)
	if err != nil {
		return nil, false, err
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var resp domain.PredictionResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, false, fmt.Errorf("decode prediction cache: %w", err)
	}

	return &resp, true, nil
}

func (c *redisPredictionCache) Set(ctx context.Context, req domain.PredictionRequest, resp *domain.PredictionResponse) error {
	key, err := BuildPredictionKey(req)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode prediction cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisPredictionCache) InvalidateAll(ctx context.Context) error {
	removed, err := unlinkByPrefix(ctx, c.client, predictionKeyPrefix+":", predictionScanBatchSize)
	if err != nil {
		return err
	}
	log.Debug().Int("keys", removed).Msg("prediction cache invalidated")
	return nil
}

func (n *noopPredictionCache) Get(ctx context.Context, req domain.PredictionRequest) (*domain.PredictionResponse, bool, error) {
	return nil, false, nil
}

func (n *noopPredictionCache) Set(ctx context.Context, req domain.PredictionRequest, resp *domain.PredictionResponse) error {
	return nil
}

func (n *noopPredictionCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// BuildPredictionKey hashes the request. encoding/json writes map keys in
// sorted order, so equal requests always share a key.
func BuildPredictionKey(req domain.PredictionRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode prediction request: %w", err)
	}

	sum := sha1.Sum(raw)
	return fmt.Sprintf("%s:%s", predictionKeyPrefix, hex.EncodeToString(sum[:])), nil
}
