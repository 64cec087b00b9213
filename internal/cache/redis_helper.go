package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventory-advisor/internal/config"
)

const (
	defaultCacheTTL    = 5 * time.Minute
	redisDialTimeout   = 5 * time.Second
	redisSocketTimeout = 2 * time.Second
)

// connectRedis builds a client from cfg and checks that it answers.
func connectRedis(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", opts.Addr, err)
	}

	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("prediction cache connected")
	return client, nil
}

// cacheTTL converts the configured seconds, falling back to the default.
func cacheTTL(cfg config.CacheConfig) time.Duration {
	if cfg.TTLSeconds <= 0 {
		return defaultCacheTTL
	}
	return time.Duration(cfg.TTLSeconds) * time.Second
}

// buildRedisOptions prefers REDIS_URL and otherwise assembles the address
// from host and port.
func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		host, port := cfg.RedisHost, cfg.RedisPort
		if host == "" {
			host = "127.0.0.1"
		}
		if port == "" {
			port = "6379"
		}
		opts = &redis.Options{
			Addr:     net.JoinHostPort(host, port),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	opts.DialTimeout = redisDialTimeout
	opts.ReadTimeout = redisSocketTimeout
	opts.WriteTimeout = redisSocketTimeout
	return opts, nil
}

// unlinkByPrefix removes every key under prefix, batchSize keys per pipeline.
func unlinkByPrefix(ctx context.Context, client *redis.Client, prefix string, batchSize int) (int, error) {
	iter := client.Scan(ctx, 0, prefix+"*", int64(batchSize)).Iterator()

	removed := 0
	batch := make([]string, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := client.Unlink(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis unlink failed: %w", err)
		}
		removed += len(batch)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan failed: %w", err)
	}
	return removed, flush()
}
