package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/andresuchdata/inventory-advisor/internal/config"
)

const (
	connectTimeout    = 10 * time.Second
	defaultConcurrent = 10
)

// DB is a sqlx pool whose transactions are bounded by a semaphore.
type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

// NewDB opens the pool described by cfg and verifies it answers.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMin) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database %s/%s: %w", cfg.Host, cfg.DBName, err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.DBName).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("database connected")

	return Wrap(db, cfg.MaxConcurrentTx), nil
}

// Wrap bounds an open pool to maxTx concurrent transactions.
func Wrap(db *sqlx.DB, maxTx int) *DB {
	if maxTx <= 0 {
		maxTx = defaultConcurrent
	}
	return &DB{
		DB:  db,
		sem: semaphore.NewWeighted(int64(maxTx)),
	}
}

// WithTx runs fn inside a transaction, committing when it returns nil and
// rolling back on error or panic.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			rollback(tx)
			panic(p)
		}
		if err != nil {
			rollback(tx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

func rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Error().Err(err).Msg("could not rollback transaction")
	}
}
