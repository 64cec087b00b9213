package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventory-advisor/internal/repository/postgres"
	"github.com/andresuchdata/inventory-advisor/migrations"
	"github.com/andresuchdata/inventory-advisor/pkg/logger"
)

func (a *advisorApp) initDB(c *cli.Context) error {
	// Initialize database connection
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(c.Context); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	return nil
}

func (a *advisorApp) closeDB(c *cli.Context) error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *advisorApp) runMigrate(c *cli.Context) error {
	var fsys fs.FS = migrations.FS
	if dir := c.String("migrations-dir"); dir != "" {
		fsys = os.DirFS(dir)
	}

	applied, err := postgres.RunMigrations(c.Context, a.db, fsys)
	if err != nil {
		return err
	}

	for _, name := range applied {
		fmt.Fprintf(a.stdout, "applied %s\n", name)
	}
	logger.Log.Info().Int("applied", len(applied)).Msg("migrations complete")
	return nil
}
