package main

import (
	"context"
	"database/sql"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventory-advisor/internal/config"
	"github.com/andresuchdata/inventory-advisor/pkg/logger"
)

// advisorApp carries the streams and state shared by every command.
type advisorApp struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
	db     *sql.DB
}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	a := &advisorApp{stdin: stdin, stdout: stdout, stderr: stderr}

	return &cli.App{
		Name:      "advisor",
		Usage:     "Turn sales history and stock levels into per-product inventory advice",
		UsageText: "advisor [global options] < request.json > response.json",
		Reader:    stdin,
		Writer:    stderr,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level written to stderr (debug, info, warn, error)",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format written to stderr (console, json)",
				Value:   logger.FormatConsole,
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.IntFlag{
				Name:  "lead-time-days",
				Usage: "Default supplier lead time when neither the product nor the request sets one",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Products evaluated in parallel (0 uses every CPU)",
			},
			&cli.BoolFlag{
				Name:  "persist",
				Usage: "Save the run to Postgres and archive it when storage is enabled",
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Read the JSON request from a file instead of stdin",
			},
		},
		Before: a.setup,
		Action: a.runPredict,
		Commands: []*cli.Command{
			{
				Name:  "files",
				Usage: "Predict from a sales file and a products file (CSV or XLSX)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "sales",
						Usage:    "Sales history file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "products",
						Usage:    "Product master file",
						Required: true,
					},
				},
				Action: a.runFiles,
			},
			{
				Name:  "drive",
				Usage: "Download the sales and products files from a Google Drive folder and predict",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "folder-id",
						Usage:   "Drive folder holding the input files",
						EnvVars: []string{"DRIVE_FOLDER_ID"},
					},
					&cli.StringFlag{
						Name:  "folder-path",
						Usage: "Slash separated folder path, used when no folder id is given",
					},
					&cli.StringFlag{
						Name:  "download-dir",
						Usage: "Where to keep the downloaded files (a temporary directory by default)",
					},
					&cli.StringFlag{
						Name:    "credentials-file",
						Usage:   "Service account JSON key",
						EnvVars: []string{"GOOGLE_APPLICATION_CREDENTIALS"},
					},
				},
				Action: a.runDrive,
			},
			{
				Name:  "migrate",
				Usage: "Apply the prediction history schema",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:  "migrations-dir",
						Usage: "Directory of *.sql files (the embedded schema by default)",
					},
				},
				Before: a.initDB,
				After:  a.closeDB,
				Action: a.runMigrate,
			},
			{
				Name:  "cache",
				Usage: "Manage the Redis prediction cache",
				Subcommands: []*cli.Command{
					{
						Name:   "flush",
						Usage:  "Drop every cached prediction response",
						Action: a.runCacheFlush,
					},
				},
			},
		},
	}
}

func (a *advisorApp) setup(c *cli.Context) error {
	logger.SetOutput(a.stderr, c.String("log-format"))
	logger.SetLevel(c.String("log-level"))

	cfg, err := config.FromViper(viper.New())
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func main() {
	// .env is optional for the CLI
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("advisor failed")
		stop()
		os.Exit(1)
	}
}
