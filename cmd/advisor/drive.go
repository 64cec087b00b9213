package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventory-advisor/internal/domain"
	"github.com/andresuchdata/inventory-advisor/internal/drive"
	"github.com/andresuchdata/inventory-advisor/pkg/logger"
)

func (a *advisorApp) runDrive(c *cli.Context) error {
	credentials, err := a.driveCredentials(c)
	if err != nil {
		return err
	}

	svc, err := drive.NewService(c.Context, credentials)
	if err != nil {
		return fmt.Errorf("failed to initialize Google Drive service: %w", err)
	}

	folderID := c.String("folder-id")
	if folderID == "" {
		folderID = a.cfg.Drive.FolderID
	}
	if folderID == "" {
		path := c.String("folder-path")
		if path == "" {
			return fmt.Errorf("either --folder-id or --folder-path is required")
		}
		if folderID, err = svc.FindFolderByPath(c.Context, path); err != nil {
			return err
		}
	}

	dir := c.String("download-dir")
	if dir == "" {
		if dir, err = os.MkdirTemp("", "advisor-drive-*"); err != nil {
			return fmt.Errorf("create download dir: %w", err)
		}
		defer os.RemoveAll(dir)
	}

	inputs, err := drive.NewDownloader(svc).DownloadInputs(c.Context, drive.DownloadOptions{
		FolderID:    folderID,
		DownloadDir: dir,
	})
	if err != nil {
		return err
	}

	logger.Log.Info().
		Str("sales", inputs.SalesName).
		Str("products", inputs.ProductsName).
		Msg("downloaded input files from drive")

	return a.predictFiles(c, inputs.SalesPath, inputs.ProductsPath, domain.RunMeta{
		SalesSource:    inputs.SalesName,
		ProductsSource: inputs.ProductsName,
	})
}

func (a *advisorApp) driveCredentials(c *cli.Context) (string, error) {
	if a.cfg.Drive.CredentialsJSON != "" {
		return a.cfg.Drive.CredentialsJSON, nil
	}

	path := c.String("credentials-file")
	if path == "" {
		path = a.cfg.Drive.CredentialsFile
	}
	if path == "" {
		return "", fmt.Errorf("no Google credentials: set GOOGLE_CREDENTIALS_JSON or --credentials-file")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read credentials file: %w", err)
	}
	return string(raw), nil
}
