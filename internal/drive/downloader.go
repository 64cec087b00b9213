package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/inventory-advisor/internal/ingest"
	"github.com/andresuchdata/inventory-advisor/pkg/logger"
)

// fileSource is the part of Service the downloader needs.
type fileSource interface {
	ListFiles(ctx context.Context, folderID string) ([]*File, error)
	DownloadFile(ctx context.Context, file *File, w io.Writer) error
}

// DownloadOptions controls how files are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Inputs are the local copies of the two advisor input files.
type Inputs struct {
	SalesPath    string
	SalesName    string
	ProductsPath string
	ProductsName string
}

// Downloader wraps Service to download files from a specific folder.
type Downloader struct {
	service fileSource
}

// NewDownloader creates a new Downloader.
func NewDownloader(s *Service) *Downloader {
	return &Downloader{service: s}
}

// DownloadInputs picks the sales and products files in a folder and downloads
// them into DownloadDir. CSV, XLSX and native Google Sheets are considered.
func (d *Downloader) DownloadInputs(ctx context.Context, opts DownloadOptions) (*Inputs, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.service.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	candidates := make([]*File, 0, len(files))
	names := make([]string, 0, len(files))
	for _, f := range files {
		if !isTabular(f) {
			continue
		}
		candidates = append(candidates, f)
		names = append(names, f.Name)
	}

	salesIdx, productsIdx, err := ingest.ClassifyFiles(names)
	if err != nil {
		return nil, fmt.Errorf("folder %s: %w", opts.FolderID, err)
	}

	salesPath, err := d.download(ctx, candidates[salesIdx], opts.DownloadDir)
	if err != nil {
		return nil, err
	}
	productsPath, err := d.download(ctx, candidates[productsIdx], opts.DownloadDir)
	if err != nil {
		return nil, err
	}

	return &Inputs{
		SalesPath:    salesPath,
		SalesName:    candidates[salesIdx].Name,
		ProductsPath: productsPath,
		ProductsName: candidates[productsIdx].Name,
	}, nil
}

func (d *Downloader) download(ctx context.Context, f *File, dir string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	localPath := filepath.Join(dir, localName(f))
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	if err := d.service.DownloadFile(ctx, f, out); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", localPath, err)
	}

	logger.Log.Info().Str("file", f.Name).Str("path", localPath).Msg("downloaded drive file")
	return localPath, nil
}

func isTabular(f *File) bool {
	if f.IsSpreadsheet() {
		return true
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// localName keeps the Drive name but guarantees an extension ingest understands.
func localName(f *File) string {
	name := filepath.Base(f.Name)
	if f.IsSpreadsheet() && !strings.EqualFold(filepath.Ext(name), ".xlsx") {
		name += ".xlsx"
	}
	return name
}
