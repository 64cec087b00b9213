// Package ingest turns uploaded CSV and XLSX files into loosely typed records
// the advisor can normalize.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/inventory-advisor/internal/advisor"
	"github.com/andresuchdata/inventory-advisor/internal/domain"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrMissingFiles is returned when fewer than two input files are supplied.
	ErrMissingFiles = errors.New("both a sales file and a products file are required")
)

// ReadFile reads the records of a CSV or XLSX file on disk.
func ReadFile(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return ReadRecords(f, filepath.Base(path))
}

// ReadRecords parses r according to the extension of name. The first row is
// the header; every following row becomes one record keyed by header name.
func ReadRecords(r io.Reader, name string) ([]map[string]any, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", "":
		return readCSV(r, name)
	case ".xlsx", ".xlsm":
		return readXLSX(r, name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

func readCSV(r io.Reader, name string) ([]map[string]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return []map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header from %s: %w", name, err)
	}

	records := make([]map[string]any, 0)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row from %s: %w", name, err)
		}
		if rec := toRecord(header, row); rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

// readXLSX reads the first sheet of a workbook.
func readXLSX(r io.Reader, name string) ([]map[string]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file %s: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx file %s has no sheets", name)
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var header []string
	records := make([]map[string]any, 0)
	for rows.Next() {
		row, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row from %s: %w", name, err)
		}
		if header == nil {
			if isBlank(row) {
				continue
			}
			header = row
			continue
		}
		if rec := toRecord(header, row); rec != nil {
			records = append(records, rec)
		}
	}

	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("error iterating rows in %s: %w", name, err)
	}
	return records, nil
}

// toRecord pairs a row with the header. Blank rows yield nil; cells past the
// header and unnamed columns are dropped.
func toRecord(header, row []string) map[string]any {
	if isBlank(row) {
		return nil
	}

	rec := make(map[string]any, len(header))
	for i, col := range header {
		if strings.TrimSpace(col) == "" {
			continue
		}
		if _, dup := rec[col]; dup {
			continue
		}
		if i < len(row) {
			rec[col] = row[i]
		} else {
			rec[col] = ""
		}
	}
	return rec
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ClassifyFiles picks the sales and products files by name, falling back to
// upload order when the names do not tell them apart.
func ClassifyFiles(names []string) (sales, products int, err error) {
	if len(names) < 2 {
		return 0, 0, ErrMissingFiles
	}

	sales, products = -1, -1
	for i, name := range names {
		lower := strings.ToLower(filepath.Base(name))
		if sales < 0 && strings.Contains(lower, "sales") {
			sales = i
		}
		if products < 0 && strings.Contains(lower, "product") {
			products = i
		}
	}

	if sales < 0 || products < 0 || sales == products {
		return 0, 1, nil
	}
	return sales, products, nil
}

// BuildRequest assembles a prediction request from file records, using
// leadTimeDays as the request-level default lead time.
func BuildRequest(sales, products []map[string]any, leadTimeDays int) domain.PredictionRequest {
	if sales == nil {
		sales = []map[string]any{}
	}
	if products == nil {
		products = []map[string]any{}
	}

	return domain.PredictionRequest{
		Sales:    sales,
		Products: products,
		Config:   map[string]any{advisor.ConfigLeadTimeKey: leadTimeDays},
	}
}
