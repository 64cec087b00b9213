package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadRecordsCSV(t *testing.T) {
	input := "\ufeffProduct,Date,Quantity\n" +
		"Widget,2024-01-01,\"1,200\"\n" +
		"\n" +
		"Gadget,2024-01-02\n" +
		",,\n"

	records, err := ReadRecords(strings.NewReader(input), "sales.csv")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, map[string]any{"\ufeffProduct": "Widget", "Date": "2024-01-01", "Quantity": "1,200"}, records[0])
	assert.Equal(t, "", records[1]["Quantity"], "short rows are padded")
}

func TestReadRecordsEmptyCSV(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(""), "products.csv")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestReadRecordsXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"product", "stock", "shelf_life"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Widget", 50, 5}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"Gadget", 10}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	records, err := ReadRecords(&buf, "Products.XLSX")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Widget", records[0]["product"])
	assert.Equal(t, "50", records[0]["stock"])
	assert.Equal(t, "5", records[0]["shelf_life"])
	assert.Equal(t, "", records[1]["shelf_life"])
}

func TestReadRecordsUnsupported(t *testing.T) {
	_, err := ReadRecords(strings.NewReader("{}"), "sales.json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, os.WriteFile(path, []byte("product,stock\nWidget,5\n"), 0o644))

	records, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"product": "Widget", "stock": "5"}}, records)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestClassifyFiles(t *testing.T) {
	tests := []struct {
		name         string
		files        []string
		wantSales    int
		wantProducts int
	}{
		{"by name", []string{"Products-2024.csv", "daily_sales.csv"}, 1, 0},
		{"positional fallback", []string{"a.csv", "b.csv"}, 0, 1},
		{"one name matches", []string{"stock.csv", "sales.csv"}, 0, 1},
		{"same file matches both", []string{"product_sales.csv", "other.csv"}, 0, 1},
		{"extra files", []string{"notes.csv", "sales.xlsx", "product.xlsx"}, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p, err := ClassifyFiles(tt.files)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSales, s)
			assert.Equal(t, tt.wantProducts, p)
		})
	}

	_, _, err := ClassifyFiles([]string{"sales.csv"})
	assert.ErrorIs(t, err, ErrMissingFiles)
}

func TestBuildRequest(t *testing.T) {
	req := BuildRequest(nil, nil, 9)
	assert.NotNil(t, req.Sales)
	assert.NotNil(t, req.Products)
	assert.Equal(t, 9, req.Config["leadTimeDays"])
}
