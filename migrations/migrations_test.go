package migrations

import (
	"io/fs"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantityColumnsAreBigint(t *testing.T) {
	data, err := fs.ReadFile(FS, "001_predictions.sql")
	require.NoError(t, err)

	for _, column := range []string{"current_stock", "predicted_loss"} {
		re := regexp.MustCompile(`(?m)^\s*` + column + `\s+(\w+)`)
		m := re.FindSubmatch(data)
		require.NotNil(t, m, column)
		assert.Equal(t, "BIGINT", string(m[1]), column)
	}
}

func TestFSHoldsOnlySQL(t *testing.T) {
	names, err := fs.Glob(FS, "*")
	require.NoError(t, err)
	require.NotEmpty(t, names)
	for _, name := range names {
		assert.Regexp(t, `^\d{3}_\w+\.sql$`, name)
	}
}
