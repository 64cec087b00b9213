package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/inventory-advisor/internal/domain"
)

func flatSeries(n int, v float64, last float64) DailySeries {
	values := make([]float64, n)
	for i := range values {
		values[i] = v
	}
	values[n-1] = last
	return DailySeries{Start: day("2024-01-01"), Values: values}
}

func TestDetectAnomaly(t *testing.T) {
	t.Run("spike", func(t *testing.T) {
		a := DetectAnomaly(flatSeries(30, 10, 100))
		require.NotNil(t, a)
		assert.True(t, a.Anomaly)
		assert.Equal(t, domain.AnomalySpike, a.Reason)
		assert.Equal(t, 100, a.LastQuantity)
		assert.Equal(t, 13.0, a.Avg30)
	})

	t.Run("drop", func(t *testing.T) {
		a := DetectAnomaly(flatSeries(30, 10, 0))
		require.NotNil(t, a)
		assert.Equal(t, domain.AnomalyDrop, a.Reason)
		assert.Zero(t, a.LastQuantity)
		assert.Equal(t, 9.67, a.Avg30)
	})

	t.Run("only trailing thirty days count", func(t *testing.T) {
		s := flatSeries(40, 10, 25)
		for i := 0; i < 10; i++ {
			s.Values[i] = 1000
		}
		assert.Nil(t, DetectAnomaly(s))
	})

	t.Run("steady", func(t *testing.T) {
		assert.Nil(t, DetectAnomaly(flatSeries(30, 10, 12)))
	})

	t.Run("no sales", func(t *testing.T) {
		assert.Nil(t, DetectAnomaly(DailySeries{}))
		assert.Nil(t, DetectAnomaly(flatSeries(5, 0, 0)))
	})

	t.Run("last quantity truncates", func(t *testing.T) {
		a := DetectAnomaly(flatSeries(30, 1, 40.9))
		require.NotNil(t, a)
		assert.Equal(t, 40, a.LastQuantity)
	})
}
