package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func totals(start string, qty ...float64) DailyTotals {
	t := DailyTotals{}
	s := day(start)
	for i, q := range qty {
		t.Days = append(t.Days, s.AddDate(0, 0, i))
		t.Quantities = append(t.Quantities, q)
	}
	return t
}

func TestCorrelationMatrix(t *testing.T) {
	m := NewCorrelationMatrix(map[string]DailyTotals{
		"A": totals("2024-01-01", 1, 2, 3),
		"B": totals("2024-01-01", 2, 4, 6),
		"C": totals("2024-01-01", 3, 2, 1),
		"D": totals("2024-01-01", 5, 5, 5),
	})

	c, ok := m.Correlation("A", "B")
	require.True(t, ok)
	assert.InDelta(t, 1.0, c, 1e-9)

	c, ok = m.Correlation("A", "C")
	require.True(t, ok)
	assert.InDelta(t, -1.0, c, 1e-9)

	_, ok = m.Correlation("A", "D")
	assert.False(t, ok, "constant series has no correlation")

	_, ok = m.Correlation("A", "missing")
	assert.False(t, ok)

	partner, corr, ok := m.BestPartner("A")
	require.True(t, ok)
	assert.Equal(t, "B", partner)
	assert.InDelta(t, 1.0, corr, 1e-9)

	_, _, ok = m.BestPartner("D")
	assert.False(t, ok)
}

func TestCorrelationAlignsOnUnionOfDates(t *testing.T) {
	// B only sold on the first day; the other days count as 0 for it.
	m := NewCorrelationMatrix(map[string]DailyTotals{
		"A": totals("2024-01-01", 9, 1, 1),
		"B": totals("2024-01-01", 5),
	})

	c, ok := m.Correlation("A", "B")
	require.True(t, ok)
	assert.InDelta(t, 1.0, c, 1e-9)
}

func TestBestPartnerTieKeepsSmallestName(t *testing.T) {
	m := NewCorrelationMatrix(map[string]DailyTotals{
		"A":  totals("2024-01-01", 1, 2, 3),
		"B2": totals("2024-01-01", 2, 4, 6),
		"B1": totals("2024-01-01", 2, 4, 6),
	})

	partner, _, ok := m.BestPartner("A")
	require.True(t, ok)
	assert.Equal(t, "B1", partner)
}

func TestBestPartnerSingleProduct(t *testing.T) {
	m := NewCorrelationMatrix(map[string]DailyTotals{"A": totals("2024-01-01", 1, 2)})
	_, _, ok := m.BestPartner("A")
	assert.False(t, ok)
}

func TestCorrelationPartialValue(t *testing.T) {
	m := NewCorrelationMatrix(map[string]DailyTotals{
		"A": totals("2024-01-01", 1, 2, 3, 4),
		"B": totals("2024-01-01", 2, 1, 4, 3),
	})

	c, ok := m.Correlation("A", "B")
	require.True(t, ok)
	assert.InDelta(t, 0.6, c, 1e-12)

	c2, ok := m.Correlation("B", "A")
	require.True(t, ok)
	assert.InDelta(t, c, c2, 1e-15)
}

func TestCorrelationSingleDay(t *testing.T) {
	m := NewCorrelationMatrix(map[string]DailyTotals{
		"A": totals("2024-01-01", 3),
		"B": totals("2024-01-01", 7),
	})
	_, ok := m.Correlation("A", "B")
	assert.False(t, ok)
}
