package draws

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableOf(t *testing.T, name string, vals []float64) *Table {
	t.Helper()
	tb, err := NewTable([]string{name})
	require.NoError(t, err)
	for _, v := range vals {
		require.NoError(t, tb.AppendRow([]float64{v}))
	}
	return tb
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	tb := tableOf(t, "theta", []float64{5, 1, 4, 2, 3})
	s := Summarize(tb)
	require.Len(t, s, 1)

	assert.Equal(t, "theta", s[0].Name)
	assert.InDelta(t, 3.0, s[0].Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), s[0].SD, 1e-12)
	assert.InDelta(t, 3.0, s[0].Median, 1e-12)
	assert.InDelta(t, 1.2, s[0].Q5, 1e-12, "linear interpolation between order statistics")
	assert.InDelta(t, 4.8, s[0].Q95, 1e-12)
}

func TestSummarize_HDIPrefersNarrowWindow(t *testing.T) {
	t.Parallel()

	// Nine tight values and one far outlier: the 90% interval drops the
	// outlier, a central interval would not.
	tb := tableOf(t, "theta", []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 100})
	s := Summarize(tb)
	require.Len(t, s, 1)
	assert.Equal(t, 0.0, s[0].HDILow)
	assert.Equal(t, 8.0, s[0].HDIHigh)
}

func TestSummarize_SmallTables(t *testing.T) {
	t.Parallel()

	t.Run("NoDraws", func(t *testing.T) {
		t.Parallel()
		tb, err := NewTable([]string{"theta"})
		require.NoError(t, err)
		assert.Nil(t, Summarize(tb))
	})

	t.Run("SingleDraw", func(t *testing.T) {
		t.Parallel()
		s := Summarize(tableOf(t, "theta", []float64{2.5}))
		require.Len(t, s, 1)
		assert.Equal(t, 2.5, s[0].Mean)
		assert.Equal(t, 0.0, s[0].SD)
		assert.Equal(t, 2.5, s[0].Median)
		assert.Equal(t, 2.5, s[0].HDILow)
		assert.Equal(t, 2.5, s[0].HDIHigh)
	})
}

func TestSummarize_ColumnOrder(t *testing.T) {
	t.Parallel()

	tb, err := NewTable([]string{"b", "a"})
	require.NoError(t, err)
	require.NoError(t, tb.AppendRow([]float64{1, 2}))

	s := Summarize(tb)
	require.Len(t, s, 2)
	assert.Equal(t, "b", s[0].Name, "summaries keep table layout order")
	assert.Equal(t, "a", s[1].Name)
}
