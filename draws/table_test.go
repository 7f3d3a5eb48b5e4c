package draws

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_AppendRow(t *testing.T) {
	t.Parallel()

	tb, err := NewTable([]string{"theta", "sigma"})
	require.NoError(t, err)

	require.NoError(t, tb.AppendRow([]float64{0.5, 1.0}))
	require.NoError(t, tb.AppendRow([]float64{0.6, 1.1}))
	assert.Equal(t, 2, tb.Rows())

	col, ok := tb.Column("theta")
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, 0.6}, col)

	_, ok = tb.Column("missing")
	assert.False(t, ok)

	assert.Error(t, tb.AppendRow([]float64{1}), "short row")
}

func TestNewTable_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewTable(nil)
	assert.Error(t, err)

	_, err = NewTable([]string{"a", "a"})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewTable([]string{"a", ""})
	assert.ErrorContains(t, err, "empty")
}

func TestTable_CSVRoundTrip(t *testing.T) {
	t.Parallel()

	// Level-derived names may carry spaces and commas; CSV quoting must
	// preserve them.
	tb, err := NewTable([]string{"theta_Kia Forte", "theta_a,b"})
	require.NoError(t, err)
	require.NoError(t, tb.AppendRow([]float64{0.25, -1.5}))
	require.NoError(t, tb.AppendRow([]float64{0.125, 2}))

	var buf bytes.Buffer
	require.NoError(t, tb.WriteCSV(&buf))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, tb.Names(), back.Names())
	col, _ := back.Column("theta_a,b")
	assert.Equal(t, []float64{-1.5, 2}, col)
}

func TestReadCSV_Errors(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorContains(t, err, "empty")

	_, err = ReadCSV(strings.NewReader("theta\nnot-a-number\n"))
	assert.ErrorContains(t, err, "bad value")
}

func TestTable_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	tb, err := NewTable([]string{"alpha", "beta"})
	require.NoError(t, err)
	require.NoError(t, tb.AppendRow([]float64{1, 2}))
	require.NoError(t, tb.AppendRow([]float64{3, 4}))

	raw, err := json.Marshal(tb)
	require.NoError(t, err)

	var back Table
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, tb.Names(), back.Names())
	assert.Equal(t, 2, back.Rows())
	col, _ := back.Column("beta")
	assert.Equal(t, []float64{2, 4}, col)
}

func TestTable_UnmarshalRejectsRagged(t *testing.T) {
	t.Parallel()

	var tb Table
	err := json.Unmarshal([]byte(`{"names":["a","b"],"cols":[[1,2],[1]]}`), &tb)
	assert.Error(t, err)
}
