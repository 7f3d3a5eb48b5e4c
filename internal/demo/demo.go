// Package demo ships the built-in example models. Each example bundles a
// deterministic synthetic dataset and knows how to rebuild itself from a
// user-supplied dataset with the same columns.
package demo

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/vishalbelsare/causact/dag"
)

// Data holds one dataset as named columns. Numeric columns carry observed
// values, label columns carry categorical plate indices.
type Data struct {
	Numeric map[string][]float64
	Labels  map[string][]string
}

// Example is one built-in model.
type Example struct {
	// Name identifies the example on the CLI and in MCP tools.
	Name string
	// Descr is a one-line description.
	Descr string
	// NumericCols and LabelCols name the dataset columns the example
	// consumes, in CSV output order.
	NumericCols []string
	LabelCols   []string

	build func(d Data) *dag.Graph
	synth func() Data
}

// Data returns the example's bundled synthetic dataset. The dataset is
// generated from a fixed seed, so repeated calls return equal data.
func (e *Example) Data() Data { return e.synth() }

// Build assembles the example graph from the bundled dataset.
func (e *Example) Build() *dag.Graph { return e.build(e.synth()) }

// BuildFrom assembles the example graph from a user dataset. The dataset
// must supply every column the example consumes, all of equal length.
func (e *Example) BuildFrom(d Data) (*dag.Graph, error) {
	rows := -1
	check := func(col string, n int) error {
		if rows >= 0 && n != rows {
			return fmt.Errorf("example %s: column %q has %d rows, expected %d", e.Name, col, n, rows)
		}
		rows = n
		return nil
	}
	for _, col := range e.NumericCols {
		vals, ok := d.Numeric[col]
		if !ok {
			return nil, fmt.Errorf("example %s needs numeric column %q", e.Name, col)
		}
		if err := check(col, len(vals)); err != nil {
			return nil, err
		}
	}
	for _, col := range e.LabelCols {
		vals, ok := d.Labels[col]
		if !ok {
			return nil, fmt.Errorf("example %s needs label column %q", e.Name, col)
		}
		if err := check(col, len(vals)); err != nil {
			return nil, err
		}
	}
	if rows <= 0 {
		return nil, fmt.Errorf("example %s: dataset is empty", e.Name)
	}
	return e.build(d), nil
}

// DataCSV renders the bundled dataset as CSV, numeric columns first.
func (e *Example) DataCSV() []byte {
	d := e.synth()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append(append([]string(nil), e.NumericCols...), e.LabelCols...)
	_ = w.Write(header)

	rows := 0
	if len(e.NumericCols) > 0 {
		rows = len(d.Numeric[e.NumericCols[0]])
	} else if len(e.LabelCols) > 0 {
		rows = len(d.Labels[e.LabelCols[0]])
	}
	rec := make([]string, len(header))
	for i := 0; i < rows; i++ {
		for j, col := range e.NumericCols {
			rec[j] = strconv.FormatFloat(d.Numeric[col][i], 'g', -1, 64)
		}
		for j, col := range e.LabelCols {
			rec[len(e.NumericCols)+j] = d.Labels[col][i]
		}
		_ = w.Write(rec)
	}
	w.Flush()
	return buf.Bytes()
}

// Examples returns the built-in examples in presentation order.
func Examples() []*Example {
	return []*Example{cards, cardsPlated, chili, gym}
}

// Find returns the named example. Names are matched case-insensitively.
func Find(name string) (*Example, bool) {
	for _, e := range Examples() {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return nil, false
}

// Names returns the example names in presentation order.
func Names() []string {
	ex := Examples()
	names := make([]string, len(ex))
	for i, e := range ex {
		names[i] = e.Name
	}
	return names
}
