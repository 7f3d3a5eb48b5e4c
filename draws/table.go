// Package draws holds posterior draws as a named-column table and computes
// the summaries shown after sampling.
package draws

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Table is a fixed set of named columns filled row by row. Every column
// always has the same length.
type Table struct {
	names []string
	index map[string]int
	cols  [][]float64
}

// NewTable returns an empty table with the given column names.
func NewTable(names []string) (*Table, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("table needs at least one column")
	}
	t := &Table{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
		cols:  make([][]float64, len(names)),
	}
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, ok := t.index[n]; ok {
			return nil, fmt.Errorf("duplicate column name %q", n)
		}
		t.index[n] = i
	}
	return t, nil
}

// Names returns the column names in layout order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Rows returns the number of draws.
func (t *Table) Rows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0])
}

// AppendRow adds one draw. The row must have one value per column.
func (t *Table) AppendRow(row []float64) error {
	if len(row) != len(t.names) {
		return fmt.Errorf("row has %d values, table has %d columns", len(row), len(t.names))
	}
	for i, v := range row {
		t.cols[i] = append(t.cols[i], v)
	}
	return nil
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), t.cols[i]...), true
}

// WriteCSV writes the table with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.names); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(t.names))
	for r := 0; r < t.Rows(); r++ {
		for c := range t.cols {
			row[c] = strconv.FormatFloat(t.cols[c][r], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table written by WriteCSV or by a sampling backend: a
// header row of column names followed by numeric rows.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty draws output")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	t, err := NewTable(header)
	if err != nil {
		return nil, err
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row := make([]float64, len(rec))
		for i, s := range rec {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: bad value %q", line, header[i], s)
			}
			row[i] = v
		}
		if err := t.AppendRow(row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
}

type tableJSON struct {
	Names []string    `json:"names"`
	Cols  [][]float64 `json:"cols"`
}

// MarshalJSON encodes the table column-major for cache storage.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableJSON{Names: t.names, Cols: t.cols})
}

// UnmarshalJSON decodes a table written by MarshalJSON.
func (t *Table) UnmarshalJSON(data []byte) error {
	var raw tableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	nt, err := NewTable(raw.Names)
	if err != nil {
		return err
	}
	if len(raw.Cols) != len(raw.Names) {
		return fmt.Errorf("table has %d names but %d columns", len(raw.Names), len(raw.Cols))
	}
	rows := -1
	for i, col := range raw.Cols {
		if rows >= 0 && len(col) != rows {
			return fmt.Errorf("column %q has %d rows, expected %d", raw.Names[i], len(col), rows)
		}
		rows = len(col)
	}
	nt.cols = raw.Cols
	*t = *nt
	return nil
}
