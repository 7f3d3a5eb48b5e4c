package draws

import (
	"math"
	"sort"
)

// Summary describes one posterior column.
type Summary struct {
	Name   string
	Mean   float64
	SD     float64
	Median float64
	Q5     float64
	Q95    float64
	// HDILow and HDIHigh bound the narrowest interval holding 90% of the
	// draws.
	HDILow  float64
	HDIHigh float64
}

// Summarize computes per-column summaries in table column order. A table
// with no draws summarizes to nil.
func Summarize(t *Table) []Summary {
	if t.Rows() == 0 {
		return nil
	}
	out := make([]Summary, 0, len(t.names))
	for _, name := range t.names {
		col, _ := t.Column(name)
		sort.Float64s(col)
		lo, hi := hdi(col, 0.9)
		out = append(out, Summary{
			Name:    name,
			Mean:    mean(col),
			SD:      sd(col),
			Median:  quantile(col, 0.5),
			Q5:      quantile(col, 0.05),
			Q95:     quantile(col, 0.95),
			HDILow:  lo,
			HDIHigh: hi,
		})
	}
	return out
}

func mean(s []float64) float64 {
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

func sd(s []float64) float64 {
	if len(s) < 2 {
		return 0
	}
	m := mean(s)
	sum := 0.0
	for _, v := range s {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(s)-1))
}

// quantile interpolates linearly between order statistics. s must be
// sorted.
func quantile(s []float64, p float64) float64 {
	if len(s) == 1 {
		return s[0]
	}
	h := float64(len(s)-1) * p
	i := int(math.Floor(h))
	if i >= len(s)-1 {
		return s[len(s)-1]
	}
	return s[i] + (h-float64(i))*(s[i+1]-s[i])
}

// hdi returns the narrowest window over sorted draws holding the given
// mass. Ties keep the leftmost window.
func hdi(s []float64, mass float64) (float64, float64) {
	n := len(s)
	m := int(math.Ceil(mass * float64(n)))
	if m >= n {
		return s[0], s[n-1]
	}
	lo, hi := s[0], s[m-1]
	for i := 1; i+m-1 < n; i++ {
		if s[i+m-1]-s[i] < hi-lo {
			lo, hi = s[i], s[i+m-1]
		}
	}
	return lo, hi
}
