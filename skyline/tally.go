package skyline

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Tally counts change detection results. It is a value which can be
// accumulated per worker and merged.
type Tally struct {
	Total      int `json:"total"`
	Changed    int `json:"changed"`
	NoCoverage int `json:"noCoverage"`
}

// Add accounts for one sample.
func (t *Tally) Add(c Change) {
	t.Total++
	switch c.Status {
	case Changed:
		t.Changed++
	case NoCoverage:
		t.NoCoverage++
	}
}

// Merge returns the sum of two tallies.
func (t Tally) Merge(o Tally) Tally {
	return Tally{
		Total:      t.Total + o.Total,
		Changed:    t.Changed + o.Changed,
		NoCoverage: t.NoCoverage + o.NoCoverage,
	}
}

// Proportion is the fraction of samples with a change. Samples
// without coverage are counted in the denominator.
func (t Tally) Proportion() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Changed) / float64(t.Total)
}

// Summary describes a distribution of values.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	// Lower and Upper bound the central 95% of the values.
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Summarize computes the summary of values; x is not modified.
func Summarize(x []float64) Summary {
	if len(x) == 0 {
		return Summary{}
	}
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)
	return Summary{
		N:      len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Lower:  stat.Quantile(0.025, stat.Empirical, sorted, nil),
		Upper:  stat.Quantile(0.975, stat.Empirical, sorted, nil),
	}
}

// Band summarizes resampled values window by window, using only the
// samples covering each window. rows[i][k] is the value of sample i
// in window k.
func Band(rows [][]Value, nWindows int) []Summary {
	band := make([]Summary, nWindows)
	x := make([]float64, 0, len(rows))
	for k := range band {
		x = x[:0]
		for _, row := range rows {
			if k < len(row) && row[k].Covered {
				x = append(x, row[k].Size)
			}
		}
		band[k] = Summarize(x)
	}
	return band
}
