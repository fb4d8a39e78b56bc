package exprtable

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// SampleSummary describes the distribution of one sample's expression values,
// ignoring missing cells.
type SampleSummary struct {
	Sample  string
	N       int
	Missing int
	Median  float64
	Q1      float64
	Q3      float64
}

func (s SampleSummary) String() string {
	return fmt.Sprintf("%s: N=%d missing=%d median=%.3f IQR=[%.3f, %.3f]", s.Sample, s.N, s.Missing, s.Median, s.Q1, s.Q3)
}

// Summarize computes a SampleSummary for every column of the table. Samples
// with no observed values get NaN quantiles.
func (t *Table) Summarize() ([]SampleSummary, error) {
	out := make([]SampleSummary, 0, t.NSamples())

	for j, sample := range t.Samples {
		observed := make([]float64, 0, t.NGenes())
		for _, v := range t.Column(j) {
			if math.IsNaN(v) {
				continue
			}
			observed = append(observed, v)
		}

		summary := SampleSummary{
			Sample:  sample,
			N:       len(observed),
			Missing: t.NGenes() - len(observed),
			Median:  math.NaN(),
			Q1:      math.NaN(),
			Q3:      math.NaN(),
		}

		if len(observed) > 0 {
			var err error
			if summary.Median, err = stats.Median(observed); err != nil {
				return nil, fmt.Errorf("sample %s: %w", sample, err)
			}

			// Quartiles by linear interpolation of the empirical CDF, which is
			// defined for any number of observations
			sort.Float64s(observed)
			summary.Q1 = stat.Quantile(0.25, stat.LinInterp, observed, nil)
			summary.Q3 = stat.Quantile(0.75, stat.LinInterp, observed, nil)
		}

		out = append(out, summary)
	}

	return out, nil
}
