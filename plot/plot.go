// Package plot draws diagnostic figures for a ranked differential expression
// table.
package plot

import (
	"fmt"
	"io"
	"math"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/golimma/limma"
	"github.com/wcharczuk/go-chart/v2"
)

const (
	width  = 800
	height = 600
)

type point struct {
	x, y float64
}

// Volcano renders logFC against -log10(P.Value) as a PNG. Genes whose adjusted
// p-value is at most alpha are drawn in a second color.
func Volcano(rows []limma.TopTableRow, alpha float64, w io.Writer) error {
	return scatter(rows, alpha, "logFC", "-log10(P.Value)", w, func(r limma.TopTableRow) point {
		p := r.PValue
		if p < math.SmallestNonzeroFloat64 {
			p = math.SmallestNonzeroFloat64
		}
		return point{r.LogFC, -math.Log10(p)}
	})
}

// MA renders AveExpr against logFC as a PNG. Genes whose adjusted p-value is
// at most alpha are drawn in a second color.
func MA(rows []limma.TopTableRow, alpha float64, w io.Writer) error {
	return scatter(rows, alpha, "AveExpr", "logFC", w, func(r limma.TopTableRow) point {
		return point{r.AveExpr, r.LogFC}
	})
}

func scatter(rows []limma.TopTableRow, alpha float64, xName, yName string, w io.Writer, coords func(limma.TopTableRow) point) error {
	var background, significant chart.ContinuousSeries
	background.Name = "not significant"
	significant.Name = fmt.Sprintf("adj.P.Val <= %g", alpha)

	for _, r := range rows {
		pt := coords(r)
		if math.IsNaN(pt.x) || math.IsNaN(pt.y) || math.IsInf(pt.x, 0) || math.IsInf(pt.y, 0) {
			continue
		}

		s := &background
		if r.AdjPValue <= alpha {
			s = &significant
		}
		s.XValues = append(s.XValues, pt.x)
		s.YValues = append(s.YValues, pt.y)
	}

	background.Style = chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    2,
		DotColor:    chart.ColorBlack.WithAlpha(96),
	}
	significant.Style = chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    3,
		DotColor:    chart.ColorRed,
	}

	var series []chart.Series
	for _, s := range []chart.ContinuousSeries{background, significant} {
		if len(s.XValues) > 0 {
			series = append(series, s)
		}
	}
	if len(series) == 0 {
		return fmt.Errorf("no finite points to plot")
	}

	graph := chart.Chart{
		Width:  width,
		Height: height,
		XAxis:  chart.XAxis{Name: xName},
		YAxis:  chart.YAxis{Name: yName},
		Series: series,
	}

	return graph.Render(chart.PNG, w)
}

// PValueHistogram prints a text histogram of the p-values in 20 bins spanning
// their observed range. NaN values are skipped.
func PValueHistogram(p []float64, w io.Writer) error {
	finite := make([]float64, 0, len(p))
	for _, v := range p {
		if math.IsNaN(v) {
			continue
		}
		finite = append(finite, v)
	}
	if len(finite) == 0 {
		return fmt.Errorf("no p-values to plot")
	}

	hist := histogram.Hist(20, finite)

	return histogram.Fprint(w, hist, histogram.Linear(40))
}
