package limma

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

type SortBy string

const (
	SortByB       SortBy = "B"
	SortByP       SortBy = "P"
	SortByT       SortBy = "t"
	SortByLogFC   SortBy = "logFC"
	SortByAveExpr SortBy = "AveExpr"
	SortByF       SortBy = "F"
	SortByNone    SortBy = "none"
)

func ParseSortBy(s string) (SortBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "b", "":
		return SortByB, nil
	case "p", "p.value":
		return SortByP, nil
	case "t":
		return SortByT, nil
	case "logfc", "m":
		return SortByLogFC, nil
	case "aveexpr", "a", "amean":
		return SortByAveExpr, nil
	case "f":
		return SortByF, nil
	case "none":
		return SortByNone, nil
	}

	return "", fmt.Errorf("unknown sort order %q", s)
}

type TopTableOptions struct {
	// 0-based coefficient indices. Exactly one for TopTable; one or more for
	// TopTableF.
	Coef []int

	// Maximum number of rows; <= 0 returns every gene that passes the
	// cutoffs.
	Number int

	AdjustMethod AdjustMethod
	SortBy       SortBy

	// Cutoff on the adjusted p-value; 1 keeps everything.
	PValue float64

	// Minimum absolute log fold change; 0 keeps everything.
	LFC float64

	// Confidence level for logFC intervals, e.g. 0.95. 0 disables.
	Confint float64
}

func DefaultTopTableOptions() TopTableOptions {
	return TopTableOptions{
		Coef:         []int{0},
		AdjustMethod: AdjustBH,
		SortBy:       SortByB,
		PValue:       1,
	}
}

type TopTableRow struct {
	ID        string  `csv:"ID"`
	LogFC     float64 `csv:"logFC"`
	CILeft    float64 `csv:"CI.L"`
	CIRight   float64 `csv:"CI.R"`
	AveExpr   float64 `csv:"AveExpr"`
	T         float64 `csv:"t"`
	PValue    float64 `csv:"P.Value"`
	AdjPValue float64 `csv:"adj.P.Val"`
	B         float64 `csv:"B"`
}

type TopTableFRow struct {
	ID        string
	Coefs     []float64
	AveExpr   float64
	F         float64
	PValue    float64
	AdjPValue float64
}

func checkCoefs(fit *Fit, coefs []int) error {
	if fit == nil {
		return fmt.Errorf("no fit given")
	}
	if fit.Moderated == nil {
		return ErrNotModerated
	}
	if len(coefs) == 0 {
		return fmt.Errorf("%w: no coefficient requested", ErrCoefOutOfRange)
	}
	for _, j := range coefs {
		if j < 0 || j >= fit.NCoefs() {
			return fmt.Errorf("%w: %d (fit has %d coefficients)", ErrCoefOutOfRange, j, fit.NCoefs())
		}
	}

	return nil
}

// TopTable ranks every gene by its moderated statistics for a single
// coefficient. Adjusted p-values are computed over all genes before the
// p-value and log fold change cutoffs are applied.
func TopTable(fit *Fit, opts TopTableOptions) ([]TopTableRow, error) {
	if err := checkCoefs(fit, opts.Coef); err != nil {
		return nil, err
	}
	if len(opts.Coef) != 1 {
		return nil, fmt.Errorf("TopTable takes exactly one coefficient, got %d; use TopTableF", len(opts.Coef))
	}
	if opts.Confint < 0 || opts.Confint >= 1 {
		return nil, fmt.Errorf("confidence level must be in [0, 1), got %v", opts.Confint)
	}

	j := opts.Coef[0]
	mod := fit.Moderated

	p := mat.Col(nil, j, mod.PValue)
	adj, err := PAdjust(p, opts.AdjustMethod)
	if err != nil {
		return nil, err
	}

	rows := make([]TopTableRow, 0, fit.NGenes())
	for i := 0; i < fit.NGenes(); i++ {
		row := TopTableRow{
			ID:        fit.GeneIDs[i],
			LogFC:     fit.Coefficients.At(i, j),
			AveExpr:   fit.Amean[i],
			T:         mod.T.At(i, j),
			PValue:    p[i],
			AdjPValue: adj[i],
			B:         mod.Lods.At(i, j),
			CILeft:    math.NaN(),
			CIRight:   math.NaN(),
		}

		if opts.Confint > 0 {
			margin := fit.StdevUnscaled.At(i, j) * math.Sqrt(mod.S2Post[i]) * tUpperQuantile((1-opts.Confint)/2, mod.DFTotal[i])
			row.CILeft = row.LogFC - margin
			row.CIRight = row.LogFC + margin
		}

		if opts.PValue < 1 && !(row.AdjPValue <= opts.PValue) {
			continue
		}
		if opts.LFC > 0 && !(math.Abs(row.LogFC) >= opts.LFC) {
			continue
		}

		rows = append(rows, row)
	}

	var key func(r TopTableRow) float64
	switch opts.SortBy {
	case SortByB, "":
		key = func(r TopTableRow) float64 { return -r.B }
	case SortByP:
		key = func(r TopTableRow) float64 { return r.PValue }
	case SortByT:
		key = func(r TopTableRow) float64 { return -math.Abs(r.T) }
	case SortByLogFC:
		key = func(r TopTableRow) float64 { return -math.Abs(r.LogFC) }
	case SortByAveExpr:
		key = func(r TopTableRow) float64 { return -r.AveExpr }
	case SortByNone:
	default:
		return nil, fmt.Errorf("cannot sort a single-coefficient table by %q", opts.SortBy)
	}

	if key != nil {
		sort.SliceStable(rows, func(a, b int) bool { return nanLess(key(rows[a]), key(rows[b])) })
	}

	if opts.Number > 0 && opts.Number < len(rows) {
		rows = rows[:opts.Number]
	}

	return rows, nil
}

// TopTableF ranks genes by the moderated F-statistic over several
// coefficients jointly.
func TopTableF(fit *Fit, opts TopTableOptions) ([]TopTableFRow, error) {
	if err := checkCoefs(fit, opts.Coef); err != nil {
		return nil, err
	}

	mod := fit.Moderated
	nGenes, k := fit.NGenes(), len(opts.Coef)

	// Restrict t and the coefficient covariance to the requested columns
	tsub := mat.NewDense(nGenes, k, nil)
	covsub := mat.NewDense(k, k, nil)
	for c, j := range opts.Coef {
		for i := 0; i < nGenes; i++ {
			tsub.Set(i, c, mod.T.At(i, j))
		}
		for c2, j2 := range opts.Coef {
			covsub.Set(c, c2, fit.CovCoefficients.At(j, j2))
		}
	}

	f, df1 := moderatedF(tsub, covsub)
	p := make([]float64, nGenes)
	for i := range p {
		p[i] = fUpper(f[i], float64(df1), mod.DFTotal[i])
	}
	adj, err := PAdjust(p, opts.AdjustMethod)
	if err != nil {
		return nil, err
	}

	rows := make([]TopTableFRow, 0, nGenes)
	for i := 0; i < nGenes; i++ {
		row := TopTableFRow{
			ID:        fit.GeneIDs[i],
			Coefs:     make([]float64, k),
			AveExpr:   fit.Amean[i],
			F:         f[i],
			PValue:    p[i],
			AdjPValue: adj[i],
		}

		largest := 0.0
		for c, j := range opts.Coef {
			row.Coefs[c] = fit.Coefficients.At(i, j)
			largest = math.Max(largest, math.Abs(row.Coefs[c]))
		}

		if opts.PValue < 1 && !(row.AdjPValue <= opts.PValue) {
			continue
		}
		if opts.LFC > 0 && !(largest >= opts.LFC) {
			continue
		}

		rows = append(rows, row)
	}

	switch opts.SortBy {
	case SortByF, SortByB, "":
		sort.SliceStable(rows, func(a, b int) bool { return nanLess(-rows[a].F, -rows[b].F) })
	case SortByP:
		sort.SliceStable(rows, func(a, b int) bool { return nanLess(rows[a].PValue, rows[b].PValue) })
	case SortByNone:
	default:
		return nil, fmt.Errorf("cannot sort a multi-coefficient table by %q", opts.SortBy)
	}

	if opts.Number > 0 && opts.Number < len(rows) {
		rows = rows[:opts.Number]
	}

	return rows, nil
}

// nanLess orders NaN after every number.
func nanLess(a, b float64) bool {
	switch {
	case math.IsNaN(a):
		return false
	case math.IsNaN(b):
		return true
	}

	return a < b
}
