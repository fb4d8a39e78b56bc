package limma

import (
	"errors"
	"fmt"
	"math"

	"github.com/carbocation/golimma/contrast"
	"github.com/carbocation/golimma/design"
	"github.com/carbocation/golimma/exprtable"
	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrCoefOutOfRange    = errors.New("coefficient index out of range")
	ErrNotModerated      = errors.New("fit has not been moderated; call EBayes first")
)

// Fit is the result of fitting a linear model to every gene. It is treated as
// immutable: ContrastsFit and EBayes return new values.
type Fit struct {
	GeneIDs   []string
	CoefNames []string

	// genes x coefficients
	Coefficients  *mat.Dense
	StdevUnscaled *mat.Dense

	// Residual standard deviation and residual degrees of freedom per gene.
	// Sigma is NaN when a gene has no residual degrees of freedom.
	Sigma      []float64
	DFResidual []float64

	// Average log-expression of each gene across its observed samples
	Amean []float64

	// Unscaled covariance of the coefficients for a fully observed gene
	CovCoefficients *mat.Dense

	Design    *design.Matrix
	Contrasts *contrast.Matrix

	// Set by EBayes
	Moderated *Moderation
}

func (f *Fit) NGenes() int {
	return len(f.GeneIDs)
}

func (f *Fit) NCoefs() int {
	return len(f.CoefNames)
}

// CoefIndex returns the position of the named coefficient, or -1.
func (f *Fit) CoefIndex(name string) int {
	for i, v := range f.CoefNames {
		if v == name {
			return i
		}
	}

	return -1
}

// OrdinaryT returns the unmoderated t-statistic of coefficient j for every
// gene: coefficient / (stdev.unscaled * sigma).
func (f *Fit) OrdinaryT(j int) ([]float64, error) {
	if j < 0 || j >= f.NCoefs() {
		return nil, fmt.Errorf("%w: %d (fit has %d coefficients)", ErrCoefOutOfRange, j, f.NCoefs())
	}

	out := make([]float64, f.NGenes())
	for i := range out {
		out[i] = f.Coefficients.At(i, j) / f.StdevUnscaled.At(i, j) / f.Sigma[i]
	}

	return out, nil
}

// clone copies everything except the moderation.
func (f *Fit) clone() *Fit {
	out := &Fit{
		GeneIDs:         f.GeneIDs,
		CoefNames:       append([]string(nil), f.CoefNames...),
		Coefficients:    mat.DenseCopyOf(f.Coefficients),
		StdevUnscaled:   mat.DenseCopyOf(f.StdevUnscaled),
		Sigma:           append([]float64(nil), f.Sigma...),
		DFResidual:      append([]float64(nil), f.DFResidual...),
		Amean:           append([]float64(nil), f.Amean...),
		CovCoefficients: mat.DenseCopyOf(f.CovCoefficients),
		Design:          f.Design,
		Contrasts:       f.Contrasts,
	}

	return out
}

// LmFit fits y = X*beta by least squares for every gene (row) of the table,
// where X is the design. Genes with missing values are fit using only their
// observed samples; coefficients that are not estimable from those samples are
// NaN.
func LmFit(table *exprtable.Table, d *design.Matrix) (*Fit, error) {
	if table == nil || d == nil {
		return nil, fmt.Errorf("LmFit requires an expression table and a design")
	}

	if table.NSamples() != d.NSamples() {
		return nil, fmt.Errorf("%w: expression table has %d samples but the design has %d rows", ErrDimensionMismatch, table.NSamples(), d.NSamples())
	}

	if err := d.CheckFullRank(); err != nil {
		return nil, err
	}

	nGenes, nSamples, nCoefs := table.NGenes(), table.NSamples(), d.NCoefs()

	if nSamples < nCoefs {
		return nil, fmt.Errorf("%w: %d samples cannot estimate %d coefficients", ErrDimensionMismatch, nSamples, nCoefs)
	}

	cov, err := unscaledCovariance(d.X)
	if err != nil {
		return nil, pfx.Err(err)
	}

	fit := &Fit{
		GeneIDs:         table.GeneIDs,
		CoefNames:       append([]string(nil), d.Columns...),
		Coefficients:    mat.NewDense(nGenes, nCoefs, nil),
		StdevUnscaled:   mat.NewDense(nGenes, nCoefs, nil),
		Sigma:           make([]float64, nGenes),
		DFResidual:      make([]float64, nGenes),
		Amean:           make([]float64, nGenes),
		CovCoefficients: cov,
		Design:          d,
	}

	// Shared pieces for fully observed genes: beta = (X'X)^-1 X' y
	var hat mat.Dense
	hat.Mul(cov, d.X.T())
	stdev := make([]float64, nCoefs)
	for k := range stdev {
		stdev[k] = math.Sqrt(cov.At(k, k))
	}

	for i := 0; i < nGenes; i++ {
		y := table.Row(i)
		fit.Amean[i] = nanMean(y)

		if !hasNaN(y) {
			beta := mat.NewVecDense(nCoefs, nil)
			beta.MulVec(&hat, mat.NewVecDense(nSamples, y))

			fit.Coefficients.SetRow(i, beta.RawVector().Data)
			fit.StdevUnscaled.SetRow(i, stdev)
			fit.DFResidual[i] = float64(nSamples - nCoefs)
			fit.Sigma[i] = residualSigma(d.X, beta, y, nSamples-nCoefs)
			continue
		}

		fitPartial(fit, i, d.X, y)
	}

	return fit, nil
}

// fitPartial fits gene i using only its observed samples.
func fitPartial(fit *Fit, i int, x *mat.Dense, y []float64) {
	nCoefs := fit.NCoefs()

	coefs := make([]float64, nCoefs)
	stdev := make([]float64, nCoefs)
	for k := range coefs {
		coefs[k] = math.NaN()
		stdev[k] = math.NaN()
	}
	fit.Sigma[i] = math.NaN()
	fit.DFResidual[i] = 0

	defer func() {
		fit.Coefficients.SetRow(i, coefs)
		fit.StdevUnscaled.SetRow(i, stdev)
	}()

	rows := make([]int, 0, len(y))
	for s, v := range y {
		if !math.IsNaN(v) {
			rows = append(rows, s)
		}
	}

	// Columns that are identically zero on the observed samples cannot be
	// estimated.
	cols := make([]int, 0, nCoefs)
	for k := 0; k < nCoefs; k++ {
		for _, s := range rows {
			if x.At(s, k) != 0 {
				cols = append(cols, k)
				break
			}
		}
	}

	if len(rows) < 1 || len(cols) < 1 || len(rows) < len(cols) {
		return
	}

	xo := mat.NewDense(len(rows), len(cols), nil)
	yo := make([]float64, len(rows))
	for r, s := range rows {
		yo[r] = y[s]
		for c, k := range cols {
			xo.Set(r, c, x.At(s, k))
		}
	}

	sub := &design.Matrix{X: xo}
	if sub.Rank() < len(cols) {
		return
	}

	cov, err := unscaledCovariance(xo)
	if err != nil {
		return
	}

	var hat mat.Dense
	hat.Mul(cov, xo.T())
	beta := mat.NewVecDense(len(cols), nil)
	beta.MulVec(&hat, mat.NewVecDense(len(yo), yo))

	for c, k := range cols {
		coefs[k] = beta.AtVec(c)
		stdev[k] = math.Sqrt(cov.At(c, c))
	}

	df := len(rows) - len(cols)
	fit.DFResidual[i] = float64(df)
	fit.Sigma[i] = residualSigma(xo, beta, yo, df)
}

// unscaledCovariance returns (X'X)^-1.
func unscaledCovariance(x mat.Matrix) (*mat.Dense, error) {
	var xtx mat.Dense
	xtx.Mul(x.T(), x)

	var cov mat.Dense
	if err := cov.Inverse(&xtx); err != nil {
		return nil, err
	}

	return &cov, nil
}

func residualSigma(x mat.Matrix, beta *mat.VecDense, y []float64, df int) float64 {
	if df < 1 {
		return math.NaN()
	}

	var fitted mat.VecDense
	fitted.MulVec(x, beta)

	rss := 0.0
	for s, v := range y {
		r := v - fitted.AtVec(s)
		rss += r * r
	}

	return math.Sqrt(rss / float64(df))
}

func hasNaN(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) {
			return true
		}
	}

	return false
}

func nanMean(x []float64) float64 {
	observed := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			observed = append(observed, v)
		}
	}

	if len(observed) == 0 {
		return math.NaN()
	}

	return stat.Mean(observed, nil)
}
