package limma

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

type EBayesOptions struct {
	// Assumed proportion of genes that are differentially expressed, used
	// for the B-statistic.
	Proportion float64

	// Bounds on the standard deviation of the true log fold changes of
	// differentially expressed genes, relative to the residual standard
	// deviation.
	StdevCoefLim [2]float64
}

func DefaultEBayesOptions() EBayesOptions {
	return EBayesOptions{
		Proportion:   0.01,
		StdevCoefLim: [2]float64{0.1, 4},
	}
}

// Moderation holds the empirical Bayes statistics added by EBayes.
type Moderation struct {
	Proportion float64

	// Prior for the gene-wise variances
	DFPrior float64
	S2Prior float64

	// Prior variance of the non-null coefficients, per coefficient
	VarPrior []float64

	// Per gene
	S2Post  []float64
	DFTotal []float64

	// genes x coefficients
	T      *mat.Dense
	PValue *mat.Dense
	Lods   *mat.Dense

	// Moderated F over all coefficients, per gene
	F       []float64
	FDF1    int
	FPValue []float64
}

// EBayes moderates the t-statistics of every coefficient by shrinking the
// gene-wise residual variances toward a common prior, and computes
// B-statistics (log-odds of differential expression) and moderated F
// statistics. The returned Fit is new; the input is unchanged.
func EBayes(fit *Fit, opts EBayesOptions) (*Fit, error) {
	if fit == nil || fit.NGenes() < 1 {
		return nil, fmt.Errorf("EBayes requires a fit with at least one gene")
	}

	if !(opts.Proportion > 0 && opts.Proportion < 1) {
		return nil, fmt.Errorf("proportion must be between 0 and 1, got %v", opts.Proportion)
	}
	if opts.StdevCoefLim[0] < 0 || opts.StdevCoefLim[1] < opts.StdevCoefLim[0] {
		return nil, fmt.Errorf("invalid stdev.coef.lim %v", opts.StdevCoefLim)
	}

	nGenes, nCoefs := fit.NGenes(), fit.NCoefs()

	pooled := 0.0
	for _, d := range fit.DFResidual {
		pooled += d
	}
	if pooled == 0 {
		return nil, fmt.Errorf("no residual degrees of freedom in linear model fits")
	}

	s2 := make([]float64, nGenes)
	finite := 0
	for i, s := range fit.Sigma {
		s2[i] = s * s
		if isFinite(s) {
			finite++
		}
	}
	if finite == 0 {
		return nil, fmt.Errorf("no finite residual standard errors")
	}

	squeezed := SqueezeVar(s2, fit.DFResidual)

	out := fit.clone()
	mod := &Moderation{
		Proportion: opts.Proportion,
		DFPrior:    squeezed.DFPrior,
		S2Prior:    squeezed.VarPrior,
		S2Post:     squeezed.VarPost,
		DFTotal:    make([]float64, nGenes),
		T:          mat.NewDense(nGenes, nCoefs, nil),
		PValue:     mat.NewDense(nGenes, nCoefs, nil),
		Lods:       mat.NewDense(nGenes, nCoefs, nil),
	}
	out.Moderated = mod

	for i := 0; i < nGenes; i++ {
		mod.DFTotal[i] = math.Min(fit.DFResidual[i]+squeezed.DFPrior, pooled)

		for j := 0; j < nCoefs; j++ {
			t := fit.Coefficients.At(i, j) / fit.StdevUnscaled.At(i, j) / math.Sqrt(mod.S2Post[i])
			mod.T.Set(i, j, t)
			mod.PValue.Set(i, j, twoSidedT(t, mod.DFTotal[i]))
		}
	}

	// B-statistics. StdevCoefLim is relative to the residual standard
	// deviation.
	lim := [2]float64{
		opts.StdevCoefLim[0] * opts.StdevCoefLim[0] / mod.S2Prior,
		opts.StdevCoefLim[1] * opts.StdevCoefLim[1] / mod.S2Prior,
	}
	mod.VarPrior = make([]float64, nCoefs)
	for j := 0; j < nCoefs; j++ {
		vp := tmixture(mat.Col(nil, j, mod.T), mat.Col(nil, j, fit.StdevUnscaled), mod.DFTotal, opts.Proportion, lim)
		if math.IsNaN(vp) {
			vp = 1 / mod.S2Prior
		}
		mod.VarPrior[j] = vp
	}

	infDF := mod.DFPrior > 1e6
	logPrior := math.Log(opts.Proportion / (1 - opts.Proportion))
	for i := 0; i < nGenes; i++ {
		for j := 0; j < nCoefs; j++ {
			su2 := fit.StdevUnscaled.At(i, j) * fit.StdevUnscaled.At(i, j)
			r := (su2 + mod.VarPrior[j]) / su2
			t2 := mod.T.At(i, j) * mod.T.At(i, j)

			var kernel float64
			if infDF {
				kernel = t2 * (1 - 1/r) / 2
			} else {
				df := mod.DFTotal[i]
				kernel = (1 + df) / 2 * math.Log((t2+df)/(t2/r+df))
			}
			mod.Lods.Set(i, j, logPrior-math.Log(r)/2+kernel)
		}
	}

	mod.F, mod.FDF1 = moderatedF(mod.T, fit.CovCoefficients)
	mod.FPValue = make([]float64, nGenes)
	for i, f := range mod.F {
		mod.FPValue[i] = fUpper(f, float64(mod.FDF1), mod.DFTotal[i])
	}

	return out, nil
}

// tmixture estimates the prior variance of the non-null coefficients from the
// largest moderated t-statistics, by matching them to the order statistics
// expected under a two-component mixture.
func tmixture(tstat, stdevUnscaled, df []float64, proportion float64, v0lim [2]float64) float64 {
	type entry struct {
		t, v1, df float64
	}

	entries := make([]entry, 0, len(tstat))
	for i, t := range tstat {
		if math.IsNaN(t) || math.IsNaN(stdevUnscaled[i]) {
			continue
		}
		entries = append(entries, entry{t: math.Abs(t), v1: stdevUnscaled[i] * stdevUnscaled[i], df: df[i]})
	}

	ngenes := len(entries)
	ntarget := int(math.Ceil(proportion / 2 * float64(ngenes)))
	if ntarget < 1 {
		return math.NaN()
	}

	// If ntarget is very small, ensure p at least matches the selected
	// proportion so that ptarget < 1
	p := math.Max(float64(ntarget)/float64(ngenes), proportion)

	// Put every statistic on the largest df
	maxDF := 0.0
	for _, e := range entries {
		maxDF = math.Max(maxDF, e.df)
	}
	for k, e := range entries {
		if e.df >= maxDF {
			continue
		}
		if tail := tUpper(e.t, e.df); tail > 0 && tail < 1 {
			entries[k].t = tUpperQuantile(tail, maxDF)
		}
		entries[k].df = maxDF
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].t > entries[j].t })
	entries = entries[:ntarget]

	sum := 0.0
	for k, e := range entries {
		r := float64(k + 1)
		p0 := 2 * tUpper(e.t, maxDF)
		ptarget := ((r-0.5)/float64(ngenes) - (1-p)*p0) / p

		v0 := 0.0
		if ptarget > p0 {
			qtarget := tUpperQuantile(ptarget/2, maxDF)
			v0 = e.v1 * ((e.t/qtarget)*(e.t/qtarget) - 1)
		}
		v0 = math.Min(math.Max(v0, v0lim[0]), v0lim[1])
		sum += v0
	}

	return sum / float64(ntarget)
}

// moderatedF combines the t-statistics of all coefficients into an F-statistic
// per gene, accounting for the correlation between coefficients. It returns
// the statistics and their numerator degrees of freedom.
func moderatedF(tstat *mat.Dense, cov *mat.Dense) ([]float64, int) {
	nGenes, nCoefs := tstat.Dims()

	// Correlation matrix of the coefficients
	cor := mat.NewSymDense(nCoefs, nil)
	for a := 0; a < nCoefs; a++ {
		for b := a; b < nCoefs; b++ {
			cor.SetSym(a, b, cov.At(a, b)/math.Sqrt(cov.At(a, a)*cov.At(b, b)))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(cor, true); !ok {
		out := make([]float64, nGenes)
		for i := range out {
			out[i] = math.NaN()
		}
		return out, nCoefs
	}

	// gonum returns eigenvalues in ascending order
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	largest := values[len(values)-1]
	keep := make([]int, 0, nCoefs)
	for k := len(values) - 1; k >= 0; k-- {
		if values[k]/largest > 1e-8 {
			keep = append(keep, k)
		}
	}
	r := len(keep)

	// Q = V_r diag(1/sqrt(lambda_r)) / sqrt(r)
	q := mat.NewDense(nCoefs, r, nil)
	for c, k := range keep {
		scale := 1 / math.Sqrt(values[k]) / math.Sqrt(float64(r))
		for a := 0; a < nCoefs; a++ {
			q.Set(a, c, vectors.At(a, k)*scale)
		}
	}

	out := make([]float64, nGenes)
	row := make([]float64, nCoefs)
	for i := 0; i < nGenes; i++ {
		observed := 0
		for a := 0; a < nCoefs; a++ {
			row[a] = tstat.At(i, a)
			if math.IsNaN(row[a]) {
				row[a] = 0
				continue
			}
			observed++
		}
		if observed == 0 {
			out[i] = math.NaN()
			continue
		}

		f := 0.0
		for c := 0; c < r; c++ {
			z := 0.0
			for a := 0; a < nCoefs; a++ {
				z += row[a] * q.At(a, c)
			}
			f += z * z
		}
		out[i] = f
	}

	return out, r
}
