package limma

import (
	"math"

	"github.com/montanaflynn/stats"
)

// FDistFit is a scaled F (scaled inverse chi-square) prior for gene-wise
// variances: s2 ~ Scale * F(df1, DF2).
type FDistFit struct {
	Scale float64
	DF2   float64
}

// FitFDist estimates the scale and prior degrees of freedom of a scaled F
// distribution from gene-wise variances x on df1 degrees of freedom, by
// matching the first two moments of log(x). Entries that are not finite, are
// negative, or have no degrees of freedom are ignored.
func FitFDist(x, df1 []float64) FDistFit {
	xs := make([]float64, 0, len(x))
	dfs := make([]float64, 0, len(x))
	for i := range x {
		if isFinite(x[i]) && isFinite(df1[i]) && x[i] > -1e-15 && df1[i] > 1e-15 {
			xs = append(xs, math.Max(x[i], 0))
			dfs = append(dfs, df1[i])
		}
	}

	n := len(xs)
	switch n {
	case 0:
		return FDistFit{Scale: math.NaN(), DF2: math.NaN()}
	case 1:
		return FDistFit{Scale: xs[0], DF2: 0}
	}

	// Avoid zero variances
	m, err := stats.Median(xs)
	if err != nil || m == 0 {
		m = 1
	}
	for i := range xs {
		xs[i] = math.Max(xs[i], 1e-5*m)
	}

	e := make([]float64, n)
	emean := 0.0
	for i := range xs {
		e[i] = math.Log(xs[i]) - Digamma(dfs[i]/2) + math.Log(dfs[i]/2)
		emean += e[i]
	}
	emean /= float64(n)

	evar := 0.0
	for _, v := range e {
		evar += (v - emean) * (v - emean)
	}
	evar /= float64(n - 1)

	meanTrigamma := 0.0
	for _, d := range dfs {
		meanTrigamma += Trigamma(d / 2)
	}
	evar -= meanTrigamma / float64(n)

	if evar > 0 {
		df2 := 2 * TrigammaInverse(evar)
		return FDistFit{
			Scale: math.Exp(emean + Digamma(df2/2) - math.Log(df2/2)),
			DF2:   df2,
		}
	}

	return FDistFit{Scale: math.Exp(emean), DF2: math.Inf(1)}
}

// SqueezedVar holds the empirical Bayes posterior variances.
type SqueezedVar struct {
	DFPrior  float64
	VarPrior float64
	VarPost  []float64
}

// SqueezeVar shrinks each variance toward the fitted prior: the posterior is
// (df*var + d0*s0^2)/(df + d0). Genes with zero residual degrees of freedom
// take the prior variance, including when the prior itself has zero degrees
// of freedom.
func SqueezeVar(variance, df []float64) SqueezedVar {
	prior := FitFDist(variance, df)

	out := SqueezedVar{
		DFPrior:  prior.DF2,
		VarPrior: prior.Scale,
		VarPost:  make([]float64, len(variance)),
	}

	for i := range variance {
		v, d := variance[i], df[i]
		if d == 0 || math.IsNaN(v) {
			v, d = 0, 0
		}

		switch {
		case prior.DF2 == 0 && d == 0:
			out.VarPost[i] = prior.Scale
		case math.IsNaN(prior.DF2):
			out.VarPost[i] = variance[i]
		case math.IsInf(prior.DF2, 1):
			out.VarPost[i] = prior.Scale
		default:
			out.VarPost[i] = (d*v + prior.DF2*prior.Scale) / (d + prior.DF2)
		}
	}

	return out
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
