package limma

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// Trigamma is the second derivative of log Gamma(x), for x > 0. Small
// arguments are shifted up with the recurrence psi1(x) = psi1(x+1) + 1/x^2 and
// the asymptotic expansion is used from x >= 10.
func Trigamma(x float64) float64 {
	if math.IsNaN(x) || x <= 0 {
		return math.NaN()
	}
	if math.IsInf(x, 1) {
		return 0
	}

	acc := 0.0
	for x < 10 {
		acc += 1 / (x * x)
		x++
	}

	x2 := 1 / (x * x)
	// 1/x + 1/(2x^2) + 1/(6x^3) - 1/(30x^5) + 1/(42x^7) - 1/(30x^9) + 5/(66x^11)
	series := 1/x + x2/2 + (1/x)*x2*(1.0/6-x2*(1.0/30-x2*(1.0/42-x2*(1.0/30-x2*5.0/66))))

	return acc + series
}

// Tetragamma is the third derivative of log Gamma(x), for x > 0.
func Tetragamma(x float64) float64 {
	if math.IsNaN(x) || x <= 0 {
		return math.NaN()
	}
	if math.IsInf(x, 1) {
		return 0
	}

	acc := 0.0
	for x < 10 {
		acc -= 2 / (x * x * x)
		x++
	}

	x2 := 1 / (x * x)
	// -1/x^2 - 1/x^3 - 1/(2x^4) + 1/(6x^6) - 1/(6x^8) + 3/(10x^10) - 5/(6x^12)
	series := -x2 - x2/x - x2*x2*(0.5-x2*(1.0/6-x2*(1.0/6-x2*(3.0/10-x2*5.0/6))))

	return acc + series
}

// TrigammaInverse solves Trigamma(y) = x for y by Newton iteration on the
// scale of 1/Trigamma, which is nearly linear.
func TrigammaInverse(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return math.NaN()
	case x < 0:
		return math.NaN()
	case x > 1e7:
		return 1 / math.Sqrt(x)
	case x < 1e-6:
		return 1 / x
	}

	y := 0.5 + 1/x
	for iter := 0; iter < 50; iter++ {
		tri := Trigamma(y)
		dif := tri * (1 - tri/x) / Tetragamma(y)
		y += dif
		if -dif/y < 1e-8 {
			break
		}
	}

	return y
}

// Digamma is re-exported for the variance prior estimator.
func Digamma(x float64) float64 {
	return mathext.Digamma(x)
}

// tUpper is P(T > t) for a Student t on df degrees of freedom. An infinite df
// is the standard normal.
func tUpper(t, df float64) float64 {
	if math.IsNaN(t) || math.IsNaN(df) {
		return math.NaN()
	}
	if math.IsInf(df, 1) {
		return distuv.UnitNormal.Survival(t)
	}

	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(t)
}

// tUpperQuantile returns t such that P(T > t) = p.
func tUpperQuantile(p, df float64) float64 {
	if math.IsNaN(p) || math.IsNaN(df) {
		return math.NaN()
	}
	if math.IsInf(df, 1) {
		return distuv.UnitNormal.Quantile(1 - p)
	}

	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(1 - p)
}

// twoSidedT is the two-sided p-value of a t-statistic.
func twoSidedT(t, df float64) float64 {
	return 2 * tUpper(math.Abs(t), df)
}

// fUpper is P(F > f) for an F distribution with d1 and d2 degrees of freedom.
// Very large d2 uses the chi-square limit.
func fUpper(f, d1, d2 float64) float64 {
	if math.IsNaN(f) || math.IsNaN(d2) {
		return math.NaN()
	}
	if d2 > 1e6 {
		return distuv.ChiSquared{K: d1}.Survival(f * d1)
	}

	return distuv.F{D1: d1, D2: d2}.Survival(f)
}
