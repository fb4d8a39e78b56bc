// Package ttest implements the classical pooled-variance two-sample t-test.
package ttest

import (
	"math"

	"github.com/carbocation/runningvariance"
	"gonum.org/v1/gonum/stat/distuv"
)

type Result struct {
	// Mean of b minus mean of a
	Diff float64
	T    float64
	DF   float64

	// Two-sided
	P float64
}

// Student compares b against a assuming equal variances. NaN observations are
// skipped. With fewer than one residual degree of freedom every field except
// Diff is NaN.
func Student(a, b []float64) Result {
	ra, rb := summarize(a), summarize(b)
	na, nb := float64(ra.N), float64(rb.N)

	res := Result{
		Diff: rb.Mean() - ra.Mean(),
		T:    math.NaN(),
		DF:   na + nb - 2,
		P:    math.NaN(),
	}
	if na < 1 || nb < 1 {
		res.Diff = math.NaN()
	}
	if res.DF < 1 || math.IsNaN(res.Diff) {
		res.DF = math.NaN()
		return res
	}

	pooled := ((na-1)*variance(ra) + (nb-1)*variance(rb)) / res.DF
	res.T = res.Diff / math.Sqrt(pooled*(1/na+1/nb))
	res.P = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: res.DF}.Survival(math.Abs(res.T))

	return res
}

func summarize(x []float64) *runningvariance.RunningStat {
	rs := runningvariance.NewRunningStat()
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		rs.Push(v)
	}

	return rs
}

// A single observation contributes nothing to the pooled variance.
func variance(rs *runningvariance.RunningStat) float64 {
	if rs.N < 2 {
		return 0
	}

	sd := rs.StandardDeviation()
	return sd * sd
}
