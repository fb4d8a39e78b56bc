package ttest

import (
	"math"
	"testing"
)

func TestStudent(t *testing.T) {
	type expectation struct {
		a, b []float64
		diff float64
		t    float64
		df   float64
	}

	// t values worked by hand: pooled variance over (1/na + 1/nb)
	expectations := []expectation{
		{
			a:    []float64{1, 2, 3},
			b:    []float64{4, 5, 6},
			diff: 3,
			t:    3 / math.Sqrt(1*(2.0/3.0)),
			df:   4,
		},
		{
			a:    []float64{2, 4, 6, 8},
			b:    []float64{1, 3},
			diff: -3,
			t:    -3 / math.Sqrt((3*20.0/3.0+1*2)/4*(1.0/4+1.0/2)),
			df:   4,
		},
		{
			a:    []float64{1, math.NaN(), 3},
			b:    []float64{2, 4},
			diff: 1,
			t:    1 / math.Sqrt(2*(1.0/2+1.0/2)),
			df:   2,
		},
	}

	for k, v := range expectations {
		res := Student(v.a, v.b)
		if math.Abs(res.Diff-v.diff) > 1e-12 {
			t.Errorf("Case %d: diff %v, expected %v", k, res.Diff, v.diff)
		}
		if math.Abs(res.T-v.t) > 1e-9 {
			t.Errorf("Case %d: t %v, expected %v", k, res.T, v.t)
		}
		if res.DF != v.df {
			t.Errorf("Case %d: df %v, expected %v", k, res.DF, v.df)
		}
		if !(res.P > 0 && res.P < 1) {
			t.Errorf("Case %d: p %v out of range", k, res.P)
		}
	}
}

func TestStudentKnownP(t *testing.T) {
	// t = 3.674235, df = 4 gives a two-sided p of about 0.0213
	res := Student([]float64{1, 2, 3}, []float64{4, 5, 6})
	if math.Abs(res.P-0.02131164) > 1e-6 {
		t.Errorf("p %v, expected about 0.0213", res.P)
	}
}

func TestStudentTooFew(t *testing.T) {
	res := Student([]float64{1}, []float64{2})
	if !math.IsNaN(res.T) || !math.IsNaN(res.P) {
		t.Errorf("expected NaN t and p with no degrees of freedom, got %+v", res)
	}
	if res.Diff != 1 {
		t.Errorf("diff %v, expected 1", res.Diff)
	}
}
