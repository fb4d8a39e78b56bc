package limma

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestPAdjust(t *testing.T) {
	nan := math.NaN()
	p := []float64{0.01, 0.04, 0.03, 0.02, nan}
	by := 0.04 * (1 + 1.0/2 + 1.0/3 + 1.0/4)

	type expectation struct {
		method AdjustMethod
		want   []float64
	}
	expectations := []expectation{
		{AdjustNone, []float64{0.01, 0.04, 0.03, 0.02, nan}},
		{AdjustBonferroni, []float64{0.04, 0.16, 0.12, 0.08, nan}},
		{AdjustHolm, []float64{0.04, 0.06, 0.06, 0.06, nan}},
		{AdjustHochberg, []float64{0.04, 0.04, 0.04, 0.04, nan}},
		{AdjustBH, []float64{0.04, 0.04, 0.04, 0.04, nan}},
		{AdjustBY, []float64{by, by, by, by, nan}},
	}

	for _, v := range expectations {
		got, err := PAdjust(p, v.method)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(v.want, got, cmpopts.EquateNaNs(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", v.method, diff)
		}
	}
}

func TestPAdjustBHStepUp(t *testing.T) {
	got, err := PAdjust([]float64{0.5, 0.001, 0.2}, AdjustBH)
	if err != nil {
		t.Fatal(err)
	}

	want := []float64{0.5, 0.003, 0.3}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("BH mismatch (-want +got):\n%s", diff)
	}

	capped, err := PAdjust([]float64{0.6, 0.9}, AdjustBonferroni)
	if err != nil {
		t.Fatal(err)
	}
	if capped[0] != 1 || capped[1] != 1 {
		t.Errorf("bonferroni should cap at 1, got %v", capped)
	}
}

func TestParseAdjustMethod(t *testing.T) {
	for in, want := range map[string]AdjustMethod{
		"BH":         AdjustBH,
		"fdr":        AdjustBH,
		"BY":         AdjustBY,
		"holm":       AdjustHolm,
		"Hochberg":   AdjustHochberg,
		"bonferroni": AdjustBonferroni,
		"none":       AdjustNone,
	} {
		got, err := ParseAdjustMethod(in)
		if err != nil || got != want {
			t.Errorf("%q: got %v (%v), expected %v", in, got, err, want)
		}
	}

	if _, err := ParseAdjustMethod("sidak"); err == nil {
		t.Errorf("expected an error for an unknown method")
	}
	if _, err := PAdjust([]float64{0.1}, AdjustMethod("sidak")); err == nil {
		t.Errorf("expected an error for an unknown method")
	}
}
