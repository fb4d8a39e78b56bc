package limma

import (
	"math"
	"testing"

	"github.com/carbocation/golimma/contrast"
	"github.com/carbocation/golimma/design"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestTopTableConfint(t *testing.T) {
	fit := runPipeline(t, synthTable(t, 20), "D_group - V_group")

	rows, err := TopTable(fit, TopTableOptions{Coef: []int{0}, AdjustMethod: AdjustBH, SortBy: SortByNone, PValue: 1, Confint: 0.95})
	if err != nil {
		t.Fatal(err)
	}

	for i, r := range rows {
		q := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: fit.Moderated.DFTotal[i]}.Quantile(0.975)
		margin := q * fit.StdevUnscaled.At(i, 0) * math.Sqrt(fit.Moderated.S2Post[i])

		if math.Abs(r.CILeft-(r.LogFC-margin)) > 1e-9 || math.Abs(r.CIRight-(r.LogFC+margin)) > 1e-9 {
			t.Errorf("%s: CI [%v, %v] around %v, expected margin %v", r.ID, r.CILeft, r.CIRight, r.LogFC, margin)
		}

		// The interval excludes zero exactly when P < 0.05
		excludesZero := r.CILeft > 0 || r.CIRight < 0
		if excludesZero != (r.PValue < 0.05) {
			t.Errorf("%s: CI [%v, %v] disagrees with P %v", r.ID, r.CILeft, r.CIRight, r.PValue)
		}
	}

	if _, err := TopTable(fit, TopTableOptions{Coef: []int{0}, PValue: 1, Confint: 1.5}); err == nil {
		t.Errorf("expected an error for an invalid confidence level")
	}
}

func TestTopTableCutoffs(t *testing.T) {
	fit := runPipeline(t, synthTable(t, 60), "D_group - V_group")

	all, err := TopTable(fit, TopTableOptions{Coef: []int{0}, AdjustMethod: AdjustBH, SortBy: SortByLogFC, PValue: 1})
	if err != nil {
		t.Fatal(err)
	}
	for k := 1; k < len(all); k++ {
		if math.Abs(all[k].LogFC) > math.Abs(all[k-1].LogFC) {
			t.Fatalf("row %d: |logFC| %v above previous %v", k, all[k].LogFC, all[k-1].LogFC)
		}
	}

	wantP, wantLFC := 0, 0
	for _, r := range all {
		if r.AdjPValue <= 0.05 && math.Abs(r.LogFC) >= 1 {
			wantP++
		}
		if math.Abs(r.LogFC) >= 1 {
			wantLFC++
		}
	}

	filtered, err := TopTable(fit, TopTableOptions{Coef: []int{0}, AdjustMethod: AdjustBH, SortBy: SortByB, PValue: 0.05, LFC: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != wantP || wantP == 0 {
		t.Errorf("p and lfc cutoffs kept %d rows, expected %d", len(filtered), wantP)
	}

	lfcOnly, err := TopTable(fit, TopTableOptions{Coef: []int{0}, AdjustMethod: AdjustBH, SortBy: SortByB, PValue: 1, LFC: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(lfcOnly) != wantLFC {
		t.Errorf("lfc cutoff kept %d rows, expected %d", len(lfcOnly), wantLFC)
	}

	// Adjusted p-values do not depend on the cutoffs
	byID := make(map[string]float64)
	for _, r := range all {
		byID[r.ID] = r.AdjPValue
	}
	for _, r := range filtered {
		if byID[r.ID] != r.AdjPValue {
			t.Errorf("%s: adj.P.Val %v after filtering, %v before", r.ID, r.AdjPValue, byID[r.ID])
		}
	}
}

func TestTopTableF(t *testing.T) {
	table := synthTable(t, 30)

	labels := []string{"A", "A", "A", "B", "B", "B", "C", "C", "C", "C"}
	d, err := design.FromGroups(table.Samples, labels, nil)
	if err != nil {
		t.Fatal(err)
	}
	fit, err := LmFit(table, d)
	if err != nil {
		t.Fatal(err)
	}
	cm, err := contrast.Make(d.Columns, "B - A", "C - A", "C - B")
	if err != nil {
		t.Fatal(err)
	}
	fit2, err := ContrastsFit(fit, cm)
	if err != nil {
		t.Fatal(err)
	}
	fit3, err := EBayes(fit2, DefaultEBayesOptions())
	if err != nil {
		t.Fatal(err)
	}

	// Three pairwise contrasts among three groups span only two dimensions
	if fit3.Moderated.FDF1 != 2 {
		t.Errorf("F numerator df %d, expected 2", fit3.Moderated.FDF1)
	}

	rows, err := TopTableF(fit3, TopTableOptions{Coef: []int{0, 1, 2}, AdjustMethod: AdjustBH, SortBy: SortByF, PValue: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != table.NGenes() {
		t.Fatalf("TopTableF returned %d rows for %d genes", len(rows), table.NGenes())
	}

	overall := make(map[string]float64)
	for i, id := range fit3.GeneIDs {
		overall[id] = fit3.Moderated.F[i]
	}
	for k, r := range rows {
		if k > 0 && r.F > rows[k-1].F {
			t.Errorf("row %d: F %v above previous %v", k, r.F, rows[k-1].F)
		}
		if len(r.Coefs) != 3 {
			t.Errorf("%s: %d coefficients, expected 3", r.ID, len(r.Coefs))
		}
		if math.Abs(r.F-overall[r.ID]) > 1e-9*math.Max(1, r.F) {
			t.Errorf("%s: F over every contrast %v differs from the moderated F %v", r.ID, r.F, overall[r.ID])
		}
	}

	// Two of the three contrasts carry the same information as all three
	two, err := TopTableF(fit3, TopTableOptions{Coef: []int{0, 1}, AdjustMethod: AdjustBH, SortBy: SortByNone, PValue: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range two {
		if math.Abs(r.F-overall[r.ID]) > 1e-8*math.Max(1, r.F) {
			t.Errorf("%s: F over two contrasts %v, over all three %v", r.ID, r.F, overall[r.ID])
		}
	}
}

func TestParseSortBy(t *testing.T) {
	type expectation struct {
		in   string
		want SortBy
	}
	expectations := []expectation{
		{"B", SortByB},
		{"p", SortByP},
		{"P.Value", SortByP},
		{"logFC", SortByLogFC},
		{"AveExpr", SortByAveExpr},
		{"t", SortByT},
		{"none", SortByNone},
	}

	for _, v := range expectations {
		got, err := ParseSortBy(v.in)
		if err != nil {
			t.Errorf("%q: %v", v.in, err)
		}
		if got != v.want {
			t.Errorf("%q: got %v, expected %v", v.in, got, v.want)
		}
	}

	if _, err := ParseSortBy("volcano"); err == nil {
		t.Errorf("expected an error for an unknown sort order")
	}
}
