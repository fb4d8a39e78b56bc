package limma

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/carbocation/golimma/contrast"
	"github.com/carbocation/golimma/design"
	"github.com/carbocation/golimma/exprtable"
)

var (
	twoGroupLabels = []string{
		"V_group", "V_group", "V_group", "V_group", "V_group",
		"D_group", "D_group", "D_group", "D_group", "D_group",
	}
	twoGroupLevels = []string{"V_group", "D_group"}
)

// synthTable simulates log-expression for nGenes genes over the ten samples of
// twoGroupLabels. Every fifth gene is shifted up in D_group and every seventh
// is shifted down. Gene-wise noise levels vary so that variance moderation has
// something to do.
func synthTable(t *testing.T, nGenes int) *exprtable.Table {
	t.Helper()

	rng := rand.New(rand.NewSource(20201208))

	samples := make([]string, len(twoGroupLabels))
	for j := range samples {
		samples[j] = fmt.Sprintf("S%02d", j+1)
	}

	genes := make([]string, nGenes)
	values := make([]float64, 0, nGenes*len(samples))
	for i := range genes {
		genes[i] = fmt.Sprintf("gene%03d", i+1)
		base := 6 + 4*rng.Float64()
		sd := 0.2 + 0.6*rng.Float64()

		shift := 0.0
		switch {
		case i%5 == 0:
			shift = 2
		case i%7 == 0:
			shift = -1.5
		}

		for _, label := range twoGroupLabels {
			v := base + sd*rng.NormFloat64()
			if label == "D_group" {
				v += shift
			}
			values = append(values, v)
		}
	}

	table, err := exprtable.New(genes, samples, values)
	if err != nil {
		t.Fatal(err)
	}

	return table
}

// runPipeline mirrors the reference analysis: one-hot design, a single
// contrast, moderation.
func runPipeline(t *testing.T, table *exprtable.Table, formula string) *Fit {
	t.Helper()

	return runPipelineLabels(t, table, twoGroupLabels, formula)
}

func runPipelineLabels(t *testing.T, table *exprtable.Table, labels []string, formula string) *Fit {
	t.Helper()

	d, err := design.FromGroups(table.Samples, labels, twoGroupLevels)
	if err != nil {
		t.Fatal(err)
	}

	fit, err := LmFit(table, d)
	if err != nil {
		t.Fatal(err)
	}

	cm, err := contrast.Make(d.Columns, formula)
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

	return fit3
}
