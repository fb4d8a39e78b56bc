// Package exprtable reads gene-by-sample expression matrices: one row per
// gene, one column per sample, with the gene identifier in the first column.
package exprtable

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Table is an immutable genes x samples matrix of expression values. Missing
// measurements are stored as NaN.
type Table struct {
	GeneIDs []string
	Samples []string
	Values  *mat.Dense
}

// New validates the dimensions and assembles a Table. values is laid out row
// major, one row per gene.
func New(geneIDs, samples []string, values []float64) (*Table, error) {
	if len(geneIDs) < 1 {
		return nil, fmt.Errorf("expression table has no genes")
	}
	if len(samples) < 1 {
		return nil, fmt.Errorf("expression table has no samples")
	}
	if len(values) != len(geneIDs)*len(samples) {
		return nil, fmt.Errorf("expression table has %d values, expected %d genes x %d samples", len(values), len(geneIDs), len(samples))
	}

	return &Table{
		GeneIDs: append([]string(nil), geneIDs...),
		Samples: append([]string(nil), samples...),
		Values:  mat.NewDense(len(geneIDs), len(samples), append([]float64(nil), values...)),
	}, nil
}

func (t *Table) NGenes() int {
	return len(t.GeneIDs)
}

func (t *Table) NSamples() int {
	return len(t.Samples)
}

// Row returns a copy of the expression values for the ith gene.
func (t *Table) Row(i int) []float64 {
	return mat.Row(nil, i, t.Values)
}

// Column returns a copy of the expression values for the jth sample.
func (t *Table) Column(j int) []float64 {
	return mat.Col(nil, j, t.Values)
}

// Missing counts the NaN cells in the table.
func (t *Table) Missing() int {
	n := 0
	r, c := t.Values.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(t.Values.At(i, j)) {
				n++
			}
		}
	}

	return n
}

// Subset returns a new table whose columns are the named samples, in the order
// given.
func (t *Table) Subset(samples []string) (*Table, error) {
	idx := make(map[string]int, len(t.Samples))
	for i, s := range t.Samples {
		if _, exists := idx[s]; exists {
			return nil, fmt.Errorf("sample %q appears more than once in the expression table", s)
		}
		idx[s] = i
	}

	values := make([]float64, 0, len(t.GeneIDs)*len(samples))
	cols := make([]int, len(samples))
	for k, s := range samples {
		j, exists := idx[s]
		if !exists {
			return nil, fmt.Errorf("sample %q is not in the expression table", s)
		}
		cols[k] = j
	}
	for i := range t.GeneIDs {
		for _, j := range cols {
			values = append(values, t.Values.At(i, j))
		}
	}

	return New(t.GeneIDs, samples, values)
}
