// Package design builds the design matrices consumed by limma.LmFit: one row
// per sample, one column per model coefficient.
package design

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var ErrRankDeficient = errors.New("design matrix is not of full column rank")

// Matrix is a samples x coefficients design.
type Matrix struct {
	Samples []string
	Columns []string
	X       *mat.Dense
}

func (d *Matrix) NSamples() int {
	r, _ := d.X.Dims()
	return r
}

func (d *Matrix) NCoefs() int {
	_, c := d.X.Dims()
	return c
}

// ColumnIndex returns the position of the named column, or -1.
func (d *Matrix) ColumnIndex(name string) int {
	for i, v := range d.Columns {
		if v == name {
			return i
		}
	}

	return -1
}

// Rank estimates the column rank of the design from the singular values.
func (d *Matrix) Rank() int {
	var svd mat.SVD
	if ok := svd.Factorize(d.X, mat.SVDNone); !ok {
		return 0
	}

	values := svd.Values(nil)
	if len(values) < 1 {
		return 0
	}

	r, c := d.X.Dims()
	tol := values[0] * float64(max(r, c)) * 1e-12
	rank := 0
	for _, v := range values {
		if v > tol {
			rank++
		}
	}

	return rank
}

// CheckFullRank returns ErrRankDeficient, annotated, if any column of the
// design is a linear combination of the others.
func (d *Matrix) CheckFullRank() error {
	if rank := d.Rank(); rank < d.NCoefs() {
		return fmt.Errorf("%w: rank %d with %d columns %v", ErrRankDeficient, rank, d.NCoefs(), d.Columns)
	}

	return nil
}

func (d *Matrix) String() string {
	b := strings.Builder{}
	b.WriteString("sample")
	for _, c := range d.Columns {
		b.WriteString("\t")
		b.WriteString(c)
	}
	b.WriteString("\n")

	for i, s := range d.Samples {
		b.WriteString(s)
		for j := range d.Columns {
			b.WriteString("\t")
			b.WriteString(strconv.FormatFloat(d.X.At(i, j), 'g', -1, 64))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// FromGroups builds a one-hot (cell means) design: column k is 1 for samples
// whose label equals levels[k] and 0 otherwise. If levels is empty, the sorted
// distinct labels are used. samples may be nil, in which case the samples are
// numbered.
func FromGroups(samples, labels, levels []string) (*Matrix, error) {
	if len(labels) < 1 {
		return nil, fmt.Errorf("no group labels were provided")
	}

	if samples == nil {
		samples = make([]string, len(labels))
		for i := range labels {
			samples[i] = strconv.Itoa(i + 1)
		}
	}

	if len(samples) != len(labels) {
		return nil, fmt.Errorf("%d samples but %d group labels", len(samples), len(labels))
	}

	if len(levels) == 0 {
		levels = Levels(labels)
	}

	levelIdx := make(map[string]int, len(levels))
	for i, level := range levels {
		if _, exists := levelIdx[level]; exists {
			return nil, fmt.Errorf("level %q is listed more than once", level)
		}
		levelIdx[level] = i
	}

	used := make([]int, len(levels))
	x := mat.NewDense(len(labels), len(levels), nil)
	for i, label := range labels {
		k, exists := levelIdx[label]
		if !exists {
			return nil, fmt.Errorf("sample %s has group %q, which is not one of the levels %v", samples[i], label, levels)
		}
		x.Set(i, k, 1)
		used[k]++
	}

	for k, n := range used {
		if n == 0 {
			return nil, fmt.Errorf("%w: level %q has no samples", ErrRankDeficient, levels[k])
		}
	}

	return &Matrix{
		Samples: append([]string(nil), samples...),
		Columns: append([]string(nil), levels...),
		X:       x,
	}, nil
}

// Levels returns the distinct labels in sorted order.
func Levels(labels []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, v := range labels {
		if _, exists := seen[v]; exists {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)

	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
