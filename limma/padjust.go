package limma

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

type AdjustMethod string

const (
	AdjustBH         AdjustMethod = "BH"
	AdjustBY         AdjustMethod = "BY"
	AdjustHolm       AdjustMethod = "holm"
	AdjustHochberg   AdjustMethod = "hochberg"
	AdjustBonferroni AdjustMethod = "bonferroni"
	AdjustNone       AdjustMethod = "none"
)

// ParseAdjustMethod accepts the usual spellings, including "fdr" for BH.
func ParseAdjustMethod(s string) (AdjustMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bh", "fdr", "":
		return AdjustBH, nil
	case "by":
		return AdjustBY, nil
	case "holm":
		return AdjustHolm, nil
	case "hochberg":
		return AdjustHochberg, nil
	case "bonferroni":
		return AdjustBonferroni, nil
	case "none":
		return AdjustNone, nil
	}

	return "", fmt.Errorf("unknown p-value adjustment method %q", s)
}

// PAdjust corrects p-values for multiple testing. NaN p-values are left as NaN
// and do not count toward the number of tests.
func PAdjust(p []float64, method AdjustMethod) ([]float64, error) {
	out := make([]float64, len(p))
	idx := make([]int, 0, len(p))
	for i, v := range p {
		out[i] = math.NaN()
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}

	n := float64(len(idx))
	if len(idx) == 0 {
		return out, nil
	}

	// Ascending by p
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })

	switch method {
	case AdjustNone:
		for _, i := range idx {
			out[i] = p[i]
		}
	case AdjustBonferroni:
		for _, i := range idx {
			out[i] = math.Min(1, p[i]*n)
		}
	case AdjustHolm:
		running := 0.0
		for rank, i := range idx {
			running = math.Max(running, (n-float64(rank))*p[i])
			out[i] = math.Min(1, running)
		}
	case AdjustHochberg:
		running := math.Inf(1)
		for rank := len(idx) - 1; rank >= 0; rank-- {
			i := idx[rank]
			running = math.Min(running, (n-float64(rank))*p[i])
			out[i] = math.Min(1, running)
		}
	case AdjustBH, AdjustBY:
		q := 1.0
		if method == AdjustBY {
			q = 0
			for k := 1; k <= len(idx); k++ {
				q += 1 / float64(k)
			}
		}
		running := math.Inf(1)
		for rank := len(idx) - 1; rank >= 0; rank-- {
			i := idx[rank]
			running = math.Min(running, q*n/float64(rank+1)*p[i])
			out[i] = math.Min(1, running)
		}
	default:
		return nil, fmt.Errorf("unknown p-value adjustment method %q", method)
	}

	return out, nil
}
