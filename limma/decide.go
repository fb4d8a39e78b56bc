package limma

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

type DecideOptions struct {
	// "separate" adjusts each coefficient on its own; "global" adjusts every
	// p-value of the fit as a single family.
	Method       string
	AdjustMethod AdjustMethod
	PValue       float64
	LFC          float64
}

func DefaultDecideOptions() DecideOptions {
	return DecideOptions{
		Method:       "separate",
		AdjustMethod: AdjustBH,
		PValue:       0.05,
	}
}

// Decision holds -1, 0 or +1 per gene and coefficient: significantly down,
// not significant, or significantly up.
type Decision struct {
	GeneIDs   []string
	CoefNames []string
	Calls     [][]int
}

// DecisionCount tallies the calls for one coefficient.
type DecisionCount struct {
	Coef   string
	Down   int
	NotSig int
	Up     int
}

func (d DecisionCount) String() string {
	return fmt.Sprintf("%s: Down=%d NotSig=%d Up=%d", d.Coef, d.Down, d.NotSig, d.Up)
}

// DecideTests classifies each gene as up, down or not significant for every
// coefficient of a moderated fit.
func DecideTests(fit *Fit, opts DecideOptions) (*Decision, error) {
	if fit == nil {
		return nil, fmt.Errorf("no fit given")
	}
	if fit.Moderated == nil {
		return nil, ErrNotModerated
	}
	if !(opts.PValue > 0 && opts.PValue <= 1) {
		return nil, fmt.Errorf("p-value cutoff must be in (0, 1], got %v", opts.PValue)
	}

	nGenes, nCoefs := fit.NGenes(), fit.NCoefs()

	adj := mat.NewDense(nGenes, nCoefs, nil)
	switch strings.ToLower(opts.Method) {
	case "separate", "":
		for j := 0; j < nCoefs; j++ {
			col, err := PAdjust(mat.Col(nil, j, fit.Moderated.PValue), opts.AdjustMethod)
			if err != nil {
				return nil, err
			}
			adj.SetCol(j, col)
		}
	case "global":
		all, err := PAdjust(mat.DenseCopyOf(fit.Moderated.PValue).RawMatrix().Data, opts.AdjustMethod)
		if err != nil {
			return nil, err
		}
		adj = mat.NewDense(nGenes, nCoefs, all)
	default:
		return nil, fmt.Errorf("unknown decideTests method %q", opts.Method)
	}

	out := &Decision{
		GeneIDs:   fit.GeneIDs,
		CoefNames: append([]string(nil), fit.CoefNames...),
		Calls:     make([][]int, nGenes),
	}
	for i := 0; i < nGenes; i++ {
		out.Calls[i] = make([]int, nCoefs)
		for j := 0; j < nCoefs; j++ {
			if !(adj.At(i, j) <= opts.PValue) {
				continue
			}
			lfc := fit.Coefficients.At(i, j)
			if opts.LFC > 0 && !(math.Abs(lfc) >= opts.LFC) {
				continue
			}
			switch {
			case fit.Moderated.T.At(i, j) > 0:
				out.Calls[i][j] = 1
			case fit.Moderated.T.At(i, j) < 0:
				out.Calls[i][j] = -1
			}
		}
	}

	return out, nil
}

func (d *Decision) Summary() []DecisionCount {
	out := make([]DecisionCount, len(d.CoefNames))
	for j, name := range d.CoefNames {
		out[j].Coef = name
		for _, calls := range d.Calls {
			switch calls[j] {
			case -1:
				out[j].Down++
			case 1:
				out[j].Up++
			default:
				out[j].NotSig++
			}
		}
	}

	return out
}
