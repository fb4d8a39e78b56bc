// Package contrast turns textual comparisons such as "D_group - V_group" into
// contrast matrices over the columns of a design.
package contrast

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnknownLevel = errors.New("unknown level")
	ErrNotLinear    = errors.New("contrast is not a linear combination of levels")
)

// Matrix holds one contrast per column, with one row per design level.
type Matrix struct {
	Levels []string
	Names  []string
	C      *mat.Dense
}

func (m *Matrix) NContrasts() int {
	return len(m.Names)
}

// Column returns the weights of the jth contrast, keyed by level.
func (m *Matrix) Column(j int) map[string]float64 {
	out := make(map[string]float64)
	for i, level := range m.Levels {
		if w := m.C.At(i, j); w != 0 {
			out[level] = w
		}
	}

	return out
}

func (m *Matrix) String() string {
	b := strings.Builder{}
	b.WriteString("Levels")
	for _, n := range m.Names {
		b.WriteString("\t")
		b.WriteString(n)
	}
	b.WriteString("\n")

	for i, level := range m.Levels {
		b.WriteString(level)
		for j := range m.Names {
			b.WriteString("\t")
			b.WriteString(strconv.FormatFloat(m.C.At(i, j), 'g', -1, 64))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// Make parses each formula against levels and returns the contrast matrix. A
// formula may carry a name, as in "DvsV = D_group - V_group"; otherwise the
// formula text itself is the name. Levels must be plain identifiers (letters,
// digits, '_' and '.', not starting with a digit).
func Make(levels []string, formulas ...string) (*Matrix, error) {
	if len(levels) < 1 {
		return nil, fmt.Errorf("no levels were provided")
	}
	if len(formulas) < 1 {
		return nil, fmt.Errorf("no contrasts were provided")
	}

	levelIdx := make(map[string]int, len(levels))
	for i, level := range levels {
		if !isIdentifier(level) {
			return nil, fmt.Errorf("level %q is not a valid name; use letters, digits, '_' or '.', not starting with a digit", level)
		}
		if _, exists := levelIdx[level]; exists {
			return nil, fmt.Errorf("level %q is listed more than once", level)
		}
		levelIdx[level] = i
	}

	c := mat.NewDense(len(levels), len(formulas), nil)
	names := make([]string, 0, len(formulas))
	for j, formula := range formulas {
		name, expr := splitName(formula)

		mentioned, err := identifiers(expr)
		if err != nil {
			return nil, fmt.Errorf("contrast %q: %w", formula, err)
		}
		for _, level := range mentioned {
			if _, exists := levelIdx[level]; !exists {
				return nil, fmt.Errorf("contrast %q: %w %q; levels are %v", formula, ErrUnknownLevel, level, levels)
			}
		}

		weights, err := Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("contrast %q: %w", formula, err)
		}

		for level, w := range weights {
			c.Set(levelIdx[level], j, w)
		}
		names = append(names, name)
	}

	return &Matrix{
		Levels: append([]string(nil), levels...),
		Names:  names,
		C:      c,
	}, nil
}

func splitName(formula string) (name, expr string) {
	if eq := strings.Index(formula, "="); eq >= 0 {
		if n := strings.TrimSpace(formula[:eq]); isIdentifier(n) {
			return n, strings.TrimSpace(formula[eq+1:])
		}
	}

	formula = strings.TrimSpace(formula)
	return formula, formula
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '.' || isLetter(r):
		case isDigit(r) && i > 0:
		default:
			return false
		}
	}

	return true
}
