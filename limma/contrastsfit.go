package limma

import (
	"fmt"
	"math"

	"github.com/carbocation/golimma/contrast"
	"gonum.org/v1/gonum/mat"
)

// ContrastsFit re-expresses the coefficients of fit as the contrasts in cm.
// The rows of cm must correspond, by count and by name, to the coefficients of
// fit. Any moderation on fit is dropped; call EBayes on the result.
func ContrastsFit(fit *Fit, cm *contrast.Matrix) (*Fit, error) {
	if fit == nil || cm == nil {
		return nil, fmt.Errorf("ContrastsFit requires a fit and a contrast matrix")
	}

	nCoefs := fit.NCoefs()
	rows, nContrasts := cm.C.Dims()
	if rows != nCoefs {
		return nil, fmt.Errorf("%w: contrast matrix has %d rows but the fit has %d coefficients", ErrDimensionMismatch, rows, nCoefs)
	}
	for k, level := range cm.Levels {
		if level != fit.CoefNames[k] {
			return nil, fmt.Errorf("%w: contrast row %d is %q but coefficient %d is %q", ErrDimensionMismatch, k, level, k, fit.CoefNames[k])
		}
	}

	c := cm.C
	nGenes := fit.NGenes()

	out := fit.clone()
	out.Moderated = nil
	out.Contrasts = cm
	out.CoefNames = append([]string(nil), cm.Names...)
	out.Coefficients = mat.NewDense(nGenes, nContrasts, nil)
	out.StdevUnscaled = mat.NewDense(nGenes, nContrasts, nil)

	// cov' = C' cov C
	var cov mat.Dense
	cov.Product(c.T(), fit.CovCoefficients, c)
	out.CovCoefficients = &cov

	orthogonal := isOrthogonal(fit.CovCoefficients)

	// Upper Cholesky factor of the coefficient correlation matrix, for the
	// non-orthogonal case
	var chol *mat.TriDense
	if !orthogonal {
		u, err := correlationCholesky(fit.CovCoefficients)
		if err != nil {
			return nil, err
		}
		chol = u
	}

	beta := make([]float64, nCoefs)
	su := make([]float64, nCoefs)
	scaled := mat.NewVecDense(nCoefs, nil)
	var projected mat.VecDense
	for i := 0; i < nGenes; i++ {
		mat.Row(beta, i, fit.Coefficients)
		mat.Row(su, i, fit.StdevUnscaled)

		for j := 0; j < nContrasts; j++ {
			estimable := true
			b := 0.0
			for k := 0; k < nCoefs; k++ {
				w := c.At(k, j)
				if w == 0 {
					continue
				}
				if math.IsNaN(beta[k]) || math.IsNaN(su[k]) {
					estimable = false
					break
				}
				b += w * beta[k]
			}

			if !estimable {
				out.Coefficients.Set(i, j, math.NaN())
				out.StdevUnscaled.Set(i, j, math.NaN())
				continue
			}
			out.Coefficients.Set(i, j, b)

			if orthogonal {
				v := 0.0
				for k := 0; k < nCoefs; k++ {
					if w := c.At(k, j); w != 0 {
						v += su[k] * su[k] * w * w
					}
				}
				out.StdevUnscaled.Set(i, j, math.Sqrt(v))
				continue
			}

			// sqrt(|| R diag(su) c_j ||^2), treating non-estimable
			// coefficients as absent
			for k := 0; k < nCoefs; k++ {
				w := c.At(k, j)
				if w == 0 || math.IsNaN(su[k]) {
					scaled.SetVec(k, 0)
					continue
				}
				scaled.SetVec(k, su[k]*w)
			}
			projected.MulVec(chol, scaled)
			out.StdevUnscaled.Set(i, j, mat.Norm(&projected, 2))
		}
	}

	return out, nil
}

// isOrthogonal reports whether the off-diagonal correlations of cov are all
// negligible.
func isOrthogonal(cov *mat.Dense) bool {
	n, _ := cov.Dims()
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			if math.Abs(cov.At(a, b)/math.Sqrt(cov.At(a, a)*cov.At(b, b))) >= 1e-14 {
				return false
			}
		}
	}

	return true
}

func correlationCholesky(cov *mat.Dense) (*mat.TriDense, error) {
	n, _ := cov.Dims()
	cor := mat.NewSymDense(n, nil)
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			cor.SetSym(a, b, cov.At(a, b)/math.Sqrt(cov.At(a, a)*cov.At(b, b)))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cor); !ok {
		return nil, fmt.Errorf("coefficient correlation matrix is not positive definite")
	}

	var u mat.TriDense
	chol.UTo(&u)

	return &u, nil
}
