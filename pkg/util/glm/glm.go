// Package glm fits generalized linear models by iteratively reweighted least
// squares. It backs both the shot (binomial) and the goals (poisson) models.
package glm

import (
	"errors"
	"fmt"
	"math"

	"github.com/richard-senior/podds/internal/logger"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotConverged = errors.New("fit did not converge")
)

// FittedModel is all a caller needs from a fit. Nothing outside this package
// should care how the coefficients were obtained.
type FittedModel interface {
	Predict(features []float64) (float64, error)
	Coefficients() map[string]float64
}

// Options controls the IRLS loop
type Options struct {
	MaxIter int     // iteration cap before giving up (default: 100)
	Tol     float64 // relative deviance change treated as converged (default: 1e-8)
}

func DefaultOptions() Options {
	return Options{
		MaxIter: 100,
		Tol:     1e-8,
	}
}

// singular values below rcond * largest are treated as zero, which gives the
// minimum norm solution for collinear designs
const rcond = 1e-10

// Result is a converged fit
type Result struct {
	Family     Family    `json:"family"`
	Names      []string  `json:"names"`
	Beta       []float64 `json:"beta"`
	Deviance   float64   `json:"deviance"`
	Iterations int       `json:"iterations"`
}

var _ FittedModel = (*Result)(nil)

// Fit regresses y on the design matrix x (one row per observation, one column
// per name). An intercept is not added; include a column of ones if wanted.
func Fit(family Family, names []string, x [][]float64, y []float64, opts Options) (*Result, error) {
	if err := validate(family, names, x, y); err != nil {
		return nil, err
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultOptions().MaxIter
	}
	if opts.Tol <= 0 {
		opts.Tol = DefaultOptions().Tol
	}

	n, p := len(x), len(names)
	design := mat.NewDense(n, p, nil)
	for i, row := range x {
		design.SetRow(i, row)
	}

	mu := make([]float64, n)
	eta := make([]float64, n)
	for i := range y {
		mu[i] = family.initialMu(y[i])
		eta[i] = family.link(mu[i])
	}
	devOld := family.deviance(y, mu)

	a := mat.NewDense(n, p, nil)
	b := make([]float64, n)
	var beta []float64

	for iter := 1; iter <= opts.MaxIter; iter++ {
		for i := 0; i < n; i++ {
			w := family.weight(mu[i])
			z := eta[i] + (y[i]-mu[i])/w
			sw := math.Sqrt(w)
			for j := 0; j < p; j++ {
				a.Set(i, j, sw*design.At(i, j))
			}
			b[i] = sw * z
		}

		var err error
		beta, err = leastSquares(a, b)
		if err != nil {
			return nil, err
		}

		bv := mat.NewVecDense(p, beta)
		for i := 0; i < n; i++ {
			eta[i] = mat.Dot(design.RowView(i), bv)
			mu[i] = family.InvLink(eta[i])
		}
		dev := family.deviance(y, mu)
		if !finite(beta) || math.IsNaN(dev) || math.IsInf(dev, 0) {
			return nil, fmt.Errorf("%s fit diverged at iteration %d: %w", family, iter, ErrNotConverged)
		}

		change := math.Abs(dev-devOld) / (math.Abs(dev) + 0.1)
		logger.Debug(fmt.Sprintf("%s IRLS iteration %d deviance", family, iter), dev, change)
		if change < opts.Tol {
			if err := family.checkFitted(mu); err != nil {
				return nil, err
			}
			return &Result{
				Family:     family,
				Names:      append([]string(nil), names...),
				Beta:       beta,
				Deviance:   dev,
				Iterations: iter,
			}, nil
		}
		devOld = dev
	}

	return nil, fmt.Errorf("%s fit: no convergence after %d iterations: %w", family, opts.MaxIter, ErrNotConverged)
}

// leastSquares solves min |a·beta - b| through the SVD pseudo-inverse
func leastSquares(a *mat.Dense, b []float64) ([]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("svd factorization failed: %w", ErrNotConverged)
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	_, p := a.Dims()
	bv := mat.NewVecDense(len(b), b)
	beta := make([]float64, p)
	if len(s) == 0 || s[0] == 0 {
		return beta, nil
	}
	cutoff := rcond * s[0]
	for k, sk := range s {
		if sk <= cutoff {
			continue
		}
		coef := mat.Dot(u.ColView(k), bv) / sk
		for j := 0; j < p; j++ {
			beta[j] += v.At(j, k) * coef
		}
	}
	return beta, nil
}

// Predict applies the inverse link to the linear predictor of one design row
func (r *Result) Predict(features []float64) (float64, error) {
	if len(features) != len(r.Beta) {
		return 0, fmt.Errorf("expected %d features, got %d: %w", len(r.Beta), len(features), ErrInvalidInput)
	}
	eta := 0.0
	for i, f := range features {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("feature %s is not finite: %w", r.Names[i], ErrInvalidInput)
		}
		eta += f * r.Beta[i]
	}
	return r.Family.InvLink(eta), nil
}

// Coefficients returns a copy of the fitted coefficients keyed by column name
func (r *Result) Coefficients() map[string]float64 {
	coefs := make(map[string]float64, len(r.Names))
	for i, name := range r.Names {
		coefs[name] = r.Beta[i]
	}
	return coefs
}

// FromCoefficients rebuilds a Result from stored coefficients. Every name must
// be present.
func FromCoefficients(family Family, names []string, coefs map[string]float64) (*Result, error) {
	beta := make([]float64, len(names))
	for i, name := range names {
		v, ok := coefs[name]
		if !ok {
			return nil, fmt.Errorf("missing coefficient %q: %w", name, ErrInvalidInput)
		}
		beta[i] = v
	}
	if !finite(beta) {
		return nil, fmt.Errorf("non-finite coefficient: %w", ErrInvalidInput)
	}
	return &Result{Family: family, Names: append([]string(nil), names...), Beta: beta}, nil
}

func validate(family Family, names []string, x [][]float64, y []float64) error {
	if len(names) == 0 {
		return fmt.Errorf("no columns: %w", ErrInvalidInput)
	}
	if len(x) == 0 {
		return fmt.Errorf("no observations: %w", ErrInvalidInput)
	}
	if len(x) != len(y) {
		return fmt.Errorf("%d rows but %d responses: %w", len(x), len(y), ErrInvalidInput)
	}
	for i, row := range x {
		if len(row) != len(names) {
			return fmt.Errorf("row %d has %d values, expected %d: %w", i, len(row), len(names), ErrInvalidInput)
		}
		if !finite(row) {
			return fmt.Errorf("row %d contains a non-finite value: %w", i, ErrInvalidInput)
		}
		if err := family.checkResponse(y[i]); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

func finite(v []float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
