package glm

import (
	"fmt"
	"math"
)

// Family selects the error distribution and its canonical link
type Family int

const (
	Binomial Family = iota // logit link, y in {0, 1}
	Poisson                // log link, y a non-negative count
)

const (
	// probabilities are held this far away from 0 and 1 while iterating
	probEpsilon = 1e-10
	// fitted probabilities closer than this to 0 or 1 mean the classes separate
	separationEpsilon = 1e-8
	minRate           = 1e-300
)

func (f Family) String() string {
	switch f {
	case Binomial:
		return "binomial"
	case Poisson:
		return "poisson"
	}
	return "unknown"
}

// ParseFamily is the inverse of String
func ParseFamily(s string) (Family, error) {
	switch s {
	case "binomial":
		return Binomial, nil
	case "poisson":
		return Poisson, nil
	}
	return 0, fmt.Errorf("unknown family %q: %w", s, ErrInvalidInput)
}

// InvLink maps a linear predictor onto the response scale
func (f Family) InvLink(eta float64) float64 {
	if f == Poisson {
		return math.Max(math.Exp(eta), minRate)
	}
	return Sigmoid(eta)
}

func (f Family) link(mu float64) float64 {
	if f == Poisson {
		return math.Log(mu)
	}
	return math.Log(mu / (1 - mu))
}

// weight is the IRLS working weight. For canonical links this is the
// variance function evaluated at mu.
func (f Family) weight(mu float64) float64 {
	if f == Poisson {
		return math.Max(mu, minRate)
	}
	mu = clampProb(mu)
	return mu * (1 - mu)
}

func (f Family) initialMu(y float64) float64 {
	if f == Poisson {
		return y + 0.1
	}
	return (y + 0.5) / 2
}

func (f Family) deviance(y, mu []float64) float64 {
	dev := 0.0
	for i := range y {
		if f == Poisson {
			if y[i] > 0 {
				dev += 2 * (y[i]*math.Log(y[i]/mu[i]) - (y[i] - mu[i]))
			} else {
				dev += 2 * mu[i]
			}
			continue
		}
		m := clampProb(mu[i])
		dev -= 2 * (y[i]*math.Log(m) + (1-y[i])*math.Log(1-m))
	}
	return dev
}

func (f Family) checkResponse(y float64) error {
	switch f {
	case Binomial:
		if y != 0 && y != 1 {
			return fmt.Errorf("binomial response must be 0 or 1, got %v: %w", y, ErrInvalidInput)
		}
	case Poisson:
		if y < 0 || math.IsNaN(y) || math.IsInf(y, 0) {
			return fmt.Errorf("poisson response must be a non-negative count, got %v: %w", y, ErrInvalidInput)
		}
	}
	return nil
}

func (f Family) checkFitted(mu []float64) error {
	if f != Binomial {
		return nil
	}
	for _, m := range mu {
		if m < separationEpsilon || m > 1-separationEpsilon {
			return fmt.Errorf("fitted probabilities are numerically 0 or 1, the outcome is perfectly separated: %w", ErrNotConverged)
		}
	}
	return nil
}

func clampProb(p float64) float64 {
	return math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
}

// Sigmoid is the logistic function 1 / (1 + exp(-z)). The result is held
// strictly inside (0, 1) even where float64 would round to an endpoint.
func Sigmoid(z float64) float64 {
	var p float64
	if z >= 0 {
		p = 1 / (1 + math.Exp(-z))
	} else {
		e := math.Exp(z)
		p = e / (1 + e)
	}
	if p <= 0 {
		return math.SmallestNonzeroFloat64
	}
	if p >= 1 {
		return math.Nextafter(1, 0)
	}
	return p
}
