package podds

import (
	"fmt"
	"math"

	"github.com/richard-senior/podds/internal/logger"
	"github.com/richard-senior/podds/pkg/util/glm"
)

// Feature names of the shot model. The order is the design column order at
// fit time and at prediction time.
const (
	FeatureIntercept = "Intercept"
	FeatureDistance  = "dist"
	FeatureAngle     = "angle"
)

var xgFeatures = []string{FeatureIntercept, FeatureDistance, FeatureAngle}

// Shot is one attempt on goal in the provider frame
type Shot struct {
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	IsGoal      bool     `json:"isGoal"`
	ReferenceXG *float64 `json:"referenceXg,omitempty"` // third party xG if the provider supplies one
}

// NewShot validates coordinates before building a Shot
func NewShot(x, y float64, isGoal bool) (Shot, error) {
	if err := checkCoordinates(x, y); err != nil {
		return Shot{}, err
	}
	return Shot{X: x, Y: y, IsGoal: isGoal}, nil
}

// ClassifierParameters maps feature name to fitted coefficient
type ClassifierParameters map[string]float64

// Validate ensures every feature has a finite coefficient
func (cp ClassifierParameters) Validate() error {
	for _, name := range xgFeatures {
		v, ok := cp[name]
		if !ok {
			return fmt.Errorf("missing coefficient %q: %w", name, ErrInvalidInput)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("coefficient %q is not finite: %w", name, ErrInvalidInput)
		}
	}
	return nil
}

// Features returns the shot's design row: intercept, distance, angle
func (p PitchConfig) Features(x, y float64) ([]float64, error) {
	mx, cy, err := p.TransformCoordinates(x, y)
	if err != nil {
		return nil, err
	}
	return []float64{1, math.Hypot(mx, cy), goalAngle(mx, cy, p.GoalWidth)}, nil
}

// FitXGModel fits a logistic regression of goal on distance and angle
func FitXGModel(pitch PitchConfig, shots []Shot, opts glm.Options) (ClassifierParameters, error) {
	if err := pitch.Validate(); err != nil {
		return nil, err
	}
	if len(shots) == 0 {
		return nil, fmt.Errorf("no shots to fit: %w", ErrInvalidInput)
	}

	x := make([][]float64, len(shots))
	y := make([]float64, len(shots))
	goals := 0
	for i, s := range shots {
		row, err := pitch.Features(s.X, s.Y)
		if err != nil {
			return nil, fmt.Errorf("shot %d: %w", i, err)
		}
		x[i] = row
		if s.IsGoal {
			y[i] = 1
			goals++
		}
	}

	logger.Info("Fitting xG model", len(shots), "shots", goals, "goals")
	res, err := glm.Fit(glm.Binomial, xgFeatures, x, y, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fit xG model: %w", err)
	}
	logger.Info("xG model converged after", res.Iterations, "iterations, deviance", res.Deviance)

	return ClassifierParameters(res.Coefficients()), nil
}

// PredictXG returns the goal probability of a shot from (x, y)
func PredictXG(pitch PitchConfig, x, y float64, params ClassifierParameters) (float64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	row, err := pitch.Features(x, y)
	if err != nil {
		return 0, err
	}
	sum := params[FeatureIntercept] + row[1]*params[FeatureDistance] + row[2]*params[FeatureAngle]
	return glm.Sigmoid(sum), nil
}

// XGModel pairs fitted parameters with the frame they were fitted in
type XGModel struct {
	Pitch  PitchConfig          `json:"pitch"`
	Params ClassifierParameters `json:"params"`
}

var _ glm.FittedModel = (*XGModel)(nil)

// Predict takes raw frame coordinates [x, y]
func (m *XGModel) Predict(features []float64) (float64, error) {
	if len(features) != 2 {
		return 0, fmt.Errorf("expected [x, y], got %d values: %w", len(features), ErrInvalidInput)
	}
	return PredictXG(m.Pitch, features[0], features[1], m.Params)
}

func (m *XGModel) Coefficients() map[string]float64 {
	out := make(map[string]float64, len(m.Params))
	for k, v := range m.Params {
		out[k] = v
	}
	return out
}

// ReferenceComparison summarises model xG against a provider's own xG
type ReferenceComparison struct {
	Shots          int     `json:"shots"`
	Goals          int     `json:"goals"`
	ModelTotal     float64 `json:"modelTotal"`
	ReferenceTotal float64 `json:"referenceTotal"`
	MeanAbsDiff    float64 `json:"meanAbsDiff"`
}

// CompareReference scores every shot that carries a reference xG
func CompareReference(pitch PitchConfig, shots []Shot, params ClassifierParameters) (*ReferenceComparison, error) {
	cmp := &ReferenceComparison{}
	absDiff := 0.0
	for i, s := range shots {
		if s.ReferenceXG == nil {
			continue
		}
		xg, err := PredictXG(pitch, s.X, s.Y, params)
		if err != nil {
			return nil, fmt.Errorf("shot %d: %w", i, err)
		}
		cmp.Shots++
		if s.IsGoal {
			cmp.Goals++
		}
		cmp.ModelTotal += xg
		cmp.ReferenceTotal += *s.ReferenceXG
		absDiff += math.Abs(xg - *s.ReferenceXG)
	}
	if cmp.Shots == 0 {
		return nil, fmt.Errorf("no shots carry a reference xG: %w", ErrInvalidInput)
	}
	cmp.MeanAbsDiff = absDiff / float64(cmp.Shots)
	return cmp, nil
}
