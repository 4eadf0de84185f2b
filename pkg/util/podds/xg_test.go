package podds

import (
	"math"
	"testing"

	"github.com/richard-senior/podds/pkg/util/glm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticShots scores more often from closer in, with misses everywhere
// so the classes never separate
func syntheticShots() []Shot {
	var shots []Shot
	for _, x := range []float64{70, 75, 80, 85, 90, 95} {
		goals := int((x - 65) / 4)
		for _, y := range []float64{35, 50, 65} {
			for k := 0; k < 10; k++ {
				shots = append(shots, Shot{X: x, Y: y, IsGoal: k < goals})
			}
		}
	}
	return shots
}

func TestFitXGModel(t *testing.T) {
	shots := syntheticShots()
	params, err := FitXGModel(WyscoutPitch, shots, glm.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, params.Validate())
	assert.Len(t, params, 3)

	near, err := PredictXG(WyscoutPitch, 95, 50, params)
	require.NoError(t, err)
	far, err := PredictXG(WyscoutPitch, 70, 50, params)
	require.NoError(t, err)
	assert.Greater(t, near, far)

	// with an intercept the fitted probabilities add up to the goals scored
	var expected float64
	goals := 0
	for _, s := range shots {
		p, err := PredictXG(WyscoutPitch, s.X, s.Y, params)
		require.NoError(t, err)
		assert.Greater(t, p, 0.0)
		assert.Less(t, p, 1.0)
		expected += p
		if s.IsGoal {
			goals++
		}
	}
	assert.InDelta(t, float64(goals), expected, 1e-4)
}

func TestFitXGModelSeparableShots(t *testing.T) {
	var shots []Shot
	for _, x := range []float64{60, 65, 70, 90, 94, 98} {
		shots = append(shots, Shot{X: x, Y: 50, IsGoal: x > 80})
	}
	_, err := FitXGModel(WyscoutPitch, shots, glm.DefaultOptions())
	assert.ErrorIs(t, err, ErrNotConverged)
}

func TestFitXGModelRejectsBadInput(t *testing.T) {
	_, err := FitXGModel(WyscoutPitch, nil, glm.DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = FitXGModel(WyscoutPitch, []Shot{{X: math.NaN(), Y: 50}}, glm.DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = FitXGModel(PitchConfig{}, syntheticShots(), glm.DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPredictXG(t *testing.T) {
	params := ClassifierParameters{FeatureIntercept: 0, FeatureDistance: 0, FeatureAngle: 0}
	p, err := PredictXG(WyscoutPitch, 88, 50, params)
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)

	params = ClassifierParameters{FeatureIntercept: 1.2, FeatureDistance: -0.15, FeatureAngle: 1.1}
	dist, err := WyscoutPitch.ShotDistance(88, 40)
	require.NoError(t, err)
	angle, err := WyscoutPitch.ShotAngle(88, 40)
	require.NoError(t, err)
	p, err = PredictXG(WyscoutPitch, 88, 40, params)
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-(1.2-0.15*dist+1.1*angle))), p, 1e-12)
}

func TestPredictXGStaysInsideOpenInterval(t *testing.T) {
	for _, b := range []float64{-1e4, 1e4} {
		params := ClassifierParameters{FeatureIntercept: b, FeatureDistance: 0, FeatureAngle: 0}
		p, err := PredictXG(WyscoutPitch, 90, 50, params)
		require.NoError(t, err)
		assert.Greater(t, p, 0.0)
		assert.Less(t, p, 1.0)
	}
}

func TestPredictXGValidation(t *testing.T) {
	_, err := PredictXG(WyscoutPitch, 90, 50, ClassifierParameters{FeatureIntercept: 1, FeatureDistance: -0.1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	params := ClassifierParameters{FeatureIntercept: 1, FeatureDistance: -0.1, FeatureAngle: math.Inf(1)}
	_, err = PredictXG(WyscoutPitch, 90, 50, params)
	assert.ErrorIs(t, err, ErrInvalidInput)

	params[FeatureAngle] = 1
	_, err = PredictXG(WyscoutPitch, math.NaN(), 50, params)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestXGModelImplementsFittedModel(t *testing.T) {
	var m glm.FittedModel = &XGModel{
		Pitch:  WyscoutPitch,
		Params: ClassifierParameters{FeatureIntercept: 0.3, FeatureDistance: -0.1, FeatureAngle: 1},
	}
	p, err := m.Predict([]float64{90, 50})
	require.NoError(t, err)
	direct, err := PredictXG(WyscoutPitch, 90, 50, m.Coefficients())
	require.NoError(t, err)
	assert.Equal(t, direct, p)

	_, err = m.Predict([]float64{90})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Coefficients hands out a copy
	m.Coefficients()[FeatureAngle] = 99
	assert.Equal(t, 1.0, m.Coefficients()[FeatureAngle])
}

func TestCompareReference(t *testing.T) {
	ref := 0.2
	params := ClassifierParameters{FeatureIntercept: 0, FeatureDistance: 0, FeatureAngle: 0}
	shots := []Shot{
		{X: 90, Y: 50, IsGoal: true, ReferenceXG: &ref},
		{X: 80, Y: 50, ReferenceXG: &ref},
		{X: 70, Y: 50},
	}
	cmp, err := CompareReference(WyscoutPitch, shots, params)
	require.NoError(t, err)
	assert.Equal(t, 2, cmp.Shots)
	assert.Equal(t, 1, cmp.Goals)
	assert.InDelta(t, 1.0, cmp.ModelTotal, 1e-12)
	assert.InDelta(t, 0.4, cmp.ReferenceTotal, 1e-12)
	assert.InDelta(t, 0.3, cmp.MeanAbsDiff, 1e-12)

	_, err = CompareReference(WyscoutPitch, shots[2:], params)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewShot(t *testing.T) {
	s, err := NewShot(88, 45, true)
	require.NoError(t, err)
	assert.True(t, s.IsGoal)
	assert.Nil(t, s.ReferenceXG)

	_, err = NewShot(88, math.NaN(), false)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
