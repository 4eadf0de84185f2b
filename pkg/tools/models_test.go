package tools

import (
	"path/filepath"
	"testing"

	"github.com/richard-senior/podds/pkg/util/glm"
	"github.com/richard-senior/podds/pkg/util/podds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTools(t *testing.T) *ModelTools {
	t.Helper()
	db, err := podds.OpenDatabase(filepath.Join(t.TempDir(), "podds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	xg := &podds.XGModel{
		Pitch:  podds.WyscoutPitch,
		Params: podds.ClassifierParameters{podds.FeatureIntercept: -0.5, podds.FeatureDistance: -0.12, podds.FeatureAngle: 1.5},
	}
	require.NoError(t, db.SaveXGModel("shots", xg, 40))

	rows, err := podds.BuildTrainingRows([]podds.MatchResult{
		{HomeTeam: "Leeds", AwayTeam: "Hull", HomeGoals: 3, AwayGoals: 1},
		{HomeTeam: "Hull", AwayTeam: "Leeds", HomeGoals: 1, AwayGoals: 1},
		{HomeTeam: "Leeds", AwayTeam: "Hull", HomeGoals: 2, AwayGoals: 0},
		{HomeTeam: "Hull", AwayTeam: "Leeds", HomeGoals: 2, AwayGoals: 1},
	})
	require.NoError(t, err)
	league, err := podds.FitPoisson(rows, glm.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, db.SavePoissonModel("league", league, len(rows)))

	return NewModelTools(db, nil)
}

func TestHandleShotXG(t *testing.T) {
	mt := newTestTools(t)

	out, err := mt.HandleShotXG(map[string]any{"model": "shots", "x": 95.0, "y": "50"})
	require.NoError(t, err)
	res := out.(ShotXGResult)
	assert.Equal(t, "shots", res.Model)
	assert.InDelta(t, 5.25, res.Distance, 1e-9)
	assert.Greater(t, res.XG, 0.0)
	assert.Less(t, res.XG, 1.0)

	far, err := mt.HandleShotXG(map[string]any{"model": "shots", "x": 60.0, "y": 50.0})
	require.NoError(t, err)
	assert.Less(t, far.(ShotXGResult).XG, res.XG)
}

func TestHandleShotXGErrors(t *testing.T) {
	mt := newTestTools(t)

	_, err := mt.HandleShotXG(map[string]any{"model": "shots", "x": 95.0})
	assert.Error(t, err)
	_, err = mt.HandleShotXG(map[string]any{"model": "shots", "x": "far", "y": 50.0})
	assert.Error(t, err)
	_, err = mt.HandleShotXG(map[string]any{"model": "missing", "x": 95.0, "y": 50.0})
	assert.ErrorIs(t, err, podds.ErrModelNotFound)
	_, err = mt.HandleShotXG(map[string]any{"model": "league", "x": 95.0, "y": 50.0})
	assert.ErrorIs(t, err, podds.ErrInvalidInput)
	_, err = mt.HandleShotXG(nil)
	assert.Error(t, err)
}

func TestHandleScorelineMatrix(t *testing.T) {
	mt := newTestTools(t)

	out, err := mt.HandleScorelineMatrix(map[string]any{"model": "league", "home": "Leeds", "away": "Hull", "max_goals": 6.0})
	require.NoError(t, err)
	res := out.(ScorelineResult)
	assert.Len(t, res.Matrix.Cells, 7)
	assert.Nil(t, res.Sampled)
	o := res.Outcomes
	assert.InDelta(t, res.Matrix.Total(), o.HomeWin+o.Draw+o.AwayWin, 1e-12)
	assert.Greater(t, o.HomeWin, o.AwayWin)

	sampled, err := mt.HandleScorelineMatrix(map[string]any{"model": "league", "home": "Leeds", "away": "Hull", "monte_carlo": true})
	require.NoError(t, err)
	s := sampled.(ScorelineResult)
	require.NotNil(t, s.Sampled)
	assert.Len(t, s.Matrix.Cells, 11)
	assert.InDelta(t, s.Outcomes.HomeWin, s.Sampled.HomeWin, 0.02)
}

func TestScorelineMatrixLargestGoalCount(t *testing.T) {
	mt := newTestTools(t)

	out, err := mt.HandleScorelineMatrix(map[string]any{"model": "league", "home": "Leeds", "away": "Hull", "max_goals": 50.0})
	require.NoError(t, err)
	assert.Len(t, out.(ScorelineResult).Matrix.Cells, podds.MaxGoalsLimit+1)
}

func TestScorelineMatrixSkipsSamplingWithDixonColes(t *testing.T) {
	mt := newTestTools(t)
	cfg := *mt.Config
	cfg.DixonColesRho = -0.1
	corrected := NewModelTools(mt.DB, &cfg)

	out, err := corrected.HandleScorelineMatrix(map[string]any{"model": "league", "home": " Leeds", "away": "Hull ", "monte_carlo": true})
	require.NoError(t, err)
	res := out.(ScorelineResult)
	assert.Equal(t, -0.1, res.DixonColesRho)
	assert.Nil(t, res.Sampled)
}

func TestHandleScorelineMatrixErrors(t *testing.T) {
	mt := newTestTools(t)

	_, err := mt.HandleScorelineMatrix(map[string]any{"model": "league", "home": "Leeds", "away": "Leicester"})
	assert.ErrorIs(t, err, podds.ErrUnknownCategory)
	_, err = mt.HandleScorelineMatrix(map[string]any{"model": "league", "home": "Leeds", "away": "Hull", "max_goals": 2.5})
	assert.Error(t, err)
	_, err = mt.HandleScorelineMatrix(map[string]any{"model": "league", "home": "Leeds", "away": "Hull", "max_goals": 4000.0})
	assert.ErrorIs(t, err, podds.ErrInvalidInput)
	_, err = mt.HandleScorelineMatrix(map[string]any{"model": "league", "home": "Leeds", "away": "Hull", "max_goals": -1.0})
	assert.ErrorIs(t, err, podds.ErrInvalidInput)
	_, err = mt.HandleScorelineMatrix(map[string]any{"model": "league", "home": "", "away": "Hull"})
	assert.Error(t, err)
	_, err = mt.HandleScorelineMatrix(map[string]any{"model": "shots", "home": "Leeds", "away": "Hull"})
	assert.ErrorIs(t, err, podds.ErrInvalidInput)
}

func TestHandleListModels(t *testing.T) {
	mt := newTestTools(t)

	out, err := mt.HandleListModels(map[string]any{})
	require.NoError(t, err)
	models := out.(struct {
		Models []podds.ModelRecord `json:"models"`
	}).Models
	require.Len(t, models, 2)
	assert.Equal(t, "league", models[0].Name)
	assert.Equal(t, podds.ModelKindPoisson, models[0].Kind)
	assert.Equal(t, "shots", models[1].Name)
}

func TestToolDefinitions(t *testing.T) {
	for _, tool := range []struct {
		name     string
		required []string
	}{
		{ShotXGTool().Name, ShotXGTool().InputSchema.Required},
		{ScorelineMatrixTool().Name, ScorelineMatrixTool().InputSchema.Required},
		{ListModelsTool().Name, ListModelsTool().InputSchema.Required},
	} {
		assert.NotEmpty(t, tool.name)
		assert.NotNil(t, tool.required)
	}
	assert.Equal(t, []string{"model", "x", "y"}, ShotXGTool().InputSchema.Required)
}
