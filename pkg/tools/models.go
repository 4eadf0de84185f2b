package tools

import (
	"fmt"

	"github.com/richard-senior/podds/internal/logger"
	"github.com/richard-senior/podds/pkg/protocol"
	"github.com/richard-senior/podds/pkg/util"
	"github.com/richard-senior/podds/pkg/util/podds"
)

// ModelTools exposes stored models as MCP tools
type ModelTools struct {
	DB     *podds.Database
	Config *podds.PoddsConfig
}

// NewModelTools binds the tools to a store and a configuration.
// A nil config means the defaults.
func NewModelTools(db *podds.Database, cfg *podds.PoddsConfig) *ModelTools {
	if cfg == nil {
		cfg = podds.DefaultPoddsConfig()
	}
	return &ModelTools{DB: db, Config: cfg}
}

func ShotXGTool() protocol.Tool {
	return protocol.Tool{
		Name: "shot_xg",
		Description: `
		Returns the distance to goal, the angle the goal mouth subtends and the expected goals
		value of a single shot, using a stored xG model.
		Coordinates are in the frame the model was fitted in, normally 0-100 on both axes with
		the attack going towards x = 100.
		`,
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"model": {Type: "string", Description: "Name of the stored xG model, see list_models"},
				"x":     {Type: "number", Description: "Shot x coordinate"},
				"y":     {Type: "number", Description: "Shot y coordinate"},
			},
			Required: []string{"model", "x", "y"},
		},
	}
}

// ShotXGResult is the shot_xg tool output
type ShotXGResult struct {
	Model    string  `json:"model"`
	Distance float64 `json:"distance"`
	Angle    float64 `json:"angle"`
	XG       float64 `json:"xg"`
}

func (mt *ModelTools) HandleShotXG(params any) (any, error) {
	args, err := argsMap(params)
	if err != nil {
		return nil, err
	}
	name, err := stringArg(args, "model")
	if err != nil {
		return nil, err
	}
	x, err := floatArg(args, "x")
	if err != nil {
		return nil, err
	}
	y, err := floatArg(args, "y")
	if err != nil {
		return nil, err
	}

	m, err := mt.DB.LoadXGModel(name)
	if err != nil {
		return nil, err
	}
	dist, err := m.Pitch.ShotDistance(x, y)
	if err != nil {
		return nil, err
	}
	angle, err := m.Pitch.ShotAngle(x, y)
	if err != nil {
		return nil, err
	}
	xg, err := m.Predict([]float64{x, y})
	if err != nil {
		return nil, err
	}
	logger.Info("Shot xG", name, x, y, xg)
	return ShotXGResult{Model: name, Distance: dist, Angle: angle, XG: xg}, nil
}

func ScorelineMatrixTool() protocol.Tool {
	return protocol.Tool{
		Name: "scoreline_matrix",
		Description: `
		Predicts a fixture with a stored team Poisson model. Returns both expected goal rates,
		the matrix of scoreline probabilities, home/draw/away probabilities, the most likely
		score and over 1.5 / over 2.5 goals probabilities.
		Team names must match the names the model was fitted with.
		Sampled outcomes are omitted when a Dixon-Coles correction is configured.
		`,
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"model":       {Type: "string", Description: "Name of the stored poisson model, see list_models"},
				"home":        {Type: "string", Description: "Home team"},
				"away":        {Type: "string", Description: "Away team"},
				"max_goals":   {Type: "integer", Description: "Largest goal count per side in the matrix (at most 50), defaults to the configured value"},
				"monte_carlo": {Type: "boolean", Description: "Also return a sampled estimate of the outcome probabilities"},
			},
			Required: []string{"model", "home", "away"},
		},
	}
}

// ScorelineResult is the scoreline_matrix tool output
type ScorelineResult struct {
	*podds.FixturePrediction
	Sampled *podds.Outcomes `json:"sampledOutcomes,omitempty"`
}

func (mt *ModelTools) HandleScorelineMatrix(params any) (any, error) {
	args, err := argsMap(params)
	if err != nil {
		return nil, err
	}
	name, err := stringArg(args, "model")
	if err != nil {
		return nil, err
	}
	home, err := stringArg(args, "home")
	if err != nil {
		return nil, err
	}
	away, err := stringArg(args, "away")
	if err != nil {
		return nil, err
	}

	cfg := *mt.Config
	if raw, ok := args["max_goals"]; ok && raw != nil {
		if cfg.MaxGoals, err = util.GetAsInteger(raw); err != nil {
			return nil, fmt.Errorf("max_goals: %w", err)
		}
		if err := podds.ValidateConfig(&cfg); err != nil {
			return nil, fmt.Errorf("max_goals: %v: %w", err, podds.ErrInvalidInput)
		}
	}

	m, err := mt.DB.LoadPoissonModel(name)
	if err != nil {
		return nil, err
	}
	pred, err := podds.PredictFixture(m, home, away, &cfg)
	if err != nil {
		return nil, err
	}

	out := ScorelineResult{FixturePrediction: pred}
	// sampling draws independent scores so it only checks an uncorrected matrix
	if mc, _ := args["monte_carlo"].(bool); mc && cfg.DixonColesRho == 0 {
		sampled, err := pred.Matrix.MonteCarlo(cfg.MonteCarloSimulations, cfg.MonteCarloSeed)
		if err != nil {
			return nil, err
		}
		out.Sampled = &sampled
	}
	return out, nil
}

func ListModelsTool() protocol.Tool {
	return protocol.Tool{
		Name:        "list_models",
		Description: "Lists every stored xG and team Poisson model with its kind, size and fit statistics",
		InputSchema: protocol.InputSchema{
			Type:     "object",
			Required: []string{},
		},
	}
}

func (mt *ModelTools) HandleListModels(params any) (any, error) {
	models, err := mt.DB.ListModels()
	if err != nil {
		return nil, err
	}
	return struct {
		Models []podds.ModelRecord `json:"models"`
	}{Models: models}, nil
}

func argsMap(params any) (map[string]any, error) {
	if params == nil {
		return nil, fmt.Errorf("no params given")
	}
	m, ok := params.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("couldn't read the parameters as a map, got %T", params)
	}
	return m, nil
}

func stringArg(args map[string]any, name string) (string, error) {
	raw, err := util.GetParam(args, name)
	if err != nil {
		return "", err
	}
	s, err := util.GetAsString(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if s == "" {
		return "", fmt.Errorf("parameter %q must not be empty", name)
	}
	return s, nil
}

func floatArg(args map[string]any, name string) (float64, error) {
	raw, err := util.GetParam(args, name)
	if err != nil {
		return 0, err
	}
	f, err := util.GetAsFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}
