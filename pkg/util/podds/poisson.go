package podds

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/richard-senior/podds/internal/logger"
	"gonum.org/v1/gonum/stat/distuv"
)

// PoissonPMF returns P(X = k) for k = 0..maxGoals
func PoissonPMF(lambda float64, maxGoals int) ([]float64, error) {
	if err := checkRate(lambda); err != nil {
		return nil, err
	}
	if maxGoals < 0 {
		return nil, fmt.Errorf("max goals must not be negative, got %d: %w", maxGoals, ErrInvalidInput)
	}
	dist := distuv.Poisson{Lambda: lambda}
	pmf := make([]float64, maxGoals+1)
	for k := range pmf {
		pmf[k] = dist.Prob(float64(k))
	}
	return pmf, nil
}

func checkRate(lambda float64) error {
	if !(lambda > 0) || math.IsInf(lambda, 0) {
		return fmt.Errorf("goal rate must be a positive finite number, got %v: %w", lambda, ErrInvalidInput)
	}
	return nil
}

// ScoreMatrix is the joint scoreline distribution of a fixture.
// Cells[i][j] is P(home scores i) * P(away scores j); mass beyond MaxGoals
// on either side is not represented so the total is at most 1.
type ScoreMatrix struct {
	HomeTeam string      `json:"homeTeam,omitempty"`
	AwayTeam string      `json:"awayTeam,omitempty"`
	HomeRate float64     `json:"homeRate"`
	AwayRate float64     `json:"awayRate"`
	MaxGoals int         `json:"maxGoals"`
	Cells    [][]float64 `json:"cells"`
}

// NewScoreMatrix builds the matrix straight from two goal rates
func NewScoreMatrix(homeRate, awayRate float64, maxGoals int) (*ScoreMatrix, error) {
	home, err := PoissonPMF(homeRate, maxGoals)
	if err != nil {
		return nil, fmt.Errorf("home rate: %w", err)
	}
	away, err := PoissonPMF(awayRate, maxGoals)
	if err != nil {
		return nil, fmt.Errorf("away rate: %w", err)
	}

	cells := make([][]float64, len(home))
	for i, ph := range home {
		cells[i] = make([]float64, len(away))
		for j, pa := range away {
			cells[i][j] = ph * pa
		}
	}
	return &ScoreMatrix{HomeRate: homeRate, AwayRate: awayRate, MaxGoals: maxGoals, Cells: cells}, nil
}

// SimulateScorelineMatrix asks the model for both rates and builds the matrix.
// The two sides are treated as independent.
func SimulateScorelineMatrix(model RateModel, home, away string, maxGoals int) (*ScoreMatrix, error) {
	if model == nil {
		return nil, fmt.Errorf("no rate model supplied: %w", ErrInvalidInput)
	}
	homeRate, err := model.PredictRate(home, away, true)
	if err != nil {
		return nil, err
	}
	awayRate, err := model.PredictRate(away, home, false)
	if err != nil {
		return nil, err
	}
	logger.Debug("Expected goals", home, homeRate, away, awayRate)

	sm, err := NewScoreMatrix(homeRate, awayRate, maxGoals)
	if err != nil {
		return nil, err
	}
	sm.HomeTeam, sm.AwayTeam = home, away
	return sm, nil
}

// At is the probability of the exact score, zero outside the matrix
func (sm *ScoreMatrix) At(homeGoals, awayGoals int) float64 {
	if homeGoals < 0 || awayGoals < 0 || homeGoals > sm.MaxGoals || awayGoals > sm.MaxGoals {
		return 0
	}
	return sm.Cells[homeGoals][awayGoals]
}

func (sm *ScoreMatrix) Total() float64 {
	total := 0.0
	for _, row := range sm.Cells {
		for _, p := range row {
			total += p
		}
	}
	return total
}

// Outcomes holds home win, draw and away win probabilities
type Outcomes struct {
	HomeWin float64 `json:"homeWin"`
	Draw    float64 `json:"draw"`
	AwayWin float64 `json:"awayWin"`
}

// Outcomes sums the lower triangle, diagonal and upper triangle
func (sm *ScoreMatrix) Outcomes() Outcomes {
	var o Outcomes
	for i, row := range sm.Cells {
		for j, p := range row {
			switch {
			case i > j:
				o.HomeWin += p
			case i == j:
				o.Draw += p
			default:
				o.AwayWin += p
			}
		}
	}
	return o
}

// OverGoals is the probability the combined score exceeds threshold
func (sm *ScoreMatrix) OverGoals(threshold float64) float64 {
	over := 0.0
	for i, row := range sm.Cells {
		for j, p := range row {
			if float64(i+j) > threshold {
				over += p
			}
		}
	}
	return over
}

func (sm *ScoreMatrix) BothTeamsToScore() float64 {
	btts := 0.0
	for i := 1; i < len(sm.Cells); i++ {
		for j := 1; j < len(sm.Cells[i]); j++ {
			btts += sm.Cells[i][j]
		}
	}
	return btts
}

// MostLikelyScore returns the modal scoreline; ties go to the lower score
func (sm *ScoreMatrix) MostLikelyScore() (homeGoals, awayGoals int, p float64) {
	p = -1
	for i, row := range sm.Cells {
		for j, v := range row {
			if v > p {
				homeGoals, awayGoals, p = i, j, v
			}
		}
	}
	return homeGoals, awayGoals, p
}

// DixonColes returns a copy with the four low scores reweighted by the
// Dixon-Coles tau factor. The copy is rescaled to the original total.
func (sm *ScoreMatrix) DixonColes(rho float64) (*ScoreMatrix, error) {
	if math.IsNaN(rho) || math.IsInf(rho, 0) {
		return nil, fmt.Errorf("rho must be finite, got %v: %w", rho, ErrInvalidInput)
	}
	out := &ScoreMatrix{
		HomeTeam: sm.HomeTeam,
		AwayTeam: sm.AwayTeam,
		HomeRate: sm.HomeRate,
		AwayRate: sm.AwayRate,
		MaxGoals: sm.MaxGoals,
		Cells:    make([][]float64, len(sm.Cells)),
	}
	for i, row := range sm.Cells {
		out.Cells[i] = make([]float64, len(row))
		for j, p := range row {
			out.Cells[i][j] = p * tau(i, j, sm.HomeRate, sm.AwayRate, rho)
			if out.Cells[i][j] < 0 {
				return nil, fmt.Errorf("rho %v makes the %d-%d score negative: %w", rho, i, j, ErrInvalidInput)
			}
		}
	}

	before, after := sm.Total(), out.Total()
	if after > 0 {
		scale := before / after
		for _, row := range out.Cells {
			for j := range row {
				row[j] *= scale
			}
		}
	}
	return out, nil
}

func tau(i, j int, homeRate, awayRate, rho float64) float64 {
	switch {
	case i == 0 && j == 0:
		return 1 - homeRate*awayRate*rho
	case i == 0 && j == 1:
		return 1 + homeRate*rho
	case i == 1 && j == 0:
		return 1 + awayRate*rho
	case i == 1 && j == 1:
		return 1 - rho
	}
	return 1
}

// MonteCarlo samples goal counts from both rates and tallies the outcomes.
// The same seed always gives the same result.
func (sm *ScoreMatrix) MonteCarlo(simulations int, seed int64) (Outcomes, error) {
	if simulations <= 0 {
		return Outcomes{}, fmt.Errorf("simulations must be positive, got %d: %w", simulations, ErrInvalidInput)
	}
	rng := rand.New(rand.NewSource(seed))
	var home, draw, away int
	for n := 0; n < simulations; n++ {
		h := poissonRandom(sm.HomeRate, rng)
		a := poissonRandom(sm.AwayRate, rng)
		switch {
		case h > a:
			home++
		case h == a:
			draw++
		default:
			away++
		}
	}
	total := float64(simulations)
	return Outcomes{
		HomeWin: float64(home) / total,
		Draw:    float64(draw) / total,
		AwayWin: float64(away) / total,
	}, nil
}

// poissonRandom uses Knuth's method for small rates and a normal
// approximation above 30
func poissonRandom(lambda float64, rng *rand.Rand) int {
	if lambda >= 30 {
		k := int(math.Round(lambda + math.Sqrt(lambda)*rng.NormFloat64()))
		if k < 0 {
			return 0
		}
		return k
	}
	limit := math.Exp(-lambda)
	k := 0
	p := 1.0
	for p > limit {
		k++
		p *= rng.Float64()
	}
	return k - 1
}

// FixturePrediction bundles everything a caller usually wants for one game
type FixturePrediction struct {
	Matrix        *ScoreMatrix `json:"matrix"`
	Outcomes      Outcomes     `json:"outcomes"`
	HomeGoals     int          `json:"predictedHomeGoals"`
	AwayGoals     int          `json:"predictedAwayGoals"`
	ScoreProb     float64      `json:"predictedScoreProbability"`
	Over1p5Goals  float64      `json:"over1p5Goals"`
	Over2p5Goals  float64      `json:"over2p5Goals"`
	BothToScore   float64      `json:"bothTeamsToScore"`
	MissingMass   float64      `json:"missingMass"`
	DixonColesRho float64      `json:"dixonColesRho,omitempty"`
}

// PredictFixture builds the score matrix using the settings in cfg
func PredictFixture(model RateModel, home, away string, cfg *PoddsConfig) (*FixturePrediction, error) {
	if cfg == nil {
		cfg = DefaultPoddsConfig()
	}
	sm, err := SimulateScorelineMatrix(model, home, away, cfg.MaxGoals)
	if err != nil {
		return nil, err
	}
	if cfg.DixonColesRho != 0 {
		if sm, err = sm.DixonColes(cfg.DixonColesRho); err != nil {
			return nil, err
		}
	}

	h, a, p := sm.MostLikelyScore()
	pred := &FixturePrediction{
		Matrix:        sm,
		Outcomes:      sm.Outcomes(),
		HomeGoals:     h,
		AwayGoals:     a,
		ScoreProb:     p,
		Over1p5Goals:  sm.OverGoals(cfg.Over1p5GoalsThreshold),
		Over2p5Goals:  sm.OverGoals(cfg.Over2p5GoalsThreshold),
		BothToScore:   sm.BothTeamsToScore(),
		MissingMass:   1 - sm.Total(),
		DixonColesRho: cfg.DixonColesRho,
	}
	logger.Info("Predicted", home, "v", away, fmt.Sprintf("%d-%d", h, a),
		"H", pred.Outcomes.HomeWin, "D", pred.Outcomes.Draw, "A", pred.Outcomes.AwayWin)
	return pred, nil
}
