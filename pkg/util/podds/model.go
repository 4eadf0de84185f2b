package podds

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/richard-senior/podds/internal/logger"
	"github.com/richard-senior/podds/pkg/util/glm"
)

const (
	featureHome     = "home"
	teamPrefix      = "team["
	opponentPrefix  = "opponent["
	maxSuggestions  = 3
	maxEditDistance = 4
)

// RateModel is anything that can give an expected goal count for one side of
// a fixture. The score matrix only ever needs this.
type RateModel interface {
	PredictRate(team, opponent string, home bool) (float64, error)
}

// PoissonModel is a fitted log-linear model of goals on team, opponent and
// venue. Team and opponent are treatment coded against Teams[0].
type PoissonModel struct {
	Teams     []string
	teamIndex map[string]int
	fit       *glm.Result
}

var (
	_ RateModel       = (*PoissonModel)(nil)
	_ glm.FittedModel = (*PoissonModel)(nil)
)

func teamColumn(team string) string     { return teamPrefix + team + "]" }
func opponentColumn(team string) string { return opponentPrefix + team + "]" }

// designNames lays out Intercept, team dummies, opponent dummies, home
func designNames(teams []string) []string {
	names := make([]string, 0, 2*len(teams))
	names = append(names, FeatureIntercept)
	for _, t := range teams[1:] {
		names = append(names, teamColumn(t))
	}
	for _, t := range teams[1:] {
		names = append(names, opponentColumn(t))
	}
	return append(names, featureHome)
}

func newPoissonModel(teams []string) *PoissonModel {
	idx := make(map[string]int, len(teams))
	for i, t := range teams {
		idx[t] = i
	}
	return &PoissonModel{Teams: teams, teamIndex: idx}
}

// FitPoisson fits goals ~ team + opponent + home over the training rows
func FitPoisson(rows []ScoringRecord, opts glm.Options) (*PoissonModel, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no scoring records to fit: %w", ErrInvalidInput)
	}

	seen := make(map[string]bool)
	for i, r := range rows {
		if strings.TrimSpace(r.Team) == "" || strings.TrimSpace(r.Opponent) == "" {
			return nil, fmt.Errorf("record %d is missing a team name: %w", i, ErrInvalidInput)
		}
		if r.Goals < 0 {
			return nil, fmt.Errorf("record %d has negative goals %d: %w", i, r.Goals, ErrInvalidInput)
		}
		seen[r.Team] = true
		seen[r.Opponent] = true
	}
	teams := make([]string, 0, len(seen))
	for t := range seen {
		teams = append(teams, t)
	}
	sort.Strings(teams)
	if len(teams) < 2 {
		return nil, fmt.Errorf("need at least two teams, got %d: %w", len(teams), ErrInvalidInput)
	}

	m := newPoissonModel(teams)
	names := designNames(teams)
	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x[i] = m.designRow(r.Team, r.Opponent, r.Home)
		y[i] = float64(r.Goals)
	}

	logger.Info("Fitting poisson model", len(rows), "records", len(teams), "teams")
	res, err := glm.Fit(glm.Poisson, names, x, y, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fit poisson model: %w", err)
	}
	logger.Info("Poisson model converged after", res.Iterations, "iterations, deviance", res.Deviance)

	m.fit = res
	return m, nil
}

// NewPoissonModelFromCoefficients rebuilds a model from stored coefficients.
// The reference team has no columns of its own so it is passed separately.
func NewPoissonModelFromCoefficients(reference string, coefs map[string]float64) (*PoissonModel, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("reference team is required: %w", ErrInvalidInput)
	}
	teams := []string{reference}
	for name := range coefs {
		if strings.HasPrefix(name, teamPrefix) && strings.HasSuffix(name, "]") {
			teams = append(teams, strings.TrimSuffix(strings.TrimPrefix(name, teamPrefix), "]"))
		}
	}
	sort.Strings(teams[1:])
	if len(teams) < 2 {
		return nil, fmt.Errorf("no team coefficients found: %w", ErrInvalidInput)
	}
	if teams[1] < reference {
		return nil, fmt.Errorf("reference %q must sort before every other team: %w", reference, ErrInvalidInput)
	}

	res, err := glm.FromCoefficients(glm.Poisson, designNames(teams), coefs)
	if err != nil {
		return nil, err
	}
	m := newPoissonModel(teams)
	m.fit = res
	return m, nil
}

func (m *PoissonModel) designRow(team, opponent string, home bool) []float64 {
	n := len(m.Teams) - 1
	row := make([]float64, 2*n+2)
	row[0] = 1
	if i := m.teamIndex[team]; i > 0 {
		row[i] = 1
	}
	if i := m.teamIndex[opponent]; i > 0 {
		row[n+i] = 1
	}
	if home {
		row[2*n+1] = 1
	}
	return row
}

// PredictRate is the expected goals for team against opponent.
// A team the model never saw is rejected rather than mapped to the baseline.
func (m *PoissonModel) PredictRate(team, opponent string, home bool) (float64, error) {
	team, opponent = strings.TrimSpace(team), strings.TrimSpace(opponent)
	if err := m.checkKnown(team); err != nil {
		return 0, err
	}
	if err := m.checkKnown(opponent); err != nil {
		return 0, err
	}
	if team == opponent {
		return 0, fmt.Errorf("team %q cannot play itself: %w", team, ErrInvalidInput)
	}
	rate, err := m.fit.Predict(m.designRow(team, opponent, home))
	if err != nil {
		return 0, err
	}
	if !(rate > 0) || math.IsInf(rate, 0) {
		return 0, fmt.Errorf("rate for %s v %s is not a positive number: %w", team, opponent, ErrNotConverged)
	}
	return rate, nil
}

// Predict evaluates a raw design row laid out as Names()
func (m *PoissonModel) Predict(features []float64) (float64, error) {
	return m.fit.Predict(features)
}

func (m *PoissonModel) Coefficients() map[string]float64 {
	return m.fit.Coefficients()
}

// Names is the design column order
func (m *PoissonModel) Names() []string {
	return append([]string(nil), m.fit.Names...)
}

// Reference is the team every other team is measured against
func (m *PoissonModel) Reference() string {
	return m.Teams[0]
}

func (m *PoissonModel) Deviance() float64 {
	return m.fit.Deviance
}

func (m *PoissonModel) Iterations() int {
	return m.fit.Iterations
}

// HomeAdvantage is the multiplicative boost to a side's rate at home
func (m *PoissonModel) HomeAdvantage() float64 {
	return math.Exp(m.fit.Coefficients()[featureHome])
}

func (m *PoissonModel) checkKnown(team string) error {
	if _, ok := m.teamIndex[team]; ok {
		return nil
	}
	suggestions := m.suggest(team)
	if len(suggestions) == 0 {
		return fmt.Errorf("team %q was not in the fit data: %w", team, ErrUnknownCategory)
	}
	return fmt.Errorf("team %q was not in the fit data, did you mean %s: %w",
		team, strings.Join(suggestions, ", "), ErrUnknownCategory)
}

// suggest finds known teams that look like the requested name
func (m *PoissonModel) suggest(team string) []string {
	ranks := fuzzy.RankFindFold(team, m.Teams)
	sort.Sort(ranks)
	var out []string
	for _, r := range ranks {
		if len(out) == maxSuggestions {
			return out
		}
		out = append(out, r.Target)
	}
	if len(out) > 0 {
		return out
	}

	best, bestDist := "", maxEditDistance+1
	for _, t := range m.Teams {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(team), strings.ToLower(t)); d < bestDist {
			best, bestDist = t, d
		}
	}
	if best != "" {
		out = append(out, best)
	}
	return out
}
