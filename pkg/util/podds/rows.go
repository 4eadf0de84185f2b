package podds

import (
	"fmt"
	"strings"
)

// MatchResult is a finished fixture as supplied by a loader
type MatchResult struct {
	HomeTeam  string `json:"homeTeam"`
	AwayTeam  string `json:"awayTeam"`
	HomeGoals int    `json:"homeGoals"`
	AwayGoals int    `json:"awayGoals"`
}

// ScoringRecord is one side's view of a match
type ScoringRecord struct {
	Team     string `json:"team"`
	Opponent string `json:"opponent"`
	Home     bool   `json:"home"`
	Goals    int    `json:"goals"`
}

// Validate rejects blank names, self fixtures and negative scores
func (m MatchResult) Validate() error {
	home, away := strings.TrimSpace(m.HomeTeam), strings.TrimSpace(m.AwayTeam)
	if home == "" || away == "" {
		return fmt.Errorf("match %q v %q is missing a team name: %w", m.HomeTeam, m.AwayTeam, ErrInvalidInput)
	}
	if home == away {
		return fmt.Errorf("team %q cannot play itself: %w", home, ErrInvalidInput)
	}
	if m.HomeGoals < 0 || m.AwayGoals < 0 {
		return fmt.Errorf("match %s v %s has a negative score %d-%d: %w", home, away, m.HomeGoals, m.AwayGoals, ErrInvalidInput)
	}
	return nil
}

// BuildTrainingRows emits two scoring records per match, one per side
func BuildTrainingRows(matches []MatchResult) ([]ScoringRecord, error) {
	rows := make([]ScoringRecord, 0, 2*len(matches))
	for i, m := range matches {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("match %d: %w", i, err)
		}
		home, away := strings.TrimSpace(m.HomeTeam), strings.TrimSpace(m.AwayTeam)
		rows = append(rows,
			ScoringRecord{Team: home, Opponent: away, Home: true, Goals: m.HomeGoals},
			ScoringRecord{Team: away, Opponent: home, Home: false, Goals: m.AwayGoals},
		)
	}
	return rows, nil
}
