package podds

import (
	"errors"
	"fmt"
	"os"

	"github.com/richard-senior/podds/pkg/util/glm"
	"gopkg.in/yaml.v3"
)

// PoddsConfig contains all configurable parameters for fitting and prediction.
// File locations live here and are handed to loaders explicitly.
type PoddsConfig struct {
	// === FILE LOCATIONS ===
	DbPath      string `yaml:"dbPath"`      // sqlite parameter store
	ShotsPath   string `yaml:"shotsPath"`   // default shot corpus for fit-xg
	ResultsPath string `yaml:"resultsPath"` // default season results for fit-poisson
	LogPath     string `yaml:"logPath"`     // log file used when serving over stdio

	// === SHOT GEOMETRY ===
	PitchPreset string       `yaml:"pitchPreset"` // name of a preset, ignored when Pitch is set
	Pitch       *PitchConfig `yaml:"pitch"`       // explicit frame, overrides PitchPreset

	// === MODEL FITTING ===
	MaxIterations int     `yaml:"maxIterations"` // IRLS iteration cap (default: 100)
	Tolerance     float64 `yaml:"tolerance"`     // relative deviance change (default: 1e-8)

	// === SCORELINE SIMULATION ===
	MaxGoals              int     `yaml:"maxGoals"`              // matrix covers 0..MaxGoals (default: 10)
	DixonColesRho         float64 `yaml:"dixonColesRho"`         // low score correction, 0 disables (default: 0)
	MonteCarloSimulations int     `yaml:"monteCarloSimulations"` // samples for the cross check (default: 100000)
	MonteCarloSeed        int64   `yaml:"monteCarloSeed"`        // seed for the cross check (default: 1)

	// === OVER/UNDER GOALS THRESHOLDS ===
	Over1p5GoalsThreshold float64 `yaml:"over1p5GoalsThreshold"` // default: 1.5
	Over2p5GoalsThreshold float64 `yaml:"over2p5GoalsThreshold"` // default: 2.5
}

// DefaultPoddsConfig returns the default configuration with all standard values
func DefaultPoddsConfig() *PoddsConfig {
	return &PoddsConfig{
		DbPath:  "podds.db",
		LogPath: "podds.log",

		PitchPreset: WyscoutPitch.Name,

		MaxIterations: 100,
		Tolerance:     1e-8,

		MaxGoals:              10,
		DixonColesRho:         0,
		MonteCarloSimulations: 100000,
		MonteCarloSeed:        1,

		Over1p5GoalsThreshold: 1.5,
		Over2p5GoalsThreshold: 2.5,
	}
}

// Global configuration instance
var Config = DefaultPoddsConfig()

// UpdateConfig validates and then replaces the global configuration
func UpdateConfig(newConfig *PoddsConfig) error {
	if err := ValidateConfig(newConfig); err != nil {
		return err
	}
	Config = newConfig
	return nil
}

// LoadConfig reads a YAML file over the defaults. Keys missing from the file
// keep their default value.
func LoadConfig(path string) (*PoddsConfig, error) {
	cfg := DefaultPoddsConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// GetPitch resolves the frame shots arrive in
func (c *PoddsConfig) GetPitch() (PitchConfig, error) {
	if c.Pitch != nil {
		return *c.Pitch, c.Pitch.Validate()
	}
	p, ok := PitchPresets[c.PitchPreset]
	if !ok {
		return PitchConfig{}, fmt.Errorf("unknown pitch preset %q: %w", c.PitchPreset, ErrInvalidInput)
	}
	return p, nil
}

// FitOptions turns the fitting settings into solver options
func (c *PoddsConfig) FitOptions() glm.Options {
	return glm.Options{MaxIter: c.MaxIterations, Tol: c.Tolerance}
}

// === CONFIGURATION VALIDATION ===

// MaxGoalsLimit caps the scoreline matrix side
const MaxGoalsLimit = 50

// ValidateConfig ensures all configuration values are within reasonable ranges
func ValidateConfig(config *PoddsConfig) error {
	if config == nil {
		return errors.New("config must not be nil")
	}

	if _, err := config.GetPitch(); err != nil {
		return err
	}

	if config.MaxIterations < 1 {
		return fmt.Errorf("MaxIterations must be at least 1, got: %d", config.MaxIterations)
	}

	if !(config.Tolerance > 0) {
		return fmt.Errorf("Tolerance must be positive, got: %g", config.Tolerance)
	}

	if config.MaxGoals < 0 || config.MaxGoals > MaxGoalsLimit {
		return fmt.Errorf("MaxGoals must be between 0 and %d, got: %d", MaxGoalsLimit, config.MaxGoals)
	}

	if config.DixonColesRho < -0.2 || config.DixonColesRho > 0.2 {
		return fmt.Errorf("DixonColesRho should be between -0.2 and 0.2, got: %f", config.DixonColesRho)
	}

	if config.MonteCarloSimulations < 1 {
		return fmt.Errorf("MonteCarloSimulations must be at least 1, got: %d", config.MonteCarloSimulations)
	}

	if config.Over1p5GoalsThreshold < 0 || config.Over2p5GoalsThreshold < 0 {
		return fmt.Errorf("goal thresholds must not be negative, got: %f and %f",
			config.Over1p5GoalsThreshold, config.Over2p5GoalsThreshold)
	}

	return nil
}
