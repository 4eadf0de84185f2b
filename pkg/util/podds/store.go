package podds

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/richard-senior/podds/internal/logger"
)

const (
	ModelKindXG      = "xg"
	ModelKindPoisson = "poisson"
)

// ModelRecord is the header row of a stored model
type ModelRecord struct {
	Name       string  `json:"name" column:"name" dbtype:"TEXT NOT NULL" primary:"true"`
	Kind       string  `json:"kind" column:"kind" dbtype:"TEXT NOT NULL" index:"true"`
	Reference  string  `json:"reference,omitempty" column:"reference" dbtype:"TEXT NOT NULL DEFAULT ''"` // baseline team of a poisson model
	Pitch      string  `json:"pitch,omitempty" column:"pitch" dbtype:"TEXT NOT NULL DEFAULT ''"`         // JSON PitchConfig of an xG model
	Rows       int     `json:"rows" column:"rows" dbtype:"INTEGER NOT NULL DEFAULT 0"`
	Iterations int     `json:"iterations" column:"iterations" dbtype:"INTEGER NOT NULL DEFAULT 0"`
	Deviance   float64 `json:"deviance" column:"deviance" dbtype:"REAL NOT NULL DEFAULT 0"`
	CreatedAt  int64   `json:"createdAt" column:"created_at" dbtype:"INTEGER NOT NULL"`
	UpdatedAt  int64   `json:"updatedAt" column:"updated_at" dbtype:"INTEGER NOT NULL"`
}

func (m *ModelRecord) GetTableName() string { return "model" }

func (m *ModelRecord) GetPrimaryKey() map[string]any {
	return map[string]any{"name": m.Name}
}

func (m *ModelRecord) BeforeSave() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("model name is required: %w", ErrInvalidInput)
	}
	if m.Kind != ModelKindXG && m.Kind != ModelKindPoisson {
		return fmt.Errorf("unknown model kind %q: %w", m.Kind, ErrInvalidInput)
	}
	now := time.Now().Unix()
	if m.CreatedAt == 0 {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	return nil
}

// Coefficient is one fitted value of a stored model
type Coefficient struct {
	Model   string  `column:"model" dbtype:"TEXT NOT NULL" primary:"true" fk:"model.name" fk_delete:"CASCADE"`
	Feature string  `column:"feature" dbtype:"TEXT NOT NULL" primary:"true"`
	Value   float64 `column:"value" dbtype:"REAL NOT NULL"`
}

func (c *Coefficient) GetTableName() string { return "coefficient" }

func (c *Coefficient) GetPrimaryKey() map[string]any {
	return map[string]any{"model": c.Model, "feature": c.Feature}
}

// saveModel replaces the named model and all of its coefficients atomically
func (d *Database) saveModel(rec *ModelRecord, coefs map[string]float64) error {
	var existing ModelRecord
	err := d.FindByPrimaryKey(&existing, rec.GetPrimaryKey())
	switch {
	case err == nil:
		rec.CreatedAt = existing.CreatedAt
	case !errors.Is(err, ErrModelNotFound):
		return fmt.Errorf("failed to read existing model %s: %w", rec.Name, err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := save(tx, rec); err != nil {
		return err
	}
	if err := deleteWhere(tx, "coefficient", "model = ?", rec.Name); err != nil {
		return err
	}
	features := make([]string, 0, len(coefs))
	for f := range coefs {
		features = append(features, f)
	}
	sort.Strings(features)
	for _, f := range features {
		if err := save(tx, &Coefficient{Model: rec.Name, Feature: f, Value: coefs[f]}); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit model %s: %w", rec.Name, err)
	}
	logger.Info("Saved model", rec.Name, rec.Kind, len(coefs), "coefficients")
	return nil
}

// loadModel returns the header row and coefficients of a stored model
func (d *Database) loadModel(name, kind string) (*ModelRecord, map[string]float64, error) {
	rec := &ModelRecord{}
	if err := d.FindByPrimaryKey(rec, map[string]any{"name": name}); err != nil {
		return nil, nil, fmt.Errorf("model %q: %w", name, err)
	}
	if rec.Kind != kind {
		return nil, nil, fmt.Errorf("model %q is a %s model, not %s: %w", name, rec.Kind, kind, ErrInvalidInput)
	}

	rows, err := d.FindWhere(&Coefficient{}, "model = ?", name)
	if err != nil {
		return nil, nil, err
	}
	coefs := make(map[string]float64, len(rows))
	for _, r := range rows {
		c := r.(*Coefficient)
		coefs[c.Feature] = c.Value
	}
	return rec, coefs, nil
}

// SaveXGModel stores fitted shot model parameters under name
func (d *Database) SaveXGModel(name string, m *XGModel, shots int) error {
	if m == nil {
		return fmt.Errorf("no xG model to save: %w", ErrInvalidInput)
	}
	if err := m.Params.Validate(); err != nil {
		return err
	}
	pitch, err := json.Marshal(m.Pitch)
	if err != nil {
		return fmt.Errorf("failed to encode pitch: %w", err)
	}
	rec := &ModelRecord{Name: name, Kind: ModelKindXG, Pitch: string(pitch), Rows: shots}
	return d.saveModel(rec, m.Params)
}

// LoadXGModel restores a shot model and the frame it was fitted in
func (d *Database) LoadXGModel(name string) (*XGModel, error) {
	rec, coefs, err := d.loadModel(name, ModelKindXG)
	if err != nil {
		return nil, err
	}
	m := &XGModel{Params: ClassifierParameters(coefs)}
	if err := json.Unmarshal([]byte(rec.Pitch), &m.Pitch); err != nil {
		return nil, fmt.Errorf("model %q has a corrupt pitch: %w", name, err)
	}
	if err := m.Pitch.Validate(); err != nil {
		return nil, err
	}
	if err := m.Params.Validate(); err != nil {
		return nil, fmt.Errorf("model %q: %w", name, err)
	}
	return m, nil
}

// SavePoissonModel stores a fitted team model under name
func (d *Database) SavePoissonModel(name string, m *PoissonModel, rows int) error {
	if m == nil || m.fit == nil {
		return fmt.Errorf("no poisson model to save: %w", ErrInvalidInput)
	}
	rec := &ModelRecord{
		Name:       name,
		Kind:       ModelKindPoisson,
		Reference:  m.Reference(),
		Rows:       rows,
		Iterations: m.Iterations(),
		Deviance:   m.Deviance(),
	}
	return d.saveModel(rec, m.Coefficients())
}

// LoadPoissonModel rebuilds a team model from its coefficients. The team
// list comes from the stored reference plus every team[...] column.
func (d *Database) LoadPoissonModel(name string) (*PoissonModel, error) {
	rec, coefs, err := d.loadModel(name, ModelKindPoisson)
	if err != nil {
		return nil, err
	}
	m, err := NewPoissonModelFromCoefficients(rec.Reference, coefs)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", name, err)
	}
	m.fit.Deviance = rec.Deviance
	m.fit.Iterations = rec.Iterations
	return m, nil
}

// ListModels returns every stored model header ordered by name
func (d *Database) ListModels() ([]ModelRecord, error) {
	rows, err := d.FindWhere(&ModelRecord{}, "")
	if err != nil {
		return nil, err
	}
	out := make([]ModelRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.(*ModelRecord))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteModel removes a model and its coefficients
func (d *Database) DeleteModel(name string) error {
	rec := &ModelRecord{Name: name}
	ok, err := d.Exists(rec)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("model %q: %w", name, ErrModelNotFound)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := deleteWhere(tx, "coefficient", "model = ?", name); err != nil {
		return err
	}
	if err := deleteWhere(tx, "model", "name = ?", name); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of %s: %w", name, err)
	}
	logger.Info("Deleted model", name)
	return nil
}
