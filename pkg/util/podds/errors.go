package podds

import (
	"errors"

	"github.com/richard-senior/podds/pkg/util/glm"
)

var (
	// ErrInvalidInput covers malformed coordinates, counts, team names and
	// model parameters. It is the same sentinel the glm package returns.
	ErrInvalidInput = glm.ErrInvalidInput
	// ErrNotConverged is returned instead of partially fit coefficients
	ErrNotConverged = glm.ErrNotConverged
	// ErrUnknownCategory means a team or opponent was absent from the fit data
	ErrUnknownCategory = errors.New("unknown category")
	// ErrModelNotFound means no stored model has the requested name
	ErrModelNotFound = errors.New("model not found")
)
