// Package predictor provides a uniform gateway to the stress/depression
// classifier. When a classifier service is configured, predictions come from
// it over HTTP with a bounded timeout; otherwise a deterministic rule-based
// fallback keeps the API functional in degraded mode. The gateway never
// masks classifier errors: callers decide whether to propagate (explicit
// session end) or substitute an Unknown result (inactivity sweep).
package predictor

import (
	"context"

	"go.uber.org/zap"

	"github.com/mtrack/backend/internal/features"
	"github.com/mtrack/backend/internal/models"
)

// Gateway produces a prediction from an aggregated feature vector.
type Gateway interface {
	Predict(ctx context.Context, v features.Vector) (*models.Prediction, error)
}

// New returns the HTTP-backed gateway when url is non-empty, the rule-based
// fallback otherwise.
func New(url string, timeoutSec int, logger *zap.Logger) Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		logger.Warn("no classifier configured, predictions use rule-based fallback")
		return &Fallback{}
	}
	return NewClient(url, timeoutSec, logger)
}

// Unknown is the degraded result substituted when a sweep cannot obtain a
// prediction. The sweep must always terminate stale sessions, so it absorbs
// predictor failures into this value instead of propagating them.
func Unknown(note string) *models.Prediction {
	return &models.Prediction{
		StressLevel:     models.LevelUnknown,
		StressProbs:     map[string]float64{},
		DepressionLevel: models.LevelUnknown,
		DepressionProbs: map[string]float64{},
		Explanations:    []string{note},
		Source:          models.SourceUnavailable,
	}
}
