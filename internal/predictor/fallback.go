package predictor

import (
	"context"

	"github.com/mtrack/backend/internal/features"
	"github.com/mtrack/backend/internal/models"
)

// Fallback derives stress and depression levels from raw feature magnitudes
// with fixed rules. Same inputs always give the same output; Source marks
// the result as degraded so callers and tests can tell it apart from a real
// classification.
type Fallback struct{}

// Predict never fails.
func (f *Fallback) Predict(_ context.Context, v features.Vector) (*models.Prediction, error) {
	stress := models.LevelLow
	switch {
	case v.SkipScore >= 3 || (v.SkipScore >= 2 && v.MoodPolarity < 0):
		stress = models.LevelHigh
	case v.SkipScore >= 1 || v.Engagement < 2:
		stress = models.LevelModerate
	}

	depression := models.LevelLow
	switch {
	case v.MoodPolarity < 0 && v.NightFlag == 1:
		depression = models.LevelHigh
	case v.MoodPolarity < 0 || v.Engagement < 0:
		depression = models.LevelModerate
	}

	return &models.Prediction{
		StressLevel:     stress,
		StressProbs:     levelProbs(stress),
		DepressionLevel: depression,
		DepressionProbs: levelProbs(depression),
		Explanations:    Explain(v),
		Source:          models.SourceFallback,
	}, nil
}

// levelProbs assigns a fixed probability mass to the chosen level.
func levelProbs(level string) map[string]float64 {
	probs := map[string]float64{
		models.LevelLow:      0.15,
		models.LevelModerate: 0.15,
		models.LevelHigh:     0.15,
	}
	probs[level] = 0.70
	return probs
}
