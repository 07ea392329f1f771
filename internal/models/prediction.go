package models

// Risk levels produced by the classifier (or the rule fallback).
const (
	LevelLow      = "Low"
	LevelModerate = "Moderate"
	LevelHigh     = "High"
	LevelUnknown  = "Unknown"
)

// Prediction sources, so callers and tests can tell degraded mode apart.
const (
	SourceClassifier  = "classifier"
	SourceFallback    = "fallback"
	SourceUnavailable = "unavailable"
)

// Prediction is the classifier output attached to an ended session.
// Owned by the session that produced it, never shared or mutated.
type Prediction struct {
	StressLevel     string             `json:"stress_level"`
	StressProbs     map[string]float64 `json:"stress_probs"`
	DepressionLevel string             `json:"depression_level"`
	DepressionProbs map[string]float64 `json:"depression_probs"`
	Explanations    []string           `json:"explanations"`
	Source          string             `json:"source"`
}
