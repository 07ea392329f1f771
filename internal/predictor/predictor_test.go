package predictor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtrack/backend/internal/features"
	"github.com/mtrack/backend/internal/models"
)

func vectorFor(data models.AggregatedData) features.Vector {
	return features.Aggregate(data)
}

func TestFallbackIsDeterministic(t *testing.T) {
	v := vectorFor(models.AggregatedData{
		SongCategoryMode: "sad",
		SkipRateBucket:   "3-5 times",
	})

	fb := &Fallback{}
	first, err := fb.Predict(context.Background(), v)
	require.NoError(t, err)
	second, err := fb.Predict(context.Background(), v)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, models.SourceFallback, first.Source)
	assert.NotEmpty(t, first.Explanations)
}

func TestFallbackHighStress(t *testing.T) {
	v := vectorFor(models.AggregatedData{SkipRateBucket: "More than 5 times"})

	p, err := (&Fallback{}).Predict(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, models.LevelHigh, p.StressLevel)
	assert.Equal(t, 0.70, p.StressProbs[models.LevelHigh])
}

func TestFallbackHighDepressionOnSadNightListening(t *testing.T) {
	v := vectorFor(models.AggregatedData{
		SongCategoryMode:   "sad",
		ListeningTimeOfDay: "Midnight (12am-5am)",
	})

	p, err := (&Fallback{}).Predict(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, models.LevelHigh, p.DepressionLevel)
}

func TestFallbackLowRisk(t *testing.T) {
	v := vectorFor(models.AggregatedData{
		SongCategoryMode:    "happy",
		SkipRateBucket:      "Never",
		RepeatBucket:        "1-2 times",
		DurationRatioBucket: "Full song",
		SongDiversityBucket: "2-3 categories",
	})

	p, err := (&Fallback{}).Predict(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, models.LevelLow, p.StressLevel)
	assert.Equal(t, models.LevelLow, p.DepressionLevel)
}

func TestClientDecodesClassifierResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		var v features.Vector
		require.NoError(t, json.NewDecoder(r.Body).Decode(&v))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"stress_level":     "Moderate",
			"stress_probs":     map[string]float64{"Low": 0.1, "Moderate": 0.7, "High": 0.2},
			"depression_level": "Low",
			"depression_probs": map[string]float64{"Low": 0.8, "Moderate": 0.15, "High": 0.05},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5, nil)
	p, err := client.Predict(context.Background(), vectorFor(models.AggregatedData{}))
	require.NoError(t, err)
	assert.Equal(t, "Moderate", p.StressLevel)
	assert.Equal(t, models.SourceClassifier, p.Source)
	assert.NotEmpty(t, p.Explanations)
}

func TestClientPropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5, nil)
	_, err := client.Predict(context.Background(), vectorFor(models.AggregatedData{}))
	assert.Error(t, err)
}

func TestNewSelectsFallbackWithoutURL(t *testing.T) {
	_, ok := New("", 0, nil).(*Fallback)
	assert.True(t, ok)

	_, ok = New("http://classifier:9000", 5, nil).(*Client)
	assert.True(t, ok)
}

func TestUnknownResult(t *testing.T) {
	p := Unknown("prediction unavailable during sweep")
	assert.Equal(t, models.LevelUnknown, p.StressLevel)
	assert.Equal(t, models.LevelUnknown, p.DepressionLevel)
	assert.Equal(t, models.SourceUnavailable, p.Source)
	assert.Equal(t, []string{"prediction unavailable during sweep"}, p.Explanations)
	assert.Empty(t, p.StressProbs)
}

func TestExplainAlwaysReturnsSomething(t *testing.T) {
	out := Explain(vectorFor(models.AggregatedData{
		SongCategoryMode:    "happy",
		SkipRateBucket:      "Never",
		SongDiversityBucket: "2-3 categories",
	}))
	assert.NotEmpty(t, out)
}
