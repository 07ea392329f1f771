package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mtrack/backend/internal/features"
	"github.com/mtrack/backend/internal/models"
)

const defaultTimeout = 10 * time.Second

// Client calls an external classifier service over HTTP.
type Client struct {
	url    string
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates an HTTP classifier client with a bounded timeout.
func NewClient(url string, timeoutSec int, logger *zap.Logger) *Client {
	timeout := defaultTimeout
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type predictResponse struct {
	StressLevel     string             `json:"stress_level"`
	StressProbs     map[string]float64 `json:"stress_probs"`
	DepressionLevel string             `json:"depression_level"`
	DepressionProbs map[string]float64 `json:"depression_probs"`
}

// Predict posts the feature vector to the classifier. Explanation strings
// are generated locally from the pre-classification features, so they stay
// available regardless of what the classifier returns.
func (c *Client) Predict(ctx context.Context, v features.Vector) (*models.Prediction, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier status: %d", resp.StatusCode)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if out.StressLevel == "" || out.DepressionLevel == "" {
		return nil, fmt.Errorf("classifier response missing levels")
	}

	return &models.Prediction{
		StressLevel:     out.StressLevel,
		StressProbs:     out.StressProbs,
		DepressionLevel: out.DepressionLevel,
		DepressionProbs: out.DepressionProbs,
		Explanations:    Explain(v),
		Source:          models.SourceClassifier,
	}, nil
}
