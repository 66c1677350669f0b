// Package model provides an HTTP client for a remotely served trained
// regressor. It implements estimator.Model.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/estimator"
	"github.com/couchcryptid/precip-forecast/internal/observability"
	"github.com/sony/gobreaker"
)

// Client calls a model-serving endpoint for predictions. A circuit breaker
// guards the engine against a slow or down model server; while the circuit is
// open, predictions fail fast and the blend proceeds without the regressor.
type Client struct {
	endpoint   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a model client for the given predict endpoint.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	settings := gobreaker.Settings{
		Name:    "model-predict",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("model circuit state change", "name", name, "from", from.String(), "to", to.String())
			if to == gobreaker.StateOpen {
				metrics.ModelCircuitOpen.Set(1)
			} else {
				metrics.ModelCircuitOpen.Set(0)
			}
		},
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}
}

// Predict posts the features to the model server and decodes its prediction.
func (c *Client) Predict(ctx context.Context, features estimator.Features) (estimator.Prediction, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.predict(ctx, features)
	})
	if err != nil {
		return estimator.Prediction{}, err
	}
	return result.(estimator.Prediction), nil
}

func (c *Client) predict(ctx context.Context, features estimator.Features) (estimator.Prediction, error) {
	body, err := json.Marshal(features)
	if err != nil {
		return estimator.Prediction{}, fmt.Errorf("encode features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return estimator.Prediction{}, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return estimator.Prediction{}, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return estimator.Prediction{}, fmt.Errorf("predict returned %d: %s", resp.StatusCode, snippet)
	}

	var pred estimator.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return estimator.Prediction{}, fmt.Errorf("decode prediction: %w", err)
	}
	return pred, nil
}
