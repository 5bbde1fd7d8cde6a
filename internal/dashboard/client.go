/*
PURPOSE:
  HTTP client for the prediction service, used by the dashboard.

REQUIREMENTS:
  User-specified:
  - Check service health before anything else.
  - Read model info, request single predictions.

  Implementation-discovered:
  - Needs http.Client with timeouts; the service may be slow to answer
    while it is still loading the model.

ARCHITECTURE INTEGRATION:
  - Called by: internal/dashboard (Run, Explore)
  - Uses: internal/model, internal/output

ERROR HANDLING:
  - Non-200 responses become *APIError carrying the status and body.
  - No retries.

USAGE:
  c := dashboard.NewClient("http://localhost:8000", 10*time.Second)
  health, err := c.Health(ctx)

RELATED FILES:
  - internal/server/handlers.go
*/

package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/daryltucker/subscription-runner/internal/model"
	"github.com/daryltucker/subscription-runner/internal/output"
)

// APIError is a non-200 answer from the prediction service.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bad status %d: %s", e.Status, e.Body)
}

// Client talks to the prediction service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a Client. A zero timeout means 10s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			output.Logger.Debug("dashboard: first response byte", "path", path)
		},
	}
	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w (Body: %s)", err, string(data))
	}
	return nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*model.Health, error) {
	var h model.Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ModelInfo calls GET /model/info.
func (c *Client) ModelInfo(ctx context.Context) (*model.ModelInfo, error) {
	var info model.ModelInfo
	if err := c.do(ctx, http.MethodGet, "/model/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Predict calls POST /predict.
func (c *Client) Predict(ctx context.Context, age, income int64) (*model.PredictionResponse, error) {
	var resp model.PredictionResponse
	req := model.PredictionRequest{Age: &age, Income: &income}
	if err := c.do(ctx, http.MethodPost, "/predict", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
