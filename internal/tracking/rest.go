/*
PURPOSE:
  MLflow tracking server client (REST API 2.0).

REQUIREMENTS:
  - Experiments: get-by-name, create.
  - Runs: create, get, update, log-parameter, log-metric, log-model.
  - Registry: registered-models/create, model-versions/create.
  - Artifacts: proxied upload through /api/2.0/mlflow-artifacts, or direct
    writes when the run's artifact root is a local path.

IMPLEMENTATION RULES:
  - One http.Client with an overall timeout; no retries.
  - Server errors carry {error_code, message}; RESOURCE_DOES_NOT_EXIST maps
    to ErrNotFound.

USAGE:
  c := tracking.NewRESTClient("http://localhost:5000", 30*time.Second)
  id, err := c.EnsureExperiment(ctx, "subscription_prediction")

RELATED FILES:
  - internal/tracking/tracker.go
*/

package tracking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/daryltucker/subscription-runner/internal/output"
)

const (
	apiPrefix       = "/api/2.0/mlflow/"
	artifactsPrefix = "/api/2.0/mlflow-artifacts/artifacts/"
)

// APIError is an error response from the tracking server.
type APIError struct {
	Status    int    `json:"-"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mlflow %s (%d): %s", e.ErrorCode, e.Status, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match missing resources.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && (e.ErrorCode == "RESOURCE_DOES_NOT_EXIST" || e.Status == http.StatusNotFound)
}

// RESTClient talks to an MLflow tracking server.
type RESTClient struct {
	BaseURL string
	Client  *http.Client
}

// NewRESTClient creates a client. A zero timeout means 30s.
func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &RESTClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

func (c *RESTClient) do(ctx context.Context, method, endpoint string, query url.Values, in, out interface{}) error {
	u := c.BaseURL + apiPrefix + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			output.Logger.Debug("tracking: connected", "remote", info.Conn.RemoteAddr(), "reused", info.Reused)
		},
	}
	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("tracking server unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.ErrorCode == "" {
			apiErr.ErrorCode = "HTTP_ERROR"
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("tracking server returned invalid JSON: %w (Body: %s)", err, string(data))
	}
	return nil
}

type runInfo struct {
	RunID        string `json:"run_id"`
	ExperimentID string `json:"experiment_id"`
	ArtifactURI  string `json:"artifact_uri"`
	Status       string `json:"status"`
}

type runEnvelope struct {
	Run struct {
		Info runInfo `json:"info"`
	} `json:"run"`
}

func (e runEnvelope) toRun() *Run {
	i := e.Run.Info
	return &Run{ID: i.RunID, ExperimentID: i.ExperimentID, ArtifactURI: i.ArtifactURI, Status: RunStatus(i.Status)}
}

type tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EnsureExperiment implements Tracker.
func (c *RESTClient) EnsureExperiment(ctx context.Context, name string) (string, error) {
	var got struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	err := c.do(ctx, http.MethodGet, "experiments/get-by-name", url.Values{"experiment_name": {name}}, nil, &got)
	if err == nil {
		return got.Experiment.ExperimentID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("failed to look up experiment %q: %w", name, err)
	}

	var created struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := c.do(ctx, http.MethodPost, "experiments/create", nil, map[string]string{"name": name}, &created); err != nil {
		return "", fmt.Errorf("failed to create experiment %q: %w", name, err)
	}
	output.Logger.Info("Created experiment", "name", name, "id", created.ExperimentID)
	return created.ExperimentID, nil
}

// StartRun implements Tracker.
func (c *RESTClient) StartRun(ctx context.Context, experimentID string, tags map[string]string) (*Run, error) {
	req := struct {
		ExperimentID string `json:"experiment_id"`
		StartTime    int64  `json:"start_time"`
		Tags         []tag  `json:"tags,omitempty"`
	}{ExperimentID: experimentID, StartTime: nowMillis()}
	for _, k := range sortedKeys(tags) {
		req.Tags = append(req.Tags, tag{Key: k, Value: tags[k]})
	}

	var env runEnvelope
	if err := c.do(ctx, http.MethodPost, "runs/create", nil, req, &env); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return env.toRun(), nil
}

// GetRun implements Tracker.
func (c *RESTClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	var env runEnvelope
	if err := c.do(ctx, http.MethodGet, "runs/get", url.Values{"run_id": {runID}}, nil, &env); err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return env.toRun(), nil
}

// LogParam implements Tracker.
func (c *RESTClient) LogParam(ctx context.Context, runID, key, value string) error {
	return c.do(ctx, http.MethodPost, "runs/log-parameter", nil, map[string]string{
		"run_id": runID,
		"key":    key,
		"value":  value,
	}, nil)
}

// LogMetric implements Tracker.
func (c *RESTClient) LogMetric(ctx context.Context, runID, key string, value float64) error {
	return c.do(ctx, http.MethodPost, "runs/log-metric", nil, map[string]interface{}{
		"run_id":    runID,
		"key":       key,
		"value":     value,
		"timestamp": nowMillis(),
		"step":      0,
	}, nil)
}

// EndRun implements Tracker.
func (c *RESTClient) EndRun(ctx context.Context, runID string, status RunStatus) error {
	return c.do(ctx, http.MethodPost, "runs/update", nil, map[string]interface{}{
		"run_id":   runID,
		"status":   string(status),
		"end_time": nowMillis(),
	}, nil)
}

// RecordModel implements Tracker.
func (c *RESTClient) RecordModel(ctx context.Context, run *Run, modelJSON string) error {
	return c.do(ctx, http.MethodPost, "runs/log-model", nil, map[string]string{
		"run_id":     run.ID,
		"model_json": modelJSON,
	}, nil)
}

// RegisterModel implements Tracker.
func (c *RESTClient) RegisterModel(ctx context.Context, name string, run *Run, source string) (string, error) {
	err := c.do(ctx, http.MethodPost, "registered-models/create", nil, map[string]string{"name": name}, nil)
	var apiErr *APIError
	if err != nil && !(errors.As(err, &apiErr) && apiErr.ErrorCode == "RESOURCE_ALREADY_EXISTS") {
		return "", fmt.Errorf("failed to register model %s: %w", name, err)
	}

	var got struct {
		ModelVersion struct {
			Version string `json:"version"`
		} `json:"model_version"`
	}
	if err := c.do(ctx, http.MethodPost, "model-versions/create", nil, map[string]string{
		"name":   name,
		"source": source,
		"run_id": run.ID,
	}, &got); err != nil {
		return "", fmt.Errorf("failed to create model version for %s: %w", name, err)
	}
	return got.ModelVersion.Version, nil
}

// LogArtifact implements Tracker. mlflow-artifacts roots are uploaded through
// the server; plain or file: roots are written to the local filesystem.
func (c *RESTClient) LogArtifact(ctx context.Context, run *Run, path string, data []byte) error {
	u, err := url.Parse(run.ArtifactURI)
	if err != nil {
		return fmt.Errorf("invalid artifact uri %q: %w", run.ArtifactURI, err)
	}
	switch u.Scheme {
	case "mlflow-artifacts":
		return c.uploadArtifact(ctx, strings.Trim(u.Path, "/")+"/"+path, data)
	case "", "file":
		dst := filepath.Join(filepath.FromSlash(u.Path), filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		return os.WriteFile(dst, data, 0644)
	}
	return fmt.Errorf("unsupported artifact store %q", u.Scheme)
}

func (c *RESTClient) uploadArtifact(ctx context.Context, path string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL+artifactsPrefix+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("artifact upload failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("artifact upload failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
