/*
PURPOSE:
  Experiment tracking for the train and evaluate stages. Records parameters,
  metrics and model artifacts per run, and lets evaluation append metrics to
  the run that produced the model.

REQUIREMENTS:
  - Experiments are created idempotently (created if absent, else reused).
  - A fresh run per training invocation; evaluation resumes it by id.
  - Compatible with an MLflow tracking server and the MLflow file store
    layout, selected by the tracking URI.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Implementations: RESTClient (rest.go), FileStore (filestore.go)

ERROR HANDLING:
  - Lookups of unknown experiments/runs return errors wrapping ErrNotFound.
  - No retries; every failure is returned to the stage.

RELATED FILES:
  - internal/tracking/model.go
*/

package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned for unknown experiments or runs.
var ErrNotFound = errors.New("resource does not exist")

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run states as named by the MLflow API.
const (
	StatusRunning  RunStatus = "RUNNING"
	StatusFinished RunStatus = "FINISHED"
	StatusFailed   RunStatus = "FAILED"
	StatusKilled   RunStatus = "KILLED"
)

// Run identifies a tracked run.
type Run struct {
	ID           string
	ExperimentID string
	ArtifactURI  string
	Status       RunStatus
}

// Tracker is an experiment tracking backend.
type Tracker interface {
	// EnsureExperiment returns the id of the named experiment, creating it
	// when absent.
	EnsureExperiment(ctx context.Context, name string) (string, error)
	StartRun(ctx context.Context, experimentID string, tags map[string]string) (*Run, error)
	// GetRun looks up an existing run; used to resume a run by id.
	GetRun(ctx context.Context, runID string) (*Run, error)
	LogParam(ctx context.Context, runID, key, value string) error
	LogMetric(ctx context.Context, runID, key string, value float64) error
	// LogArtifact stores data at path relative to the run's artifact root.
	LogArtifact(ctx context.Context, run *Run, path string, data []byte) error
	// RecordModel attaches an MLmodel descriptor (JSON) to the run.
	RecordModel(ctx context.Context, run *Run, modelJSON string) error
	// RegisterModel creates (or reuses) a registered model and adds a
	// version pointing at source. It returns the version.
	RegisterModel(ctx context.Context, name string, run *Run, source string) (string, error)
	EndRun(ctx context.Context, runID string, status RunStatus) error
}

// Options configures New.
type Options struct {
	Timeout time.Duration
}

// New selects a backend from a tracking URI: http(s) URIs use the MLflow REST
// API, file: URIs and bare paths use the file store, and an empty URI means
// ./mlruns.
func New(uri string, opts Options) (Tracker, error) {
	if uri == "" {
		return NewFileStore("mlruns"), nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid tracking uri %q: %w", uri, err)
	}
	switch u.Scheme {
	case "http", "https":
		return NewRESTClient(strings.TrimRight(uri, "/"), opts.Timeout), nil
	case "file":
		p := u.Path
		if u.Opaque != "" {
			p = u.Opaque
		}
		if p == "" {
			return nil, fmt.Errorf("invalid tracking uri %q: empty path", uri)
		}
		return NewFileStore(p), nil
	case "":
		return NewFileStore(uri), nil
	}
	return nil, fmt.Errorf("unsupported tracking uri scheme %q", u.Scheme)
}

// LogParams logs every entry of params, in key order for stable output.
func LogParams(ctx context.Context, t Tracker, runID string, params map[string]string) error {
	for _, k := range sortedKeys(params) {
		if err := t.LogParam(ctx, runID, k, params[k]); err != nil {
			return fmt.Errorf("failed to log param %s: %w", k, err)
		}
	}
	return nil
}

// LogMetrics logs every entry of metrics, in key order.
func LogMetrics(ctx context.Context, t Tracker, runID string, metrics map[string]float64) error {
	for _, k := range sortedKeys(metrics) {
		if err := t.LogMetric(ctx, runID, k, metrics[k]); err != nil {
			return fmt.Errorf("failed to log metric %s: %w", k, err)
		}
	}
	return nil
}

func nowMillis() int64 { return time.Now().UnixMilli() }
