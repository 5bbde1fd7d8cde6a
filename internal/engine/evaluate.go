package engine

import (
	"context"
	"fmt"

	"github.com/daryltucker/subscription-runner/internal/dataset"
	"github.com/daryltucker/subscription-runner/internal/evaluation"
	"github.com/daryltucker/subscription-runner/internal/model"
	"github.com/daryltucker/subscription-runner/internal/output"
	"github.com/daryltucker/subscription-runner/internal/tracking"
)

// Evaluate scores the persisted model on the held-out test file, writes the
// report, and logs the test metrics against the run that trained the model.
func (e *Engine) Evaluate(ctx context.Context) (*model.EvaluationReport, error) {
	if e.Tracker == nil {
		return nil, ErrNoTracker
	}
	p := e.Config.Paths

	f, meta, err := LoadArtifacts(p.Model, p.Metadata)
	if err != nil {
		return nil, err
	}

	t, err := dataset.ReadCSV(p.TestData)
	if err != nil {
		return nil, fmt.Errorf("failed to read test data: %w", err)
	}
	frame, err := t.Frame(model.ColumnSubscribed, dropColumns...)
	if err != nil {
		return nil, fmt.Errorf("failed to build features: %w", err)
	}
	pred, err := f.Predict(frame.X, frame.Features)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}
	report, err := evaluation.Classify(frame.Y, pred)
	if err != nil {
		return nil, err
	}
	out := report.ToModel()

	if err := writeJSON(p.Metrics, out); err != nil {
		return nil, fmt.Errorf("failed to write metrics to %s: %w", p.Metrics, err)
	}

	run, err := e.Tracker.GetRun(ctx, meta.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to resume run %s: %w", meta.RunID, err)
	}
	if err := tracking.LogMetrics(ctx, e.Tracker, run.ID, evaluation.TrackedMetrics(out)); err != nil {
		return nil, fmt.Errorf("failed to log test metrics: %w", err)
	}
	if err := e.Tracker.EndRun(ctx, run.ID, tracking.StatusFinished); err != nil {
		return nil, fmt.Errorf("failed to close run %s: %w", run.ID, err)
	}

	output.Logger.Info("Evaluation complete",
		"run_id", run.ID,
		"accuracy", out.Accuracy,
		"precision", out.Precision,
		"recall", out.Recall,
		"f1_score", out.F1Score,
		"path", p.Metrics,
	)
	return &out, nil
}
