package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"

	"github.com/daryltucker/subscription-runner/internal/dataset"
	"github.com/daryltucker/subscription-runner/internal/forest"
	"github.com/daryltucker/subscription-runner/internal/model"
	"github.com/daryltucker/subscription-runner/internal/output"
	"github.com/daryltucker/subscription-runner/internal/tracking"
)

// ModelFlavor names the model format in the MLmodel descriptor.
const ModelFlavor = "subscription_forest"

// TrainResult summarizes a training run.
type TrainResult struct {
	RunID         string
	ModelVersion  string
	TrainAccuracy float64
	ValAccuracy   float64
}

// Train fits the classifier on the cleaned dataset inside a fresh tracking
// run, registers it, and persists the model with its metadata.
func (e *Engine) Train(ctx context.Context) (*TrainResult, error) {
	if e.Tracker == nil {
		return nil, ErrNoTracker
	}
	p := e.Config.Paths
	mlf := e.Config.MLflow

	t, err := dataset.ReadCSV(p.CleanData)
	if err != nil {
		return nil, fmt.Errorf("failed to read cleaned data: %w", err)
	}
	frame, err := t.Frame(model.ColumnSubscribed, dropColumns...)
	if err != nil {
		return nil, fmt.Errorf("failed to build features: %w", err)
	}
	train, val, err := frame.TrainTestSplit(TestSize, SplitSeed)
	if err != nil {
		return nil, err
	}

	expID, err := e.Tracker.EnsureExperiment(ctx, mlf.ExperimentName)
	if err != nil {
		return nil, err
	}
	run, err := e.Tracker.StartRun(ctx, expID, map[string]string{
		"mlflow.source.name": "subscription-runner train",
		"estimator_name":     forest.TypeName,
	})
	if err != nil {
		return nil, err
	}
	output.Logger.Info("Started training run", "experiment", mlf.ExperimentName, "run_id", run.ID)

	f, res, err := e.trainInRun(ctx, run, train, val)
	if err != nil {
		if endErr := e.Tracker.EndRun(ctx, run.ID, tracking.StatusFailed); endErr != nil {
			err = errors.Join(err, endErr)
		}
		return nil, err
	}
	if err := e.Tracker.EndRun(ctx, run.ID, tracking.StatusFinished); err != nil {
		return nil, fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}

	meta := model.Metadata{
		RunID:          run.ID,
		ExperimentName: mlf.ExperimentName,
		ModelName:      mlf.ModelName,
	}
	if err := SaveArtifacts(p.Model, p.Metadata, f, meta); err != nil {
		return nil, err
	}

	output.Logger.Info("Model trained",
		"run_id", res.RunID,
		"model", mlf.ModelName,
		"version", res.ModelVersion,
		"train_accuracy", res.TrainAccuracy,
		"val_accuracy", res.ValAccuracy,
		"path", p.Model,
	)
	return res, nil
}

func (e *Engine) trainInRun(ctx context.Context, run *tracking.Run, train, val *dataset.Frame) (*forest.Forest, *TrainResult, error) {
	f, err := forest.Fit(train.X, train.Y, train.Features, e.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fit model: %w", err)
	}
	trainAcc, err := f.Score(train.X, train.Y, train.Features)
	if err != nil {
		return nil, nil, err
	}
	valAcc, err := f.Score(val.X, val.Y, val.Features)
	if err != nil {
		return nil, nil, err
	}

	if err := tracking.LogParams(ctx, e.Tracker, run.ID, map[string]string{
		"n_estimators": strconv.Itoa(e.Params.NEstimators),
		"random_state": strconv.FormatUint(e.Params.RandomState, 10),
		"criterion":    e.Params.Criterion,
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to log params: %w", err)
	}
	if err := tracking.LogMetrics(ctx, e.Tracker, run.ID, map[string]float64{
		"train_accuracy": trainAcc,
		"val_accuracy":   valAcc,
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to log metrics: %w", err)
	}

	data, err := json.Marshal(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode model: %w", err)
	}
	if _, err := tracking.LogModel(ctx, e.Tracker, run, tracking.ModelBundle{
		ArtifactPath: "model",
		Flavor:       ModelFlavor,
		FlavorConfig: map[string]interface{}{
			"model_file":     "model.json",
			"estimator_type": forest.TypeName,
			"classes":        f.Classes,
		},
		Files:        map[string][]byte{"model.json": data},
		InputColumns: train.Features,
		InputExample: inputExample(train.X, ExampleRows),
	}); err != nil {
		return nil, nil, err
	}

	version, err := e.Tracker.RegisterModel(ctx, e.Config.MLflow.ModelName, run, run.ArtifactURI+"/model")
	if err != nil {
		return nil, nil, err
	}

	return f, &TrainResult{
		RunID:         run.ID,
		ModelVersion:  version,
		TrainAccuracy: trainAcc,
		ValAccuracy:   valAcc,
	}, nil
}

// inputExample returns up to n leading rows of x.
func inputExample(x mat.Matrix, n int) [][]float64 {
	r, _ := x.Dims()
	n = min(n, r)
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, x)
	}
	return rows
}
