package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/subscription-runner/internal/config"
	"github.com/daryltucker/subscription-runner/internal/dataset"
	"github.com/daryltucker/subscription-runner/internal/forest"
	"github.com/daryltucker/subscription-runner/internal/model"
	"github.com/daryltucker/subscription-runner/internal/quality"
	"github.com/daryltucker/subscription-runner/internal/tracking"
)

// subscriptionCSV builds n separable rows: incomes of 57500 and above subscribe.
func subscriptionCSV(n, offset int) string {
	var b strings.Builder
	b.WriteString("age,income,subscribed,id\n")
	for i := 0; i < n; i++ {
		income := 20000 + (i+offset)*1500
		label := model.LabelNo
		if income >= 57500 {
			label = model.LabelYes
		}
		fmt.Fprintf(&b, "%d,%d,%s,%d\n", 20+i+offset, income, label, i+1)
	}
	return b.String()
}

type fixture struct {
	dir    string
	cfg    *config.Config
	store  *tracking.FileStore
	engine *Engine
}

func newFixture(t *testing.T, raw string) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Paths = config.Paths{
		RawData:      filepath.Join(dir, "data", "raw", "sample.csv"),
		TestData:     filepath.Join(dir, "data", "raw", "test.csv"),
		CleanData:    filepath.Join(dir, "data", "processed", "clean.csv"),
		Model:        filepath.Join(dir, "models", "model.json"),
		Metadata:     filepath.Join(dir, "models", "model_metadata.json"),
		Metrics:      filepath.Join(dir, "metrics", "evaluation.json"),
		ValidationOK: filepath.Join(dir, "data", "validation_passed.txt"),
	}
	writeFile(t, cfg.Paths.RawData, raw)
	writeFile(t, cfg.Paths.TestData, subscriptionCSV(20, 15))

	store := tracking.NewFileStore(filepath.Join(dir, "mlruns"))
	e := New(cfg, store)
	e.Params.NEstimators = 10
	return &fixture{dir: dir, cfg: cfg, store: store, engine: e}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestValidate(t *testing.T) {
	f := newFixture(t, subscriptionCSV(10, 0))
	require.NoError(t, f.engine.Validate())
	assert.Equal(t, quality.SentinelText, readFile(t, f.cfg.Paths.ValidationOK))
}

func TestValidateFailureLeavesNoMarker(t *testing.T) {
	f := newFixture(t, "age,income,subscribed,id\n-3,1000,yes,1\n")
	err := f.engine.Validate()
	require.ErrorIs(t, err, quality.ErrValidation)
	assert.Contains(t, err.Error(), "age cannot be negative")
	assert.NoFileExists(t, f.cfg.Paths.ValidationOK)
}

func TestPrepare(t *testing.T) {
	raw := "age,income,subscribed,id\n" +
		"30,40000,no,1\n" +
		"30,40000,no,1\n" +
		"41,,yes,2\n" +
		"52,90000,yes,3\n"

	tests := []struct {
		name       string
		duplicates bool
		nulls      bool
		want       string
	}{
		{
			name: "drop both", duplicates: true, nulls: true,
			want: "age,income,subscribed,id\n30,40000,no,1\n52,90000,yes,3\n",
		},
		{
			name: "keep duplicates", duplicates: false, nulls: true,
			want: "age,income,subscribed,id\n30,40000,no,1\n30,40000,no,1\n52,90000,yes,3\n",
		},
		{
			name: "keep nulls", duplicates: true, nulls: false,
			want: "age,income,subscribed,id\n30,40000,no,1\n41,,yes,2\n52,90000,yes,3\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, raw)
			f.cfg.Cleaning = config.Cleaning{DropDuplicates: &tt.duplicates, DropNulls: &tt.nulls}
			require.NoError(t, f.engine.Prepare())
			assert.Equal(t, tt.want, readFile(t, f.cfg.Paths.CleanData))
		})
	}
}

func TestPrepareIsDeterministic(t *testing.T) {
	f := newFixture(t, subscriptionCSV(30, 0))
	require.NoError(t, f.engine.Prepare())
	first := readFile(t, f.cfg.Paths.CleanData)
	require.NoError(t, f.engine.Prepare())
	assert.Equal(t, first, readFile(t, f.cfg.Paths.CleanData))
}

func TestPrepareMissingInput(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, os.Remove(f.cfg.Paths.RawData))
	assert.Error(t, f.engine.Prepare())
}

func TestTrainAndEvaluate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, subscriptionCSV(50, 0))
	require.NoError(t, f.engine.Prepare())

	res, err := f.engine.Train(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", res.ModelVersion)
	assert.GreaterOrEqual(t, res.TrainAccuracy, 0.9)

	forestModel, meta, err := LoadArtifacts(f.cfg.Paths.Model, f.cfg.Paths.Metadata)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, meta.RunID)
	assert.Equal(t, "subscription_prediction", meta.ExperimentName)
	assert.Equal(t, "SubscriptionPredictor", meta.ModelName)
	assert.Equal(t, []string{"age", "income"}, forestModel.FeatureNames)
	assert.Len(t, forestModel.Trees, 10)
	assert.True(t, strings.HasPrefix(readFile(t, f.cfg.Paths.Metadata), "{\n  \"mlflow_run_id\""))

	run, err := f.store.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusFinished, run.Status)
	runDir := filepath.Join(f.dir, "mlruns", run.ExperimentID, run.ID)
	assert.Equal(t, "entropy", readFile(t, filepath.Join(runDir, "params", "criterion")))
	assert.Equal(t, "10", readFile(t, filepath.Join(runDir, "params", "n_estimators")))
	assert.Equal(t, "42", readFile(t, filepath.Join(runDir, "params", "random_state")))
	assert.FileExists(t, filepath.Join(runDir, "metrics", "val_accuracy"))
	assert.FileExists(t, filepath.Join(runDir, "artifacts", "model", "MLmodel"))
	assert.FileExists(t, filepath.Join(runDir, "artifacts", "model", "input_example.json"))

	report, err := f.engine.Evaluate(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.Accuracy, 0.8)
	assert.Equal(t, 20, report.Support)
	assert.Contains(t, report.ClassMetrics, "yes")
	assert.Contains(t, report.ClassMetrics, "no")

	var onDisk model.EvaluationReport
	require.NoError(t, json.Unmarshal([]byte(readFile(t, f.cfg.Paths.Metrics)), &onDisk))
	assert.Equal(t, *report, onDisk)

	for _, name := range []string{"test_accuracy", "test_precision", "test_recall", "test_f1_score"} {
		assert.FileExists(t, filepath.Join(runDir, "metrics", name))
	}
}

func TestEvaluateRejectsReorderedColumns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, subscriptionCSV(50, 0))
	require.NoError(t, f.engine.Prepare())
	_, err := f.engine.Train(ctx)
	require.NoError(t, err)

	var b strings.Builder
	b.WriteString("income,age,subscribed,id\n")
	for i, line := range strings.Split(strings.TrimSpace(subscriptionCSV(20, 15)), "\n")[1:] {
		cols := strings.Split(line, ",")
		fmt.Fprintf(&b, "%s,%s,%s,%d\n", cols[1], cols[0], cols[2], i+1)
	}
	writeFile(t, f.cfg.Paths.TestData, b.String())

	_, err = f.engine.Evaluate(ctx)
	require.ErrorIs(t, err, forest.ErrFeatureMismatch)
	assert.NoFileExists(t, f.cfg.Paths.Metrics)
}

func TestTrainRequiresTracker(t *testing.T) {
	f := newFixture(t, subscriptionCSV(10, 0))
	f.engine.Tracker = nil
	_, err := f.engine.Train(context.Background())
	assert.ErrorIs(t, err, ErrNoTracker)
}

func TestEvaluateWithoutModel(t *testing.T) {
	f := newFixture(t, subscriptionCSV(10, 0))
	_, err := f.engine.Evaluate(context.Background())
	assert.Error(t, err)
	assert.NoFileExists(t, f.cfg.Paths.Metrics)
}

func TestEvaluateUnknownRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, subscriptionCSV(50, 0))
	require.NoError(t, f.engine.Prepare())
	_, err := f.engine.Train(ctx)
	require.NoError(t, err)

	writeFile(t, f.cfg.Paths.Metadata, `{"mlflow_run_id":"0123456789abcdef","experiment_name":"x","model_name":"y"}`)
	_, err = f.engine.Evaluate(ctx)
	require.ErrorIs(t, err, tracking.ErrNotFound)
	assert.Contains(t, err.Error(), "failed to resume run")
}

func TestSaveArtifactsKeepsPairTogether(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	metaPath := filepath.Join(dir, "meta")
	require.NoError(t, os.MkdirAll(filepath.Join(metaPath, "occupied"), 0755))

	fitted, err := forestFixture()
	require.NoError(t, err)

	err = SaveArtifacts(modelPath, metaPath, fitted, model.Metadata{RunID: "r"})
	require.Error(t, err)
	assert.NoFileExists(t, modelPath)
}

func TestLoadArtifactsRequiresMetadata(t *testing.T) {
	dir := t.TempDir()
	fitted, err := forestFixture()
	require.NoError(t, err)
	modelPath := filepath.Join(dir, "model.json")
	require.NoError(t, fitted.Save(modelPath))

	_, _, err = LoadArtifacts(modelPath, filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunStopsAtFailedValidation(t *testing.T) {
	f := newFixture(t, "age,income,subscribed,id\n30,40000,maybe,1\n")
	err := f.engine.Run(context.Background())
	require.ErrorIs(t, err, quality.ErrValidation)
	assert.Contains(t, err.Error(), "stage validate")
	assert.NoFileExists(t, f.cfg.Paths.CleanData)
}

func TestRunAllStages(t *testing.T) {
	f := newFixture(t, subscriptionCSV(50, 0))
	require.NoError(t, f.engine.Run(context.Background()))
	for _, p := range []string{f.cfg.Paths.ValidationOK, f.cfg.Paths.CleanData, f.cfg.Paths.Model, f.cfg.Paths.Metadata, f.cfg.Paths.Metrics} {
		assert.FileExists(t, p)
	}
}

func TestRunStageUnknown(t *testing.T) {
	f := newFixture(t, subscriptionCSV(10, 0))
	assert.Error(t, f.engine.RunStage(context.Background(), "deploy"))
}

func forestFixture() (*forest.Forest, error) {
	tbl, err := dataset.Parse(strings.NewReader(subscriptionCSV(20, 0)))
	if err != nil {
		return nil, err
	}
	frame, err := tbl.Frame(model.ColumnSubscribed, model.ColumnID)
	if err != nil {
		return nil, err
	}
	p := forest.DefaultParams()
	p.NEstimators = 3
	return forest.Fit(frame.X, frame.Y, frame.Features, p)
}
