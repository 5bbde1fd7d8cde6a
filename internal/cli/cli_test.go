package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/subscription-runner/internal/config"
	"github.com/daryltucker/subscription-runner/internal/engine"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestOrderStages(t *testing.T) {
	got, err := orderStages(nil)
	require.NoError(t, err)
	assert.Equal(t, engine.Stages, got)

	got, err = orderStages([]string{"evaluate", "train"})
	require.NoError(t, err)
	assert.Equal(t, []string{"train", "evaluate"}, got)

	_, err = orderStages([]string{"deploy"})
	assert.Error(t, err)
}

func TestParamsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")

	_, err := execute(t, "params", "-o", path)
	require.NoError(t, err)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SubscriptionPredictor", loaded.MLflow.ModelName)
	assert.True(t, loaded.Cleaning.DuplicatesEnabled())

	_, err = execute(t, "params", "-o", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "params", "-o", path, "--force")
	assert.NoError(t, err)
	paramsForce = false
}

func TestPipelineCommands(t *testing.T) {
	t.Setenv("MLFLOW_TRACKING_URI", "")
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "params.yaml")

	c := config.DefaultConfig()
	c.MLflow.TrackingURI = filepath.Join(dir, "mlruns")
	c.Paths = config.Paths{
		RawData:      filepath.Join(dir, "raw.csv"),
		TestData:     filepath.Join(dir, "test.csv"),
		CleanData:    filepath.Join(dir, "clean.csv"),
		Model:        filepath.Join(dir, "model.json"),
		Metadata:     filepath.Join(dir, "model_metadata.json"),
		Metrics:      filepath.Join(dir, "evaluation.json"),
		ValidationOK: filepath.Join(dir, "validation_passed.txt"),
	}
	require.NoError(t, c.Save(cfgPath))

	var rows strings.Builder
	rows.WriteString("age,income,subscribed,id\n")
	for i := 0; i < 30; i++ {
		label := "no"
		if i >= 15 {
			label = "yes"
		}
		fmt.Fprintf(&rows, "%d,%d,%s,%d\n", 20+i, 20000+i*2000, label, i+1)
	}
	require.NoError(t, os.WriteFile(c.Paths.RawData, []byte(rows.String()), 0644))
	require.NoError(t, os.WriteFile(c.Paths.TestData, []byte(rows.String()), 0644))

	_, err := execute(t, "run", "--config", cfgPath, "--log-level", "warn")
	require.NoError(t, err)
	assert.FileExists(t, c.Paths.Metrics)

	out, err := execute(t, "model-info", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "SubscriptionPredictor (RandomForestClassifier)")
	assert.Contains(t, out, "Classes:     [no yes]")
}
