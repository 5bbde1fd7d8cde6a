package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadParamsFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "params.yaml", `
limpieza_param:
  eliminar_duplicados: true
  eliminar_nulos: false
mlflow:
  tracking_uri: file:./mlruns
  experiment_name: demo
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Cleaning.DuplicatesEnabled())
	assert.False(t, cfg.Cleaning.NullsEnabled())
	assert.Equal(t, "file:./mlruns", cfg.MLflow.TrackingURI)
	assert.Equal(t, "demo", cfg.MLflow.ExperimentName)
	// untouched sections keep their defaults
	assert.Equal(t, "SubscriptionPredictor", cfg.MLflow.ModelName)
	assert.Equal(t, "data/processed/clean.csv", cfg.Paths.CleanData)
	assert.Equal(t, 30*time.Second, cfg.MLflow.Timeout)
}

func TestCleaningDefaultsWhenSectionMissing(t *testing.T) {
	var c Cleaning
	assert.True(t, c.DuplicatesEnabled())
	assert.True(t, c.NullsEnabled())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "params.yaml", "mlflow: [not, a, map\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsEmptyExperiment(t *testing.T) {
	path := writeFile(t, t.TempDir(), "params.yaml", "mlflow:\n  experiment_name: \"\"\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MLFLOW_TRACKING_URI", "http://tracking:5000")
	t.Setenv("MLFLOW_EXPERIMENT_NAME", "from-env")

	path := writeFile(t, t.TempDir(), "params.yaml", "mlflow:\n  experiment_name: from-file\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://tracking:5000", cfg.MLflow.TrackingURI)
	assert.Equal(t, "from-env", cfg.MLflow.ExperimentName)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Paths, cfg.Paths)
	assert.Equal(t, DefaultConfig().Serve, cfg.Serve)
	assert.True(t, cfg.Cleaning.DuplicatesEnabled())
}
