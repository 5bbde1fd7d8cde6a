/*
PURPOSE:
  Defines the params.yaml structure shared by every pipeline stage and the
  loading logic for it. The same file is declared as a DVC params dependency,
  so key names follow the ones the pipeline already tracks.

REQUIREMENTS:
  User-specified:
  - Cleaning flags (eliminar_duplicados, eliminar_nulos), both default true.
  - Tracking service URI and experiment name.

  Implementation-discovered:
  - Artifact paths are configurable so tests can point stages at a temp dir.
  - Environment overrides follow the MLflow client conventions
    (MLFLOW_TRACKING_URI, MLFLOW_EXPERIMENT_NAME).

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine, internal/server, internal/dashboard
  - Dependencies: gopkg.in/yaml.v3, github.com/go-playground/validator/v10

ERROR HANDLING:
  - Returns explicit error if the config file is invalid or fails validation.
  - Missing default file falls back to DefaultConfig().

USAGE:
  cfg, err := config.Load("params.yaml")

RELATED FILES:
  - params.yaml
  - internal/cli/root.go
*/

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the full configuration for the pipeline.
type Config struct {
	Cleaning  Cleaning  `yaml:"limpieza_param"`
	MLflow    MLflow    `yaml:"mlflow"`
	Paths     Paths     `yaml:"paths"`
	Serve     Serve     `yaml:"serve"`
	Dashboard Dashboard `yaml:"dashboard"`
}

// Cleaning toggles the data preparation operations. Nil means "use default".
type Cleaning struct {
	DropDuplicates *bool `yaml:"eliminar_duplicados,omitempty"`
	DropNulls      *bool `yaml:"eliminar_nulos,omitempty"`
}

// DuplicatesEnabled reports whether duplicate removal is on (default true).
func (c Cleaning) DuplicatesEnabled() bool {
	return c.DropDuplicates == nil || *c.DropDuplicates
}

// NullsEnabled reports whether null-row removal is on (default true).
func (c Cleaning) NullsEnabled() bool {
	return c.DropNulls == nil || *c.DropNulls
}

// MLflow holds the experiment tracking settings.
type MLflow struct {
	TrackingURI    string        `yaml:"tracking_uri"`
	ExperimentName string        `yaml:"experiment_name" validate:"required"`
	ModelName      string        `yaml:"model_name" validate:"required"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Paths lists every file the stages read or write.
type Paths struct {
	RawData      string `yaml:"raw_data" validate:"required"`
	TestData     string `yaml:"test_data" validate:"required"`
	CleanData    string `yaml:"clean_data" validate:"required"`
	Model        string `yaml:"model" validate:"required"`
	Metadata     string `yaml:"metadata" validate:"required"`
	Metrics      string `yaml:"metrics" validate:"required"`
	ValidationOK string `yaml:"validation_sentinel" validate:"required"`
}

// Serve configures the prediction API.
type Serve struct {
	Addr         string        `yaml:"addr" validate:"required"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Dashboard configures the prediction API client.
type Dashboard struct {
	APIURL  string        `yaml:"api_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Cleaning: Cleaning{
			DropDuplicates: boolPtr(true),
			DropNulls:      boolPtr(true),
		},
		MLflow: MLflow{
			TrackingURI:    "http://localhost:5000",
			ExperimentName: "subscription_prediction",
			ModelName:      "SubscriptionPredictor",
			Timeout:        30 * time.Second,
		},
		Paths: Paths{
			RawData:      "data/raw/sample.csv",
			TestData:     "data/raw/test.csv",
			CleanData:    "data/processed/clean.csv",
			Model:        "models/model.json",
			Metadata:     "models/model_metadata.json",
			Metrics:      "metrics/evaluation.json",
			ValidationOK: "data/validation_passed.txt",
		},
		Serve: Serve{
			Addr:         ":8000",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Dashboard: Dashboard{
			APIURL:  "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
	}
}

func boolPtr(b bool) *bool { return &b }

// DefaultFiles are searched in order when no path is given.
var DefaultFiles = []string{"params.yaml", "params.yml"}

// Load reads configuration from a file.
// If path is specified, it must exist.
// If path is empty, DefaultFiles are tried in order; when none exists the
// defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		found := false
		for _, name := range DefaultFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				found = true
				break
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", name, err)
			}
		}
		if !found {
			cfg.applyEnv()
			return cfg, cfg.Validate()
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MLFLOW_TRACKING_URI"); v != "" {
		c.MLflow.TrackingURI = v
	}
	if v := os.Getenv("MLFLOW_EXPERIMENT_NAME"); v != "" {
		c.MLflow.ExperimentName = v
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
