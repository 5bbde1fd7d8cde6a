package tracking

import (
	"context"
	"fmt"
	"maps"
	"path"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ModelBundle describes a model to attach to a run.
type ModelBundle struct {
	// ArtifactPath is the directory under the run's artifacts, e.g. "model".
	ArtifactPath string
	// Flavor names the model format in the MLmodel file.
	Flavor string
	// FlavorConfig is stored under flavors.<Flavor>.
	FlavorConfig map[string]interface{}
	// Files are written under ArtifactPath.
	Files map[string][]byte
	// InputColumns and InputExample are used to infer the signature.
	InputColumns []string
	InputExample [][]float64
	// OutputType is the signature output column type.
	OutputType string
}

type signatureColumn struct {
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	Required bool   `json:"required"`
}

// MLmodel is the descriptor stored next to the model files.
type MLmodel struct {
	ArtifactPath   string                            `yaml:"artifact_path" json:"artifact_path"`
	Flavors        map[string]map[string]interface{} `yaml:"flavors" json:"flavors"`
	ModelUUID      string                            `yaml:"model_uuid" json:"model_uuid"`
	RunID          string                            `yaml:"run_id" json:"run_id"`
	InputExample   *InputExampleInfo                 `yaml:"saved_input_example_info,omitempty" json:"saved_input_example_info,omitempty"`
	Signature      *Signature                        `yaml:"signature,omitempty" json:"signature,omitempty"`
	UTCTimeCreated string                            `yaml:"utc_time_created" json:"utc_time_created"`
}

// InputExampleInfo points at the saved input example.
type InputExampleInfo struct {
	ArtifactPath string `yaml:"artifact_path" json:"artifact_path"`
	Type         string `yaml:"type" json:"type"`
	PandasOrient string `yaml:"pandas_orient" json:"pandas_orient"`
}

// Signature holds JSON-encoded column specs, as MLflow stores them.
type Signature struct {
	Inputs  string `yaml:"inputs" json:"inputs"`
	Outputs string `yaml:"outputs" json:"outputs"`
}

const inputExampleFile = "input_example.json"

// InferSignature builds a signature from the example's column names. Every
// input column is a double because the example is cast to float64.
func InferSignature(columns []string, outputType string) (*Signature, error) {
	in := make([]signatureColumn, len(columns))
	for i, c := range columns {
		in[i] = signatureColumn{Type: "double", Name: c, Required: true}
	}
	inputs, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	outputs, err := json.Marshal([]signatureColumn{{Type: outputType, Required: true}})
	if err != nil {
		return nil, err
	}
	return &Signature{Inputs: string(inputs), Outputs: string(outputs)}, nil
}

// LogModel uploads the bundle's files, an input example and an MLmodel
// descriptor, then records the model on the run.
func LogModel(ctx context.Context, t Tracker, run *Run, b ModelBundle) (*MLmodel, error) {
	if b.ArtifactPath == "" {
		b.ArtifactPath = "model"
	}
	if b.OutputType == "" {
		b.OutputType = "string"
	}

	desc := &MLmodel{
		ArtifactPath:   b.ArtifactPath,
		Flavors:        map[string]map[string]interface{}{b.Flavor: b.FlavorConfig},
		ModelUUID:      uuid.NewString(),
		RunID:          run.ID,
		UTCTimeCreated: time.Now().UTC().Format("2006-01-02 15:04:05.000000"),
	}

	files := maps.Clone(b.Files)
	if files == nil {
		files = map[string][]byte{}
	}

	if len(b.InputColumns) > 0 {
		sig, err := InferSignature(b.InputColumns, b.OutputType)
		if err != nil {
			return nil, fmt.Errorf("failed to infer signature: %w", err)
		}
		desc.Signature = sig

		example, err := json.Marshal(map[string]interface{}{
			"columns": b.InputColumns,
			"data":    b.InputExample,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode input example: %w", err)
		}
		files[inputExampleFile] = example
		desc.InputExample = &InputExampleInfo{
			ArtifactPath: inputExampleFile,
			Type:         "dataframe",
			PandasOrient: "split",
		}
	}

	mlmodel, err := yaml.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode MLmodel: %w", err)
	}
	files["MLmodel"] = mlmodel

	for _, name := range slices.Sorted(maps.Keys(files)) {
		if err := t.LogArtifact(ctx, run, path.Join(b.ArtifactPath, name), files[name]); err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", name, err)
		}
	}

	modelJSON, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode model descriptor: %w", err)
	}
	if err := t.RecordModel(ctx, run, string(modelJSON)); err != nil {
		return nil, fmt.Errorf("failed to record model: %w", err)
	}
	return desc, nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
