package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/daryltucker/subscription-runner/internal/forest"
	"github.com/daryltucker/subscription-runner/internal/model"
)

// SaveArtifacts writes the model and then its metadata. If the metadata
// cannot be written the model is removed again, so the pair is never split.
func SaveArtifacts(modelPath, metadataPath string, f *forest.Forest, meta model.Metadata) error {
	if err := f.Save(modelPath); err != nil {
		return fmt.Errorf("failed to save model to %s: %w", modelPath, err)
	}
	if err := writeJSON(metadataPath, meta); err != nil {
		if rmErr := os.Remove(modelPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
		return fmt.Errorf("failed to save metadata to %s: %w", metadataPath, err)
	}
	return nil
}

// LoadArtifacts reads a model and its metadata. Both must be present.
func LoadArtifacts(modelPath, metadataPath string) (*forest.Forest, *model.Metadata, error) {
	f, err := forest.Load(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load model: %w", err)
	}
	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load metadata: %w", err)
	}
	var meta model.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, nil, fmt.Errorf("failed to decode metadata %s: %w", metadataPath, err)
	}
	if meta.RunID == "" {
		return nil, nil, fmt.Errorf("metadata %s has no mlflow_run_id", metadataPath)
	}
	return f, &meta, nil
}

// writeJSON writes v with 2-space indentation and a trailing newline.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return forest.WriteFileAtomic(path, append(data, '\n'))
}
