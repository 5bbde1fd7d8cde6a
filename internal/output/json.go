/*
PURPOSE:
  Writes explored dashboard predictions to a JSON Lines file (NDJSON).

REQUIREMENTS:
  - JSON output for easier parsing.
  - JSON Lines is better for streaming than a single large array.

ARCHITECTURE INTEGRATION:
  - Called by: internal/dashboard
  - Consumes: internal/model.GridPoint

ERROR HANDLING:
  - Returns error on file creation or write failure.

USAGE:
  w, err := output.NewJSONWriter("explore.jsonl")
  w.Write(point)
  w.Close()
*/

package output

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/daryltucker/subscription-runner/internal/model"
)

// JSONWriter handles writing grid points to a JSON Lines file.
type JSONWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter creates a new JSONWriter.
func NewJSONWriter(path string) (*JSONWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &JSONWriter{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Write writes a single point as a JSON line.
func (jw *JSONWriter) Write(p model.GridPoint) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	return jw.encoder.Encode(p)
}

// Close closes the underlying file.
func (jw *JSONWriter) Close() error {
	return jw.file.Close()
}
