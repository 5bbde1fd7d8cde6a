/*
PURPOSE:
  Writes explored dashboard predictions to a CSV file.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Output to CSV with columns age,income,prediction,prob_yes.

  Implementation-discovered:
  - Overwrite on every exploration; the grid is recomputed from scratch.

ARCHITECTURE INTEGRATION:
  - Called by: internal/dashboard
  - Consumes: internal/model.GridPoint

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (crash resilience).

USAGE:
  w, err := output.NewCSVWriter("explore.csv")
  w.Write(point)
  w.Close()

RELATED FILES:
  - internal/model/types.go
*/

package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/daryltucker/subscription-runner/internal/model"
)

// GridHeader is the CSV header of an exploration.
var GridHeader = []string{"age", "income", "prediction", "prob_yes"}

// CSVWriter handles writing grid points to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(GridHeader); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
	}, nil
}

// Write writes a single point to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(p model.GridPoint) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	record := []string{
		strconv.FormatInt(p.Age, 10),
		strconv.FormatInt(p.Income, 10),
		p.Prediction,
		strconv.FormatFloat(p.ProbYes, 'f', 4, 64),
	}

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}
