package engine

import (
	"fmt"

	"github.com/daryltucker/subscription-runner/internal/dataset"
	"github.com/daryltucker/subscription-runner/internal/output"
)

// Prepare cleans the raw dataset according to limpieza_param and writes the
// processed file. Duplicates are removed before null rows.
func (e *Engine) Prepare() error {
	p := e.Config.Paths
	clean := e.Config.Cleaning

	t, err := dataset.ReadCSV(p.RawData)
	if err != nil {
		return fmt.Errorf("failed to read raw data: %w", err)
	}
	before := t.Len()

	if clean.DuplicatesEnabled() {
		t = t.DropDuplicates()
	}
	if clean.NullsEnabled() {
		t = t.DropNulls()
	}

	if err := t.WriteCSV(p.CleanData); err != nil {
		return fmt.Errorf("failed to write cleaned data: %w", err)
	}

	output.Logger.Info("Data prepared",
		"input", p.RawData,
		"output", p.CleanData,
		"rows_in", before,
		"rows_out", t.Len(),
		"drop_duplicates", clean.DuplicatesEnabled(),
		"drop_nulls", clean.NullsEnabled(),
	)
	return nil
}
