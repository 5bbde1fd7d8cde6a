package engine

import (
	"fmt"

	"github.com/daryltucker/subscription-runner/internal/dataset"
	"github.com/daryltucker/subscription-runner/internal/output"
	"github.com/daryltucker/subscription-runner/internal/quality"
)

// Validate runs the data quality checks over the raw dataset and writes the
// success marker. Downstream stages depend on the marker, so a failed check
// halts the pipeline.
func (e *Engine) Validate() error {
	p := e.Config.Paths
	output.Logger.Info("Validating raw data", "path", p.RawData)

	t, err := dataset.ReadCSV(p.RawData)
	if err != nil {
		return fmt.Errorf("failed to read raw data: %w", err)
	}
	if err := quality.NewChecker().Run(t); err != nil {
		output.Logger.Error("Data validation failed", "path", p.RawData, "error", err)
		return err
	}
	if err := quality.WriteSentinel(p.ValidationOK); err != nil {
		return fmt.Errorf("failed to write validation marker: %w", err)
	}

	output.Logger.Info("Data validation passed", "rows", t.Len(), "marker", p.ValidationOK)
	return nil
}
