/*
PURPOSE:
  Data quality gate run before the rest of the pipeline. Asserts schema,
  completeness and value ranges of the raw dataset and writes a sentinel file
  that downstream DVC stages depend on.

REQUIREMENTS:
  - Schema: age integer, income integer, subscribed string.
  - No nulls, no duplicate rows, exactly four columns (including id).
  - age >= 0, income >= 0, subscribed in {yes, no}.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (validate stage)
  - Uses: internal/dataset, github.com/go-playground/validator/v10

ERROR HANDLING:
  - Every failed assertion is returned wrapped in ErrValidation so the CLI can
    exit non-zero and the orchestrator halts.

RELATED FILES:
  - internal/engine/validate.go
*/

package quality

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/daryltucker/subscription-runner/internal/dataset"
	"github.com/daryltucker/subscription-runner/internal/model"
)

// ErrValidation marks a failed data assertion.
var ErrValidation = errors.New("data validation failed")

// SentinelText is written to the sentinel file on success.
const SentinelText = "Data validation completed successfully"

// ExpectedColumns is the column count of the raw dataset, id included.
const ExpectedColumns = 4

func fail(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Checker runs the assertions. It is safe to reuse.
type Checker struct {
	validate *validator.Validate
}

// NewChecker creates a Checker.
func NewChecker() *Checker {
	return &Checker{validate: validator.New()}
}

// Run executes all checks in order: schema, quality, integrity.
func (c *Checker) Run(t *dataset.Table) error {
	if err := CheckSchema(t); err != nil {
		return err
	}
	if err := CheckQuality(t); err != nil {
		return err
	}
	return c.CheckIntegrity(t)
}

// CheckSchema asserts the typed columns exist and parse.
func CheckSchema(t *dataset.Table) error {
	for _, col := range []string{model.ColumnAge, model.ColumnIncome} {
		cells, err := t.Column(col)
		if err != nil {
			return fail("schema: %v", err)
		}
		for i, cell := range cells {
			if _, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64); err != nil {
				return fail("schema: column %q row %d: expected integer, got %q", col, i+1, cell)
			}
		}
	}
	cells, err := t.Column(model.ColumnSubscribed)
	if err != nil {
		return fail("schema: %v", err)
	}
	for i, cell := range cells {
		if dataset.IsNull(cell) {
			return fail("schema: column %q row %d: expected string, got null", model.ColumnSubscribed, i+1)
		}
	}
	return nil
}

// CheckQuality asserts completeness and shape.
func CheckQuality(t *dataset.Table) error {
	if t.Len() == 0 {
		return fail("data contains no rows")
	}
	if n := t.NullCount(); n != 0 {
		return fail("data contains null values (%d)", n)
	}
	if n := t.DuplicateCount(); n != 0 {
		return fail("data contains duplicate rows (%d)", n)
	}
	if n := len(t.Header); n != ExpectedColumns {
		return fail("data does not have the expected number of columns (got %d, want %d)", n, ExpectedColumns)
	}
	return nil
}

// CheckIntegrity validates every row as a model.Record.
func (c *Checker) CheckIntegrity(t *dataset.Table) error {
	ai, ii, si, di := t.Index(model.ColumnAge), t.Index(model.ColumnIncome), t.Index(model.ColumnSubscribed), t.Index(model.ColumnID)
	if ai < 0 || ii < 0 || si < 0 {
		return fail("integrity: missing required columns")
	}
	for r, row := range t.Rows {
		rec := model.Record{Subscribed: strings.TrimSpace(row[si])}
		var err error
		if rec.Age, err = strconv.ParseInt(strings.TrimSpace(row[ai]), 10, 64); err != nil {
			return fail("integrity: row %d: age %q is not an integer", r+1, row[ai])
		}
		if rec.Income, err = strconv.ParseInt(strings.TrimSpace(row[ii]), 10, 64); err != nil {
			return fail("integrity: row %d: income %q is not an integer", r+1, row[ii])
		}
		if di >= 0 {
			rec.ID = row[di]
		}
		if err := c.validate.Struct(rec); err != nil {
			return fail("row %d: %s", r+1, describe(err))
		}
	}
	return nil
}

// describe maps validator errors onto readable assertion messages.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Age":
		return fmt.Sprintf("age cannot be negative (got %v)", fe.Value())
	case "Income":
		return fmt.Sprintf("income cannot be negative (got %v)", fe.Value())
	case "Subscribed":
		return fmt.Sprintf("subscribed column contains invalid value %q", fe.Value())
	}
	return fe.Error()
}

// WriteSentinel records a successful validation at path.
func WriteSentinel(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(SentinelText), 0644)
}
