/*
PURPOSE:
  High-level runner that chains the batch stages.
  validate -> prepare -> train -> evaluate, stopping at the first failure.

REQUIREMENTS:
  User-specified:
  - Every stage stays independently invocable; this is a convenience for
    running the whole pipeline without the external orchestrator.

  Implementation-discovered:
  - A failed validation must halt downstream stages, as the orchestrator
    would when the marker file is missing.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (run)
  - Uses: internal/engine stages

ERROR HANDLING:
  - Returns the first stage error wrapped with the stage name.

USAGE:
  err := engine.New(cfg, tracker).Run(ctx)

RELATED FILES:
  - internal/engine/engine.go
*/

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/daryltucker/subscription-runner/internal/output"
)

// Stage names, in execution order.
const (
	StageValidate = "validate"
	StagePrepare  = "prepare"
	StageTrain    = "train"
	StageEvaluate = "evaluate"
)

// Stages lists every batch stage in order.
var Stages = []string{StageValidate, StagePrepare, StageTrain, StageEvaluate}

// RunStage executes a single named stage.
func (e *Engine) RunStage(ctx context.Context, name string) error {
	switch name {
	case StageValidate:
		return e.Validate()
	case StagePrepare:
		return e.Prepare()
	case StageTrain:
		_, err := e.Train(ctx)
		return err
	case StageEvaluate:
		_, err := e.Evaluate(ctx)
		return err
	}
	return fmt.Errorf("unknown stage %q", name)
}

// Run executes the given stages in order, or every stage when none are named.
func (e *Engine) Run(ctx context.Context, stages ...string) error {
	if len(stages) == 0 {
		stages = Stages
	}
	for _, name := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		output.Logger.Info("Running stage", "stage", name)
		start := time.Now()
		if err := e.RunStage(ctx, name); err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
		output.Logger.Info("Stage complete", "stage", name, "duration", time.Since(start).Round(time.Millisecond))
	}
	return nil
}
