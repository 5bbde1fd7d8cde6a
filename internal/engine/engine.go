/*
PURPOSE:
  Core engine for the batch pipeline stages.
  Holds the loaded configuration, the tracking backend and the estimator
  parameters shared by validate, prepare, train and evaluate.

REQUIREMENTS:
  User-specified:
  - Each stage is independently invocable by an external orchestrator.
  - Stages communicate only through files and exit codes.

  Implementation-discovered:
  - validate and prepare never touch the tracking service, so the tracker
    is optional until train/evaluate run.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/config, internal/dataset, internal/forest,
    internal/evaluation, internal/quality, internal/tracking, internal/output

ERROR HANDLING:
  - Every stage returns a wrapped error; nothing is retried.

USAGE:
  e := engine.New(cfg, tracker)
  err := e.Train(ctx)

RELATED FILES:
  - internal/engine/runner.go
*/

package engine

import (
	"errors"

	"github.com/daryltucker/subscription-runner/internal/config"
	"github.com/daryltucker/subscription-runner/internal/forest"
	"github.com/daryltucker/subscription-runner/internal/model"
	"github.com/daryltucker/subscription-runner/internal/tracking"
)

// Split settings of the training stage.
const (
	TestSize  = 0.2
	SplitSeed = 42
)

// ExampleRows is the size of the input example logged with the model.
const ExampleRows = 5

// ErrNoTracker is returned by stages that need a tracking backend.
var ErrNoTracker = errors.New("no tracking backend configured")

// Engine runs pipeline stages.
type Engine struct {
	Config  *config.Config
	Tracker tracking.Tracker
	Params  forest.Params
}

// New creates a new Engine. t may be nil for stages that do not track.
func New(cfg *config.Config, t tracking.Tracker) *Engine {
	return &Engine{
		Config:  cfg,
		Tracker: t,
		Params:  forest.DefaultParams(),
	}
}

// dropColumns are excluded from the feature matrix.
var dropColumns = []string{model.ColumnID}
