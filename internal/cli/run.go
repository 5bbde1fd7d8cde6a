/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the batch pipeline: validate -> prepare -> train -> evaluate.

REQUIREMENTS:
  User-specified:
  - Run the whole pipeline without the external orchestrator.
  - Stop at the first failing stage.

  Implementation-discovered:
  - A subset of stages can be selected, still executed in pipeline order.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Engine.Run()
  - Uses: internal/config, internal/tracking

ERROR HANDLING:
  - Returns the first stage error.

USAGE:
  subscription-runner run
  subscription-runner run --stages train,evaluate

RELATED FILES:
  - internal/cli/root.go
  - internal/engine/runner.go
*/

package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/daryltucker/subscription-runner/internal/engine"
)

var stagesOverride []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the batch pipeline stages in order",
	Long: `Executes the pipeline stages in order, stopping at the first failure:
1. validate: data quality checks on the raw dataset.
2. prepare: duplicate and null removal.
3. train: fit, track and register the classifier.
4. evaluate: score on the test dataset and log test metrics to the training run.`,
	Example: `  # Run every stage (uses ./params.yaml)
  subscription-runner run

  # Retrain and re-evaluate only, tracking to a local file store
  subscription-runner run --stages train,evaluate --tracking-uri ./mlruns`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stages, err := orderStages(stagesOverride)
		if err != nil {
			return err
		}

		var e *engine.Engine
		if slices.Contains(stages, engine.StageTrain) || slices.Contains(stages, engine.StageEvaluate) {
			t, err := newTracker()
			if err != nil {
				return err
			}
			e = engine.New(cfg, t)
		} else {
			e = engine.New(cfg, nil)
		}
		return e.Run(cmd.Context(), stages...)
	},
}

// orderStages validates the requested stages and sorts them into pipeline order.
func orderStages(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return engine.Stages, nil
	}
	for _, s := range requested {
		if !slices.Contains(engine.Stages, s) {
			return nil, fmt.Errorf("unknown stage %q (want one of %v)", s, engine.Stages)
		}
	}
	var out []string
	for _, s := range engine.Stages {
		if slices.Contains(requested, s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&stagesOverride, "stages", nil, "Comma-separated list of stages to run (default: all)")
}
