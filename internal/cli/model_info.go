/*
PURPOSE:
  Defines the 'model-info' subcommand.
  Shows the persisted model and its tracking provenance without starting
  the service.

REQUIREMENTS:
  - Useful validation step before serving or evaluating.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.LoadArtifacts()

ERROR HANDLING:
  - Returns error if the model or metadata is missing or invalid.

USAGE:
  subscription-runner model-info
*/

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/subscription-runner/internal/engine"
)

var modelInfoCmd = &cobra.Command{
	Use:   "model-info",
	Short: "Show the trained model and its tracking metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, meta, err := engine.LoadArtifacts(cfg.Paths.Model, cfg.Paths.Metadata)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Model:       %s (%s)\n", meta.ModelName, f.TypeName())
		fmt.Fprintf(w, "Run ID:      %s\n", meta.RunID)
		fmt.Fprintf(w, "Experiment:  %s\n", meta.ExperimentName)
		fmt.Fprintf(w, "Features:    %v\n", f.FeatureNames)
		fmt.Fprintf(w, "Classes:     %v\n", f.ClassLabels())
		fmt.Fprintf(w, "Trees:       %d (criterion %s, seed %d)\n", len(f.Trees), f.Params.Criterion, f.Params.RandomState)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelInfoCmd)
}
