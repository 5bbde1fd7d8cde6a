package cli

import (
	"github.com/spf13/cobra"

	"github.com/daryltucker/subscription-runner/internal/dashboard"
)

var (
	apiURLOverride string
	dashOpts       = dashboard.DefaultOptions()
	noExplore      bool
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Query the prediction service and explore predictions",
	Long: `Checks the prediction service health, shows model information, makes a
single prediction and explores a grid of ages (step 5) and incomes (step 5000),
at most 10x10 points. The grid is printed as a text heat map and optionally
saved as CSV and JSON Lines.`,
	Example: `  # Single prediction plus default exploration
  subscription-runner dashboard --age 42 --income 65000

  # Save the explored grid
  subscription-runner dashboard --csv out/explore.csv --json out/explore.jsonl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if apiURLOverride != "" {
			cfg.Dashboard.APIURL = apiURLOverride
		}
		dashOpts.Explore = !noExplore

		c := dashboard.NewClient(cfg.Dashboard.APIURL, cfg.Dashboard.Timeout)
		return dashboard.Run(cmd.Context(), c, dashOpts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)

	f := dashboardCmd.Flags()
	f.StringVar(&apiURLOverride, "api-url", "", "prediction service URL (default from config)")
	f.Int64Var(&dashOpts.Age, "age", dashOpts.Age, "age for the single prediction (18-100)")
	f.Int64Var(&dashOpts.Income, "income", dashOpts.Income, "annual income for the single prediction (0-500000)")
	f.Int64Var(&dashOpts.Ranges.Ages.Min, "age-min", dashOpts.Ranges.Ages.Min, "lowest explored age")
	f.Int64Var(&dashOpts.Ranges.Ages.Max, "age-max", dashOpts.Ranges.Ages.Max, "highest explored age")
	f.Int64Var(&dashOpts.Ranges.Incomes.Min, "income-min", dashOpts.Ranges.Incomes.Min, "lowest explored income")
	f.Int64Var(&dashOpts.Ranges.Incomes.Max, "income-max", dashOpts.Ranges.Incomes.Max, "highest explored income")
	f.BoolVar(&noExplore, "no-explore", false, "skip the range explorer")
	f.StringVar(&dashOpts.CSVPath, "csv", "", "write explored points to this CSV file")
	f.StringVar(&dashOpts.JSONPath, "json", "", "write explored points to this JSON Lines file")
}
