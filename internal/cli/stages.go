package cli

import (
	"github.com/spf13/cobra"

	"github.com/daryltucker/subscription-runner/internal/engine"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run data quality checks on the raw dataset",
	Long: `Checks the raw dataset schema (age, income integers; subscribed string),
absence of nulls and duplicates, exactly 4 columns, non-negative age and income
and subscribed in {yes, no}. On success writes the validation marker file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return engine.New(cfg, nil).Validate()
	},
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Clean the raw dataset",
	Long: `Removes duplicate rows and then rows with null values, as configured by
limpieza_param.eliminar_duplicados and limpieza_param.eliminar_nulos.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return engine.New(cfg, nil).Prepare()
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the classifier and register it in the tracking service",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newTracker()
		if err != nil {
			return err
		}
		_, err = engine.New(cfg, t).Train(cmd.Context())
		return err
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the trained model on the test dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newTracker()
		if err != nil {
			return err
		}
		_, err = engine.New(cfg, t).Evaluate(cmd.Context())
		return err
	},
}

func init() {
	rootCmd.AddCommand(validateCmd, prepareCmd, trainCmd, evaluateCmd)
}
