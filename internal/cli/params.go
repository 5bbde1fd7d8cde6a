package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/daryltucker/subscription-runner/internal/config"
	"github.com/daryltucker/subscription-runner/internal/output"
)

var (
	paramsPath  string
	paramsForce bool
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Write a default params.yaml",
	// Skips config loading so a broken params.yaml can be replaced.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return output.Configure(os.Stderr, logFormat, logLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(paramsPath); err == nil && !paramsForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", paramsPath)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		if err := config.DefaultConfig().Save(paramsPath); err != nil {
			return fmt.Errorf("failed to write %s: %w", paramsPath, err)
		}
		output.Logger.Info("Wrote default parameters", "path", paramsPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(paramsCmd)

	paramsCmd.Flags().StringVarP(&paramsPath, "output", "o", config.DefaultFiles[0], "where to write the parameters file")
	paramsCmd.Flags().BoolVar(&paramsForce, "force", false, "overwrite an existing file")
}
