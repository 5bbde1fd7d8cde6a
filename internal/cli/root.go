/*
PURPOSE:
  Defines the root Cobra command for the subscription-runner CLI.
  Handles global flags, logger setup and configuration loading.

REQUIREMENTS:
  User-specified:
  - One binary; every pipeline stage is a subcommand an orchestrator can call.
  - Support global flags like --config.

  Implementation-discovered:
  - Logger format/level must be applied before any subcommand logs.
  - Config is loaded once in PersistentPreRunE and shared by subcommands.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/subscription-runner/main.go
  - Calls: Child commands (validate, prepare, train, evaluate, run, serve,
    dashboard, model-info, params)

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands.

USAGE:
  Called by main.go.

RELATED FILES:
  - cmd/subscription-runner/main.go
  - internal/config/config.go
*/

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daryltucker/subscription-runner/internal/config"
	"github.com/daryltucker/subscription-runner/internal/output"
	"github.com/daryltucker/subscription-runner/internal/tracking"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile     string
	logFormat   string
	logLevel    string
	trackingURI string

	// cfg is loaded before every subcommand runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "subscription-runner",
		Short: "Subscription likelihood pipeline: data checks, training, evaluation and serving",
		Long: `Trains and serves a classifier predicting whether a customer subscribes
from age and income. Each pipeline stage is a subcommand so an external
orchestrator (DVC) can run them independently; 'run' chains the batch stages.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

// Execute executes the root command. SIGINT and SIGTERM cancel the context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, args []string) error {
	if err := output.Configure(os.Stderr, logFormat, logLevel); err != nil {
		return err
	}

	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if trackingURI != "" {
		loaded.MLflow.TrackingURI = trackingURI
	}
	cfg = loaded
	return nil
}

func newTracker() (tracking.Tracker, error) {
	return tracking.New(cfg.MLflow.TrackingURI, tracking.Options{Timeout: cfg.MLflow.Timeout})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./params.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&trackingURI, "tracking-uri", "", "MLflow tracking URI (overrides config and MLFLOW_TRACKING_URI)")
}
