package cli

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/daryltucker/subscription-runner/internal/server"
)

var addrOverride string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve predictions over HTTP",
	Long: `Loads the model and its metadata once at startup and serves
GET /, GET /health, GET /model/info, POST /predict and GET /metrics.
If the model cannot be loaded the service still starts and answers 503
on the model endpoints.`,
	Example: `  subscription-runner serve --addr :8000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addrOverride != "" {
			cfg.Serve.Addr = addrOverride
		}
		gin.SetMode(gin.ReleaseMode)

		svc := server.LoadService(cfg.Paths.Model, cfg.Paths.Metadata)
		return server.New(svc).ListenAndServe(cmd.Context(), cfg.Serve)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&addrOverride, "addr", "", "listen address (default from config, :8000)")
}
