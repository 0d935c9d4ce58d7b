package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dkotenko/calarm/internal/config"
	"github.com/dkotenko/calarm/internal/service/daemon"
	"github.com/dkotenko/calarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for running the scheduler daemon.
	rootCmd = &cobra.Command{
		Use:   "calarm-scheduler [health-address]",
		Short: "Run the calendar alarm scheduler daemon.",
		Long: `Starts the daemon that polls the alarm store for due calendar reminders
and delivers them by email.

Storage backend, polling cadence, SMTP relay and deployment mode come from
the configuration file. In cluster mode multiple replicas may poll the same
store; a shared claim ledger keeps each reminder delivered once.
The optional argument overrides the gRPC health endpoint listen address
from configuration (e.g., :9090, 0.0.0.0:8080).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use health address argument if provided, otherwise rely on config.
			var healthAddress string
			if len(args) > 0 {
				healthAddress = args[0]
			}

			options := &daemon.Options{
				ConfigPath:    configPath,
				HealthAddress: healthAddress,
			}

			return daemon.Run(ctx, options)
		},
	}
)

// Execute runs the calarm-scheduler CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
}
