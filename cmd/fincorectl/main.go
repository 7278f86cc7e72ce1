// Command fincorectl runs allocation, reporting and projection operations
// directly against the configured ledger store.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fincore/internal/backend"
	"fincore/internal/cli"
	"fincore/internal/config"
	"fincore/internal/log"
)

const Version = "0.1.0"

// app holds what every subcommand shares. openStore is swapped in tests.
type app struct {
	out       io.Writer
	cfg       *config.Config
	openStore func(ctx context.Context) (*backend.Result, error)
}

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	a := &app{
		out: os.Stdout,
		cfg: cfg,
		openStore: func(ctx context.Context) (*backend.Result, error) {
			return backend.NewFactory(log.Default(log.ComponentBackend)).CreateStore(ctx, backend.ConfigFrom(cfg))
		},
	}

	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "fincorectl",
		Short: "Operate the fincore allocation engine",
		Long: `fincorectl distributes payments across funds, prints fund summaries
and insights, runs cash projections and reconciles fund balances against
the ledger. It reads the same environment as the fincore server
(DATA_BACKEND, SQLITE_DB_PATH, ...).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				a.cfg.LogLevel = logLevel
			}
			cli.SetupLogger(a.cfg.LogLevel)
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return nil
		},
	}
	cmd.SetOut(a.out)
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")

	cmd.AddCommand(
		newSimulateCmd(a),
		newDistributeCmd(a),
		newSummaryCmd(a),
		newReconcileCmd(a),
		newSeedCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "fincorectl version %s\n", Version)
			},
		},
	)
	return cmd
}
