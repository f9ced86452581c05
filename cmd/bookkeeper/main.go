package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"bookkeeper/internal/backend"
	"bookkeeper/internal/cli"
	"bookkeeper/internal/log"
	"bookkeeper/internal/metrics"
)

var version = "dev"

func main() {
	cli.LoadEnvFile()

	ctx, cancel := context.WithCancel(context.Background())
	err := rootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bookkeeper",
		Short:         "Personal bookkeeping ledger",
		Long:          `Record income and expenses against accounts, move money between them, and see monthly reports and budget alerts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runLedger,
	}
	cmd.AddCommand(versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bookkeeper %s\n", version)
		},
	}
}

func runLedger(cmd *cobra.Command, _ []string) error {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}

	// stdout belongs to the REPL
	logger := cli.SetupLogger(cfg, log.ComponentCLI, cmd.ErrOrStderr())

	ctx, cancel := cli.GracefulShutdown(cmd.Context(), logger)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, registry, logger); err != nil {
				logger.Error("Metrics server failed", log.FieldError, err, "addr", cfg.MetricsAddr)
			}
		}()
	}

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger, registry).CreateBackend(ctx, bc)
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Cleanup failed", log.FieldError, err)
			}
		}()
	}

	r := newREPL(res.Ledger, cmd.OutOrStdout())
	return r.Run(ctx, cmd.InOrStdin())
}
