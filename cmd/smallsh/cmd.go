package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"smallsh/internal/config"
	"smallsh/internal/history"
	"smallsh/internal/jobs"
	"smallsh/internal/logger"
	"smallsh/internal/metrics"
	"smallsh/internal/shell"
)

func main() {
	code := 0
	root := newRootCommand(&code)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(code)
}

func newRootCommand(code *int) *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "smallsh",
		Short:         "A small interactive shell with job control",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			*code, err = run(cmd.Context(), cfg)
			return err
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log, logCloser := logger.New(cfg.Log)
	defer func() { _ = logCloser.Close() }()

	sink, err := openSink(cfg.History)
	if err != nil {
		return 1, err
	}
	defer func() { _ = sink.Close() }()

	if cfg.Metrics.Listen != "" {
		startMetrics(ctx, cfg.Metrics.Listen, log)
	}

	sup := jobs.NewSupervisor(jobs.NewSession(), jobs.NewLauncher(jobs.StdStreams()),
		jobs.WithLogger(log),
		jobs.WithSink(sink),
	)
	s, err := shell.New(cfg, sup, shell.WithLogger(log))
	if err != nil {
		return 1, fmt.Errorf("error initializing shell: %w", err)
	}

	log.Info("shell started", "pid", os.Getpid(), "policy", cfg.LaunchErrorPolicy)
	code := s.Run(ctx)
	log.Info("shell exiting", "code", code)
	return code, nil
}

func openSink(cfg config.HistoryConfig) (history.Sink, error) {
	if cfg.DSN == "" {
		return history.Nop{}, nil
	}
	sink, err := history.NewSQLite(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("error opening job history: %w", err)
	}
	return sink, nil
}

func startMetrics(ctx context.Context, addr string, log *slog.Logger) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		log.Warn("metrics registration failed", "error", err)
		return
	}
	go func() {
		if err := metrics.Serve(ctx, addr, reg); err != nil {
			log.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
}
