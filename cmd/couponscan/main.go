// Command couponscan enumerates candidate coupon codes derived from a base
// pattern and probes the configured site to see which ones are accepted.
//
// Usage:
//
//	couponscan -config couponscan.yaml
//	couponscan -config couponscan.yaml -run-id run_2024q3   # resume a run
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/couponscan/probe"
	"github.com/hazyhaar/couponscan/store"
)

func main() {
	configPath := flag.String("config", "", "path to couponscan.yaml config file")
	runID := flag.String("run-id", "", "run identifier (overrides config; reusing one resumes its checkpoint)")
	basePattern := flag.String("base", "", "base code pattern (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *runID, *basePattern); err != nil {
		logger.Error("couponscan: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, runID, basePattern string) error {
	if configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: couponscan -config <file> [-run-id <id>] [-base <pattern>]")
		os.Exit(1)
	}

	cfg, err := probe.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runID != "" {
		cfg.RunID = runID
	}
	if basePattern != "" {
		cfg.BasePattern = basePattern
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	runner, err := probe.New(cfg, st, logger)
	if err != nil {
		return err
	}

	if cfg.Status.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.Status.Listen,
			Handler:           runner.StatusHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("couponscan: status endpoint listening", "addr", cfg.Status.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("couponscan: status endpoint failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	if err := runner.Run(ctx); err != nil {
		return err
	}

	// The run summary is already logged; echo the accepted codes so they
	// are easy to grab from a terminal session.
	accepted, err := st.Accepted(context.Background(), runner.RunID())
	if err != nil {
		return err
	}
	for _, code := range accepted {
		fmt.Println(code)
	}
	return nil
}
