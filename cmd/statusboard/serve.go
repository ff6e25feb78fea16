package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/statusboard"
	"github.com/jpalmerr/statusboard/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the statusboard dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the statusboard dashboard server.

The server will:
  - Load configuration from the given YAML file, or use defaults
  - Fetch the backend's /status immediately and then on every interval
  - Serve the dashboard UI, JSON, SSE, WebSocket and metrics endpoints

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  statusboard serve
  statusboard serve -c /etc/statusboard/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"backend", cfg.BackendURL,
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.Duration().String(),
	)

	board, err := statusboard.New(config.BuildOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create statusboard: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runUntilDone(ctx, board.Start, logger)
}

// runUntilDone runs start in the background and waits for it to return,
// allowing shutdownTimeout after ctx is cancelled.
func runUntilDone(ctx context.Context, start func(context.Context) error, logger *slog.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
