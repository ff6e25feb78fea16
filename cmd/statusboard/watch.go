package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/statusboard"
	"github.com/jpalmerr/statusboard/config"
	"github.com/jpalmerr/statusboard/internal/resolve"
)

// watchCmd redraws the status table in the terminal on every fetch.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Redraw the status table in the terminal",
	Long: `Poll the backend and redraw the status table in the terminal after
every successful fetch. No HTTP server is started.

With --reload the config file is watched. A valid change tears the
current view down and starts a new one with the new settings; an
invalid change is logged and the current view keeps running.

Example:
  statusboard watch
  statusboard watch -c config.yaml --reload`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file")
	watchCmd.Flags().Bool("reload", false, "restart the view when the config file changes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	reload, _ := cmd.Flags().GetBool("reload")
	if reload && configFile == "" {
		return fmt.Errorf("--reload requires --config")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// holds at most the newest config; Watch is the only sender
	changes := make(chan *config.Config, 1)
	if reload {
		go func() {
			err := config.Watch(ctx, configFile, logger, func(next *config.Config) {
				select {
				case <-changes:
				default:
				}
				changes <- next
			})
			if err != nil {
				logger.Error("config watch stopped", "error", err)
			}
		}()
	}

	out := cmd.OutOrStdout()
	for {
		viewCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func(cfg *config.Config) {
			done <- watchView(viewCtx, cfg, logger, out)
		}(cfg)

		select {
		case err := <-done:
			cancel()
			return err

		case next := <-changes:
			cancel()
			if err := <-done; err != nil {
				return err
			}
			logger.Info("restarting view with reloaded config", "backend", next.BackendURL)
			cfg = next
		}
	}
}

// watchView runs one view lifetime, redrawing out after every snapshot
// until ctx is cancelled.
func watchView(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the callback runs on the poller goroutine and must not block, so it
	// only hands the newest snapshot to the draw loop
	latest := make(chan statusboard.Snapshot, 1)
	offer := func(snap statusboard.Snapshot) {
		select {
		case <-latest:
		default:
		}
		latest <- snap
	}

	opts := append(config.BuildOptions(cfg, logger),
		statusboard.WithoutServer(),
		statusboard.WithSnapshotCallback(offer),
	)
	board, err := statusboard.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create statusboard: %w", err)
	}

	hosts, err := newHostnames(cfg.Resolver.Server, cfg.Resolver.Timeout.Duration(), resolve.WithLogger(logger))
	if err != nil {
		return err
	}

	drawn := make(chan struct{})
	go func() {
		defer close(drawn)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-latest:
				if _, err := io.WriteString(out, clearScreen); err != nil {
					logger.Error("terminal write failed", "error", err)
					continue
				}
				if err := writeTable(ctx, out, snap, board.Formatter(), cfg.Title, hosts); err != nil {
					logger.Error("terminal write failed", "error", err)
				}
			}
		}
	}()

	err = board.Start(ctx)
	cancel()
	<-drawn
	return err
}
