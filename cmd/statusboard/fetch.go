package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/statusboard"
	"github.com/jpalmerr/statusboard/config"
	"github.com/jpalmerr/statusboard/internal/resolve"
)

// fetchCmd performs a single fetch and prints the result.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the backend status once and print it",
	Long: `Fetch {backend}/status once and print the records.

The table uses the configured locale and time zone. With --json the
snapshot is printed as JSON instead.

Exit codes:
  0 - Fetch succeeded
  1 - Fetch failed (transport error, non-2xx status or malformed body)

Example:
  statusboard fetch
  BACKEND_URL=http://status.internal:8080 statusboard fetch --json`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringP("config", "c", "", "path to config file")
	fetchCmd.Flags().Bool("json", false, "print the snapshot as JSON")
}

func runFetch(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	board, err := statusboard.New(append(config.BuildOptions(cfg, logger), statusboard.WithoutServer())...)
	if err != nil {
		return fmt.Errorf("failed to create statusboard: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snap, err := board.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	hosts, err := newHostnames(cfg.Resolver.Server, cfg.Resolver.Timeout.Duration(), resolve.WithLogger(logger))
	if err != nil {
		return err
	}
	return writeTable(ctx, out, snap, board.Formatter(), cfg.Title, hosts)
}
