package config

import (
	"log/slog"

	"github.com/jpalmerr/statusboard"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The result can be passed to [statusboard.New] as is, or extended with
// further options such as [statusboard.WithoutServer] or a snapshot
// callback. Options appended later override those built here.
func BuildOptions(cfg *Config, logger *slog.Logger) []statusboard.Option {
	overlap, _ := statusboard.ParseOverlapPolicy(cfg.Overlap)

	opts := []statusboard.Option{
		statusboard.WithBackendURL(cfg.BackendURL),
		statusboard.WithPollingInterval(cfg.PollInterval.Duration()),
		statusboard.WithRequestTimeout(cfg.RequestTimeout.Duration()),
		statusboard.WithPort(cfg.Port),
		statusboard.WithLocale(cfg.Locale),
		statusboard.WithOverlap(overlap),
		statusboard.WithRefreshRate(cfg.RefreshRate, cfg.RefreshBurst),
	}

	if cfg.Title != "" {
		opts = append(opts, statusboard.WithTitle(cfg.Title))
	}
	if loc := cfg.Location(); loc != nil {
		opts = append(opts, statusboard.WithLocation(loc))
	}
	if cfg.Resolver.Server != "" {
		opts = append(opts, statusboard.WithResolver(cfg.Resolver.Server, cfg.Resolver.Timeout.Duration()))
	}
	if logger != nil {
		opts = append(opts, statusboard.WithLogger(logger))
	}

	return opts
}
