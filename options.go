package statusboard

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jpalmerr/statusboard/internal/poller"
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	backendURL        string
	pollingInterval   time.Duration
	requestTimeout    time.Duration
	timeoutSet        bool
	port              int
	serve             bool
	title             string
	locale            string
	location          *time.Location
	overlap           OverlapPolicy
	refreshRate       float64
	refreshBurst      int
	resolverServer    string
	resolverTimeout   time.Duration
	logger            *slog.Logger
	snapshotCallbacks []func(Snapshot)
}

// Option is a function that configures a [Board] during construction.
//
// Options return an error if validation fails.
type Option func(*boardConfig) error

// WithBackendURL sets the backend base URL. The fixed path /status is
// appended to it; a trailing slash on the base is tolerated.
//
// Defaults to $BACKEND_URL, or http://localhost:8080 when unset.
//
// Returns an error if the URL is not an absolute http or https URL.
func WithBackendURL(u string) Option {
	return func(cfg *boardConfig) error {
		if _, err := poller.StatusURL(u); err != nil {
			return fmt.Errorf("backend url: %w", err)
		}
		cfg.backendURL = u
		return nil
	}
}

// WithPollingInterval sets the time between fetches. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithRequestTimeout bounds each fetch. It must not exceed the polling
// interval. Defaults to 10 seconds, capped at the polling interval.
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		cfg.timeoutSet = true
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server. Defaults to 3000.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithoutServer disables the HTTP dashboard. Start then only polls and
// invokes snapshot callbacks, which is how terminal views use a Board.
func WithoutServer() Option {
	return func(cfg *boardConfig) error {
		cfg.serve = false
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to the localized "Container status".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLocale sets the locale used for headers, dates and numbers. Accepts
// BCP 47 ("ru-RU") or POSIX ("ru_RU.UTF-8") names. Defaults to en-US.
func WithLocale(locale string) Option {
	return func(cfg *boardConfig) error {
		cfg.locale = strings.TrimSpace(locale)
		return nil
	}
}

// WithLocation sets the time zone last-success times are shown in.
// Defaults to the local time zone.
//
// Returns an error if loc is nil.
func WithLocation(loc *time.Location) Option {
	return func(cfg *boardConfig) error {
		if loc == nil {
			return errors.New("location cannot be nil")
		}
		cfg.location = loc
		return nil
	}
}

// WithOverlap sets what happens when a tick fires while a fetch is still in
// flight. Defaults to [OverlapSkip].
func WithOverlap(policy OverlapPolicy) Option {
	return func(cfg *boardConfig) error {
		p, err := poller.ParseOverlapPolicy(string(policy))
		if err != nil {
			return err
		}
		cfg.overlap = p
		return nil
	}
}

// WithRefreshRate limits POST /api/refresh to perSecond requests with the
// given burst. Defaults to 1 per second with a burst of 3.
func WithRefreshRate(perSecond float64, burst int) Option {
	return func(cfg *boardConfig) error {
		if perSecond <= 0 {
			return errors.New("refresh rate must be positive")
		}
		if burst < 1 {
			return errors.New("refresh burst must be at least 1")
		}
		cfg.refreshRate = perSecond
		cfg.refreshBurst = burst
		return nil
	}
}

// WithResolver adds a hostname column resolved with reverse DNS against
// server (host:port). A zero timeout uses the resolver default.
func WithResolver(server string, timeout time.Duration) Option {
	return func(cfg *boardConfig) error {
		if _, _, err := net.SplitHostPort(server); err != nil {
			return fmt.Errorf("resolver server must be host:port: %w", err)
		}
		if timeout < 0 {
			return errors.New("resolver timeout cannot be negative")
		}
		cfg.resolverServer = server
		cfg.resolverTimeout = timeout
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Board.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithSnapshotCallback registers a function to be called after every
// successful fetch with the snapshot now held by the view.
//
// Multiple callbacks may be registered; they execute in registration order.
// Callbacks receive their own copy of the snapshot.
//
// IMPORTANT: Callbacks must be non-blocking. They run on the fetch goroutine
// and a slow callback delays teardown. Panics within callbacks are recovered
// and logged; they do not stop polling.
//
// No callback is invoked after the view has been torn down.
//
// Nil callbacks are silently ignored.
func WithSnapshotCallback(cb func(Snapshot)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.snapshotCallbacks = append(cfg.snapshotCallbacks, cb)
		return nil
	}
}
