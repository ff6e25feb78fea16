package statusboard

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jpalmerr/statusboard/internal/metrics"
	"github.com/jpalmerr/statusboard/internal/poller"
	"github.com/jpalmerr/statusboard/internal/render"
	"github.com/jpalmerr/statusboard/internal/resolve"
	"github.com/jpalmerr/statusboard/internal/server"
	"github.com/jpalmerr/statusboard/internal/snapshot"
	"github.com/jpalmerr/statusboard/internal/view"
)

const (
	// EnvBackendURL names the environment variable holding the backend base URL.
	EnvBackendURL = "BACKEND_URL"

	// DefaultBackendURL is used when neither an option nor the environment
	// sets a backend.
	DefaultBackendURL = "http://localhost:8080"

	defaultPollingInterval = 10 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	defaultPort            = 3000
	defaultRefreshRate     = 1.0
	defaultRefreshBurst    = 3
)

// BackendURLFromEnv returns $BACKEND_URL, or [DefaultBackendURL] when it is
// unset or empty.
func BackendURLFromEnv() string {
	if v := os.Getenv(EnvBackendURL); v != "" {
		return v
	}
	return DefaultBackendURL
}

// Board is the orchestrator for backend polling and dashboard serving.
//
// A Board is created using [New] with functional options and run with
// [Board.Start]. Each Start call is one view lifetime: it creates a fresh
// view state, fetches immediately, re-fetches on every tick, and tears
// everything down when the context is cancelled.
//
// The typical lifecycle is:
//
//	b, err := statusboard.New(statusboard.WithBackendURL("http://status.internal:8080"))
//	if err != nil {
//	    slog.Error("failed to create board", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	b.Start(ctx) // blocks until context cancelled
type Board struct {
	backendURL        string
	pollingInterval   time.Duration
	requestTimeout    time.Duration
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

	metrics *metrics.Recorder
}

// New creates a new [Board] with the given options.
//
// Defaults:
//   - Backend: $BACKEND_URL, else http://localhost:8080
//   - Polling interval: 10 seconds
//   - Request timeout: 10 seconds, capped at the polling interval
//   - Port: 3000
//   - Overlap policy: skip
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		backendURL:      BackendURLFromEnv(),
		pollingInterval: defaultPollingInterval,
		requestTimeout:  defaultRequestTimeout,
		port:            defaultPort,
		serve:           true,
		overlap:         OverlapSkip,
		refreshRate:     defaultRefreshRate,
		refreshBurst:    defaultRefreshBurst,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if _, err := poller.StatusURL(cfg.backendURL); err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	if cfg.requestTimeout > cfg.pollingInterval && !cfg.timeoutSet {
		cfg.requestTimeout = cfg.pollingInterval
	}
	if cfg.requestTimeout > cfg.pollingInterval {
		return nil, fmt.Errorf("request timeout (%s) must not exceed polling interval (%s)",
			cfg.requestTimeout, cfg.pollingInterval)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Board{
		backendURL:        cfg.backendURL,
		pollingInterval:   cfg.pollingInterval,
		requestTimeout:    cfg.requestTimeout,
		port:              cfg.port,
		serve:             cfg.serve,
		title:             cfg.title,
		locale:            cfg.locale,
		location:          cfg.location,
		overlap:           cfg.overlap,
		refreshRate:       cfg.refreshRate,
		refreshBurst:      cfg.refreshBurst,
		resolverServer:    cfg.resolverServer,
		resolverTimeout:   cfg.resolverTimeout,
		logger:            logger,
		snapshotCallbacks: cfg.snapshotCallbacks,
		metrics:           metrics.New(),
	}, nil
}

// Start activates a view and runs it until ctx is cancelled.
//
// Start is a blocking call. During execution:
//
//   - The backend is fetched once immediately, then every polling interval
//   - Each successful fetch replaces the view's snapshot wholesale
//   - Failed fetches are logged and leave the previous snapshot in place
//   - Unless [WithoutServer] was given, the dashboard is served on the port
//
// On cancellation the ticker is stopped, in-flight requests are aborted and
// waited for, and the view state is closed, in that order. Nothing fetched
// after that point reaches the view or the snapshot callbacks.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails
// to start.
func (b *Board) Start(ctx context.Context) error {
	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	client, err := poller.NewClient(b.backendURL, b.requestTimeout)
	if err != nil {
		return err
	}
	defer client.Close()

	state := view.New()
	defer state.Close()

	apply := func(records []snapshot.Record, fetchedAt time.Time) bool {
		snap, ok := state.Replace(records, fetchedAt)
		if !ok {
			return false
		}
		// callbacks fire after the view holds the snapshot
		for _, cb := range b.snapshotCallbacks {
			invokeCallbackSafe(cb, snap, b.logger)
		}
		return true
	}

	p, err := poller.New(client, b.pollingInterval, apply,
		poller.WithLogger(b.logger),
		poller.WithOverlap(b.overlap),
		poller.WithObserver(b.metrics),
	)
	if err != nil {
		return err
	}
	defer p.Stop()

	b.logger.Info("statusboard starting",
		"backend", client.URL(),
		"interval", b.pollingInterval.String(),
		"overlap", string(b.overlap),
	)

	if b.serve {
		srv, err := b.newServer(state, p)
		if err != nil {
			return err
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		b.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", b.port))
	}

	p.Start(ctx)

	<-ctx.Done()
	b.logger.Info("statusboard stopped")
	return nil
}

// Fetch performs one fetch outside any view lifetime.
func (b *Board) Fetch(ctx context.Context) (Snapshot, error) {
	client, err := poller.NewClient(b.backendURL, b.requestTimeout)
	if err != nil {
		return Snapshot{}, err
	}
	defer client.Close()

	records, err := client.FetchSnapshot(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Records: records, FetchedAt: time.Now(), Seq: 1}, nil
}

func (b *Board) newServer(state *view.State, p *poller.Poller) (*server.Server, error) {
	opts := []server.Option{
		server.WithFormatter(b.Formatter()),
		server.WithMetrics(b.metrics),
		server.WithRefresh(p, rate.Limit(b.refreshRate), b.refreshBurst),
	}

	if b.resolverServer != "" {
		res, err := resolve.New(b.resolverServer, b.resolverTimeout, resolve.WithLogger(b.logger))
		if err != nil {
			return nil, err
		}
		opts = append(opts, server.WithHostnames(res.LookupAll))
	}

	return server.NewServer(state, b.port, b.title, b.logger, opts...), nil
}

// Formatter returns the table formatter for the configured locale and time
// zone.
func (b *Board) Formatter() render.Formatter {
	return render.NewFormatter(b.locale, b.location)
}

// BackendURL returns the configured backend base URL.
func (b *Board) BackendURL() string {
	return b.backendURL
}

// Port returns the configured HTTP port for the dashboard server.
func (b *Board) Port() int {
	return b.port
}

// PollingInterval returns the configured interval between fetches.
func (b *Board) PollingInterval() time.Duration {
	return b.pollingInterval
}

// RequestTimeout returns the per-fetch timeout.
func (b *Board) RequestTimeout() time.Duration {
	return b.requestTimeout
}

// Overlap returns the configured overlap policy.
func (b *Board) Overlap() OverlapPolicy {
	return b.overlap
}

// Serving reports whether Start serves the HTTP dashboard.
func (b *Board) Serving() bool {
	return b.serve
}

// ResolverServer returns the reverse-DNS server, empty when disabled.
func (b *Board) ResolverServer() string {
	return b.resolverServer
}

// invokeCallbackSafe calls a snapshot callback with panic recovery.
// Panics are logged with a correlation id but do not propagate.
func invokeCallbackSafe(cb func(Snapshot), snap Snapshot, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("snapshot callback panicked",
				"panic", r,
				"correlation_id", uuid.NewString(),
				"seq", snap.Seq,
			)
		}
	}()
	cb(snap.Clone())
}
