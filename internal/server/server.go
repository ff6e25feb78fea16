package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jpalmerr/statusboard/dashboard"
	"github.com/jpalmerr/statusboard/internal/metrics"
	"github.com/jpalmerr/statusboard/internal/render"
	"github.com/jpalmerr/statusboard/internal/snapshot"
	"github.com/jpalmerr/statusboard/internal/view"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// EventSnapshot is the event name of every pushed message.
	EventSnapshot = dashboard.SnapshotEvent
)

// Refresher starts an out-of-band fetch. Trigger reports whether a fetch
// was started.
type Refresher interface {
	Trigger() bool
}

// MetricsWriter writes metrics in the Prometheus text format.
type MetricsWriter interface {
	WriteText(w io.Writer) error
}

// HostnameFunc resolves addresses to hostnames for the hostname column.
type HostnameFunc func(ctx context.Context, addrs []string) map[string]string

// Message is the JSON envelope pushed over SSE and WebSocket.
type Message struct {
	Event string            `json:"event"`
	Data  snapshot.Snapshot `json:"data"`
	Table render.Table      `json:"table"`
}

// Option configures a [Server].
type Option func(*Server)

// WithFormatter sets the locale formatter for rendered tables.
func WithFormatter(f render.Formatter) Option {
	return func(s *Server) {
		s.formatter = f
	}
}

// WithHostnames adds a hostname column resolved by fn.
func WithHostnames(fn HostnameFunc) Option {
	return func(s *Server) {
		s.hostnames = fn
	}
}

// WithRefresh enables POST /api/refresh, limited to limit requests per
// second with the given burst.
func WithRefresh(r Refresher, limit rate.Limit, burst int) Option {
	return func(s *Server) {
		s.refresher = r
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithMetrics enables GET /metrics.
func WithMetrics(m MetricsWriter) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// Server handles HTTP requests for the statusboard dashboard and API.
//
// Server provides these endpoints:
//   - GET /: the dashboard page with the current table
//   - GET /api/snapshot: the current snapshot as JSON
//   - GET /api/sse: Server-Sent Events stream, one message per snapshot
//   - GET /api/ws: WebSocket stream of the same messages
//   - POST /api/refresh: out-of-band fetch (with [WithRefresh])
//   - GET /metrics: Prometheus text (with [WithMetrics])
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      view.Store
	port       int
	title      string
	logger     *slog.Logger
	httpServer *http.Server
	hub        *hub

	formatter render.Formatter
	hostnames HostnameFunc
	refresher Refresher
	limiter   *rate.Limiter
	metrics   MetricsWriter

	mu   sync.Mutex
	addr net.Addr

	// tableMu guards the table rendered for the snapshot with seq tableSeq.
	// It is held while rendering so concurrent clients wait for one render
	// instead of each doing its own hostname lookups.
	tableMu  sync.Mutex
	tableSeq uint64
	rendered *render.Table
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: view state to serve
//   - port: TCP port to listen on (0 picks a free port)
//   - title: dashboard title (defaults to the localized "Container status")
//   - logger: logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st view.Store, port int, title string, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		store:     st,
		port:      port,
		title:     title,
		logger:    logger,
		formatter: render.NewFormatter("", nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(st, s.message, logger)
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.Handle("/api/ws", s.hub)
	if s.refresher != nil {
		mux.HandleFunc("/api/refresh", s.handleRefresh)
	}
	if s.metrics != nil {
		mux.HandleFunc("/metrics", s.handleMetrics)
	}

	mux.HandleFunc("/", s.handleDashboard)
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler: s.Handler(),
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.hub.Start(ctx)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// table renders snap with the configured formatter and hostname lookup.
// The result is shared by every client until the next snapshot replaces
// it. A render whose ctx ended mid-lookup is not kept.
func (s *Server) table(ctx context.Context, snap snapshot.Snapshot) render.Table {
	s.tableMu.Lock()
	defer s.tableMu.Unlock()

	if s.rendered != nil && s.tableSeq == snap.Seq {
		return *s.rendered
	}

	var hosts map[string]string
	if s.hostnames != nil {
		addrs := make([]string, len(snap.Records))
		for i, r := range snap.Records {
			addrs[i] = r.Address
		}
		hosts = s.hostnames(ctx, addrs)
		if hosts == nil {
			hosts = map[string]string{}
		}
	}
	t := render.BuildTable(snap, s.formatter, hosts)
	if s.title != "" {
		t.Title = s.title
	}

	if ctx.Err() == nil && (s.rendered == nil || snap.Seq > s.tableSeq) {
		s.tableSeq = snap.Seq
		s.rendered = &t
	}
	return t
}

// message encodes the push envelope for snap.
func (s *Server) message(ctx context.Context, snap snapshot.Snapshot) ([]byte, error) {
	return json.Marshal(Message{
		Event: EventSnapshot,
		Data:  snap,
		Table: s.table(ctx, snap),
	})
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	t := s.table(r.Context(), s.store.Current())
	page := dashboard.Page{
		Title:        t.Title,
		Lang:         s.formatter.Locale().String(),
		Table:        t,
		NoData:       s.formatter.T(render.MsgNoData),
		UpdatedLabel: s.formatter.T(render.MsgUpdated),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := dashboard.Render(w, page); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleSnapshot returns the current snapshot as JSON.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(s.store.Current()); err != nil {
		s.logger.Error("failed to encode snapshot response", "error", err)
	}
}

// handleRefresh starts an out-of-band fetch.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.store.Active() {
		http.Error(w, "View is not active", http.StatusServiceUnavailable)
		return
	}
	if !s.limiter.Allow() {
		retry := 1
		if lim := s.limiter.Limit(); lim > 0 && lim < 1 {
			retry = int(1/float64(lim)) + 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		http.Error(w, "Too many refresh requests", http.StatusTooManyRequests)
		return
	}

	started := s.refresher.Trigger()
	s.logger.Debug("refresh requested", "started", started, "remote", r.RemoteAddr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]bool{"started": started}); err != nil {
		s.logger.Error("failed to encode refresh response", "error", err)
	}
}

// handleMetrics serves fetch metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", metrics.ContentType)
	if err := s.metrics.WriteText(w); err != nil {
		s.logger.Error("failed to write metrics", "error", err)
	}
}

// handleSSE streams snapshots via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventSnapshot, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	// set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before reading the current snapshot so no replacement is missed
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	last := uint64(0)
	send := func(snap snapshot.Snapshot) error {
		if snap.Seq != 0 && snap.Seq <= last {
			return nil
		}
		last = snap.Seq
		data, err := s.message(r.Context(), snap)
		if err != nil {
			s.logger.Error("failed to encode sse message", "error", err)
			return nil
		}
		return writeAndFlush(data)
	}

	if err := send(s.store.Current()); err != nil {
		return
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				// view closed
				return
			}
			if err := send(snap); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
