// Package statusboard provides an embeddable container status dashboard.
//
// A [Board] polls a backend's GET {base}/status endpoint on a fixed
// interval and renders the returned records (address, ping time, time of
// last successful ping) as a table: in a browser, served by the board
// itself, or in a terminal through snapshot callbacks.
//
// # Quick Start
//
//	b, _ := statusboard.New(statusboard.WithBackendURL("http://localhost:8080"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	b.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// Board uses the functional options pattern:
//
//	b, err := statusboard.New(
//	    statusboard.WithBackendURL("http://status.internal:8080"),
//	    statusboard.WithPollingInterval(10 * time.Second),
//	    statusboard.WithPort(3000),
//	    statusboard.WithLocale("ru_RU.UTF-8"),
//	    statusboard.WithResolver("10.0.0.53:53", 0),
//	)
//
// The backend URL defaults to $BACKEND_URL, then http://localhost:8080.
//
// # View lifetime
//
// Each [Board.Start] call owns one view: a fresh snapshot slot, a poller
// that fetches immediately and then on every tick, and optionally the HTTP
// server. Cancelling the context stops the ticker, aborts and waits for
// in-flight requests, and closes the view. Results that arrive after that
// are discarded. A failed fetch is logged and leaves the previous snapshot
// on screen; there is no retry other than the next tick.
//
// # Architecture
//
//   - internal/snapshot: record and snapshot types, wire decoding
//   - internal/poller: backend client and the cancellable fetch loop
//   - internal/view: the owned view state with pub/sub
//   - internal/render: table model and locale formatting
//   - internal/resolve: optional reverse-DNS hostnames
//   - internal/metrics: fetch counters in Prometheus text format
//   - internal/server: HTTP page, JSON API, SSE, WebSocket
//   - dashboard: embedded page template
//
// The internal packages are not part of the public API and may change
// without notice.
package statusboard
