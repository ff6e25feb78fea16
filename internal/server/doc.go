// Package server provides the HTTP server for the statusboard dashboard and API.
//
// This package is internal to statusboard and handles all HTTP concerns:
//
//   - Dashboard serving: renders the embedded page template at "/"
//   - REST API: JSON snapshot at "/api/snapshot", refresh at "/api/refresh"
//   - Server-Sent Events: real-time updates at "/api/sse"
//   - WebSocket: the same updates at "/api/ws"
//   - Metrics: Prometheus text at "/metrics"
//
// Streams read from a view state and end when the view is torn down. The
// server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// The server is started automatically by [statusboard.Board.Start].
package server
