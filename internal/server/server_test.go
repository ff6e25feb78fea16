package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/jpalmerr/statusboard/internal/render"
	"github.com/jpalmerr/statusboard/internal/snapshot"
	"github.com/jpalmerr/statusboard/internal/view"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func record(addr string, ms float64) snapshot.Record {
	return snapshot.Record{Address: addr, LatencyMs: ms, LastSuccessAt: jan1}
}

func newState(records ...snapshot.Record) *view.State {
	st := view.New()
	if len(records) > 0 {
		st.Replace(records, jan1)
	}
	return st
}

func newTestServer(st view.Store, opts ...Option) *Server {
	opts = append([]Option{WithFormatter(render.NewFormatter("en-US", time.UTC))}, opts...)
	return NewServer(st, 0, "", testLogger(), opts...)
}

// testMessage mirrors Message for decoding.
type testMessage struct {
	Event string `json:"event"`
	Data  struct {
		Seq     uint64            `json:"seq"`
		Records []snapshot.Record `json:"records"`
	} `json:"data"`
	Table render.Table `json:"table"`
}

func parseSSEEvents(t *testing.T, body string) []testMessage {
	t.Helper()
	var msgs []testMessage
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var m testMessage
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &m); err != nil {
			t.Fatalf("failed to parse SSE data: %v, line: %s", err, line)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

type countingRefresher struct {
	calls atomic.Int32
}

func (c *countingRefresher) Trigger() bool {
	c.calls.Add(1)
	return true
}

type stubMetrics struct{}

func (stubMetrics) WriteText(w io.Writer) error {
	_, err := io.WriteString(w, "statusboard_fetch_total{result=\"success\"} 1\n")
	return err
}

// --- SSE ---

func TestHandleSSE_BasicFlow(t *testing.T) {
	st := newState(record("10.0.0.1", 12), record("10.0.0.2", 7))
	srv := newTestServer(st)

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	srv.handleSSE(rec, req.WithContext(ctx))

	body := rec.Body.String()
	if !strings.Contains(body, "event: snapshot\n") {
		t.Errorf("response should name the snapshot event, got: %s", body)
	}
	msgs := parseSSEEvents(t, body)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 initial snapshot", len(msgs))
	}
	if n := len(msgs[0].Table.Rows); n != 2 {
		t.Errorf("initial table has %d rows, want 2", n)
	}
}

func TestHandleSSE_StreamsUpdates(t *testing.T) {
	st := newState()
	srv := newTestServer(st)

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req.WithContext(ctx))
		close(done)
	}()

	// give handler time to subscribe
	time.Sleep(50 * time.Millisecond)
	st.Replace([]snapshot.Record{record("10.0.0.9", 3)}, jan1)
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	msgs := parseSSEEvents(t, rec.Body.String())
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want initial + update", len(msgs))
	}
	last := msgs[1]
	if last.Data.Seq != 1 || len(last.Data.Records) != 1 || last.Data.Records[0].Address != "10.0.0.9" {
		t.Errorf("update = %+v, want seq 1 with 10.0.0.9", last.Data)
	}
}

func TestHandleSSE_ExitsWhenViewCloses(t *testing.T) {
	st := newState()
	srv := newTestServer(st)

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	st.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit after view teardown")
	}
}

func TestHandleSSE_ServerShutdown(t *testing.T) {
	srv := newTestServer(newState())

	// create a server context that we'll cancel to simulate shutdown
	serverCtx, serverCancel := context.WithCancel(context.Background())

	// when calling handleSSE directly (not through http.Server), we must
	// manually derive the request context from the server context to simulate
	// BaseContext behavior. In production, BaseContext does this automatically.
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	req = req.WithContext(serverCtx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	serverCancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after server shutdown")
	}
}

func TestHandleSSE_NoGoroutineLeaks(t *testing.T) {
	// allow existing goroutines to settle
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	before := runtime.NumGoroutine()

	st := newState(record("10.0.0.1", 1))
	srv := newTestServer(st)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			srv.handleSSE(httptest.NewRecorder(), req.WithContext(ctx))
		}()
	}
	wg.Wait()

	runtime.GC()
	time.Sleep(200 * time.Millisecond)

	after := runtime.NumGoroutine()
	if after > before+2 { // small tolerance for runtime variance
		t.Errorf("potential goroutine leak: before=%d, after=%d", before, after)
	}
	if n := st.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d after handlers exited, want 0", n)
	}
}

func TestHandleSSE_ConcurrentClientsShutdown(t *testing.T) {
	srv := newTestServer(newState(record("10.0.0.1", 1)))

	serverCtx, serverCancel := context.WithCancel(context.Background())

	numClients := 10
	var wg sync.WaitGroup
	started := make(chan struct{})
	var startedCount atomic.Int32

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			req = req.WithContext(serverCtx)

			// use Add's return value to ensure only one goroutine closes the channel
			if startedCount.Add(1) == int32(numClients) {
				close(started)
			}

			srv.handleSSE(httptest.NewRecorder(), req)
		}()
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("clients did not start in time")
	}

	time.Sleep(100 * time.Millisecond)
	serverCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("not all handlers exited after shutdown")
	}
}

func TestHandleSSE_SSENotSupported(t *testing.T) {
	srv := newTestServer(newState())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)

	// use a writer that doesn't support flushing
	w := &nonFlushWriter{header: make(http.Header)}

	srv.handleSSE(w, req)

	if w.statusCode != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.statusCode)
	}
}

type nonFlushWriter struct {
	header     http.Header
	statusCode int
	body       []byte
}

func (n *nonFlushWriter) Header() http.Header {
	return n.header
}

func (n *nonFlushWriter) Write(b []byte) (int, error) {
	n.body = append(n.body, b...)
	return len(b), nil
}

func (n *nonFlushWriter) WriteHeader(statusCode int) {
	n.statusCode = statusCode
}

func TestHandleSSE_Headers(t *testing.T) {
	srv := newTestServer(newState())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()
	srv.handleSSE(rec, req.WithContext(ctx))

	expectedHeaders := map[string]string{
		"Content-Type":                "text/event-stream",
		"Cache-Control":               "no-cache",
		"Connection":                  "keep-alive",
		"Access-Control-Allow-Origin": "*",
	}

	for key, expected := range expectedHeaders {
		if got := rec.Header().Get(key); got != expected {
			t.Errorf("header %s = %q, want %q", key, got, expected)
		}
	}
}

func TestHandleSSE_JSONFormat(t *testing.T) {
	srv := newTestServer(newState(record("10.0.0.1", 12)))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()
	srv.handleSSE(rec, req.WithContext(ctx))

	msgs := parseSSEEvents(t, rec.Body.String())
	if len(msgs) == 0 {
		t.Fatalf("no SSE data found in response: %s", rec.Body.String())
	}
	m := msgs[0]

	if m.Event != EventSnapshot {
		t.Errorf("Event = %q, want %q", m.Event, EventSnapshot)
	}
	if m.Data.Records[0].Address != "10.0.0.1" || m.Data.Records[0].LatencyMs != 12 {
		t.Errorf("Data = %+v", m.Data)
	}
	row := m.Table.Rows[0]
	if row.Key != "10.0.0.1" || row.Cells[1] != "12" || row.Cells[2] != "1/1/2024, 12:00:00 AM" {
		t.Errorf("Table row = %+v", row)
	}
}

// TestHandleSSE_ServerShutdownIntegration tests that SSE handlers exit cleanly
// when the server is shut down, using a real HTTP connection.
func TestHandleSSE_ServerShutdownIntegration(t *testing.T) {
	srv := newTestServer(newState(record("10.0.0.1", 1)))

	serverCtx, serverCancel := context.WithCancel(context.Background())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// derive request context from server context (simulates BaseContext)
		srv.handleSSE(w, r.WithContext(serverCtx))
	})

	ts := httptest.NewServer(handler)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	connDone := make(chan error, 1)
	go func() {
		resp, err := ts.Client().Do(req)
		if err != nil {
			connDone <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		// read until connection closes
		buf := make([]byte, 1024)
		for {
			if _, err := resp.Body.Read(buf); err != nil {
				connDone <- nil
				return
			}
		}
	}()

	time.Sleep(100 * time.Millisecond)
	serverCancel()

	select {
	case <-connDone:
	case <-time.After(3 * time.Second):
		t.Fatal("SSE connection did not close after server shutdown")
	}
}

// --- Snapshot API ---

func TestHandleSnapshot(t *testing.T) {
	srv := newTestServer(newState(record("10.0.0.1", 12)))

	rec := httptest.NewRecorder()
	srv.handleSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got struct {
		Seq     uint64           `json:"seq"`
		Records []map[string]any `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Seq != 1 || len(got.Records) != 1 {
		t.Fatalf("snapshot = %+v", got)
	}
	for _, key := range []string{"ip", "ping_time", "last_success"} {
		if _, ok := got.Records[0][key]; !ok {
			t.Errorf("record missing wire field %q", key)
		}
	}
}

func TestHandleSnapshot_EmptyBeforeFirstFetch(t *testing.T) {
	srv := newTestServer(newState())

	rec := httptest.NewRecorder()
	srv.handleSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	if !strings.Contains(rec.Body.String(), `"records":[]`) {
		t.Errorf("body = %s, want empty records array", rec.Body.String())
	}
}

func TestHandleSnapshot_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(newState())

	rec := httptest.NewRecorder()
	srv.handleSnapshot(rec, httptest.NewRequest(http.MethodPost, "/api/snapshot", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

// --- Refresh ---

func TestHandleRefresh(t *testing.T) {
	ref := &countingRefresher{}
	srv := newTestServer(newState(), WithRefresh(ref, rate.Inf, 1))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if ref.calls.Load() != 1 {
		t.Errorf("Trigger called %d times, want 1", ref.calls.Load())
	}
	if !strings.Contains(rec.Body.String(), `"started":true`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleRefresh_RateLimited(t *testing.T) {
	ref := &countingRefresher{}
	srv := newTestServer(newState(), WithRefresh(ref, rate.Every(time.Hour), 2))
	h := srv.Handler()

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
		codes[i] = rec.Code
		if i == 2 && rec.Header().Get("Retry-After") == "" {
			t.Error("429 response should set Retry-After")
		}
	}

	if codes[0] != http.StatusAccepted || codes[1] != http.StatusAccepted || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [202 202 429]", codes)
	}
	if ref.calls.Load() != 2 {
		t.Errorf("Trigger called %d times, want 2", ref.calls.Load())
	}
}

func TestHandleRefresh_InactiveView(t *testing.T) {
	st := newState()
	st.Close()
	ref := &countingRefresher{}
	srv := newTestServer(st, WithRefresh(ref, rate.Inf, 1))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if ref.calls.Load() != 0 {
		t.Error("Trigger should not be called on an inactive view")
	}
}

func TestHandleRefresh_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(newState(), WithRefresh(&countingRefresher{}, rate.Inf, 1))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/refresh", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if rec.Header().Get("Allow") != http.MethodPost {
		t.Errorf("Allow = %q, want POST", rec.Header().Get("Allow"))
	}
}

func TestHandler_OptionalRoutesAbsent(t *testing.T) {
	h := newTestServer(newState()).Handler()

	for _, path := range []string{"/api/refresh", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404 when not configured", path, rec.Code)
		}
	}
}

// --- Metrics ---

func TestHandleMetrics(t *testing.T) {
	srv := newTestServer(newState(), WithMetrics(stubMetrics{}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "statusboard_fetch_total") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

// --- Dashboard ---

func TestHandleDashboard_Table(t *testing.T) {
	srv := newTestServer(newState(record("10.0.0.1", 12)))

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "<th data-key=\"ip\">IP address</th>") {
		t.Errorf("expected IP address header, got: %s", body)
	}
	if !strings.Contains(body, "<td>10.0.0.1</td><td>12</td><td>1/1/2024, 12:00:00 AM</td>") {
		t.Errorf("expected rendered row, got: %s", body)
	}
}

func TestHandleDashboard_CustomTitle(t *testing.T) {
	srv := NewServer(newState(), 0, "Video Channel Healthchecks", testLogger())

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "<title>Video Channel Healthchecks</title>") {
		t.Errorf("expected title tag with custom title, got: %s", body)
	}
	if !strings.Contains(body, "<h1>Video Channel Healthchecks</h1>") {
		t.Errorf("expected h1 with custom title, got: %s", body)
	}
}

func TestHandleDashboard_LocalizedDefaultTitle(t *testing.T) {
	srv := NewServer(newState(), 0, "", testLogger(), WithFormatter(render.NewFormatter("ru", time.UTC)))

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Статус контейнеров</h1>") {
		t.Errorf("expected Russian default title, got: %s", body)
	}
	if !strings.Contains(body, "Нет данных") {
		t.Errorf("expected Russian empty placeholder, got: %s", body)
	}
}

func TestHandleDashboard_NonRootPath(t *testing.T) {
	srv := newTestServer(newState())

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/other", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d for non-root path, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestHandleDashboard_TitleWithHTMLChars(t *testing.T) {
	srv := NewServer(newState(), 0, "<script>alert('xss')</script>", testLogger())

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if strings.Contains(body, "<script>alert") {
		t.Error("title should be HTML-escaped to prevent XSS")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("expected escaped HTML, got: %s", body)
	}
}

func TestHandleDashboard_Hostnames(t *testing.T) {
	lookup := func(_ context.Context, addrs []string) map[string]string {
		return map[string]string{"10.0.0.1": "web-1.internal"}
	}
	srv := newTestServer(newState(record("10.0.0.1", 1)), WithHostnames(lookup))

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(rec.Body.String(), "<td>web-1.internal</td>") {
		t.Errorf("expected hostname cell, got: %s", rec.Body.String())
	}
}

func TestTable_HostnamesResolvedOncePerSnapshot(t *testing.T) {
	var calls atomic.Int32
	lookup := func(_ context.Context, addrs []string) map[string]string {
		calls.Add(1)
		return map[string]string{"10.0.0.1": "web-1.internal"}
	}
	st := newState(record("10.0.0.1", 1))
	srv := newTestServer(st, WithHostnames(lookup))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if !strings.Contains(rec.Body.String(), "<td>web-1.internal</td>") {
			t.Fatalf("render %d: expected hostname cell, got: %s", i, rec.Body.String())
		}
	}
	if _, err := srv.message(context.Background(), st.Current()); err != nil {
		t.Fatalf("message: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("hostname lookups = %d for one snapshot, want 1", got)
	}

	st.Replace([]snapshot.Record{record("10.0.0.1", 2)}, jan1)
	srv.table(context.Background(), st.Current())
	if got := calls.Load(); got != 2 {
		t.Errorf("hostname lookups = %d after a replacement, want 2", got)
	}
}

func TestTable_CancelledRenderNotShared(t *testing.T) {
	var calls atomic.Int32
	lookup := func(_ context.Context, addrs []string) map[string]string {
		calls.Add(1)
		return map[string]string{}
	}
	st := newState(record("10.0.0.1", 1))
	srv := newTestServer(st, WithHostnames(lookup))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	srv.table(ctx, st.Current())
	srv.table(context.Background(), st.Current())

	if got := calls.Load(); got != 2 {
		t.Errorf("hostname lookups = %d, want 2 (cancelled render re-done)", got)
	}
}

func TestTable_OlderSnapshotDoesNotEvictNewer(t *testing.T) {
	var calls atomic.Int32
	lookup := func(_ context.Context, addrs []string) map[string]string {
		calls.Add(1)
		return map[string]string{}
	}
	st := newState(record("10.0.0.1", 1))
	srv := newTestServer(st, WithHostnames(lookup))

	older := st.Current()
	st.Replace([]snapshot.Record{record("10.0.0.2", 2)}, jan1)
	newer := st.Current()

	srv.table(context.Background(), newer)
	srv.table(context.Background(), older)
	srv.table(context.Background(), newer)

	if got := calls.Load(); got != 2 {
		t.Errorf("hostname lookups = %d, want 2", got)
	}
}

// --- Server Start ---

func TestStart_AvailablePort_ReturnsNil(t *testing.T) {
	// port 0 = OS assigns available port. Valid for the internal server,
	// though the public Board API validates port > 0.
	srv := newTestServer(newState())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Errorf("Start() on available port returned error: %v", err)
	}
	if srv.Addr() == nil {
		t.Error("Addr() should be set after Start")
	}
}

func TestStart_ServesRoutes(t *testing.T) {
	srv := newTestServer(newState(record("10.0.0.1", 1)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	port := srv.Addr().(*net.TCPAddr).Port

	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/api/snapshot")
	if err != nil {
		t.Fatalf("GET /api/snapshot: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStart_PortInUse_ReturnsError(t *testing.T) {
	// occupy a port
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port

	srv := NewServer(newState(), port, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = srv.Start(ctx)
	if err == nil {
		t.Fatal("Start() on occupied port should return error")
	}
	if !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("expected bind error, got: %v", err)
	}
}

func TestStart_InvalidPort_ReturnsError(t *testing.T) {
	srv := NewServer(newState(), -1, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err == nil {
		t.Fatal("Start() with invalid port should return error")
	}
}

// --- Benchmark ---

func BenchmarkHandleSSE_SingleClient(b *testing.B) {
	records := make([]snapshot.Record, 10)
	for i := range records {
		records[i] = record("10.0.0."+strconv.Itoa(i), float64(i))
	}
	srv := newTestServer(newState(records...))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
		srv.handleSSE(httptest.NewRecorder(), req.WithContext(ctx))
		cancel()
	}
}
