package config

import (
	"testing"
	"time"

	"github.com/jpalmerr/statusboard"
)

func TestBuildOptions_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	board, err := statusboard.New(BuildOptions(cfg, nil)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if board.BackendURL() != "http://localhost:8080" {
		t.Errorf("BackendURL() = %q", board.BackendURL())
	}
	if board.Port() != 3000 {
		t.Errorf("Port() = %d, want 3000", board.Port())
	}
	if board.PollingInterval() != 10*time.Second {
		t.Errorf("PollingInterval() = %v, want 10s", board.PollingInterval())
	}
	if board.Overlap() != statusboard.OverlapSkip {
		t.Errorf("Overlap() = %q, want skip", board.Overlap())
	}
	if board.ResolverServer() != "" {
		t.Errorf("ResolverServer() = %q, want empty", board.ResolverServer())
	}
}

func TestBuildOptions_FullConfig(t *testing.T) {
	clearEnv(t)

	yaml := `
backend_url: http://status.internal:9000
poll_interval: 20s
request_timeout: 3s
port: 4000
locale: ru_RU.UTF-8
timezone: Europe/Moscow
overlap: allow
resolver:
  server: 127.0.0.1:5353
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	board, err := statusboard.New(BuildOptions(cfg, testLogger())...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if board.BackendURL() != "http://status.internal:9000" {
		t.Errorf("BackendURL() = %q", board.BackendURL())
	}
	if board.PollingInterval() != 20*time.Second || board.RequestTimeout() != 3*time.Second {
		t.Errorf("interval/timeout = %v/%v", board.PollingInterval(), board.RequestTimeout())
	}
	if board.Port() != 4000 {
		t.Errorf("Port() = %d, want 4000", board.Port())
	}
	if board.Overlap() != statusboard.OverlapAllow {
		t.Errorf("Overlap() = %q, want allow", board.Overlap())
	}
	if got := board.Formatter().Locale().String(); got != "ru" {
		t.Errorf("Formatter().Locale() = %q, want ru", got)
	}
	if got := board.Formatter().Location().String(); got != "Europe/Moscow" {
		t.Errorf("Formatter().Location() = %q, want Europe/Moscow", got)
	}
	if board.ResolverServer() != "127.0.0.1:5353" {
		t.Errorf("ResolverServer() = %q", board.ResolverServer())
	}
}

func TestBuildOptions_LaterOptionsOverride(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte("port: 4000"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts := append(BuildOptions(cfg, nil), statusboard.WithoutServer())
	board, err := statusboard.New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if board.Serving() {
		t.Error("Serving() = true, want false after WithoutServer")
	}
}
