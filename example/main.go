package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/statusboard"
	"github.com/jpalmerr/statusboard/example/mockbackend"
)

func main() {
	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start the mock backend with a simulated pinger
	backend := mockbackend.New(slog.Default())
	go backend.Simulate(ctx, []string{"172.17.0.2", "172.17.0.3", "172.17.0.4"}, 3*time.Second)
	go func() {
		if err := http.ListenAndServe(":9999", backend.Handler()); err != nil {
			slog.Error("mock backend error", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	board, err := statusboard.New(
		statusboard.WithBackendURL("http://localhost:9999"),
		statusboard.WithPollingInterval(5*time.Second),
		statusboard.WithPort(3000),
		statusboard.WithSnapshotCallback(func(snap statusboard.Snapshot) {
			slog.Info("snapshot", "seq", snap.Seq, "records", len(snap.Records))
		}),
	)
	if err != nil {
		slog.Error("failed to create statusboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Statusboard Demo                                    ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:3000 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Backend: mock on :9999, 3 containers, 3s pings      ║")
	fmt.Println("  ║   Polling: every 5s                                   ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	if err := board.Start(ctx); err != nil {
		slog.Error("statusboard error", "error", err)
		os.Exit(1)
	}
}
