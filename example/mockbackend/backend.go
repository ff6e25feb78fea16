// Package mockbackend is an in-memory status backend for demos and manual
// testing.
//
// GET /status returns every known record; an empty backend answers with a
// JSON null, as real backends do before their first ping. POST /status
// upserts one record keyed by ip. [Backend.Simulate] plays the pinger,
// posting fresh ping times for a fixed set of containers.
package mockbackend

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status is one container's record on the wire.
type Status struct {
	IP          string    `json:"ip"`
	PingTime    int       `json:"ping_time"`
	LastSuccess time.Time `json:"last_success"`
}

// Backend holds the record set. Safe for concurrent use.
type Backend struct {
	mu      sync.Mutex
	records map[string]Status
	logger  *slog.Logger
}

// New creates an empty backend.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		records: make(map[string]Status),
		logger:  logger,
	}
}

// Handler returns the /status routes.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", b.handleList)
	mux.HandleFunc("POST /status", b.handleUpsert)
	return mux
}

// Upsert stores s, replacing any record with the same IP.
func (b *Backend) Upsert(s Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[s.IP] = s
}

// List returns all records ordered by IP. It is nil when the backend is
// empty.
func (b *Backend) List() []Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Status
	for _, s := range b.records {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out
}

func (b *Backend) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(b.List()); err != nil {
		b.logger.Error("failed to write response", "error", err)
	}
}

func (b *Backend) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var s Status
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if s.IP == "" {
		http.Error(w, "ip is required", http.StatusBadRequest)
		return
	}
	b.Upsert(s)
	w.WriteHeader(http.StatusCreated)
}

// Simulate upserts a random 1-200ms ping for every address once per
// interval until ctx is cancelled. Each address has a one in ten chance per
// round of failing its ping, which leaves its last success unchanged.
func (b *Backend) Simulate(ctx context.Context, addrs []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		now := time.Now()
		for _, addr := range addrs {
			if rand.Intn(10) == 0 {
				b.logger.Info("ping failed", "ip", addr)
				continue
			}
			b.Upsert(Status{IP: addr, PingTime: 1 + rand.Intn(200), LastSuccess: now})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
