package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/statusboard/internal/snapshot"
)

// Fetcher retrieves the current record set. [Client] is the production
// implementation.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) ([]snapshot.Record, error)
}

// ApplyFunc stores a fetched record set. It returns false when the
// destination no longer accepts writes (the view was torn down).
type ApplyFunc func(records []snapshot.Record, fetchedAt time.Time) bool

// Observer receives poll outcomes, e.g. for metrics.
type Observer interface {
	ObserveSuccess(records int, took time.Duration)
	ObserveFailure(kind FailureKind)
	ObserveSkip()
}

// OverlapPolicy decides what happens when a tick fires while a fetch is
// still in flight.
type OverlapPolicy string

const (
	// OverlapSkip drops the tick; at most one fetch is in flight.
	OverlapSkip OverlapPolicy = "skip"

	// OverlapAllow starts another fetch. Concurrent fetches race and the
	// later-resolving response is the one left in the view.
	OverlapAllow OverlapPolicy = "allow"
)

// ParseOverlapPolicy parses "skip" or "allow". Empty means [OverlapSkip].
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch OverlapPolicy(s) {
	case "", OverlapSkip:
		return OverlapSkip, nil
	case OverlapAllow:
		return OverlapAllow, nil
	default:
		return "", fmt.Errorf("overlap policy must be %q or %q, got %q", OverlapSkip, OverlapAllow, s)
	}
}

// Option configures a [Poller].
type Option func(*Poller)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithOverlap sets the overlap policy. Defaults to [OverlapSkip].
func WithOverlap(policy OverlapPolicy) Option {
	return func(p *Poller) {
		p.overlap = policy
	}
}

// WithObserver registers an [Observer] for poll outcomes.
func WithObserver(o Observer) Option {
	return func(p *Poller) {
		p.observer = o
	}
}

// Poller is the cancellable repeating fetch task of one view lifetime.
//
// On [Poller.Start] it fetches once immediately, then on every tick of a
// fixed-period ticker. [Poller.Stop] is the explicit release: it stops the
// ticker, cancels in-flight requests and waits for them, after which the
// apply function is never called again.
//
// All lifecycle methods are safe for concurrent use.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	apply    ApplyFunc
	overlap  OverlapPolicy
	logger   *slog.Logger
	observer Observer

	mu      sync.Mutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc

	loopWG   sync.WaitGroup
	fetchWG  sync.WaitGroup
	inFlight atomic.Int32

	// applyMu orders apply calls against deactivation: once deactivate
	// returns, apply is never entered again.
	applyMu sync.Mutex
	active  atomic.Bool
}

// New creates a [Poller] that fetches with f every interval and hands each
// successful result to apply.
func New(f Fetcher, interval time.Duration, apply ApplyFunc, opts ...Option) (*Poller, error) {
	if f == nil {
		return nil, errors.New("fetcher cannot be nil")
	}
	if apply == nil {
		return nil, errors.New("apply function cannot be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}

	p := &Poller{
		fetcher:  f,
		interval: interval,
		apply:    apply,
		overlap:  OverlapSkip,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if _, err := ParseOverlapPolicy(string(p.overlap)); err != nil {
		return nil, err
	}
	return p, nil
}

// Start begins polling in a background goroutine and returns immediately.
//
// Start is idempotent. If Stop was called first, Start is a no-op. If ctx
// is nil, context.Background() is used. Cancelling ctx deactivates the
// poller the same way Stop does, except that Stop must still be called to
// wait for in-flight fetches.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	pollCtx := p.ctx
	p.active.Store(true)
	p.loopWG.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.loopWG.Done()
		defer p.deactivate()

		p.dispatch(pollCtx, "initial")

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				p.dispatch(pollCtx, "tick")
			}
		}
	}()
}

// Stop deactivates the poller and waits for the loop and every in-flight
// fetch to finish. Idempotent, and safe to call before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		if p.cancel != nil {
			p.cancel()
		}
	}
	p.mu.Unlock()

	p.deactivate()

	p.loopWG.Wait()
	p.fetchWG.Wait()
}

// Trigger starts an out-of-band fetch under the same overlap policy as the
// ticker. Returns false if the poller is inactive or the fetch was skipped.
func (p *Poller) Trigger() bool {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil {
		return false
	}
	return p.dispatch(ctx, "trigger")
}

// Active reports whether the poller is started and not yet torn down.
func (p *Poller) Active() bool {
	return p.active.Load()
}

// InFlight returns the number of fetches currently running.
func (p *Poller) InFlight() int {
	return int(p.inFlight.Load())
}

// Interval returns the poll period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// deactivate clears the active flag and waits out any apply in progress.
func (p *Poller) deactivate() {
	p.applyMu.Lock()
	p.active.Store(false)
	p.applyMu.Unlock()
}

// dispatch starts one fetch goroutine unless the poller is inactive or the
// overlap policy says to skip.
func (p *Poller) dispatch(ctx context.Context, reason string) bool {
	// the WaitGroup Add happens under mu so it cannot race Stop's Wait
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || !p.active.Load() || ctx.Err() != nil {
		return false
	}

	if p.overlap == OverlapSkip {
		if !p.inFlight.CompareAndSwap(0, 1) {
			p.logger.Debug("fetch skipped, previous fetch still in flight", "reason", reason)
			if p.observer != nil {
				p.observer.ObserveSkip()
			}
			return false
		}
	} else {
		p.inFlight.Add(1)
	}

	p.fetchWG.Add(1)
	go func() {
		defer p.fetchWG.Done()
		defer p.inFlight.Add(-1)
		p.fetchOnce(ctx, reason)
	}()
	return true
}

// fetchOnce performs one fetch and applies the result while active.
// Failures are logged and swallowed; the view keeps its previous snapshot.
func (p *Poller) fetchOnce(ctx context.Context, reason string) {
	pollID := uuid.NewString()
	start := time.Now()

	records, err := p.fetcher.FetchSnapshot(ctx)
	took := time.Since(start)

	if err != nil {
		if !p.active.Load() {
			p.logger.Debug("fetch abandoned after teardown", "poll_id", pollID, "error", err.Error())
			return
		}
		kind := KindOf(err)
		if kind == "" {
			kind = FailureTransport
		}
		p.logger.Warn("fetch failed, keeping previous snapshot",
			"poll_id", pollID,
			"reason", reason,
			"kind", string(kind),
			"duration_ms", took.Milliseconds(),
			"error", err.Error(),
		)
		if p.observer != nil {
			p.observer.ObserveFailure(kind)
		}
		return
	}

	p.applyMu.Lock()
	if !p.active.Load() {
		p.applyMu.Unlock()
		p.logger.Debug("discarding snapshot that resolved after teardown", "poll_id", pollID)
		return
	}
	applied := p.apply(records, time.Now())
	p.applyMu.Unlock()

	if !applied {
		p.logger.Debug("view rejected snapshot", "poll_id", pollID)
		return
	}

	p.logger.Debug("snapshot fetched",
		"poll_id", pollID,
		"reason", reason,
		"records", len(records),
		"duration_ms", took.Milliseconds(),
	)
	if p.observer != nil {
		p.observer.ObserveSuccess(len(records), took)
	}
}
