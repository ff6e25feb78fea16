// Package resolve maps record addresses to hostnames with reverse DNS.
//
// Lookups send PTR queries to one configured server rather than the system
// resolver, so the dashboard can name containers through the DNS server of
// the network they run on. Answers are cached for the lifetime of the
// [Resolver]. A failed lookup is not retried until its retry delay has
// passed, so an unreachable server costs one timeout per address per delay
// rather than one per render.
package resolve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// DefaultTimeout is the per-query timeout when none is configured.
const DefaultTimeout = 2 * time.Second

// DefaultRetryAfter is how long a failed address yields "" before it is
// queried again.
const DefaultRetryAfter = 30 * time.Second

// Resolver answers PTR lookups against a single DNS server.
type Resolver struct {
	server string
	client *dns.Client
	logger *slog.Logger
	retry  time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	cache    map[string]string
	failures map[string]time.Time // address -> earliest retry
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithLogger sets the logger used for lookup failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRetryAfter sets how long a failed lookup is remembered. Zero
// retries failures on every lookup.
func WithRetryAfter(d time.Duration) Option {
	return func(r *Resolver) {
		if d >= 0 {
			r.retry = d
		}
	}
}

// New creates a Resolver that queries server (host:port). A zero timeout
// means [DefaultTimeout].
func New(server string, timeout time.Duration, opts ...Option) (*Resolver, error) {
	if server == "" {
		return nil, fmt.Errorf("resolve: server must not be empty")
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		return nil, fmt.Errorf("resolve: server %q must be host:port: %w", server, err)
	}
	if timeout < 0 {
		return nil, fmt.Errorf("resolve: timeout must not be negative, got %v", timeout)
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	r := &Resolver{
		server: server,
		client: &dns.Client{Timeout: timeout},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		retry:  DefaultRetryAfter,
		now:    time.Now,

		cache:    make(map[string]string),
		failures: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Server returns the DNS server address.
func (r *Resolver) Server() string {
	return r.server
}

// Lookup returns the first PTR name for addr without the trailing dot.
// Addresses that are not IPs, and failed lookups, yield "".
func (r *Resolver) Lookup(ctx context.Context, addr string) string {
	if net.ParseIP(addr) == nil {
		return ""
	}

	r.mu.RLock()
	name, ok := r.cache[addr]
	retryAt, failed := r.failures[addr]
	r.mu.RUnlock()
	if ok {
		return name
	}
	if failed && r.now().Before(retryAt) {
		return ""
	}

	name, err := r.query(ctx, addr)
	if err != nil {
		r.logger.Debug("reverse lookup failed", "address", addr, "server", r.server, "error", err)
		// a lookup cut short by its caller says nothing about the server
		if ctx.Err() == nil && r.retry > 0 {
			r.mu.Lock()
			r.failures[addr] = r.now().Add(r.retry)
			r.mu.Unlock()
		}
		return ""
	}

	r.mu.Lock()
	r.cache[addr] = name
	delete(r.failures, addr)
	r.mu.Unlock()
	return name
}

// LookupAll resolves every address in addrs. The result has an entry for
// each distinct address, empty when it could not be resolved.
func (r *Resolver) LookupAll(ctx context.Context, addrs []string) map[string]string {
	out := make(map[string]string, len(addrs))
	for _, a := range addrs {
		if _, done := out[a]; done {
			continue
		}
		if ctx.Err() != nil {
			out[a] = ""
			continue
		}
		out[a] = r.Lookup(ctx, a)
	}
	return out
}

func (r *Resolver) query(ctx context.Context, addr string) (string, error) {
	arpa, err := dns.ReverseAddr(addr)
	if err != nil {
		return "", err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return "", err
	}
	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		// NXDOMAIN is an answer: the address has no name.
		return "", nil
	default:
		return "", fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", nil
}
