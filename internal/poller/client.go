package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpalmerr/statusboard/internal/snapshot"
)

// StatusPath is the backend resource that lists the current records.
const StatusPath = "/status"

const maxResponseBodySize = 1 << 20 // 1MB

const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 4
	defaultIdleConnTimeout     = 60 * time.Second
	defaultRequestTimeout      = 10 * time.Second
)

// FailureKind classifies a [FetchError].
type FailureKind string

const (
	// FailureTransport covers request construction, connection and body read errors.
	FailureTransport FailureKind = "transport"

	// FailureStatus is a response with a non-2xx status code.
	FailureStatus FailureKind = "status"

	// FailureDecode is a 2xx response whose body is not a record array.
	FailureDecode FailureKind = "decode"
)

// FetchError is the single error kind returned by [Client.FetchSnapshot].
type FetchError struct {
	Kind FailureKind

	// StatusCode is set for FailureStatus and FailureDecode.
	StatusCode int

	Err error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FailureStatus:
		return fmt.Sprintf("fetch failed: unexpected status %d", e.StatusCode)
	default:
		return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind of err, or "" if err is not a [FetchError].
func KindOf(err error) FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Client fetches snapshots from the backend status resource.
//
// Client applies its timeout per request via context rather than a global
// client timeout. Response bodies are limited to 1MB.
type Client struct {
	statusURL  string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a [Client] for the backend at baseURL.
//
// The status URL is baseURL joined with [StatusPath]; a trailing slash or
// an existing path prefix on baseURL is preserved. A timeout of zero uses
// the 10 second default.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	statusURL, err := StatusURL(baseURL)
	if err != nil {
		return nil, err
	}
	if timeout < 0 {
		return nil, fmt.Errorf("request timeout cannot be negative, got %s", timeout)
	}
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		statusURL: statusURL,
		timeout:   timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}, nil
}

// StatusURL joins baseURL with [StatusPath] after validating it.
func StatusURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", errors.New("backend URL cannot be empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("backend URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("backend URL %q has no host", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + StatusPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// URL returns the full status URL this client requests.
func (c *Client) URL() string {
	return c.statusURL
}

// FetchSnapshot performs one GET of the status resource and decodes it.
//
// Any failure is returned as a *[FetchError]; no retry is attempted.
func (c *Client) FetchSnapshot(ctx context.Context) ([]snapshot.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statusURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: FailureTransport, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: FailureTransport, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
		return nil, &FetchError{Kind: FailureStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &FetchError{Kind: FailureTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	records, err := snapshot.Decode(body)
	if err != nil {
		return nil, &FetchError{Kind: FailureDecode, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed status body: %w", err)}
	}
	return records, nil
}

// Close closes idle connections in the client's pool. Safe to call multiple
// times and on a nil client; the client remains usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
