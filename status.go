package statusboard

import (
	"github.com/jpalmerr/statusboard/internal/poller"
	"github.com/jpalmerr/statusboard/internal/snapshot"
)

// StatusRecord is one container's latest known status as reported by the
// backend: address, most recent ping time in milliseconds, and the time of
// the last successful ping.
//
// On the wire it is {"ip": ..., "ping_time": ..., "last_success": ...}.
type StatusRecord = snapshot.Record

// Snapshot is the complete record set returned by one successful fetch,
// in backend order. A new snapshot replaces the previous one wholesale.
type Snapshot = snapshot.Snapshot

// FetchError is returned for every failed fetch. Its Kind tells a
// transport failure, a non-2xx response and a malformed body apart.
type FetchError = poller.FetchError

// FailureKind classifies a [FetchError].
type FailureKind = poller.FailureKind

// Failure kinds.
const (
	FailureTransport = poller.FailureTransport
	FailureStatus    = poller.FailureStatus
	FailureDecode    = poller.FailureDecode
)

// OverlapPolicy decides what happens when a tick fires while the previous
// fetch is still in flight.
type OverlapPolicy = poller.OverlapPolicy

// Overlap policies.
const (
	// OverlapSkip drops the tick so at most one fetch is in flight.
	OverlapSkip = poller.OverlapSkip

	// OverlapAllow starts overlapping fetches; the later-resolving response
	// is the one left in the view.
	OverlapAllow = poller.OverlapAllow
)

// ParseOverlapPolicy parses "skip" or "allow". Empty means [OverlapSkip].
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	return poller.ParseOverlapPolicy(s)
}
