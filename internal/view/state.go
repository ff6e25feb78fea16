// Package view holds the dashboard's view state.
//
// A [State] is the single snapshot slot of one view lifetime. It is created
// explicitly when a view activates and closed when it deactivates; there is
// no package-level state. Writes after [State.Close] are refused, so results
// of fetches that resolve after teardown cannot mutate anything.
//
// Readers either take a copy of the current snapshot with [State.Current] or
// subscribe to replacements with [State.Subscribe]. Subscribers receive
// updates via buffered channels with non-blocking sends: a slow subscriber
// misses intermediate snapshots rather than blocking the poller.
package view

import (
	"sync"
	"time"

	"github.com/jpalmerr/statusboard/internal/snapshot"
)

const subscriberBuffer = 16

// Store is the read side of a [State] used by renderers and the HTTP server.
type Store interface {
	// Current returns a copy of the current snapshot.
	Current() snapshot.Snapshot

	// Subscribe returns a channel that receives every replacement snapshot.
	// Caller must call Unsubscribe when done.
	Subscribe() <-chan snapshot.Snapshot

	// Unsubscribe removes a subscription and closes its channel.
	Unsubscribe(ch <-chan snapshot.Snapshot)

	// Active reports whether the view is still accepting snapshots.
	Active() bool
}

// State is the owned view-state container.
type State struct {
	mu     sync.RWMutex
	cur    snapshot.Snapshot
	closed bool

	subMu       sync.Mutex
	subscribers map[chan snapshot.Snapshot]struct{}
}

// New creates an active, empty [State].
func New() *State {
	return &State{
		cur:         snapshot.Snapshot{Records: []snapshot.Record{}},
		subscribers: make(map[chan snapshot.Snapshot]struct{}),
	}
}

// Replace swaps in a new snapshot built from records and notifies subscribers.
//
// The records slice is copied. Returns the stored snapshot and true, or the
// zero snapshot and false when the state has been closed.
func (s *State) Replace(records []snapshot.Record, fetchedAt time.Time) (snapshot.Snapshot, bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return snapshot.Snapshot{}, false
	}
	cp := make([]snapshot.Record, len(records))
	copy(cp, records)
	s.cur = snapshot.Snapshot{
		Records:   cp,
		FetchedAt: fetchedAt,
		Seq:       s.cur.Seq + 1,
	}
	out := s.cur.Clone()
	s.mu.Unlock()

	s.notify(out)
	return out, true
}

// Current returns a copy of the current snapshot. Before the first successful
// replacement it is empty with Seq zero.
func (s *State) Current() snapshot.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Clone()
}

// Active reports whether Close has not yet been called.
func (s *State) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Subscribe registers a subscriber. On a closed state the returned channel
// is already closed.
func (s *State) Subscribe() <-chan snapshot.Snapshot {
	ch := make(chan snapshot.Snapshot, subscriberBuffer)

	// checked under subMu so a concurrent Close either sees this channel or
	// this call sees the closed flag
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		close(ch)
		return ch
	}

	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// multiple times or with an unknown channel.
func (s *State) Unsubscribe(ch <-chan snapshot.Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for subCh := range s.subscribers {
		if subCh == ch {
			delete(s.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// Close deactivates the state and closes every subscriber channel.
// The last snapshot stays readable through Current. Idempotent.
func (s *State) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (s *State) SubscriberCount() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subscribers)
}

func (s *State) notify(snap snapshot.Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for ch := range s.subscribers {
		select {
		case ch <- snap.Clone():
		default:
			// subscriber is slow, drop the update
		}
	}
}
