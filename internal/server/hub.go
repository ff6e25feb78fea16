package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/statusboard/internal/snapshot"
	"github.com/jpalmerr/statusboard/internal/view"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// same as the SSE endpoint, which allows any origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

type buildFunc func(ctx context.Context, snap snapshot.Snapshot) ([]byte, error)

// hub fans snapshot replacements out to WebSocket clients.
type hub struct {
	store  view.Store
	build  buildFunc
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// client is one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub(st view.Store, build buildFunc, logger *slog.Logger) *hub {
	return &hub{
		store:   st,
		build:   build,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Start subscribes to the store before returning, so no replacement made
// after Start is missed, then broadcasts in the background until ctx is
// cancelled or the view closes. All connections are closed on exit.
func (h *hub) Start(ctx context.Context) {
	go h.run(ctx, h.store.Subscribe())
}

func (h *hub) run(ctx context.Context, ch <-chan snapshot.Snapshot) {
	defer h.store.Unsubscribe(ch)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			data, err := h.build(ctx, snap)
			if err != nil {
				h.logger.Error("failed to encode ws message", "error", err)
				continue
			}
			h.broadcast(data)
		}
	}
}

// ServeHTTP upgrades the connection and streams snapshots to the client,
// starting with the current one. Blocks until the connection closes.
//
// The client is registered before the current snapshot is read, so a
// replacement in between is broadcast to it. That broadcast may be queued
// ahead of the current snapshot; the page drops messages with an older seq.
func (h *hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}

	registered := h.register(c)
	if registered {
		defer h.unregister(c)
	}

	// send the current snapshot immediately so the page has data right away
	if data, err := h.build(r.Context(), h.store.Current()); err == nil {
		if registered {
			h.offer(c, data)
		} else {
			c.send <- data
		}
	}
	if !registered {
		// view already torn down: deliver the last snapshot and close
		close(c.send)
	}

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// offer queues data for c if it is still registered. Holding mu keeps the
// send from racing a close in broadcast, unregister or closeAll.
func (h *hub) offer(c *client, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast holds mu for the whole fan-out so a send never races the close
// in unregister. Sends are non-blocking.
func (h *hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// client's outgoing buffer is full, disconnect it
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// hub is shutting down or the client was dropped
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump processes control frames and detects disconnects. Blocks until
// the connection closes.
func (c *client) readPump() {
	defer func() { _ = c.conn.Close() }()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
