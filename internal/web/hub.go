package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"blocklag/internal/model"
	"blocklag/internal/monitor"
)

// ErrHubClosed is returned by ServeWS after the hub has shut down.
var ErrHubClosed = errors.New("stream hub closed")

const (
	// writeTimeout bounds every frame write, data and control alike.
	writeTimeout = 5 * time.Second

	// pingInterval is how often idle connections are pinged.
	pingInterval = 30 * time.Second

	// pongTimeout is how long a connection may go without traffic
	// before its reads fail. Three missed pings.
	pongTimeout = 90 * time.Second

	// sendBufferSize is the per-client frame queue. A client that
	// falls this far behind is dropped.
	sendBufferSize = 64

	// maxClientFrame caps inbound frames. Clients only listen, so
	// anything beyond a trivial frame is a protocol violation.
	maxClientFrame = 512
)

// Event is one frame of the stream protocol. Type is "snapshot" on
// connect, "sample" for each accepted sample, and "reset" when a mode
// is selected and the window starts over.
type Event struct {
	Type   string            `json:"type"`
	Mode   string            `json:"mode,omitempty"`
	Sample *model.Sample     `json:"sample,omitempty"`
	Status *monitor.Snapshot `json:"status,omitempty"`
	Series *seriesPayload    `json:"series,omitempty"`
}

// Hub fans events out to connected websocket clients. It implements
// monitor.SampleTap; delivery is non-blocking, so a stalled client
// never holds up the sampling path.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub. The widget is embedded on pages served
// from other origins, so cross-origin upgrades are allowed.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

// ServeWS upgrades the request and registers the connection. hello, if
// non-nil, is queued as the first frame. On upgrade failure the HTTP
// error response has already been written.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, hello []byte) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &streamClient{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	if hello != nil {
		c.send <- hello
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return ErrHubClosed
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)

	h.logger.Debug("stream client connected", "remote", conn.RemoteAddr().String())
	return nil
}

// Broadcast marshals v once and queues it on every client. Clients
// whose queue is full are dropped.
func (h *Hub) Broadcast(v any) {
	buf, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("marshal stream event", "err", err)
		return
	}

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- buf:
		default:
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("client send buffer full, dropping client")
		}
	}
	h.mu.Unlock()
}

// ObserveSample broadcasts an accepted sample to all clients.
func (h *Hub) ObserveSample(mode model.Mode, s model.Sample) {
	h.Broadcast(Event{Type: "sample", Mode: mode.String(), Sample: &s})
}

// ObserveReset broadcasts the start of a fresh window for mode. Because
// the monitor observes resets and samples in series order, no stale
// sample frame can follow the reset that invalidated it.
func (h *Hub) ObserveReset(mode model.Mode) {
	h.Broadcast(Event{Type: "reset", Mode: mode.String()})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// drop unregisters c and closes its queue. Safe to call from multiple
// goroutines; only the caller that finds c registered closes the
// channel.
func (h *Hub) drop(c *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// writePump serializes all writes to the connection and keeps it alive
// with pings. It owns the connection close.
func (h *Hub) writePump(c *streamClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case buf, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, buf); err != nil {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames and detects disconnects. Client
// frames carry no meaning and are discarded.
func (h *Hub) readPump(c *streamClient) {
	defer h.drop(c)

	c.conn.SetReadLimit(maxClientFrame)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
